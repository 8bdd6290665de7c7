package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/kingston-civic/civicsim/pkg/models"
)

// Progress drives one job through the phase schedule. It is owned by
// the single goroutine running the simulation; every mutation is
// persisted through the store so polling sees it immediately.
type Progress struct {
	store *Store
	job   *SimulationJob
}

// NewProgress wraps a job for phase tracking.
func NewProgress(store *Store, job *SimulationJob) *Progress {
	return &Progress{store: store, job: job}
}

// Job returns the tracked job.
func (p *Progress) Job() *SimulationJob {
	return p.job
}

// Start marks the job running with the expected agent count.
func (p *Progress) Start(ctx context.Context, totalAgents int) error {
	p.job.Status = StatusRunning
	p.job.TotalAgents = totalAgents
	p.job.StartedAt = nowUnix()
	return p.store.Update(ctx, p.job)
}

// SetPhase advances the job to the given phase, resetting progress to
// the phase's start point and message to its default.
func (p *Progress) SetPhase(ctx context.Context, phase Phase) error {
	return p.SetPhaseMessage(ctx, phase, PhaseMessages[phase])
}

// SetPhaseMessage advances the phase with a custom status message.
func (p *Progress) SetPhaseMessage(ctx context.Context, phase Phase, message string) error {
	p.job.Phase = phase
	p.job.Progress = PhaseStartProgress[phase]
	p.job.Message = message
	return p.store.Update(ctx, p.job)
}

// AgentCompleted records one finished agent reaction and, when present,
// its zone sentiment. Progress interpolates linearly through the
// agent-reactions phase budget.
func (p *Progress) AgentCompleted(ctx context.Context, reaction models.AgentReaction, zone *models.ZoneSentiment) error {
	reaction.CompletedAt = nowUnix()
	p.job.PartialReactions = append(p.job.PartialReactions, reaction)
	if zone != nil {
		p.upsertZone(*zone)
	}
	p.job.CompletedAgents++

	total := p.job.TotalAgents
	if total < 1 {
		total = 1
	}
	start := PhaseStartProgress[PhaseAgentReactions]
	weight := PhaseWeights[PhaseAgentReactions]
	p.job.Progress = start + weight*float64(p.job.CompletedAgents)/float64(total)
	p.job.Message = fmt.Sprintf("Evaluating stakeholder reactions... %d/%d", p.job.CompletedAgents, p.job.TotalAgents)
	return p.store.Update(ctx, p.job)
}

// Complete finalizes the job with its result.
func (p *Progress) Complete(ctx context.Context, result *models.MultiAgentResponse) error {
	p.job.Status = StatusComplete
	p.job.Phase = PhaseComplete
	p.job.Progress = 100
	p.job.Message = "Simulation complete"
	p.job.Result = result
	p.job.CompletedAt = nowUnix()
	return p.store.Update(ctx, p.job)
}

// Fail marks the job as errored.
func (p *Progress) Fail(ctx context.Context, cause error) error {
	p.job.Status = StatusError
	p.job.Phase = PhaseError
	p.job.Message = "Simulation failed"
	p.job.Error = cause.Error()
	p.job.CompletedAt = nowUnix()
	return p.store.Update(ctx, p.job)
}

func (p *Progress) upsertZone(zone models.ZoneSentiment) {
	for i, existing := range p.job.PartialZones {
		if existing.ZoneID == zone.ZoneID {
			p.job.PartialZones[i] = zone
			return
		}
	}
	p.job.PartialZones = append(p.job.PartialZones, zone)
}

func nowUnix() float64 {
	return float64(time.Now().UnixMilli()) / 1000
}
