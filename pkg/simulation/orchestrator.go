// Package simulation orchestrates full runs: interpret, fan out
// reactions, aggregate zones, moderate the town hall, and assemble the
// locked response contract. Runs come in two shapes: synchronous and
// progressive (job-backed with polling).
package simulation

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kingston-civic/civicsim/pkg/agents"
	"github.com/kingston-civic/civicsim/pkg/config"
	"github.com/kingston-civic/civicsim/pkg/jobs"
	"github.com/kingston-civic/civicsim/pkg/metrics"
	"github.com/kingston-civic/civicsim/pkg/models"
	"github.com/kingston-civic/civicsim/pkg/session"
)

// Input is one simulation request, sync or progressive.
type Input struct {
	Message    string
	ScenarioID string
	SessionID  string
	ThreadID   string

	// Speaker framing: "user" (default) or "agent" with an agent key.
	SpeakerMode     string
	SpeakerAgentKey string

	// Drag-drop placement data attached to the interpreted proposal.
	AffectedRegions  []models.AffectedRegion
	ContainingZoneID string

	// Caller-supplied world state; when absent the session snapshot is
	// used.
	WorldState *models.WorldStateSummary

	// Per-agent overrides resolved by the caller.
	AgentModels      map[string]string
	PersonaOverrides map[string]string
}

// ResolveSessionID applies the session id fallback chain: explicit
// session id, thread id, scenario-derived id.
func (in *Input) ResolveSessionID() string {
	if in.SessionID != "" {
		return in.SessionID
	}
	if in.ThreadID != "" {
		return in.ThreadID
	}
	return "scenario_" + in.ScenarioID
}

// Orchestrator drives the simulation pipeline.
type Orchestrator struct {
	interpreter *agents.Interpreter
	reactor     *agents.Reactor
	moderator   *agents.Moderator
	sessions    *session.Store
	jobStore    *jobs.Store
	logger      *slog.Logger
}

// New creates the orchestrator and its role agents.
func New(gateway agents.Gateway, sessions *session.Store, jobStore *jobs.Store, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		interpreter: agents.NewInterpreter(gateway, logger),
		reactor:     agents.NewReactor(gateway, logger),
		moderator:   agents.NewModerator(gateway, logger),
		sessions:    sessions,
		jobStore:    jobStore,
		logger:      logger.With("component", "orchestrator"),
	}
}

// RunSync executes the full pipeline and returns the locked response.
// An uninterpretable message yields a clarification response, not an
// error; only upstream interpreter failures return one.
func (o *Orchestrator) RunSync(ctx context.Context, input Input) (*models.MultiAgentResponse, error) {
	start := time.Now()
	sessionID := input.ResolveSessionID()
	sess := o.sessions.GetOrCreate(sessionID)

	message := o.effectiveMessage(input)
	o.logger.Info("Starting simulation", "session_id", sessionID, "message", truncate(message, 50))

	result, err := o.interpreter.Interpret(ctx, sess, message)
	if err != nil {
		metrics.SimulationRuns.WithLabelValues("error").Inc()
		return nil, err
	}
	if !result.OK || result.Proposal == nil {
		metrics.SimulationRuns.WithLabelValues("clarification").Inc()
		return clarificationResponse(sessionID, input.Message, result, start), nil
	}

	proposal := result.Proposal
	attachPlacement(proposal, input)
	o.logger.Info("Interpreted proposal", "title", proposal.Title, "type", proposal.Type)

	reactions := o.reactor.RunAll(ctx, sess, agents.RunInput{
		Proposal:         proposal,
		WorldState:       o.worldState(sess, input),
		AgentModels:      input.AgentModels,
		PersonaOverrides: input.PersonaOverrides,
	})

	zones := agents.AggregateZones(reactions)
	townHall := o.moderator.Generate(ctx, sess, proposal, reactions)

	response := assembleResponse(sessionID, proposal, result, reactions, zones, townHall, start)

	metrics.SimulationRuns.WithLabelValues("complete").Inc()
	metrics.SimulationDuration.Observe(time.Since(start).Seconds())
	o.logger.Info("Simulation complete",
		"session_id", sessionID, "reactions", len(reactions),
		"turns", len(townHall.Turns), "duration_ms", time.Since(start).Milliseconds())
	return response, nil
}

// StartProgressive creates a job, records it on the session, and drives
// the pipeline in the background. The caller polls the job store.
func (o *Orchestrator) StartProgressive(ctx context.Context, input Input) (*jobs.SimulationJob, error) {
	sessionID := input.ResolveSessionID()
	sess := o.sessions.GetOrCreate(sessionID)

	job, err := o.jobStore.Create(ctx, sessionID, map[string]interface{}{
		"message":     input.Message,
		"scenario_id": input.ScenarioID,
	})
	if err != nil {
		return nil, err
	}
	sess.SetLastJobID(job.JobID)

	// Visible simulation-request marker for graph observers.
	sess.UpdateRelationship("user", "townhall", 0, session.UpdateRelationshipInput{
		Reason:  "Initiated simulation",
		Message: "Proposal: " + truncate(input.Message, 80),
	})

	// The job outlives the HTTP request that started it.
	go o.runProgressive(context.WithoutCancel(ctx), sess, job, input)

	return job, nil
}

func (o *Orchestrator) runProgressive(ctx context.Context, sess *session.Session, job *jobs.SimulationJob, input Input) {
	progress := jobs.NewProgress(o.jobStore, job)
	start := time.Now()
	logger := o.logger.With("job_id", job.JobID)

	fail := func(message string) {
		metrics.SimulationRuns.WithLabelValues("error").Inc()
		if err := progress.Fail(ctx, fmt.Errorf("%s", message)); err != nil {
			logger.Error("Failed to record job failure", "error", err)
		}
	}

	if err := progress.Start(ctx, len(config.Agents)); err != nil {
		logger.Error("Failed to start job", "error", err)
		return
	}

	message := o.effectiveMessage(input)

	if err := progress.SetPhase(ctx, jobs.PhaseInterpreting); err != nil {
		logger.Warn("Progress update failed", "error", err)
	}
	result, err := o.interpreter.Interpret(ctx, sess, message)
	if err != nil {
		logger.Error("Interpretation failed", "error", err)
		fail("LLM service error: " + truncate(err.Error(), 100))
		return
	}
	if !result.OK || result.Proposal == nil {
		errMsg := "Could not interpret proposal"
		if len(result.ClarifyingQuestions) > 0 {
			errMsg = "Clarification needed: " + strings.Join(result.ClarifyingQuestions, " ")
		}
		fail(errMsg)
		return
	}

	proposal := result.Proposal
	attachPlacement(proposal, input)
	logger.Info("Interpreted proposal", "title", proposal.Title)

	_ = progress.SetPhaseMessage(ctx, jobs.PhaseAnalyzingImpact, "Analyzing impact of: "+proposal.Title)

	_ = progress.SetPhase(ctx, jobs.PhaseAgentReactions)
	reactions := o.reactor.RunAllStreaming(ctx, sess, agents.RunInput{
		Proposal:         proposal,
		WorldState:       o.worldState(sess, input),
		AgentModels:      input.AgentModels,
		PersonaOverrides: input.PersonaOverrides,
	}, func(reaction models.AgentReaction, zone *models.ZoneSentiment) {
		if err := progress.AgentCompleted(ctx, reaction, zone); err != nil {
			logger.Warn("Failed to record agent completion", "agent_key", reaction.AgentKey, "error", err)
		}
	})
	logger.Info("Collected reactions", "count", len(reactions))

	_ = progress.SetPhase(ctx, jobs.PhaseCoalitionSynthesis)
	zones := agents.AggregateZones(reactions)

	_ = progress.SetPhase(ctx, jobs.PhaseGeneratingTownhall)
	townHall := o.moderator.Generate(ctx, sess, proposal, reactions)
	logger.Info("Generated town hall", "turns", len(townHall.Turns))

	_ = progress.SetPhase(ctx, jobs.PhaseFinalizing)
	response := assembleResponse(sess.ID, proposal, result, reactions, zones, townHall, start)

	if err := progress.Complete(ctx, response); err != nil {
		logger.Error("Failed to record job completion", "error", err)
		return
	}
	metrics.SimulationRuns.WithLabelValues("complete").Inc()
	metrics.SimulationDuration.Observe(time.Since(start).Seconds())
}

// effectiveMessage applies agent-speaker framing when requested.
func (o *Orchestrator) effectiveMessage(input Input) string {
	if input.SpeakerMode != "agent" || input.SpeakerAgentKey == "" {
		return input.Message
	}
	agent := config.GetAgent(input.SpeakerAgentKey)
	if agent == nil {
		return input.Message
	}
	o.logger.Info("Speaking as agent", "agent_key", agent.Key)
	return fmt.Sprintf("[%s (%s) proposes]: %s", agent.DisplayName, agent.Role, input.Message)
}

func (o *Orchestrator) worldState(sess *session.Session, input Input) *models.WorldStateSummary {
	if input.WorldState != nil {
		return input.WorldState
	}
	snapshot := sess.WorldState()
	return &snapshot
}

func attachPlacement(proposal *models.InterpretedProposal, input Input) {
	if len(input.AffectedRegions) > 0 {
		proposal.AffectedRegions = input.AffectedRegions
	}
	if input.ContainingZoneID != "" {
		proposal.ContainingZoneID = input.ContainingZoneID
	}
}

// clarificationResponse is returned when interpretation produced no
// proposal: the assistant asks for more detail and the response carries
// no reactions.
func clarificationResponse(sessionID, message string, result models.InterpretResult, start time.Time) *models.MultiAgentResponse {
	assistantMsg := "I'm not sure I understood your proposal. "
	switch {
	case len(result.ClarifyingQuestions) > 0:
		assistantMsg += "Could you clarify: " + strings.Join(result.ClarifyingQuestions, " ")
	case result.Error != "":
		assistantMsg += "Error: " + result.Error
	default:
		assistantMsg += "Could you describe your proposal in more detail?"
	}

	return &models.MultiAgentResponse{
		SessionID:        sessionID,
		ThreadID:         sessionID,
		AssistantMessage: assistantMsg,
		Reactions:        []models.AgentReaction{},
		Zones:            []models.ZoneSentiment{},
		Receipt:          newReceipt(runHash(message, sessionID), 0, start),
	}
}

func assembleResponse(
	sessionID string,
	proposal *models.InterpretedProposal,
	result models.InterpretResult,
	reactions []models.AgentReaction,
	zones []models.ZoneSentiment,
	townHall *models.TownHallTranscript,
	start time.Time,
) *models.MultiAgentResponse {
	supportCount, opposeCount := 0, 0
	for _, r := range reactions {
		switch r.Stance {
		case models.StanceSupport:
			supportCount++
		case models.StanceOppose:
			opposeCount++
		}
	}
	neutralCount := len(reactions) - supportCount - opposeCount

	var b strings.Builder
	fmt.Fprintf(&b, "**%s**\n\n%s\n\n", proposal.Title, proposal.Summary)
	fmt.Fprintf(&b, "**Community Reaction:** %d support, %d oppose, %d neutral\n\n", supportCount, opposeCount, neutralCount)
	if len(result.Assumptions) > 0 {
		assumptions := result.Assumptions
		if len(assumptions) > 2 {
			assumptions = assumptions[:2]
		}
		fmt.Fprintf(&b, "*Assumptions: %s*", strings.Join(assumptions, ", "))
	}

	return &models.MultiAgentResponse{
		SessionID:        sessionID,
		ThreadID:         sessionID,
		AssistantMessage: b.String(),
		Proposal:         proposal,
		Reactions:        reactions,
		Zones:            zones,
		TownHall:         townHall,
		Receipt:          newReceipt(runHash(proposal.Title, sessionID), len(reactions), start),
	}
}

func newReceipt(hash string, agentCount int, start time.Time) models.SimulationReceipt {
	return models.SimulationReceipt{
		Provider:   "backboard",
		Memory:     "Auto",
		ModelName:  config.DefaultModel,
		AgentCount: agentCount,
		DurationMS: time.Since(start).Milliseconds(),
		RunHash:    hash,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
}

// runHash derives the short per-run fingerprint recorded in receipts.
func runHash(seed, sessionID string) string {
	sum := md5.Sum([]byte(fmt.Sprintf("%s:%s:%s", seed, sessionID, time.Now().UTC().Format(time.RFC3339Nano))))
	return hex.EncodeToString(sum[:])[:12]
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
