package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingston-civic/civicsim/pkg/models"
)

func newMemoryStore() *Store {
	return NewStore(nil, time.Hour, slog.Default())
}

func TestPhaseScheduleSumsToHundred(t *testing.T) {
	total := 0.0
	for _, phase := range phaseOrder {
		total += PhaseWeights[phase]
	}
	assert.Equal(t, 100.0, total)

	assert.Equal(t, 0.0, PhaseStartProgress[PhaseInitializing])
	assert.Equal(t, 5.0, PhaseStartProgress[PhaseInterpreting])
	assert.Equal(t, 25.0, PhaseStartProgress[PhaseAgentReactions])
	assert.Equal(t, 75.0, PhaseStartProgress[PhaseCoalitionSynthesis])
	assert.Equal(t, 95.0, PhaseStartProgress[PhaseFinalizing])
}

func TestCreateAndGet(t *testing.T) {
	s := newMemoryStore()
	ctx := context.Background()

	job, err := s.Create(ctx, "sess-1", map[string]interface{}{"message": "Build a park"})
	require.NoError(t, err)
	assert.NotEmpty(t, job.JobID)
	assert.Equal(t, StatusPending, job.Status)
	assert.Equal(t, PhaseInitializing, job.Phase)
	assert.Equal(t, "Setting up simulation environment...", job.Message)

	got, err := s.Get(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, job.JobID, got.JobID)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreTTL(t *testing.T) {
	s := NewStore(nil, -time.Second, slog.Default())
	ctx := context.Background()

	job, err := s.Create(ctx, "sess-1", nil)
	require.NoError(t, err)

	_, err = s.Get(ctx, job.JobID)
	assert.ErrorIs(t, err, ErrNotFound)

	deleted, err := s.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestProgressThroughPhases(t *testing.T) {
	s := newMemoryStore()
	ctx := context.Background()

	job, err := s.Create(ctx, "sess-1", nil)
	require.NoError(t, err)
	p := NewProgress(s, job)

	require.NoError(t, p.Start(ctx, 7))
	assert.Equal(t, StatusRunning, job.Status)
	assert.NotZero(t, job.StartedAt)

	last := -1.0
	for _, phase := range []Phase{PhaseInterpreting, PhaseAnalyzingImpact, PhaseAgentReactions} {
		require.NoError(t, p.SetPhase(ctx, phase))
		assert.Greater(t, job.Progress, last)
		last = job.Progress
	}
	assert.Equal(t, "Gathering stakeholder reactions...", job.Message)
}

func TestAgentCompletedInterpolatesProgress(t *testing.T) {
	s := newMemoryStore()
	ctx := context.Background()

	job, err := s.Create(ctx, "sess-1", nil)
	require.NoError(t, err)
	p := NewProgress(s, job)
	require.NoError(t, p.Start(ctx, 4))
	require.NoError(t, p.SetPhase(ctx, PhaseAgentReactions))

	zone := models.ZoneSentiment{ZoneID: "downtown", ZoneName: "Downtown Core", Sentiment: models.StanceSupport, Score: 0.7}
	require.NoError(t, p.AgentCompleted(ctx, models.AgentReaction{AgentKey: "downtown", Stance: models.StanceSupport}, &zone))
	assert.Equal(t, 1, job.CompletedAgents)
	assert.InDelta(t, 25+50.0/4, job.Progress, 0.001)
	assert.Equal(t, "Evaluating stakeholder reactions... 1/4", job.Message)
	assert.NotZero(t, job.PartialReactions[0].CompletedAt)

	// A repeated zone replaces in place instead of duplicating.
	zone.Score = -0.2
	require.NoError(t, p.AgentCompleted(ctx, models.AgentReaction{AgentKey: "downtown"}, &zone))
	require.Len(t, job.PartialZones, 1)
	assert.Equal(t, -0.2, job.PartialZones[0].Score)

	require.NoError(t, p.AgentCompleted(ctx, models.AgentReaction{AgentKey: "sydenham"}, nil))
	require.NoError(t, p.AgentCompleted(ctx, models.AgentReaction{AgentKey: "university"}, nil))
	assert.InDelta(t, 75.0, job.Progress, 0.001)
}

func TestGetReturnsSnapshotWhileRunnerMutates(t *testing.T) {
	s := newMemoryStore()
	ctx := context.Background()

	job, err := s.Create(ctx, "sess-1", nil)
	require.NoError(t, err)
	p := NewProgress(s, job)
	require.NoError(t, p.Start(ctx, 21))
	require.NoError(t, p.SetPhase(ctx, PhaseAgentReactions))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 21; i++ {
			_ = p.AgentCompleted(ctx, models.AgentReaction{AgentKey: "downtown"}, nil)
		}
	}()

	// Poll concurrently: each Get must return a self-consistent
	// snapshot that marshals cleanly while the runner appends.
	for i := 0; i < 50; i++ {
		got, err := s.Get(ctx, job.JobID)
		require.NoError(t, err)
		resp := got.ToStatusResponse()
		_, err = json.Marshal(resp)
		require.NoError(t, err)
		assert.Equal(t, resp.CompletedAgents, len(resp.PartialReactions))
	}
	<-done

	// The stored record is a snapshot, not the runner's pointer.
	got, err := s.Get(ctx, job.JobID)
	require.NoError(t, err)
	got.PartialReactions = append(got.PartialReactions, models.AgentReaction{AgentKey: "sydenham"})
	again, err := s.Get(ctx, job.JobID)
	require.NoError(t, err)
	assert.Len(t, again.PartialReactions, 21)
}

func TestCompleteAndFail(t *testing.T) {
	s := newMemoryStore()
	ctx := context.Background()

	job, err := s.Create(ctx, "sess-1", nil)
	require.NoError(t, err)
	p := NewProgress(s, job)

	require.NoError(t, p.Complete(ctx, &models.MultiAgentResponse{SessionID: "sess-1"}))
	assert.Equal(t, StatusComplete, job.Status)
	assert.Equal(t, 100.0, job.Progress)
	assert.NotZero(t, job.CompletedAt)

	resp := job.ToStatusResponse()
	assert.Equal(t, 100.0, resp.Progress)
	assert.NotNil(t, resp.PartialReactions)
	assert.NotNil(t, resp.PartialZones)

	failed, err := s.Create(ctx, "sess-1", nil)
	require.NoError(t, err)
	fp := NewProgress(s, failed)
	require.NoError(t, fp.Fail(ctx, errors.New("upstream unavailable")))
	assert.Equal(t, StatusError, failed.Status)
	assert.Equal(t, "upstream unavailable", failed.Error)
}
