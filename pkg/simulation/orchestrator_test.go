package simulation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingston-civic/civicsim/pkg/config"
	"github.com/kingston-civic/civicsim/pkg/jobs"
	"github.com/kingston-civic/civicsim/pkg/session"
)

const (
	interpretReply = `{
		"ok": true,
		"proposal": {
			"type": "build",
			"title": "Waterfront Park",
			"summary": "A new park near the waterfront.",
			"location": {"kind": "zone", "zone_ids": ["downtown"]},
			"parameters": {"scale": 1.0}
		},
		"assumptions": ["City-owned land", "Standard budget", "No heritage review"],
		"confidence": 0.9
	}`
	reactionReply = `{"stance": "support", "intensity": 0.7, "quote": "Sounds good to me."}`
	townhallReply = `{
		"moderator_summary": "A constructive debate.",
		"turns": [
			{"speaker": "Moderator", "text": "Welcome."},
			{"speaker": "Marcus Chen", "text": "Great for business."},
			{"speaker": "Patricia Lawson", "text": "Mind the traffic."},
			{"speaker": "Jordan Okafor", "text": "Students approve."},
			{"speaker": "Moderator", "text": "Noted."},
			{"speaker": "Moderator", "text": "Closing with options."}
		],
		"compromise_options": ["Phase it in"]
	}`
)

// scriptedGateway answers by first matching substring rule.
type scriptedGateway struct {
	mu    sync.Mutex
	rules [][2]string
	errOn string

	threadSeq int32
}

func (g *scriptedGateway) on(contains, reply string) *scriptedGateway {
	g.rules = append(g.rules, [2]string{contains, reply})
	return g
}

func (g *scriptedGateway) CreateAssistant(context.Context, string, string) (string, error) {
	return "asst", nil
}

func (g *scriptedGateway) CreateThread(context.Context, string) (string, error) {
	return fmt.Sprintf("thread-%d", atomic.AddInt32(&g.threadSeq, 1)), nil
}

func (g *scriptedGateway) SendMessage(_ context.Context, _, content, _, _ string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.errOn != "" && strings.Contains(content, g.errOn) {
		return "", fmt.Errorf("scripted upstream failure")
	}
	for _, rule := range g.rules {
		if strings.Contains(content, rule[0]) {
			return rule[1], nil
		}
	}
	return "", fmt.Errorf("no scripted reply")
}

func happyGateway() *scriptedGateway {
	return (&scriptedGateway{}).
		on("USER MESSAGE:", interpretReply).
		on("A civic proposal has been made", reactionReply).
		on("town hall meeting", townhallReply)
}

func newOrchestrator(gw *scriptedGateway) (*Orchestrator, *jobs.Store) {
	jobStore := jobs.NewStore(nil, time.Hour, slog.Default())
	return New(gw, session.NewStore(), jobStore, slog.Default()), jobStore
}

func TestRunSyncFullPipeline(t *testing.T) {
	o, _ := newOrchestrator(happyGateway())

	resp, err := o.RunSync(context.Background(), Input{
		Message:    "Build a new park near the waterfront",
		ScenarioID: "scen-1",
		SessionID:  "sess-1",
	})
	require.NoError(t, err)

	assert.Equal(t, "sess-1", resp.SessionID)
	assert.Equal(t, "sess-1", resp.ThreadID)
	require.NotNil(t, resp.Proposal)
	assert.Equal(t, "Waterfront Park", resp.Proposal.Title)
	assert.Len(t, resp.Reactions, len(config.Agents))
	assert.Len(t, resp.Zones, len(config.Zones))
	require.NotNil(t, resp.TownHall)
	assert.Len(t, resp.TownHall.Turns, 6)

	assert.Contains(t, resp.AssistantMessage, "**Waterfront Park**")
	assert.Contains(t, resp.AssistantMessage, fmt.Sprintf("%d support, 0 oppose, 0 neutral", len(config.Agents)))
	// Only the first two assumptions are surfaced.
	assert.Contains(t, resp.AssistantMessage, "City-owned land, Standard budget")
	assert.NotContains(t, resp.AssistantMessage, "heritage")

	assert.Equal(t, "backboard", resp.Receipt.Provider)
	assert.Equal(t, "Auto", resp.Receipt.Memory)
	assert.Equal(t, len(config.Agents), resp.Receipt.AgentCount)
	assert.Len(t, resp.Receipt.RunHash, 12)
	assert.NotEmpty(t, resp.Receipt.Timestamp)
}

func TestRunSyncClarification(t *testing.T) {
	gw := (&scriptedGateway{}).on("USER MESSAGE:", `{"ok": false, "clarifying_questions": ["What should be built?", "Where exactly?"]}`)
	o, _ := newOrchestrator(gw)

	resp, err := o.RunSync(context.Background(), Input{Message: "do something nice", ScenarioID: "scen-1"})
	require.NoError(t, err)

	assert.Contains(t, resp.AssistantMessage, "Could you clarify: What should be built? Where exactly?")
	assert.Nil(t, resp.Proposal)
	assert.Zero(t, resp.Receipt.AgentCount)
	assert.Len(t, resp.Receipt.RunHash, 12)
	// Scenario-derived session fallback.
	assert.Equal(t, "scenario_scen-1", resp.SessionID)

	// Reactions and zones serialize as empty arrays, not null.
	payload, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.Contains(t, string(payload), `"reactions":[]`)
	assert.Contains(t, string(payload), `"zones":[]`)
}

func TestRunSyncUpstreamErrorPropagates(t *testing.T) {
	gw := &scriptedGateway{errOn: "USER MESSAGE:"}
	o, _ := newOrchestrator(gw)

	_, err := o.RunSync(context.Background(), Input{Message: "build a park", ScenarioID: "s"})
	assert.Error(t, err)
}

func TestEffectiveMessageSpeakerFraming(t *testing.T) {
	o, _ := newOrchestrator(&scriptedGateway{})

	framed := o.effectiveMessage(Input{
		Message:         "Let's pedestrianize Princess Street",
		SpeakerMode:     "agent",
		SpeakerAgentKey: "downtown",
	})
	assert.Equal(t, "[Marcus Chen (Downtown Business Owner) proposes]: Let's pedestrianize Princess Street", framed)

	// Unknown keys and user mode leave the message untouched.
	assert.Equal(t, "same", o.effectiveMessage(Input{Message: "same", SpeakerMode: "agent", SpeakerAgentKey: "nobody"}))
	assert.Equal(t, "same", o.effectiveMessage(Input{Message: "same", SpeakerMode: "user"}))
}

func TestStartProgressiveCompletes(t *testing.T) {
	o, jobStore := newOrchestrator(happyGateway())
	ctx := context.Background()

	job, err := o.StartProgressive(ctx, Input{Message: "Build a park", ScenarioID: "scen-1", SessionID: "sess-p"})
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusPending, job.Status)

	require.Eventually(t, func() bool {
		got, err := jobStore.Get(ctx, job.JobID)
		return err == nil && got.Status == jobs.StatusComplete
	}, 5*time.Second, 10*time.Millisecond)

	got, err := jobStore.Get(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, 100.0, got.Progress)
	assert.Equal(t, len(config.Agents), got.CompletedAgents)
	assert.Len(t, got.PartialReactions, len(config.Agents))
	assert.Len(t, got.PartialZones, len(config.Agents))
	require.NotNil(t, got.Result)
	assert.Equal(t, "Waterfront Park", got.Result.Proposal.Title)
	for _, r := range got.PartialReactions {
		assert.NotZero(t, r.CompletedAt)
	}
}

func TestStartProgressiveRecordsSessionMarkers(t *testing.T) {
	o, _ := newOrchestrator(happyGateway())

	job, err := o.StartProgressive(context.Background(), Input{Message: "Build a park", SessionID: "sess-m", ScenarioID: "s"})
	require.NoError(t, err)

	sess := o.sessions.GetOrCreate("sess-m")
	assert.Equal(t, job.JobID, sess.LastJobID())
	edge, ok := sess.Relationship("user", "townhall")
	require.True(t, ok)
	assert.Zero(t, edge.Score)
	assert.Equal(t, "Initiated simulation", edge.Reason)
}

func TestStartProgressiveClarificationFailsJob(t *testing.T) {
	gw := (&scriptedGateway{}).on("USER MESSAGE:", `{"ok": false, "clarifying_questions": ["Which street?"]}`)
	o, jobStore := newOrchestrator(gw)
	ctx := context.Background()

	job, err := o.StartProgressive(ctx, Input{Message: "fix the street", SessionID: "sess-f", ScenarioID: "s"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, err := jobStore.Get(ctx, job.JobID)
		return err == nil && got.Status == jobs.StatusError
	}, 5*time.Second, 10*time.Millisecond)

	got, err := jobStore.Get(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, "Clarification needed: Which street?", got.Error)
}
