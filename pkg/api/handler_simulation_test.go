package api

import (
	"context"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingston-civic/civicsim/pkg/agents"
	"github.com/kingston-civic/civicsim/pkg/backboard"
	"github.com/kingston-civic/civicsim/pkg/config"
	"github.com/kingston-civic/civicsim/pkg/jobs"
	"github.com/kingston-civic/civicsim/pkg/ledger"
	"github.com/kingston-civic/civicsim/pkg/models"
	"github.com/kingston-civic/civicsim/pkg/session"
	"github.com/kingston-civic/civicsim/pkg/simulation"
)

func TestChatFullSimulation(t *testing.T) {
	env := newTestEnv(t, happyGateway(), nil)

	recorder := env.do(t, http.MethodPost, "/v1/ai/chat", AIChatRequest{
		Message:    "Make buses free for six months",
		ScenarioID: "scen-1",
		SessionID:  "sess-chat",
	})
	require.Equal(t, http.StatusOK, recorder.Code)

	var resp models.MultiAgentResponse
	decodeBody(t, recorder, &resp)
	assert.Equal(t, "sess-chat", resp.SessionID)
	require.NotNil(t, resp.Proposal)
	assert.Equal(t, "Free Transit Pilot", resp.Proposal.Title)
	assert.Len(t, resp.Reactions, len(config.Agents))
	assert.Len(t, resp.Zones, len(config.Zones))
	assert.Equal(t, "backboard", resp.Receipt.Provider)
}

func TestChatEmptyMessage(t *testing.T) {
	env := newTestEnv(t, happyGateway(), nil)

	recorder := env.do(t, http.MethodPost, "/v1/ai/chat", AIChatRequest{
		Message:    "   ",
		ScenarioID: "scen-1",
	})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "Message cannot be empty")
}

// gatewayDown fails every send with the typed gateway error.
type gatewayDown struct {
	fakeGateway
}

func (g *gatewayDown) SendMessage(context.Context, string, string, string, string) (string, error) {
	return "", &backboard.StatusError{Status: http.StatusBadGateway, Body: "upstream offline"}
}

func TestChatUpstreamFailureReturns502(t *testing.T) {
	env := newTestEnv(t, happyGateway(), nil)
	// Swap in a server whose orchestrator sees the failing gateway.
	down := &gatewayDown{}
	env = &testEnv{server: NewServer(Deps{
		Orchestrator: simulation.New(down, session.NewStore(), env.jobStore, slog.Default()),
		DM:           agents.NewDirectMessenger(down, slog.Default()),
		Adopter:      agents.NewAdopter(down, slog.Default()),
		Sessions:     session.NewStore(),
		JobStore:     env.jobStore,
		Ledger:       ledger.NewService(nil, false, slog.Default()),
		Logger:       slog.Default(),
	})}

	recorder := env.do(t, http.MethodPost, "/v1/ai/chat", AIChatRequest{
		Message:    "Build a park",
		ScenarioID: "scen-1",
	})
	assert.Equal(t, http.StatusBadGateway, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "status 502")
}

func TestStartSimulationAndPollToCompletion(t *testing.T) {
	env := newTestEnv(t, happyGateway(), nil)

	recorder := env.do(t, http.MethodPost, "/v1/ai/simulate", AIChatRequest{
		Message:    "Make buses free",
		ScenarioID: "scen-1",
		SessionID:  "sess-prog",
	})
	require.Equal(t, http.StatusOK, recorder.Code)

	var started SimulationStartResponse
	decodeBody(t, recorder, &started)
	assert.Equal(t, "pending", started.Status)
	assert.Equal(t, "Simulation starting...", started.Message)
	require.NotEmpty(t, started.JobID)

	require.Eventually(t, func() bool {
		poll := env.do(t, http.MethodGet, "/v1/ai/simulate/"+started.JobID, nil)
		if poll.Code != http.StatusOK {
			return false
		}
		var status jobs.StatusResponse
		decodeBody(t, poll, &status)
		return status.Status == jobs.StatusComplete
	}, 5*time.Second, 20*time.Millisecond)

	poll := env.do(t, http.MethodGet, "/v1/ai/simulate/"+started.JobID, nil)
	var status jobs.StatusResponse
	decodeBody(t, poll, &status)
	assert.Equal(t, 100.0, status.Progress)
	assert.Len(t, status.PartialReactions, len(config.Agents))
	require.NotNil(t, status.Result)
	assert.Equal(t, "Free Transit Pilot", status.Result.Proposal.Title)
}

func TestSimulationStatusUnknownJob(t *testing.T) {
	env := newTestEnv(t, happyGateway(), nil)

	recorder := env.do(t, http.MethodGet, "/v1/ai/simulate/no-such-job", nil)
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestStartSimulationClarificationEndsInError(t *testing.T) {
	gw := (&fakeGateway{}).on("USER MESSAGE:", clarifyingReply)
	env := newTestEnv(t, gw, nil)

	recorder := env.do(t, http.MethodPost, "/v1/ai/simulate", AIChatRequest{
		Message:    "improve things",
		ScenarioID: "scen-1",
		SessionID:  "sess-clarify",
	})
	require.Equal(t, http.StatusOK, recorder.Code)

	var started SimulationStartResponse
	decodeBody(t, recorder, &started)

	require.Eventually(t, func() bool {
		poll := env.do(t, http.MethodGet, "/v1/ai/simulate/"+started.JobID, nil)
		var status jobs.StatusResponse
		decodeBody(t, poll, &status)
		return status.Status == jobs.StatusError
	}, 5*time.Second, 20*time.Millisecond)

	poll := env.do(t, http.MethodGet, "/v1/ai/simulate/"+started.JobID, nil)
	var status jobs.StatusResponse
	decodeBody(t, poll, &status)
	assert.Equal(t, "Clarification needed: Which routes?", status.Error)
}

func TestHealthWithoutDatabase(t *testing.T) {
	env := newTestEnv(t, happyGateway(), nil)

	recorder := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "healthy")
}
