package api

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingston-civic/civicsim/pkg/agents"
	"github.com/kingston-civic/civicsim/pkg/config"
	"github.com/kingston-civic/civicsim/pkg/session"
	"github.com/kingston-civic/civicsim/pkg/simulation"
)

func TestSendDM(t *testing.T) {
	env := newTestEnv(t, happyGateway(), nil)

	recorder := env.do(t, http.MethodPost, "/v1/ai/dm", DMRequest{
		SessionID:    "sess-dm",
		FromAgentKey: "downtown",
		ToAgentKey:   "north_end",
		Message:      "Can we find middle ground on the transit plan?",
	})
	require.Equal(t, http.StatusOK, recorder.Code)

	var result agents.DMResult
	decodeBody(t, recorder, &result)
	assert.Equal(t, dmReply, result.Reply)
	assert.Equal(t, 0.2, result.StanceUpdate.RelationshipDelta)
	assert.Equal(t, 0.2, result.RelationshipScore)

	// The delta lands on the recipient's view of the speaker.
	sess, err := env.sessions.Get("sess-dm")
	require.NoError(t, err)
	edge, ok := sess.Relationship("north_end", "downtown")
	require.True(t, ok)
	assert.Equal(t, 0.2, edge.Score)
}

func TestSendDMUnknownAgent(t *testing.T) {
	env := newTestEnv(t, happyGateway(), nil)

	recorder := env.do(t, http.MethodPost, "/v1/ai/dm", DMRequest{
		SessionID:    "sess-dm",
		FromAgentKey: "downtown",
		ToAgentKey:   "nobody",
		Message:      "hello",
	})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "unknown agent key")
}

func TestAdoptRecordsDecision(t *testing.T) {
	env := newTestEnv(t, happyGateway(), nil)

	// A prior simulation creates the agent threads the broadcast hits.
	chat := env.do(t, http.MethodPost, "/v1/ai/chat", AIChatRequest{
		Message:    "Make buses free",
		ScenarioID: "scen-1",
		SessionID:  "sess-adopt",
	})
	require.Equal(t, http.StatusOK, chat.Code)

	recorder := env.do(t, http.MethodPost, "/v1/ai/adopt", AdoptRequest{
		SessionID: "sess-adopt",
		AdoptedEvent: AdoptedEventRequest{
			ID:        "evt-1",
			Timestamp: "2026-08-24T12:00:00Z",
			Proposal: AdoptedProposalData{
				Type:    "policy",
				Title:   "Free Transit Pilot",
				Summary: "Fare-free buses for six months.",
			},
			Outcome:     "adopted",
			VoteSummary: agents.VoteSummary{Support: 5, Oppose: 1, Neutral: 1, AgreementPct: 71},
		},
	})
	require.Equal(t, http.StatusOK, recorder.Code)

	var resp AdoptResponse
	decodeBody(t, recorder, &resp)
	assert.True(t, resp.Success)
	assert.Equal(t, "Free Transit Pilot", resp.ProposalTitle)
	assert.Equal(t, "adopted", resp.Outcome)
	assert.Equal(t, 1, resp.WorldStateVersion)
	// All 7 agent threads plus interpreter and townhall.
	assert.Len(t, resp.ThreadsUpdated, len(config.Agents)+2)

	var sawNote bool
	for _, msg := range env.gateway.sentMessages() {
		if strings.Contains(msg, "[DECISION RECORD - ADOPTED]") {
			sawNote = true
		}
	}
	assert.True(t, sawNote)
}

func TestRelationships(t *testing.T) {
	env := newTestEnv(t, happyGateway(), nil)

	sess := env.sessions.GetOrCreate("sess-rel")
	sess.UpdateRelationship("downtown", "north_end", 0.4, session.UpdateRelationshipInput{Reason: "Allies on transit"})
	sess.UpdateRelationship("sydenham", "downtown", -0.7, session.UpdateRelationshipInput{Reason: "Heritage dispute"})

	recorder := env.do(t, http.MethodGet, "/v1/ai/relationships/sess-rel", nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	var resp struct {
		SessionID string             `json:"session_id"`
		Edges     []relationshipEdge `json:"edges"`
	}
	decodeBody(t, recorder, &resp)
	require.Len(t, resp.Edges, 2)
	// Ordered by |score| descending.
	assert.Equal(t, "sydenham", resp.Edges[0].From)
	assert.Equal(t, -0.7, resp.Edges[0].Score)
	assert.Equal(t, "Heritage dispute", resp.Edges[0].Reason)
}

func TestRelationshipsUnknownSession(t *testing.T) {
	env := newTestEnv(t, happyGateway(), nil)

	recorder := env.do(t, http.MethodGet, "/v1/ai/relationships/never-seen", nil)
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestGraphData(t *testing.T) {
	env := newTestEnv(t, happyGateway(), nil)

	recorder := env.do(t, http.MethodGet, "/v1/ai/graph-data/sess-graph", nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	var graph simulation.GraphData
	decodeBody(t, recorder, &graph)
	assert.Equal(t, "sess-graph", graph.SessionID)
	assert.Len(t, graph.Nodes, len(config.Agents)+3)
}

func TestActiveCallsEmptySession(t *testing.T) {
	env := newTestEnv(t, happyGateway(), nil)

	recorder := env.do(t, http.MethodGet, "/v1/ai/active-calls/sess-idle", nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	var calls simulation.ActiveCalls
	decodeBody(t, recorder, &calls)
	assert.Empty(t, calls.Active)
	assert.Empty(t, calls.RecentlyCompleted)
}
