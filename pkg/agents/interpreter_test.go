package agents

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingston-civic/civicsim/pkg/session"
)

func testSession(t *testing.T, id string) *session.Session {
	t.Helper()
	return session.NewStore().GetOrCreate(id)
}

func TestInterpretParsesProposal(t *testing.T) {
	gw := newFakeGateway().on("USER MESSAGE:", `{
		"ok": true,
		"proposal": {
			"type": "build",
			"title": "Waterfront Park",
			"summary": "A new park near the waterfront.",
			"location": {"kind": "zone", "zone_ids": ["downtown", "waterfront_west"]},
			"parameters": {"scale": 2.0, "budget_millions": 5, "target_group": ["families", "students"]}
		},
		"assumptions": ["Assumed city-owned land"],
		"confidence": 0.9
	}`)

	interp := NewInterpreter(gw, slog.Default())
	result, err := interp.Interpret(context.Background(), testSession(t, "s1"), "Build a park near the waterfront")
	require.NoError(t, err)

	require.True(t, result.OK)
	require.NotNil(t, result.Proposal)
	assert.Equal(t, "build", result.Proposal.Type)
	assert.Equal(t, "Waterfront Park", result.Proposal.Title)
	assert.Equal(t, []string{"downtown", "waterfront_west"}, result.Proposal.Location.ZoneIDs)
	assert.Equal(t, 2.0, result.Proposal.Parameters.Scale)
	require.NotNil(t, result.Proposal.Parameters.BudgetMillions)
	assert.Equal(t, "families, students", result.Proposal.Parameters.TargetGroup)
	assert.Equal(t, 0.9, result.Confidence)
}

func TestInterpretClarificationPath(t *testing.T) {
	gw := newFakeGateway().on("USER MESSAGE:", `{
		"ok": false,
		"clarifying_questions": ["What should be built?", "Where?"]
	}`)

	interp := NewInterpreter(gw, slog.Default())
	result, err := interp.Interpret(context.Background(), testSession(t, "s2"), "do something")
	require.NoError(t, err)

	assert.False(t, result.OK)
	assert.Nil(t, result.Proposal)
	assert.Len(t, result.ClarifyingQuestions, 2)
}

func TestInterpretParseFailureIsNotAnError(t *testing.T) {
	gw := newFakeGateway().on("USER MESSAGE:", "Sure! I think a park would be lovely.")

	interp := NewInterpreter(gw, slog.Default())
	result, err := interp.Interpret(context.Background(), testSession(t, "s3"), "build a park")
	require.NoError(t, err)

	assert.False(t, result.OK)
	assert.Contains(t, result.Error, "Failed to parse")
}

func TestInterpretUpstreamErrorPropagates(t *testing.T) {
	upstream := errors.New("gateway down")
	gw := newFakeGateway().onError("USER MESSAGE:", upstream)

	interp := NewInterpreter(gw, slog.Default())
	_, err := interp.Interpret(context.Background(), testSession(t, "s4"), "build a park")
	assert.ErrorIs(t, err, upstream)
}

func TestInterpretReusesThreadAcrossCalls(t *testing.T) {
	gw := newFakeGateway().on("USER MESSAGE:", `{"ok": true, "proposal": {"type": "policy", "title": "T", "summary": "S"}}`)
	sess := testSession(t, "s5")

	interp := NewInterpreter(gw, slog.Default())
	_, err := interp.Interpret(context.Background(), sess, "first")
	require.NoError(t, err)
	_, err = interp.Interpret(context.Background(), sess, "second")
	require.NoError(t, err)

	sent := gw.sentMessages()
	require.Len(t, sent, 2)
	assert.Equal(t, sent[0].ThreadID, sent[1].ThreadID)
}
