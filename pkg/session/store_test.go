package session

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingston-civic/civicsim/pkg/models"
)

func TestGetOrCreateAssignsUUIDWhenEmpty(t *testing.T) {
	store := NewStore()
	sess := store.GetOrCreate("")
	assert.NotEmpty(t, sess.ID)

	again := store.GetOrCreate(sess.ID)
	assert.Same(t, sess, again)
}

func TestGetUnknownSession(t *testing.T) {
	store := NewStore()
	_, err := store.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEnsureAgentThreadCreatesOnce(t *testing.T) {
	sess := newSession("s1")
	calls := 0
	create := func(ctx context.Context) (string, error) {
		calls++
		return fmt.Sprintf("thr-%d", calls), nil
	}

	var wg sync.WaitGroup
	results := make([]string, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			thread, err := sess.EnsureAgentThread(context.Background(), "downtown", create)
			require.NoError(t, err)
			results[i] = thread
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, calls, "thread creation must happen at most once")
	for _, r := range results {
		assert.Equal(t, "thr-1", r)
	}
}

func TestEnsureAgentThreadFailureDoesNotBind(t *testing.T) {
	sess := newSession("s1")
	_, err := sess.EnsureAgentThread(context.Background(), "downtown", func(ctx context.Context) (string, error) {
		return "", fmt.Errorf("gateway down")
	})
	require.Error(t, err)

	// A later successful attempt binds the thread.
	thread, err := sess.EnsureAgentThread(context.Background(), "downtown", func(ctx context.Context) (string, error) {
		return "thr-ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "thr-ok", thread)
}

func TestDMPairKeyIsCanonical(t *testing.T) {
	assert.Equal(t, DMPairKey("sydenham", "downtown"), DMPairKey("downtown", "sydenham"))
	assert.Equal(t, "downtown|sydenham", DMPairKey("sydenham", "downtown"))
}

func TestUpdateRelationshipClamps(t *testing.T) {
	sess := newSession("s1")

	score := sess.UpdateRelationship("user", "downtown", 0.7, UpdateRelationshipInput{Reason: "supportive DM"})
	assert.InDelta(t, 0.7, score, 1e-9)

	score = sess.UpdateRelationship("user", "downtown", 0.7, UpdateRelationshipInput{})
	assert.InDelta(t, 1.0, score, 1e-9, "score clamps at +1")

	score = sess.UpdateRelationship("user", "downtown", -3.5, UpdateRelationshipInput{})
	assert.InDelta(t, -1.0, score, 1e-9, "score clamps at -1")
}

func TestUpdateRelationshipTruncatesMessage(t *testing.T) {
	sess := newSession("s1")
	long := ""
	for i := 0; i < 40; i++ {
		long += "abcdef"
	}
	sess.UpdateRelationship("a", "b", 0.1, UpdateRelationshipInput{Message: long})

	edge, ok := sess.Relationship("a", "b")
	require.True(t, ok)
	assert.Len(t, edge.LastMessage, 120)
}

func TestTopRelationshipsOrdersByAbsScore(t *testing.T) {
	sess := newSession("s1")
	sess.UpdateRelationship("a", "b", 0.2, UpdateRelationshipInput{})
	sess.UpdateRelationship("c", "d", -0.9, UpdateRelationshipInput{})
	sess.UpdateRelationship("e", "f", 0.5, UpdateRelationshipInput{})

	top := sess.TopRelationships(2)
	require.Len(t, top, 2)
	assert.Equal(t, "c", top[0].From)
	assert.Equal(t, "e", top[1].From)
}

func TestWorldStateVersionIsMonotonic(t *testing.T) {
	sess := newSession("s1")
	v1 := sess.AppendAdoptedPolicy(models.AdoptedPolicySummary{Title: "Transit levy", Outcome: "adopted", VotePct: 62})
	v2 := sess.AppendPlacedItem(models.PlacedItemSummary{Title: "Waterfront park", Type: "park"})
	assert.Equal(t, 1, v1)
	assert.Equal(t, 2, v2)

	snapshot := sess.WorldState()
	assert.Equal(t, 2, snapshot.Version)
	require.Len(t, snapshot.AdoptedPolicies, 1)
	require.Len(t, snapshot.PlacedItems, 1)
}

func TestWorldStateIncludesTopShifts(t *testing.T) {
	sess := newSession("s1")
	sess.UpdateRelationship("downtown", "sydenham", -0.6, UpdateRelationshipInput{Reason: "heated DM"})
	sess.UpdateRelationship("user", "downtown", 0.2, UpdateRelationshipInput{})

	snapshot := sess.WorldState()
	require.Len(t, snapshot.TopRelationshipShifts, 2)
	assert.Equal(t, "downtown", snapshot.TopRelationshipShifts[0].FromAgent)
	assert.Equal(t, "heated DM", snapshot.TopRelationshipShifts[0].Reason)
}
