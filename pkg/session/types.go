package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kingston-civic/civicsim/pkg/models"
)

// RelationshipEdge is one directed edge in a session's relationship
// graph. Scores stay in [-1, +1].
type RelationshipEdge struct {
	From         string    `json:"from"`
	To           string    `json:"to"`
	Score        float64   `json:"score"`
	Reason       string    `json:"reason,omitempty"`
	LastMessage  string    `json:"last_message,omitempty"`
	StanceBefore string    `json:"stance_before,omitempty"`
	StanceAfter  string    `json:"stance_after,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Session holds all per-session state: upstream assistant and thread
// handles, the relationship graph, the world-state snapshot, and the
// most recent job id. All methods are safe for concurrent use.
//
// Assistant and thread ids are opaque capabilities owned by the
// upstream; once stored they are never overwritten.
type Session struct {
	ID string

	mu sync.RWMutex
	// createMu serializes lazy assistant/thread creation so that two
	// concurrent requests never create duplicate upstream handles.
	createMu sync.Mutex

	interpreterAssistantID string
	interpreterThreadID    string

	reactorAssistantID string
	agentThreads       map[string]string

	townhallAssistantID string
	townhallThreadID    string

	dmAssistantID string
	dmThreads     map[string]string

	relationships map[string]*RelationshipEdge

	worldState models.WorldStateSummary

	lastJobID string
}

func newSession(id string) *Session {
	return &Session{
		ID:            id,
		agentThreads:  make(map[string]string),
		dmThreads:     make(map[string]string),
		relationships: make(map[string]*RelationshipEdge),
	}
}

// DMPairKey canonicalizes an agent pair so both directions share one
// thread.
func DMPairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

func relationshipKey(from, to string) string {
	return from + "->" + to
}

// CreatePairFunc creates an assistant+thread pair upstream.
type CreatePairFunc func(ctx context.Context) (assistantID, threadID string, err error)

// CreateFunc creates a single upstream handle.
type CreateFunc func(ctx context.Context) (string, error)

// EnsureInterpreter returns the session's interpreter handles, creating
// them on first use. Creation is double-checked so it happens at most
// once per session.
func (s *Session) EnsureInterpreter(ctx context.Context, create CreatePairFunc) (string, string, error) {
	s.mu.RLock()
	asst, thread := s.interpreterAssistantID, s.interpreterThreadID
	s.mu.RUnlock()
	if asst != "" && thread != "" {
		return asst, thread, nil
	}

	s.createMu.Lock()
	defer s.createMu.Unlock()
	s.mu.RLock()
	asst, thread = s.interpreterAssistantID, s.interpreterThreadID
	s.mu.RUnlock()
	if asst != "" && thread != "" {
		return asst, thread, nil
	}

	asst, thread, err := create(ctx)
	if err != nil {
		return "", "", err
	}
	s.mu.Lock()
	s.interpreterAssistantID = asst
	s.interpreterThreadID = thread
	s.mu.Unlock()
	return asst, thread, nil
}

// EnsureTownhall returns the session's moderator handles, creating them
// on first use.
func (s *Session) EnsureTownhall(ctx context.Context, create CreatePairFunc) (string, string, error) {
	s.mu.RLock()
	asst, thread := s.townhallAssistantID, s.townhallThreadID
	s.mu.RUnlock()
	if asst != "" && thread != "" {
		return asst, thread, nil
	}

	s.createMu.Lock()
	defer s.createMu.Unlock()
	s.mu.RLock()
	asst, thread = s.townhallAssistantID, s.townhallThreadID
	s.mu.RUnlock()
	if asst != "" && thread != "" {
		return asst, thread, nil
	}

	asst, thread, err := create(ctx)
	if err != nil {
		return "", "", err
	}
	s.mu.Lock()
	s.townhallAssistantID = asst
	s.townhallThreadID = thread
	s.mu.Unlock()
	return asst, thread, nil
}

// EnsureReactorAssistant returns the shared reactor assistant id (one
// per session, not one per agent), creating it on first use.
func (s *Session) EnsureReactorAssistant(ctx context.Context, create CreateFunc) (string, error) {
	s.mu.RLock()
	asst := s.reactorAssistantID
	s.mu.RUnlock()
	if asst != "" {
		return asst, nil
	}

	s.createMu.Lock()
	defer s.createMu.Unlock()
	s.mu.RLock()
	asst = s.reactorAssistantID
	s.mu.RUnlock()
	if asst != "" {
		return asst, nil
	}

	asst, err := create(ctx)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.reactorAssistantID = asst
	s.mu.Unlock()
	return asst, nil
}

// EnsureAgentThread returns the agent's private thread id, creating it
// on first use.
func (s *Session) EnsureAgentThread(ctx context.Context, agentKey string, create CreateFunc) (string, error) {
	s.mu.RLock()
	thread := s.agentThreads[agentKey]
	s.mu.RUnlock()
	if thread != "" {
		return thread, nil
	}

	s.createMu.Lock()
	defer s.createMu.Unlock()
	s.mu.RLock()
	thread = s.agentThreads[agentKey]
	s.mu.RUnlock()
	if thread != "" {
		return thread, nil
	}

	thread, err := create(ctx)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.agentThreads[agentKey] = thread
	s.mu.Unlock()
	return thread, nil
}

// EnsureDMAssistant returns the shared direct-message assistant id,
// creating it on first use.
func (s *Session) EnsureDMAssistant(ctx context.Context, create CreateFunc) (string, error) {
	s.mu.RLock()
	asst := s.dmAssistantID
	s.mu.RUnlock()
	if asst != "" {
		return asst, nil
	}

	s.createMu.Lock()
	defer s.createMu.Unlock()
	s.mu.RLock()
	asst = s.dmAssistantID
	s.mu.RUnlock()
	if asst != "" {
		return asst, nil
	}

	asst, err := create(ctx)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.dmAssistantID = asst
	s.mu.Unlock()
	return asst, nil
}

// EnsureDMThread returns the pair's direct-message thread id, creating
// it on first use. pairKey comes from DMPairKey.
func (s *Session) EnsureDMThread(ctx context.Context, pairKey string, create CreateFunc) (string, error) {
	s.mu.RLock()
	thread := s.dmThreads[pairKey]
	s.mu.RUnlock()
	if thread != "" {
		return thread, nil
	}

	s.createMu.Lock()
	defer s.createMu.Unlock()
	s.mu.RLock()
	thread = s.dmThreads[pairKey]
	s.mu.RUnlock()
	if thread != "" {
		return thread, nil
	}

	thread, err := create(ctx)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.dmThreads[pairKey] = thread
	s.mu.Unlock()
	return thread, nil
}

// AgentThread returns the stored thread id for an agent, if any.
func (s *Session) AgentThread(agentKey string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	thread, ok := s.agentThreads[agentKey]
	return thread, ok
}

// AgentThreads returns a copy of the agent→thread map.
func (s *Session) AgentThreads() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	threads := make(map[string]string, len(s.agentThreads))
	for k, v := range s.agentThreads {
		threads[k] = v
	}
	return threads
}

// InterpreterThread returns the interpreter thread id, if created.
func (s *Session) InterpreterThread() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.interpreterThreadID, s.interpreterThreadID != ""
}

// TownhallThread returns the moderator thread id, if created.
func (s *Session) TownhallThread() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.townhallThreadID, s.townhallThreadID != ""
}

// DMThread returns the thread id for a canonical pair key, if created.
func (s *Session) DMThread(pairKey string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	thread, ok := s.dmThreads[pairKey]
	return thread, ok
}

// DMThreads returns a copy of the pair→thread map.
func (s *Session) DMThreads() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	threads := make(map[string]string, len(s.dmThreads))
	for k, v := range s.dmThreads {
		threads[k] = v
	}
	return threads
}

// UpdateRelationshipInput carries optional context for an edge update.
type UpdateRelationshipInput struct {
	Reason       string
	Message      string
	StanceBefore string
	StanceAfter  string
}

const maxEdgeMessageLen = 120

// UpdateRelationship atomically applies delta to the from→to edge,
// creating it at zero if absent, clamps the score to [-1, +1], and
// records the update context. Returns the new score.
func (s *Session) UpdateRelationship(from, to string, delta float64, input UpdateRelationshipInput) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := relationshipKey(from, to)
	edge, ok := s.relationships[key]
	if !ok {
		edge = &RelationshipEdge{From: from, To: to}
		s.relationships[key] = edge
	}

	edge.Score = clamp(edge.Score+delta, -1, 1)
	if input.Reason != "" {
		edge.Reason = input.Reason
	}
	if input.Message != "" {
		edge.LastMessage = truncate(input.Message, maxEdgeMessageLen)
	}
	if input.StanceBefore != "" {
		edge.StanceBefore = input.StanceBefore
	}
	if input.StanceAfter != "" {
		edge.StanceAfter = input.StanceAfter
	}
	edge.UpdatedAt = time.Now().UTC()

	return edge.Score
}

// Relationship returns a copy of the from→to edge, if present.
func (s *Session) Relationship(from, to string) (RelationshipEdge, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	edge, ok := s.relationships[relationshipKey(from, to)]
	if !ok {
		return RelationshipEdge{}, false
	}
	return *edge, true
}

// Relationships returns copies of all edges, unordered.
func (s *Session) Relationships() []RelationshipEdge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	edges := make([]RelationshipEdge, 0, len(s.relationships))
	for _, edge := range s.relationships {
		edges = append(edges, *edge)
	}
	return edges
}

// TopRelationships returns up to limit edges ordered by |score|
// descending.
func (s *Session) TopRelationships(limit int) []RelationshipEdge {
	edges := s.Relationships()
	sort.SliceStable(edges, func(i, j int) bool {
		return abs(edges[i].Score) > abs(edges[j].Score)
	})
	if len(edges) > limit {
		edges = edges[:limit]
	}
	return edges
}

// WorldState returns a copy of the session's world-state snapshot with
// the derived top-relationship-shifts view filled in.
func (s *Session) WorldState() models.WorldStateSummary {
	top := s.TopRelationships(3)

	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := models.WorldStateSummary{
		Version:         s.worldState.Version,
		PlacedItems:     append([]models.PlacedItemSummary(nil), s.worldState.PlacedItems...),
		AdoptedPolicies: append([]models.AdoptedPolicySummary(nil), s.worldState.AdoptedPolicies...),
	}
	for _, edge := range top {
		snapshot.TopRelationshipShifts = append(snapshot.TopRelationshipShifts, models.RelationshipShift{
			FromAgent: edge.From,
			ToAgent:   edge.To,
			Score:     edge.Score,
			Reason:    edge.Reason,
		})
	}
	return snapshot
}

// AppendAdoptedPolicy adds a policy to the world state and bumps the
// version.
func (s *Session) AppendAdoptedPolicy(policy models.AdoptedPolicySummary) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.worldState.AdoptedPolicies = append(s.worldState.AdoptedPolicies, policy)
	s.worldState.Version++
	return s.worldState.Version
}

// AppendPlacedItem adds a placed build to the world state and bumps the
// version.
func (s *Session) AppendPlacedItem(item models.PlacedItemSummary) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.worldState.PlacedItems = append(s.worldState.PlacedItems, item)
	s.worldState.Version++
	return s.worldState.Version
}

// SetLastJobID records the most recently started job for this session.
func (s *Session) SetLastJobID(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastJobID = jobID
}

// LastJobID returns the most recently started job id, if any.
func (s *Session) LastJobID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastJobID
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

// String implements fmt.Stringer for log output.
func (s *Session) String() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fmt.Sprintf("session %s (agents=%d dms=%d edges=%d wsv=%d)",
		s.ID, len(s.agentThreads), len(s.dmThreads), len(s.relationships), s.worldState.Version)
}
