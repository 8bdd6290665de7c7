package simulation

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/kingston-civic/civicsim/pkg/config"
	"github.com/kingston-civic/civicsim/pkg/jobs"
)

// recentWindow is how long a finished call keeps showing as recently
// completed, driving the fade effect in the graph UI.
const recentWindow = 5 * time.Second

// GraphNode is one node in the force-directed session graph.
type GraphNode struct {
	ID              string `json:"id"`
	Type            string `json:"type"`
	Name            string `json:"name"`
	Avatar          string `json:"avatar"`
	Role            string `json:"role"`
	Model           string `json:"model,omitempty"`
	ArchetypeStatus string `json:"archetype_status"`
	CallState       string `json:"call_state"`
	Stance          string `json:"stance,omitempty"`
}

// GraphEdge is one directed edge in the session graph.
type GraphEdge struct {
	ID           string  `json:"id"`
	Source       string  `json:"source"`
	Target       string  `json:"target"`
	Type         string  `json:"type"`
	LastMessage  string  `json:"last_message,omitempty"`
	StanceBefore string  `json:"stance_before,omitempty"`
	StanceAfter  string  `json:"stance_after,omitempty"`
	Timestamp    string  `json:"timestamp,omitempty"`
	Status       string  `json:"status"`
	Score        float64 `json:"score"`
}

// GraphData is the full visualization payload for a session.
type GraphData struct {
	SessionID string      `json:"session_id"`
	Nodes     []GraphNode `json:"nodes"`
	Edges     []GraphEdge `json:"edges"`
}

// ActiveCall is one in-flight or recently finished upstream call.
type ActiveCall struct {
	AgentKey    string `json:"agent_key"`
	Status      string `json:"status"`
	StartedAt   string `json:"started_at,omitempty"`
	CompletedAt string `json:"completed_at,omitempty"`
}

// ActiveCalls is the polling payload for call activity.
type ActiveCalls struct {
	SessionID         string       `json:"session_id"`
	Active            []ActiveCall `json:"active_calls"`
	RecentlyCompleted []ActiveCall `json:"recently_completed"`
}

// BuildGraphData renders the session's graph: one node per catalog
// agent plus the synthetic town hall, user, and gateway nodes, and one
// edge per relationship.
func (o *Orchestrator) BuildGraphData(sessionID string, agentModels map[string]string) GraphData {
	sess := o.sessions.GetOrCreate(sessionID)

	nodes := make([]GraphNode, 0, len(config.Agents)+3)
	for _, agent := range config.Agents {
		nodes = append(nodes, GraphNode{
			ID:              agent.Key,
			Type:            "agent",
			Name:            agent.DisplayName,
			Avatar:          agent.Avatar,
			Role:            agent.Role,
			Model:           agentModels[agent.Key],
			ArchetypeStatus: "default",
			CallState:       "idle",
		})
	}
	nodes = append(nodes,
		GraphNode{ID: "townhall", Type: "townhall", Name: "Town Hall", Avatar: "🏛️", Role: "Civic Debate Forum", ArchetypeStatus: "default", CallState: "idle"},
		GraphNode{ID: "user", Type: "user", Name: "User", Avatar: "👤", Role: "Policy Proposer", ArchetypeStatus: "default", CallState: "idle"},
		GraphNode{ID: "system", Type: "system", Name: "Backboard", Avatar: "🤖", Role: "LLM Gateway", ArchetypeStatus: "default", CallState: "idle"},
	)

	relationships := sess.Relationships()
	sort.Slice(relationships, func(i, j int) bool {
		if relationships[i].From != relationships[j].From {
			return relationships[i].From < relationships[j].From
		}
		return relationships[i].To < relationships[j].To
	})

	edges := make([]GraphEdge, 0, len(relationships))
	for i, edge := range relationships {
		timestamp := ""
		if !edge.UpdatedAt.IsZero() {
			timestamp = edge.UpdatedAt.Format(time.RFC3339)
		}
		edges = append(edges, GraphEdge{
			ID:           fmt.Sprintf("edge_%d", i),
			Source:       edge.From,
			Target:       edge.To,
			Type:         "dm",
			LastMessage:  edge.LastMessage,
			StanceBefore: edge.StanceBefore,
			StanceAfter:  edge.StanceAfter,
			Timestamp:    timestamp,
			Status:       "complete",
			Score:        edge.Score,
		})
	}

	return GraphData{SessionID: sessionID, Nodes: nodes, Edges: edges}
}

// BuildActiveCalls derives call activity from the session's most recent
// job: agents without a partial reaction are active during the reaction
// phase, and completions within the last five seconds show as recently
// completed.
func (o *Orchestrator) BuildActiveCalls(ctx context.Context, sessionID string) ActiveCalls {
	result := ActiveCalls{
		SessionID:         sessionID,
		Active:            []ActiveCall{},
		RecentlyCompleted: []ActiveCall{},
	}

	sess, err := o.sessions.Get(sessionID)
	if err != nil || sess.LastJobID() == "" {
		return result
	}
	job, err := o.jobStore.Get(ctx, sess.LastJobID())
	if err != nil {
		return result
	}

	now := time.Now()
	startedAt := formatUnix(job.StartedAt, now)

	completed := make(map[string]bool, len(job.PartialReactions))
	for _, reaction := range job.PartialReactions {
		if reaction.AgentKey == "" {
			continue
		}
		completed[reaction.AgentKey] = true
		if reaction.CompletedAt > 0 && now.Sub(unixTime(reaction.CompletedAt)) <= recentWindow {
			result.RecentlyCompleted = append(result.RecentlyCompleted, ActiveCall{
				AgentKey:    reaction.AgentKey,
				Status:      "done",
				CompletedAt: formatUnix(reaction.CompletedAt, now),
			})
		}
	}

	if job.Status == jobs.StatusRunning && job.Phase == jobs.PhaseAgentReactions {
		for _, agent := range config.Agents {
			if !completed[agent.Key] {
				result.Active = append(result.Active, ActiveCall{
					AgentKey:  agent.Key,
					Status:    "running",
					StartedAt: startedAt,
				})
			}
		}
	}

	if job.Status == jobs.StatusRunning && job.Phase == jobs.PhaseGeneratingTownhall {
		result.Active = append(result.Active, ActiveCall{
			AgentKey:  "townhall",
			Status:    "running",
			StartedAt: startedAt,
		})
	}

	if job.Status == jobs.StatusComplete && job.CompletedAt > 0 && now.Sub(unixTime(job.CompletedAt)) <= recentWindow {
		result.RecentlyCompleted = append(result.RecentlyCompleted, ActiveCall{
			AgentKey:    "townhall",
			Status:      "done",
			CompletedAt: formatUnix(job.CompletedAt, now),
		})
	}

	return result
}

func unixTime(seconds float64) time.Time {
	return time.Unix(0, int64(seconds*float64(time.Second))).UTC()
}

func formatUnix(seconds float64, fallback time.Time) string {
	if seconds <= 0 {
		return fallback.UTC().Format(time.RFC3339)
	}
	return unixTime(seconds).Format(time.RFC3339)
}
