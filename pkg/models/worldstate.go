package models

import (
	"fmt"
	"strings"
)

// PlacedItemSummary is one adopted build in the world state.
type PlacedItemSummary struct {
	ID         string  `json:"id"`
	Type       string  `json:"type"`
	Title      string  `json:"title"`
	RegionID   string  `json:"region_id,omitempty"`
	RegionName string  `json:"region_name,omitempty"`
	RadiusKM   float64 `json:"radius_km"`
	Emoji      string  `json:"emoji"`
}

// AdoptedPolicySummary is one adopted policy in the world state.
type AdoptedPolicySummary struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Summary   string  `json:"summary"`
	Outcome   string  `json:"outcome"`
	VotePct   float64 `json:"vote_pct"`
	Timestamp string  `json:"timestamp"`
}

// RelationshipShift is a notable directed relationship change.
type RelationshipShift struct {
	FromAgent string  `json:"from_agent"`
	ToAgent   string  `json:"to_agent"`
	Score     float64 `json:"score"`
	Reason    string  `json:"reason"`
}

// WorldStateSummary is the version-stamped snapshot of prior facts that
// is prepended to agent prompts so reactions are context-aware.
type WorldStateSummary struct {
	Version               int                    `json:"version"`
	PlacedItems           []PlacedItemSummary    `json:"placed_items,omitempty"`
	AdoptedPolicies       []AdoptedPolicySummary `json:"adopted_policies,omitempty"`
	TopRelationshipShifts []RelationshipShift    `json:"top_relationship_shifts,omitempty"`
}

// IsEmpty reports whether the snapshot carries no facts worth rendering.
func (w *WorldStateSummary) IsEmpty() bool {
	return w == nil || (len(w.PlacedItems) == 0 && len(w.AdoptedPolicies) == 0 && len(w.TopRelationshipShifts) == 0)
}

// PromptContext renders the snapshot as the world-state block agents see
// at the top of their prompts.
func (w *WorldStateSummary) PromptContext() string {
	if w.IsEmpty() {
		return ""
	}

	lines := []string{"\n=== CURRENT WORLD STATE ==="}

	if len(w.PlacedItems) > 0 {
		lines = append(lines, fmt.Sprintf("\nPLACED BUILDINGS (%d):", len(w.PlacedItems)))
		for _, item := range w.PlacedItems {
			region := ""
			if item.RegionName != "" {
				region = " in " + item.RegionName
			}
			lines = append(lines, fmt.Sprintf("  %s %s (%s)%s", item.Emoji, item.Title, item.Type, region))
		}
	}

	if len(w.AdoptedPolicies) > 0 {
		lines = append(lines, fmt.Sprintf("\nADOPTED POLICIES (%d):", len(w.AdoptedPolicies)))
		for _, policy := range w.AdoptedPolicies {
			mark := "✓"
			if policy.Outcome != "adopted" {
				mark = "⚡"
			}
			lines = append(lines, fmt.Sprintf("  %s %s (%g%% support)", mark, policy.Title, policy.VotePct))
		}
	}

	if len(w.TopRelationshipShifts) > 0 {
		lines = append(lines, "\nKEY RELATIONSHIP SHIFTS:")
		for _, shift := range w.TopRelationshipShifts {
			direction := "↑"
			if shift.Score <= 0 {
				direction = "↓"
			}
			lines = append(lines, fmt.Sprintf("  %s → %s: %s (%s)", shift.FromAgent, shift.ToAgent, direction, shift.Reason))
		}
	}

	lines = append(lines, "=== END WORLD STATE ===\n")
	return strings.Join(lines, "\n")
}
