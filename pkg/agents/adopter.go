package agents

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kingston-civic/civicsim/pkg/models"
	"github.com/kingston-civic/civicsim/pkg/session"
)

// VoteSummary is the recorded tally of an adoption decision.
type VoteSummary struct {
	Support      int `json:"support"`
	Oppose       int `json:"oppose"`
	Neutral      int `json:"neutral"`
	AgreementPct int `json:"agreement_pct"`
}

// AdoptedQuote is one notable reaction recorded with a decision.
type AdoptedQuote struct {
	AgentName string `json:"agent_name"`
	Stance    string `json:"stance"`
	Quote     string `json:"quote"`
}

// ZoneDelta is one zone's sentiment shift recorded with a decision.
type ZoneDelta struct {
	ZoneID         string  `json:"zone_id"`
	ZoneName       string  `json:"zone_name"`
	SentimentShift float64 `json:"sentiment_shift"`
}

// AdoptionEvent is the decision record broadcast into agent memory.
type AdoptionEvent struct {
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`

	ProposalType    string `json:"proposal_type"`
	ProposalTitle   string `json:"proposal_title"`
	ProposalSummary string `json:"proposal_summary"`

	// "adopted" (community approved) or "forced" (pushed through).
	Outcome string `json:"outcome"`

	VoteSummary VoteSummary    `json:"vote_summary"`
	KeyQuotes   []AdoptedQuote `json:"key_quotes"`
	ZoneDeltas  []ZoneDelta    `json:"zone_deltas"`
}

// AdoptResult reports which threads received the decision record.
type AdoptResult struct {
	ThreadsUpdated    []string `json:"threads_updated"`
	ProposalTitle     string   `json:"proposal_title"`
	Outcome           string   `json:"outcome"`
	WorldStateVersion int      `json:"world_state_version"`
}

// Adopter broadcasts adoption decisions into every session thread so
// later runs recall them, and appends the decision to the world state.
type Adopter struct {
	gateway Gateway
	logger  *slog.Logger
}

// NewAdopter creates the adoption role.
func NewAdopter(gateway Gateway, logger *slog.Logger) *Adopter {
	return &Adopter{
		gateway: gateway,
		logger:  logger.With("component", "adopter"),
	}
}

// Adopt writes the decision record to each existing agent thread plus
// the interpreter and town hall threads. Per-thread failures are logged
// and skipped; the result lists the threads actually updated.
func (a *Adopter) Adopt(ctx context.Context, sess *session.Session, event AdoptionEvent) *AdoptResult {
	note := adoptionNote(event)

	var updated []string
	for agentKey, threadID := range sess.AgentThreads() {
		if _, err := a.gateway.SendMessage(ctx, threadID, note, "", ""); err != nil {
			a.logger.Warn("Failed to write decision record to agent thread",
				"agent_key", agentKey, "error", err)
			continue
		}
		updated = append(updated, agentKey)
	}

	if threadID, ok := sess.InterpreterThread(); ok {
		if _, err := a.gateway.SendMessage(ctx, threadID, note, "", ""); err != nil {
			a.logger.Warn("Failed to write decision record to interpreter thread", "error", err)
		} else {
			updated = append(updated, "interpreter")
		}
	}

	if threadID, ok := sess.TownhallThread(); ok {
		if _, err := a.gateway.SendMessage(ctx, threadID, note, "", ""); err != nil {
			a.logger.Warn("Failed to write decision record to townhall thread", "error", err)
		} else {
			updated = append(updated, "townhall")
		}
	}

	version := a.appendWorldState(sess, event)

	a.logger.Info("Decision recorded",
		"session_id", sess.ID, "proposal", event.ProposalTitle,
		"outcome", event.Outcome, "threads_updated", len(updated))

	return &AdoptResult{
		ThreadsUpdated:    updated,
		ProposalTitle:     event.ProposalTitle,
		Outcome:           event.Outcome,
		WorldStateVersion: version,
	}
}

func (a *Adopter) appendWorldState(sess *session.Session, event AdoptionEvent) int {
	if event.ProposalType == models.ProposalBuild {
		return sess.AppendPlacedItem(models.PlacedItemSummary{
			ID:    event.ID,
			Type:  event.ProposalType,
			Title: event.ProposalTitle,
			Emoji: "🏗️",
		})
	}

	total := event.VoteSummary.Support + event.VoteSummary.Oppose + event.VoteSummary.Neutral
	votePct := 0.0
	if total > 0 {
		votePct = float64(event.VoteSummary.Support) * 100 / float64(total)
	}
	return sess.AppendAdoptedPolicy(models.AdoptedPolicySummary{
		ID:        event.ID,
		Title:     event.ProposalTitle,
		Summary:   event.ProposalSummary,
		Outcome:   event.Outcome,
		VotePct:   votePct,
		Timestamp: event.Timestamp,
	})
}

// adoptionNote renders the decision record written into each thread.
func adoptionNote(event AdoptionEvent) string {
	outcomeLabel := "ADOPTED"
	if event.Outcome != "adopted" {
		outcomeLabel = "FORCED FORWARD"
	}

	var quoteLines []string
	for i, q := range event.KeyQuotes {
		if i >= 3 {
			break
		}
		quoteLines = append(quoteLines, fmt.Sprintf("- %s (%s): \"%s...\"", q.AgentName, q.Stance, truncateRunes(q.Quote, 100)))
	}

	return strings.TrimSpace(fmt.Sprintf(`[DECISION RECORD - %s]
Proposal: %s
Type: %s
Summary: %s

Vote Result: %d support / %d oppose / %d neutral (%d%% agreement)

Key Reactions:
%s

This decision has been officially recorded. Remember this when discussing past policies or cumulative impacts.`,
		outcomeLabel,
		event.ProposalTitle,
		event.ProposalType,
		event.ProposalSummary,
		event.VoteSummary.Support, event.VoteSummary.Oppose, event.VoteSummary.Neutral, event.VoteSummary.AgreementPct,
		strings.Join(quoteLines, "\n")))
}
