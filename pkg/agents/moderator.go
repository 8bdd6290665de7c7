package agents

import (
	"context"
	"log/slog"

	"github.com/kingston-civic/civicsim/pkg/models"
	"github.com/kingston-civic/civicsim/pkg/session"
)

const (
	maxTranscriptTurns = 12
	maxTurnTextLen     = 250
	maxSummaryLen      = 500
	minTranscriptTurns = 5
)

// Moderator generates the town hall transcript over the session's
// moderator thread.
type Moderator struct {
	gateway Gateway
	logger  *slog.Logger
}

// NewModerator creates the town hall role.
func NewModerator(gateway Gateway, logger *slog.Logger) *Moderator {
	return &Moderator{
		gateway: gateway,
		logger:  logger.With("component", "townhall"),
	}
}

// Generate produces a transcript from the reactions. It never fails:
// upstream or parse problems yield a deterministic transcript built
// from the agents' own quotes.
func (m *Moderator) Generate(ctx context.Context, sess *session.Session, proposal *models.InterpretedProposal, reactions []models.AgentReaction) *models.TownHallTranscript {
	_, threadID, err := sess.EnsureTownhall(ctx, func(ctx context.Context) (string, string, error) {
		assistantID, err := m.gateway.CreateAssistant(ctx, townhallAssistantName, townhallSystemPrompt)
		if err != nil {
			return "", "", err
		}
		threadID, err := m.gateway.CreateThread(ctx, assistantID)
		if err != nil {
			return "", "", err
		}
		return assistantID, threadID, nil
	})
	if err != nil {
		m.logger.Error("Town hall thread setup failed", "session_id", sess.ID, "error", err)
		return fallbackTranscript(reactions)
	}

	reply, err := m.gateway.SendMessage(ctx, threadID, townhallPrompt(proposal, reactions), "", "")
	if err != nil {
		m.logger.Error("Town hall generation failed", "session_id", sess.ID, "error", err)
		return fallbackTranscript(reactions)
	}

	transcript := parseTranscript(reply)
	if transcript == nil {
		m.logger.Warn("Town hall transcript unusable, using fallback", "session_id", sess.ID)
		return fallbackTranscript(reactions)
	}
	return transcript
}

// parseTranscript decodes the moderator's JSON reply. Returns nil when
// the reply is unparseable or carries fewer than five usable turns.
func parseTranscript(reply string) *models.TownHallTranscript {
	data, err := decodeObject(reply)
	if err != nil {
		return nil
	}

	var turns []models.TranscriptTurn
	if raw, ok := data["turns"].([]interface{}); ok {
		for _, item := range raw {
			if len(turns) >= maxTranscriptTurns {
				break
			}
			turn, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			speaker := getString(turn, "speaker", "")
			text := getString(turn, "text", "")
			if speaker == "" || text == "" {
				continue
			}
			turns = append(turns, models.TranscriptTurn{
				Speaker: speaker,
				Text:    truncateRunes(text, maxTurnTextLen),
			})
		}
	}

	if len(turns) < minTranscriptTurns {
		return nil
	}

	return &models.TownHallTranscript{
		ModeratorSummary:  truncateRunes(getString(data, "moderator_summary", "Town hall discussion on the proposal."), maxSummaryLen),
		Turns:             turns,
		CompromiseOptions: limitList(getStringList(data, "compromise_options"), 3),
	}
}

// fallbackTranscript builds a deterministic transcript from the agents'
// quotes: moderator opening, one turn per quoted agent, padding to the
// minimum, moderator close.
func fallbackTranscript(reactions []models.AgentReaction) *models.TownHallTranscript {
	turns := []models.TranscriptTurn{{
		Speaker: "Moderator",
		Text:    "Welcome to today's town hall. We'll hear from various stakeholders about this proposal.",
	}}

	for _, r := range reactions {
		if r.Quote != "" {
			turns = append(turns, models.TranscriptTurn{Speaker: r.AgentName, Text: r.Quote})
		}
	}

	for len(turns) < minTranscriptTurns {
		turns = append(turns, models.TranscriptTurn{
			Speaker: "Moderator",
			Text:    "Thank you for your input. Let's continue the discussion.",
		})
	}

	turns = append(turns, models.TranscriptTurn{
		Speaker: "Moderator",
		Text:    "Thank you all for participating. We'll take these perspectives under consideration.",
	})
	if len(turns) > maxTranscriptTurns {
		turns = turns[:maxTranscriptTurns]
	}

	return &models.TownHallTranscript{
		ModeratorSummary:  "A town hall discussion was held to gather community feedback on the proposal.",
		Turns:             turns,
		CompromiseOptions: []string{"Consider phased implementation", "Gather more community input"},
	}
}
