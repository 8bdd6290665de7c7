package agents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kingston-civic/civicsim/pkg/config"
	"github.com/kingston-civic/civicsim/pkg/session"
)

// ErrUnknownAgent indicates an agent key outside the catalog.
var ErrUnknownAgent = errors.New("unknown agent key")

// DMInput is one agent-to-agent direct message.
type DMInput struct {
	FromAgentKey  string
	ToAgentKey    string
	Message       string
	ProposalTitle string
}

// StanceUpdate is the structured assessment extracted after a DM
// exchange.
type StanceUpdate struct {
	RelationshipDelta float64  `json:"relationship_delta"`
	StanceChanged     bool     `json:"stance_changed"`
	NewStance         string   `json:"new_stance,omitempty"`
	NewIntensity      *float64 `json:"new_intensity,omitempty"`
	Reason            string   `json:"reason"`
}

// DMResult is the outcome of a direct message.
type DMResult struct {
	Reply             string       `json:"reply"`
	StanceUpdate      StanceUpdate `json:"stance_update"`
	RelationshipScore float64      `json:"relationship_score"`
}

// DirectMessenger runs in-character conversations between two agents
// over the pair's shared thread.
type DirectMessenger struct {
	gateway Gateway
	logger  *slog.Logger
}

// NewDirectMessenger creates the DM role.
func NewDirectMessenger(gateway Gateway, logger *slog.Logger) *DirectMessenger {
	return &DirectMessenger{
		gateway: gateway,
		logger:  logger.With("component", "dm"),
	}
}

// Send delivers the message, collects the recipient's in-character
// reply, extracts a structured stance assessment, and applies the
// relationship delta to the recipient→speaker edge.
func (d *DirectMessenger) Send(ctx context.Context, sess *session.Session, input DMInput) (*DMResult, error) {
	from := config.GetAgent(input.FromAgentKey)
	to := config.GetAgent(input.ToAgentKey)
	if from == nil || to == nil {
		return nil, fmt.Errorf("%w: %s -> %s", ErrUnknownAgent, input.FromAgentKey, input.ToAgentKey)
	}

	threadID, err := d.ensurePairThread(ctx, sess, input.FromAgentKey, input.ToAgentKey)
	if err != nil {
		return nil, err
	}

	reply, err := d.gateway.SendMessage(ctx, threadID, dmPrompt(from, to, input.Message), "", "")
	if err != nil {
		return nil, err
	}

	update := d.assess(ctx, threadID, from, to, reply, input.ProposalTitle)

	score := sess.UpdateRelationship(input.ToAgentKey, input.FromAgentKey, update.RelationshipDelta, session.UpdateRelationshipInput{
		Reason:      update.Reason,
		Message:     input.Message,
		StanceAfter: update.NewStance,
	})

	if update.StanceChanged && input.ProposalTitle != "" {
		d.writeStanceUpdate(ctx, sess, from, input.ToAgentKey, input.ProposalTitle, update)
	}

	return &DMResult{
		Reply:             reply,
		StanceUpdate:      update,
		RelationshipScore: score,
	}, nil
}

func (d *DirectMessenger) ensurePairThread(ctx context.Context, sess *session.Session, fromKey, toKey string) (string, error) {
	pairKey := session.DMPairKey(fromKey, toKey)
	return sess.EnsureDMThread(ctx, pairKey, func(ctx context.Context) (string, error) {
		assistantID, err := sess.EnsureDMAssistant(ctx, func(ctx context.Context) (string, error) {
			return d.gateway.CreateAssistant(ctx, dmAssistantName, dmSystemPrompt)
		})
		if err != nil {
			return "", err
		}
		return d.gateway.CreateThread(ctx, assistantID)
	})
}

// assess runs the structured follow-up on the same thread. Parse
// failures degrade to a zero-delta update, never an error.
func (d *DirectMessenger) assess(ctx context.Context, threadID string, from, to *config.Agent, reply, proposalTitle string) StanceUpdate {
	response, err := d.gateway.SendMessage(ctx, threadID, dmAssessmentPrompt(from, to, reply, proposalTitle), "", "")
	if err != nil {
		d.logger.Warn("DM assessment call failed", "error", err)
		return neutralStanceUpdate()
	}

	data, err := decodeObject(response)
	if err != nil {
		d.logger.Warn("DM assessment parse failed", "error", err)
		return neutralStanceUpdate()
	}

	update := StanceUpdate{
		RelationshipDelta: clampDelta(getFloat(data, "relationship_delta", 0)),
		StanceChanged:     getBool(data, "stance_changed", false),
		NewStance:         getString(data, "new_stance", ""),
		Reason:            getString(data, "reason", "No significant change."),
	}
	if intensity, ok := data["new_intensity"].(float64); ok {
		clamped := clamp01(intensity)
		update.NewIntensity = &clamped
	}
	if update.NewStance != "" {
		update.NewStance = normalizeStance(update.NewStance)
	}
	return update
}

// writeStanceUpdate records a stance flip into the recipient's main
// reaction thread so later runs remember it. Best effort.
func (d *DirectMessenger) writeStanceUpdate(ctx context.Context, sess *session.Session, from *config.Agent, toKey, proposalTitle string, update StanceUpdate) {
	threadID, ok := sess.AgentThread(toKey)
	if !ok {
		return
	}

	newStance := update.NewStance
	if newStance == "" {
		newStance = "reconsidering"
	}
	note := fmt.Sprintf("[STANCE UPDATE]\nAfter talking with %s, I'm now %s the proposal %q.\nReason: %s",
		from.DisplayName, newStance, proposalTitle, update.Reason)

	if _, err := d.gateway.SendMessage(ctx, threadID, note, "", ""); err != nil {
		d.logger.Warn("Failed to write stance update to main thread",
			"agent_key", toKey, "error", err)
	}
}

func dmPrompt(from, to *config.Agent, message string) string {
	return fmt.Sprintf(`[DIRECT MESSAGE]
From: %s (%s)
To: %s (%s)

%s says: %q

---
You are %s. Respond to this message in character.
Context: %s

Respond naturally as %s would.`,
		from.DisplayName, from.Role,
		to.DisplayName, to.Role,
		from.DisplayName, message,
		to.DisplayName,
		truncateRunes(to.Persona, 300),
		to.DisplayName)
}

func dmAssessmentPrompt(from, to *config.Agent, reply, proposalTitle string) string {
	proposalContext := ""
	if proposalTitle != "" {
		proposalContext = fmt.Sprintf(" regarding %q", proposalTitle)
	}
	return fmt.Sprintf(`Based on the conversation%s, provide a brief assessment.

%s just said: %q

Respond with ONLY valid JSON:
{
  "relationship_delta": <float -1 to +1, how much %s's opinion of %s changed>,
  "stance_changed": <true/false if stance on current proposal changed>,
  "new_stance": <"support"/"oppose"/"neutral" if changed, null otherwise>,
  "new_intensity": <0.0-1.0 if stance changed, null otherwise>,
  "reason": "<one sentence explaining any change>"
}

Example: {"relationship_delta": 0.1, "stance_changed": false, "new_stance": null, "new_intensity": null, "reason": "Appreciated the thoughtful points but remains unconvinced."}

JSON only:`,
		proposalContext,
		to.DisplayName, truncateRunes(reply, 200),
		to.DisplayName, from.DisplayName)
}

func neutralStanceUpdate() StanceUpdate {
	return StanceUpdate{
		Reason: "Conversation continued without major shifts.",
	}
}

func clampDelta(v float64) float64 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}
