package agents

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kingston-civic/civicsim/pkg/models"
	"github.com/kingston-civic/civicsim/pkg/session"
)

// Interpreter converts free-text proposals into structured form via the
// session's interpreter thread.
type Interpreter struct {
	gateway Gateway
	logger  *slog.Logger
}

// NewInterpreter creates the interpreter role.
func NewInterpreter(gateway Gateway, logger *slog.Logger) *Interpreter {
	return &Interpreter{
		gateway: gateway,
		logger:  logger.With("component", "interpreter"),
	}
}

// Interpret sends the message through the session's interpreter thread
// and parses the structured reply. Parse failures produce OK=false with
// a human-readable error; only upstream failures return a non-nil
// error.
func (i *Interpreter) Interpret(ctx context.Context, sess *session.Session, message string) (models.InterpretResult, error) {
	_, threadID, err := sess.EnsureInterpreter(ctx, func(ctx context.Context) (string, string, error) {
		assistantID, err := i.gateway.CreateAssistant(ctx, interpreterAssistantName, interpreterSystemPrompt)
		if err != nil {
			return "", "", err
		}
		threadID, err := i.gateway.CreateThread(ctx, assistantID)
		if err != nil {
			return "", "", err
		}
		return assistantID, threadID, nil
	})
	if err != nil {
		return models.InterpretResult{}, err
	}

	reply, err := i.gateway.SendMessage(ctx, threadID, interpretPrompt(message), "", "")
	if err != nil {
		return models.InterpretResult{}, err
	}

	result := parseInterpretReply(reply)
	if !result.OK {
		i.logger.Warn("Interpretation did not produce a proposal",
			"session_id", sess.ID, "error", result.Error,
			"clarifying_questions", len(result.ClarifyingQuestions))
	}
	return result, nil
}

// parseInterpretReply decodes the interpreter's JSON reply into an
// InterpretResult, tolerating the usual model sloppiness.
func parseInterpretReply(reply string) models.InterpretResult {
	data, err := decodeObject(reply)
	if err != nil {
		return models.InterpretResult{
			OK:    false,
			Error: truncateRunes(fmt.Sprintf("Failed to parse interpreter reply as JSON: %v", err), 150),
		}
	}

	result := models.InterpretResult{
		OK:                  getBool(data, "ok", true),
		Assumptions:         getStringList(data, "assumptions"),
		ClarifyingQuestions: getStringList(data, "clarifying_questions"),
		Confidence:          getFloat(data, "confidence", 0.8),
		Error:               getString(data, "error", ""),
	}

	if raw, ok := data["proposal"].(map[string]interface{}); ok && result.OK {
		result.Proposal = parseProposal(raw)
	}
	if result.Proposal == nil {
		result.OK = false
	}
	return result
}

func parseProposal(raw map[string]interface{}) *models.InterpretedProposal {
	proposal := &models.InterpretedProposal{
		Type:    getString(raw, "type", models.ProposalPolicy),
		Title:   getString(raw, "title", "Untitled Proposal"),
		Summary: getString(raw, "summary", ""),
		Location: models.ProposalLocation{
			Kind: models.LocationNone,
		},
		Parameters: models.ProposalParameters{
			Scale: 1.0,
		},
	}

	if loc, ok := raw["location"].(map[string]interface{}); ok {
		proposal.Location.Kind = getString(loc, "kind", models.LocationNone)
		proposal.Location.ZoneIDs = getStringList(loc, "zone_ids")
		if point, ok := loc["point"].(map[string]interface{}); ok {
			proposal.Location.Point = &models.GeoPoint{
				Lat: getFloat(point, "lat", 0),
				Lng: getFloat(point, "lng", 0),
			}
		}
		if polygon, ok := loc["polygon"].(map[string]interface{}); ok {
			proposal.Location.Polygon = polygon
		}
	}

	if params, ok := raw["parameters"].(map[string]interface{}); ok {
		proposal.Parameters.Scale = getFloat(params, "scale", 1.0)
		if budget, ok := params["budget_millions"].(float64); ok {
			proposal.Parameters.BudgetMillions = &budget
		}
		proposal.Parameters.TargetGroup = getTargetGroup(params)
	}

	return proposal
}
