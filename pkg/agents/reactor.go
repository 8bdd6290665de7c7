package agents

import (
	"context"
	"log/slog"

	"github.com/kingston-civic/civicsim/pkg/config"
	"github.com/kingston-civic/civicsim/pkg/models"
	"github.com/kingston-civic/civicsim/pkg/session"
)

// RunInput carries everything a reaction fan-out needs.
type RunInput struct {
	Proposal   *models.InterpretedProposal
	WorldState *models.WorldStateSummary

	// Per-agent overrides, keyed by agent key. Absent entries use the
	// default model and the catalog persona.
	AgentModels      map[string]string
	PersonaOverrides map[string]string
}

// OnReaction is invoked per completed agent during a streaming run,
// with the reaction and the single-zone sentiment it induces.
type OnReaction func(reaction models.AgentReaction, zone *models.ZoneSentiment)

// Reactor fans a proposal out to every catalog agent in parallel over
// their private session threads.
type Reactor struct {
	gateway Gateway
	logger  *slog.Logger
}

// NewReactor creates the fan-out role.
func NewReactor(gateway Gateway, logger *slog.Logger) *Reactor {
	return &Reactor{
		gateway: gateway,
		logger:  logger.With("component", "reactor"),
	}
}

// RunAll collects one reaction per catalog agent. Failures never
// surface: an agent whose call or parse fails contributes a synthetic
// neutral reaction, so the result always has len(config.Agents)
// entries in catalog order.
func (r *Reactor) RunAll(ctx context.Context, sess *session.Session, input RunInput) []models.AgentReaction {
	return r.run(ctx, sess, input, nil)
}

// RunAllStreaming behaves like RunAll but additionally invokes
// onComplete for each agent in completion order, pairing the reaction
// with its zone sentiment.
func (r *Reactor) RunAllStreaming(ctx context.Context, sess *session.Session, input RunInput, onComplete OnReaction) []models.AgentReaction {
	return r.run(ctx, sess, input, onComplete)
}

type reactionResult struct {
	index    int
	reaction models.AgentReaction
}

func (r *Reactor) run(ctx context.Context, sess *session.Session, input RunInput, onComplete OnReaction) []models.AgentReaction {
	// Buffered to agent count so no goroutine ever blocks on delivery.
	results := make(chan reactionResult, len(config.Agents))

	for i := range config.Agents {
		agent := &config.Agents[i]
		index := i
		go func() {
			results <- reactionResult{index: index, reaction: r.reactOne(ctx, sess, agent, input)}
		}()
	}

	reactions := make([]models.AgentReaction, len(config.Agents))
	for range config.Agents {
		result := <-results
		reactions[result.index] = result.reaction
		if onComplete != nil {
			zone := zoneForReaction(result.reaction)
			onComplete(result.reaction, zone)
		}
	}
	return reactions
}

// reactOne runs a single agent's call end to end, never failing.
func (r *Reactor) reactOne(ctx context.Context, sess *session.Session, agent *config.Agent, input RunInput) models.AgentReaction {
	// Visible consultation marker for graph observers.
	sess.UpdateRelationship("system", agent.Key, 0, session.UpdateRelationshipInput{
		Message: "Requesting reaction to: " + input.Proposal.Title,
	})

	threadID, err := r.ensureAgentThread(ctx, sess, agent.Key)
	if err != nil {
		r.logger.Error("Agent thread setup failed", "agent_key", agent.Key, "error", err)
		return fallbackReaction(agent)
	}

	model := input.AgentModels[agent.Key]
	provider := ""
	if model != "" {
		provider = config.ProviderForModel(model)
	}
	prompt := reactionPrompt(agent, input.PersonaOverrides[agent.Key], input.Proposal, input.WorldState)

	reply, err := r.gateway.SendMessage(ctx, threadID, prompt, model, provider)
	if err != nil {
		r.logger.Error("Agent reaction call failed", "agent_key", agent.Key, "error", err)
		return fallbackReaction(agent)
	}

	return parseReaction(reply, agent, r.logger)
}

// ensureAgentThread lazily creates the shared reactor assistant and the
// agent's private thread.
func (r *Reactor) ensureAgentThread(ctx context.Context, sess *session.Session, agentKey string) (string, error) {
	return sess.EnsureAgentThread(ctx, agentKey, func(ctx context.Context) (string, error) {
		assistantID, err := sess.EnsureReactorAssistant(ctx, func(ctx context.Context) (string, error) {
			return r.gateway.CreateAssistant(ctx, reactorAssistantName, reactorSystemPrompt)
		})
		if err != nil {
			return "", err
		}
		return r.gateway.CreateThread(ctx, assistantID)
	})
}

// parseReaction decodes an agent's JSON reply, normalizing stance,
// clamping intensity, and truncating lists. Parse failure falls back to
// the synthetic neutral reaction.
func parseReaction(reply string, agent *config.Agent, logger *slog.Logger) models.AgentReaction {
	data, err := decodeObject(reply)
	if err != nil {
		logger.Warn("Reaction parse failed", "agent_key", agent.Key, "error", err)
		return fallbackReaction(agent)
	}

	reaction := newReaction(agent)
	reaction.Stance = normalizeStance(getString(data, "stance", models.StanceNeutral))
	reaction.Intensity = clamp01(getFloat(data, "intensity", 0.5))
	reaction.SupportReasons = limitList(getStringList(data, "support_reasons"), 3)
	reaction.Concerns = limitList(getStringList(data, "concerns"), 3)
	reaction.Quote = truncateRunes(getString(data, "quote", ""), 150)
	reaction.WhatWouldChangeMyMind = limitList(getStringList(data, "what_would_change_my_mind"), 3)
	reaction.ProposedAmendments = limitList(getStringList(data, "proposed_amendments"), 3)

	if zones, ok := data["zones_most_affected"].([]interface{}); ok {
		for _, item := range zones {
			z, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			zoneID := getString(z, "zone_id", "")
			if zoneID == "" {
				continue
			}
			reaction.ZonesMostAffected = append(reaction.ZonesMostAffected, models.ZoneEffect{
				ZoneID:    zoneID,
				Effect:    normalizeStance(getString(z, "effect", models.StanceNeutral)),
				Intensity: clamp01(getFloat(z, "intensity", 0.5)),
			})
		}
	}

	return reaction
}

func normalizeStance(stance string) string {
	switch stance {
	case models.StanceSupport, models.StanceOppose, models.StanceNeutral:
		return stance
	}
	return models.StanceNeutral
}

func newReaction(agent *config.Agent) models.AgentReaction {
	return models.AgentReaction{
		AgentKey:  agent.Key,
		AgentName: agent.DisplayName,
		Avatar:    agent.Avatar,
		Role:      agent.Role,
		Bio:       agent.Bio,
		Tags:      agent.Tags,
	}
}

// fallbackReaction is the synthetic neutral reaction used whenever an
// agent's call or parse fails.
func fallbackReaction(agent *config.Agent) models.AgentReaction {
	reaction := newReaction(agent)
	reaction.Stance = models.StanceNeutral
	reaction.Intensity = 0.5
	reaction.Quote = "I need more information to form an opinion on this."
	reaction.Concerns = []string{"More details needed"}
	return reaction
}
