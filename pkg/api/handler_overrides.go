package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kingston-civic/civicsim/pkg/config"
	"github.com/kingston-civic/civicsim/pkg/store"
)

// AgentOverrideView is one agent's effective customization state.
type AgentOverrideView struct {
	AgentKey          string  `json:"agent_key"`
	Model             *string `json:"model"`
	ArchetypeOverride *string `json:"archetype_override"`
	DefaultModel      string  `json:"default_model"`
	IsEdited          bool    `json:"is_edited"`
}

// AgentOverrideUpdate is the body of PUT /v1/scenarios/:id/agents/:agent_key.
type AgentOverrideUpdate struct {
	Model             *string `json:"model"`
	ArchetypeOverride *string `json:"archetype_override"`
}

// listOverrides handles GET /v1/scenarios/:id/agent-overrides: the full
// agent map, defaults included for agents without an override row.
func (s *Server) listOverrides(c *gin.Context) {
	scenarioID := c.Param("id")

	// Without storage every agent reads as default.
	var stored []store.AgentOverride
	if s.overrides != nil {
		var err error
		stored, err = s.overrides.List(c.Request.Context(), scenarioID)
		if err != nil {
			s.abortWithError(c, err)
			return
		}
	}
	byKey := make(map[string]store.AgentOverride, len(stored))
	for _, o := range stored {
		byKey[o.AgentKey] = o
	}

	views := make(map[string]AgentOverrideView, len(config.Agents))
	for _, agent := range config.Agents {
		view := AgentOverrideView{
			AgentKey:     agent.Key,
			DefaultModel: config.DefaultModel,
		}
		if o, ok := byKey[agent.Key]; ok {
			view.Model = o.Model
			view.ArchetypeOverride = o.Archetype
			view.IsEdited = o.Model != nil || o.Archetype != nil
		}
		views[agent.Key] = view
	}

	c.JSON(http.StatusOK, gin.H{
		"scenario_id":      scenarioID,
		"overrides":        views,
		"available_models": config.AllowedModels,
	})
}

// setOverride handles PUT /v1/scenarios/:id/agents/:agent_key. Any
// change invalidates the scenario's promotion cache.
func (s *Server) setOverride(c *gin.Context) {
	if s.overrides == nil {
		storageUnavailable(c)
		return
	}
	scenarioID := c.Param("id")
	agentKey := c.Param("agent_key")

	if config.GetAgent(agentKey) == nil {
		badRequest(c, "Invalid agent key: "+agentKey)
		return
	}

	var update AgentOverrideUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		badRequest(c, err.Error())
		return
	}
	if update.Model != nil && *update.Model != "" && !config.ValidateModel(*update.Model) {
		badRequest(c, fmt.Sprintf("Invalid model: %s. Allowed: %v", *update.Model, config.AllowedModels))
		return
	}

	override := &store.AgentOverride{
		ScenarioID: scenarioID,
		AgentKey:   agentKey,
		Model:      emptyToNil(update.Model),
		Archetype:  emptyToNil(update.ArchetypeOverride),
	}
	if err := s.overrides.Upsert(c.Request.Context(), override); err != nil {
		s.abortWithError(c, err)
		return
	}
	s.invalidateScenarioCache(c, scenarioID, agentKey)

	c.JSON(http.StatusOK, AgentOverrideView{
		AgentKey:          agentKey,
		Model:             override.Model,
		ArchetypeOverride: override.Archetype,
		DefaultModel:      config.DefaultModel,
		IsEdited:          override.Model != nil || override.Archetype != nil,
	})
}

// resetOverride handles POST /v1/scenarios/:id/agents/:agent_key/reset.
func (s *Server) resetOverride(c *gin.Context) {
	if s.overrides == nil {
		storageUnavailable(c)
		return
	}
	scenarioID := c.Param("id")
	agentKey := c.Param("agent_key")

	if config.GetAgent(agentKey) == nil {
		badRequest(c, "Invalid agent key: "+agentKey)
		return
	}

	if err := s.overrides.Delete(c.Request.Context(), scenarioID, agentKey); err != nil {
		s.abortWithError(c, err)
		return
	}
	s.invalidateScenarioCache(c, scenarioID, agentKey)

	c.JSON(http.StatusOK, AgentOverrideView{
		AgentKey:     agentKey,
		DefaultModel: config.DefaultModel,
		IsEdited:     false,
	})
}

// resetAllOverrides handles POST /v1/scenarios/:id/agents/reset-all. It
// also clears the scenario session's event ledger so the rebuilt world
// state matches a fresh scenario.
func (s *Server) resetAllOverrides(c *gin.Context) {
	if s.overrides == nil {
		storageUnavailable(c)
		return
	}
	scenarioID := c.Param("id")

	if _, err := s.overrides.DeleteAll(c.Request.Context(), scenarioID); err != nil {
		s.abortWithError(c, err)
		return
	}
	s.invalidateScenarioCache(c, scenarioID, "")
	s.ledger.ClearSession(c.Request.Context(), "scenario_"+scenarioID)

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"scenario_id": scenarioID,
		"message":     "All agent overrides reset to defaults",
	})
}

// invalidateScenarioCache drops the scenario's cached promotions after
// an override change. Failures are logged, not surfaced: the override
// itself already took effect.
func (s *Server) invalidateScenarioCache(c *gin.Context, scenarioID, agentKey string) {
	if s.cache == nil {
		return
	}
	if _, err := s.cache.Invalidate(c.Request.Context(), scenarioID, agentKey); err != nil {
		s.logger.Warn("Failed to invalidate promotion cache",
			"scenario_id", scenarioID, "error", err)
	}
}

func emptyToNil(value *string) *string {
	if value == nil || *value == "" {
		return nil
	}
	return value
}
