package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kingston-civic/civicsim/pkg/cache"
	"github.com/kingston-civic/civicsim/pkg/config"
	"github.com/kingston-civic/civicsim/pkg/simulation"
	"github.com/kingston-civic/civicsim/pkg/store"
)

// AgentOverridePatch is one agent's per-request customization.
type AgentOverridePatch struct {
	Model     string `json:"model"`
	Archetype string `json:"archetype"`
}

// PromoteRequest is the body of POST /v1/cache/promote.
type PromoteRequest struct {
	ScenarioID     string                        `json:"scenario_id"`
	Proposal       cache.ProposalFingerprint     `json:"proposal"`
	SessionID      string                        `json:"session_id"`
	AgentOverrides map[string]AgentOverridePatch `json:"agent_overrides"`
	SimMode        string                        `json:"sim_mode"`
}

// PromoteResponse reports the promotion outcome.
type PromoteResponse struct {
	Cached      bool            `json:"cached"`
	CacheKey    string          `json:"cache_key"`
	Result      json.RawMessage `json:"result"`
	ProviderMix string          `json:"provider_mix"`
	Message     string          `json:"message"`
}

// CacheCheckResponse is the body of GET /v1/cache/:cache_key.
type CacheCheckResponse struct {
	Hit         bool            `json:"hit"`
	CacheKey    string          `json:"cache_key"`
	Result      json.RawMessage `json:"result,omitempty"`
	ProviderMix string          `json:"provider_mix,omitempty"`
	CreatedAt   string          `json:"created_at,omitempty"`
}

// InvalidateRequest is the body of POST /v1/cache/invalidate.
type InvalidateRequest struct {
	ScenarioID string `json:"scenario_id"`
	AgentKey   string `json:"agent_key"`
}

// ComputeKeyRequest is the body of POST /v1/cache/compute-key.
// Archetype override values are the full persona texts; hashing happens
// server side so the key matches what promote would compute.
type ComputeKeyRequest struct {
	ScenarioID         string                     `json:"scenario_id"`
	Proposal           *cache.ProposalFingerprint `json:"proposal"`
	ProposalHash       string                     `json:"proposal_hash"`
	AgentModels        map[string]string          `json:"agent_models"`
	ArchetypeOverrides map[string]string          `json:"archetype_overrides"`
	SimMode            string                     `json:"sim_mode"`
}

// cacheGet handles GET /v1/cache/:cache_key: a plain existence check.
// Without storage every key reads as a miss.
func (s *Server) cacheGet(c *gin.Context) {
	key := c.Param("cache_key")
	if s.cache == nil {
		c.JSON(http.StatusOK, CacheCheckResponse{Hit: false, CacheKey: key})
		return
	}
	entry, err := s.cache.Lookup(c.Request.Context(), key)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusOK, CacheCheckResponse{Hit: false, CacheKey: key})
		return
	}
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, CacheCheckResponse{
		Hit:         true,
		CacheKey:    key,
		Result:      entry.Result,
		ProviderMix: entry.ProviderMix,
		CreatedAt:   entry.CreatedAt.UTC().Format(time.RFC3339),
	})
}

// promote handles POST /v1/cache/promote: serve the fingerprint-matched
// cached run, or execute the simulation and cache it.
func (s *Server) promote(c *gin.Context) {
	if s.cache == nil {
		storageUnavailable(c)
		return
	}
	var req PromoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if req.ScenarioID == "" {
		badRequest(c, "scenario_id is required")
		return
	}
	if req.SimMode == "" {
		req.SimMode = "progressive"
	}

	agentModels, personas := s.resolveOverrides(c.Request.Context(), req.ScenarioID)
	if agentModels == nil {
		agentModels = make(map[string]string)
	}
	if personas == nil {
		personas = make(map[string]string)
	}
	// Request overrides take precedence over stored ones.
	for agentKey, patch := range req.AgentOverrides {
		if patch.Model != "" {
			agentModels[agentKey] = patch.Model
		}
		if patch.Archetype != "" {
			personas[agentKey] = patch.Archetype
		}
	}

	output, err := s.cache.Promote(c.Request.Context(), cache.PromoteInput{
		ScenarioID:         req.ScenarioID,
		Proposal:           req.Proposal,
		AgentModels:        agentModels,
		ArchetypeOverrides: personas,
		SimMode:            req.SimMode,
		TotalAgents:        len(config.Agents),
		Run: func(ctx context.Context) (json.RawMessage, error) {
			response, err := s.orchestrator.RunSync(ctx, simulation.Input{
				Message:          "Evaluate: " + req.Proposal.Title,
				ScenarioID:       req.ScenarioID,
				SessionID:        req.SessionID,
				AgentModels:      agentModels,
				PersonaOverrides: personas,
			})
			if err != nil {
				return nil, err
			}
			return json.Marshal(response)
		},
	})
	if err != nil {
		s.abortWithError(c, err)
		return
	}

	message := "New run"
	if output.Cached {
		message = "Cached"
	}
	c.JSON(http.StatusOK, PromoteResponse{
		Cached:      output.Cached,
		CacheKey:    output.CacheKey,
		Result:      output.Result,
		ProviderMix: output.ProviderMix,
		Message:     message,
	})
}

// invalidate handles POST /v1/cache/invalidate.
func (s *Server) invalidate(c *gin.Context) {
	if s.cache == nil {
		storageUnavailable(c)
		return
	}
	var req InvalidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if req.ScenarioID == "" {
		badRequest(c, "scenario_id is required")
		return
	}

	deleted, err := s.cache.Invalidate(c.Request.Context(), req.ScenarioID, req.AgentKey)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"scenario_id": req.ScenarioID,
		"invalidated": deleted,
	})
}

// computeKey handles POST /v1/cache/compute-key: the debugging endpoint
// that derives the fingerprint without touching the cache.
func (s *Server) computeKey(c *gin.Context) {
	var req ComputeKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if req.SimMode == "" {
		req.SimMode = "progressive"
	}

	proposalHash := req.ProposalHash
	if proposalHash == "" && req.Proposal != nil {
		proposalHash = cache.ProposalHash(*req.Proposal)
	}

	key := cache.ComputeKey(req.ScenarioID, proposalHash, req.AgentModels, req.ArchetypeOverrides, req.SimMode)
	c.JSON(http.StatusOK, gin.H{
		"cache_key":     key,
		"proposal_hash": proposalHash,
		"components": gin.H{
			"scenario_id":  req.ScenarioID,
			"agent_models": req.AgentModels,
			"sim_mode":     req.SimMode,
		},
	})
}
