package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kingston-civic/civicsim/pkg/models"
	"github.com/kingston-civic/civicsim/pkg/simulation"
)

// AIChatRequest is the body of POST /v1/ai/chat and POST /v1/ai/simulate.
type AIChatRequest struct {
	Message    string `json:"message"`
	ScenarioID string `json:"scenario_id"`
	SessionID  string `json:"session_id"`
	ThreadID   string `json:"thread_id"`

	SpeakerMode     string `json:"speaker_mode"`
	SpeakerAgentKey string `json:"speaker_agent_key"`

	AffectedRegions  []models.AffectedRegion   `json:"affected_regions"`
	ContainingZoneID string                    `json:"containing_zone_id"`
	WorldState       *models.WorldStateSummary `json:"world_state"`
}

// SimulationStartResponse acknowledges a progressive run.
type SimulationStartResponse struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// chat handles POST /v1/ai/chat: the synchronous full pipeline. Every
// message produces either a simulation or a clarification, never
// chatbot talk.
func (s *Server) chat(c *gin.Context) {
	var req AIChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		badRequest(c, "Message cannot be empty")
		return
	}

	response, err := s.orchestrator.RunSync(c.Request.Context(), s.simulationInput(c.Request.Context(), req))
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, response)
}

// startSimulation handles POST /v1/ai/simulate: creates a job and runs
// the pipeline in the background. Poll the job id for progress.
func (s *Server) startSimulation(c *gin.Context) {
	var req AIChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		badRequest(c, "Message cannot be empty")
		return
	}

	job, err := s.orchestrator.StartProgressive(c.Request.Context(), s.simulationInput(c.Request.Context(), req))
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, SimulationStartResponse{
		JobID:   job.JobID,
		Status:  job.Status,
		Message: "Simulation starting...",
	})
}

// simulationStatus handles GET /v1/ai/simulate/:job_id.
func (s *Server) simulationStatus(c *gin.Context) {
	job, err := s.jobStore.Get(c.Request.Context(), c.Param("job_id"))
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, job.ToStatusResponse())
}

func (s *Server) simulationInput(ctx context.Context, req AIChatRequest) simulation.Input {
	agentModels, personas := s.resolveOverrides(ctx, req.ScenarioID)
	return simulation.Input{
		Message:          req.Message,
		ScenarioID:       req.ScenarioID,
		SessionID:        req.SessionID,
		ThreadID:         req.ThreadID,
		SpeakerMode:      req.SpeakerMode,
		SpeakerAgentKey:  req.SpeakerAgentKey,
		AffectedRegions:  req.AffectedRegions,
		ContainingZoneID: req.ContainingZoneID,
		WorldState:       req.WorldState,
		AgentModels:      agentModels,
		PersonaOverrides: personas,
	}
}

// resolveOverrides loads the scenario's per-agent customizations. A
// storage failure degrades to defaults rather than failing the run.
func (s *Server) resolveOverrides(ctx context.Context, scenarioID string) (map[string]string, map[string]string) {
	if s.overrides == nil || scenarioID == "" {
		return nil, nil
	}
	overrides, err := s.overrides.List(ctx, scenarioID)
	if err != nil {
		s.logger.Warn("Failed to load agent overrides, using defaults",
			"scenario_id", scenarioID, "error", err)
		return nil, nil
	}

	agentModels := make(map[string]string)
	personas := make(map[string]string)
	for _, o := range overrides {
		if o.Model != nil && *o.Model != "" {
			agentModels[o.AgentKey] = *o.Model
		}
		if o.Archetype != nil && *o.Archetype != "" {
			personas[o.AgentKey] = *o.Archetype
		}
	}
	return agentModels, personas
}
