package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// graphData handles GET /v1/ai/graph-data/:session_id. An optional
// scenario_id query resolves per-agent model overrides onto the nodes.
func (s *Server) graphData(c *gin.Context) {
	sessionID := c.Param("session_id")

	agentModels, _ := s.resolveOverrides(c.Request.Context(), c.Query("scenario_id"))
	c.JSON(http.StatusOK, s.orchestrator.BuildGraphData(sessionID, agentModels))
}

// activeCalls handles GET /v1/ai/active-calls/:session_id: the polling
// view of in-flight upstream calls for the session's latest job.
func (s *Server) activeCalls(c *gin.Context) {
	c.JSON(http.StatusOK, s.orchestrator.BuildActiveCalls(c.Request.Context(), c.Param("session_id")))
}
