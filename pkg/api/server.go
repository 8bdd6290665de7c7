// Package api exposes the simulation service over HTTP.
package api

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kingston-civic/civicsim/pkg/agents"
	"github.com/kingston-civic/civicsim/pkg/cache"
	"github.com/kingston-civic/civicsim/pkg/config"
	"github.com/kingston-civic/civicsim/pkg/jobs"
	"github.com/kingston-civic/civicsim/pkg/ledger"
	"github.com/kingston-civic/civicsim/pkg/session"
	"github.com/kingston-civic/civicsim/pkg/simulation"
	"github.com/kingston-civic/civicsim/pkg/store"
)

// Deps bundles everything the HTTP layer needs.
type Deps struct {
	Orchestrator *simulation.Orchestrator
	DM           *agents.DirectMessenger
	Adopter      *agents.Adopter
	Sessions     *session.Store
	JobStore     *jobs.Store
	Cache        *cache.Service
	Overrides    *store.AgentOverrideRepo
	Ledger       *ledger.Service
	DB           *sql.DB
	Settings     *config.Settings
	Logger       *slog.Logger
}

// Server is the HTTP front of the simulation service.
type Server struct {
	orchestrator *simulation.Orchestrator
	dm           *agents.DirectMessenger
	adopter      *agents.Adopter
	sessions     *session.Store
	jobStore     *jobs.Store
	cache        *cache.Service
	overrides    *store.AgentOverrideRepo
	ledger       *ledger.Service
	db           *sql.DB
	logger       *slog.Logger

	httpServer *http.Server
}

// NewServer builds the server and its router.
func NewServer(deps Deps) *Server {
	s := &Server{
		orchestrator: deps.Orchestrator,
		dm:           deps.DM,
		adopter:      deps.Adopter,
		sessions:     deps.Sessions,
		jobStore:     deps.JobStore,
		cache:        deps.Cache,
		overrides:    deps.Overrides,
		ledger:       deps.Ledger,
		db:           deps.DB,
		logger:       deps.Logger.With("component", "api"),
	}

	if deps.Settings != nil && deps.Settings.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(s.requestLogger(), s.recovery(), securityHeaders())
	s.registerRoutes(router)

	addr := ":8080"
	if deps.Settings != nil {
		addr = ":" + deps.Settings.HTTPPort
	}
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) registerRoutes(router *gin.Engine) {
	router.GET("/health", s.health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")

	ai := v1.Group("/ai")
	ai.POST("/chat", s.chat)
	ai.POST("/simulate", s.startSimulation)
	ai.GET("/simulate/:job_id", s.simulationStatus)
	ai.POST("/adopt", s.adopt)
	ai.POST("/dm", s.sendDM)
	ai.GET("/relationships/:session_id", s.relationships)
	ai.GET("/graph-data/:session_id", s.graphData)
	ai.GET("/active-calls/:session_id", s.activeCalls)

	cacheGroup := v1.Group("/cache")
	cacheGroup.GET("/:cache_key", s.cacheGet)
	cacheGroup.POST("/promote", s.promote)
	cacheGroup.POST("/invalidate", s.invalidate)
	cacheGroup.POST("/compute-key", s.computeKey)

	scenarios := v1.Group("/scenarios")
	scenarios.GET("/:id/agent-overrides", s.listOverrides)
	scenarios.PUT("/:id/agents/:agent_key", s.setOverride)
	scenarios.POST("/:id/agents/:agent_key/reset", s.resetOverride)
	scenarios.POST("/:id/agents/reset-all", s.resetAllOverrides)
}

// Handler returns the underlying HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("HTTP server listening", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
