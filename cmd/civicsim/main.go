// CivicSim server — the multi-agent civic-reaction simulator. Exposes
// the HTTP API, drives simulation runs against the Backboard gateway,
// and maintains the durable world-state ledger.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/kingston-civic/civicsim/pkg/agents"
	"github.com/kingston-civic/civicsim/pkg/api"
	"github.com/kingston-civic/civicsim/pkg/backboard"
	"github.com/kingston-civic/civicsim/pkg/cache"
	"github.com/kingston-civic/civicsim/pkg/cleanup"
	"github.com/kingston-civic/civicsim/pkg/config"
	"github.com/kingston-civic/civicsim/pkg/database"
	"github.com/kingston-civic/civicsim/pkg/jobs"
	"github.com/kingston-civic/civicsim/pkg/ledger"
	"github.com/kingston-civic/civicsim/pkg/session"
	"github.com/kingston-civic/civicsim/pkg/simulation"
	"github.com/kingston-civic/civicsim/pkg/store"
	"github.com/kingston-civic/civicsim/pkg/version"
)

func main() {
	personasPath := flag.String("personas",
		os.Getenv("PERSONAS_FILE"),
		"Optional YAML file with agent persona overrides")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment", "error", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	slog.Info("Starting CivicSim", "version", version.Full())

	ctx := context.Background()

	// 1. Settings
	settings, err := config.LoadSettings()
	if err != nil {
		slog.Error("Failed to load settings", "error", err)
		os.Exit(1)
	}

	// 2. Catalog persona overrides (optional)
	if *personasPath != "" {
		if err := config.LoadCatalogOverrides(*personasPath, logger); err != nil {
			slog.Error("Failed to load persona overrides", "path", *personasPath, "error", err)
			os.Exit(1)
		}
	}

	// 3. Database (optional: the service degrades to memory-only)
	var db *database.Client
	var repos *store.Store
	dbConfig, err := database.LoadConfigFromEnv()
	if err != nil {
		slog.Error("Failed to load database config", "error", err)
		os.Exit(1)
	}
	db, err = database.NewClient(ctx, dbConfig)
	if err != nil {
		slog.Warn("Database unavailable, running with in-memory state only", "error", err)
		db = nil
	} else {
		defer func() {
			if err := db.Close(); err != nil {
				slog.Error("Error closing database", "error", err)
			}
		}()
		repos = store.New(db.DB())
		slog.Info("Connected to PostgreSQL database")
	}

	// 4. Backboard gateway client
	gateway := backboard.NewClient(settings.BackboardBaseURL, settings.BackboardAPIKey, logger)
	slog.Info("Backboard client initialized", "base_url", settings.BackboardBaseURL)

	// 5. Session and job stores
	sessions := session.NewStore()
	var jobRepo *store.JobRepo
	if repos != nil {
		jobRepo = repos.Jobs
	}
	jobStore := jobs.NewStore(jobRepo, settings.JobTTL, logger)

	// 6. Ledger and promotion cache
	var ledgerRepo *store.LedgerRepo
	var cacheService *cache.Service
	var overridesRepo *store.AgentOverrideRepo
	if repos != nil {
		ledgerRepo = repos.Ledger
		cacheService = cache.NewService(repos.Cache, logger)
		overridesRepo = repos.Overrides
	}
	ledgerService := ledger.NewService(ledgerRepo, settings.LedgerEnabled, logger)

	// 7. Simulation roles
	orchestrator := simulation.New(gateway, sessions, jobStore, logger)
	dm := agents.NewDirectMessenger(gateway, logger)
	adopter := agents.NewAdopter(gateway, logger)
	slog.Info("Simulation services initialized",
		"agents", len(config.Agents), "ledger_enabled", ledgerService.Enabled())

	// 8. Background job sweeper
	sweeper := cleanup.NewService(jobStore, settings.JobTTL, logger)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	// 9. HTTP server
	deps := api.Deps{
		Orchestrator: orchestrator,
		DM:           dm,
		Adopter:      adopter,
		Sessions:     sessions,
		JobStore:     jobStore,
		Cache:        cacheService,
		Overrides:    overridesRepo,
		Ledger:       ledgerService,
		Settings:     settings,
		Logger:       logger,
	}
	if db != nil {
		deps.DB = db.DB()
	}
	httpServer := api.NewServer(deps)

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	slog.Info("CivicSim started", "http_port", settings.HTTPPort, "env", settings.AppEnv)

	// 10. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// 11. Graceful shutdown: drain HTTP first, in-flight progressive
	// jobs keep writing to the job store until the process exits.
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}
