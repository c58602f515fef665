// Package main is the entry point for the posenv position environment server.
// It serves aggregated section data over HTTP, caches results by request
// fingerprint and keeps the cache warm from configured warmup jobs.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/posenv/internal/aggregator"
	"github.com/aristath/posenv/internal/cache"
	"github.com/aristath/posenv/internal/config"
	"github.com/aristath/posenv/internal/database"
	"github.com/aristath/posenv/internal/domain"
	"github.com/aristath/posenv/internal/orchestrator"
	"github.com/aristath/posenv/internal/requestlog"
	"github.com/aristath/posenv/internal/scheduler"
	"github.com/aristath/posenv/internal/sections"
	"github.com/aristath/posenv/internal/server"
	"github.com/aristath/posenv/internal/status"
	"github.com/aristath/posenv/internal/validation"
	"github.com/aristath/posenv/internal/warmup"
	"github.com/aristath/posenv/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Use fallback logger if config fails
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
		File:   cfg.LogFile,
	})
	logger.SetGlobalLogger(log)

	log.Info().Str("data_dir", cfg.DataDir).Msg("Starting posenv")
	if !cfg.SettingsFound {
		log.Warn().Str("path", cfg.SettingsPath).Msg("Settings file not found, running with defaults and no warmup jobs")
	}

	reg := status.NewRegistry()

	// Request log
	db, err := database.New(database.Config{
		Path:    cfg.RequestLogPath(),
		Profile: database.ProfileLedger,
		Name:    "requests",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open request log database")
	}
	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate request log database")
	}
	store := requestlog.NewSQLiteStore(db, log)

	// Fan-out
	registry := sections.DefaultRegistry()
	pool := orchestrator.NewPool(cfg.WorkerPoolSize)
	orch := orchestrator.New(registry, sections.NewRunner(log), pool, cfg.OrchestratorConfig(), log)

	resultCache := cache.New[domain.OrchestrationResult](cfg.CacheMaxEntries, log)
	ttl := cfg.TTLPolicy()
	validator := validation.New(registry)

	service := aggregator.NewService(validator, orch, resultCache, ttl, store, reg, log)

	// Warmup
	jobs, err := cfg.WarmupJobs()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build warmup jobs")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	warm := warmup.New(jobs, orch, validator, resultCache, ttl, reg, log)
	warm.Start(ctx)
	log.Info().Int("jobs", len(jobs)).Msg("Warmup scheduler started")

	// Maintenance
	sched := scheduler.New(log)
	cleanup := requestlog.NewCleanupJob(store, db, cfg.RequestLogRetention, log)
	if err := sched.AddJob(cfg.RequestLogCleanupSchedule, cleanup); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule request log cleanup")
	}
	if err := sched.AddJob(cfg.DatabaseCheckSchedule, scheduler.NewCheckDatabaseJob(db, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule database check")
	}
	sched.Start()

	srv := server.New(server.Config{
		Log:            log,
		Port:           cfg.Port,
		DevMode:        cfg.DevMode,
		Service:        service,
		Status:         reg,
		Cache:          resultCache,
		Pool:           pool,
		DB:             db,
		Maintenance:    sched,
		StreamInterval: cfg.StatusStreamInterval,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	// Warmup loops exit at their next sleep
	cancel()
	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	warm.Wait()

	if err := db.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close request log database")
	}

	log.Info().Msg("Server stopped")
}
