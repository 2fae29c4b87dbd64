// Package main is the entry point for the Folio quote and portfolio service.
// It resolves instrument prices through a waterfall of upstream sources,
// values trade ledgers against them and keeps a history of price snapshots.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/folio/internal/config"
	"github.com/aristath/folio/internal/di"
	"github.com/aristath/folio/internal/server"
	"github.com/aristath/folio/pkg/logger"
)

// main orchestrates the startup sequence:
// 1. Loads configuration from environment variables (.env supported)
// 2. Initializes logging
// 3. Wires all dependencies via the DI container
// 4. Starts the HTTP server and the job scheduler
// 5. Waits for a shutdown signal and shuts down gracefully
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

	log.Info().Str("data_dir", cfg.DataDir).Msg("Starting Folio")

	container, jobs, err := di.Wire(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	// Close stops the scheduler (letting in-flight jobs finish) before the database
	defer func() {
		if err := container.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close snapshot database")
		}
	}()

	srv := server.New(server.Config{
		Log:        log,
		Port:       cfg.Port,
		DevMode:    cfg.DevMode,
		Resolver:   container.Resolver,
		Portfolio:  container.PortfolioService,
		Cache:      container.Cache,
		Limiter:    container.Limiter,
		Scheduler:  container.Scheduler,
		SnapshotDB: container.SnapshotDB,
		Snapshots:  container.SnapshotRepo,
		Sources:    container.SourceNames(),
	})

	// Start server in goroutine
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	container.Scheduler.Start()
	log.Info().Int("jobs", len(container.Scheduler.Jobs())).Msg("Scheduler started")

	// Take a first snapshot right away instead of waiting for the first tick
	if jobs.SnapshotRefresh != nil {
		go func() {
			if err := container.Scheduler.RunNow(jobs.SnapshotRefresh); err != nil {
				log.Warn().Err(err).Msg("Initial snapshot refresh failed")
			}
		}()
	}

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
