// Package di provides dependency injection wiring and initialization.
package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/folio/internal/config"
)

// Wire initializes all dependencies and returns a fully configured container
// This is the main entry point for dependency injection
// Order of operations:
// 1. Initialize services (cache, sources, resolver, portfolio)
// 2. Initialize the snapshot database
// 3. Register jobs
// The scheduler is created but not started.
func Wire(cfg *config.Config, log zerolog.Logger) (*Container, *JobInstances, error) {
	container, err := InitializeServices(cfg, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	if err := InitializeDatabases(container, cfg, log); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize databases: %w", err)
	}

	jobs, err := RegisterJobs(container, cfg, log)
	if err != nil {
		container.Close()
		return nil, nil, fmt.Errorf("failed to register jobs: %w", err)
	}

	log.Info().Msg("Dependency injection wiring completed successfully")

	return container, jobs, nil
}

// WireCore wires only what a one-shot CLI invocation needs: no storage, no jobs.
func WireCore(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	return InitializeServices(cfg, log)
}
