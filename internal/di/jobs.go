// Package di provides dependency injection for scheduler jobs.
package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/folio/internal/config"
	"github.com/aristath/folio/internal/scheduler"
	"github.com/aristath/folio/internal/snapshots"
)

// walCheckpointSchedule runs WAL maintenance every night.
const walCheckpointSchedule = "0 3 * * *"

// RegisterJobs creates the scheduler and registers the background jobs.
// The snapshot refresh job is only registered when a schedule is configured.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	if container == nil {
		return nil, fmt.Errorf("container cannot be nil")
	}
	if container.SnapshotRepo == nil {
		return nil, fmt.Errorf("snapshot repository not initialized")
	}

	sched := scheduler.New(log)
	instances := &JobInstances{}

	if cfg.SnapshotSchedule != "" {
		instances.SnapshotRefresh = snapshots.NewRefreshJob(
			container.Resolver,
			container.SnapshotRepo,
			snapshots.RefreshConfig{
				Identifiers: cfg.SnapshotIdentifiers,
				Retention:   cfg.SnapshotRetention,
			},
			log,
		)
		if err := sched.AddJob(cfg.SnapshotSchedule, instances.SnapshotRefresh); err != nil {
			return nil, fmt.Errorf("failed to register snapshot refresh job: %w", err)
		}
		if len(cfg.SnapshotIdentifiers) == 0 {
			log.Warn().Msg("SNAPSHOT_IDENTIFIERS is empty, refresh job will only prune")
		}
	} else {
		log.Info().Msg("SNAPSHOT_SCHEDULE is empty, snapshot refresh disabled")
	}

	instances.WALCheckpoint = scheduler.NewWALCheckpointJob(log, container.SnapshotDB)
	if err := sched.AddJob(walCheckpointSchedule, instances.WALCheckpoint); err != nil {
		return nil, fmt.Errorf("failed to register WAL checkpoint job: %w", err)
	}

	container.Scheduler = sched
	return instances, nil
}
