package snapshots

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/folio/internal/domain"
	"github.com/aristath/folio/internal/utils"
	"github.com/rs/zerolog"
)

// BatchResolver prices a set of identifiers.
type BatchResolver interface {
	ResolveBatch(ctx context.Context, identifiers []string, preferred map[string]string) (map[string]*domain.Quote, error)
}

// RefreshJob resolves the configured identifiers, stores the quotes and
// prunes snapshots older than the retention window.
// It should be scheduled periodically.
type RefreshJob struct {
	resolver    BatchResolver
	repo        *Repository
	identifiers []string
	retention   time.Duration
	timeout     time.Duration
	now         func() time.Time
	log         zerolog.Logger
}

// RefreshConfig configures a RefreshJob. Zero Retention keeps everything.
type RefreshConfig struct {
	Identifiers []string
	Retention   time.Duration
	Timeout     time.Duration
}

// NewRefreshJob creates a snapshot refresh job.
func NewRefreshJob(resolver BatchResolver, repo *Repository, cfg RefreshConfig, log zerolog.Logger) *RefreshJob {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &RefreshJob{
		resolver:    resolver,
		repo:        repo,
		identifiers: cfg.Identifiers,
		retention:   cfg.Retention,
		timeout:     timeout,
		now:         time.Now,
		log:         log.With().Str("job", "snapshot_refresh").Logger(),
	}
}

// Name returns the job name for scheduling and logging.
func (j *RefreshJob) Name() string {
	return "snapshot_refresh"
}

// Run executes one refresh cycle.
func (j *RefreshJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	return j.RunContext(ctx)
}

// RunContext is Run with a caller-supplied context.
func (j *RefreshJob) RunContext(ctx context.Context) error {
	defer utils.OperationTimer(j.Name(), j.log)()

	if len(j.identifiers) > 0 {
		quotes, err := j.resolver.ResolveBatch(ctx, j.identifiers, nil)
		if err != nil {
			return fmt.Errorf("failed to resolve snapshot identifiers: %w", err)
		}

		saved, err := j.repo.SaveAll(ctx, quotes)
		if err != nil {
			j.log.Error().Err(err).Msg("Failed to save snapshots")
			return err
		}

		if missing := len(j.identifiers) - len(quotes); missing > 0 {
			j.log.Warn().
				Int("missing", missing).
				Int("requested", len(j.identifiers)).
				Msg("Some identifiers could not be priced")
		}
		j.log.Info().Int("saved", saved).Msg("Price snapshots stored")
	}

	if j.retention <= 0 {
		return nil
	}

	deleted, err := j.repo.DeleteOlderThan(ctx, j.now().Add(-j.retention))
	if err != nil {
		j.log.Error().Err(err).Msg("Failed to prune snapshots")
		return err
	}
	if deleted > 0 {
		j.log.Info().Int64("deleted", deleted).Msg("Pruned expired snapshots")
	}
	return nil
}
