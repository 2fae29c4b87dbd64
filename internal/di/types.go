/**
 * Package di provides dependency injection type definitions.
 *
 * This package defines the Container type which holds all application dependencies.
 * The Container is the single source of truth for all service instances and is
 * passed to the HTTP server and the CLI.
 */
package di

import (
	"github.com/aristath/folio/internal/cache"
	"github.com/aristath/folio/internal/database"
	"github.com/aristath/folio/internal/domain"
	"github.com/aristath/folio/internal/portfolio"
	"github.com/aristath/folio/internal/resolver"
	"github.com/aristath/folio/internal/scheduler"
	"github.com/aristath/folio/internal/snapshots"
)

/**
 * Container holds all dependencies for the application.
 *
 * Architecture:
 * - Cache: LRU quote/search cache and per-source rate limiter
 * - Sources: quote source clients in waterfall priority order
 * - Services: resolver and portfolio valuation
 * - Storage: snapshot database and repository (nil for the CLI)
 * - Scheduler: background job runner (nil for the CLI)
 */
type Container struct {
	Cache   *cache.Store
	Limiter *cache.RateLimiter

	Sources []domain.QuoteSource

	Resolver         *resolver.Resolver
	PortfolioService *portfolio.Service

	SnapshotDB   *database.DB
	SnapshotRepo *snapshots.Repository

	Scheduler *scheduler.Scheduler
}

// JobInstances holds the registered background jobs for manual triggering.
// SnapshotRefresh is nil when snapshots are disabled.
type JobInstances struct {
	SnapshotRefresh *snapshots.RefreshJob
	WALCheckpoint   *scheduler.WALCheckpointJob
}

// SourceNames returns the configured source names in priority order.
func (c *Container) SourceNames() []string {
	names := make([]string, 0, len(c.Sources))
	for _, src := range c.Sources {
		names = append(names, src.Name())
	}
	return names
}

// Close releases the container's storage. It is safe on a CLI container.
func (c *Container) Close() error {
	if c.Scheduler != nil {
		c.Scheduler.Stop()
	}
	if c.SnapshotDB != nil {
		return c.SnapshotDB.Close()
	}
	return nil
}
