package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/folio/internal/config"
	"github.com/aristath/folio/internal/database"
	"github.com/aristath/folio/internal/snapshots"
)

// InitializeDatabases opens and migrates the snapshot database and attaches
// its repository to the container.
func InitializeDatabases(container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}

	db, err := database.New(database.Config{
		Path:    cfg.SnapshotDBPath(),
		Profile: database.ProfileStandard,
		Name:    "snapshots",
	})
	if err != nil {
		return fmt.Errorf("failed to open snapshot database: %w", err)
	}

	if err := db.Migrate(snapshots.Schema); err != nil {
		db.Close()
		return fmt.Errorf("failed to migrate snapshot database: %w", err)
	}

	container.SnapshotDB = db
	container.SnapshotRepo = snapshots.NewRepository(db.Conn(), log)

	log.Info().Str("path", db.Path()).Msg("Snapshot database initialized")
	return nil
}
