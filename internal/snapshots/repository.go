// Package snapshots persists resolved quotes as a price history.
// Each row keeps the full quote as a JSON blob next to the queryable columns.
package snapshots

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aristath/folio/internal/database"
	"github.com/aristath/folio/internal/domain"
	"github.com/rs/zerolog"
)

// Schema creates the price_snapshots table.
const Schema = `
CREATE TABLE IF NOT EXISTS price_snapshots (
	identifier  TEXT    NOT NULL,
	captured_at INTEGER NOT NULL,
	source      TEXT    NOT NULL,
	price       TEXT    NOT NULL,
	currency    TEXT    NOT NULL,
	data        TEXT    NOT NULL,
	PRIMARY KEY (identifier, captured_at)
);
CREATE INDEX IF NOT EXISTS idx_price_snapshots_captured ON price_snapshots(captured_at);
`

// Repository reads and writes price snapshots.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a snapshot repository on an already migrated database.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "snapshots").Logger(),
	}
}

// Save stores one quote. A second snapshot of the same identifier with the
// same capture time replaces the first.
func (r *Repository) Save(ctx context.Context, q *domain.Quote) error {
	if !q.Valid() {
		return fmt.Errorf("%w: snapshot needs a positive price", domain.ErrNoPrice)
	}

	data, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("failed to marshal quote: %w", err)
	}

	_, err = r.db.ExecContext(ctx, insertQuery,
		domain.NormalizeIdentifier(q.Identifier), q.CapturedAt.Unix(), q.Source, q.Price.String(), q.Currency, string(data))
	if err != nil {
		return fmt.Errorf("failed to save snapshot for %s: %w", q.Identifier, err)
	}
	return nil
}

const insertQuery = `INSERT OR REPLACE INTO price_snapshots
	(identifier, captured_at, source, price, currency, data) VALUES (?, ?, ?, ?, ?, ?)`

// SaveAll stores every valid quote in one transaction and returns how many
// were written. Identifiers are written in sorted order.
func (r *Repository) SaveAll(ctx context.Context, quotes map[string]*domain.Quote) (int, error) {
	ids := make([]string, 0, len(quotes))
	for id, q := range quotes {
		if q.Valid() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if len(ids) == 0 {
		return 0, nil
	}

	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, insertQuery)
		if err != nil {
			return fmt.Errorf("failed to prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, id := range ids {
			q := quotes[id]
			data, err := json.Marshal(q)
			if err != nil {
				return fmt.Errorf("failed to marshal quote %s: %w", id, err)
			}
			if _, err := stmt.ExecContext(ctx,
				domain.NormalizeIdentifier(id), q.CapturedAt.Unix(), q.Source, q.Price.String(), q.Currency, string(data)); err != nil {
				return fmt.Errorf("failed to save snapshot for %s: %w", id, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// Latest returns the most recent snapshot for identifier.
// Returns nil, nil if none exists.
func (r *Repository) Latest(ctx context.Context, identifier string) (*domain.Quote, error) {
	var data string
	err := r.db.QueryRowContext(ctx,
		"SELECT data FROM price_snapshots WHERE identifier = ? ORDER BY captured_at DESC LIMIT 1",
		domain.NormalizeIdentifier(identifier),
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest snapshot for %s: %w", identifier, err)
	}

	var q domain.Quote
	if err := json.Unmarshal([]byte(data), &q); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot for %s: %w", identifier, err)
	}
	return &q, nil
}

// History returns the snapshots of identifier captured at or after since,
// oldest first. Rows that fail to decode are skipped.
func (r *Repository) History(ctx context.Context, identifier string, since time.Time) ([]domain.Quote, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT data FROM price_snapshots WHERE identifier = ? AND captured_at >= ? ORDER BY captured_at ASC",
		domain.NormalizeIdentifier(identifier), since.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query history for %s: %w", identifier, err)
	}
	defer rows.Close()

	history := make([]domain.Quote, 0)
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		var q domain.Quote
		if err := json.Unmarshal([]byte(data), &q); err != nil {
			r.log.Warn().Err(err).Str("identifier", identifier).Msg("Skipping undecodable snapshot")
			continue
		}
		history = append(history, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate history for %s: %w", identifier, err)
	}
	return history, nil
}

// DeleteOlderThan removes snapshots captured before cutoff and returns the
// number of rows deleted.
func (r *Repository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM price_snapshots WHERE captured_at < ?", cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete old snapshots: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}

// Count returns the number of stored snapshots.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM price_snapshots").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count snapshots: %w", err)
	}
	return n, nil
}
