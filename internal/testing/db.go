// Package testing provides testing utilities and helpers for the folio project.
package testing

import (
	"testing"

	"github.com/aristath/folio/internal/database"
	_ "github.com/mattn/go-sqlite3" // cgo driver registered as "sqlite3" for tests
)

// NewTestDB creates an in-memory SQLite database for testing and applies schema.
// The database is closed automatically when the test finishes.
// Each call returns an isolated database; an empty schema creates an empty one.
func NewTestDB(t *testing.T, name string, schema string) *database.DB {
	t.Helper()

	db, err := database.New(database.Config{
		Path:   ":memory:",
		Name:   name,
		Driver: "sqlite3",
	})
	if err != nil {
		t.Fatalf("Failed to create test database %s: %v", name, err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("Warning: Failed to close test database %s: %v", name, err)
		}
	})

	if schema != "" {
		if err := db.Migrate(schema); err != nil {
			t.Fatalf("Failed to migrate test database %s: %v", name, err)
		}
	}

	return db
}
