// Package testutil provides shared test fixtures for the gateway's SQL
// layer: an in-memory SQLite database with every migration applied.
package testutil

import (
	"database/sql"
	"testing"

	"github.com/llmgateway/gateway/internal/database"
	_ "modernc.org/sqlite"
)

// NewTestDB opens a fresh in-memory SQLite database, applies every
// migration, and registers cleanup to close it when t completes.
func NewTestDB(t *testing.T) (*sql.DB, database.Dialect) {
	t.Helper()

	db, err := sql.Open("sqlite", "file::memory:?cache=shared&_foreign_keys=ON")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	if err := database.RunMigrations(db, database.SQLite); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	return db, database.SQLite
}
