// Package database provides connection management and schema migrations
// for the gateway's two supported persistence backends.
package database

import (
	"database/sql"
	"fmt"

	"github.com/llmgateway/gateway/internal/config"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	_ "modernc.org/sqlite"             // registers the "sqlite" driver
)

// Open opens the backend selected by cfg (DATABASE_URL if set, else
// SQLITE_PATH) and returns the connection pool together with the dialect
// repository code should build queries for.
func Open(cfg config.DatabaseConfig) (*sql.DB, Dialect, error) {
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			return nil, Postgres, fmt.Errorf("open postgres: %w", err)
		}
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxIdleConns)
		if err := db.Ping(); err != nil {
			db.Close()
			return nil, Postgres, fmt.Errorf("ping postgres: %w", err)
		}
		return db, Postgres, nil
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=ON", cfg.SQLitePath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, SQLite, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, SQLite, fmt.Errorf("ping sqlite: %w", err)
	}
	return db, SQLite, nil
}
