package database

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log"
	"sort"
	"strconv"
	"strings"
)

//go:embed migrations/sqlite/*.sql
var sqliteMigrationsFS embed.FS

//go:embed migrations/postgres/*.sql
var postgresMigrationsFS embed.FS

// Migration is one versioned, idempotent schema change.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// RunMigrations applies all pending migrations for dialect, recording each
// in schema_migrations. It never re-applies an already-recorded version and
// has no down-migration path: a binary only ever moves a schema forward.
func RunMigrations(db *sql.DB, dialect Dialect) error {
	if err := createMigrationsTable(db, dialect); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	migrations, err := loadMigrations(dialect)
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	for _, m := range migrations {
		applied, err := isMigrationApplied(db, dialect, m.Version)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if applied {
			continue
		}

		log.Printf("applying migration %d: %s", m.Version, m.Name)
		if err := applyMigration(db, dialect, m); err != nil {
			return fmt.Errorf("apply migration %d: %w", m.Version, err)
		}
	}

	return nil
}

func createMigrationsTable(db *sql.DB, dialect Dialect) error {
	ddl := `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`
	if dialect.Name == "postgres" {
		ddl = `CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMPTZ DEFAULT now()
		)`
	}
	_, err := db.Exec(ddl)
	return err
}

func migrationsDir(dialect Dialect) (fs.FS, string) {
	if dialect.Name == "postgres" {
		return postgresMigrationsFS, "migrations/postgres"
	}
	return sqliteMigrationsFS, "migrations/sqlite"
}

func loadMigrations(dialect Dialect) ([]Migration, error) {
	fsys, dir := migrationsDir(dialect)

	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}

	var migrations []Migration
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		parts := strings.SplitN(entry.Name(), "_", 2)
		if len(parts) != 2 {
			continue
		}
		version, err := strconv.Atoi(parts[0])
		if err != nil {
			continue
		}
		name := strings.TrimSuffix(parts[1], ".sql")

		content, err := fs.ReadFile(fsys, dir+"/"+entry.Name())
		if err != nil {
			return nil, err
		}

		migrations = append(migrations, Migration{Version: version, Name: name, SQL: string(content)})
	}

	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })
	return migrations, nil
}

func isMigrationApplied(db *sql.DB, dialect Dialect, version int) (bool, error) {
	query, args, err := dialect.Builder().
		Select("COUNT(*)").
		From("schema_migrations").
		Where("version = ?", version).
		ToSql()
	if err != nil {
		return false, err
	}
	var count int
	if err := db.QueryRow(query, args...).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func applyMigration(db *sql.DB, dialect Dialect, m Migration) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(m.SQL); err != nil {
		return fmt.Errorf("SQL execution failed: %w", err)
	}

	query, args, err := dialect.Builder().
		Insert("schema_migrations").
		Columns("version", "name").
		Values(m.Version, m.Name).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(query, args...); err != nil {
		return fmt.Errorf("record migration: %w", err)
	}

	return tx.Commit()
}
