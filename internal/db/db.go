// Package db provides the SQLite persistence layer: the shared session
// counter table and the crisis event audit log.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS session_counters (
	user_id         TEXT PRIMARY KEY,
	crisis_count    INTEGER NOT NULL DEFAULT 0,
	negative_streak INTEGER NOT NULL DEFAULT 0,
	last_seen       INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_session_counters_last_seen ON session_counters(last_seen);

CREATE TABLE IF NOT EXISTS crisis_events (
	id           TEXT PRIMARY KEY,
	user_id      TEXT NOT NULL,
	severity     TEXT NOT NULL,
	matched      TEXT NOT NULL DEFAULT '[]',
	confidence   REAL NOT NULL DEFAULT 0,
	kind         TEXT NOT NULL,
	crisis_count INTEGER NOT NULL DEFAULT 0,
	fail_safe    INTEGER NOT NULL DEFAULT 0,
	created_at   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_crisis_events_user ON crisis_events(user_id, created_at);
`

// DB wraps the SQLite handle.
type DB struct {
	*sql.DB
	path string
}

// Open opens (creating if needed) the database at path without migrating.
// Use ":memory:" for a throwaway database.
func Open(path string) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database dir: %w", err)
		}
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One connection serializes writers; counter updates are single statements.
	sqlDB.SetMaxOpenConns(1)

	return &DB{DB: sqlDB, path: path}, nil
}

// OpenAndMigrate opens the database and applies the schema.
func OpenAndMigrate(path string) (*DB, error) {
	database, err := Open(path)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(); err != nil {
		_ = database.Close()
		return nil, err
	}
	return database, nil
}

// Migrate applies the schema. It is idempotent.
func (db *DB) Migrate() error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}
	return nil
}

// Path returns the path the database was opened with.
func (db *DB) Path() string {
	return db.path
}
