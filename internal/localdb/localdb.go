// Package localdb opens the on-device SQLite database shared by the note
// store, the mutation log and the account session.
package localdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS notes (
		id         TEXT PRIMARY KEY,
		owner_id   TEXT NOT NULL,
		pinned     INTEGER NOT NULL DEFAULT 0,
		deleted    INTEGER NOT NULL DEFAULT 0,
		updated_at INTEGER NOT NULL,
		doc        TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS notes_owner_idx ON notes (owner_id, deleted)`,
	`CREATE TABLE IF NOT EXISTS mutations (
		device_id    TEXT NOT NULL,
		seq          INTEGER NOT NULL,
		note_id      TEXT NOT NULL,
		owner_id     TEXT NOT NULL,
		payload      TEXT NOT NULL,
		applied      INTEGER NOT NULL DEFAULT 0,
		acknowledged INTEGER NOT NULL DEFAULT 0,
		created_at   INTEGER NOT NULL,
		PRIMARY KEY (device_id, seq)
	)`,
	`CREATE INDEX IF NOT EXISTS mutations_note_idx ON mutations (note_id)`,
	`CREATE TABLE IF NOT EXISTS device_sequences (
		device_id TEXT PRIMARY KEY,
		next_seq  INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sync_cursors (
		owner_id   TEXT PRIMARY KEY,
		cursor     TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS session (
		id            INTEGER PRIMARY KEY CHECK (id = 1),
		user_id       TEXT NOT NULL,
		device_id     TEXT NOT NULL,
		access_token  TEXT NOT NULL,
		refresh_token TEXT NOT NULL DEFAULT ''
	)`,
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on&_txlock=immediate", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection serializes writers; readers go through the
	// in-memory snapshot instead.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply schema: %w", err)
		}
	}

	return db, nil
}
