// Package db is the sqlite history journal. The store on disk stays the
// source of truth for what is installed; the journal only records what
// happened.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/quantmind-br/qpm/internal/core"
	_ "modernc.org/sqlite"
)

const schemaVersion = 1

// ErrEventNotFound is returned by Get for an unknown id
var ErrEventNotFound = errors.New("event not found")

// DB represents the database with separate read/write pools
type DB struct {
	write *sql.DB
	read  *sql.DB
	path  string
}

// New opens (creating if needed) the journal at dbPath
func New(ctx context.Context, dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	connStr := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_time_format=sqlite", dbPath)

	// Write pool: MUST be 1 connection only
	write, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open write connection: %w", err)
	}
	write.SetMaxOpenConns(1)
	write.SetMaxIdleConns(1)
	write.SetConnMaxIdleTime(time.Minute)

	read, err := sql.Open("sqlite", connStr)
	if err != nil {
		write.Close()
		return nil, fmt.Errorf("open read connection: %w", err)
	}
	read.SetMaxOpenConns(4)
	read.SetMaxIdleConns(2)
	read.SetConnMaxIdleTime(time.Minute)

	db := &DB{
		write: write,
		read:  read,
		path:  dbPath,
	}

	if err := db.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return db, nil
}

// Path returns the database file path
func (db *DB) Path() string { return db.path }

// Close closes both database connections
func (db *DB) Close() error {
	return errors.Join(db.write.Close(), db.read.Close())
}

// Ping checks that the database answers queries
func (db *DB) Ping(ctx context.Context) error {
	var n int
	if err := db.read.QueryRowContext(ctx, "SELECT COUNT(*) FROM events").Scan(&n); err != nil {
		return fmt.Errorf("query events: %w", err)
	}
	return nil
}

func (db *DB) initSchema(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS events (
    event_id TEXT PRIMARY KEY,
    action TEXT NOT NULL,
    name TEXT NOT NULL,
    version TEXT,
    source_url TEXT,
    outcome TEXT NOT NULL,
    error_kind TEXT,
    message TEXT,
    created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_name ON events(name);
CREATE INDEX IF NOT EXISTS idx_events_created ON events(created_at);

CREATE TABLE IF NOT EXISTS schema_migrations (
    version INTEGER PRIMARY KEY,
    applied_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    description TEXT
);
	`

	if _, err := db.write.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	_, err := db.write.ExecContext(ctx,
		"INSERT OR IGNORE INTO schema_migrations (version, description) VALUES (?, ?)",
		schemaVersion, "history journal")
	if err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return nil
}

// Record appends an event. Missing ids and timestamps are filled in.
func (db *DB) Record(ctx context.Context, ev core.Event) error {
	if ev.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("generate event id: %w", err)
		}
		ev.ID = id.String()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	query := `
INSERT INTO events (event_id, action, name, version, source_url, outcome, error_kind, message, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.write.ExecContext(ctx, query,
		ev.ID,
		ev.Action,
		ev.Name,
		ev.Version,
		ev.SourceURL,
		ev.Outcome,
		ev.ErrorKind,
		ev.Message,
		ev.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

const selectEvents = `
SELECT event_id, action, name, version, source_url, outcome, error_kind, message, created_at
FROM events`

// Get retrieves one event by id
func (db *DB) Get(ctx context.Context, id string) (*core.Event, error) {
	row := db.read.QueryRowContext(ctx, selectEvents+" WHERE event_id = ?", id)
	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrEventNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return ev, nil
}

// List returns events newest first. An empty name lists every package and
// limit <= 0 means no limit.
func (db *DB) List(ctx context.Context, name string, limit int) ([]core.Event, error) {
	query := selectEvents
	var args []interface{}
	if name != "" {
		query += " WHERE name = ?"
		args = append(args, name)
	}
	// event ids are UUIDv7 and sort by creation time within equal timestamps
	query += " ORDER BY created_at DESC, event_id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.read.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []core.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return events, nil
}

// Prune deletes events older than before and returns how many were removed
func (db *DB) Prune(ctx context.Context, before time.Time) (int64, error) {
	result, err := db.write.ExecContext(ctx, "DELETE FROM events WHERE created_at < ?", before.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete events: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check rows affected: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(s scanner) (*core.Event, error) {
	var (
		ev                                     core.Event
		version, sourceURL, errorKind, message sql.NullString
	)
	err := s.Scan(
		&ev.ID,
		&ev.Action,
		&ev.Name,
		&version,
		&sourceURL,
		&ev.Outcome,
		&errorKind,
		&message,
		&ev.Timestamp,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan event: %w", err)
	}
	ev.Version = version.String
	ev.SourceURL = sourceURL.String
	ev.ErrorKind = errorKind.String
	ev.Message = message.String
	return &ev, nil
}
