// Package store writes occurrence tables to an SQLite file so they can be
// opened by spreadsheet and BI tools.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/setevik/alarmtrace/internal/event"
)

// DB wraps an SQLite connection holding exported runs.
type DB struct {
	db *sql.DB
}

// Run identifies one exported correlation pass.
type Run struct {
	ID        string
	CreatedAt time.Time
	Sources   []string
}

// NewRun stamps a run with a fresh ID and the current time.
func NewRun(sources []string) Run {
	return Run{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Sources:   sources,
	}
}

// Open opens or creates an SQLite database at the given path.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating db directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Single writer connection to avoid SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// SaveRun stores a run and its occurrence rows in one transaction. Row
// order is kept in the position column.
func (d *DB) SaveRun(run Run, rows []event.Occurrence) error {
	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT INTO runs (id, created_at, sources, occurrences) VALUES (?, ?, ?, ?)`,
		run.ID,
		run.CreatedAt.UTC().Format(time.RFC3339Nano),
		strings.Join(run.Sources, "\n"),
		len(rows),
	)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO occurrences (run_id, position, device, alarm_name, severity, status,
			raise_time, terminate_time, duration_s, clock_skew, message, source_file)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, o := range rows {
		var duration sql.NullFloat64
		if secs, ok := o.DurationSeconds(); ok {
			duration = sql.NullFloat64{Float64: secs, Valid: true}
		}
		_, err := stmt.Exec(
			run.ID,
			i,
			o.Device,
			o.AlarmName,
			string(o.Severity),
			string(o.Status),
			nullTime(o.RaiseTime),
			nullTime(o.TerminateTime),
			duration,
			o.ClockSkew,
			o.Message,
			o.SourceFile,
		)
		if err != nil {
			return fmt.Errorf("inserting occurrence %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing run: %w", err)
	}
	slog.Debug("run stored", "run_id", run.ID, "occurrences", len(rows))
	return nil
}

func nullTime(ts *time.Time) sql.NullString {
	if ts == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: ts.UTC().Format(time.RFC3339Nano), Valid: true}
}

func migrate(db *sql.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id          TEXT PRIMARY KEY,
			created_at  TEXT NOT NULL,
			sources     TEXT NOT NULL,
			occurrences INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS occurrences (
			run_id         TEXT NOT NULL REFERENCES runs(id),
			position       INTEGER NOT NULL,
			device         TEXT NOT NULL,
			alarm_name     TEXT NOT NULL,
			severity       TEXT NOT NULL,
			status         TEXT NOT NULL,
			raise_time     TEXT,
			terminate_time TEXT,
			duration_s     REAL,
			clock_skew     BOOLEAN DEFAULT FALSE,
			message        TEXT NOT NULL,
			source_file    TEXT NOT NULL,
			PRIMARY KEY (run_id, position)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_occurrences_alarm ON occurrences(run_id, alarm_name)`,
		`CREATE INDEX IF NOT EXISTS idx_occurrences_raise ON occurrences(run_id, raise_time)`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}

	slog.Debug("database schema up to date")
	return nil
}
