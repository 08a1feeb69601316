package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/setevik/alarmtrace/internal/event"
)

// Runs returns stored runs, newest first.
func (d *DB) Runs() ([]Run, error) {
	rows, err := d.db.Query(`SELECT id, created_at, sources FROM runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var created, sources string
		if err := rows.Scan(&r.ID, &created, &sources); err != nil {
			return nil, fmt.Errorf("scanning run row: %w", err)
		}
		r.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		if sources != "" {
			r.Sources = strings.Split(sources, "\n")
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Occurrences returns the rows of one run in their stored order.
func (d *DB) Occurrences(runID string) ([]event.Occurrence, error) {
	rows, err := d.db.Query(`
		SELECT device, alarm_name, severity, status, raise_time, terminate_time,
			duration_s, clock_skew, message, source_file
		FROM occurrences WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying occurrences: %w", err)
	}
	defer rows.Close()

	var out []event.Occurrence
	for rows.Next() {
		o, err := scanOccurrence(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func scanOccurrence(rows *sql.Rows) (event.Occurrence, error) {
	var o event.Occurrence
	var raise, term sql.NullString
	var duration sql.NullFloat64

	err := rows.Scan(
		&o.Device,
		&o.AlarmName,
		&o.Severity,
		&o.Status,
		&raise,
		&term,
		&duration,
		&o.ClockSkew,
		&o.Message,
		&o.SourceFile,
	)
	if err != nil {
		return o, fmt.Errorf("scanning occurrence row: %w", err)
	}

	o.RaiseTime = parseNullTime(raise)
	o.TerminateTime = parseNullTime(term)
	if duration.Valid {
		d := time.Duration(duration.Float64 * float64(time.Second))
		o.Duration = &d
	}
	return o, nil
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	ts, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil
	}
	return &ts
}
