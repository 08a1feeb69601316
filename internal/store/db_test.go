package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/setevik/alarmtrace/internal/event"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func ts(s string) *time.Time {
	t, err := time.Parse("2006-01-02 15:04:05", s)
	if err != nil {
		panic(err)
	}
	return &t
}

func sampleRows() []event.Occurrence {
	d := 90 * time.Second
	return []event.Occurrence{
		{
			Device:        "tool-a.log",
			AlarmName:     "104A",
			Severity:      event.SevWarning,
			Status:        event.StatusPaired,
			RaiseTime:     ts("2024-03-01 10:00:00"),
			TerminateTime: ts("2024-03-01 10:01:30"),
			Duration:      &d,
			Message:       "Alarm 104A has been raised  ||  Alarm 104A has been terminated",
			SourceFile:    "tool-a.log",
		},
		{
			Device:     "tool-a.log",
			AlarmName:  "Unknown",
			Severity:   event.SevFatal,
			Status:     event.StatusOpen,
			RaiseTime:  ts("2024-03-01 11:00:00"),
			Message:    "Alarm has been raised",
			SourceFile: "tool-a.log",
		},
		{
			Device:     "tool-b.log",
			AlarmName:  "SoftwareError",
			Severity:   event.SevUnknown,
			Status:     event.StatusSoftwareError,
			Message:    "Software error in module X",
			SourceFile: "tool-b.log",
		},
	}
}

func TestSaveRunAndReadBack(t *testing.T) {
	db := testDB(t)

	run := NewRun([]string{"tool-a.log", "tool-b.log"})
	rows := sampleRows()
	if err := db.SaveRun(run, rows); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	got, err := db.Occurrences(run.ID)
	if err != nil {
		t.Fatalf("Occurrences: %v", err)
	}
	if len(got) != len(rows) {
		t.Fatalf("got %d rows, want %d", len(got), len(rows))
	}

	first := got[0]
	if first.AlarmName != "104A" || first.Status != event.StatusPaired {
		t.Errorf("first row = %+v", first)
	}
	if first.RaiseTime == nil || !first.RaiseTime.Equal(*rows[0].RaiseTime) {
		t.Errorf("RaiseTime = %v, want %v", first.RaiseTime, rows[0].RaiseTime)
	}
	if first.Duration == nil || *first.Duration != 90*time.Second {
		t.Errorf("Duration = %v, want 1m30s", first.Duration)
	}

	open := got[1]
	if open.TerminateTime != nil {
		t.Errorf("open raise should have no terminate time, got %v", open.TerminateTime)
	}
	if open.Duration != nil {
		t.Errorf("open raise should have no duration, got %v", open.Duration)
	}

	sw := got[2]
	if sw.RaiseTime != nil {
		t.Errorf("untimed row should keep nil RaiseTime, got %v", sw.RaiseTime)
	}
	if sw.Severity != event.SevUnknown {
		t.Errorf("Severity = %q", sw.Severity)
	}
}

func TestClockSkewRoundTrip(t *testing.T) {
	db := testDB(t)

	d := -5 * time.Second
	rows := []event.Occurrence{{
		Device:        "tool-c.log",
		AlarmName:     "2B",
		Severity:      event.SevWarning,
		Status:        event.StatusPaired,
		RaiseTime:     ts("2024-03-01 10:00:05"),
		TerminateTime: ts("2024-03-01 10:00:00"),
		Duration:      &d,
		ClockSkew:     true,
		Message:       "skewed",
		SourceFile:    "tool-c.log",
	}}

	run := NewRun([]string{"tool-c.log"})
	if err := db.SaveRun(run, rows); err != nil {
		t.Fatal(err)
	}
	got, err := db.Occurrences(run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || !got[0].ClockSkew {
		t.Fatalf("ClockSkew not kept: %+v", got)
	}
	if *got[0].Duration != d {
		t.Errorf("Duration = %v, want %v", *got[0].Duration, d)
	}
}

func TestRunsAreSeparate(t *testing.T) {
	db := testDB(t)

	first := NewRun([]string{"a.log"})
	first.CreatedAt = time.Now().Add(-time.Hour).UTC()
	if err := db.SaveRun(first, sampleRows()); err != nil {
		t.Fatal(err)
	}
	second := NewRun([]string{"b.log"})
	if err := db.SaveRun(second, sampleRows()[:1]); err != nil {
		t.Fatal(err)
	}

	runs, err := db.Runs()
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
	if runs[0].ID != second.ID {
		t.Errorf("newest run should come first, got %q", runs[0].ID)
	}
	if len(runs[1].Sources) != 1 || runs[1].Sources[0] != "a.log" {
		t.Errorf("sources = %v", runs[1].Sources)
	}

	rows, err := db.Occurrences(second.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Errorf("second run has %d rows, want 1", len(rows))
	}
}

func TestSaveEmptyRun(t *testing.T) {
	db := testDB(t)

	run := NewRun(nil)
	if err := db.SaveRun(run, nil); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	rows, err := db.Occurrences(run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 0 {
		t.Errorf("expected no rows, got %d", len(rows))
	}
}

func TestDuplicateRunIDRejected(t *testing.T) {
	db := testDB(t)

	run := NewRun([]string{"a.log"})
	if err := db.SaveRun(run, sampleRows()); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveRun(run, sampleRows()); err == nil {
		t.Fatal("expected error saving the same run twice")
	}

	rows, err := db.Occurrences(run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != len(sampleRows()) {
		t.Errorf("failed save should roll back, got %d rows", len(rows))
	}
}
