// Package export writes the occurrence table in the formats downstream tools
// read: CSV for spreadsheets, JSON and MessagePack for programs, and SQLite
// through the store package.
package export

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/setevik/alarmtrace/internal/event"
	"github.com/setevik/alarmtrace/internal/format"
	"github.com/setevik/alarmtrace/internal/store"
)

// Format names an export encoding.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatJSON    Format = "json"
	FormatMsgpack Format = "msgpack"
	FormatSQLite  Format = "sqlite"
)

// ParseFormat accepts a format name case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatJSON, FormatMsgpack, FormatSQLite:
		return f, nil
	case "db", "sqlite3":
		return FormatSQLite, nil
	case "mpk", "msgpack5":
		return FormatMsgpack, nil
	default:
		return "", fmt.Errorf("unknown export format %q (want csv, json, msgpack or sqlite)", s)
	}
}

// Columns is the header row of tabular exports.
var Columns = []string{
	"Device Name",
	"Alarm Name",
	"Severity",
	"Status",
	"Raise Date",
	"Terminated Date",
	"Duration (s)",
	"Message",
	"source_file",
	"clock_skew",
}

// MachineTimeLayout keeps sub-second precision in the JSON and MessagePack
// encodings. CSV uses the second-resolution format.TimeLayout.
const MachineTimeLayout = time.RFC3339Nano

// Record is one occurrence in the JSON and MessagePack encodings.
type Record struct {
	DeviceName     string   `json:"device_name" msgpack:"device_name"`
	AlarmName      string   `json:"alarm_name" msgpack:"alarm_name"`
	Severity       string   `json:"severity" msgpack:"severity"`
	Status         string   `json:"status" msgpack:"status"`
	RaiseDate      string   `json:"raise_date,omitempty" msgpack:"raise_date,omitempty"`
	TerminatedDate string   `json:"terminated_date,omitempty" msgpack:"terminated_date,omitempty"`
	DurationS      *float64 `json:"duration_s,omitempty" msgpack:"duration_s,omitempty"`
	ClockSkew      bool     `json:"clock_skew,omitempty" msgpack:"clock_skew,omitempty"`
	Message        string   `json:"message" msgpack:"message"`
	SourceFile     string   `json:"source_file" msgpack:"source_file"`
}

// Envelope wraps the records of one run.
type Envelope struct {
	RunID       string    `json:"run_id" msgpack:"run_id"`
	GeneratedAt time.Time `json:"generated_at" msgpack:"generated_at"`
	Sources     []string  `json:"sources" msgpack:"sources"`
	Occurrences []Record  `json:"occurrences" msgpack:"occurrences"`
}

// NewRecord converts an occurrence to its serialized form.
func NewRecord(o event.Occurrence) Record {
	r := Record{
		DeviceName:     o.Device,
		AlarmName:      o.AlarmName,
		Severity:       string(o.Severity),
		Status:         string(o.Status),
		RaiseDate:      machineTime(o.RaiseTime),
		TerminatedDate: machineTime(o.TerminateTime),
		ClockSkew:      o.ClockSkew,
		Message:        o.Message,
		SourceFile:     o.SourceFile,
	}
	if secs, ok := o.DurationSeconds(); ok {
		r.DurationS = &secs
	}
	return r
}

// Occurrence converts a decoded record back into a table row.
func (r Record) Occurrence() (event.Occurrence, error) {
	o := event.Occurrence{
		Device:     r.DeviceName,
		AlarmName:  r.AlarmName,
		Severity:   event.Severity(r.Severity),
		Status:     event.Status(r.Status),
		ClockSkew:  r.ClockSkew,
		Message:    r.Message,
		SourceFile: r.SourceFile,
	}
	var err error
	if o.RaiseTime, err = parseMachineTime(r.RaiseDate); err != nil {
		return o, fmt.Errorf("raise_date: %w", err)
	}
	if o.TerminateTime, err = parseMachineTime(r.TerminatedDate); err != nil {
		return o, fmt.Errorf("terminated_date: %w", err)
	}
	if r.DurationS != nil {
		d := time.Duration(*r.DurationS * float64(time.Second))
		o.Duration = &d
	}
	return o, nil
}

func machineTime(ts *time.Time) string {
	if ts == nil {
		return ""
	}
	return ts.UTC().Format(MachineTimeLayout)
}

func parseMachineTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	ts, err := time.Parse(MachineTimeLayout, s)
	if err != nil {
		return nil, err
	}
	return &ts, nil
}

func newEnvelope(run store.Run, rows []event.Occurrence) Envelope {
	env := Envelope{
		RunID:       run.ID,
		GeneratedAt: run.CreatedAt,
		Sources:     run.Sources,
		Occurrences: make([]Record, len(rows)),
	}
	if env.Sources == nil {
		env.Sources = []string{}
	}
	for i, o := range rows {
		env.Occurrences[i] = NewRecord(o)
	}
	return env
}

// WriteCSV writes a header row followed by one row per occurrence.
// Absent times and durations are empty cells.
func WriteCSV(w io.Writer, rows []event.Occurrence) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	for i, o := range rows {
		duration := ""
		if secs, ok := o.DurationSeconds(); ok {
			duration = strconv.FormatFloat(secs, 'f', -1, 64)
		}
		skew := ""
		if o.ClockSkew {
			skew = "true"
		}
		record := []string{
			o.Device,
			o.AlarmName,
			string(o.Severity),
			string(o.Status),
			format.Time(o.RaiseTime),
			format.Time(o.TerminateTime),
			duration,
			o.Message,
			o.SourceFile,
			skew,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing csv row %d: %w", i, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing csv: %w", err)
	}
	return nil
}

// WriteJSON writes the run as an indented JSON envelope.
func WriteJSON(w io.Writer, run store.Run, rows []event.Occurrence) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(newEnvelope(run, rows)); err != nil {
		return fmt.Errorf("encoding json: %w", err)
	}
	return nil
}

// WriteMsgpack writes the run as a MessagePack envelope.
func WriteMsgpack(w io.Writer, run store.Run, rows []event.Occurrence) error {
	if err := msgpack.NewEncoder(w).Encode(newEnvelope(run, rows)); err != nil {
		return fmt.Errorf("encoding msgpack: %w", err)
	}
	return nil
}

// Write encodes rows to w. SQLite needs a file and is rejected here.
func Write(w io.Writer, f Format, run store.Run, rows []event.Occurrence) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, rows)
	case FormatJSON:
		return WriteJSON(w, run, rows)
	case FormatMsgpack:
		return WriteMsgpack(w, run, rows)
	case FormatSQLite:
		return fmt.Errorf("sqlite export needs a file path")
	default:
		return fmt.Errorf("unknown export format %q", f)
	}
}

// ToFile writes rows to path in the given format. SQLite exports append a
// run to an existing database.
func ToFile(path string, f Format, run store.Run, rows []event.Occurrence) error {
	if f == FormatSQLite {
		db, err := store.Open(path)
		if err != nil {
			return err
		}
		defer db.Close()
		return db.SaveRun(run, rows)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	bw := bufio.NewWriter(file)
	if err := Write(bw, f, run, rows); err != nil {
		file.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		file.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	return nil
}
