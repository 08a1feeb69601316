package export

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/setevik/alarmtrace/internal/event"
	"github.com/setevik/alarmtrace/internal/store"
)

// ErrNoRuns is returned when an SQLite export holds no runs.
var ErrNoRuns = errors.New("no runs stored")

// FormatForPath guesses a readable format from the file extension.
func FormatForPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return FormatSQLite, nil
	case ".msgpack", ".mpk":
		return FormatMsgpack, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("cannot tell the format of %s; pass -format", path)
	}
}

// ReadMsgpack decodes an envelope written by WriteMsgpack.
func ReadMsgpack(r io.Reader) (*Envelope, error) {
	var env Envelope
	if err := msgpack.NewDecoder(r).Decode(&env); err != nil {
		return nil, fmt.Errorf("decoding msgpack: %w", err)
	}
	return &env, nil
}

// ReadJSON decodes an envelope written by WriteJSON.
func ReadJSON(r io.Reader) (*Envelope, error) {
	var env Envelope
	if err := json.NewDecoder(r).Decode(&env); err != nil {
		return nil, fmt.Errorf("decoding json: %w", err)
	}
	return &env, nil
}

// Rows converts every record of the envelope back into table rows.
func (e *Envelope) Rows() ([]event.Occurrence, error) {
	rows := make([]event.Occurrence, len(e.Occurrences))
	for i, rec := range e.Occurrences {
		o, err := rec.Occurrence()
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		rows[i] = o
	}
	return rows, nil
}

// Run returns the run metadata carried by the envelope.
func (e *Envelope) Run() store.Run {
	return store.Run{ID: e.RunID, CreatedAt: e.GeneratedAt, Sources: e.Sources}
}

// ReadFile loads a previously written export. For SQLite, runID selects the
// run and an empty runID picks the newest one. CSV cannot be read back.
func ReadFile(path string, f Format, runID string) (store.Run, []event.Occurrence, error) {
	if f == FormatSQLite {
		return readSQLite(path, runID)
	}

	file, err := os.Open(path)
	if err != nil {
		return store.Run{}, nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer file.Close()

	var env *Envelope
	switch f {
	case FormatMsgpack:
		env, err = ReadMsgpack(bufio.NewReader(file))
	case FormatJSON:
		env, err = ReadJSON(bufio.NewReader(file))
	default:
		return store.Run{}, nil, fmt.Errorf("reading %s exports is not supported", f)
	}
	if err != nil {
		return store.Run{}, nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if runID != "" && runID != env.RunID {
		return store.Run{}, nil, fmt.Errorf("%s holds run %s, not %s", path, env.RunID, runID)
	}

	rows, err := env.Rows()
	if err != nil {
		return store.Run{}, nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return env.Run(), rows, nil
}

func readSQLite(path, runID string) (store.Run, []event.Occurrence, error) {
	if _, err := os.Stat(path); err != nil {
		return store.Run{}, nil, fmt.Errorf("opening %s: %w", path, err)
	}
	db, err := store.Open(path)
	if err != nil {
		return store.Run{}, nil, err
	}
	defer db.Close()

	runs, err := db.Runs()
	if err != nil {
		return store.Run{}, nil, err
	}
	if len(runs) == 0 {
		return store.Run{}, nil, ErrNoRuns
	}

	run := runs[0]
	if runID != "" {
		found := false
		for _, r := range runs {
			if r.ID == runID {
				run, found = r, true
				break
			}
		}
		if !found {
			return store.Run{}, nil, fmt.Errorf("run %s not found in %s", runID, path)
		}
	}

	rows, err := db.Occurrences(run.ID)
	if err != nil {
		return store.Run{}, nil, err
	}
	return run, rows, nil
}

// ListRuns returns the runs stored in an SQLite export, newest first.
func ListRuns(path string) ([]store.Run, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	db, err := store.Open(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return db.Runs()
}
