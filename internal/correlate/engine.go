// Package correlate pairs raised alarms with their terminations and builds
// the ordered occurrence table.
package correlate

import (
	"log/slog"
	"sort"
	"time"

	"github.com/setevik/alarmtrace/internal/event"
)

// DefaultKeyPrefixLen is how much of the message stands in for a missing
// alarm code in the correlation key.
const DefaultKeyPrefixLen = 40

// unknownAlarm labels raise/terminate lifecycles without an alarm code.
const unknownAlarm = "Unknown"

// pairSeparator joins the raise and terminate messages of a paired row.
const pairSeparator = "  ||  "

// Options configures an Engine.
type Options struct {
	KeyPrefixLen int
	Logger       *slog.Logger
}

// Engine correlates structured events into occurrences. It keeps no state
// between calls.
type Engine struct {
	keyPrefixLen int
	log          *slog.Logger
}

// New creates an Engine, filling unset options with defaults.
func New(opts Options) *Engine {
	if opts.KeyPrefixLen <= 0 {
		opts.KeyPrefixLen = DefaultKeyPrefixLen
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Engine{keyPrefixLen: opts.KeyPrefixLen, log: opts.Logger}
}

// Correlate runs one correlation pass with default options.
func Correlate(events []event.StructuredEvent) []event.Occurrence {
	return New(Options{}).Correlate(events)
}

// key identifies which raises a termination may close.
//
// Code-less events fall back to a message prefix, so unrelated alarms that
// share a long common prefix can be merged. This is a known approximation.
type key struct {
	source string
	name   string
}

func (e *Engine) keyFor(ev event.StructuredEvent) key {
	if ev.AlarmCode != "" {
		return key{source: ev.SourceID, name: ev.AlarmCode}
	}
	return key{source: ev.SourceID, name: prefix(ev.Message, e.keyPrefixLen)}
}

// openRaises holds FIFO queues of pending raises per key. keys records
// first-seen order so leftovers drain deterministically.
type openRaises struct {
	queues map[key][]event.StructuredEvent
	keys   []key
}

func (o *openRaises) push(k key, ev event.StructuredEvent) {
	q, seen := o.queues[k]
	if !seen {
		o.keys = append(o.keys, k)
	}
	o.queues[k] = append(q, ev)
}

// pop removes the oldest pending raise for k.
func (o *openRaises) pop(k key) (event.StructuredEvent, bool) {
	q := o.queues[k]
	if len(q) == 0 {
		return event.StructuredEvent{}, false
	}
	ev := q[0]
	o.queues[k] = q[1:]
	return ev, true
}

// Correlate sorts the events, pairs each termination with the oldest open
// raise of the same key, and returns the occurrence table ordered by raise
// time with untimed rows last. Every event ends up in exactly one row.
func (e *Engine) Correlate(events []event.StructuredEvent) []event.Occurrence {
	sorted := make([]event.StructuredEvent, len(events))
	copy(sorted, events)
	sortEvents(sorted)

	open := &openRaises{queues: make(map[key][]event.StructuredEvent)}
	rows := make([]event.Occurrence, 0, len(events))

	for _, ev := range sorted {
		k := e.keyFor(ev)
		switch ev.Kind {
		case event.KindRaised:
			open.push(k, ev)
		case event.KindTerminated:
			if raise, ok := open.pop(k); ok {
				rows = append(rows, e.paired(raise, ev))
			} else {
				rows = append(rows, unmatchedTerminate(ev))
			}
		default:
			rows = append(rows, singleton(ev))
		}
	}

	pending := 0
	for _, k := range open.keys {
		for _, raise := range open.queues[k] {
			rows = append(rows, openRaise(raise))
			pending++
		}
	}

	sortOccurrences(rows)

	e.log.Debug("correlation complete",
		"events", len(events),
		"occurrences", len(rows),
		"open_raises", pending,
	)
	return rows
}

func (e *Engine) paired(raise, term event.StructuredEvent) event.Occurrence {
	occ := event.Occurrence{
		Device:        term.SourceID,
		AlarmName:     alarmName(term.AlarmCode),
		Severity:      raise.Severity,
		Status:        event.StatusPaired,
		RaiseTime:     raise.Timestamp,
		TerminateTime: term.Timestamp,
		Message:       raise.Message + pairSeparator + term.Message,
		SourceFile:    term.SourceID,
	}
	if raise.Timestamp != nil && term.Timestamp != nil {
		d := term.Timestamp.Sub(*raise.Timestamp)
		occ.Duration = &d
		if d < 0 {
			occ.ClockSkew = true
			e.log.Warn("termination precedes raise",
				"device", occ.Device,
				"alarm", occ.AlarmName,
				"duration", d,
			)
		}
	}
	return occ
}

func unmatchedTerminate(ev event.StructuredEvent) event.Occurrence {
	return event.Occurrence{
		Device:        ev.SourceID,
		AlarmName:     alarmName(ev.AlarmCode),
		Severity:      ev.Severity,
		Status:        event.StatusUnmatchedTerminate,
		TerminateTime: ev.Timestamp,
		Message:       ev.Message,
		SourceFile:    ev.SourceID,
	}
}

func openRaise(ev event.StructuredEvent) event.Occurrence {
	return event.Occurrence{
		Device:     ev.SourceID,
		AlarmName:  alarmName(ev.AlarmCode),
		Severity:   ev.Severity,
		Status:     event.StatusOpen,
		RaiseTime:  ev.Timestamp,
		Message:    ev.Message,
		SourceFile: ev.SourceID,
	}
}

// singleton builds the row for restarts, software errors and info lines.
// Info is a point event, so its time fills both slots.
func singleton(ev event.StructuredEvent) event.Occurrence {
	occ := event.Occurrence{
		Device:     ev.SourceID,
		AlarmName:  ev.AlarmCode,
		Severity:   ev.Severity,
		Status:     event.StatusForKind(ev.Kind),
		RaiseTime:  ev.Timestamp,
		Message:    ev.Message,
		SourceFile: ev.SourceID,
	}
	if occ.AlarmName == "" {
		occ.AlarmName = string(ev.Kind)
	}
	if ev.Kind == event.KindInfo {
		occ.TerminateTime = ev.Timestamp
	}
	return occ
}

func alarmName(code string) string {
	if code == "" {
		return unknownAlarm
	}
	return code
}

// sortEvents orders by timestamp (untimed first), then line index, then
// source id, so the processing order does not depend on input order.
func sortEvents(events []event.StructuredEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if c := compareTime(a.Timestamp, b.Timestamp, false); c != 0 {
			return c < 0
		}
		if a.LineIndex != b.LineIndex {
			return a.LineIndex < b.LineIndex
		}
		return a.SourceID < b.SourceID
	})
}

// sortOccurrences orders the table by raise time, untimed rows last. Ties
// keep emission order.
func sortOccurrences(rows []event.Occurrence) {
	sort.SliceStable(rows, func(i, j int) bool {
		return compareTime(rows[i].RaiseTime, rows[j].RaiseTime, true) < 0
	})
}

// compareTime compares optional times. nilLast decides whether a missing
// time sorts after or before every present one.
func compareTime(a, b *time.Time, nilLast bool) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		if nilLast {
			return 1
		}
		return -1
	case b == nil:
		if nilLast {
			return -1
		}
		return 1
	default:
		return a.Compare(*b)
	}
}

// prefix returns the first n runes of s.
func prefix(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
