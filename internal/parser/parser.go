// Package parser turns raw log text into structured events by composing the
// timestamp, severity and event-kind classifiers line by line.
package parser

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/setevik/alarmtrace/internal/classifier"
	"github.com/setevik/alarmtrace/internal/event"
)

// DefaultRestartCode is the alarm code assigned to uncontrolled restarts that
// carry no code of their own.
const DefaultRestartCode = "108F"

// Options configures a Parser.
type Options struct {
	// RestartCode replaces a missing alarm code on uncontrolled restarts.
	RestartCode string
	// Workers bounds how many sources are parsed concurrently.
	Workers int
}

// Parser extracts structured events from log text. It holds no mutable
// state and is safe for concurrent use.
type Parser struct {
	restartCode string
	workers     int
}

// New creates a Parser, filling unset options with defaults.
func New(opts Options) *Parser {
	if opts.RestartCode == "" {
		opts.RestartCode = DefaultRestartCode
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	return &Parser{
		restartCode: strings.ToUpper(opts.RestartCode),
		workers:     opts.Workers,
	}
}

// ParseLine structures a single line, or returns nil if the line is blank or
// not relevant to alarm lifecycles.
func (p *Parser) ParseLine(sourceID string, index int, raw string) *event.StructuredEvent {
	line := strings.TrimSpace(raw)
	if line == "" || !classifier.Interesting(line) {
		return nil
	}

	kind := classifier.ClassifyKind(line)
	code := classifier.ExtractAlarmCode(line)
	if kind == event.KindUncontrolledRestart && code == "" {
		code = p.restartCode
	}

	return &event.StructuredEvent{
		SourceID:  sourceID,
		RawLine:   line,
		AlarmCode: code,
		Kind:      kind,
		Severity:  classifier.ClassifySeverity(line),
		Timestamp: classifier.ExtractTimestamp(line),
		Message:   line,
		LineIndex: index,
	}
}

// ParseText structures every interesting line of one source. Line indexes
// count blank and dropped lines so they reflect positions in the source.
func (p *Parser) ParseText(sourceID, text string) []event.StructuredEvent {
	lines := splitLines(text)
	events := make([]event.StructuredEvent, 0, len(lines)/8)
	for i, ln := range lines {
		if ev := p.ParseLine(sourceID, i, ln); ev != nil {
			events = append(events, *ev)
		}
	}
	return events
}

// ParseSources parses each source on its own goroutine and concatenates the
// results in source-id order. Workers share nothing but the read-only
// pattern tables.
func (p *Parser) ParseSources(ctx context.Context, sources map[string]string) ([]event.StructuredEvent, error) {
	ids := make([]string, 0, len(sources))
	for id := range sources {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	results := make([][]event.StructuredEvent, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = p.ParseText(id, sources[id])
			slog.Debug("source parsed",
				"source", id,
				"events", len(results[i]),
				"untimed", countUntimed(results[i]),
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, r := range results {
		total += len(r)
	}
	all := make([]event.StructuredEvent, 0, total)
	for _, r := range results {
		all = append(all, r...)
	}
	return all, nil
}

func countUntimed(events []event.StructuredEvent) int {
	n := 0
	for _, ev := range events {
		if !ev.HasTimestamp() {
			n++
		}
	}
	return n
}

// splitLines splits on \n, \r\n and lone \r, keeping empty lines so that
// indexes stay positional.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.Split(text, "\n")
}
