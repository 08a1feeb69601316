package reporter

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/setevik/alarmtrace/internal/event"
	"github.com/setevik/alarmtrace/internal/format"
)

// TopAlarmCount is how many alarm names the summary lists.
const TopAlarmCount = 3

// Summary holds aggregated figures for an occurrence table.
type Summary struct {
	// Since and Until span the earliest and latest raise times. Both are nil
	// when no row has a raise time.
	Since *time.Time
	Until *time.Time

	Files        int
	Total        int
	Critical     int
	UniqueAlarms int

	AlarmCounts  map[string]int // alarm name -> rows
	StatusCounts map[string]int // status -> rows
}

// BuildSummary aggregates an occurrence table. files is the number of
// sources that were processed, including ones that yielded no rows.
func BuildSummary(rows []event.Occurrence, files int) *Summary {
	s := &Summary{
		Files:        files,
		Total:        len(rows),
		AlarmCounts:  make(map[string]int),
		StatusCounts: make(map[string]int),
	}

	for _, o := range rows {
		if o.Severity.Critical() {
			s.Critical++
		}
		name := o.AlarmName
		if name == "" {
			name = "unknown"
		}
		s.AlarmCounts[name]++
		s.StatusCounts[string(o.Status)]++

		if o.RaiseTime == nil {
			continue
		}
		if s.Since == nil || o.RaiseTime.Before(*s.Since) {
			s.Since = o.RaiseTime
		}
		if s.Until == nil || o.RaiseTime.After(*s.Until) {
			s.Until = o.RaiseTime
		}
	}
	s.UniqueAlarms = len(s.AlarmCounts)

	return s
}

// TopAlarms returns up to n alarm names ordered by count, then name.
func (s *Summary) TopAlarms(n int) []string {
	entries := sortedBreakdown(s.AlarmCounts)
	if len(entries) > n {
		entries = entries[:n]
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.name
	}
	return names
}

// FormatSummary formats a Summary as human-readable text suitable for ntfy
// or stdout output.
func FormatSummary(s *Summary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Period:           %s\n", formatPeriod(s))
	fmt.Fprintf(&b, "Files processed:  %d\n", s.Files)
	fmt.Fprintf(&b, "Total events:     %d\n", s.Total)
	fmt.Fprintf(&b, "Critical/Error:   %d\n", s.Critical)
	fmt.Fprintf(&b, "Unique alarms:    %d\n", s.UniqueAlarms)

	b.WriteString("Top alarms:       ")
	if top := s.TopAlarms(TopAlarmCount); len(top) > 0 {
		parts := make([]string, len(top))
		for i, name := range top {
			parts[i] = formatCount(name, s.AlarmCounts[name])
		}
		b.WriteString(strings.Join(parts, ", "))
	} else {
		b.WriteString("none")
	}
	b.WriteString("\n")

	b.WriteString("By status:        ")
	if s.Total > 0 {
		b.WriteString(formatBreakdown(s.StatusCounts))
	} else {
		b.WriteString("none")
	}
	b.WriteString("\n")

	return b.String()
}

// FormatSummaryTitle generates the ntfy title for a summary notification.
func FormatSummaryTitle(s *Summary) string {
	icon := "\u2705" // check mark
	if s.Critical > 0 {
		icon = "\U0001f6a8" // rotating light
	}
	return fmt.Sprintf("%s alarmtrace: %d events, %d critical (%s)",
		icon, s.Total, s.Critical, formatPeriod(s))
}

func formatPeriod(s *Summary) string {
	if s.Since == nil {
		return "no timestamps"
	}
	return fmt.Sprintf("%s to %s", format.Time(s.Since), format.Time(s.Until))
}

type breakdownEntry struct {
	name  string
	count int
}

func sortedBreakdown(m map[string]int) []breakdownEntry {
	entries := make([]breakdownEntry, 0, len(m))
	for name, count := range m {
		entries = append(entries, breakdownEntry{name, count})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].name < entries[j].name
	})
	return entries
}

// formatBreakdown turns a map[string]int into "foo x2, bar x1" sorted by
// count desc.
func formatBreakdown(m map[string]int) string {
	entries := sortedBreakdown(m)
	parts := make([]string, len(entries))
	for i, e := range entries {
		parts[i] = formatCount(e.name, e.count)
	}
	return strings.Join(parts, ", ")
}

func formatCount(name string, count int) string {
	return fmt.Sprintf("%s \u00d7%d", name, count)
}
