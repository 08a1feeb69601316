// Package classifier extracts timestamps, severities, alarm codes and event
// kinds from raw device log lines using fixed pattern tables.
package classifier

import (
	"strings"
	"time"

	"github.com/setevik/alarmtrace/internal/event"
)

// ExtractTimestamp returns the first timestamp recognized on the line, or
// nil. A pattern that matches text which is not a valid calendar date/time
// falls through to the next pattern.
func ExtractTimestamp(line string) *time.Time {
	for _, p := range timestampPatterns {
		m := p.re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		ts, err := time.ParseInLocation(p.layout, m[1]+" "+m[2], time.UTC)
		if err != nil {
			continue
		}
		return &ts
	}
	return parseLeadingDate(line)
}

// parseLeadingDate is the last resort: if the first whitespace-delimited
// token starts like a YYYY-MM-DD date, try the general layouts on it.
func parseLeadingDate(line string) *time.Time {
	fields := strings.Fields(line)
	if len(fields) == 0 || !leadingDateRe.MatchString(fields[0]) {
		return nil
	}
	tok := strings.TrimRight(fields[0], ",;")
	for _, layout := range leadingDateLayouts {
		ts, err := time.ParseInLocation(layout, tok, time.UTC)
		if err != nil {
			continue
		}
		ts = ts.UTC()
		return &ts
	}
	return nil
}

// ClassifySeverity returns the severity of a line. Inline markers always win
// over keywords because a marked line may still mention an error in passing.
func ClassifySeverity(line string) event.Severity {
	for _, m := range severityMarkers {
		if strings.Contains(line, m.marker) {
			return m.sev
		}
	}
	if errorKeywordRe.MatchString(line) {
		return event.SevError
	}
	return event.SevUnknown
}

// ClassifyKind returns the event kind of a line. Every line gets exactly one
// kind; unmatched lines are Info.
func ClassifyKind(line string) event.Kind {
	for _, r := range kindRules {
		if r.re.MatchString(line) {
			return r.kind
		}
	}
	return event.KindInfo
}

// ExtractAlarmCode returns the upper-cased alarm code following the word
// "Alarm", or "" when there is none.
func ExtractAlarmCode(line string) string {
	if m := alarmCodeRe.FindStringSubmatch(line); len(m) == 2 {
		return strings.ToUpper(m[1])
	}
	return ""
}

// Interesting reports whether a line is relevant to alarm lifecycles at all.
// Raw device logs are mostly noise, so everything else is dropped before
// classification.
func Interesting(line string) bool {
	lower := strings.ToLower(line)
	for _, p := range interestingPhrases {
		if strings.Contains(line, p) {
			return true
		}
	}
	if strings.Contains(lower, "uncontrolled restart") {
		return true
	}

	if !hasLifecycleMarker(line) {
		return false
	}
	for _, p := range markerOnlyTriggers {
		if strings.Contains(line, p) {
			return true
		}
	}
	return strings.Contains(lower, "restart")
}

func hasLifecycleMarker(line string) bool {
	for _, m := range lifecycleMarkers {
		if strings.Contains(line, m) {
			return true
		}
	}
	return false
}
