package classifier

import (
	"regexp"

	"github.com/setevik/alarmtrace/internal/event"
)

// timestampPattern captures a date group and a time group which are joined
// with a single space and parsed with layout.
type timestampPattern struct {
	name   string
	re     *regexp.Regexp
	layout string
}

// timestampPatterns are tried in order. Several of them overlap, so the more
// specific forms must stay ahead of the looser ones.
var timestampPatterns = []timestampPattern{
	// "2025-07-31 22:37:42" or "2025-07-31 22:37:42.125"
	{"iso", regexp.MustCompile(`(\d{4}-\d{2}-\d{2})\s+(\d{2}:\d{2}:\d{2}(?:\.\d+)?)`), "2006-01-02 15:04:05"},
	// "/20250731/22:40:10.619000/"
	{"embedded", regexp.MustCompile(`/(\d{8})/(\d{2}:\d{2}:\d{2}(?:\.\d+)?)`), "20060102 15:04:05"},
	// ":)/20250808/00:00:02.227331/"
	{"marker", regexp.MustCompile(`:\)/(\d{8})/(\d{2}:\d{2}:\d{2}\.\d+)`), "20060102 15:04:05"},
	// "20250808-00:00:29"
	{"compact", regexp.MustCompile(`(\d{8})-(\d{2}:\d{2}:\d{2})`), "20060102 15:04:05"},
}

// leadingDateRe gates the last-resort parse of a line's first token.
var leadingDateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)

// leadingDateLayouts are tried against the first token of a line.
var leadingDateLayouts = []string{
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// severityMarkers are unambiguous inline markers, checked before keywords.
// Tab-delimited letter columns come from exported device tables.
var severityMarkers = []struct {
	marker string
	sev    event.Severity
}{
	{"/F/", event.SevFatal},
	{"\tF\t", event.SevFatal},
	{" F\t", event.SevFatal},
	{"/W/", event.SevWarning},
	{"\tW\t", event.SevWarning},
	{"/I/", event.SevInfo},
	{"\tI\t", event.SevInfo},
	{"/E/", event.SevError},
}

// errorKeywordRe also covers "software error".
var errorKeywordRe = regexp.MustCompile(`(?i)error`)

// kindRules are evaluated top to bottom; the first match wins and anything
// left over is Info.
var kindRules = []struct {
	re   *regexp.Regexp
	kind event.Kind
}{
	{regexp.MustCompile(`(?i)has\s+been\s+raised|alarm .* raised`), event.KindRaised},
	{regexp.MustCompile(`(?i)has\s+been\s+terminated|alarm .* terminated`), event.KindTerminated},
	{regexp.MustCompile(`(?i)uncontrolled restart`), event.KindUncontrolledRestart},
	{regexp.MustCompile(`(?i)software error|system error`), event.KindSoftwareError},
}

// alarmCodeRe extracts the short hex-like code following "Alarm".
// Example: "/W/Alarm 104A has been raised." -> "104A"
var alarmCodeRe = regexp.MustCompile(`(?i)Alarm\s+([0-9A-F]{2,4})`)

// interestingPhrases make a line eligible for structuring on their own.
var interestingPhrases = []string{
	"Alarm",
	"Software error",
	"System error",
	"Failed to post",
	"has been raised",
	"has been terminated",
}

// markerOnlyTriggers make a line interesting only when it also carries a
// /W/, /I/ or /F/ marker.
var markerOnlyTriggers = []string{"Alarm", "Software error"}

var lifecycleMarkers = []string{"/W/", "/I/", "/F/"}
