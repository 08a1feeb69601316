// Package event defines the core data model for alarmtrace: structured
// events parsed from single log lines and the alarm occurrences built from
// them.
package event

import (
	"time"
)

// Kind classifies what a log line says about an alarm lifecycle.
type Kind string

const (
	KindRaised              Kind = "Raised"
	KindTerminated          Kind = "Terminated"
	KindUncontrolledRestart Kind = "UncontrolledRestart"
	KindSoftwareError       Kind = "SoftwareError"
	KindInfo                Kind = "Info"
)

// Severity indicates the urgency of an event.
type Severity string

const (
	SevFatal   Severity = "Fatal"
	SevWarning Severity = "Warning"
	SevInfo    Severity = "Info"
	SevError   Severity = "Error"
	SevUnknown Severity = "Unknown"
)

// Critical reports whether the severity counts towards the critical/error
// figure of a summary. Unknown is included because unclassified lines are
// usually error output without a marker.
func (s Severity) Critical() bool {
	switch s {
	case SevFatal, SevError, SevUnknown:
		return true
	default:
		return false
	}
}

// StructuredEvent is the normalized record extracted from one interesting
// log line. It is never modified after the parser creates it.
type StructuredEvent struct {
	SourceID  string
	RawLine   string
	AlarmCode string // upper-cased; empty when absent
	Kind      Kind
	Severity  Severity
	Timestamp *time.Time
	Message   string
	LineIndex int
}

// HasTimestamp reports whether a timestamp was recognized on the line.
func (e StructuredEvent) HasTimestamp() bool {
	return e.Timestamp != nil
}

// Status is the lifecycle state of an Occurrence.
type Status string

const (
	StatusPaired              Status = "Raised->Terminated"
	StatusUnmatchedTerminate  Status = "Terminated (no matched raise)"
	StatusOpen                Status = "Raised (no termination)"
	StatusUncontrolledRestart Status = "UncontrolledRestart"
	StatusSoftwareError       Status = "SoftwareError"
	StatusInfo                Status = "Info"
)

// StatusForKind maps a singleton event kind to its occurrence status.
func StatusForKind(k Kind) Status {
	switch k {
	case KindUncontrolledRestart:
		return StatusUncontrolledRestart
	case KindSoftwareError:
		return StatusSoftwareError
	default:
		return StatusInfo
	}
}

// Occurrence is one row of the normalized alarm table.
type Occurrence struct {
	Device        string
	AlarmName     string
	Severity      Severity
	Status        Status
	RaiseTime     *time.Time
	TerminateTime *time.Time
	Duration      *time.Duration
	// ClockSkew is set when the terminate time precedes the raise time.
	// The negative Duration is kept as is.
	ClockSkew  bool
	Message    string
	SourceFile string
}

// Events returns how many structured events the occurrence consumed.
func (o Occurrence) Events() int {
	if o.Status == StatusPaired {
		return 2
	}
	return 1
}

// DurationSeconds returns the duration in seconds and whether it is defined.
func (o Occurrence) DurationSeconds() (float64, bool) {
	if o.Duration == nil {
		return 0, false
	}
	return o.Duration.Seconds(), true
}
