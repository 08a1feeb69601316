package format

import (
	"fmt"
	"time"
)

// TimeLayout is the display and export layout for occurrence times.
const TimeLayout = "2006-01-02 15:04:05"

// Duration formats a duration in compact human-readable form ("5s", "12m",
// "3h 4m", "2d 1h"). Negative durations keep their sign.
func Duration(d time.Duration) string {
	if d < 0 {
		return "-" + Duration(-d)
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		h := int(d.Hours())
		m := int(d.Minutes()) % 60
		return fmt.Sprintf("%dh %dm", h, m)
	}
	days := int(d.Hours()) / 24
	h := int(d.Hours()) % 24
	return fmt.Sprintf("%dd %dh", days, h)
}

// Time formats an optional time, returning "" when absent.
func Time(ts *time.Time) string {
	if ts == nil {
		return ""
	}
	return ts.Format(TimeLayout)
}
