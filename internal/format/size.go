// Package format renders sizes, durations and times for terminal output and
// exports.
package format

import "fmt"

var byteUnits = []string{"KB", "MB", "GB", "TB"}

// Bytes formats a byte count with binary units ("512 B", "3.0 MB").
func Bytes(n int) string {
	if n < 1024 {
		return fmt.Sprintf("%d B", n)
	}
	v := float64(n) / 1024
	unit := 0
	for v >= 1024 && unit < len(byteUnits)-1 {
		v /= 1024
		unit++
	}
	return fmt.Sprintf("%.1f %s", v, byteUnits[unit])
}

// Count pairs a number with a noun, adding "s" unless n is one.
func Count(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
