// Package timecode renders millisecond video positions as HH:MM:SS.mmm.
package timecode

import "fmt"

// Format renders ms as zero-padded HH:MM:SS.mmm. Hours are not wrapped at 24.
// Negative input is treated as zero.
func Format(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	totalSeconds := ms / 1000
	msPart := ms % 1000
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60
	return fmt.Sprintf("%02d:%02d:%02d.%03d", hours, minutes, seconds, msPart)
}
