// Package timeline derives marker positions and seek targets from an
// annotation set. Everything here is a pure function of its inputs.
package timeline

import (
	"math"
	"sort"

	"github.com/starford/vidmark/internal/models"
)

// Marker is one annotation placed on the timeline.
type Marker struct {
	ID          string  `json:"id"`
	TimestampMs int64   `json:"timestamp_ms"`
	Timecode    string  `json:"timecode"`
	Position    float64 `json:"position"`
}

// View is the timeline for one render.
type View struct {
	Progress float64  `json:"progress"`
	Markers  []Marker `json:"markers"`
}

func usable(duration float64) bool {
	return duration > 0 && !math.IsNaN(duration) && !math.IsInf(duration, 0)
}

// Progress returns current/duration, or 0 when duration is zero or unknown
// or current is not a finite position.
func Progress(current, duration float64) float64 {
	if !usable(duration) || math.IsNaN(current) || math.IsInf(current, 0) {
		return 0
	}
	p := current / duration
	if math.IsInf(p, 0) {
		return 0
	}
	return p
}

// MarkerPosition returns tsMs as a fraction of a duration given in seconds.
func MarkerPosition(tsMs int64, duration float64) float64 {
	if !usable(duration) {
		return 0
	}
	return float64(tsMs) / (duration * 1000)
}

// Build returns the timeline view of anns ordered by timestamp. Equal
// timestamps keep their input order.
func Build(anns []models.Annotation, current, duration float64) View {
	markers := make([]Marker, 0, len(anns))
	for _, a := range anns {
		markers = append(markers, Marker{
			ID:          a.ID,
			TimestampMs: a.TimestampMs,
			Timecode:    a.Timecode,
			Position:    MarkerPosition(a.TimestampMs, duration),
		})
	}
	sort.SliceStable(markers, func(i, j int) bool {
		return markers[i].TimestampMs < markers[j].TimestampMs
	})
	return View{Progress: Progress(current, duration), Markers: markers}
}

// SeekTime maps a click at fraction of the timeline width to an absolute
// time in seconds. The fraction is clamped to [0, 1].
func SeekTime(fraction, duration float64) float64 {
	if !usable(duration) || math.IsNaN(fraction) {
		return 0
	}
	return math.Min(math.Max(fraction, 0), 1) * duration
}

// MarkerAt returns the marker closest to fraction if it lies within
// tolerance of it.
func MarkerAt(v View, fraction, tolerance float64) (Marker, bool) {
	best, bestDist := -1, math.Inf(1)
	for i, m := range v.Markers {
		if d := math.Abs(m.Position - fraction); d <= tolerance && d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		return Marker{}, false
	}
	return v.Markers[best], true
}
