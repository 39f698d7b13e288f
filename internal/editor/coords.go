package editor

import (
	"fmt"
	"math"

	"github.com/starford/vidmark/internal/apperr"
)

// Point is a position in bitmap or display space.
type Point struct {
	X, Y float64
}

// PointerEvent is a pointer position in display-surface coordinates together
// with the display size at the moment of the event.
type PointerEvent struct {
	X, Y float64

	DisplayWidth, DisplayHeight float64
}

// toBitmap scales a display-space event into bitmap space. Axes scale
// independently because layout may stretch the surface non-uniformly.
func toBitmap(ev PointerEvent, bitmapW, bitmapH int) (Point, error) {
	if !finite(ev.DisplayWidth) || !finite(ev.DisplayHeight) || ev.DisplayWidth <= 0 || ev.DisplayHeight <= 0 {
		return Point{}, fmt.Errorf("%w: display size %vx%v", apperr.ErrInvalidInput, ev.DisplayWidth, ev.DisplayHeight)
	}
	if !finite(ev.X) || !finite(ev.Y) {
		return Point{}, fmt.Errorf("%w: pointer position %v,%v", apperr.ErrInvalidInput, ev.X, ev.Y)
	}
	p := Point{
		X: ev.X * (float64(bitmapW) / ev.DisplayWidth),
		Y: ev.Y * (float64(bitmapH) / ev.DisplayHeight),
	}
	// A tiny display size can still overflow the scaled point.
	if !finite(p.X) || !finite(p.Y) {
		return Point{}, fmt.Errorf("%w: pointer position %v,%v out of range", apperr.ErrInvalidInput, ev.X, ev.Y)
	}
	return p, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
