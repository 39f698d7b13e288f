// Package capture pulls a single frame and its timestamp from a playback surface.
package capture

import (
	"context"
	"fmt"
	"image"
	"math"

	"golang.org/x/image/draw"

	"github.com/starford/vidmark/internal/apperr"
)

// Surface is the playback collaborator the capture adapter queries.
// CurrentTime is in seconds.
type Surface interface {
	Pause(ctx context.Context) error
	Play(ctx context.Context) error
	Seek(ctx context.Context, ms int64) error
	Ready() bool
	Size() (width, height int)
	CurrentTime() float64
	ReadPixels(ctx context.Context) (image.Image, error)
}

// Frame is a captured bitmap and the position it was taken at.
type Frame struct {
	Bitmap      *image.RGBA
	TimestampMs int64
}

// Capture pauses s and samples the current frame. Pausing always happens
// first, even when the surface turns out not to be ready.
func Capture(ctx context.Context, s Surface) (Frame, error) {
	if err := s.Pause(ctx); err != nil {
		return Frame{}, fmt.Errorf("capture: pause: %w", err)
	}
	if !s.Ready() {
		return Frame{}, fmt.Errorf("%w: metadata not loaded", apperr.ErrCaptureNotReady)
	}
	w, h := s.Size()
	if w <= 0 || h <= 0 {
		return Frame{}, fmt.Errorf("%w: surface is %dx%d", apperr.ErrCaptureNotReady, w, h)
	}

	ts := TimestampMs(s.CurrentTime())
	img, err := s.ReadPixels(ctx)
	if err != nil {
		return Frame{}, fmt.Errorf("%w: %w", apperr.ErrCaptureEncodingFailed, err)
	}
	if img == nil {
		return Frame{}, fmt.Errorf("%w: surface returned no pixels", apperr.ErrCaptureEncodingFailed)
	}
	b := img.Bounds()
	if b.Dx() != w || b.Dy() != h {
		return Frame{}, fmt.Errorf("%w: readback %dx%d, surface %dx%d",
			apperr.ErrCaptureEncodingFailed, b.Dx(), b.Dy(), w, h)
	}

	bitmap := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(bitmap, bitmap.Bounds(), img, b.Min, draw.Src)
	return Frame{Bitmap: bitmap, TimestampMs: ts}, nil
}

// TimestampMs converts a playback position in seconds to whole milliseconds,
// rounding down. Negative and non-finite positions map to 0.
func TimestampMs(seconds float64) int64 {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds <= 0 {
		return 0
	}
	return int64(math.Floor(seconds * 1000))
}
