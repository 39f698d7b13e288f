package capture

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/starford/vidmark/internal/apperr"
)

// FrameSurface is an in-memory Surface fed with raw RGB frames, e.g. from a
// decoder pipeline or a test.
type FrameSurface struct {
	mu       sync.Mutex
	width    int
	height   int
	rgb      []byte
	position float64
	playing  bool
}

// NewFrameSurface returns a surface with no frame loaded. It reports not ready
// until SetFrame is called.
func NewFrameSurface() *FrameSurface {
	return &FrameSurface{}
}

// SetFrame replaces the displayed frame. rgb holds 3 bytes per pixel.
func (f *FrameSurface) SetFrame(width, height int, rgb []byte, positionSeconds float64) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: frame size %dx%d", apperr.ErrInvalidInput, width, height)
	}
	if len(rgb) != width*height*3 {
		return fmt.Errorf("%w: rgb data size %d, expected %d", apperr.ErrInvalidInput, len(rgb), width*height*3)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.width, f.height = width, height
	f.rgb = append(f.rgb[:0], rgb...)
	f.position = positionSeconds
	return nil
}

func (f *FrameSurface) Pause(context.Context) error {
	f.mu.Lock()
	f.playing = false
	f.mu.Unlock()
	return nil
}

func (f *FrameSurface) Play(context.Context) error {
	f.mu.Lock()
	f.playing = true
	f.mu.Unlock()
	return nil
}

// Seek moves the playback position to ms.
func (f *FrameSurface) Seek(_ context.Context, ms int64) error {
	if ms < 0 {
		return fmt.Errorf("%w: negative seek %d", apperr.ErrInvalidInput, ms)
	}
	f.mu.Lock()
	f.position = float64(ms) / 1000
	f.mu.Unlock()
	return nil
}

func (f *FrameSurface) Ready() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rgb != nil
}

func (f *FrameSurface) Size() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.width, f.height
}

func (f *FrameSurface) CurrentTime() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.position
}

// Playing reports whether playback is running.
func (f *FrameSurface) Playing() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.playing
}

// ReadPixels converts the current RGB frame to RGBA with full opacity.
func (f *FrameSurface) ReadPixels(context.Context) (image.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rgb == nil {
		return nil, fmt.Errorf("%w: no frame", apperr.ErrCaptureNotReady)
	}
	img := image.NewRGBA(image.Rect(0, 0, f.width, f.height))
	for i := 0; i < f.width*f.height; i++ {
		img.Pix[i*4+0] = f.rgb[i*3+0]
		img.Pix[i*4+1] = f.rgb[i*3+1]
		img.Pix[i*4+2] = f.rgb[i*3+2]
		img.Pix[i*4+3] = 0xFF
	}
	return img, nil
}
