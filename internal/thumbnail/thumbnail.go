// Package thumbnail derives bounded-size preview images from exported annotations.
package thumbnail

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"math"

	"golang.org/x/image/draw"

	"github.com/starford/vidmark/internal/apperr"
)

// Default bounding box.
const (
	DefaultMaxWidth  = 200
	DefaultMaxHeight = 200
)

const jpegQuality = 85

// MaxInputPixels bounds the declared size of a source image. Decoders
// allocate the full pixel buffer from the header, so larger inputs are
// refused before decoding.
const MaxInputPixels = 0x3FFF * 0x3FFF

// Result is a derived thumbnail.
type Result struct {
	Data   []byte
	Format string // "png", "jpeg" or "gif"; always the source format
	Width  int
	Height int
}

// Ext returns the file extension for the thumbnail format.
func (r *Result) Ext() string {
	return FormatExt(r.Format)
}

// FormatExt maps a decoder format name to a file extension.
func FormatExt(format string) string {
	switch format {
	case "jpeg":
		return "jpg"
	case "gif":
		return "gif"
	default:
		return "png"
	}
}

// Deriver scales images to fit a bounding box.
type Deriver struct {
	maxW, maxH int
}

// New creates a Deriver for a maxW×maxH box. Non-positive values fall back to the defaults.
func New(maxW, maxH int) *Deriver {
	if maxW <= 0 {
		maxW = DefaultMaxWidth
	}
	if maxH <= 0 {
		maxH = DefaultMaxHeight
	}
	return &Deriver{maxW: maxW, maxH: maxH}
}

// Derive decodes data, fits it inside the box preserving aspect ratio (never
// upscaling), and re-encodes it in the source format. Every failure wraps
// apperr.ErrThumbnailEncodingFailed.
func (d *Deriver) Derive(data []byte) (*Result, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty image", apperr.ErrThumbnailEncodingFailed)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %v", apperr.ErrThumbnailEncodingFailed, err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxInputPixels {
		return nil, fmt.Errorf("%w: %w: %dx%d exceeds %d pixels",
			apperr.ErrThumbnailEncodingFailed, apperr.ErrInvalidInput, cfg.Width, cfg.Height, MaxInputPixels)
	}
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %v", apperr.ErrThumbnailEncodingFailed, err)
	}
	b := src.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("%w: empty bounds", apperr.ErrThumbnailEncodingFailed)
	}

	w, h := Fit(b.Dx(), b.Dy(), d.maxW, d.maxH)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)

	var buf bytes.Buffer
	switch format {
	case "jpeg":
		err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality})
	case "gif":
		err = gif.Encode(&buf, dst, nil)
	default:
		format = "png"
		err = png.Encode(&buf, dst)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: encode %s: %v", apperr.ErrThumbnailEncodingFailed, format, err)
	}
	return &Result{Data: buf.Bytes(), Format: format, Width: w, Height: h}, nil
}

// Fit returns the largest size that fits w×h inside maxW×maxH without upscaling.
func Fit(w, h, maxW, maxH int) (int, int) {
	scale := math.Min(float64(maxW)/float64(w), float64(maxH)/float64(h))
	if scale >= 1 {
		return w, h
	}
	fw := int(math.Round(float64(w) * scale))
	fh := int(math.Round(float64(h) * scale))
	return max(fw, 1), max(fh, 1)
}
