package editor

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
)

// AnnotationColor is the fixed ink color for strokes and labels.
var AnnotationColor = color.RGBA{R: 0xFF, A: 0xFF}

var outlineColor = color.RGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}

const (
	labelFontSize = 24
	// Cubic Bézier control distance for a quarter circle of radius 1.
	kappa = 0.5522847498
)

// Stroke is a committed-on-release pen path in bitmap coordinates.
type Stroke struct {
	Points []Point
	Width  StrokeWidth
	Color  color.RGBA
}

// render paints s into dst as a round-capped, round-joined polyline.
// Every sub-path shares one winding so overlapping pieces union instead of cancelling.
func (s *Stroke) render(dst *image.RGBA) {
	if len(s.Points) == 0 {
		return
	}
	b := dst.Bounds()
	r := vector.NewRasterizer(b.Dx(), b.Dy())
	radius := float64(s.Width) / 2
	for i, p := range s.Points {
		addDisc(r, p, radius)
		if i > 0 {
			addSegment(r, s.Points[i-1], p, radius)
		}
	}
	r.Draw(dst, b, image.NewUniform(s.Color), image.Point{})
}

func addDisc(r *vector.Rasterizer, c Point, radius float64) {
	x, y := float32(c.X), float32(c.Y)
	rr, k := float32(radius), float32(radius*kappa)
	r.MoveTo(x+rr, y)
	r.CubeTo(x+rr, y-k, x+k, y-rr, x, y-rr)
	r.CubeTo(x-k, y-rr, x-rr, y-k, x-rr, y)
	r.CubeTo(x-rr, y+k, x-k, y+rr, x, y+rr)
	r.CubeTo(x+k, y+rr, x+rr, y+k, x+rr, y)
	r.ClosePath()
}

func addSegment(r *vector.Rasterizer, a, b Point, radius float64) {
	dx, dy := b.X-a.X, b.Y-a.Y
	length := math.Hypot(dx, dy)
	if length < 1e-9 {
		return
	}
	nx, ny := -dy/length*radius, dx/length*radius
	r.MoveTo(float32(a.X+nx), float32(a.Y+ny))
	r.LineTo(float32(b.X+nx), float32(b.Y+ny))
	r.LineTo(float32(b.X-nx), float32(b.Y-ny))
	r.LineTo(float32(a.X-nx), float32(a.Y-ny))
	r.ClosePath()
}

var labelFont = sync.OnceValues(func() (*opentype.Font, error) {
	return opentype.Parse(gobold.TTF)
})

// newLabelFace returns a fresh face; faces are not safe for concurrent use.
func newLabelFace() (font.Face, error) {
	f, err := labelFont()
	if err != nil {
		return nil, fmt.Errorf("editor: parse label font: %w", err)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    labelFontSize,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("editor: label face: %w", err)
	}
	return face, nil
}

// renderLabel draws text with its baseline-left at anchor, ringed by a
// one-pixel light outline so it reads on any frame.
func renderLabel(dst *image.RGBA, face font.Face, text string, anchor Point) {
	d := &font.Drawer{Dst: dst, Face: face, Src: image.NewUniform(outlineColor)}
	base := fixed.Point26_6{
		X: fixed.Int26_6(math.Round(anchor.X * 64)),
		Y: fixed.Int26_6(math.Round(anchor.Y * 64)),
	}
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			d.Dot = base.Add(fixed.P(dx, dy))
			d.DrawString(text)
		}
	}
	d.Src = image.NewUniform(AnnotationColor)
	d.Dot = base
	d.DrawString(text)
}
