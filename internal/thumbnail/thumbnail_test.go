package thumbnail

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/starford/vidmark/internal/apperr"
	"github.com/starford/vidmark/internal/testutil"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 128, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func decodeConfig(t *testing.T, data []byte) (image.Config, string) {
	t.Helper()
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("DecodeConfig: %v", err)
	}
	return cfg, format
}

func TestFit(t *testing.T) {
	cases := []struct {
		w, h, wantW, wantH int
	}{
		{10, 10, 10, 10},
		{200, 200, 200, 200},
		{400, 200, 200, 100},
		{200, 400, 100, 200},
		{1920, 1080, 200, 113},
		{1000, 1, 200, 1},
		{1, 1000, 1, 200},
	}
	for _, c := range cases {
		w, h := Fit(c.w, c.h, 200, 200)
		if w != c.wantW || h != c.wantH {
			t.Errorf("Fit(%d,%d) = %dx%d, want %dx%d", c.w, c.h, w, h, c.wantW, c.wantH)
		}
	}
}

func TestDerive_Downscales(t *testing.T) {
	d := New(0, 0)
	res, err := d.Derive(encodePNG(t, 640, 360))
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	cfg, format := decodeConfig(t, res.Data)
	if format != "png" || res.Format != "png" {
		t.Errorf("format = %q/%q, want png", format, res.Format)
	}
	if cfg.Width != 200 || cfg.Height != 113 {
		t.Errorf("size = %dx%d, want 200x113", cfg.Width, cfg.Height)
	}
	if res.Width != cfg.Width || res.Height != cfg.Height {
		t.Errorf("result dims %dx%d disagree with encoded %dx%d", res.Width, res.Height, cfg.Width, cfg.Height)
	}
}

func TestDerive_NoUpscale(t *testing.T) {
	res, err := New(200, 200).Derive(encodePNG(t, 10, 10))
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	cfg, _ := decodeConfig(t, res.Data)
	if cfg.Width != 10 || cfg.Height != 10 {
		t.Errorf("size = %dx%d, want 10x10", cfg.Width, cfg.Height)
	}
}

func TestDerive_Deterministic(t *testing.T) {
	src := encodePNG(t, 300, 250)
	d := New(200, 200)
	a, err := d.Derive(src)
	if err != nil {
		t.Fatal(err)
	}
	b, err := d.Derive(src)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a.Data, b.Data) {
		t.Error("same input produced different thumbnails")
	}
}

func TestDerive_KeepsJPEG(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 500, 250))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatal(err)
	}
	res, err := New(200, 200).Derive(buf.Bytes())
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	_, format := decodeConfig(t, res.Data)
	if format != "jpeg" || res.Ext() != "jpg" {
		t.Errorf("format = %q ext = %q", format, res.Ext())
	}
}

func TestDerive_InvalidInput(t *testing.T) {
	d := New(200, 200)
	for _, data := range [][]byte{nil, []byte("fake-image-data")} {
		_, err := d.Derive(data)
		if !errors.Is(err, apperr.ErrThumbnailEncodingFailed) {
			t.Errorf("Derive(%q) err = %v, want ErrThumbnailEncodingFailed", data, err)
		}
	}
}

func TestDerive_RejectsOversizedSource(t *testing.T) {
	data := testutil.PNGHeader(60000, 60000)
	if w, h := testutil.DecodeSize(t, data); w != 60000 || h != 60000 {
		t.Fatalf("header declares %dx%d", w, h)
	}
	_, err := New(200, 200).Derive(data)
	if !errors.Is(err, apperr.ErrThumbnailEncodingFailed) || !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrThumbnailEncodingFailed and ErrInvalidInput", err)
	}
}

func TestDerive_HeaderOnlyWithinBound(t *testing.T) {
	_, err := New(200, 200).Derive(testutil.PNGHeader(64, 64))
	if !errors.Is(err, apperr.ErrThumbnailEncodingFailed) {
		t.Fatalf("err = %v, want ErrThumbnailEncodingFailed", err)
	}
	if errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("small truncated image reported as oversized: %v", err)
	}
}
