package editor

import (
	"image"
	"testing"
)

func TestHistoryNeverPopsPristine(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	h := NewHistory(img)
	if h.Pop() {
		t.Fatal("popped pristine")
	}

	img.Pix[0] = 1
	h.Push(img)
	img.Pix[0] = 2
	h.Push(img)
	if h.Len() != 3 {
		t.Fatalf("len = %d", h.Len())
	}

	if !h.Pop() {
		t.Fatal("pop failed")
	}
	h.RestoreTop(img)
	if img.Pix[0] != 1 {
		t.Errorf("top pix = %d, want 1", img.Pix[0])
	}

	h.Reset()
	h.RestoreTop(img)
	if h.Len() != 1 || img.Pix[0] != 0 {
		t.Errorf("after reset len=%d pix=%d", h.Len(), img.Pix[0])
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	h := NewHistory(img)
	img.Pix[0] = 9
	h.RestorePristine(img)
	if img.Pix[0] != 0 {
		t.Errorf("pristine aliased the surface: %d", img.Pix[0])
	}
}
