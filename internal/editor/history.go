package editor

import "image"

// Snapshot is an opaque copy of the full raster at one point in history.
type Snapshot struct {
	pix []byte
}

func snapshotOf(img *image.RGBA) Snapshot {
	return Snapshot{pix: append([]byte(nil), img.Pix...)}
}

// History is a linear undo stack of whole-image snapshots.
// Index 0 is always the pristine frame and the stack is never empty.
type History struct {
	snaps []Snapshot
}

// NewHistory starts a history whose only entry is the pristine frame.
func NewHistory(pristine *image.RGBA) *History {
	return &History{snaps: []Snapshot{snapshotOf(pristine)}}
}

// Len returns the number of snapshots, pristine included.
func (h *History) Len() int {
	return len(h.snaps)
}

// Push appends a snapshot of img.
func (h *History) Push(img *image.RGBA) {
	h.snaps = append(h.snaps, snapshotOf(img))
}

// Pop drops the newest snapshot. The pristine entry is never popped;
// Pop reports false when only it remains.
func (h *History) Pop() bool {
	if len(h.snaps) <= 1 {
		return false
	}
	h.snaps[len(h.snaps)-1] = Snapshot{}
	h.snaps = h.snaps[:len(h.snaps)-1]
	return true
}

// Reset truncates history to the pristine entry.
func (h *History) Reset() {
	for i := 1; i < len(h.snaps); i++ {
		h.snaps[i] = Snapshot{}
	}
	h.snaps = h.snaps[:1]
}

// RestoreTop copies the newest snapshot into dst.
func (h *History) RestoreTop(dst *image.RGBA) {
	copy(dst.Pix, h.snaps[len(h.snaps)-1].pix)
}

// RestorePristine copies the pristine snapshot into dst.
func (h *History) RestorePristine(dst *image.RGBA) {
	copy(dst.Pix, h.snaps[0].pix)
}
