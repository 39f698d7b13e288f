// Package editor implements the in-memory annotation editing engine: a raster
// surface seeded from a captured frame, pen and text tools, and a snapshot
// undo history.
package editor

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"strings"

	"golang.org/x/image/font"

	"github.com/starford/vidmark/internal/apperr"
)

// ErrNotLoaded is returned by operations that need a loaded frame.
var ErrNotLoaded = errors.New("editor: no frame loaded")

// State is the externally observable engine state.
type State int

const (
	StateUninitialized State = iota
	StateIdle
	StateDrawing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateIdle:
		return "idle"
	case StateDrawing:
		return "drawing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Tool selects how pointer events are interpreted.
type Tool int

const (
	ToolPen Tool = iota
	ToolText
)

func (t Tool) String() string {
	if t == ToolText {
		return "text"
	}
	return "pen"
}

// StrokeWidth is a pen width preset in bitmap pixels.
type StrokeWidth float64

const (
	Thin  StrokeWidth = 2
	Thick StrokeWidth = 5
)

// TextLabel is a piece of text anchored at its baseline-left point in bitmap space.
type TextLabel struct {
	Anchor Point
	Text   string
}

// toolState is the tagged variant behind the active tool. Both variants
// receive the same pointer dispatch.
type toolState interface {
	tool() Tool
	press(e *Engine, p Point) error
	move(e *Engine, p Point)
	release(e *Engine)
	drawing() bool
}

type penState struct {
	stroke *Stroke // non-nil between press and release
}

func (*penState) tool() Tool { return ToolPen }

func (s *penState) press(e *Engine, p Point) error {
	s.stroke = &Stroke{Points: []Point{p}, Width: e.width, Color: AnnotationColor}
	return nil
}

func (s *penState) move(_ *Engine, p Point) {
	if s.stroke == nil {
		return
	}
	s.stroke.Points = append(s.stroke.Points, p)
}

func (s *penState) release(e *Engine) {
	if s.stroke == nil {
		return
	}
	s.stroke.render(e.surface)
	s.stroke = nil
	e.history.Push(e.surface)
}

func (s *penState) drawing() bool { return s.stroke != nil }

type textState struct{}

func (textState) tool() Tool { return ToolText }

// press focuses a new label; any label still being edited loses focus first.
func (textState) press(e *Engine, p Point) error {
	if _, err := e.commitPending(); err != nil {
		return err
	}
	e.pending = &TextLabel{Anchor: p}
	return nil
}

func (textState) move(*Engine, Point) {}
func (textState) release(*Engine) {}
func (textState) drawing() bool { return false }

// Engine owns the mutable raster for one editing session. It is not safe
// for concurrent use; input events are expected on one logical timeline.
type Engine struct {
	surface *image.RGBA
	history *History
	tool    toolState
	width   StrokeWidth
	pending *TextLabel
	face    font.Face
	closed  bool
}

// New returns an engine waiting for a frame.
func New() *Engine {
	return &Engine{tool: &penState{}, width: Thin}
}

// Load seeds the surface with frame and resets history to [pristine].
func (e *Engine) Load(frame image.Image) error {
	if e.closed {
		return apperr.ErrClosed
	}
	if frame == nil {
		return fmt.Errorf("%w: nil frame", apperr.ErrInvalidInput)
	}
	b := frame.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return fmt.Errorf("%w: empty frame %dx%d", apperr.ErrInvalidInput, b.Dx(), b.Dy())
	}
	if e.face == nil {
		face, err := newLabelFace()
		if err != nil {
			return err
		}
		e.face = face
	}
	surface := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(surface, surface.Bounds(), frame, b.Min, draw.Src)
	e.surface = surface
	e.history = NewHistory(surface)
	e.pending = nil
	e.tool = newToolState(e.tool.tool())
	return nil
}

func newToolState(t Tool) toolState {
	if t == ToolText {
		return textState{}
	}
	return &penState{}
}

func (e *Engine) ready() error {
	if e.closed {
		return apperr.ErrClosed
	}
	if e.surface == nil {
		return ErrNotLoaded
	}
	return nil
}

// State reports the current state.
func (e *Engine) State() State {
	switch {
	case e.closed:
		return StateClosed
	case e.surface == nil:
		return StateUninitialized
	case e.tool.drawing():
		return StateDrawing
	default:
		return StateIdle
	}
}

// Size returns the bitmap dimensions.
func (e *Engine) Size() (int, int) {
	if e.surface == nil {
		return 0, 0
	}
	return e.surface.Rect.Dx(), e.surface.Rect.Dy()
}

// Tool returns the active tool.
func (e *Engine) Tool() Tool {
	return e.tool.tool()
}

// SetTool switches tools. History is untouched: an unfinished stroke is
// dropped and a pending label stays pending.
func (e *Engine) SetTool(t Tool) error {
	if e.closed {
		return apperr.ErrClosed
	}
	if t != ToolPen && t != ToolText {
		return fmt.Errorf("%w: unknown tool %d", apperr.ErrInvalidInput, int(t))
	}
	e.tool = newToolState(t)
	return nil
}

// StrokeWidth returns the current pen width.
func (e *Engine) StrokeWidth() StrokeWidth {
	return e.width
}

// SetStrokeWidth selects one of the Thin or Thick presets.
func (e *Engine) SetStrokeWidth(w StrokeWidth) error {
	if e.closed {
		return apperr.ErrClosed
	}
	if w != Thin && w != Thick {
		return fmt.Errorf("%w: unsupported stroke width %v", apperr.ErrInvalidInput, float64(w))
	}
	e.width = w
	return nil
}

// PointerDown starts a stroke (pen) or a new pending label (text).
func (e *Engine) PointerDown(ev PointerEvent) error {
	if err := e.ready(); err != nil {
		return err
	}
	p, err := toBitmap(ev, e.surface.Rect.Dx(), e.surface.Rect.Dy())
	if err != nil {
		return err
	}
	return e.tool.press(e, p)
}

// PointerMove extends the stroke in progress. Moves while not pressed are ignored.
func (e *Engine) PointerMove(ev PointerEvent) error {
	if err := e.ready(); err != nil {
		return err
	}
	if !e.tool.drawing() {
		return nil
	}
	p, err := toBitmap(ev, e.surface.Rect.Dx(), e.surface.Rect.Dy())
	if err != nil {
		return err
	}
	e.tool.move(e, p)
	return nil
}

// PointerUp commits the stroke in progress and appends a snapshot.
func (e *Engine) PointerUp() error {
	if err := e.ready(); err != nil {
		return err
	}
	e.tool.release(e)
	return nil
}

// PointerLeave behaves like PointerUp.
func (e *Engine) PointerLeave() error {
	return e.PointerUp()
}

// TypeText replaces the text of the focused pending label.
func (e *Engine) TypeText(text string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if e.pending == nil {
		return fmt.Errorf("%w: no text label is being edited", apperr.ErrInvalidInput)
	}
	e.pending.Text = text
	return nil
}

// CommitText bakes the pending label into the raster when its trimmed text
// is non-empty and reports whether a snapshot was appended. Empty labels
// are discarded.
func (e *Engine) CommitText() (bool, error) {
	if err := e.ready(); err != nil {
		return false, err
	}
	return e.commitPending()
}

func (e *Engine) commitPending() (bool, error) {
	label := e.pending
	e.pending = nil
	if label == nil || strings.TrimSpace(label.Text) == "" {
		return false, nil
	}
	renderLabel(e.surface, e.face, label.Text, label.Anchor)
	e.history.Push(e.surface)
	return true, nil
}

// PendingLabels returns the labels not yet baked into the raster.
func (e *Engine) PendingLabels() []TextLabel {
	if e.pending == nil {
		return []TextLabel{}
	}
	return []TextLabel{*e.pending}
}

// HistoryLen returns the number of snapshots, pristine included.
func (e *Engine) HistoryLen() int {
	if e.history == nil {
		return 0
	}
	return e.history.Len()
}

// Undo restores the previous snapshot. It reports false, without error,
// when only the pristine snapshot is left.
func (e *Engine) Undo() (bool, error) {
	if err := e.ready(); err != nil {
		return false, err
	}
	if e.tool.drawing() {
		return false, apperr.ErrEditInProgress
	}
	if !e.history.Pop() {
		return false, nil
	}
	e.history.RestoreTop(e.surface)
	return true, nil
}

// Clear resets the raster to the pristine frame, drops pending labels and
// any unfinished stroke, and truncates history to [pristine].
func (e *Engine) Clear() error {
	if err := e.ready(); err != nil {
		return err
	}
	e.tool = newToolState(e.tool.tool())
	e.pending = nil
	e.history.RestorePristine(e.surface)
	e.history.Reset()
	return nil
}

// Surface returns a copy of the committed raster.
func (e *Engine) Surface() *image.RGBA {
	if e.surface == nil {
		return nil
	}
	return cloneRGBA(e.surface)
}

// Preview returns the committed raster with the stroke in progress drawn on
// top, for display only.
func (e *Engine) Preview() *image.RGBA {
	if e.surface == nil {
		return nil
	}
	out := cloneRGBA(e.surface)
	if pen, ok := e.tool.(*penState); ok && pen.stroke != nil {
		pen.stroke.render(out)
	}
	return out
}

// Export commits a pending label and encodes the raster as PNG. It refuses
// while a stroke is still being drawn.
func (e *Engine) Export() ([]byte, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if e.tool.drawing() {
		return nil, apperr.ErrEditInProgress
	}
	if _, err := e.commitPending(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, e.surface); err != nil {
		return nil, fmt.Errorf("editor: encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// Close discards the engine. Every later operation fails with apperr.ErrClosed.
func (e *Engine) Close() {
	if e.closed {
		return
	}
	e.closed = true
	e.pending = nil
	e.tool = &penState{}
	e.history = nil
	e.surface = nil
	if e.face != nil {
		_ = e.face.Close()
		e.face = nil
	}
}

func cloneRGBA(src *image.RGBA) *image.RGBA {
	out := image.NewRGBA(src.Rect)
	copy(out.Pix, src.Pix)
	return out
}
