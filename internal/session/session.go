// Package session ties one captured frame, its editing engine and the save
// round-trip together for a single annotation.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/starford/vidmark/internal/apperr"
	"github.com/starford/vidmark/internal/capture"
	"github.com/starford/vidmark/internal/editor"
	"github.com/starford/vidmark/internal/models"
)

// Saver persists an exported annotation image. Both the local store and the
// HTTP client implement it.
type Saver interface {
	CreateAnnotation(ctx context.Context, videoID string, timestampMs int64, image []byte, notes string) (models.Annotation, error)
}

// Session is an open editor over one captured frame. The engine is only
// touched from the caller's input loop; the mutex guards against a save
// racing with that loop.
type Session struct {
	mu      sync.Mutex
	surface capture.Surface
	saver   Saver
	logger  *slog.Logger
	engine  *editor.Engine
	videoID string
	frame   capture.Frame
	notes   string
	saving  bool
	closed  bool
}

// Open captures the current frame from surface and loads it into a new engine.
// Playback stays paused until the session is saved or cancelled.
func Open(ctx context.Context, surface capture.Surface, videoID string, saver Saver, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}
	frame, err := capture.Capture(ctx, surface)
	if err != nil {
		return nil, err
	}
	engine := editor.New()
	if err := engine.Load(frame.Bitmap); err != nil {
		return nil, fmt.Errorf("session: load frame: %w", err)
	}
	logger.Debug("editor opened", slog.String("video_id", videoID), slog.Int64("timestamp_ms", frame.TimestampMs))
	return &Session{
		surface: surface,
		saver:   saver,
		logger:  logger,
		engine:  engine,
		videoID: videoID,
		frame:   frame,
	}, nil
}

// Engine returns the editing engine for input dispatch.
func (s *Session) Engine() *editor.Engine {
	return s.engine
}

// TimestampMs is the position the frame was captured at.
func (s *Session) TimestampMs() int64 {
	return s.frame.TimestampMs
}

func (s *Session) SetNotes(notes string) {
	s.mu.Lock()
	s.notes = notes
	s.mu.Unlock()
}

// Saving reports whether a save is in flight.
func (s *Session) Saving() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saving
}

// Save exports the edited frame and hands it to the saver. Only one save
// may be outstanding; a second call fails with apperr.ErrSaveInFlight.
// On failure the session stays open with its history intact. On success
// the engine is closed and playback resumes from the captured position.
func (s *Session) Save(ctx context.Context) (models.Annotation, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return models.Annotation{}, apperr.ErrClosed
	}
	if s.saving {
		s.mu.Unlock()
		return models.Annotation{}, apperr.ErrSaveInFlight
	}
	data, err := s.engine.Export()
	if err != nil {
		s.mu.Unlock()
		return models.Annotation{}, err
	}
	s.saving = true
	notes := s.notes
	s.mu.Unlock()

	a, err := s.saver.CreateAnnotation(ctx, s.videoID, s.frame.TimestampMs, data, notes)

	s.mu.Lock()
	s.saving = false
	if err != nil {
		s.mu.Unlock()
		s.logger.Error("save annotation", slog.String("video_id", s.videoID), slog.String("error", err.Error()))
		return models.Annotation{}, err
	}
	s.closeLocked()
	s.mu.Unlock()

	s.resume(ctx)
	return a, nil
}

// Cancel discards every edit and resumes playback from the captured position.
func (s *Session) Cancel(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return apperr.ErrClosed
	}
	if s.saving {
		s.mu.Unlock()
		return apperr.ErrSaveInFlight
	}
	s.closeLocked()
	s.mu.Unlock()

	s.resume(ctx)
	return nil
}

// Closed reports whether the session has ended.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) closeLocked() {
	s.closed = true
	s.engine.Close()
}

func (s *Session) resume(ctx context.Context) {
	if err := s.surface.Seek(ctx, s.frame.TimestampMs); err != nil {
		s.logger.Warn("seek after edit", slog.String("error", err.Error()))
	}
	if err := s.surface.Play(ctx); err != nil {
		s.logger.Warn("resume playback", slog.String("error", err.Error()))
	}
}
