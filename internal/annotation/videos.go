package annotation

import (
	"context"
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/starford/vidmark/internal/apperr"
	"github.com/starford/vidmark/internal/models"
)

// SampleVideo is inserted by the seed command.
var SampleVideo = VideoInput{
	ID:         "sample-video-1",
	Title:      "Sample Video - Big Buck Bunny",
	URL:        "https://commondatastorage.googleapis.com/gtv-videos-bucket/sample/BigBuckBunny.mp4",
	DurationMs: 596458,
}

// VideoInput is the payload of CreateVideo. An empty ID is generated.
type VideoInput struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	URL        string `json:"url"`
	DurationMs int64  `json:"duration_ms"`
}

func (in VideoInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.ID, validation.Match(idPattern)),
		validation.Field(&in.URL, validation.Required, is.URL),
		validation.Field(&in.DurationMs, validation.Min(int64(0))),
	)
}

// CreateVideo appends a video. A duplicate ID fails with apperr.ErrAlreadyExists.
func (s *Store) CreateVideo(ctx context.Context, in VideoInput) (models.Video, error) {
	if err := in.Validate(); err != nil {
		return models.Video{}, fmt.Errorf("%w: %w", apperr.ErrInvalidInput, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.backend.Load(ctx)
	if err != nil {
		return models.Video{}, fmt.Errorf("annotation: load collection: %w", err)
	}
	if in.ID == "" {
		in.ID = s.newID()
	}
	for _, v := range doc.Videos {
		if v.ID == in.ID {
			return models.Video{}, fmt.Errorf("%w: video %s", apperr.ErrAlreadyExists, in.ID)
		}
	}
	v := models.Video{
		ID:         in.ID,
		Title:      in.Title,
		URL:        in.URL,
		DurationMs: in.DurationMs,
		CreatedAt:  s.now().UTC(),
	}
	doc.Videos = append(doc.Videos, v)
	if err := s.backend.Save(ctx, doc); err != nil {
		return models.Video{}, fmt.Errorf("annotation: save collection: %w", err)
	}
	s.logger.Info("video created", slog.String("video_id", v.ID))
	s.notify(Event{Kind: EventVideoCreated, VideoID: v.ID})
	return v, nil
}

// ListVideos returns all videos in insertion order.
func (s *Store) ListVideos(ctx context.Context) ([]models.Video, error) {
	doc, err := s.backend.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("annotation: load collection: %w", err)
	}
	return doc.Videos, nil
}

// GetVideo returns the video with id.
func (s *Store) GetVideo(ctx context.Context, id string) (models.Video, error) {
	doc, err := s.backend.Load(ctx)
	if err != nil {
		return models.Video{}, fmt.Errorf("annotation: load collection: %w", err)
	}
	for _, v := range doc.Videos {
		if v.ID == id {
			return v, nil
		}
	}
	return models.Video{}, apperr.ErrNotFound
}
