// Package annotation is the single writer of the annotation collection and
// its per-annotation image assets.
package annotation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"regexp"
	"sort"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/vidmark/internal/apperr"
	"github.com/starford/vidmark/internal/collection"
	"github.com/starford/vidmark/internal/idgen"
	"github.com/starford/vidmark/internal/metrics"
	"github.com/starford/vidmark/internal/models"
	"github.com/starford/vidmark/internal/storage"
	"github.com/starford/vidmark/internal/thumbnail"
	"github.com/starford/vidmark/internal/timecode"
)

// DefaultURLPrefix is where asset URLs are rooted when none is configured.
const DefaultURLPrefix = "/storage"

// idPattern restricts IDs to a single safe path segment.
var idPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// Event kinds passed to the notify hook.
const (
	EventCreated      = "annotation.created"
	EventDeleted      = "annotation.deleted"
	EventVideoCreated = "video.created"
)

// Event describes a committed change.
type Event struct {
	Kind         string             `json:"kind"`
	VideoID      string             `json:"videoId"`
	AnnotationID string             `json:"id,omitempty"`
	Annotation   *models.Annotation `json:"annotation,omitempty"`
}

// Store serialises every read-modify-write of the collection behind one
// mutex, so a single Store instance is the only writer of its backend.
type Store struct {
	mu        sync.Mutex
	backend   collection.Backend
	assets    storage.Provider
	thumbs    *thumbnail.Deriver
	newID     idgen.Generator
	now       func() time.Time
	urlPrefix string
	logger    *slog.Logger
	metrics   *metrics.StoreMetrics
	notify    func(Event)
}

// Option configures a Store.
type Option func(*Store)

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

func WithMetrics(m *metrics.StoreMetrics) Option {
	return func(s *Store) { s.metrics = m }
}

// WithIDGenerator replaces the default UUID v4 generator.
func WithIDGenerator(g idgen.Generator) Option {
	return func(s *Store) { s.newID = g }
}

// WithClock sets the source of created_at values.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithThumbnailer(d *thumbnail.Deriver) Option {
	return func(s *Store) { s.thumbs = d }
}

// WithURLPrefix sets the prefix of image_path and thumb_path URLs.
func WithURLPrefix(prefix string) Option {
	return func(s *Store) { s.urlPrefix = prefix }
}

// WithNotify registers a hook called after each committed change.
func WithNotify(fn func(Event)) Option {
	return func(s *Store) { s.notify = fn }
}

// New returns a Store over backend and assets.
func New(backend collection.Backend, assets storage.Provider, opts ...Option) *Store {
	s := &Store{
		backend:   backend,
		assets:    assets,
		thumbs:    thumbnail.New(0, 0),
		newID:     idgen.Default,
		now:       time.Now,
		urlPrefix: DefaultURLPrefix,
		logger:    slog.Default(),
		notify:    func(Event) {},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// CreateInput is the payload of Create.
type CreateInput struct {
	VideoID     string
	TimestampMs int64
	Image       []byte
	Notes       string
}

func (in CreateInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.VideoID, validation.Required, validation.Match(idPattern)),
		validation.Field(&in.TimestampMs, validation.Min(int64(0))),
		validation.Field(&in.Image, validation.Required),
	)
}

// Create derives the thumbnail, writes both assets and appends the record.
// Assets are written before the collection is committed; if anything after
// the first write fails the annotation directory is removed again.
func (s *Store) Create(ctx context.Context, in CreateInput) (models.Annotation, error) {
	start := time.Now()
	if err := in.Validate(); err != nil {
		return models.Annotation{}, fmt.Errorf("%w: %w", apperr.ErrInvalidInput, err)
	}

	thumb, err := s.thumbs.Derive(in.Image)
	s.metrics.ObserveThumbnail(start)
	if err != nil {
		s.metrics.IncFailure("create")
		return models.Annotation{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.newID()
	ext := thumb.Ext()
	imagePath := storage.AssetPath(in.VideoID, id, storage.ImageName, ext)
	thumbPath := storage.AssetPath(in.VideoID, id, storage.ThumbName, ext)
	a := models.Annotation{
		ID:          id,
		VideoID:     in.VideoID,
		TimestampMs: in.TimestampMs,
		Timecode:    timecode.Format(in.TimestampMs),
		ImagePath:   s.assetURL(imagePath),
		ThumbPath:   s.assetURL(thumbPath),
		Notes:       in.Notes,
		CreatedAt:   s.now().UTC(),
	}

	if err := s.commitCreate(ctx, a, imagePath, in.Image, thumbPath, thumb.Data); err != nil {
		s.metrics.IncFailure("create")
		dir := storage.AnnotationDir(in.VideoID, id)
		if rmErr := s.assets.RemoveAll(dir); rmErr != nil {
			s.logger.Warn("remove partial annotation assets",
				slog.String("path", dir), slog.String("error", rmErr.Error()))
		}
		return models.Annotation{}, err
	}

	s.metrics.IncCreated()
	s.metrics.ObserveSave(start)
	s.logger.Info("annotation created",
		slog.String("video_id", a.VideoID), slog.String("annotation_id", a.ID),
		slog.Int64("timestamp_ms", a.TimestampMs))
	s.notify(Event{Kind: EventCreated, VideoID: a.VideoID, AnnotationID: a.ID, Annotation: &a})
	return a, nil
}

func (s *Store) commitCreate(ctx context.Context, a models.Annotation, imagePath string, image []byte, thumbPath string, thumb []byte) error {
	if err := s.assets.Write(imagePath, image); err != nil {
		return fmt.Errorf("annotation: write image: %w", err)
	}
	if err := s.assets.Write(thumbPath, thumb); err != nil {
		return fmt.Errorf("annotation: write thumbnail: %w", err)
	}
	doc, err := s.backend.Load(ctx)
	if err != nil {
		return fmt.Errorf("annotation: load collection: %w", err)
	}
	doc.Annotations = append(doc.Annotations, a)
	if err := s.backend.Save(ctx, doc); err != nil {
		return fmt.Errorf("annotation: save collection: %w", err)
	}
	return nil
}

// CreateAnnotation adapts Create to the editor session's save hook.
func (s *Store) CreateAnnotation(ctx context.Context, videoID string, timestampMs int64, image []byte, notes string) (models.Annotation, error) {
	return s.Create(ctx, CreateInput{VideoID: videoID, TimestampMs: timestampMs, Image: image, Notes: notes})
}

func (s *Store) assetURL(rel string) string {
	return path.Join("/", s.urlPrefix, rel)
}

// List returns the annotations of videoID ordered by timestamp, ties in
// insertion order.
func (s *Store) List(ctx context.Context, videoID string) ([]models.Annotation, error) {
	doc, err := s.backend.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("annotation: load collection: %w", err)
	}
	out := make([]models.Annotation, 0)
	for _, a := range doc.Annotations {
		if a.VideoID == videoID {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TimestampMs < out[j].TimestampMs
	})
	return out, nil
}

// Get returns the annotation matching both videoID and id.
func (s *Store) Get(ctx context.Context, videoID, id string) (models.Annotation, error) {
	doc, err := s.backend.Load(ctx)
	if err != nil {
		return models.Annotation{}, fmt.Errorf("annotation: load collection: %w", err)
	}
	for _, a := range doc.Annotations {
		if a.VideoID == videoID && a.ID == id {
			return a, nil
		}
	}
	return models.Annotation{}, apperr.ErrNotFound
}

// Delete removes the record, then removes its assets. Asset removal is
// best effort: a failure is logged and never undoes the record deletion.
func (s *Store) Delete(ctx context.Context, videoID, id string) error {
	s.mu.Lock()
	doc, err := s.backend.Load(ctx)
	if err != nil {
		s.mu.Unlock()
		s.metrics.IncFailure("delete")
		return fmt.Errorf("annotation: load collection: %w", err)
	}
	idx := -1
	for i, a := range doc.Annotations {
		if a.VideoID == videoID && a.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return apperr.ErrNotFound
	}
	doc.Annotations = append(doc.Annotations[:idx], doc.Annotations[idx+1:]...)
	if err := s.backend.Save(ctx, doc); err != nil {
		s.mu.Unlock()
		s.metrics.IncFailure("delete")
		return fmt.Errorf("annotation: save collection: %w", err)
	}
	s.mu.Unlock()

	s.metrics.IncDeleted()
	s.logger.Info("annotation deleted", slog.String("video_id", videoID), slog.String("annotation_id", id))
	s.cleanupAssets(videoID, id)
	s.notify(Event{Kind: EventDeleted, VideoID: videoID, AnnotationID: id})
	return nil
}

func (s *Store) cleanupAssets(videoID, id string) {
	dir := storage.AnnotationDir(videoID, id)
	if err := s.assets.RemoveAll(dir); err != nil {
		s.metrics.IncCleanupFailure()
		err = fmt.Errorf("%w: %w", apperr.ErrFileCleanupFailed, err)
		s.logger.Warn("could not delete annotation files",
			slog.String("path", dir), slog.String("error", err.Error()))
	}
}

// Sweep removes asset directories that no record references, such as
// those left by a crash between the asset writes and the collection commit.
// It returns the number of directories removed.
func (s *Store) Sweep(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.backend.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("annotation: load collection: %w", err)
	}
	known := make(map[string]struct{}, len(doc.Annotations))
	for _, a := range doc.Annotations {
		known[storage.AnnotationDir(a.VideoID, a.ID)] = struct{}{}
	}
	dirs, err := s.assets.ListAssetDirs()
	if err != nil {
		return 0, fmt.Errorf("annotation: list assets: %w", err)
	}

	removed := 0
	var errs []error
	for _, d := range dirs {
		if _, ok := known[d.Path]; ok {
			continue
		}
		if err := s.assets.RemoveAll(d.Path); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
		s.logger.Info("removed orphan assets", slog.String("path", d.Path))
	}
	s.metrics.AddOrphansRemoved(removed)
	if len(errs) > 0 {
		return removed, fmt.Errorf("%w: %w", apperr.ErrFileCleanupFailed, errors.Join(errs...))
	}
	return removed, nil
}
