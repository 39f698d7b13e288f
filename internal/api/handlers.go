package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/vidmark/internal/annotation"
	"github.com/starford/vidmark/internal/apperr"
	"github.com/starford/vidmark/internal/checksum"
	"github.com/starford/vidmark/internal/models"
	"github.com/starford/vidmark/internal/timeline"
)

// DefaultMaxUpload bounds multipart bodies when no limit is configured.
const DefaultMaxUpload = 10 << 20

// Service is the store surface the handlers need.
type Service interface {
	Create(ctx context.Context, in annotation.CreateInput) (models.Annotation, error)
	List(ctx context.Context, videoID string) ([]models.Annotation, error)
	Get(ctx context.Context, videoID, id string) (models.Annotation, error)
	Delete(ctx context.Context, videoID, id string) error
	CreateVideo(ctx context.Context, in annotation.VideoInput) (models.Video, error)
	ListVideos(ctx context.Context) ([]models.Video, error)
	GetVideo(ctx context.Context, id string) (models.Video, error)
}

// Handler holds API route handlers.
type Handler struct {
	svc       Service
	maxUpload int64
}

// NewHandler creates a new Handler. maxUpload <= 0 selects DefaultMaxUpload.
func NewHandler(svc Service, maxUpload int64) *Handler {
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUpload
	}
	return &Handler{svc: svc, maxUpload: maxUpload}
}

// Health handles GET /api/health.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// CreateAnnotation handles POST /api/videos/{videoId}/annotations.
//
// Multipart fields: timestamp_ms (required integer), notes (optional),
// image (required file).
func (h *Handler) CreateAnnotation(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "videoId")
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)

	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeError(w, http.StatusBadRequest, "image exceeds upload limit")
		case errors.Is(err, http.ErrNotMultipart):
			writeError(w, http.StatusBadRequest, msgMissingFields)
		default:
			writeError(w, http.StatusBadRequest, "invalid multipart body")
		}
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck // temp files only

	rawTS := strings.TrimSpace(r.FormValue("timestamp_ms"))
	image, err := readFormFile(r, "image")
	if rawTS == "" || err != nil || len(image) == 0 {
		writeError(w, http.StatusBadRequest, msgMissingFields)
		return
	}
	ts, err := strconv.ParseInt(rawTS, 10, 64)
	if err != nil || ts < 0 {
		writeError(w, http.StatusBadRequest, "timestamp_ms must be a non-negative integer")
		return
	}

	a, err := h.svc.Create(r.Context(), annotation.CreateInput{
		VideoID:     videoID,
		TimestampMs: ts,
		Image:       image,
		Notes:       r.FormValue("notes"),
	})
	if err != nil {
		if errors.Is(err, apperr.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		slog.Error("create annotation failed", slog.String("video_id", videoID), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "Failed to create annotation")
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func readFormFile(r *http.Request, field string) ([]byte, error) {
	f, _, err := r.FormFile(field)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// ListAnnotations handles GET /api/videos/{videoId}/annotations.
func (h *Handler) ListAnnotations(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "videoId")
	list, err := h.svc.List(r.Context(), videoID)
	if err != nil {
		slog.Error("list annotations failed", slog.String("video_id", videoID), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "Failed to fetch annotations")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// GetAnnotation handles GET /api/videos/{videoId}/annotations/{id}.
// Records are immutable, so the ETag is a digest of the encoded record.
func (h *Handler) GetAnnotation(w http.ResponseWriter, r *http.Request) {
	videoID, id := chi.URLParam(r, "videoId"), chi.URLParam(r, "id")
	a, err := h.svc.Get(r.Context(), videoID, id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeError(w, http.StatusNotFound, msgAnnotationNotFound)
		} else {
			slog.Error("get annotation failed", slog.String("annotation_id", id), slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "Failed to fetch annotation")
		}
		return
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(a); err != nil {
		slog.Error("encode annotation failed", slog.String("annotation_id", id), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "Failed to fetch annotation")
		return
	}
	etag := checksum.ETag(buf.Bytes())
	w.Header().Set("ETag", etag)
	if checksum.Matches(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// DeleteAnnotation handles DELETE /api/videos/{videoId}/annotations/{id}.
func (h *Handler) DeleteAnnotation(w http.ResponseWriter, r *http.Request) {
	videoID, id := chi.URLParam(r, "videoId"), chi.URLParam(r, "id")
	if err := h.svc.Delete(r.Context(), videoID, id); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeError(w, http.StatusNotFound, msgAnnotationNotFound)
		} else {
			slog.Error("delete annotation failed", slog.String("annotation_id", id), slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "Failed to delete annotation")
		}
		return
	}
	writeJSON(w, http.StatusOK, DeleteResponse{Message: msgDeleted, Deleted: true})
}

// ListVideos handles GET /api/videos.
func (h *Handler) ListVideos(w http.ResponseWriter, r *http.Request) {
	videos, err := h.svc.ListVideos(r.Context())
	if err != nil {
		slog.Error("list videos failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, videos)
}

// CreateVideo handles POST /api/videos.
func (h *Handler) CreateVideo(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req CreateVideoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	v, err := h.svc.CreateVideo(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, apperr.ErrAlreadyExists):
			writeError(w, http.StatusConflict, "video already exists")
		default:
			slog.Error("create video failed", slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

// GetVideo handles GET /api/videos/{videoId}.
func (h *Handler) GetVideo(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "videoId")
	v, err := h.svc.GetVideo(r.Context(), videoID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeError(w, http.StatusNotFound, msgVideoNotFound)
		} else {
			slog.Error("get video failed", slog.String("video_id", videoID), slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// Timeline handles GET /api/videos/{videoId}/timeline?current=&duration=.
// Both parameters are seconds; duration defaults to the stored video's length.
func (h *Handler) Timeline(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "videoId")
	q := r.URL.Query()

	current, err := floatParam(q.Get("current"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "current must be a number")
		return
	}
	duration, err := floatParam(q.Get("duration"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "duration must be a number")
		return
	}
	if q.Get("duration") == "" {
		v, err := h.svc.GetVideo(r.Context(), videoID)
		switch {
		case err == nil:
			duration = float64(v.DurationMs) / 1000
		case !errors.Is(err, apperr.ErrNotFound):
			slog.Error("timeline video lookup failed", slog.String("video_id", videoID), slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
	}

	list, err := h.svc.List(r.Context(), videoID)
	if err != nil {
		slog.Error("timeline list failed", slog.String("video_id", videoID), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, timeline.Build(list, current, duration))
}

// floatParam parses an optional query value. ParseFloat accepts "NaN" and
// "Inf", which JSON cannot encode, so those are rejected here.
func floatParam(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q is not a finite number", apperr.ErrInvalidInput, s)
	}
	return v, nil
}
