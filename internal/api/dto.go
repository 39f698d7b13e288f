package api

import (
	"github.com/starford/vidmark/internal/annotation"
	"github.com/starford/vidmark/internal/models"
	"github.com/starford/vidmark/internal/timeline"
)

// Error messages shared with clients.
const (
	msgMissingFields      = "Missing required fields: timestamp_ms and image file"
	msgAnnotationNotFound = "Annotation not found"
	msgVideoNotFound      = "Video not found"
	msgDeleted            = "Annotation deleted successfully"
)

// Annotation is the persisted annotation record.
type Annotation = models.Annotation

// Video is the persisted video record.
type Video = models.Video

// CreateVideoRequest is the request body for POST /videos.
type CreateVideoRequest = annotation.VideoInput

// DeleteResponse is returned after a successful delete.
type DeleteResponse struct {
	Message string `json:"message"`
	Deleted bool   `json:"deleted"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// TimelineResponse is the marker view of one video.
type TimelineResponse = timeline.View
