// Package models defines the domain types for vidmark.
package models

import "time"

// Annotation is one saved, drawn-on frame of a video.
type Annotation struct {
	ID          string    `json:"id"`
	VideoID     string    `json:"videoId"`
	TimestampMs int64     `json:"timestamp_ms"`
	Timecode    string    `json:"timecode"`
	ImagePath   string    `json:"image_path"`
	ThumbPath   string    `json:"thumb_path"`
	Notes       string    `json:"notes"`
	CreatedAt   time.Time `json:"created_at"`
}

// Video is a playable source that annotations point at.
type Video struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	URL        string    `json:"url"`
	DurationMs int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// AssetDir is a per-annotation asset directory found in storage.
type AssetDir struct {
	VideoID      string
	AnnotationID string
	Path         string // relative to the storage root
}
