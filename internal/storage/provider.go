// Package storage defines the asset file-system abstraction.
package storage

import (
	"path"

	"github.com/starford/vidmark/internal/models"
)

// Fixed asset names inside an annotation directory.
const (
	ImageName = "image"
	ThumbName = "thumb"
)

// Provider is the interface for annotation asset operations.
// All paths are slash-separated and relative to the storage root.
type Provider interface {
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path, creating parent directories.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
	// RemoveAll removes dir and everything below it. Missing dirs are not an error.
	RemoveAll(dir string) error
	// ListAssetDirs returns every videos/{videoId}/annotations/{id} directory.
	ListAssetDirs() ([]models.AssetDir, error)
}

// AnnotationDir returns the asset directory for one annotation.
func AnnotationDir(videoID, annotationID string) string {
	return path.Join("videos", videoID, "annotations", annotationID)
}

// AssetPath returns the path of a named asset (ImageName or ThumbName) with extension ext.
func AssetPath(videoID, annotationID, name, ext string) string {
	return path.Join(AnnotationDir(videoID, annotationID), name+"."+ext)
}
