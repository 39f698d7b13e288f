// Package apperr defines the sentinel errors shared across vidmark layers.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidInput  = errors.New("invalid input")

	// Frame capture.
	ErrCaptureNotReady       = errors.New("capture not ready")
	ErrCaptureEncodingFailed = errors.New("capture encoding failed")

	// Persistence.
	ErrThumbnailEncodingFailed = errors.New("thumbnail encoding failed")
	ErrFileCleanupFailed       = errors.New("file cleanup failed")

	// Editing session.
	ErrSaveInFlight   = errors.New("save already in flight")
	ErrEditInProgress = errors.New("edit in progress")
	ErrClosed         = errors.New("editor closed")
)
