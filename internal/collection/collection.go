// Package collection persists the whole annotation document: every video
// and every annotation, read and written as one unit.
package collection

import (
	"context"
	"fmt"

	"github.com/starford/vidmark/internal/models"
)

// Driver names accepted by Open.
const (
	DriverJSON   = "json"
	DriverSQLite = "sqlite"
)

// Document is the durable state. Slice order is insertion order.
type Document struct {
	Videos      []models.Video      `json:"videos"`
	Annotations []models.Annotation `json:"annotations"`
}

// Empty returns a document with non-nil, empty collections.
func Empty() *Document {
	return &Document{Videos: []models.Video{}, Annotations: []models.Annotation{}}
}

// Backend reads and writes a whole Document. Save replaces everything
// previously stored.
type Backend interface {
	Load(ctx context.Context) (*Document, error)
	Save(ctx context.Context, doc *Document) error
	Close() error
}

// Open returns the backend for driver at path.
func Open(driver, path string) (Backend, error) {
	switch driver {
	case DriverJSON, "":
		return NewJSONFile(path)
	case DriverSQLite:
		return OpenSQLite(path)
	default:
		return nil, fmt.Errorf("collection: unknown driver %q", driver)
	}
}

func normalize(doc *Document) *Document {
	if doc.Videos == nil {
		doc.Videos = []models.Video{}
	}
	if doc.Annotations == nil {
		doc.Annotations = []models.Annotation{}
	}
	return doc
}
