package collection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/starford/vidmark/internal/storage"
)

// JSONFile keeps the document in a single JSON file, rewritten atomically
// on every Save.
type JSONFile struct {
	path string
}

// NewJSONFile returns a backend for path, creating its parent directory.
// The file itself is created on first Save.
func NewJSONFile(path string) (*JSONFile, error) {
	if path == "" {
		return nil, errors.New("collection: empty json path")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("collection: resolve path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, fmt.Errorf("collection: mkdir: %w", err)
	}
	return &JSONFile{path: abs}, nil
}

// Path returns the absolute file path.
func (j *JSONFile) Path() string {
	return j.path
}

// Load reads the file. A missing file is an empty document.
func (j *JSONFile) Load(_ context.Context) (*Document, error) {
	data, err := os.ReadFile(j.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Empty(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("collection: read %s: %w", j.path, err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("collection: decode %s: %w", j.path, err)
	}
	return normalize(&doc), nil
}

func (j *JSONFile) Save(_ context.Context, doc *Document) error {
	data, err := json.MarshalIndent(normalize(doc), "", "  ")
	if err != nil {
		return fmt.Errorf("collection: encode: %w", err)
	}
	if err := storage.WriteFileAtomic(j.path, append(data, '\n')); err != nil {
		return fmt.Errorf("collection: write %s: %w", j.path, err)
	}
	return nil
}

func (j *JSONFile) Close() error { return nil }
