package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/starford/vidmark/internal/annotation"
	"github.com/starford/vidmark/internal/apperr"
	"github.com/starford/vidmark/internal/mcpserver"
	"github.com/starford/vidmark/internal/storage"
	"github.com/starford/vidmark/internal/thumbnail"
)

// Seed inserts the sample video unless it is already present.
func Seed(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := app.logger()

	store, backend, err := app.openStore(logger)
	if err != nil {
		return err
	}
	defer backend.Close()

	v, err := store.CreateVideo(ctx, annotation.SampleVideo)
	switch {
	case errors.Is(err, apperr.ErrAlreadyExists):
		logger.Info("sample video already present", slog.String("video_id", annotation.SampleVideo.ID))
		return nil
	case err != nil:
		return fmt.Errorf("seed: %w", err)
	}
	logger.Info("sample video added", slog.String("video_id", v.ID), slog.String("title", v.Title))
	return nil
}

// ServeMCP serves the MCP tools on stdin/stdout until the client disconnects.
func ServeMCP(_ context.Context, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	logger := app.logger()

	store, backend, err := app.openStore(logger)
	if err != nil {
		return err
	}
	defer backend.Close()

	logger.Info("MCP server starting", slog.String("version", app.version))
	return mcpserver.New(store, app.version).ServeStdio()
}

// MakeThumbnail derives a thumbnail of the image at in using the configured
// bounding box and writes it atomically to out.
func MakeThumbnail(in, out string, opts ...Option) (*thumbnail.Result, error) {
	app, err := newApplication(opts)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(in)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", in, err)
	}
	cfg := app.config.Thumbnail
	res, err := thumbnail.New(cfg.MaxWidth, cfg.MaxHeight).Derive(data)
	if err != nil {
		return nil, err
	}
	if err := storage.WriteFileAtomic(out, res.Data); err != nil {
		return nil, fmt.Errorf("write %s: %w", out, err)
	}
	return res, nil
}
