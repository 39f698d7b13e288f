// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the vidmark annotation store for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/vidmark/internal/annotation"
	"github.com/starford/vidmark/internal/apperr"
	"github.com/starford/vidmark/internal/models"
	"github.com/starford/vidmark/internal/timeline"
)

const formatURI = "vidmark://annotation-format"

// Store is the annotation store surface the tools use.
type Store interface {
	Create(ctx context.Context, in annotation.CreateInput) (models.Annotation, error)
	List(ctx context.Context, videoID string) ([]models.Annotation, error)
	Get(ctx context.Context, videoID, id string) (models.Annotation, error)
	Delete(ctx context.Context, videoID, id string) error
	ListVideos(ctx context.Context) ([]models.Video, error)
	GetVideo(ctx context.Context, id string) (models.Video, error)
}

// Server wraps the MCP server with vidmark tools.
type Server struct {
	mcp   *server.MCPServer
	store Store
}

// New creates a new MCP server with all tools registered.
func New(store Store, version string) *Server {
	s := &Server{store: store}

	s.mcp = server.NewMCPServer(
		"vidmark",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_videos",
		mcp.WithDescription("List the registered videos."),
	), s.listVideos)

	s.mcp.AddTool(mcp.NewTool("list_annotations",
		mcp.WithDescription("List the annotations of a video ordered by timestamp."),
		mcp.WithString("video_id", mcp.Required(), mcp.Description("Video ID")),
	), s.listAnnotations)

	s.mcp.AddTool(mcp.NewTool("get_annotation",
		mcp.WithDescription("Read one annotation record."),
		mcp.WithString("video_id", mcp.Required(), mcp.Description("Video ID")),
		mcp.WithString("id", mcp.Required(), mcp.Description("Annotation ID")),
	), s.getAnnotation)

	s.mcp.AddTool(mcp.NewTool("create_annotation",
		mcp.WithDescription("Save an annotated frame. Read the record format first via "+
			"the get_annotation_format tool or the "+formatURI+" resource."),
		mcp.WithString("video_id", mcp.Required(), mcp.Description("Video ID")),
		mcp.WithNumber("timestamp_ms", mcp.Required(), mcp.Description("Frame position in milliseconds")),
		mcp.WithString("image", mcp.Required(), mcp.Description("Base64 data URI of a PNG, JPEG or GIF image")),
		mcp.WithString("notes", mcp.Description("Optional free-text notes")),
	), s.createAnnotation)

	s.mcp.AddTool(mcp.NewTool("delete_annotation",
		mcp.WithDescription("Delete an annotation and its image files."),
		mcp.WithString("video_id", mcp.Required(), mcp.Description("Video ID")),
		mcp.WithString("id", mcp.Required(), mcp.Description("Annotation ID")),
	), s.deleteAnnotation)

	s.mcp.AddTool(mcp.NewTool("timeline",
		mcp.WithDescription("Timeline markers of a video as fractions of its duration."),
		mcp.WithString("video_id", mcp.Required(), mcp.Description("Video ID")),
		mcp.WithNumber("current", mcp.Description("Current playback position in seconds")),
		mcp.WithNumber("duration", mcp.Description("Duration in seconds; defaults to the stored video duration")),
	), s.timeline)

	s.mcp.AddTool(mcp.NewTool("get_annotation_format",
		mcp.WithDescription("Returns the annotation record format."),
	), s.getFormat)

	s.mcp.AddResource(
		mcp.NewResource(formatURI, "Annotation Record Format",
			mcp.WithResourceDescription("Fields and ordering rules of annotation records."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listVideos(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	videos, err := s.store.ListVideos(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(videos)
}

func (s *Server) listAnnotations(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	videoID, err := req.RequireString("video_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	list, err := s.store.List(ctx, videoID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(list)
}

func (s *Server) getAnnotation(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	videoID, err := req.RequireString("video_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	a, err := s.store.Get(ctx, videoID, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s/%s", videoID, id)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(a)
}

func (s *Server) createAnnotation(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	videoID, err := req.RequireString("video_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ts, err := req.RequireFloat("timestamp_ms")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if ts < 0 || ts != math.Trunc(ts) {
		return mcp.NewToolResultError("timestamp_ms must be a non-negative integer"), nil
	}
	uri, err := req.RequireString("image")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	image, err := decodeDataURI(uri)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	a, err := s.store.Create(ctx, annotation.CreateInput{
		VideoID:     videoID,
		TimestampMs: int64(ts),
		Image:       image,
		Notes:       req.GetString("notes", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(a)
}

func (s *Server) deleteAnnotation(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	videoID, err := req.RequireString("video_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.store.Delete(ctx, videoID, id); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("not found: %s/%s", videoID, id)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %s", id)), nil
}

func (s *Server) timeline(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	videoID, err := req.RequireString("video_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	current := req.GetFloat("current", 0)
	duration := req.GetFloat("duration", 0)
	if duration <= 0 {
		v, err := s.store.GetVideo(ctx, videoID)
		switch {
		case err == nil:
			duration = float64(v.DurationMs) / 1000
		case !errors.Is(err, apperr.ErrNotFound):
			return mcp.NewToolResultError(err.Error()), nil
		}
	}
	list, err := s.store.List(ctx, videoID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(timeline.Build(list, current, duration))
}

func (s *Server) getFormat(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(RecordFormat), nil
}

func (s *Server) readFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      formatURI,
			MIMEType: "text/markdown",
			Text:     RecordFormat,
		},
	}, nil
}
