// Package client is a Go client for the vidmark annotation API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/starford/vidmark/internal/apperr"
	"github.com/starford/vidmark/internal/models"
)

// ImageFileName is the file name sent with the multipart image field.
const ImageFileName = "annotation.png"

// StatusError is a non-2xx response that maps to no apperr sentinel.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("client: status %d: %s", e.Code, e.Message)
}

// Client talks to the API mounted at a base URL such as http://host:8080/api.
type Client struct {
	base string
	http *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New returns a Client for baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Health reports whether the server answers its health probe.
func (c *Client) Health(ctx context.Context) error {
	var body struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodGet, "/health", nil, "", &body); err != nil {
		return err
	}
	if body.Status != "ok" {
		return fmt.Errorf("client: health status %q", body.Status)
	}
	return nil
}

// CreateAnnotation uploads an exported image. It satisfies session.Saver.
func (c *Client) CreateAnnotation(ctx context.Context, videoID string, timestampMs int64, image []byte, notes string) (models.Annotation, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("timestamp_ms", strconv.FormatInt(timestampMs, 10)); err != nil {
		return models.Annotation{}, err
	}
	if notes != "" {
		if err := mw.WriteField("notes", notes); err != nil {
			return models.Annotation{}, err
		}
	}
	fw, err := mw.CreateFormFile("image", ImageFileName)
	if err != nil {
		return models.Annotation{}, err
	}
	if _, err := fw.Write(image); err != nil {
		return models.Annotation{}, err
	}
	if err := mw.Close(); err != nil {
		return models.Annotation{}, err
	}

	var a models.Annotation
	err = c.do(ctx, http.MethodPost, annotationsPath(videoID), &buf, mw.FormDataContentType(), &a)
	return a, err
}

// ListAnnotations returns the annotations of videoID ordered by timestamp.
func (c *Client) ListAnnotations(ctx context.Context, videoID string) ([]models.Annotation, error) {
	var list []models.Annotation
	if err := c.do(ctx, http.MethodGet, annotationsPath(videoID), nil, "", &list); err != nil {
		return nil, err
	}
	if list == nil {
		list = []models.Annotation{}
	}
	return list, nil
}

// GetAnnotation returns one annotation.
func (c *Client) GetAnnotation(ctx context.Context, videoID, id string) (models.Annotation, error) {
	var a models.Annotation
	err := c.do(ctx, http.MethodGet, annotationsPath(videoID)+"/"+url.PathEscape(id), nil, "", &a)
	return a, err
}

// DeleteAnnotation removes one annotation.
func (c *Client) DeleteAnnotation(ctx context.Context, videoID, id string) error {
	var body struct {
		Deleted bool `json:"deleted"`
	}
	if err := c.do(ctx, http.MethodDelete, annotationsPath(videoID)+"/"+url.PathEscape(id), nil, "", &body); err != nil {
		return err
	}
	if !body.Deleted {
		return fmt.Errorf("client: delete %s not acknowledged", id)
	}
	return nil
}

func annotationsPath(videoID string) string {
	return "/videos/" + url.PathEscape(videoID) + "/annotations"
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("client: build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusErr(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: decode %s %s: %w", method, path, err)
	}
	return nil
}

func statusErr(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	msg := strings.TrimSpace(string(raw))
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		msg = body.Error
	}
	switch resp.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", apperr.ErrNotFound, msg)
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", apperr.ErrInvalidInput, msg)
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", apperr.ErrAlreadyExists, msg)
	}
	return &StatusError{Code: resp.StatusCode, Message: msg}
}
