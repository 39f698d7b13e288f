package internal

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/vidmark/internal/annotation"
	"github.com/starford/vidmark/internal/api"
	"github.com/starford/vidmark/internal/collection"
	"github.com/starford/vidmark/internal/thumbnail"
)

// Config represents the application configuration.
type Config struct {
	App        ApplicationConfig `yaml:"app"`
	Storage    StorageConfig     `yaml:"storage"`
	Collection CollectionConfig  `yaml:"collection"`
	Upload     UploadConfig      `yaml:"upload"`
	Thumbnail  ThumbnailConfig   `yaml:"thumbnail"`
	Events     EventsConfig      `yaml:"events"`
	Metrics    MetricsConfig     `yaml:"metrics"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for _, v := range []validation.Validatable{
		&c.App, &c.Storage, &c.Collection, &c.Upload, &c.Thumbnail, &c.Events, &c.Metrics,
	} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
	// CORSOrigin is sent as Access-Control-Allow-Origin. Empty disables CORS.
	CORSOrigin string `yaml:"cors_origin"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// StorageConfig locates the annotation image assets.
type StorageConfig struct {
	Path      string `yaml:"path"`
	URLPrefix string `yaml:"url_prefix"`
}

// Validate validates the storage configuration.
func (c *StorageConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.URLPrefix, validation.Required,
			validation.By(func(any) error {
				if !strings.HasPrefix(c.URLPrefix, "/") || c.URLPrefix == "/" || strings.HasPrefix(c.URLPrefix, "/api") {
					return fmt.Errorf("must start with / and not collide with / or /api")
				}
				return nil
			})),
	)
}

// CollectionConfig selects the durable collection backend.
type CollectionConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

// Validate validates the collection configuration.
func (c *CollectionConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Driver, validation.Required, validation.In(collection.DriverJSON, collection.DriverSQLite)),
		validation.Field(&c.Path, validation.Required),
	)
}

// UploadConfig bounds multipart uploads.
type UploadConfig struct {
	MaxBytes int64 `yaml:"max_bytes"`
}

// Validate validates the upload configuration.
func (c *UploadConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxBytes, validation.Required, validation.Min(int64(1024))),
	)
}

// ThumbnailConfig is the thumbnail bounding box.
type ThumbnailConfig struct {
	MaxWidth  int `yaml:"max_width"`
	MaxHeight int `yaml:"max_height"`
}

// Validate validates the thumbnail configuration.
func (c *ThumbnailConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxWidth, validation.Required, validation.Min(1), validation.Max(4096)),
		validation.Field(&c.MaxHeight, validation.Required, validation.Min(1), validation.Max(4096)),
	)
}

// EventsConfig tunes the SSE stream.
type EventsConfig struct {
	TimelineThrottle time.Duration `yaml:"timeline_throttle"`
}

// Validate validates the events configuration.
func (c *EventsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.TimelineThrottle, validation.Min(time.Duration(0))),
	)
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Validate validates the metrics configuration.
func (c *MetricsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.When(c.Enabled, validation.Required,
			validation.By(func(any) error {
				if !strings.HasPrefix(c.Path, "/") {
					return fmt.Errorf("must start with /")
				}
				return nil
			}))),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Storage: StorageConfig{
			Path:      "./storage",
			URLPrefix: annotation.DefaultURLPrefix,
		},
		Collection: CollectionConfig{
			Driver: collection.DriverJSON,
			Path:   "./data/db.json",
		},
		Upload: UploadConfig{
			MaxBytes: api.DefaultMaxUpload,
		},
		Thumbnail: ThumbnailConfig{
			MaxWidth:  thumbnail.DefaultMaxWidth,
			MaxHeight: thumbnail.DefaultMaxHeight,
		},
		Events: EventsConfig{
			TimelineThrottle: 2 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}
