// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/starford/vidmark/internal/annotation"
	"github.com/starford/vidmark/internal/api"
	"github.com/starford/vidmark/internal/collection"
	"github.com/starford/vidmark/internal/metrics"
	"github.com/starford/vidmark/internal/sse"
	"github.com/starford/vidmark/internal/storage"
	"github.com/starford/vidmark/internal/thumbnail"
	"github.com/starford/vidmark/internal/watch"
)

func newApplication(opts []Option) (*application, error) {
	app := &application{version: "dev", logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// logger installs the structured JSON logger as the default.
func (a *application) logger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(a.logOutput, &slog.HandlerOptions{
		Level: a.config.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// openStore opens the collection backend and asset storage and returns the
// record store over them. The caller closes the backend.
func (a *application) openStore(logger *slog.Logger, extra ...annotation.Option) (*annotation.Store, collection.Backend, error) {
	cfg := a.config

	if err := os.MkdirAll(cfg.Storage.Path, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create storage dir: %w", err)
	}
	assets, err := storage.NewFS(cfg.Storage.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("init storage: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Collection.Path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create collection dir: %w", err)
	}
	backend, err := collection.Open(cfg.Collection.Driver, cfg.Collection.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("init collection: %w", err)
	}

	opts := []annotation.Option{
		annotation.WithLogger(logger),
		annotation.WithURLPrefix(cfg.Storage.URLPrefix),
		annotation.WithThumbnailer(thumbnail.New(cfg.Thumbnail.MaxWidth, cfg.Thumbnail.MaxHeight)),
	}
	return annotation.New(backend, assets, append(opts, extra...)...), backend, nil
}

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.logger()

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("storage_path", cfg.Storage.Path),
		slog.String("collection_driver", cfg.Collection.Driver),
		slog.String("collection_path", cfg.Collection.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Metrics.
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	storeMetrics, err := metrics.NewStoreMetrics(registry)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	// SSE broker.
	broker := sse.NewBroker(cfg.Events.TimelineThrottle)
	defer broker.Close()

	store, backend, err := app.openStore(logger,
		annotation.WithMetrics(storeMetrics),
		annotation.WithNotify(func(ev annotation.Event) {
			broker.PublishChange(ev.Kind, ev.VideoID, ev)
		}),
	)
	if err != nil {
		return err
	}
	defer backend.Close()

	// Remove assets left behind by a crash between file writes and commit.
	if n, err := store.Sweep(ctx); err != nil {
		logger.Warn("orphan sweep failed", slog.String("error", err.Error()))
	} else if n > 0 {
		logger.Info("orphan sweep", slog.Int("removed", n))
	}

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(api.CORS(cfg.App.HTTP.CORSOrigin))

	// Health check endpoints.
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := backend.Load(req.Context()); err != nil {
			logger.Error("readiness check failed", slog.String("error", err.Error()))
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api, stored images under the URL prefix.
	r.Mount("/api", api.NewRouter(store, cfg.Upload.MaxBytes, broker))
	r.Handle(cfg.Storage.URLPrefix+"/*",
		http.StripPrefix(cfg.Storage.URLPrefix, api.NewAssetHandler(cfg.Storage.Path)))

	if cfg.Metrics.Enabled {
		r.Handle(cfg.Metrics.Path, metrics.Handler(registry))
	}

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// The SQLite backend is only written through the store, which already
	// publishes its own changes; the JSON file can also be edited by hand.
	if jf, ok := backend.(*collection.JSONFile); ok {
		g.Go(func() error {
			err := watch.Collection(gCtx, jf.Path(), watch.DefaultDebounce, logger, func() {
				broker.Publish(sse.Event{Type: sse.TypeCollectionChanged, Data: map[string]string{"path": jf.Path()}})
			})
			if err != nil {
				logger.Warn("collection watcher stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		// Streams never end on their own; close them before draining.
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group so the watcher stops with the server.
var errShutdown = errors.New("shutdown")
