package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes. It is mounted at /api.
// events, if non-nil, is served at GET /events.
func NewRouter(svc Service, maxUpload int64, events http.Handler) chi.Router {
	h := NewHandler(svc, maxUpload)

	r := chi.NewRouter()

	r.Get("/health", h.Health)

	// Videos.
	r.Get("/videos", h.ListVideos)
	r.Post("/videos", h.CreateVideo)
	r.Get("/videos/{videoId}", h.GetVideo)

	// Annotations.
	r.Route("/videos/{videoId}/annotations", func(r chi.Router) {
		r.Get("/", h.ListAnnotations)
		r.Post("/", h.CreateAnnotation)
		r.Get("/{id}", h.GetAnnotation)
		r.Delete("/{id}", h.DeleteAnnotation)
	})

	// Timeline markers.
	r.Get("/videos/{videoId}/timeline", h.Timeline)

	if events != nil {
		r.Get("/events", events.ServeHTTP)
	}

	return r
}
