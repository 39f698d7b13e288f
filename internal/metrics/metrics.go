// Package metrics provides Prometheus collectors for the annotation store.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StoreMetrics tracks annotation persistence. A nil *StoreMetrics is valid
// and records nothing.
type StoreMetrics struct {
	Created          prometheus.Counter
	Deleted          prometheus.Counter
	Failures         *prometheus.CounterVec
	CleanupFailures  prometheus.Counter
	OrphansRemoved   prometheus.Counter
	SaveDuration     prometheus.Histogram
	ThumbnailSeconds prometheus.Histogram
}

// NewStoreMetrics creates the collectors and registers them with registry.
func NewStoreMetrics(registry prometheus.Registerer) (*StoreMetrics, error) {
	m := &StoreMetrics{
		Created: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vidmark_annotations_created_total",
			Help: "Total number of annotations created.",
		}),
		Deleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vidmark_annotations_deleted_total",
			Help: "Total number of annotations deleted.",
		}),
		Failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vidmark_store_failures_total",
			Help: "Total number of failed store operations by operation.",
		}, []string{"op"}),
		CleanupFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vidmark_asset_cleanup_failures_total",
			Help: "Total number of asset directories that could not be removed.",
		}),
		OrphansRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vidmark_orphan_assets_removed_total",
			Help: "Total number of unreferenced asset directories swept.",
		}),
		SaveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "vidmark_annotation_save_duration_seconds",
			Help:    "Duration of annotation creation including asset writes.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		ThumbnailSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "vidmark_thumbnail_duration_seconds",
			Help:    "Duration of thumbnail derivation.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
	}
	for _, c := range []prometheus.Collector{
		m.Created, m.Deleted, m.Failures, m.CleanupFailures,
		m.OrphansRemoved, m.SaveDuration, m.ThumbnailSeconds,
	} {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("metrics: register: %w", err)
		}
	}
	return m, nil
}

func (m *StoreMetrics) IncCreated() {
	if m != nil {
		m.Created.Inc()
	}
}

func (m *StoreMetrics) IncDeleted() {
	if m != nil {
		m.Deleted.Inc()
	}
}

// IncFailure counts a failed operation such as "create" or "delete".
func (m *StoreMetrics) IncFailure(op string) {
	if m != nil {
		m.Failures.WithLabelValues(op).Inc()
	}
}

func (m *StoreMetrics) IncCleanupFailure() {
	if m != nil {
		m.CleanupFailures.Inc()
	}
}

func (m *StoreMetrics) AddOrphansRemoved(n int) {
	if m != nil {
		m.OrphansRemoved.Add(float64(n))
	}
}

// ObserveSave records the time since start.
func (m *StoreMetrics) ObserveSave(start time.Time) {
	if m != nil {
		m.SaveDuration.Observe(time.Since(start).Seconds())
	}
}

// ObserveThumbnail records the time since start.
func (m *StoreMetrics) ObserveThumbnail(start time.Time) {
	if m != nil {
		m.ThumbnailSeconds.Observe(time.Since(start).Seconds())
	}
}

// Handler exposes the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
