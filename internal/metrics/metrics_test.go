package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestStoreMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewStoreMetrics(reg)
	if err != nil {
		t.Fatal(err)
	}
	m.IncCreated()
	m.IncCreated()
	m.IncFailure("create")
	m.AddOrphansRemoved(3)
	m.ObserveSave(time.Now())

	if got := testutil.ToFloat64(m.Created); got != 2 {
		t.Errorf("created = %v", got)
	}
	if got := testutil.ToFloat64(m.Failures.WithLabelValues("create")); got != 1 {
		t.Errorf("failures = %v", got)
	}
	if got := testutil.ToFloat64(m.OrphansRemoved); got != 3 {
		t.Errorf("orphans = %v", got)
	}

	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(w.Body.String(), "vidmark_annotations_created_total 2") {
		t.Errorf("exposition missing counter:\n%s", w.Body.String())
	}
}

func TestDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewStoreMetrics(reg); err != nil {
		t.Fatal(err)
	}
	if _, err := NewStoreMetrics(reg); err == nil {
		t.Fatal("expected duplicate registration error")
	}
}

func TestNilSafe(t *testing.T) {
	var m *StoreMetrics
	m.IncCreated()
	m.IncDeleted()
	m.IncFailure("x")
	m.IncCleanupFailure()
	m.AddOrphansRemoved(1)
	m.ObserveSave(time.Now())
	m.ObserveThumbnail(time.Now())
}
