package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// eventType returns the event: field of one encoded message.
func eventType(msg []byte) string {
	for _, line := range strings.Split(string(msg), "\n") {
		if t, ok := strings.CutPrefix(line, "event: "); ok {
			return t
		}
	}
	return ""
}

func drain(ch chan []byte) map[string]int {
	counts := map[string]int{}
	for {
		select {
		case msg := <-ch:
			counts[eventType(msg)]++
		default:
			return counts
		}
	}
}

func waitClients(t *testing.T, b *Broker, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for b.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("client count never reached %d", n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe("")
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
	if _, ok := <-ch; ok {
		t.Error("channel should be closed after unsubscribe")
	}
}

func TestPublishDelivery(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe("")
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: TypeCollectionChanged, Data: map[string]string{"path": "db.json"}})
	b.Publish(Event{Type: TypeCollectionChanged, Data: map[string]string{"path": "db.json"}})

	for i, wantID := range []string{"id: 1\n", "id: 2\n"} {
		select {
		case msg := <-ch:
			s := string(msg)
			if !strings.HasPrefix(s, wantID+"event: collection.changed\n") {
				t.Errorf("message %d = %q", i, s)
			}
			if !strings.Contains(s, `data: {"path":"db.json"}`) {
				t.Errorf("missing data in %q", s)
			}
			if !strings.HasSuffix(s, "\n\n") {
				t.Errorf("message not terminated: %q", s)
			}
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for message")
		}
	}
}

func TestPublishChange_TimelineThrottledPerVideo(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe("")
	defer b.Unsubscribe(ch)

	b.PublishChange("annotation.created", "v1", map[string]string{"id": "a"})
	b.PublishChange("annotation.deleted", "v1", map[string]string{"id": "a"})
	b.PublishChange("annotation.created", "v2", map[string]string{"id": "b"})

	time.Sleep(50 * time.Millisecond)
	counts := drain(ch)

	if counts["annotation.created"] != 2 || counts["annotation.deleted"] != 1 {
		t.Errorf("change events = %v", counts)
	}
	if counts[TypeTimelineUpdated] != 2 {
		t.Errorf("timeline events = %d, want 2 (one per video)", counts[TypeTimelineUpdated])
	}
}

func TestSubscribeFiltersByVideo(t *testing.T) {
	b := NewBroker(time.Millisecond)
	defer b.Close()
	all := b.Subscribe("")
	defer b.Unsubscribe(all)
	v1 := b.Subscribe("v1")
	defer b.Unsubscribe(v1)

	b.PublishChange("annotation.created", "v1", nil)
	b.PublishChange("annotation.created", "v2", nil)
	b.Publish(Event{Type: TypeCollectionChanged})

	time.Sleep(50 * time.Millisecond)
	gotAll, gotV1 := drain(all), drain(v1)

	if gotAll["annotation.created"] != 2 || gotAll[TypeTimelineUpdated] != 2 || gotAll[TypeCollectionChanged] != 1 {
		t.Errorf("unfiltered client = %v", gotAll)
	}
	if gotV1["annotation.created"] != 1 || gotV1[TypeTimelineUpdated] != 1 || gotV1[TypeCollectionChanged] != 1 {
		t.Errorf("v1 client = %v", gotV1)
	}
}

// syncRecorder is an httptest.ResponseRecorder safe to read while the
// handler is still writing.
type syncRecorder struct {
	mu sync.Mutex
	*httptest.ResponseRecorder
}

func (r *syncRecorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ResponseRecorder.Write(p)
}

func (r *syncRecorder) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ResponseRecorder.Flush()
}

func (r *syncRecorder) body() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Body.String()
}

func serve(t *testing.T, b *Broker, target string) (*syncRecorder, func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, target, nil).WithContext(ctx)
	w := &syncRecorder{ResponseRecorder: httptest.NewRecorder()}

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()
	return w, func() {
		cancel()
		<-done
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	w, stop := serve(t, b, "/api/events?videoId=v1")
	waitClients(t, b, 1)

	b.PublishChange("annotation.created", "v1", map[string]string{"id": "x"})
	b.PublishChange("annotation.created", "v2", map[string]string{"id": "y"})
	time.Sleep(50 * time.Millisecond)
	stop()

	body := w.body()
	if !strings.Contains(body, "event: annotation.created") || !strings.Contains(body, "event: timeline.updated") {
		t.Errorf("handler output missing events: %q", body)
	}
	if strings.Contains(body, `"id":"y"`) {
		t.Errorf("handler leaked another video's event: %q", body)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}

	waitClients(t, b, 0)
}

func TestSSEHandlerHeartbeat(t *testing.T) {
	b := NewBroker(time.Second, WithHeartbeat(20*time.Millisecond))
	defer b.Close()

	w, stop := serve(t, b, "/api/events")
	waitClients(t, b, 1)
	time.Sleep(100 * time.Millisecond)
	stop()

	if !strings.Contains(w.body(), ": ping\n\n") {
		t.Errorf("no heartbeat in %q", w.body())
	}
}

func TestSSEHandlerEndsOnClose(t *testing.T) {
	b := NewBroker(time.Second)
	_, stop := serve(t, b, "/api/events")
	waitClients(t, b, 1)

	b.Close()
	stop()
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe("")
	defer b.Unsubscribe(ch)

	for i := 0; i < 100; i++ {
		b.Publish(Event{Type: "test", Data: i})
	}
	if n := b.ClientCount(); n != 1 {
		t.Errorf("clients = %d", n)
	}
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe("")
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}
	if late := b.Subscribe("v1"); late != nil {
		if _, ok := <-late; ok {
			t.Error("subscribe after close should return a closed channel")
		}
	}

	b.Publish(Event{Type: "x"})
	b.PublishChange("annotation.deleted", "v1", nil)
	b.Close()
}

func TestSubscriptionWants(t *testing.T) {
	tests := []struct {
		sub, event string
		want       bool
	}{
		{"", "", true},
		{"", "v1", true},
		{"v1", "", true},
		{"v1", "v1", true},
		{"v1", "v2", false},
	}
	for _, tt := range tests {
		got := subscription{videoID: tt.sub}.wants(Event{VideoID: tt.event})
		if got != tt.want {
			t.Errorf("subscription %q, event %q: got %v, want %v", tt.sub, tt.event, got, tt.want)
		}
	}
}
