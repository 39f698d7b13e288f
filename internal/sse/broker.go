// Package sse streams store changes to browsers as Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Event types emitted by the broker.
const (
	TypeTimelineUpdated   = "timeline.updated"
	TypeCollectionChanged = "collection.changed"
)

// DefaultHeartbeat is the interval of keep-alive comments on idle streams.
const DefaultHeartbeat = 25 * time.Second

// Event is one message on the stream. An event with a VideoID only reaches
// clients watching that video or all videos.
type Event struct {
	Type    string `json:"type"`
	VideoID string `json:"-"`
	Data    any    `json:"data"`
}

type subscription struct {
	ch      chan []byte
	videoID string
}

// wants reports whether the subscriber should see e.
func (s subscription) wants(e Event) bool {
	return s.videoID == "" || e.VideoID == "" || s.videoID == e.VideoID
}

// message is one request to the loop. A change also schedules a throttled
// timeline.updated for its video.
type message struct {
	event  Event
	change bool
}

// Broker fans events out to connected clients.
//
// One goroutine owns the client set, the event sequence and the per-video
// timeline throttle; public methods talk to it over channels.
type Broker struct {
	timelineMin time.Duration
	heartbeat   time.Duration

	join  chan subscription
	leave chan chan []byte
	inbox chan message
	count chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// Option configures a Broker.
type Option func(*Broker)

// WithHeartbeat sets the keep-alive interval of ServeHTTP streams.
func WithHeartbeat(d time.Duration) Option {
	return func(b *Broker) {
		if d > 0 {
			b.heartbeat = d
		}
	}
}

// NewBroker starts a broker that emits at most one timeline.updated per
// video every timelineThrottle.
func NewBroker(timelineThrottle time.Duration, opts ...Option) *Broker {
	if timelineThrottle <= 0 {
		timelineThrottle = 2 * time.Second
	}

	b := &Broker{
		timelineMin: timelineThrottle,
		heartbeat:   DefaultHeartbeat,
		join:        make(chan subscription),
		leave:       make(chan chan []byte),
		inbox:       make(chan message, 512),
		count:       make(chan chan int),
		stopCh:      make(chan struct{}),
		stopped:     make(chan struct{}),
	}
	for _, o := range opts {
		o(b)
	}

	go b.run()
	return b
}

func encode(id uint64, event Event) ([]byte, error) {
	payload, err := json.Marshal(event.Data)
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", id, event.Type, payload)), nil
}

// loop is the state owned by the run goroutine.
type loop struct {
	clients      map[chan []byte]subscription
	lastTimeline map[string]time.Time
	seq          uint64
}

// deliver stamps the next id on e and offers it to every matching client.
// Clients with a full buffer miss the event.
func (l *loop) deliver(e Event) {
	l.seq++
	raw, err := encode(l.seq, e)
	if err != nil {
		return
	}
	for ch, sub := range l.clients {
		if !sub.wants(e) {
			continue
		}
		select {
		case ch <- raw:
		default:
		}
	}
}

// timelineDue reports whether videoID may get another timeline.updated now.
func (l *loop) timelineDue(videoID string, now time.Time, every time.Duration) bool {
	if now.Sub(l.lastTimeline[videoID]) < every {
		return false
	}
	l.lastTimeline[videoID] = now
	return true
}

func (b *Broker) run() {
	defer close(b.stopped)

	l := &loop{
		clients:      make(map[chan []byte]subscription),
		lastTimeline: make(map[string]time.Time),
	}
	for {
		select {
		case <-b.stopCh:
			for ch := range l.clients {
				close(ch)
			}
			return

		case sub := <-b.join:
			l.clients[sub.ch] = sub

		case ch := <-b.leave:
			if _, ok := l.clients[ch]; ok {
				delete(l.clients, ch)
				close(ch)
			}

		case m := <-b.inbox:
			l.deliver(m.event)
			id := m.event.VideoID
			if m.change && id != "" && l.timelineDue(id, time.Now(), b.timelineMin) {
				l.deliver(Event{
					Type:    TypeTimelineUpdated,
					VideoID: id,
					Data:    map[string]string{"videoId": id},
				})
			}

		case resp := <-b.count:
			resp <- len(l.clients)
		}
	}
}

// submit hands v to the loop over ch. It reports false once the broker has
// stopped.
func submit[T any](b *Broker, ch chan T, v T) bool {
	if b.closed.Load() {
		return false
	}
	select {
	case ch <- v:
		return true
	case <-b.stopped:
		return false
	}
}

// Close stops the loop and closes every client channel.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a client and returns its channel. A non-empty videoID
// limits the client to events of that video plus global ones. On a closed
// broker the returned channel is already closed.
func (b *Broker) Subscribe(videoID string) chan []byte {
	ch := make(chan []byte, 64)
	if !submit(b, b.join, subscription{ch: ch, videoID: videoID}) {
		close(ch)
	}
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	submit(b, b.leave, ch)
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	resp := make(chan int, 1)
	if !submit(b, b.count, resp) {
		return 0
	}
	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends event to the matching clients as-is.
func (b *Broker) Publish(event Event) {
	submit(b, b.inbox, message{event: event})
}

// PublishChange emits kind with data, followed by a throttled
// timeline.updated for videoID.
func (b *Broker) PublishChange(kind, videoID string, data any) {
	submit(b, b.inbox, message{event: Event{Type: kind, VideoID: videoID, Data: data}, change: true})
}

var pingComment = []byte(": ping\n\n")

// ServeHTTP streams events until the client disconnects or the broker
// closes (GET /api/events?videoId=). Idle streams get a comment line every
// heartbeat so proxies keep them open.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	send := func(p []byte) {
		if p != nil {
			_, _ = w.Write(p)
		}
		flusher.Flush()
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	send(nil)

	ch := b.Subscribe(r.URL.Query().Get("videoId"))
	defer b.Unsubscribe(ch)

	heartbeat := time.NewTicker(b.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			send(pingComment)
		case msg, open := <-ch:
			if !open {
				return
			}
			send(msg)
		}
	}
}
