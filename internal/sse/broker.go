// Package sse implements a Server-Sent Events broker for editor updates.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Event types emitted by the editor and the library.
const (
	TypeTimelineUpdated   = "timeline.updated"
	TypeTransportState    = "transport.state"
	TypeTransportPlayhead = "transport.playhead"
	TypeAssetImported     = "asset.imported"
	TypeReorderCompleted  = "reorder.completed"
)

const (
	clientBuffer     = 64
	defaultKeepAlive = 15 * time.Second
)

// replayed lists the event types whose latest frame is sent to a client as
// soon as it subscribes, so that it starts from the current state.
var replayed = []string{TypeTimelineUpdated, TypeTransportState}

// Event represents an SSE event to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Broker manages SSE client connections and broadcasts events.
//
// A single loop goroutine owns the clients, the playhead throttle timestamp,
// the event counter and the replay cache. Public methods talk to it over
// channels.
//
// Playhead events arrive at the tick rate of the transport clock; the broker
// forwards at most one per throttle interval. All other events pass through.
type Broker struct {
	playheadMin time.Duration
	keepAlive   time.Duration

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// Option configures a Broker.
type Option func(*Broker)

// WithKeepAlive sets how often an idle stream gets a comment line. Zero
// disables keepalives.
func WithKeepAlive(d time.Duration) Option {
	return func(b *Broker) {
		if d >= 0 {
			b.keepAlive = d
		}
	}
}

// NewBroker creates a new SSE broker with the given playhead throttle interval.
func NewBroker(playheadThrottle time.Duration, opts ...Option) *Broker {
	if playheadThrottle <= 0 {
		playheadThrottle = 250 * time.Millisecond
	}

	b := &Broker{
		playheadMin:   playheadThrottle,
		keepAlive:     defaultKeepAlive,
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}

	go b.run()
	return b
}

// Frame renders event in the text/event-stream wire format. A zero id is
// left out.
func Frame(id uint64, event Event) ([]byte, error) {
	payload, err := json.Marshal(event.Data)
	if err != nil {
		return nil, fmt.Errorf("sse: marshal %s: %w", event.Type, err)
	}
	if id == 0 {
		return fmt.Appendf(nil, "event: %s\ndata: %s\n\n", event.Type, payload), nil
	}
	return fmt.Appendf(nil, "id: %d\nevent: %s\ndata: %s\n\n", id, event.Type, payload), nil
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	latest := make(map[string][]byte, len(replayed))
	var (
		lastPlayhead time.Time
		seq          uint64
	)

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case ch := <-b.subscribeCh:
			clients[ch] = struct{}{}
			for _, typ := range replayed {
				if raw, ok := latest[typ]; ok {
					ch <- raw // fresh channel, buffer has room
				}
			}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			if event.Type == TypeTransportPlayhead {
				now := time.Now()
				if now.Sub(lastPlayhead) < b.playheadMin {
					continue
				}
				lastPlayhead = now
			}
			seq++
			raw, err := Frame(seq, event)
			if err != nil {
				continue
			}
			if isReplayed(event.Type) {
				latest[event.Type] = raw
			}
			for ch := range clients {
				select {
				case ch <- raw:
				default:
					// Client buffer full; skip to avoid blocking broker loop.
				}
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

func isReplayed(typ string) bool {
	for _, t := range replayed {
		if t == typ {
			return true
		}
	}
	return false
}

// Close gracefully stops broker loop and closes all client channels. It is
// safe to call more than once.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a new client and returns its channel.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, clientBuffer)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- ch:
	case <-b.stopped:
		close(ch)
	}

	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish implements editor.Publisher.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// ServeHTTP is the SSE endpoint handler (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	var keepAlive <-chan time.Time
	if b.keepAlive > 0 {
		t := time.NewTicker(b.keepAlive)
		defer t.Stop()
		keepAlive = t.C
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-keepAlive:
			_, _ = w.Write([]byte(": keepalive\n\n"))
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
