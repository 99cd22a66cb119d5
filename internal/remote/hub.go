// Package remote is the WebSocket control channel. Clients receive the same
// event stream as SSE subscribers and may send transport and track commands
// back; every command is answered with an ack on the same connection.
package remote

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/starford/fractal/internal/sse"
)

const sendBuffer = 64

type directMsg struct {
	client *Client
	data   []byte
}

// Hub tracks connected clients and fans messages out to them.
//
// A single goroutine (Run) owns the client set. A client whose send buffer is
// full is dropped rather than allowed to stall the others.
type Hub struct {
	ctrl     Controller
	log      *slog.Logger
	upgrader websocket.Upgrader

	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	direct     chan directMsg
	countReq   chan chan int
	done       chan struct{}
}

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.log = l
		}
	}
}

// WithCheckOrigin overrides the upgrader's origin check. The default accepts
// only same-host origins.
func WithCheckOrigin(fn func(r *http.Request) bool) Option {
	return func(h *Hub) {
		h.upgrader.CheckOrigin = fn
	}
}

// NewHub creates a hub that dispatches client commands to ctrl.
func NewHub(ctrl Controller, opts ...Option) *Hub {
	h := &Hub{
		ctrl:       ctrl,
		log:        slog.Default(),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
		direct:     make(chan directMsg, 64),
		countReq:   make(chan chan int),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run owns the client set until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	clients := make(map[*Client]struct{})
	drop := func(c *Client) {
		if _, ok := clients[c]; ok {
			delete(clients, c)
			close(c.send)
		}
	}

	for {
		select {
		case <-ctx.Done():
			for c := range clients {
				drop(c)
			}
			return nil

		case c := <-h.register:
			clients[c] = struct{}{}
			h.log.Debug("remote: client connected", slog.Int("clients", len(clients)))

		case c := <-h.unregister:
			drop(c)
			h.log.Debug("remote: client disconnected", slog.Int("clients", len(clients)))

		case msg := <-h.broadcast:
			for c := range clients {
				select {
				case c.send <- msg:
				default:
					h.log.Warn("remote: slow client dropped")
					drop(c)
				}
			}

		case m := <-h.direct:
			if _, ok := clients[m.client]; !ok {
				continue
			}
			select {
			case m.client.send <- m.data:
			default:
				drop(m.client)
			}

		case reply := <-h.countReq:
			reply <- len(clients)
		}
	}
}

// Publish implements editor.Publisher. Events are sent as
// {"type": ..., "data": ...} text frames. Publishing never blocks; when the
// hub is backlogged the event is dropped.
func (h *Hub) Publish(ev sse.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.log.Error("remote: marshal event", slog.String("type", ev.Type), slog.String("error", err.Error()))
		return
	}
	select {
	case h.broadcast <- data:
	case <-h.done:
	default:
		h.log.Warn("remote: broadcast buffer full, event dropped", slog.String("type", ev.Type))
	}
}

// ClientCount returns the number of connected clients, or 0 once the hub has
// stopped.
func (h *Hub) ClientCount() int {
	reply := make(chan int, 1)
	select {
	case h.countReq <- reply:
		return <-reply
	case <-h.done:
		return 0
	}
}

// ServeHTTP upgrades the request and starts the client's pumps.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.log.Warn("remote: upgrade failed", slog.String("error", err.Error()))
		return
	}
	c := &Client{hub: h, conn: conn, send: make(chan []byte, sendBuffer)}
	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return
	}
	go c.writePump()
	go c.readPump()
}

func (h *Hub) reply(c *Client, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.log.Error("remote: marshal ack", slog.String("error", err.Error()))
		return
	}
	select {
	case h.direct <- directMsg{client: c, data: data}:
	case <-h.done:
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}
