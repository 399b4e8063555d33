// Package sse fans chart frames out to browser clients over
// text/event-stream connections.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"spesedonut/internal/log"
)

type Event string

const (
	EventFrame Event = "frame"
)

type Message struct {
	Event Event
	ID    string
	Data  any
}

type Client struct {
	ID       uuid.UUID
	Outbound chan Message
	done     chan struct{}
	once     sync.Once
}

type Hub struct {
	mu        sync.RWMutex
	logger    *log.Logger
	clients   map[*Client]struct{}
	heartbeat time.Duration
	buffer    int
	onCount   func(int)
}

type Option func(*Hub)

func WithHeartbeat(d time.Duration) Option {
	return func(h *Hub) { h.heartbeat = d }
}

func WithBuffer(n int) Option {
	return func(h *Hub) { h.buffer = n }
}

// WithClientCounter is called with the client count after every connect and disconnect.
func WithClientCounter(fn func(int)) Option {
	return func(h *Hub) { h.onCount = fn }
}

func NewHub(logger *log.Logger, opts ...Option) *Hub {
	h := &Hub{
		logger:    logger.WithComponent(log.ComponentSSE),
		clients:   make(map[*Client]struct{}),
		heartbeat: 15 * time.Second,
		buffer:    16,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// NewClient registers a client that receives every later Broadcast.
func (h *Hub) NewClient() *Client {
	c := &Client{
		ID:       uuid.New(),
		Outbound: make(chan Message, h.buffer),
		done:     make(chan struct{}),
	}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug("SSE client connected", "client_id", c.ID, "clients", n)
	h.count(n)
	return c
}

// Broadcast queues msg for every client without blocking. Frames carry full
// state, so a client with a full buffer loses its oldest queued message.
func (h *Hub) Broadcast(msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.Outbound <- msg:
			continue
		default:
		}
		select {
		case <-c.Outbound:
		default:
		}
		select {
		case c.Outbound <- msg:
		default:
			h.logger.Warn("Dropping SSE message; outbound buffer full", "client_id", c.ID)
		}
	}
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CloseClient unregisters c and closes its outbound channel. Safe to call twice.
func (h *Hub) CloseClient(c *Client) {
	c.once.Do(func() {
		close(c.done)
		h.mu.Lock()
		delete(h.clients, c)
		n := len(h.clients)
		close(c.Outbound)
		h.mu.Unlock()

		h.logger.Debug("SSE client disconnected", "client_id", c.ID, "clients", n)
		h.count(n)
	})
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		h.CloseClient(c)
	}
}

// ServeHTTP streams initial messages, then everything broadcast to c, until
// the request ends or the client is closed.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request, c *Client, initial ...Message) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported!", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for _, msg := range initial {
		if err := h.write(w, msg); err != nil {
			return
		}
	}
	flusher.Flush()

	ctx := r.Context()
	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("SSE client context done", "client_id", c.ID, "error", ctx.Err())
			return
		case <-c.done:
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case msg, ok := <-c.Outbound:
			if !ok {
				return
			}
			if err := h.write(w, msg); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (h *Hub) write(w http.ResponseWriter, msg Message) error {
	data, err := json.Marshal(msg.Data)
	if err != nil {
		h.logger.Warn("Failed to marshal SSE message", "error", err)
		return nil
	}
	if msg.ID != "" {
		if _, err := fmt.Fprintf(w, "id: %s\n", msg.ID); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Event, data)
	return err
}

func (h *Hub) count(n int) {
	if h.onCount != nil {
		h.onCount(n)
	}
}
