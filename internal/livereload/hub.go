// Package livereload implements the server-sent events hub renderer pages connect to
// and the browser client injected into development bundles.
package livereload

import (
	"bufio"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Path is the endpoint the client connects to.
const Path = "/livereload"

// ErrorPrefix marks a broadcast announcing a failed rebuild.
const ErrorPrefix = "error:"

// Hub manages SSE clients for rebuild broadcasts.
type Hub struct {
	mu      sync.RWMutex
	nextID  int
	clients map[int]*client
	closed  bool
	last    string
	onSend  func()

	heartbeat time.Duration
}

type client struct {
	id   int
	ch   chan string
	done chan struct{}
}

// NewHub returns a Hub. onBroadcast, when non-nil, runs after every delivered broadcast.
func NewHub(onBroadcast func()) *Hub {
	return &Hub{clients: map[int]*client{}, onSend: onBroadcast, heartbeat: 30 * time.Second}
}

// ServeHTTP implements the SSE endpoint.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		http.Error(w, "livereload shutting down", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}

	c := &client{ch: make(chan string, 8), done: make(chan struct{})}
	h.mu.Lock()
	c.id = h.nextID
	h.nextID++
	h.clients[c.id] = c
	current := h.last
	h.mu.Unlock()

	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(": connected\n\n"); err != nil {
		slog.Debug("livereload write", "error", err)
		h.remove(c.id)
		return
	}
	if current != "" {
		writeEvent(bw, current)
	}
	if err := bw.Flush(); err == nil {
		flusher.Flush()
	}

	hb := time.NewTicker(h.heartbeat)
	defer hb.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			h.remove(c.id)
			return
		case <-c.done:
			return
		case <-hb.C:
			if _, err := bw.WriteString(": ping\n\n"); err == nil {
				_ = bw.Flush()
				flusher.Flush()
			} else {
				slog.Debug("livereload ping write", "error", err)
			}
		case id := <-c.ch:
			if err := writeEvent(bw, id); err == nil {
				_ = bw.Flush()
				flusher.Flush()
			} else {
				slog.Debug("livereload broadcast write", "error", err)
			}
		}
	}
}

func writeEvent(bw *bufio.Writer, id string) error {
	_, err := bw.WriteString("data: " + id + "\n\n")
	return err
}

func (h *Hub) remove(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[id]; ok {
		delete(h.clients, id)
		close(c.done)
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends a build identifier to all clients. Clients whose buffers are full
// are dropped. Repeating the previous identifier is a no-op.
func (h *Hub) Broadcast(id string) {
	id = strings.TrimSpace(id)
	if id == "" {
		return
	}
	h.send(id, true)
}

// BroadcastFailure announces a failed rebuild. Clients keep the current page and
// newly connecting clients still receive the last successful identifier.
func (h *Hub) BroadcastFailure(id string) {
	h.send(ErrorPrefix+strings.TrimSpace(id), false)
}

func (h *Hub) send(id string, remember bool) {
	h.mu.Lock()
	if h.closed || (remember && id == h.last) {
		h.mu.Unlock()
		return
	}
	if remember {
		h.last = id
	}
	snapshot := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		snapshot = append(snapshot, c)
	}
	h.mu.Unlock()

	dropped := 0
	for _, c := range snapshot {
		select {
		case c.ch <- id:
		default:
			dropped++
			h.remove(c.id)
		}
	}
	if h.onSend != nil {
		h.onSend()
	}
	slog.Debug("livereload broadcast", "id", id, "clients", len(snapshot), "dropped", dropped)
}

// Shutdown disconnects all clients and prevents future broadcasts.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	clients := h.clients
	h.clients = map[int]*client{}
	h.mu.Unlock()
	for _, c := range clients {
		close(c.done)
	}
}
