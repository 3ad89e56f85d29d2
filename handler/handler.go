// Package handler exposes daemon-mode results over HTTP: the latest
// test result as JSON on /result and a live stream of loaded-phase
// measurements over a WebSocket on /live.
package handler

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/m-lab/bloatprobe/logging"
	"github.com/m-lab/bloatprobe/model"
)

// writeDeadline bounds every write to a live-stream client. A client
// too slow to keep up is dropped rather than allowed to stall the
// measurement loop.
const writeDeadline = 5 * time.Second

// Handler serves /result and /live.
type Handler struct {
	mu      sync.Mutex
	last    *model.Result
	clients map[*websocket.Conn]struct{}

	upgrader websocket.Upgrader
}

// New creates a Handler that has no result yet.
func New() *Handler {
	return &Handler{clients: make(map[*websocket.Conn]struct{})}
}

// SetResult stores the result to be served on /result.
func (h *Handler) SetResult(result *model.Result) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = result
}

// Result serves the latest test result as JSON, or 404 when no test
// has completed yet.
func (h *Handler) Result(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	last := h.last
	h.mu.Unlock()
	if last == nil {
		http.Error(w, "no result yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(last); err != nil {
		logging.Logger.WithError(err).Warn("handler: cannot encode result")
	}
}

// Live upgrades the request to a WebSocket and streams every published
// measurement for as long as the connection stays open.
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Logger.WithError(err).Warn("handler: websocket upgrade failed")
		return
	}
	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()
	// Reads only serve to detect the client going away; any incoming
	// content is discarded.
	go func() {
		defer h.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Publish sends |m| to every connected live-stream client. Clients
// whose write fails or times out are dropped.
func (h *Handler) Publish(m model.Measurement) {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for c := range h.clients {
		conns = append(conns, c)
	}
	h.mu.Unlock()
	for _, c := range conns {
		c.SetWriteDeadline(time.Now().Add(writeDeadline))
		if err := c.WriteJSON(m); err != nil {
			logging.Logger.WithError(err).Debug("handler: dropping live client")
			h.drop(c)
		}
	}
}

func (h *Handler) drop(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
	conn.Close()
}
