package devserver

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/assetpipe/internal/telemetry"
)

// ReloadEvent is the server-sent event name clients listen for.
const ReloadEvent = "reload"

// Hub fans rebuild notifications out to connected live reload clients over
// server-sent events.
type Hub struct {
	mu      sync.Mutex
	clients map[chan string]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[chan string]struct{})}
}

// Broadcast sends event to every connected client. Clients that are not
// keeping up miss the event rather than blocking the build.
func (h *Hub) Broadcast(event string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.clients {
		select {
		case ch <- event:
		default:
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) subscribe() chan string {
	ch := make(chan string, 1)

	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()

	telemetry.GetMetrics().LiveReloadClients.Add(context.Background(), 1)
	return ch
}

func (h *Hub) unsubscribe(ch chan string) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()

	telemetry.GetMetrics().LiveReloadClients.Add(context.Background(), -1)
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := h.subscribe()
	defer h.unsubscribe(ch)

	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	log.Debug().Int("clients", h.Clients()).Msg("Live reload client connected")

	for {
		select {
		case <-r.Context().Done():
			return
		case event := <-ch:
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, event); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
