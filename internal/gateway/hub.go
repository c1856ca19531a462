// Package gateway exposes the simulation engine to the desktop UI over
// HTTP and WebSocket. Every state transition is pushed to connected clients
// so charts and tables stay in sync without polling.
package gateway

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"simtrade/internal/metrics"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The desktop shell serves the UI from a custom origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub manages WebSocket clients and fans simulation events out to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	metrics *metrics.Metrics
}

// NewHub creates a Hub. metrics may be nil in tests.
func NewHub(m *metrics.Metrics) *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
		metrics: m,
	}
}

// HandleWS upgrades the connection and registers the client.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[gateway] ws upgrade failed: %v", err)
		return
	}

	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, 64),
	}

	h.mu.Lock()
	h.clients[client] = true
	n := len(h.clients)
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.WSClients.Set(float64(n))
	}

	go client.writePump()
	go client.readPump()
}

// Broadcast sends an enveloped event to every connected client. Slow
// clients get messages dropped rather than stalling the transition.
func (h *Hub) Broadcast(event string, data any) {
	envelope, err := json.Marshal(map[string]any{
		"event": event,
		"data":  data,
		"ts":    time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		log.Printf("[gateway] broadcast marshal failed: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- envelope:
		default:
			if h.metrics != nil {
				h.metrics.WSDrops.Inc()
			}
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if h.clients[c] {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.WSClients.Set(float64(n))
	}
}
