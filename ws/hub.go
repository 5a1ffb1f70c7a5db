package ws

import (
	"sync"

	"go.uber.org/zap"

	"github.com/Roygautam8852/SyncSpace/internal/logx"
	"github.com/Roygautam8852/SyncSpace/internal/metrics"
)

// Hub maps connection ids to their send buffers. The router writes through
// it; the pumps add and remove themselves.
type Hub struct {
	mu      sync.Mutex
	clients map[string]*Client
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]*Client)}
}

func (h *Hub) Add(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[c.id] = c
}

// Remove closes the client's send buffer once; its write pump then shuts
// the socket.
func (h *Hub) Remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c, ok := h.clients[id]; ok {
		delete(h.clients, id)
		close(c.send)
	}
}

// Send never blocks. A client whose buffer is full is dropped rather than
// stalling every other room on the router loop.
func (h *Hub) Send(id string, frame []byte) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[id]
	if !ok {
		return false
	}

	select {
	case c.send <- frame:
		return true
	default:
		delete(h.clients, id)
		close(c.send)
		metrics.Dropped.Inc()
		logx.L.Warn("slow client dropped", zap.String("conn", id))
		return false
	}
}

func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// CloseAll drops every client, used on shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, c := range h.clients {
		delete(h.clients, id)
		close(c.send)
	}
}
