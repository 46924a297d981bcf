package ws

import (
	"log"
	"sync"

	"broadcast-room/internal/observability"
)

type client struct {
	info ConnInfo
	send chan []byte
}

// Hub tracks live connections by id and hands them frames without blocking.
// It serves as the transport of every room.
type Hub struct {
	clients map[string]*client
	mu      sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[string]*client)}
}

// register adds a connection with an outbound queue of the given size.
func (h *Hub) register(info ConnInfo, buffer int) *client {
	if buffer <= 0 {
		buffer = 1
	}
	c := &client{info: info, send: make(chan []byte, buffer)}

	h.mu.Lock()
	h.clients[info.ConnID] = c
	total := len(h.clients)
	h.mu.Unlock()

	observability.IncWSActive()
	log.Printf("ws connected conn_id=%s room=%s total=%d", info.ConnID, info.RoomID, total)
	return c
}

// unregister removes a connection and closes its queue. Repeated calls are no-ops.
func (h *Hub) unregister(connID string) {
	h.mu.Lock()
	c, ok := h.clients[connID]
	if ok {
		delete(h.clients, connID)
		close(c.send)
	}
	total := len(h.clients)
	h.mu.Unlock()

	if ok {
		observability.DecWSActive()
		log.Printf("ws disconnected conn_id=%s room=%s total=%d", connID, c.info.RoomID, total)
	}
}

// Deliver queues a frame for connID. A full queue or unknown connection
// drops the frame.
func (h *Hub) Deliver(connID string, frame []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	c, ok := h.clients[connID]
	if !ok {
		observability.IncWSDropped()
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		observability.IncWSDropped()
		log.Printf("ws send queue full, dropping frame conn_id=%s", connID)
		return false
	}
}

// Info returns what the hub knows about a connection.
func (h *Hub) Info(connID string) (ConnInfo, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[connID]
	if !ok {
		return ConnInfo{}, false
	}
	return c.info, true
}

// Count returns the number of live connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
