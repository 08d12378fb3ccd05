package realtime

import (
	"sync"
)

// AllNamespaces subscribes a client to every namespace.
const AllNamespaces = "*"

// Client represents a single websocket client connection.
// The network conn itself is managed in the ws handler.
type Client interface {
	Send(message []byte) bool
	Close()
}

// Hub maintains subscriptions of clients to cache namespaces and fans
// disposal events out to them.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[Client]struct{}
}

var hubInstance *Hub
var once sync.Once

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{
		topics: make(map[string]map[Client]struct{}),
	}
}

// GetHub returns a singleton hub instance.
func GetHub() *Hub {
	once.Do(func() {
		hubInstance = NewHub()
	})
	return hubInstance
}

// Register subscribes a client to a namespace, or to all of them with AllNamespaces.
func (h *Hub) Register(namespace string, client Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.topics[namespace]; !ok {
		h.topics[namespace] = make(map[Client]struct{})
	}
	h.topics[namespace][client] = struct{}{}
}

// Unregister removes a client; empty topics are dropped.
func (h *Hub) Unregister(namespace string, client Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if clients, ok := h.topics[namespace]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.topics, namespace)
		}
	}
}

// Subscribers returns the number of clients that receive events of namespace.
func (h *Hub) Subscribers(namespace string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := len(h.topics[AllNamespaces])
	if namespace != AllNamespaces {
		n += len(h.topics[namespace])
	}
	return n
}

// Broadcast sends a message to the clients of namespace and to wildcard
// subscribers. It reports how many sends succeeded and failed.
func (h *Hub) Broadcast(namespace string, message []byte) (sent, failed int) {
	h.mu.RLock()
	targets := make([]Client, 0, len(h.topics[namespace])+len(h.topics[AllNamespaces]))
	for c := range h.topics[namespace] {
		targets = append(targets, c)
	}
	if namespace != AllNamespaces {
		for c := range h.topics[AllNamespaces] {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if c.Send(message) {
			sent++
			continue
		}
		// the handler's read loop unregisters the client
		failed++
	}
	return sent, failed
}
