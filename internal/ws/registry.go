package ws

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Registry tracks active WebSocket clients and is the sole authority on
// connection liveness. It owns the rate limiter so that evicting a
// connection also clears the client's rate-limit entry.
type Registry struct {
	clients map[string]*Client
	limiter *RateLimiter
	mu      sync.RWMutex
}

// NewRegistry creates a Registry using the given rate limiter.
func NewRegistry(limiter *RateLimiter) *Registry {
	return &Registry{
		clients: make(map[string]*Client),
		limiter: limiter,
	}
}

// Limiter returns the rate limiter owned by this registry.
func (r *Registry) Limiter() *RateLimiter {
	return r.limiter
}

// Connect admits a new connection under a fresh client id.
func (r *Registry) Connect(conn *websocket.Conn) *Client {
	client := NewClient(conn, uuid.NewString())
	r.register(client)
	log.Printf("Client connected: %s", client.ID())
	return client
}

// register adds a pre-built client. Used by Connect and by tests that have
// no real WebSocket connection.
func (r *Registry) register(client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[client.ID()] = client
}

// Disconnect removes the connection and its rate-limit entry. Idempotent;
// calling it for an unknown id is a no-op.
func (r *Registry) Disconnect(clientID string) {
	r.mu.Lock()
	client, ok := r.clients[clientID]
	if ok {
		delete(r.clients, clientID)
	}
	r.mu.Unlock()

	if !ok {
		return
	}

	client.Close()
	r.limiter.Forget(clientID)
	log.Printf("Client disconnected: %s", clientID)
}

// Send delivers an event to the named client if it is live. Delivery failure
// is treated as a disconnect: the connection is evicted and the failure is
// logged, never raised, since the peer is presumed gone.
func (r *Registry) Send(clientID string, ev ServerEvent) {
	r.mu.RLock()
	client, ok := r.clients[clientID]
	r.mu.RUnlock()

	if !ok {
		return
	}

	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("Failed to marshal %s event for %s: %v", ev.Event, clientID, err)
		return
	}

	if err := client.Send(data); err != nil {
		log.Printf("Failed to send %s event to %s: %v", ev.Event, clientID, err)
		r.Disconnect(clientID)
	}
}

// Broadcast delivers an event to every live client. One recipient's failure
// does not block delivery to the others.
func (r *Registry) Broadcast(ev ServerEvent) {
	r.mu.RLock()
	ids := make([]string, 0, len(r.clients))
	for id := range r.clients {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	for _, id := range ids {
		r.Send(id, ev)
	}
}

// ClientCount returns the number of live connections.
func (r *Registry) ClientCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Close evicts every connection.
func (r *Registry) Close() {
	r.mu.Lock()
	clients := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		clients = append(clients, c)
	}
	r.clients = make(map[string]*Client)
	r.mu.Unlock()

	for _, c := range clients {
		c.Close()
		r.limiter.Forget(c.ID())
	}
}
