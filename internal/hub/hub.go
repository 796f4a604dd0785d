package hub

import (
	"encoding/json"
	"sync"

	"github.com/waynekhien/social-media/pkg/log"
)

// Hub owns the live websocket connections of this instance, keyed by client
// ID. Delivery is fire-and-forget: a full send buffer or an unknown client
// drops the payload.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates an empty hub. Run must be started on its own goroutine.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()
			l := log.L()
			l.Debug().Str("client_id", client.ID).Str(log.FieldUserID, client.UserID).Msg("client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				delete(h.clients, client.ID)
				close(client.Send)
			}
			h.mu.Unlock()
			l := log.L()
			l.Debug().Str("client_id", client.ID).Str(log.FieldUserID, client.UserID).Msg("client unregistered")
		}
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// SendToClient marshals payload and queues it on the client's send buffer.
// Returns false when the client is unknown or its buffer is full.
func (h *Hub) SendToClient(clientID string, payload interface{}) bool {
	data, err := json.Marshal(payload)
	if err != nil {
		return false
	}

	// Hold the read lock across the send. Run closes the channel under the
	// write lock, so a client found here cannot be closed mid-send.
	h.mu.RLock()
	defer h.mu.RUnlock()

	client, ok := h.clients[clientID]
	if !ok {
		return false
	}

	select {
	case client.Send <- data:
		return true
	default:
		return false
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
