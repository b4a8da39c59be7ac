// Package hub owns the relay's WebSocket connection set: registration,
// per-connection send queues, and fan-out. Room membership and presence
// live elsewhere; the hub only knows connections.
package hub

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/billlzzz18/bl1nk-realtime/internal/metrics"
	"github.com/billlzzz18/bl1nk-realtime/pkg/log"
	"github.com/billlzzz18/bl1nk-realtime/pkg/protocol"
)

// Config holds WebSocket timing limits, wired from the relay config.
type Config struct {
	PingInterval   time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	MaxMessageSize int64
}

type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	stop       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex
	config     Config
}

func NewHub(cfg Config) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
		stop:       make(chan struct{}),
		config:     cfg,
	}
}

// Run processes registration and broadcast traffic until Stop is called.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()
			metrics.ConnectedClients.Inc()
			log.L().Debug().Str(log.FieldConnID, client.ID).Msg("client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				delete(h.clients, client.ID)
				close(client.Send)
				metrics.ConnectedClients.Dec()
			}
			h.mu.Unlock()
			log.L().Debug().Str(log.FieldConnID, client.ID).Msg("client unregistered")

		case data := <-h.broadcast:
			h.mu.RLock()
			for _, client := range h.clients {
				select {
				case client.Send <- data:
				default:
					// Slow consumer; drop the connection rather than block.
					go h.Unregister(client)
				}
			}
			h.mu.RUnlock()

		case <-h.stop:
			h.mu.Lock()
			for id, client := range h.clients {
				delete(h.clients, id)
				close(client.Send)
				metrics.ConnectedClients.Dec()
			}
			h.mu.Unlock()
			return
		}
	}
}

// Stop closes every client send queue and terminates Run.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.stop:
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.stop:
	}
}

// BroadcastAll sends an event to every connected client.
func (h *Hub) BroadcastAll(event string, data any) {
	env, err := protocol.NewEnvelope(event, data)
	if err != nil {
		log.L().Error().Err(err).Str(log.FieldEvent, event).Msg("broadcast marshal failed")
		return
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return
	}
	select {
	case h.broadcast <- raw:
	case <-h.stop:
	}
}

// SendTo delivers an event to a single connection. Returns false when the
// connection is unknown or its send queue is full; delivery is best-effort.
func (h *Hub) SendTo(connID, event string, data any) bool {
	env, err := protocol.NewEnvelope(event, data)
	if err != nil {
		log.L().Error().Err(err).Str(log.FieldEvent, event).Msg("send marshal failed")
		return false
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return false
	}

	// The read lock must be held across the send: Run closes client.Send
	// under the write lock, so releasing before sending would race with
	// the close and panic. The default branch keeps the send non-blocking.
	h.mu.RLock()
	defer h.mu.RUnlock()
	client, ok := h.clients[connID]
	if !ok {
		return false
	}

	select {
	case client.Send <- raw:
		return true
	default:
		go h.Unregister(client)
		return false
	}
}

// SendToMany delivers an event to each listed connection, skipping ids that
// are gone. Returns the number of successful deliveries.
func (h *Hub) SendToMany(connIDs []string, event string, data any) int {
	delivered := 0
	for _, id := range connIDs {
		if h.SendTo(id, event, data) {
			delivered++
		}
	}
	return delivered
}

// Len returns the number of registered connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
