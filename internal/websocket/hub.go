package websocket

import (
	"context"
	"sync"
	"time"

	"PoscoMonitorAPI/internal/logger"
)

// Event types pushed to dashboards.
const (
	EventAlert       = "ALERT"
	EventAction      = "ACTION"
	EventStatus      = "STATUS"
	EventEquipment   = "EQUIPMENT"
	EventMaintenance = "MAINTENANCE"
)

// Message is the envelope every dashboard frame uses.
type Message struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	register   chan *Client
	unregister chan *Client
	log        *logger.Logger
	mu         sync.RWMutex
	running    chan struct{}
	stopped    chan struct{}
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		broadcast:  make(chan Message, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		log:        log.Named("ws"),
		running:    make(chan struct{}),
		stopped:    make(chan struct{}),
	}
}

// Run owns the client set until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	h.log.Info("WebSocket hub started")
	close(h.running)
	defer close(h.stopped)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			h.log.Info("WebSocket hub shutting down...")
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			n := len(h.clients)
			h.mu.Unlock()
			h.log.Info("Dashboard connected. Total: %d", n)
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast queues a frame for every dashboard. Frames are dropped when the
// queue is full so the alert pipeline never waits on slow browsers.
func (h *Hub) Broadcast(msgType string, payload interface{}) {
	msg := Message{Type: msgType, Payload: payload, Timestamp: time.Now()}
	select {
	case h.broadcast <- msg:
	default:
		h.log.Warn("Broadcast queue full, dropping %s frame", msgType)
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
