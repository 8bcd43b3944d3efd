package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Hub tracks the open connection of every signed-in user
type Hub struct {
	clients    map[string]*Client // userID -> Client
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run owns registration until ctx is cancelled
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for id, c := range h.clients {
				close(c.send)
				delete(h.clients, id)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			if old, exists := h.clients[client.userID]; exists {
				log.Printf("[WS] User %s reconnecting - closing old connection", client.userID)
				if old.conn != nil {
					old.conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, "replaced by new connection"),
						time.Now().Add(5*time.Second))
				}
				close(old.send)
			}
			h.clients[client.userID] = client
			h.mu.Unlock()
			log.Printf("[WS] User %s connected", client.userID)

		case client := <-h.unregister:
			h.mu.Lock()
			if current, exists := h.clients[client.userID]; exists && current == client {
				delete(h.clients, client.userID)
				close(client.send)
				log.Printf("[WS] User %s disconnected", client.userID)
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) add(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) remove(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// SendToUser queues a message for userID if they are connected
func (h *Hub) SendToUser(userID string, message interface{}) bool {
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("[WS] Error marshaling message: %v", err)
		return false
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	client, exists := h.clients[userID]
	if !exists {
		return false
	}
	select {
	case client.send <- data:
		return true
	default:
		log.Printf("[WS] Dropped message for user %s (buffer full)", userID)
		return false
	}
}

// Connected reports whether userID has an open connection
func (h *Hub) Connected(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[userID]
	return ok
}
