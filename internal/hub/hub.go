package hub

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// wsMessage is the wire envelope for every published event.
type wsMessage struct {
	Type EventKind   `json:"type"`
	Data interface{} `json:"data"`
}

// writeWait bounds how long one stalled peer can block Publish, and with
// it the synchronous call transitions behind it.
const writeWait = 5 * time.Second

// Hub fans state-change events out to currently-subscribed WebSocket
// clients. Delivery is at-most-once best-effort: there is no durable
// queue, a missed event is recoverable by re-fetching current state over
// the query API. Ordering per call is guaranteed by the call service
// publishing synchronously after each committed transition.
type Hub struct {
	mu      sync.Mutex
	clients map[uint]map[*websocket.Conn]bool
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[uint]map[*websocket.Conn]bool),
	}
}

// Subscribe registers a connection for a user's events.
func (h *Hub) Subscribe(userID uint, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[*websocket.Conn]bool)
	}
	h.clients[userID][conn] = true
}

// Unsubscribe removes a connection and closes it.
func (h *Hub) Unsubscribe(userID uint, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.clients[userID]; ok {
		delete(conns, conn)
		conn.Close()
		if len(conns) == 0 {
			delete(h.clients, userID)
		}
	}
}

// Publish delivers an event to every subscriber of its recipients.
// Connections that fail a write are evicted.
func (h *Hub) Publish(event Event) {
	payload, err := json.Marshal(wsMessage{Type: event.Kind(), Data: event})
	if err != nil {
		log.Printf("[Hub] Failed to marshal %s event: %v", event.Kind(), err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, userID := range event.Recipients() {
		for conn := range h.clients[userID] {
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				log.Printf("[Hub] Dropping subscriber for user %d: %v", userID, err)
				conn.Close()
				delete(h.clients[userID], conn)
			}
		}
		if len(h.clients[userID]) == 0 {
			delete(h.clients, userID)
		}
	}
}

// SubscriberCount reports how many connections a user currently has.
func (h *Hub) SubscriberCount(userID uint) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients[userID])
}
