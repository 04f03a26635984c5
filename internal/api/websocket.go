package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/rawblock/riskgraph/internal/alerts"
)

// Hub maintains the set of active websocket clients and broadcasts messages
type Hub struct {
	clients   map[*websocket.Conn]bool
	broadcast chan []byte
	mutex     sync.Mutex
	upgrader  websocket.Upgrader

	// closeMu guards closed and the close of broadcast against in-flight sends
	closeMu sync.RWMutex
	closed  bool
}

// NewHub accepts connections from the given CORS origin list ("" or "*"
// allows any origin)
func NewHub(allowedOrigins string) *Hub {
	return &Hub{
		broadcast: make(chan []byte, 256),
		clients:   make(map[*websocket.Conn]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || originAllowed(allowedOrigins, origin)
			},
		},
	}
}

// Run fans queued messages out to every client until Close
func (h *Hub) Run() {
	for message := range h.broadcast {
		h.mutex.Lock()
		for client := range h.clients {
			// Write deadline keeps a stalled client from hanging the hub
			_ = client.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("[WS] Write error: %v", err)
				client.Close()
				delete(h.clients, client)
			}
		}
		h.mutex.Unlock()
	}
}

// Close stops Run and disconnects all clients. Later calls are no-ops.
func (h *Hub) Close() {
	h.closeMu.Lock()
	if h.closed {
		h.closeMu.Unlock()
		return
	}
	h.closed = true
	close(h.broadcast)
	h.closeMu.Unlock()

	h.mutex.Lock()
	defer h.mutex.Unlock()
	for client := range h.clients {
		client.Close()
		delete(h.clients, client)
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.clients)
}

// Subscribe handles incoming websocket connections
func (h *Hub) Subscribe(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[WS] Failed to upgrade: %v", err)
		return
	}

	h.closeMu.RLock()
	closed := h.closed
	h.closeMu.RUnlock()
	if closed {
		conn.Close()
		return
	}

	h.mutex.Lock()
	h.clients[conn] = true
	total := len(h.clients)
	h.mutex.Unlock()
	log.Printf("[WS] Client connected. Total clients: %d", total)

	// Only server pushes matter, but reads are needed to notice disconnects
	go func() {
		defer func() {
			h.mutex.Lock()
			delete(h.clients, conn)
			total := len(h.clients)
			h.mutex.Unlock()
			conn.Close()
			log.Printf("[WS] Client disconnected. Total clients: %d", total)
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("[WS] Error: %v", err)
				}
				return
			}
		}
	}()
}

// Broadcast queues data for all clients. A full queue drops the message, and
// after Close every message is dropped.
func (h *Hub) Broadcast(data []byte) {
	h.closeMu.RLock()
	defer h.closeMu.RUnlock()
	if h.closed {
		return
	}
	select {
	case h.broadcast <- data:
	default:
		log.Printf("[WS] Broadcast queue full, dropping message")
	}
}

// BroadcastAlert returns the alert callback that streams alerts to clients
func BroadcastAlert(h *Hub) func(alerts.Alert) {
	return func(alert alerts.Alert) {
		payload, err := json.Marshal(gin.H{
			"type":  "risk_alert",
			"alert": alert,
		})
		if err != nil {
			log.Printf("[WS] Failed to marshal alert %s: %v", alert.ID, err)
			return
		}
		h.Broadcast(payload)
	}
}
