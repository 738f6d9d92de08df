package services

import (
	"sync"
	"time"

	"sysaura/internal/logger"

	"github.com/gorilla/websocket"
)

// Message types exchanged over /ws
const (
	MsgAuth         = "auth"
	MsgSubscribe    = "subscribe"
	MsgUnsubscribe  = "unsubscribe"
	MsgRefresh      = "refresh"
	MsgPing         = "ping"
	MsgAuthSuccess  = "auth_success"
	MsgAuthError    = "auth_error"
	MsgSubscribed   = "subscribed"
	MsgUnsubscribed = "unsubscribed"
	MsgError        = "error"
	MsgMetrics      = "metrics"
	MsgPong         = "pong"
)

// SendBufferSize is the per-connection outbound queue length.
const SendBufferSize = 256

// WebSocketMessage represents a message sent over WebSocket
type WebSocketMessage struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	SystemID  string      `json:"systemId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Message   string      `json:"message,omitempty"`
	Token     string      `json:"token,omitempty"` // For auth messages from client

	// Request names the client message an error answers, e.g. "subscribe".
	Request string `json:"request,omitempty"`
}

// ClientConnection represents a connected WebSocket client.
// Closing Send tells the write pump to close the socket.
type ClientConnection struct {
	ID   string
	Conn *websocket.Conn
	Send chan WebSocketMessage
}

// NewClientConnection allocates the queues of a connection.
func NewClientConnection(id string, conn *websocket.Conn) *ClientConnection {
	return &ClientConnection{
		ID:   id,
		Conn: conn,
		Send: make(chan WebSocketMessage, SendBufferSize),
	}
}

// WebSocketHub manages all connected WebSocket clients
type WebSocketHub struct {
	mu      sync.RWMutex
	clients map[string]*ClientConnection
	log     logger.Logger
}

// NewWebSocketHub creates an empty hub.
func NewWebSocketHub(log logger.Logger) *WebSocketHub {
	if log == nil {
		log = logger.Noop()
	}
	return &WebSocketHub{
		clients: make(map[string]*ClientConnection),
		log:     log,
	}
}

// Register adds a new client to the hub
func (h *WebSocketHub) Register(client *ClientConnection) {
	h.mu.Lock()
	h.clients[client.ID] = client
	total := len(h.clients)
	h.mu.Unlock()
	h.log.Info("client connected: %s (total: %d)", client.ID, total)
}

// Unregister removes a client and closes its send queue. Calling it twice is harmless.
func (h *WebSocketHub) Unregister(clientID string) {
	h.mu.Lock()
	client, exists := h.clients[clientID]
	if exists {
		delete(h.clients, clientID)
		close(client.Send)
	}
	total := len(h.clients)
	h.mu.Unlock()
	if exists {
		h.log.Info("client disconnected: %s (total: %d)", clientID, total)
	}
}

// SendMessage queues msg for one client without blocking. It reports whether
// the message was queued.
func (h *WebSocketHub) SendMessage(clientID string, msg WebSocketMessage) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	client, exists := h.clients[clientID]
	if !exists {
		return false
	}
	select {
	case client.Send <- msg:
		return true
	default:
		h.log.Warn("send queue full for %s, dropping %s message", clientID, msg.Type)
		return false
	}
}

// Deliver queues the same message for every listed client and returns how many
// accepted it.
func (h *WebSocketHub) Deliver(clientIDs []string, msg WebSocketMessage) int {
	delivered := 0
	for _, id := range clientIDs {
		if h.SendMessage(id, msg) {
			delivered++
		}
	}
	return delivered
}

// Connected reports whether clientID is registered.
func (h *WebSocketHub) Connected(clientID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[clientID]
	return ok
}

// Count returns the number of connected clients.
func (h *WebSocketHub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Shutdown unregisters every client.
func (h *WebSocketHub) Shutdown() {
	h.mu.Lock()
	for id, client := range h.clients {
		delete(h.clients, id)
		close(client.Send)
	}
	h.mu.Unlock()
}
