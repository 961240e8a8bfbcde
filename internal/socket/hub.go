// server/internal/socket/hub.go
package socket

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// client bọc một kết nối; gorilla/websocket không cho phép ghi đồng thời trên cùng kết nối.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(message []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, message)
}

// Hub quản lý các kết nối WebSocket, key là user id. Một user có thể mở nhiều tab.
type Hub struct {
	clients map[string]map[*websocket.Conn]*client
	mu      sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[*websocket.Conn]*client),
	}
}

func (h *Hub) Register(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[*websocket.Conn]*client)
	}
	h.clients[userID][conn] = &client{conn: conn}
	log.Printf("WebSocket client registered: %s", userID)
}

func (h *Hub) Unregister(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.clients[userID]
	if !ok {
		return
	}
	delete(conns, conn)
	if len(conns) == 0 {
		delete(h.clients, userID)
	}
	log.Printf("WebSocket client unregistered: %s", userID)
}

// Connected reports how many connections a user currently has.
func (h *Hub) Connected(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Send gửi tin nhắn tới mọi kết nối của user. User đang offline không phải là lỗi.
func (h *Hub) Send(userID string, message []byte) error {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients[userID]))
	for _, c := range h.clients[userID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	var firstErr error
	for _, c := range targets {
		if err := c.write(message); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
