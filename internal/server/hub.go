package server

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/micumarket/composer/shared/api"
	"github.com/micumarket/composer/shared/logger"
)

const writeWait = 10 * time.Second

// Hub fans confirmed messages out to the websocket feeds of a conversation.
// Writes are serialized per connection.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]map[*websocket.Conn]*sync.Mutex
}

func NewHub() *Hub {
	return &Hub{conns: make(map[string]map[*websocket.Conn]*sync.Mutex)}
}

func (h *Hub) Register(conversationId string, c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.conns[conversationId] == nil {
		h.conns[conversationId] = make(map[*websocket.Conn]*sync.Mutex)
	}
	h.conns[conversationId][c] = &sync.Mutex{}
}

func (h *Hub) Unregister(conversationId string, c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.conns[conversationId], c)
	if len(h.conns[conversationId]) == 0 {
		delete(h.conns, conversationId)
	}
}

// Broadcast pushes the message to every feed of the conversation except the
// excluded connection. The sender already has the message from the HTTP
// response, so its own feed is skipped.
func (h *Hub) Broadcast(conversationId string, m api.Message, except *websocket.Conn) {
	h.mu.RLock()
	targets := make(map[*websocket.Conn]*sync.Mutex, len(h.conns[conversationId]))
	for c, mu := range h.conns[conversationId] {
		if c != except {
			targets[c] = mu
		}
	}
	h.mu.RUnlock()

	for c, mu := range targets {
		mu.Lock()
		_ = c.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.WriteJSON(m); err != nil {
			logger.Log.Warn("websocket write failed, dropping connection", "err", err)
			c.Close()
		}
		mu.Unlock()
	}
}

// ConnCount reports the open feeds for one conversation.
func (h *Hub) ConnCount(conversationId string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[conversationId])
}

// CloseAll tells every feed the server is going away and closes it.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, conns := range h.conns {
		for c, mu := range conns {
			mu.Lock()
			_ = c.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"))
			c.Close()
			mu.Unlock()
		}
	}
	h.conns = make(map[string]map[*websocket.Conn]*sync.Mutex)
}
