package services

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"nutritrack/logger"
)

const wsWriteWait = 5 * time.Second

// WSClient is one websocket connection. Writes are serialized per client.
type WSClient struct {
	UserID uint
	Conn   *websocket.Conn

	wmu sync.Mutex
}

func (c *WSClient) Write(messageType int, data []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_ = c.Conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return c.Conn.WriteMessage(messageType, data)
}

// Event is the envelope of every realtime message.
type Event struct {
	Kind string `json:"kind"` // "capture.state" | "alert.created"
	Data any    `json:"data"`
}

type RealtimeHub struct {
	mu      sync.RWMutex
	clients map[uint]map[*WSClient]struct{}
	log     *logger.Logger
}

func NewRealtimeHub(log *logger.Logger) *RealtimeHub {
	return &RealtimeHub{
		clients: make(map[uint]map[*WSClient]struct{}),
		log:     log.With("service", "RealtimeHub"),
	}
}

func (h *RealtimeHub) Register(c *WSClient) {
	h.mu.Lock()
	if h.clients[c.UserID] == nil {
		h.clients[c.UserID] = make(map[*WSClient]struct{})
	}
	h.clients[c.UserID][c] = struct{}{}
	h.mu.Unlock()
}

func (h *RealtimeHub) Unregister(c *WSClient) {
	h.mu.Lock()
	if set := h.clients[c.UserID]; set != nil {
		delete(set, c)
		if len(set) == 0 {
			delete(h.clients, c.UserID)
		}
	}
	h.mu.Unlock()
	_ = c.Conn.Close()
}

func (h *RealtimeHub) Connected(userID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Publish sends an event to every connection of the user. Failed
// connections are dropped.
func (h *RealtimeHub) Publish(userID uint, kind string, data any) {
	msg, err := json.Marshal(Event{Kind: kind, Data: data})
	if err != nil {
		h.log.Warn("realtime event not encodable", "kind", kind, "error", err)
		return
	}
	h.mu.RLock()
	targets := make([]*WSClient, 0, len(h.clients[userID]))
	for c := range h.clients[userID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.Write(websocket.TextMessage, msg); err != nil {
			h.log.Debug("dropping websocket client", "user_id", userID, "error", err)
			h.Unregister(c)
		}
	}
}
