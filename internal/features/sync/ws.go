package sync

import (
	"sync"

	"github.com/gofiber/contrib/websocket"
	"go.uber.org/zap"
)

// ProgressHub pushes progress snapshots to websocket subscribers. The polling
// endpoint remains the canonical interface; this is a convenience stream.
type ProgressHub struct {
	mu     sync.RWMutex
	subs   map[string]map[*websocket.Conn]bool // restaurantID -> conns
	logger *zap.Logger
}

func NewProgressHub(logger *zap.Logger) *ProgressHub {
	return &ProgressHub{
		subs:   make(map[string]map[*websocket.Conn]bool),
		logger: logger,
	}
}

func (h *ProgressHub) Subscribe(restaurantID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[restaurantID] == nil {
		h.subs[restaurantID] = make(map[*websocket.Conn]bool)
	}
	h.subs[restaurantID][conn] = true
}

func (h *ProgressHub) Unsubscribe(restaurantID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs[restaurantID], conn)
	if len(h.subs[restaurantID]) == 0 {
		delete(h.subs, restaurantID)
	}
}

// Broadcast sends the view to every subscriber of the tenant. Dead
// connections are dropped on write failure.
func (h *ProgressHub) Broadcast(restaurantID string, view *ProgressView) {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.subs[restaurantID]))
	for conn := range h.subs[restaurantID] {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		if err := conn.WriteJSON(view); err != nil {
			h.logger.Debug("dropping dead progress subscriber",
				zap.String("restaurant_id", restaurantID), zap.Error(err))
			h.Unsubscribe(restaurantID, conn)
			conn.Close()
		}
	}
}

// HandleProgressSocket keeps the connection open until the client goes away.
// Snapshots are pushed by Broadcast; reads only detect disconnects.
func (h *ProgressHub) HandleProgressSocket(c *websocket.Conn) {
	restaurantID := c.Params("restaurantId")
	h.Subscribe(restaurantID, c)
	defer func() {
		h.Unsubscribe(restaurantID, c)
		c.Close()
	}()

	for {
		if _, _, err := c.ReadMessage(); err != nil {
			break
		}
	}
}
