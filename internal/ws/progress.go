// Package ws streams installer progress milestones to WebSocket clients.
package ws

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/perfbook/companion-backend/internal/infrastructure/monitoring"
	"github.com/perfbook/companion-backend/internal/install"
	"github.com/perfbook/companion-backend/internal/logging"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // origins are filtered by the CORS layer
	},
}

// Hub fans installer snapshots out to connected clients. It registers
// itself as an installer progress listener; the synchronous callback only
// enqueues, so milestone delivery to the installer's other listeners is
// never blocked by a slow socket.
type Hub struct {
	logger  *logging.Logger
	metrics *monitoring.Metrics

	mu      sync.Mutex
	clients map[*websocket.Conn]chan install.Snapshot
}

// NewHub creates a hub and hooks it into the installer.
func NewHub(installer *install.Installer, logger *logging.Logger, metrics *monitoring.Metrics) *Hub {
	h := &Hub{
		logger:  logger,
		metrics: metrics,
		clients: make(map[*websocket.Conn]chan install.Snapshot),
	}
	installer.OnProgress(h.broadcast)
	return h
}

func (h *Hub) broadcast(snap install.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.clients {
		select {
		case ch <- snap:
		default:
			// Drop for clients that cannot keep up; the next milestone
			// carries the newest state anyway.
		}
	}
}

// Handle upgrades the connection and streams snapshots until the client
// disconnects.
func (h *Hub) Handle(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ch := make(chan install.Snapshot, 16)
	h.mu.Lock()
	h.clients[conn] = ch
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.WSConnections.Inc()
	}

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
		if h.metrics != nil {
			h.metrics.WSConnections.Dec()
		}
	}()

	// Reader goroutine: its only job is to notice the close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case snap := <-ch:
			if err := conn.WriteJSON(snap); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}
