package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"gitlab.com/gearbroker.net/internal/core/ports/primary"
	"gitlab.com/gearbroker.net/internal/domain"
)

const writeWait = 5 * time.Second

type client struct {
	conn *websocket.Conn
	// gorilla connections allow one concurrent writer
	mu sync.Mutex
}

func (c *client) writeJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

// Hub fans job events out to websocket subscribers
type Hub struct {
	clients   map[*websocket.Conn]*client
	clientsMu sync.Mutex
	logger    primary.Logger
}

func NewHub(logger primary.Logger) *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]*client),
		logger:  logger,
	}
}

// AddClient registers conn and drops it once its read side fails
func (h *Hub) AddClient(conn *websocket.Conn) {
	h.clientsMu.Lock()
	h.clients[conn] = &client{conn: conn}
	total := len(h.clients)
	h.clientsMu.Unlock()

	h.logger.Info("Websocket client connected", "remoteAddr", conn.RemoteAddr().String(), "clients", total)

	// clear deadlines inherited from the http server
	_ = conn.SetReadDeadline(time.Time{})

	go func() {
		defer h.remove(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.clientsMu.Lock()
	_, ok := h.clients[conn]
	delete(h.clients, conn)
	total := len(h.clients)
	h.clientsMu.Unlock()

	if ok {
		_ = conn.Close()
		h.logger.Info("Websocket client disconnected", "clients", total)
	}
}

// Broadcast sends event to every client. It matches the event bus subscriber signature.
func (h *Hub) Broadcast(ctx context.Context, event domain.JobEvent) {
	h.clientsMu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.clientsMu.Unlock()

	for _, c := range clients {
		if err := c.writeJSON(event); err != nil {
			h.logger.Warn("Failed to send websocket event", "error", err)
			h.remove(c.conn)
		}
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	return len(h.clients)
}

// Close disconnects every client
func (h *Hub) Close() {
	h.clientsMu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.clientsMu.Unlock()

	for _, conn := range conns {
		h.remove(conn)
	}
}
