package events

import (
	"net/http"

	"github.com/gorilla/mux"
	ws "github.com/gorilla/websocket"

	"gitlab.com/gearbroker.net/internal/core/ports/primary"
	"gitlab.com/gearbroker.net/internal/websocket"
)

type Handler struct {
	hub      *websocket.Hub
	upgrader ws.Upgrader
	logger   primary.Logger
}

func NewHandler(hub *websocket.Hub, logger primary.Logger) *Handler {
	return &Handler{
		hub: hub,
		upgrader: ws.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/ws/events", h.Subscribe).Methods("GET")
}

// Subscribe upgrades the request and streams job events as JSON
func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Websocket upgrade failed", "error", err)
		return
	}
	h.hub.AddClient(conn)
}
