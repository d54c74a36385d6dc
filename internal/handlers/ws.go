package handlers

import (
	"net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Thethetrader/thethetrader-sub001/internal/services"
)

// WSHandler upgrades HTTP requests and hands the connections to the hub.
type WSHandler struct {
	hub *services.Hub
	log zerolog.Logger
}

func NewWSHandler(hub *services.Hub, log zerolog.Logger) *WSHandler {
	return &WSHandler{
		hub: hub,
		log: log,
	}
}

// HandleWebSocket accepts the upgrade, assigns the connection id and runs
// the client's pumps until the connection drops.
func (h *WSHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket accept failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "")

	client := services.NewClient(uuid.NewString(), conn, h.hub, h.log)
	h.hub.Register(client)
	client.Run()
}
