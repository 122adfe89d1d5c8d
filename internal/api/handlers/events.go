package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"cutwatch-worker-go/internal/logging"
	ws "cutwatch-worker-go/internal/services/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type EventsHandler struct {
	hub *ws.Hub
}

func NewEventsHandler(hub *ws.Hub) *EventsHandler {
	return &EventsHandler{hub: hub}
}

// Stream godoc
// @Summary Live run events
// @Description Upgrades to a websocket that receives one JSON message per finished run
// @Tags runs
// @Router /ws/runs [get]
func (h *EventsHandler) Stream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Warn(c).Err(err).Msg("WebSocket upgrade error")
		return
	}

	h.hub.Register(conn)
	defer h.hub.Unregister(conn)

	// drain client frames until the peer goes away
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logging.Debug(c).Msg("Run event viewer disconnected")
			} else {
				logging.Debug(c).Err(err).Msg("Run event viewer dropped")
			}
			return
		}
	}
}
