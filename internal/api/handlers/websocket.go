package handlers

import (
	"github.com/gin-gonic/gin"

	ws "portal-service/internal/websocket"
)

type WebSocketHandler struct {
	deps ws.SessionDeps
}

func NewWebSocketHandler(deps ws.SessionDeps) *WebSocketHandler {
	return &WebSocketHandler{deps: deps}
}

// Serve upgrades the connection and hands it to the session protocol.
// Authentication happens in-band via the auth frame, not here.
func (h *WebSocketHandler) Serve(c *gin.Context) {
	ws.ServeWS(c.Writer, c.Request, h.deps)
}
