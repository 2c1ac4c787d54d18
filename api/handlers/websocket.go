package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/coding-agent/backend/internal/ws"
)

// WebSocketHandler handles the live terminal WebSocket endpoint.
type WebSocketHandler struct {
	wsHandler *ws.Handler
}

// NewWebSocketHandler creates a new WebSocketHandler.
func NewWebSocketHandler(wsHandler *ws.Handler) *WebSocketHandler {
	return &WebSocketHandler{wsHandler: wsHandler}
}

// Terminal handles GET /ws/terminal - upgrades to a live terminal connection.
func (h *WebSocketHandler) Terminal(c *gin.Context) {
	if err := h.wsHandler.HandleConnection(c.Writer, c.Request); err != nil {
		// The upgrader already wrote the HTTP error response.
		return
	}
}

// RegisterRoutes registers the WebSocket route on the Gin engine.
func (h *WebSocketHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/ws/terminal", h.Terminal)
}
