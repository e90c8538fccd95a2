package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/guided-traffic/meetup-client/websocket"
)

// WebSocketHandler serves the UI event stream
type WebSocketHandler struct {
	hub   *websocket.Hub
	rooms RoomService
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(hub *websocket.Hub, rooms RoomService) *WebSocketHandler {
	return &WebSocketHandler{
		hub:   hub,
		rooms: rooms,
	}
}

// HandleConnection upgrades the request to a WebSocket connection
// GET /api/v1/ws
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	if err := h.hub.ServeWS(c.Writer, c.Request); err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
	}
}

// GetStatus returns the chat session state and the number of UI clients
// GET /api/v1/ws/status
func (h *WebSocketHandler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"session":          h.rooms.Status(),
		"connectedClients": h.hub.ConnectedClients(),
	})
}
