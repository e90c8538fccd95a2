package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/guided-traffic/meetup-client/models"
	"github.com/guided-traffic/meetup-client/router"
	"github.com/guided-traffic/meetup-client/websocket"
)

// RoomService is the chat surface of the connection manager
type RoomService interface {
	Enter(ctx context.Context, rc models.RoomContext) error
	Leave()
	Reconnect() error
	Send(msg models.ChatMessage) (models.ChatMessage, error)
	SendBill(req router.BillRequest) (models.ChatMessage, error)
	Messages() ([]models.ChatMessage, error)
	RoomInfo() (models.ChatRoomInfo, error)
	SetFocused(focused bool)
	Status() websocket.Status
}

// RoomHandler handles chat room requests
type RoomHandler struct {
	rooms RoomService
}

// NewRoomHandler creates a new room handler
func NewRoomHandler(rooms RoomService) *RoomHandler {
	return &RoomHandler{rooms: rooms}
}

// Enter switches the session to a room
// POST /api/v1/rooms/:id/enter
func (h *RoomHandler) Enter(c *gin.Context) {
	roomID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || roomID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid room ID",
		})
		return
	}

	var req models.EnterRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	rc := models.RoomContext{RoomID: roomID, SelfEmail: req.SelfEmail, SelfName: req.SelfName}
	if err := h.rooms.Enter(c.Request.Context(), rc); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, h.current())
}

// Leave closes the active room session
// POST /api/v1/rooms/leave
func (h *RoomHandler) Leave(c *gin.Context) {
	h.rooms.Leave()
	c.Status(http.StatusNoContent)
}

// Current returns the active room and its session state
// GET /api/v1/rooms/current
func (h *RoomHandler) Current(c *gin.Context) {
	c.JSON(http.StatusOK, h.current())
}

func (h *RoomHandler) current() gin.H {
	resp := gin.H{
		"status": h.rooms.Status(),
	}
	if info, err := h.rooms.RoomInfo(); err == nil {
		resp["room"] = info
	}
	return resp
}

// Reconnect restarts a session that went offline
// POST /api/v1/rooms/current/reconnect
func (h *RoomHandler) Reconnect(c *gin.Context) {
	if err := h.rooms.Reconnect(); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"status": h.rooms.Status(),
	})
}

// GetMessages returns the history of the active room, oldest first
// GET /api/v1/rooms/current/messages
func (h *RoomHandler) GetMessages(c *gin.Context) {
	messages, err := h.rooms.Messages()
	if err != nil {
		respondError(c, err)
		return
	}
	if messages == nil {
		messages = []models.ChatMessage{}
	}

	c.JSON(http.StatusOK, gin.H{
		"messages": messages,
	})
}

// SendMessage posts a TALK, IMAGE, POLL or LOCATION message
// POST /api/v1/rooms/current/messages
func (h *RoomHandler) SendMessage(c *gin.Context) {
	var req models.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	msg := models.ChatMessage{Type: req.Type, Content: req.Content}
	switch req.Type {
	case models.MessageTypeTalk, models.MessageTypeImage:
	case models.MessageTypePoll:
		if req.Poll != nil {
			msg.Metadata = *req.Poll
		}
	case models.MessageTypeLocation:
		if req.Location != nil {
			msg.Metadata = *req.Location
		}
	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Unsupported message type: " + string(req.Type),
		})
		return
	}

	sent, err := h.rooms.Send(msg)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message": sent,
	})
}

// SendBill posts a bill split among the participants
// POST /api/v1/rooms/current/bills
func (h *RoomHandler) SendBill(c *gin.Context) {
	var req models.CreateBillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	sent, err := h.rooms.SendBill(router.BillRequest{
		Content:          req.Content,
		TotalAmount:      req.TotalAmount,
		ParticipantCount: req.ParticipantCount,
		AccountNumber:    req.AccountNumber,
		BankName:         req.BankName,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message": sent,
	})
}

// SetFocus records whether the room is on screen
// PUT /api/v1/rooms/current/focus
func (h *RoomHandler) SetFocus(c *gin.Context) {
	var req models.FocusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	h.rooms.SetFocused(*req.Focused)
	c.JSON(http.StatusOK, gin.H{
		"status": h.rooms.Status(),
	})
}
