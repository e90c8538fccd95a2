package websocket

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/guided-traffic/meetup-client/models"
)

// MessageType defines the type of message pushed to UI clients
type MessageType string

const (
	// MessageTypeChatMessage is sent when the active room's history changes
	MessageTypeChatMessage MessageType = "chat_message"
	// MessageTypeSessionState is sent when the room session changes state
	MessageTypeSessionState MessageType = "session_state"
	// MessageTypeRoomInfo is sent when a notice updates the room info
	MessageTypeRoomInfo MessageType = "room_info"
	// MessageTypeWarning is sent when a queued message was dropped or rejected
	MessageTypeWarning MessageType = "warning"
	// MessageTypeRoomOffline is sent when reconnecting gave up
	MessageTypeRoomOffline MessageType = "room_offline"
	// MessageTypeBadgeUnlocked is sent once per badge unlock
	MessageTypeBadgeUnlocked MessageType = "badge_unlocked"
	// MessageTypeBadgesUpdated is sent after a badge refetch was applied
	MessageTypeBadgesUpdated MessageType = "badges_updated"
)

const (
	// Time to wait for a pong from a UI client
	pongWait = 60 * time.Second

	// Ping interval, must be shorter than pongWait
	pingPeriod = (pongWait * 9) / 10
)

// Message is the envelope pushed to UI clients
type Message struct {
	Type    MessageType `json:"type"`
	Payload interface{} `json:"payload"`
}

// StatePayload reports a session state change
type StatePayload struct {
	RoomID int64 `json:"roomId"`
	State  State `json:"state"`
}

// WarningPayload reports a recoverable problem in a room session
type WarningPayload struct {
	RoomID  int64  `json:"roomId"`
	Message string `json:"message"`
}

// BadgesUpdatedPayload reports how many badges the fresh list holds
type BadgesUpdatedPayload struct {
	Count int `json:"count"`
}

// Client is a connected UI client
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub keeps the set of connected UI clients and broadcasts to them
type Hub struct {
	clients map[*Client]bool

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Broadcast to all clients
	broadcast chan []byte

	done  chan struct{}
	mutex sync.RWMutex

	upgrader websocket.Upgrader
}

// NewHub creates a new Hub. allowedOrigins limits which UI origins may
// open the event stream; empty allows any.
func NewHub(allowedOrigins []string) *Hub {
	h := &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
		done:       make(chan struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, o := range allowedOrigins {
				if o == origin {
					return true
				}
			}
			return false
		},
	}
	return h
}

// Run starts the hub's main loop. It returns when ctx is cancelled,
// disconnecting every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			h.mutex.Unlock()
			log.Printf("WebSocket: UI client connected (%s)", client.conn.RemoteAddr())

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				log.Printf("WebSocket: UI client disconnected (%s)", client.conn.RemoteAddr())
			}
			h.mutex.Unlock()

		case message := <-h.broadcast:
			h.mutex.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Client send buffer full, close connection
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mutex.Unlock()

		case <-ctx.Done():
			h.mutex.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mutex.Unlock()
			return
		}
	}
}

// ConnectedClients returns the number of UI clients
func (h *Hub) ConnectedClients() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// ServeWS upgrades a UI request and starts its pumps
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	client := &Client{hub: h, conn: conn, send: make(chan []byte, 256)}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return nil
	}

	go client.writePump()
	go client.readPump()
	return nil
}

// Relay forwards session events to UI clients. It is meant to be
// registered with Manager.Subscribe.
func (h *Hub) Relay(ev Event) {
	switch ev.Type {
	case EventMessage:
		if ev.Message != nil {
			h.send(MessageTypeChatMessage, ev.Message)
		}
	case EventStateChanged:
		h.send(MessageTypeSessionState, StatePayload{RoomID: ev.RoomID, State: ev.State})
	case EventRoomInfo:
		if ev.RoomInfo != nil {
			h.send(MessageTypeRoomInfo, ev.RoomInfo)
		}
	case EventWarning:
		h.send(MessageTypeWarning, WarningPayload{RoomID: ev.RoomID, Message: errorText(ev.Err)})
	case EventOffline:
		h.send(MessageTypeRoomOffline, WarningPayload{RoomID: ev.RoomID, Message: errorText(ev.Err)})
	}
}

// BroadcastBadgeUnlocked notifies UI clients of a newly unlocked badge
func (h *Hub) BroadcastBadgeUnlocked(badge models.BadgeView) {
	h.send(MessageTypeBadgeUnlocked, badge)
}

// BroadcastBadgesUpdated notifies UI clients that the badge list changed
func (h *Hub) BroadcastBadgesUpdated(count int) {
	h.send(MessageTypeBadgesUpdated, BadgesUpdatedPayload{Count: count})
}

func (h *Hub) send(msgType MessageType, payload interface{}) {
	data, err := json.Marshal(Message{Type: msgType, Payload: payload})
	if err != nil {
		log.Printf("WebSocket: Failed to marshal %s message: %v", msgType, err)
		return
	}
	select {
	case h.broadcast <- data:
	case <-h.done:
	}
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// readPump only watches for the client going away; UI clients do not
// send anything the hub acts on
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if isUnexpectedClose(err) {
				log.Printf("WebSocket: UI client error: %v", err)
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
