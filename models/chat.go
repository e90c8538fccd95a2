package models

// MessageType is the wire discriminant of a chat frame
type MessageType string

const (
	// MessageTypeTalk is plain display text
	MessageTypeTalk MessageType = "TALK"
	// MessageTypeImage carries a resource reference in its content
	MessageTypeImage MessageType = "IMAGE"
	// MessageTypePoll carries PollMetadata
	MessageTypePoll MessageType = "POLL"
	// MessageTypeBill carries a BillSplit
	MessageTypeBill MessageType = "BILL"
	// MessageTypeLocation carries LocationMetadata
	MessageTypeLocation MessageType = "LOCATION"
	// MessageTypeNotice is system-originated and never has a sender
	MessageTypeNotice MessageType = "NOTICE"
)

// AnonymousName is shown when a sender has no display name
const AnonymousName = "anonymous"

// Valid reports whether t is one of the six known variants
func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeTalk, MessageTypeImage, MessageTypePoll, MessageTypeBill, MessageTypeLocation, MessageTypeNotice:
		return true
	}
	return false
}

// Critical reports whether a queued message of this type may never be dropped on overflow
func (t MessageType) Critical() bool {
	return t == MessageTypeBill || t == MessageTypeNotice
}

// ChatMessage is a single message of a room, as held by the message store
type ChatMessage struct {
	ID          *int64      `json:"id,omitempty"`          // Server-assigned, nil until acknowledged
	ClientToken string      `json:"clientToken,omitempty"` // Correlates an optimistic send with its ack
	SenderEmail string      `json:"senderEmail,omitempty"`
	SenderName  string      `json:"senderName,omitempty"`
	Content     string      `json:"content"`
	RoomID      int64       `json:"roomId"`
	CreatedAt   string      `json:"createdAt"` // ISO-8601 as sent by the server
	Type        MessageType `json:"type"`
	UnreadCount *int        `json:"unreadCount,omitempty"`
	Metadata    Metadata    `json:"metadata,omitempty"`
}

// DisplayName returns the sender name or the anonymous fallback
func (m *ChatMessage) DisplayName() string {
	if m.SenderName == "" {
		return AnonymousName
	}
	return m.SenderName
}

// Acknowledged reports whether the server has assigned an id
func (m *ChatMessage) Acknowledged() bool {
	return m.ID != nil
}

// Bill returns the bill payload of a BILL message
func (m *ChatMessage) Bill() (BillSplit, bool) {
	b, ok := m.Metadata.(BillSplit)
	return b, ok
}

// ChatRoomInfo describes the room currently entered
type ChatRoomInfo struct {
	RoomID           int64  `json:"roomId"`
	Name             string `json:"name"`
	ParticipantCount int    `json:"participantCount"`
	PinnedNotice     string `json:"pinnedNotice,omitempty"`
}

// RoomContext is the session-scoped state handed to the connection
// manager and the message store when a room is entered. A new one is
// created per room entry; nothing about it is shared across rooms.
type RoomContext struct {
	RoomID    int64
	SelfEmail string
	SelfName  string
}
