package store

import (
	"github.com/guided-traffic/meetup-client/models"
)

// MessageStore is the ordered history of the active room. Order is the
// order in which messages reached the store, never their timestamps.
//
// The store is not safe for concurrent use. It is owned by the room's
// session loop, which serializes every append, reset and read.
type MessageStore struct {
	roomID   int64
	messages []models.ChatMessage
	byID     map[int64]int
	byToken  map[string]int
	focused  bool
	unread   int
}

// New creates an empty store for the room in rc
func New(rc models.RoomContext) *MessageStore {
	s := &MessageStore{}
	s.Reset(rc.RoomID)
	return s
}

// RoomID returns the room this history belongs to
func (s *MessageStore) RoomID() int64 {
	return s.roomID
}

// Append adds an inbound message. It is a no-op when the id is already
// present. An acknowledgment whose client token matches a pending local
// message replaces that message in place. Returns true if the history
// changed.
func (s *MessageStore) Append(msg models.ChatMessage) bool {
	if msg.ID != nil {
		if _, ok := s.byID[*msg.ID]; ok {
			return false
		}
	}

	if msg.ClientToken != "" {
		if idx, ok := s.byToken[msg.ClientToken]; ok {
			if s.messages[idx].ID != nil || msg.ID == nil {
				return false
			}
			s.messages[idx] = msg
			s.byID[*msg.ID] = idx
			return true
		}
	}

	s.push(msg)
	if !s.focused {
		s.unread++
	}
	return true
}

// AddPending adds a locally sent message that the server has not
// acknowledged yet. It does not touch the unread counter. A token that is
// already known (for example because the ack won the race) is ignored.
func (s *MessageStore) AddPending(msg models.ChatMessage) bool {
	if msg.ClientToken == "" {
		return false
	}
	if _, ok := s.byToken[msg.ClientToken]; ok {
		return false
	}
	s.push(msg)
	return true
}

func (s *MessageStore) push(msg models.ChatMessage) {
	idx := len(s.messages)
	s.messages = append(s.messages, msg)
	if msg.ID != nil {
		s.byID[*msg.ID] = idx
	}
	if msg.ClientToken != "" {
		s.byToken[msg.ClientToken] = idx
	}
}

// Messages returns a copy of the ordered history
func (s *MessageStore) Messages() []models.ChatMessage {
	out := make([]models.ChatMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

// Len returns the number of messages held
func (s *MessageStore) Len() int {
	return len(s.messages)
}

// Reset clears the whole history and binds the store to roomID
func (s *MessageStore) Reset(roomID int64) {
	s.roomID = roomID
	s.messages = nil
	s.byID = make(map[int64]int)
	s.byToken = make(map[string]int)
	s.unread = 0
}

// SetFocused marks whether the room is on screen. Regaining focus clears
// the unread counter.
func (s *MessageStore) SetFocused(focused bool) {
	s.focused = focused
	if focused {
		s.unread = 0
	}
}

// Focused reports whether the room is on screen
func (s *MessageStore) Focused() bool {
	return s.focused
}

// Unread returns the number of messages appended while unfocused
func (s *MessageStore) Unread() int {
	return s.unread
}
