package websocket

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/guided-traffic/meetup-client/models"
	"github.com/guided-traffic/meetup-client/router"
	"github.com/guided-traffic/meetup-client/store"
)

// RoomInfoFetcher loads room details when a room is entered
type RoomInfoFetcher interface {
	GetRoom(ctx context.Context, roomID int64) (*models.ChatRoomInfo, error)
}

// Status is a snapshot of the active room session
type Status struct {
	RoomID    int64 `json:"roomId,omitempty"`
	State     State `json:"state"`
	QueueLen  int   `json:"queueLength"`
	Unread    int   `json:"unreadCount"`
	Focused   bool  `json:"focused"`
	Connected bool  `json:"connected"`
}

// Manager owns the session of the one room the user is in. Entering
// another room closes the previous session before the next one opens.
type Manager struct {
	opts      SessionOptions
	router    *router.Router
	rooms     RoomInfoFetcher
	listeners *listeners
	focused   atomic.Bool
	now       func() time.Time
	newToken  func() string

	switching sync.Mutex // serializes Enter and Leave
	mu        sync.RWMutex
	active    *activeRoom
}

// activeRoom groups what belongs to one room entry. store and info are
// owned by the session loop.
type activeRoom struct {
	rc      models.RoomContext
	session *Session
	store   *store.MessageStore
	info    models.ChatRoomInfo
}

// NewManager creates a manager. rooms may be nil.
func NewManager(opts SessionOptions, r *router.Router, rooms RoomInfoFetcher) *Manager {
	if r == nil {
		r = router.New()
	}
	return &Manager{
		opts:      opts,
		router:    r,
		rooms:     rooms,
		listeners: &listeners{},
		now:       time.Now,
		newToken:  uuid.NewString,
	}
}

// Subscribe registers fn for events of every room entered from now on
func (m *Manager) Subscribe(fn func(Event)) *Subscription {
	return m.listeners.add(fn)
}

// Enter switches to the room in rc. The previous session is closed
// gracefully first, then room info is fetched (best effort) and the new
// session starts connecting.
func (m *Manager) Enter(ctx context.Context, rc models.RoomContext) error {
	m.switching.Lock()
	defer m.switching.Unlock()

	m.closeActive()

	room := &activeRoom{
		rc:    rc,
		store: store.New(rc),
		info:  models.ChatRoomInfo{RoomID: rc.RoomID},
	}
	room.store.SetFocused(m.focused.Load())

	if m.rooms != nil {
		info, err := m.rooms.GetRoom(ctx, rc.RoomID)
		if err != nil {
			log.Printf("Chat: Failed to load room %d info: %v", rc.RoomID, err)
		} else if info != nil {
			room.info = *info
			room.info.RoomID = rc.RoomID
		}
	}

	opts := m.opts
	opts.OnFrame = func(s *Session, data []byte) {
		m.handleFrame(room, s, data)
	}
	opts.OnEvent = m.listeners.emit
	room.session = NewSession(rc.RoomID, opts)

	m.mu.Lock()
	m.active = room
	m.mu.Unlock()

	log.Printf("Chat: Entered room %d", rc.RoomID)
	return room.session.Connect()
}

// Leave closes the active session. Queued sends are flushed if the
// connection is open.
func (m *Manager) Leave() {
	m.switching.Lock()
	defer m.switching.Unlock()
	m.closeActive()
}

// Close leaves the room and cancels every subscription
func (m *Manager) Close() {
	m.Leave()
	m.listeners.seal()
}

func (m *Manager) closeActive() {
	m.mu.Lock()
	room := m.active
	m.active = nil
	m.mu.Unlock()

	if room != nil {
		room.session.Close()
		log.Printf("Chat: Left room %d", room.rc.RoomID)
	}
}

func (m *Manager) current() *activeRoom {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active
}

// Reconnect restarts a session that went offline
func (m *Manager) Reconnect() error {
	room := m.current()
	if room == nil {
		return models.ErrNotConnected
	}
	return room.session.Connect()
}

// handleFrame is the serialized inbound path: route, append, notify
func (m *Manager) handleFrame(room *activeRoom, s *Session, data []byte) {
	msg, err := m.router.Route(data)
	if err != nil {
		log.Printf("Chat: Dropped frame in room %d: %v", room.rc.RoomID, err)
		return
	}
	if msg.RoomID != room.rc.RoomID {
		log.Printf("Chat: Dropped message for room %d received in room %d", msg.RoomID, room.rc.RoomID)
		return
	}

	if notice, ok := msg.Metadata.(models.NoticeMetadata); ok && applyNotice(&room.info, notice) {
		info := room.info
		s.Emit(Event{Type: EventRoomInfo, RoomInfo: &info})
	}

	if room.store.Append(msg) {
		s.Emit(Event{Type: EventMessage, Message: &msg})
	}
}

// applyNotice updates room info from a notice and reports whether it changed
func applyNotice(info *models.ChatRoomInfo, notice models.NoticeMetadata) bool {
	switch notice.Event {
	case models.NoticeEventParticipantCount:
		if notice.ParticipantCount == nil || *notice.ParticipantCount < 0 || *notice.ParticipantCount == info.ParticipantCount {
			return false
		}
		info.ParticipantCount = *notice.ParticipantCount
		return true
	case models.NoticeEventPinnedNotice:
		if notice.Notice == info.PinnedNotice {
			return false
		}
		info.PinnedNotice = notice.Notice
		return true
	}
	return false
}

// Send stamps msg with the room, the sender and a client token, then
// hands it to the session. The returned copy is the pending local
// message that the acknowledgment will replace.
func (m *Manager) Send(msg models.ChatMessage) (models.ChatMessage, error) {
	room := m.current()
	if room == nil {
		return models.ChatMessage{}, models.ErrNotConnected
	}

	msg.ID = nil
	msg.RoomID = room.rc.RoomID
	msg.SenderEmail = room.rc.SelfEmail
	msg.SenderName = room.rc.SelfName
	msg.ClientToken = m.newToken()
	msg.CreatedAt = m.now().UTC().Format(time.RFC3339)
	msg.UnreadCount = nil

	data, err := m.router.Encode(msg)
	if err != nil {
		return models.ChatMessage{}, err
	}

	err = room.session.SendTracked(data, msg.Type.Critical(), func() {
		if room.store.AddPending(msg) {
			pending := msg
			room.session.Emit(Event{Type: EventMessage, Message: &pending})
		}
	})
	if err != nil {
		return models.ChatMessage{}, err
	}
	return msg, nil
}

// SendBill builds a bill with the split frozen at creation and sends it
func (m *Manager) SendBill(req router.BillRequest) (models.ChatMessage, error) {
	msg, err := m.router.NewBill(req)
	if err != nil {
		return models.ChatMessage{}, err
	}
	return m.Send(msg)
}

// Messages returns the history of the active room
func (m *Manager) Messages() ([]models.ChatMessage, error) {
	room := m.current()
	if room == nil {
		return nil, models.ErrNotConnected
	}
	var msgs []models.ChatMessage
	if err := room.session.Do(func() { msgs = room.store.Messages() }); err != nil {
		return nil, err
	}
	return msgs, nil
}

// RoomInfo returns the info of the active room
func (m *Manager) RoomInfo() (models.ChatRoomInfo, error) {
	room := m.current()
	if room == nil {
		return models.ChatRoomInfo{}, models.ErrNotConnected
	}
	var info models.ChatRoomInfo
	if err := room.session.Do(func() { info = room.info }); err != nil {
		return models.ChatRoomInfo{}, err
	}
	return info, nil
}

// SetFocused records whether the room is on screen. The flag carries
// over to rooms entered later.
func (m *Manager) SetFocused(focused bool) {
	m.focused.Store(focused)
	room := m.current()
	if room == nil {
		return
	}
	// a closed session has no store to update
	_ = room.session.Do(func() { room.store.SetFocused(focused) })
}

// Status reports the active session's state
func (m *Manager) Status() Status {
	room := m.current()
	if room == nil {
		return Status{State: StateIdle, Focused: m.focused.Load()}
	}
	st := Status{
		RoomID:  room.rc.RoomID,
		State:   room.session.State(),
		Focused: m.focused.Load(),
	}
	_ = room.session.Do(func() {
		st.QueueLen = len(room.session.queue)
		st.Unread = room.store.Unread()
	})
	st.Connected = st.State == StateOpen
	return st
}
