package websocket

import (
	"sync"

	"github.com/guided-traffic/meetup-client/models"
)

// EventType identifies what a listener is told about
type EventType string

const (
	EventStateChanged EventType = "state_changed"
	EventMessage      EventType = "message"
	EventWarning      EventType = "warning"
	EventOffline      EventType = "offline"
	EventRoomInfo     EventType = "room_info"
)

// Event is delivered to subscribers. Only the fields relevant to Type are set.
type Event struct {
	Type     EventType
	RoomID   int64
	State    State
	Message  *models.ChatMessage
	RoomInfo *models.ChatRoomInfo
	Err      error
}

// Subscription is a registered listener. Cancel blocks until a callback
// that is already running has returned, after which the listener is never
// invoked again. Cancel must not be called from inside its own callback.
type Subscription struct {
	mu        sync.Mutex
	fn        func(Event)
	cancelled bool
	hub       *listeners
}

// Cancel stops delivery to this listener
func (s *Subscription) Cancel() {
	s.hub.remove(s)
	s.mu.Lock()
	s.cancelled = true
	s.mu.Unlock()
}

func (s *Subscription) deliver(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelled {
		return
	}
	s.fn(ev)
}

// listeners fans events out to subscriptions in registration order
type listeners struct {
	mu     sync.Mutex
	subs   []*Subscription
	sealed bool
}

func (l *listeners) add(fn func(Event)) *Subscription {
	sub := &Subscription{fn: fn, hub: l}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sealed {
		sub.cancelled = true
		return sub
	}
	l.subs = append(l.subs, sub)
	return sub
}

func (l *listeners) remove(sub *Subscription) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, s := range l.subs {
		if s == sub {
			l.subs = append(l.subs[:i:i], l.subs[i+1:]...)
			return
		}
	}
}

func (l *listeners) emit(ev Event) {
	l.mu.Lock()
	if l.sealed {
		l.mu.Unlock()
		return
	}
	subs := make([]*Subscription, len(l.subs))
	copy(subs, l.subs)
	l.mu.Unlock()

	for _, s := range subs {
		s.deliver(ev)
	}
}

// seal cancels every subscription and refuses new ones. It waits for
// callbacks that are in flight.
func (l *listeners) seal() {
	l.mu.Lock()
	l.sealed = true
	subs := l.subs
	l.subs = nil
	l.mu.Unlock()

	for _, s := range subs {
		s.mu.Lock()
		s.cancelled = true
		s.mu.Unlock()
	}
}
