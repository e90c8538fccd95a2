package websocket

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/guided-traffic/meetup-client/models"
)

// State of a room session
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateReconnecting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateConnecting:
		return "CONNECTING"
	case StateOpen:
		return "OPEN"
	case StateReconnecting:
		return "RECONNECTING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// MarshalText renders the state name in JSON responses
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// SessionOptions configures a room session
type SessionOptions struct {
	Dialer         Dialer
	ConnectTimeout time.Duration
	QueueSize      int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	Jitter         float64

	// MaxRetries is the number of consecutive failed attempts after which
	// the room is reported offline. 0 retries forever.
	MaxRetries int

	// OnFrame runs on the session loop for every inbound frame
	OnFrame func(s *Session, data []byte)

	// OnEvent receives lifecycle events in order on a dispatch goroutine
	OnEvent func(Event)
}

type outbound struct {
	data     []byte
	critical bool
}

type inboundFrame struct {
	data []byte
}

type connError struct {
	gen uint64
	err error
}

type dialResult struct {
	gen  uint64
	conn Conn
	err  error
}

// Session is the transport session of one room. Every state change, frame
// and queued send is handled on a single loop goroutine.
type Session struct {
	roomID  int64
	opts    SessionOptions
	state   atomic.Int32
	ctx     context.Context
	cancel  context.CancelFunc
	cmds    chan func()
	frames  chan inboundFrame
	errs    chan connError
	dialed  chan dialResult
	done    chan struct{}
	events  *dispatcher
	closing sync.Once

	// owned by the loop
	conn     Conn
	gen      uint64
	queue    []outbound
	backoff  *Backoff
	retries  int
	timer    *time.Timer
	timerC   <-chan time.Time
	stopping bool
}

// NewSession creates an IDLE session for roomID and starts its loop
func NewSession(roomID int64, opts SessionOptions) *Session {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 100
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 10 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		roomID:  roomID,
		opts:    opts,
		ctx:     ctx,
		cancel:  cancel,
		cmds:    make(chan func()),
		frames:  make(chan inboundFrame, 64),
		errs:    make(chan connError),
		dialed:  make(chan dialResult),
		done:    make(chan struct{}),
		events:  newDispatcher(opts.OnEvent),
		backoff: NewBackoff(opts.BaseDelay, opts.MaxDelay, opts.Jitter),
	}
	go s.events.run()
	go s.run()
	return s
}

// RoomID returns the room this session belongs to
func (s *Session) RoomID() int64 {
	return s.roomID
}

// State returns the current state
func (s *Session) State() State {
	return State(s.state.Load())
}

// QueueLen returns the number of sends waiting for an open connection
func (s *Session) QueueLen() int {
	n := 0
	_ = s.Do(func() { n = len(s.queue) })
	return n
}

// Connect starts connecting from IDLE or CLOSED. It is a no-op while a
// connection is open or being established.
func (s *Session) Connect() error {
	return s.call(func() error {
		switch s.State() {
		case StateIdle, StateClosed:
			s.retries = 0
			s.backoff.Reset()
			s.setState(StateConnecting)
			s.dial()
		}
		return nil
	})
}

// Send transmits data immediately when OPEN and queues it while
// CONNECTING or RECONNECTING. A critical message is never dropped from the
// queue on overflow.
func (s *Session) Send(data []byte, critical bool) error {
	return s.SendTracked(data, critical, nil)
}

// SendTracked is Send with a hook that runs on the session loop once the
// message is accepted, before any later inbound frame is handled. It lets
// the caller record a pending copy that an acknowledgment can replace.
func (s *Session) SendTracked(data []byte, critical bool, accepted func()) error {
	return s.call(func() error {
		switch s.State() {
		case StateOpen:
			s.drainFrames()
			if accepted != nil {
				accepted()
			}
			if err := s.conn.WriteMessage(data); err != nil {
				s.queue = append(s.queue, outbound{data: data, critical: critical})
				s.fail(fmt.Errorf("write: %w", err))
			}
			return nil
		case StateConnecting, StateReconnecting:
			if err := s.enqueue(outbound{data: data, critical: critical}); err != nil {
				return err
			}
			if accepted != nil {
				accepted()
			}
			return nil
		default:
			return models.ErrNotConnected
		}
	})
}

// Do runs fn on the session loop, serialized with inbound frame handling
func (s *Session) Do(fn func()) error {
	return s.call(func() error {
		fn()
		return nil
	})
}

// Emit hands an event to subscribers, in order with lifecycle events
func (s *Session) Emit(ev Event) {
	ev.RoomID = s.roomID
	s.events.push(ev)
}

// Close tears the session down: queued sends are flushed when the
// connection is open, the reconnect timer is cancelled and the state
// becomes CLOSED. Sends that could not be flushed are reported with an
// EventWarning wrapping ErrNotConnected. No event is delivered after Close
// returns. Close must not be called from an event callback.
func (s *Session) Close() {
	s.closing.Do(func() {
		_ = s.call(func() error {
			if s.State() == StateOpen {
				s.drainFrames()
				s.flush()
			}
			if dropped := len(s.queue); dropped > 0 {
				critical := 0
				for _, q := range s.queue {
					if q.critical {
						critical++
					}
				}
				s.queue = nil
				log.Printf("WebSocket: room %d closed with %d queued messages unsent (%d critical)", s.roomID, dropped, critical)
				s.Emit(Event{Type: EventWarning, Err: fmt.Errorf("%d queued messages not sent (%d critical): %w", dropped, critical, models.ErrNotConnected)})
			}
			s.stopTimer()
			s.cancel()
			if s.conn != nil {
				s.conn.Close()
				s.conn = nil
			}
			s.gen++
			s.setState(StateClosed)
			s.stopping = true
			return nil
		})
		<-s.done
		s.events.stop()
	})
}

func (s *Session) call(fn func() error) error {
	reply := make(chan error, 1)
	select {
	case s.cmds <- func() { reply <- fn() }:
	case <-s.done:
		return models.ErrNotConnected
	}
	return <-reply
}

func (s *Session) run() {
	defer close(s.done)
	defer s.cancel()

	for {
		select {
		case cmd := <-s.cmds:
			cmd()
			if s.stopping {
				return
			}

		case f := <-s.frames:
			s.handleFrame(f)

		case e := <-s.errs:
			if e.gen != s.gen || s.State() != StateOpen {
				continue
			}
			if isUnexpectedClose(e.err) {
				log.Printf("WebSocket: room %d read error: %v", s.roomID, e.err)
			}
			s.fail(fmt.Errorf("read: %w", e.err))

		case r := <-s.dialed:
			s.handleDial(r)

		case <-s.timerC:
			s.timer = nil
			s.timerC = nil
			if s.State() == StateReconnecting {
				log.Printf("WebSocket: room %d reconnect attempt %d", s.roomID, s.retries)
				s.dial()
			}
		}
	}
}

// handleFrame delivers a received frame. Frames still buffered from a
// connection that has since failed are delivered too: they were received
// before the failure. Only a closed session drops them.
func (s *Session) handleFrame(f inboundFrame) {
	if s.State() == StateClosed || s.opts.OnFrame == nil {
		return
	}
	s.opts.OnFrame(s, f.data)
}

// drainFrames processes every inbound frame already received so that
// inbound processing completes before a local send goes out
func (s *Session) drainFrames() {
	for {
		select {
		case f := <-s.frames:
			s.handleFrame(f)
		default:
			return
		}
	}
}

func (s *Session) dial() {
	s.gen++
	gen := s.gen
	roomID := s.roomID
	dialer := s.opts.Dialer
	timeout := s.opts.ConnectTimeout
	parent := s.ctx

	go func() {
		ctx, cancel := context.WithTimeout(parent, timeout)
		defer cancel()

		conn, err := dialer.Dial(ctx, roomID)
		if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%w: connect after %s: %v", models.ErrTimeout, timeout, err)
		}

		select {
		case s.dialed <- dialResult{gen: gen, conn: conn, err: err}:
		case <-s.done:
			if conn != nil {
				conn.Close()
			}
		}
	}()
}

func (s *Session) handleDial(r dialResult) {
	state := s.State()
	if r.gen != s.gen || (state != StateConnecting && state != StateReconnecting) {
		if r.conn != nil {
			r.conn.Close()
		}
		return
	}
	if r.err != nil {
		log.Printf("WebSocket: room %d connect failed: %v", s.roomID, r.err)
		s.fail(r.err)
		return
	}

	s.conn = r.conn
	s.retries = 0
	s.backoff.Reset()
	go s.readPump(r.gen, r.conn)

	s.setState(StateOpen)
	log.Printf("WebSocket: room %d connected", s.roomID)
	s.drainFrames()
	s.flush()
}

// readPump forwards frames from one connection to the loop
func (s *Session) readPump(gen uint64, conn Conn) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			select {
			case s.errs <- connError{gen: gen, err: err}:
			case <-s.done:
			}
			return
		}
		select {
		case s.frames <- inboundFrame{data: data}:
		case <-s.done:
			return
		}
	}
}

// flush writes queued sends in FIFO order. A write failure keeps the
// unsent remainder queued and starts reconnecting.
func (s *Session) flush() {
	for len(s.queue) > 0 {
		next := s.queue[0]
		if err := s.conn.WriteMessage(next.data); err != nil {
			s.fail(fmt.Errorf("flush: %w", err))
			return
		}
		s.queue = s.queue[1:]
	}
	s.queue = nil
}

func (s *Session) enqueue(out outbound) error {
	if len(s.queue) < s.opts.QueueSize {
		s.queue = append(s.queue, out)
		return nil
	}

	for i, q := range s.queue {
		if !q.critical {
			s.queue = append(s.queue[:i:i], s.queue[i+1:]...)
			s.queue = append(s.queue, out)
			log.Printf("WebSocket: room %d send queue full, dropped oldest non-critical message", s.roomID)
			s.Emit(Event{Type: EventWarning, Err: fmt.Errorf("dropped oldest queued message: %w", models.ErrQueueFull)})
			return nil
		}
	}

	if out.critical {
		s.queue = append(s.queue, out)
		log.Printf("WebSocket: room %d send queue over capacity (%d) with critical messages", s.roomID, len(s.queue))
		s.Emit(Event{Type: EventWarning, Err: fmt.Errorf("queue over capacity: %w", models.ErrQueueFull)})
		return nil
	}

	s.Emit(Event{Type: EventWarning, Err: fmt.Errorf("message rejected: %w", models.ErrQueueFull)})
	return models.ErrQueueFull
}

// fail handles a transport failure: the connection is dropped and a
// reconnect is scheduled, or the room goes offline once retries run out
func (s *Session) fail(err error) {
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.gen++
	s.retries++

	if s.opts.MaxRetries > 0 && s.retries > s.opts.MaxRetries {
		dropped := len(s.queue)
		s.queue = nil
		s.retries = 0
		s.backoff.Reset()
		log.Printf("WebSocket: room %d offline after %d attempts, %d queued messages failed", s.roomID, s.opts.MaxRetries+1, dropped)
		s.setState(StateClosed)
		s.Emit(Event{Type: EventOffline, Err: fmt.Errorf("%w: %w", models.ErrNotConnected, err)})
		return
	}

	s.setState(StateReconnecting)
	delay := s.backoff.Next()
	log.Printf("WebSocket: room %d reconnecting in %s: %v", s.roomID, delay, err)
	s.stopTimer()
	s.timer = time.NewTimer(delay)
	s.timerC = s.timer.C
}

func (s *Session) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = nil
	s.timerC = nil
}

func (s *Session) setState(state State) {
	prev := State(s.state.Swap(int32(state)))
	if prev == state {
		return
	}
	s.Emit(Event{Type: EventStateChanged, State: state})
}

// dispatcher delivers events in order on its own goroutine so that a
// callback may call back into the session without blocking the loop
type dispatcher struct {
	mu    sync.Mutex
	queue []Event
	sink  func(Event)
	wake  chan struct{}
	quit  chan struct{}
	done  chan struct{}
}

func newDispatcher(sink func(Event)) *dispatcher {
	return &dispatcher{
		sink: sink,
		wake: make(chan struct{}, 1),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
}

func (d *dispatcher) push(ev Event) {
	d.mu.Lock()
	if d.sink == nil {
		d.mu.Unlock()
		return
	}
	d.queue = append(d.queue, ev)
	d.mu.Unlock()
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *dispatcher) run() {
	defer close(d.done)
	for {
		select {
		case <-d.wake:
			d.deliver()
		case <-d.quit:
			d.deliver()
			return
		}
	}
}

func (d *dispatcher) deliver() {
	for {
		d.mu.Lock()
		evs := d.queue
		sink := d.sink
		d.queue = nil
		d.mu.Unlock()
		if len(evs) == 0 || sink == nil {
			return
		}
		for _, ev := range evs {
			sink(ev)
		}
	}
}

// stop delivers what is queued, then waits for the goroutine to exit.
// Events pushed afterwards are discarded.
func (d *dispatcher) stop() {
	close(d.quit)
	<-d.done
	d.mu.Lock()
	d.sink = nil
	d.queue = nil
	d.mu.Unlock()
}
