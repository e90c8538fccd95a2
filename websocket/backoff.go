package websocket

import (
	"math/rand"
	"time"
)

// Backoff produces reconnect delays: exponential from Base, capped at
// Max, with up to Jitter (a fraction of the delay) added at random so
// that many clients dropped together do not reconnect together.
// Successive delays never decrease until Reset.
type Backoff struct {
	Base   time.Duration
	Max    time.Duration
	Jitter float64

	rand    func() float64
	attempt int
	last    time.Duration
}

// NewBackoff creates a backoff with the given bounds
func NewBackoff(base, max time.Duration, jitter float64) *Backoff {
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	if max < base {
		max = base
	}
	if jitter < 0 {
		jitter = 0
	}
	if jitter > 1 {
		jitter = 1
	}
	return &Backoff{
		Base:   base,
		Max:    max,
		Jitter: jitter,
		rand:   rand.Float64,
	}
}

// Next returns the delay before the next attempt
func (b *Backoff) Next() time.Duration {
	delay := b.Base
	for i := 0; i < b.attempt && delay < b.Max; i++ {
		delay *= 2
	}
	if delay > b.Max {
		delay = b.Max
	}

	if b.Jitter > 0 {
		delay += time.Duration(b.rand() * b.Jitter * float64(delay))
		if delay > b.Max {
			delay = b.Max
		}
	}
	if delay < b.last {
		delay = b.last
	}

	b.last = delay
	b.attempt++
	return delay
}

// Attempts returns how many delays were handed out since the last reset
func (b *Backoff) Attempts() int {
	return b.attempt
}

// Reset starts over from Base, called once a connection is open again
func (b *Backoff) Reset() {
	b.attempt = 0
	b.last = 0
}
