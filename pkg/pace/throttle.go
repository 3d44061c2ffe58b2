package pace

import (
	"time"

	"github.com/sasha-s/go-deadlock"
)

// Throttler paces a continuous stream of values. The first value of a burst
// goes out after a short fastDelay; while the stream keeps producing, sends
// settle onto a minInterval cadence measured from the previous send. The
// most recent value always wins the slot, so the sink converges on the
// latest state even though intermediate values are coalesced.
type Throttler[T any] struct {
	mutex deadlock.Mutex

	clock       Clock
	minInterval time.Duration
	fastDelay   time.Duration
	sink        func(T)

	pending    T
	hasPending bool
	timer      Timer
	generation uint64
	lastSentAt time.Time
}

func NewThrottler[T any](clock Clock, minInterval, fastDelay time.Duration, sink func(T)) *Throttler[T] {
	return &Throttler[T]{
		clock:       clock,
		minInterval: minInterval,
		fastDelay:   fastDelay,
		sink:        sink,
	}
}

// Schedule records v as the next value to send. If a send is already
// scheduled, v simply replaces its payload; otherwise the send is scheduled
// fastDelay from now, pushed out as needed so that consecutive sends stay at
// least minInterval apart.
func (t *Throttler[T]) Schedule(v T) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.pending = v
	t.hasPending = true
	if t.timer != nil {
		return
	}

	now := t.clock.Now()
	delay := t.fastDelay
	if !t.lastSentAt.IsZero() {
		if next := t.lastSentAt.Add(t.minInterval); next.After(now.Add(delay)) {
			delay = next.Sub(now)
		}
	}

	t.generation++
	generation := t.generation
	t.timer = t.clock.AfterFunc(delay, func() {
		t.fire(generation)
	})
}

func (t *Throttler[T]) fire(generation uint64) {
	t.mutex.Lock()
	if generation != t.generation || !t.hasPending {
		t.mutex.Unlock()
		return
	}
	v := t.pending
	t.hasPending = false
	t.timer = nil
	t.lastSentAt = t.clock.Now()
	t.mutex.Unlock()

	t.sink(v)
}

// Cancel drops any scheduled send.
func (t *Throttler[T]) Cancel() {
	t.mutex.Lock()
	t.generation++
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	var zero T
	t.pending = zero
	t.hasPending = false
	t.mutex.Unlock()
}

// Pending reports whether a send is currently scheduled.
func (t *Throttler[T]) Pending() bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.hasPending
}
