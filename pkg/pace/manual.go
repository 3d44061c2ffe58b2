package pace

import (
	"time"

	"github.com/sasha-s/go-deadlock"
)

// ManualClock is a Clock whose time only moves when Advance is called.
// Due callbacks run synchronously inside Advance, in deadline order, which
// keeps debounce and throttle tests free of real timers and sleeps.
type ManualClock struct {
	mutex  deadlock.Mutex
	now    time.Time
	timers []*manualTimer
}

type manualTimer struct {
	clock    *ManualClock
	deadline time.Time
	fn       func()
	fired    bool
	stopped  bool
}

func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() time.Time {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.now
}

func (c *ManualClock) AfterFunc(d time.Duration, fn func()) Timer {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	t := &manualTimer{
		clock:    c,
		deadline: c.now.Add(d),
		fn:       fn,
	}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves the clock forward by d, firing every timer whose deadline is
// reached along the way. Callbacks run with the clock set to their deadline
// and may schedule further timers, which also fire if they land within d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mutex.Lock()
	target := c.now.Add(d)
	for {
		var next *manualTimer
		for _, t := range c.timers {
			if t.fired || t.stopped || t.deadline.After(target) {
				continue
			}
			if next == nil || t.deadline.Before(next.deadline) {
				next = t
			}
		}
		if next == nil {
			break
		}
		if next.deadline.After(c.now) {
			c.now = next.deadline
		}
		next.fired = true
		fn := next.fn
		c.mutex.Unlock()
		fn()
		c.mutex.Lock()
	}
	c.now = target
	c.mutex.Unlock()
}

func (t *manualTimer) Stop() bool {
	t.clock.mutex.Lock()
	defer t.clock.mutex.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}
