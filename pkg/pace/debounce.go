package pace

import (
	"time"

	"github.com/sasha-s/go-deadlock"
)

// Debouncer coalesces bursts of values into a single emission: every
// Schedule resets the quiet window, and once `wait` passes with no further
// calls the sink receives the most recent value. Nothing is ever dropped,
// only superseded.
type Debouncer[T any] struct {
	mutex deadlock.Mutex

	clock Clock
	wait  time.Duration
	sink  func(T)

	pending    T
	hasPending bool
	timer      Timer
	generation uint64
}

func NewDebouncer[T any](clock Clock, wait time.Duration, sink func(T)) *Debouncer[T] {
	return &Debouncer[T]{
		clock: clock,
		wait:  wait,
		sink:  sink,
	}
}

// Schedule records v as the value to emit and restarts the quiet window.
func (d *Debouncer[T]) Schedule(v T) {
	d.mutex.Lock()
	d.pending = v
	d.hasPending = true
	d.generation++
	generation := d.generation
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = d.clock.AfterFunc(d.wait, func() {
		d.fire(generation)
	})
	d.mutex.Unlock()
}

func (d *Debouncer[T]) fire(generation uint64) {
	d.mutex.Lock()
	if generation != d.generation || !d.hasPending {
		d.mutex.Unlock()
		return
	}
	v := d.pending
	d.hasPending = false
	d.timer = nil
	d.mutex.Unlock()

	d.sink(v)
}

// Flush emits the pending value immediately, if there is one. It reports
// whether anything was emitted.
func (d *Debouncer[T]) Flush() bool {
	d.mutex.Lock()
	if !d.hasPending {
		d.mutex.Unlock()
		return false
	}
	d.generation++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	v := d.pending
	d.hasPending = false
	d.mutex.Unlock()

	d.sink(v)
	return true
}

// Cancel drops any pending value. A timer callback already in flight when
// Cancel returns will observe the bumped generation and do nothing.
func (d *Debouncer[T]) Cancel() {
	d.mutex.Lock()
	d.generation++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	var zero T
	d.pending = zero
	d.hasPending = false
	d.mutex.Unlock()
}

// Pending reports whether a value is waiting to be emitted.
func (d *Debouncer[T]) Pending() bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.hasPending
}
