package pace

import (
	"time"

	"github.com/sasha-s/go-deadlock"
)

// Ticker drives a simulation loop at a fixed cadence and can be paused.
// While paused the underlying timer keeps running but ticks are swallowed
// instead of delivered, so a client whose tab is hidden stops advancing
// and picks the cadence back up on Resume without rebuilding anything.
type Ticker struct {
	C <-chan time.Time

	out  chan time.Time
	quit chan struct{}

	mutex   deadlock.Mutex
	paused  bool
	stopped bool
}

func NewTicker(d time.Duration) *Ticker {
	out := make(chan time.Time)
	t := &Ticker{
		C:    out,
		out:  out,
		quit: make(chan struct{}),
	}

	go t.run(time.NewTicker(d))

	return t
}

func (t *Ticker) run(src *time.Ticker) {
	defer src.Stop()

	for {
		select {
		case now := <-src.C:
			if t.Paused() {
				continue
			}
			select {
			case t.out <- now:
			case <-t.quit:
				return
			}
		case <-t.quit:
			return
		}
	}
}

// Pause swallows ticks until Resume. Pausing an already-paused or stopped
// ticker is a no-op.
func (t *Ticker) Pause() {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if !t.stopped {
		t.paused = true
	}
}

func (t *Ticker) Resume() {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if !t.stopped {
		t.paused = false
	}
}

func (t *Ticker) Paused() bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.paused
}

// Stop ends delivery for good. Safe to call more than once.
func (t *Ticker) Stop() {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if !t.stopped {
		t.stopped = true
		close(t.quit)
	}
}

func (t *Ticker) Stopped() bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.stopped
}
