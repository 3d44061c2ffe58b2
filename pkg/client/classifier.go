package client

import (
	"math"
	"time"

	"github.com/strafehq/strafe/pkg/game"
	"github.com/strafehq/strafe/pkg/pace"
)

// Verdict is the classifier's decision for one inbound player update.
type Verdict int

const (
	// ApplyFirst is the first sighting of an id.
	ApplyFirst Verdict = iota
	// ApplySignificant means position, stance, or health moved enough.
	ApplySignificant
	// ApplyStale means nothing changed but the last applied update is old
	// enough that we re-apply anyway, so a degenerate stream of
	// insignificant updates can never freeze an entity.
	ApplyStale
	// DropNoise is an insignificant update inside the noise window.
	DropNoise
	// DropInsignificant is an insignificant update past the noise window
	// but not yet stale.
	DropInsignificant
)

func (v Verdict) Apply() bool {
	return v == ApplyFirst || v == ApplySignificant || v == ApplyStale
}

// record is the per-id tracking tuple: the fields of the last applied
// update that matter for significance, plus when we applied it (measured on
// our clock, never the sender's).
type record struct {
	position  [3]float64
	jumping   bool
	crouching bool
	health    int
	appliedAt time.Time
}

// Classifier decides apply-or-drop for inbound remote player updates. It is
// not safe for concurrent use; the reconciliation loop is its only caller.
type Classifier struct {
	settings game.Settings
	clock    pace.Clock
	records  map[string]record
}

func NewClassifier(settings game.Settings, clock pace.Clock) *Classifier {
	return &Classifier{
		settings: settings,
		clock:    clock,
		records:  make(map[string]record),
	}
}

// Classify inspects one inbound state against the tracking record for its
// id and, when the verdict is an apply, commits the new record.
func (c *Classifier) Classify(state game.PlayerState) Verdict {
	now := c.clock.Now()

	last, ok := c.records[state.ID]
	if !ok {
		c.commit(state, now)
		return ApplyFirst
	}

	if c.significant(state, last) {
		c.commit(state, now)
		return ApplySignificant
	}

	age := now.Sub(last.appliedAt)
	if age > c.settings.StaleAfter {
		c.commit(state, now)
		return ApplyStale
	}
	if age < c.settings.NoiseWindow {
		return DropNoise
	}
	return DropInsignificant
}

func (c *Classifier) significant(state game.PlayerState, last record) bool {
	eps := c.settings.MoveEpsilon
	for axis := 0; axis < 3; axis++ {
		if math.Abs(state.Position[axis]-last.position[axis]) > eps {
			return true
		}
	}
	return state.Jumping != last.jumping ||
		state.Crouching != last.crouching ||
		state.Health != last.health
}

func (c *Classifier) commit(state game.PlayerState, now time.Time) {
	c.records[state.ID] = record{
		position:  state.Position,
		jumping:   state.Jumping,
		crouching: state.Crouching,
		health:    state.Health,
		appliedAt: now,
	}
}

// Forget drops the tracking record for id, so a returning player is treated
// as a first sighting again.
func (c *Classifier) Forget(id string) {
	delete(c.records, id)
}

func (c *Classifier) NumTracked() int {
	return len(c.records)
}
