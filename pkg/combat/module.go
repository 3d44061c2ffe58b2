// Package combat resolves hits, deaths, and respawns for one client. It
// simulates two projectile populations per tick: shots the local player
// fired (tested against every remote snapshot) and shots announced by
// remote players (tested against the local player only). Every client runs
// the same simulation, so each side independently reaches the same outcome.
package combat

import (
	"math/rand"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/repeale/fp-go"
	"github.com/sasha-s/go-deadlock"

	"github.com/strafehq/strafe/pkg/game"
	"github.com/strafehq/strafe/pkg/pace"
	"github.com/strafehq/strafe/pkg/world"
)

// Sink receives the engine's outbound traffic. The reconciliation client
// implements it by feeding the debouncers and throttlers; nothing here
// touches the network directly.
type Sink interface {
	// AnnounceShot broadcasts a locally fired projectile.
	AnnounceShot(game.ProjectileEvent)
	// PublishRemote pushes a remote player's snapshot we just mutated
	// (damage dealt, kill credited).
	PublishRemote(game.PlayerState)
	// PublishLocal pushes the local player's own state.
	PublishLocal(game.PlayerState)
}

// Callbacks notify the UI collaborators. Any of them may be nil.
type Callbacks struct {
	OnLocalHit   func(health int)
	OnStats      func(kills, deaths int)
	OnRespawn    func(position mgl64.Vec3)
	OnRemoteKill func(victimID string)
}

// Stats counts combat outcomes since the engine was created.
type Stats struct {
	Kills     int
	Deaths    int
	Respawns  int
	HitsDealt int
	HitsTaken int
}

type projectile struct {
	id        string
	shooterID string
	position  mgl64.Vec3
	direction mgl64.Vec3
	traveled  float64
	firedAt   time.Time
	done      bool
}

// dispose marks the projectile dead exactly once.
func (p *projectile) dispose() bool {
	if p.done {
		return false
	}
	p.done = true
	return true
}

type Engine struct {
	mutex deadlock.Mutex

	settings game.Settings
	damage   int
	store    *world.Store
	clock    pace.Clock
	sink     Sink
	calls    Callbacks
	rng      *rand.Rand

	local     game.PlayerState
	dead      bool
	respawnAt time.Time

	localShots  []*projectile
	remoteShots []*projectile

	stats  Stats
	closed bool
}

func NewEngine(
	settings game.Settings,
	id string,
	name string,
	store *world.Store,
	clock pace.Clock,
	sink Sink,
	calls Callbacks,
	rng *rand.Rand,
) *Engine {
	return &Engine{
		settings: settings,
		damage:   settings.DamagePerHit(),
		store:    store,
		clock:    clock,
		sink:     sink,
		calls:    calls,
		rng:      rng,
		local: game.PlayerState{
			ID:       id,
			Name:     name,
			Health:   settings.MaxHealth,
			Position: game.SpawnPoint(rng, settings.SpawnRadius, settings.SpawnHeight),
		},
	}
}

// FireLocal spawns a locally simulated projectile from origin along dir and
// announces it. A zero direction is ignored.
func (e *Engine) FireLocal(origin, dir mgl64.Vec3) {
	if dir.Len() == 0 {
		return
	}
	dir = dir.Normalize()

	e.mutex.Lock()
	if e.closed || e.dead {
		e.mutex.Unlock()
		return
	}
	now := e.clock.Now()
	ev := game.ProjectileEvent{
		ID:        uuid.New().String(),
		ShooterID: e.local.ID,
		Origin:    origin,
		Direction: dir,
		FiredAt:   now.UnixMilli(),
	}
	e.localShots = append(e.localShots, &projectile{
		id:        ev.ID,
		shooterID: ev.ShooterID,
		position:  origin,
		direction: dir,
		firedAt:   now,
	})
	e.mutex.Unlock()

	e.sink.AnnounceShot(ev)
}

// IngestRemote replays a projectile announced by another player. The flight
// is simulated identically to a local shot, but only the local player is a
// candidate target. Echoes of our own shots are skipped.
func (e *Engine) IngestRemote(ev game.ProjectileEvent) {
	dir := ev.Direction
	if dir.Len() == 0 {
		return
	}
	dir = dir.Normalize()

	e.mutex.Lock()
	defer e.mutex.Unlock()
	if e.closed || ev.ShooterID == e.local.ID {
		return
	}
	e.remoteShots = append(e.remoteShots, &projectile{
		id:        ev.ID,
		shooterID: ev.ShooterID,
		position:  ev.Origin,
		direction: dir,
		// Lifetime is measured on our clock, never the shooter's.
		firedAt: e.clock.Now(),
	})
}

// SetPose updates the local player's transform from the input collaborator.
// Dead players keep their death position until respawn moves them.
func (e *Engine) SetPose(position, rotation, velocity mgl64.Vec3, jumping, crouching bool) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	if e.closed {
		return
	}
	if !e.dead {
		e.local.Position = position
		e.local.Velocity = velocity
		e.local.Jumping = jumping
		e.local.Crouching = crouching
	}
	e.local.Rotation = rotation
}

// Local returns the local player's current state.
func (e *Engine) Local() game.PlayerState {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return e.local
}

func (e *Engine) LocalHealth() int {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return e.local.Health
}

func (e *Engine) Dead() bool {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return e.dead
}

func (e *Engine) Stats() Stats {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return e.stats
}

// NumProjectiles reports how many projectiles are still in flight.
func (e *Engine) NumProjectiles() (local, remote int) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return len(e.localShots), len(e.remoteShots)
}

// Advance runs one simulation step: the pending respawn, then every live
// projectile. Hits are applied strictly in projectile order; each
// application re-reads the victim's health, so two shooters landing on the
// same tick both count.
func (e *Engine) Advance(now time.Time, dt time.Duration) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	if e.closed {
		return
	}

	if e.dead && !now.Before(e.respawnAt) {
		e.respawn()
	}

	step := e.settings.ProjectileSpeed * dt.Seconds()

	for _, shot := range e.localShots {
		e.advanceLocalShot(shot, now, step)
	}
	e.localShots = fp.Filter(func(p *projectile) bool { return !p.done })(e.localShots)

	for _, shot := range e.remoteShots {
		e.advanceRemoteShot(shot, now, step)
	}
	e.remoteShots = fp.Filter(func(p *projectile) bool { return !p.done })(e.remoteShots)
}

func (e *Engine) respawn() {
	e.local.Health = e.settings.MaxHealth
	e.local.Position = game.SpawnPoint(e.rng, e.settings.SpawnRadius, e.settings.SpawnHeight)
	e.dead = false
	e.stats.Respawns++

	e.sink.PublishLocal(e.local)
	if e.calls.OnRespawn != nil {
		e.calls.OnRespawn(e.local.Position)
	}
}

func (e *Engine) advanceLocalShot(shot *projectile, now time.Time, step float64) {
	if e.expire(shot, now, step) {
		return
	}

	torso := mgl64.Vec3{0, e.settings.TorsoHeight, 0}
	for _, target := range e.store.Players() {
		// Never damage yourself, the dead, or the departed.
		if target.ID == shot.shooterID || !target.Alive() || target.Inactive {
			continue
		}
		if shot.position.Sub(target.Position.Add(torso)).Len() >= e.settings.HitRadius {
			continue
		}
		if !shot.dispose() {
			return
		}
		e.hitRemote(target.ID)
		return
	}
}

// hitRemote applies the fixed damage to one remote snapshot under the world
// store's lock, then publishes the outcome.
func (e *Engine) hitRemote(targetID string) {
	var after game.PlayerState
	var killed bool
	known := e.store.MutatePlayer(targetID, func(p *game.PlayerState) {
		killed = p.ApplyDamage(e.damage)
		if killed {
			p.Deaths++
		}
		after = *p
	})
	// The target may have been removed since the snapshot was taken.
	if !known {
		return
	}

	e.stats.HitsDealt++
	e.sink.PublishRemote(after)

	if !killed {
		return
	}
	e.local.Kills++
	e.stats.Kills++
	e.sink.PublishLocal(e.local)
	if e.calls.OnStats != nil {
		e.calls.OnStats(e.local.Kills, e.local.Deaths)
	}
	if e.calls.OnRemoteKill != nil {
		e.calls.OnRemoteKill(targetID)
	}
}

func (e *Engine) advanceRemoteShot(shot *projectile, now time.Time, step float64) {
	if e.expire(shot, now, step) {
		return
	}
	if e.dead {
		return
	}

	torso := mgl64.Vec3{0, e.settings.TorsoHeight, 0}
	if shot.position.Sub(e.local.Position.Add(torso)).Len() >= e.settings.HitRadius {
		return
	}
	if !shot.dispose() {
		return
	}

	killed := e.local.ApplyDamage(e.damage)
	e.stats.HitsTaken++
	if e.calls.OnLocalHit != nil {
		e.calls.OnLocalHit(e.local.Health)
	}

	if killed {
		e.local.Deaths++
		e.stats.Deaths++
		e.dead = true
		// Health stays at zero for the whole respawn delay; the reset
		// happens at the moment of respawn.
		e.respawnAt = now.Add(e.settings.RespawnDelay)
		e.creditShooter(shot.shooterID)
		if e.calls.OnStats != nil {
			e.calls.OnStats(e.local.Kills, e.local.Deaths)
		}
	}

	e.sink.PublishLocal(e.local)
}

// creditShooter optimistically bumps the killer's kill count in our replica
// and publishes it. The shooter's own client will converge on the same
// number from its side of the simulation.
func (e *Engine) creditShooter(shooterID string) {
	var after game.PlayerState
	known := e.store.MutatePlayer(shooterID, func(p *game.PlayerState) {
		p.Kills++
		after = *p
	})
	if !known {
		return
	}
	e.sink.PublishRemote(after)
}

// expire advances the projectile one step and disposes it if it has flown
// past max range or outlived its wall-clock timeout. It reports whether the
// projectile is gone.
func (e *Engine) expire(shot *projectile, now time.Time, step float64) bool {
	if shot.done {
		return true
	}
	shot.position = shot.position.Add(shot.direction.Mul(step))
	shot.traveled += step
	if shot.traveled > e.settings.MaxRange ||
		now.Sub(shot.firedAt) > e.settings.ProjectileTimeout {
		shot.dispose()
		return true
	}
	return false
}

// Close tears the engine down: every in-flight projectile is disposed and
// all further calls become no-ops.
func (e *Engine) Close() {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	if e.closed {
		return
	}
	for _, shot := range e.localShots {
		shot.dispose()
	}
	for _, shot := range e.remoteShots {
		shot.dispose()
	}
	e.localShots = nil
	e.remoteShots = nil
	e.closed = true
}
