package combat

import (
	"math/rand"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strafehq/strafe/pkg/game"
	"github.com/strafehq/strafe/pkg/pace"
	"github.com/strafehq/strafe/pkg/world"
)

type recordingSink struct {
	shots  []game.ProjectileEvent
	remote []game.PlayerState
	local  []game.PlayerState
}

func (s *recordingSink) AnnounceShot(ev game.ProjectileEvent)  { s.shots = append(s.shots, ev) }
func (s *recordingSink) PublishRemote(p game.PlayerState)      { s.remote = append(s.remote, p) }
func (s *recordingSink) PublishLocal(p game.PlayerState)       { s.local = append(s.local, p) }

type rig struct {
	engine *Engine
	store  *world.Store
	sink   *recordingSink
	clock  *pace.ManualClock
	now    time.Time
	tick   time.Duration

	localHits   []int
	remoteKills []string
	respawns    []mgl64.Vec3
}

func newRig(t *testing.T) *rig {
	settings := game.DefaultSettings()
	require.NoError(t, settings.Validate())

	r := &rig{
		store: world.NewStore(),
		sink:  &recordingSink{},
		clock: pace.NewManualClock(time.Unix(1000, 0)),
		tick:  settings.TickInterval(),
	}
	r.now = r.clock.Now()
	r.engine = NewEngine(
		settings,
		"local",
		"local player",
		r.store,
		r.clock,
		r.sink,
		Callbacks{
			OnLocalHit:   func(health int) { r.localHits = append(r.localHits, health) },
			OnRemoteKill: func(id string) { r.remoteKills = append(r.remoteKills, id) },
			OnRespawn:    func(p mgl64.Vec3) { r.respawns = append(r.respawns, p) },
		},
		rand.New(rand.NewSource(42)),
	)
	return r
}

// step advances the simulation n ticks.
func (r *rig) step(n int) {
	for i := 0; i < n; i++ {
		r.now = r.now.Add(r.tick)
		r.clock.Advance(r.tick)
		r.engine.Advance(r.now, r.tick)
	}
}

// aimAt fires a local shot that flies straight at the target's torso from
// five units away.
func (r *rig) aimAt(target game.PlayerState) {
	torso := mgl64.Vec3{0, 1.5, 0}
	origin := target.Position.Add(torso).Add(mgl64.Vec3{-5, 0, 0})
	r.engine.FireLocal(origin, mgl64.Vec3{1, 0, 0})
}

func TestThreeHitsKill(t *testing.T) {
	r := newRig(t)
	victim := game.PlayerState{ID: "victim", Name: "v", Health: 100, Position: mgl64.Vec3{10, 0, 0}}
	r.store.UpsertPlayer(victim)

	expected := []int{66, 32, 0}
	for i, want := range expected {
		r.aimAt(victim)
		r.step(10)

		p, ok := r.store.GetPlayer("victim")
		require.True(t, ok)
		assert.Equal(t, want, p.Health, "hit %d", i+1)
	}

	p, _ := r.store.GetPlayer("victim")
	assert.Equal(t, 1, p.Deaths)
	assert.Equal(t, 1, r.engine.Local().Kills)
	assert.Equal(t, []string{"victim"}, r.remoteKills)

	stats := r.engine.Stats()
	assert.Equal(t, 3, stats.HitsDealt)
	assert.Equal(t, 1, stats.Kills)

	// Every hit published the victim's new snapshot.
	require.Len(t, r.sink.remote, 3)
	assert.Equal(t, 0, r.sink.remote[2].Health)
}

func TestHealthNeverNegative(t *testing.T) {
	r := newRig(t)
	// Two hits short of full health: the third must clamp at zero.
	victim := game.PlayerState{ID: "victim", Health: 40, Position: mgl64.Vec3{10, 0, 0}}
	r.store.UpsertPlayer(victim)

	r.aimAt(victim)
	r.step(10)
	r.aimAt(victim)
	r.step(10)

	p, _ := r.store.GetPlayer("victim")
	assert.Equal(t, 0, p.Health)

	// Further shots at a dead target are no-ops.
	r.aimAt(victim)
	r.step(10)
	p, _ = r.store.GetPlayer("victim")
	assert.Equal(t, 0, p.Health)
	assert.Equal(t, 1, p.Deaths)
}

func TestSameTickHitsApplySequentially(t *testing.T) {
	r := newRig(t)
	victim := game.PlayerState{ID: "victim", Health: 100, Position: mgl64.Vec3{10, 0, 0}}
	r.store.UpsertPlayer(victim)

	// Two projectiles in lockstep land on the same tick; both must count.
	r.aimAt(victim)
	r.aimAt(victim)
	r.step(10)

	p, _ := r.store.GetPlayer("victim")
	assert.Equal(t, 32, p.Health)
	assert.Equal(t, 2, r.engine.Stats().HitsDealt)
}

func TestSelfDamageRejected(t *testing.T) {
	r := newRig(t)
	local := r.engine.Local()

	// A replayed echo of our own shot, aimed straight at us.
	r.engine.IngestRemote(game.ProjectileEvent{
		ID:        "echo",
		ShooterID: "local",
		Origin:    local.Position.Add(mgl64.Vec3{-3, 1.5, 0}),
		Direction: mgl64.Vec3{1, 0, 0},
	})
	_, remote := r.engine.NumProjectiles()
	assert.Equal(t, 0, remote, "own announcements must not be replayed")

	r.step(20)
	assert.Equal(t, 100, r.engine.LocalHealth())
}

func TestUnknownTargetIsNoop(t *testing.T) {
	r := newRig(t)
	ghost := game.PlayerState{ID: "ghost", Health: 100, Position: mgl64.Vec3{10, 0, 0}}
	r.store.UpsertPlayer(ghost)

	r.aimAt(ghost)
	// The target leaves before the projectile arrives.
	r.store.RemovePlayer("ghost")
	r.step(20)

	assert.Equal(t, 0, r.engine.Stats().HitsDealt)
	assert.Equal(t, 0, r.engine.Local().Kills)
}

func (r *rig) shootLocalPlayer() {
	local := r.engine.Local()
	r.engine.IngestRemote(game.ProjectileEvent{
		ID:        "incoming",
		ShooterID: "enemy",
		Origin:    local.Position.Add(mgl64.Vec3{-5, 1.5, 0}),
		Direction: mgl64.Vec3{1, 0, 0},
	})
}

func TestRemoteHitsKillAndRespawn(t *testing.T) {
	r := newRig(t)
	r.store.UpsertPlayer(game.PlayerState{ID: "enemy", Health: 100, Position: mgl64.Vec3{50, 0, 0}})

	for i := 0; i < 3; i++ {
		r.shootLocalPlayer()
		r.step(10)
	}

	assert.Equal(t, []int{66, 32, 0}, r.localHits)
	assert.Equal(t, 0, r.engine.LocalHealth())
	assert.True(t, r.engine.Dead())
	assert.Equal(t, 1, r.engine.Local().Deaths)

	// The killer gets credited in our replica.
	enemy, _ := r.store.GetPlayer("enemy")
	assert.Equal(t, 1, enemy.Kills)

	// Health stays at zero for the whole respawn delay.
	r.step(60)
	assert.Equal(t, 0, r.engine.LocalHealth())

	// Well past the 3s delay now.
	r.step(130)
	assert.False(t, r.engine.Dead())
	assert.Equal(t, 100, r.engine.LocalHealth())
	require.Len(t, r.respawns, 1)

	settings := game.DefaultSettings()
	spawn := r.respawns[0]
	radius := mgl64.Vec3{spawn.X(), 0, spawn.Z()}.Len()
	assert.LessOrEqual(t, radius, settings.SpawnRadius)
	assert.Equal(t, 1, r.engine.Stats().Respawns)
}

func TestDeadPlayersCannotBeHit(t *testing.T) {
	r := newRig(t)
	for i := 0; i < 3; i++ {
		r.shootLocalPlayer()
		r.step(10)
	}
	require.True(t, r.engine.Dead())

	hitsTaken := r.engine.Stats().HitsTaken
	r.shootLocalPlayer()
	r.step(10)
	assert.Equal(t, hitsTaken, r.engine.Stats().HitsTaken)
	assert.Equal(t, 1, r.engine.Local().Deaths)
}

func TestProjectileExpiresByRange(t *testing.T) {
	r := newRig(t)
	r.engine.FireLocal(mgl64.Vec3{0, 1.5, 0}, mgl64.Vec3{0, 1, 0})

	local, _ := r.engine.NumProjectiles()
	require.Equal(t, 1, local)

	// 100 units at 1 unit per tick.
	r.step(101)
	local, _ = r.engine.NumProjectiles()
	assert.Equal(t, 0, local, "projectile past max range must be disposed")
}

func TestProjectileExpiresByTimeout(t *testing.T) {
	settings := game.DefaultSettings()
	settings.ProjectileSpeed = 0.1 // far too slow to reach max range in 3s
	require.NoError(t, settings.Validate())

	store := world.NewStore()
	sink := &recordingSink{}
	clock := pace.NewManualClock(time.Unix(1000, 0))
	engine := NewEngine(settings, "local", "l", store, clock, sink, Callbacks{}, rand.New(rand.NewSource(1)))

	engine.FireLocal(mgl64.Vec3{0, 1.5, 0}, mgl64.Vec3{0, 1, 0})
	now := clock.Now()
	tick := settings.TickInterval()
	for i := 0; i < 185; i++ { // just past 3s of ticks
		now = now.Add(tick)
		engine.Advance(now, tick)
	}

	local, _ := engine.NumProjectiles()
	assert.Equal(t, 0, local, "projectile past its timeout must be disposed")
}

func TestFireWhileDeadIgnored(t *testing.T) {
	r := newRig(t)
	for i := 0; i < 3; i++ {
		r.shootLocalPlayer()
		r.step(10)
	}
	require.True(t, r.engine.Dead())

	shots := len(r.sink.shots)
	r.engine.FireLocal(mgl64.Vec3{0, 1.5, 0}, mgl64.Vec3{1, 0, 0})
	assert.Equal(t, shots, len(r.sink.shots))
}

func TestCloseDisposesEverything(t *testing.T) {
	r := newRig(t)
	r.engine.FireLocal(mgl64.Vec3{0, 1.5, 0}, mgl64.Vec3{1, 0, 0})
	r.shootLocalPlayer()

	r.engine.Close()
	local, remote := r.engine.NumProjectiles()
	assert.Equal(t, 0, local)
	assert.Equal(t, 0, remote)

	// Everything is a no-op after close.
	r.engine.FireLocal(mgl64.Vec3{0, 1.5, 0}, mgl64.Vec3{1, 0, 0})
	r.step(5)
	local, _ = r.engine.NumProjectiles()
	assert.Equal(t, 0, local)
	r.engine.Close()
}
