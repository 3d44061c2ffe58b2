// Package client runs the reconciliation loop for one player: it drains
// inbound transport events, classifies them, applies the accepted ones to
// the world store, advances combat, and paces the local player's own
// broadcasts. All mutation happens on a single goroutine per client; the
// transport callbacks only ever enqueue.
package client

import (
	"context"
	"math/rand"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sasha-s/go-deadlock"

	"github.com/strafehq/strafe/pkg/combat"
	"github.com/strafehq/strafe/pkg/game"
	"github.com/strafehq/strafe/pkg/pace"
	"github.com/strafehq/strafe/pkg/transport"
	"github.com/strafehq/strafe/pkg/utils"
	"github.com/strafehq/strafe/pkg/world"
)

const (
	inboxSize = 512

	// Upper bound on a single simulation step after a pause or stall.
	maxStep = 250 * time.Millisecond
)

// SceneHooks is the rendering/UI collaborator surface. The core tells it
// what changed; what it draws is its business.
type SceneHooks interface {
	OnPlayerUpserted(game.PlayerState)
	OnObjectUpserted(game.MapObjectState)
	OnEntityRemoved(id string)
	OnLocalPlayerHit(health int)
	OnPlayerStatsChanged(kills, deaths int)
}

// NopHooks is for clients with no scene attached (bots, tests).
type NopHooks struct{}

func (NopHooks) OnPlayerUpserted(game.PlayerState)      {}
func (NopHooks) OnObjectUpserted(game.MapObjectState)   {}
func (NopHooks) OnEntityRemoved(string)                 {}
func (NopHooks) OnLocalPlayerHit(int)                   {}
func (NopHooks) OnPlayerStatsChanged(int, int)          {}

var _ SceneHooks = NopHooks{}

// Pose is the local transform sampled from the input collaborator each tick.
type Pose struct {
	Position  mgl64.Vec3
	Rotation  mgl64.Vec3
	Velocity  mgl64.Vec3
	Jumping   bool
	Crouching bool
}

// LocalSource produces the local player's pose. The camera adapter
// implements it in the browser build; bots implement it with a script.
type LocalSource interface {
	Pose(now time.Time) Pose
}

// Stats are the per-client reconciliation counters.
type Stats struct {
	Applied            int
	StaleApplies       int
	NoiseDrops         int
	InsignificantDrops int
	MalformedDrops     int
	InboxDrops         int
	PublishErrors      int
}

type inboundEvent struct {
	player     *transport.PlayerEvent
	projectile *game.ProjectileEvent
	object     *transport.ObjectEvent
}

type Options struct {
	ID       string
	Name     string
	Settings game.Settings

	Transport transport.Transport
	Source    LocalSource
	Hooks     SceneHooks // optional
	Clock     pace.Clock // optional, defaults to the system clock
	Rng       *rand.Rand // optional
}

type Client struct {
	session  utils.Session
	log      zerolog.Logger
	settings game.Settings

	transport  transport.Transport
	store      *world.Store
	combat     *combat.Engine
	classifier *Classifier
	hooks      SceneHooks
	source     LocalSource
	clock      pace.Clock

	inbox         chan inboundEvent
	position      *pace.Throttler[game.PlayerState]
	localOut      *pace.Debouncer[game.PlayerState]
	shotsOut      *pace.Debouncer[game.ProjectileEvent]
	remoteOut     map[string]*pace.Debouncer[game.PlayerState]
	subscriptions []transport.Subscription

	statsMutex deadlock.Mutex
	stats      Stats

	ticker   *pace.Ticker
	lastStep time.Time
	closed   bool
}

func New(ctx context.Context, options Options) (*Client, error) {
	if err := options.Settings.Validate(); err != nil {
		return nil, err
	}

	clock := options.Clock
	if clock == nil {
		clock = pace.SystemClock{}
	}
	hooks := options.Hooks
	if hooks == nil {
		hooks = NopHooks{}
	}
	rng := options.Rng
	if rng == nil {
		rng = rand.New(rand.NewSource(clock.Now().UnixNano()))
	}

	settings := options.Settings
	c := &Client{
		session:   utils.NewSession(ctx),
		log:       log.With().Str("player", options.ID).Logger(),
		settings:  settings,
		transport: options.Transport,
		store:     world.NewStore(),
		hooks:     hooks,
		source:    options.Source,
		clock:     clock,
		inbox:     make(chan inboundEvent, inboxSize),
		remoteOut: make(map[string]*pace.Debouncer[game.PlayerState]),
	}

	c.classifier = NewClassifier(settings, clock)
	c.combat = combat.NewEngine(
		settings,
		options.ID,
		options.Name,
		c.store,
		clock,
		c,
		combat.Callbacks{
			OnLocalHit: hooks.OnLocalPlayerHit,
			OnStats:    hooks.OnPlayerStatsChanged,
		},
		rng,
	)

	c.position = pace.NewThrottler(
		clock,
		settings.PositionInterval,
		settings.PositionFastDelay,
		c.publishPlayer,
	)
	c.localOut = pace.NewDebouncer(clock, settings.StatsDebounce, c.publishPlayer)
	c.shotsOut = pace.NewDebouncer(clock, settings.ProjectileDebounce, c.publishProjectile)

	return c, nil
}

// World exposes the snapshot store for collaborators that want to read it
// (bot targeting, debugging overlays).
func (c *Client) World() *world.Store {
	return c.store
}

func (c *Client) Local() game.PlayerState {
	return c.combat.Local()
}

func (c *Client) Stats() Stats {
	c.statsMutex.Lock()
	defer c.statsMutex.Unlock()
	return c.stats
}

func (c *Client) CombatStats() combat.Stats {
	return c.combat.Stats()
}

// Start subscribes to the transport, loads the map, announces the local
// player, and begins ticking.
func (c *Client) Start() error {
	ctx := c.session.Ctx()

	objects, err := c.transport.FetchMapObjects(ctx)
	if err != nil {
		return err
	}
	for _, obj := range objects {
		c.store.UpsertObject(obj)
		c.hooks.OnObjectUpserted(obj)
	}

	players, err := c.transport.SubscribePlayerChanges(ctx, func(ev transport.PlayerEvent) {
		c.enqueue(inboundEvent{player: &ev})
	})
	if err != nil {
		return err
	}
	c.subscriptions = append(c.subscriptions, players)

	projectiles, err := c.transport.SubscribeProjectileInserts(ctx, func(ev game.ProjectileEvent) {
		c.enqueue(inboundEvent{projectile: &ev})
	})
	if err != nil {
		return err
	}
	c.subscriptions = append(c.subscriptions, projectiles)

	objectChanges, err := c.transport.SubscribeMapObjectChanges(ctx, func(ev transport.ObjectEvent) {
		c.enqueue(inboundEvent{object: &ev})
	})
	if err != nil {
		return err
	}
	c.subscriptions = append(c.subscriptions, objectChanges)

	// First broadcast goes out immediately so others see us without
	// waiting for the throttle window.
	c.publishPlayer(c.combat.Local())

	c.lastStep = c.clock.Now()
	c.ticker = pace.NewTicker(c.settings.TickInterval())
	c.session.Go(c.run)

	c.log.Info().Int("objects", len(objects)).Msg("client started")
	return nil
}

func (c *Client) run() {
	for {
		select {
		case now := <-c.ticker.C:
			c.Step(now)
		case <-c.session.Ctx().Done():
			return
		}
	}
}

// Step runs one tick: drain, classify, apply, simulate, broadcast. Tests
// drive it directly with a manual clock instead of starting the ticker.
func (c *Client) Step(now time.Time) {
	dt := now.Sub(c.lastStep)
	if dt < 0 {
		dt = 0
	}
	// A stalled or paused loop resumes with one bounded step instead of
	// flinging every projectile across the gap at once.
	if dt > maxStep {
		dt = maxStep
	}
	c.lastStep = now

	for drained := false; !drained; {
		select {
		case ev := <-c.inbox:
			c.dispatch(ev)
		default:
			drained = true
		}
	}

	c.combat.Advance(now, dt)

	if c.source != nil {
		pose := c.source.Pose(now)
		c.combat.SetPose(pose.Position, pose.Rotation, pose.Velocity, pose.Jumping, pose.Crouching)
		c.position.Schedule(c.combat.Local())
	}
}

// Pause freezes the simulation loop, for a browser tab going hidden. The
// session stays up: subscriptions keep filling the inbox and the next tick
// after Resume drains whatever accumulated.
func (c *Client) Pause() {
	if c.ticker != nil {
		c.ticker.Pause()
	}
}

func (c *Client) Resume() {
	if c.ticker != nil {
		c.ticker.Resume()
	}
}

func (c *Client) PausedTicking() bool {
	return c.ticker != nil && c.ticker.Paused()
}

// Fire shoots from the local player's eye along dir.
func (c *Client) Fire(dir mgl64.Vec3) {
	local := c.combat.Local()
	origin := local.Position.Add(mgl64.Vec3{0, c.settings.TorsoHeight, 0})
	c.combat.FireLocal(origin, dir)
}

func (c *Client) enqueue(ev inboundEvent) {
	select {
	case c.inbox <- ev:
	default:
		// A client that cannot keep up loses events rather than blocking
		// the transport; the classifier's staleness override recovers the
		// entities affected.
		c.statsMutex.Lock()
		c.stats.InboxDrops++
		c.statsMutex.Unlock()
	}
}

func (c *Client) dispatch(ev inboundEvent) {
	switch {
	case ev.player != nil:
		c.handlePlayer(*ev.player)
	case ev.projectile != nil:
		c.combat.IngestRemote(*ev.projectile)
	case ev.object != nil:
		c.handleObject(*ev.object)
	}
}

func (c *Client) handlePlayer(ev transport.PlayerEvent) {
	state := ev.State
	if state.ID == "" {
		c.count(func(s *Stats) { s.MalformedDrops++ })
		return
	}
	// Our own echoes bounce off the transport; local state never takes
	// the inbound path.
	if state.ID == c.combat.Local().ID {
		return
	}

	if ev.Kind == transport.EventDelete || state.Inactive {
		if c.store.RemovePlayer(state.ID) {
			c.classifier.Forget(state.ID)
			c.hooks.OnEntityRemoved(state.ID)
		}
		return
	}

	verdict := c.classifier.Classify(state)
	switch verdict {
	case DropNoise:
		c.count(func(s *Stats) { s.NoiseDrops++ })
		return
	case DropInsignificant:
		c.count(func(s *Stats) { s.InsignificantDrops++ })
		return
	case ApplyStale:
		c.count(func(s *Stats) { s.StaleApplies++; s.Applied++ })
	default:
		c.count(func(s *Stats) { s.Applied++ })
	}

	c.store.UpsertPlayer(state)
	c.hooks.OnPlayerUpserted(state)
}

func (c *Client) handleObject(ev transport.ObjectEvent) {
	if ev.State.ID == "" {
		c.count(func(s *Stats) { s.MalformedDrops++ })
		return
	}
	// Map objects never churn, so every change is worth applying.
	if ev.Kind == transport.EventDelete {
		if c.store.RemoveObject(ev.State.ID) {
			c.hooks.OnEntityRemoved(ev.State.ID)
		}
		return
	}
	c.store.UpsertObject(ev.State)
	c.hooks.OnObjectUpserted(ev.State)
}

func (c *Client) count(fn func(*Stats)) {
	c.statsMutex.Lock()
	fn(&c.stats)
	c.statsMutex.Unlock()
}

// AnnounceShot, PublishRemote, and PublishLocal make Client the combat
// engine's Sink: everything outbound goes through a pacer first.
func (c *Client) AnnounceShot(ev game.ProjectileEvent) {
	c.shotsOut.Schedule(ev)
}

func (c *Client) PublishRemote(state game.PlayerState) {
	c.remoteDebouncer(state.ID).Schedule(state)
}

func (c *Client) PublishLocal(state game.PlayerState) {
	c.localOut.Schedule(state)
}

// remoteDebouncer returns the per-target debouncer, creating it on first
// use. Damage against different victims must not coalesce into one write.
func (c *Client) remoteDebouncer(id string) *pace.Debouncer[game.PlayerState] {
	c.statsMutex.Lock()
	defer c.statsMutex.Unlock()
	d, ok := c.remoteOut[id]
	if !ok {
		d = pace.NewDebouncer(c.clock, c.settings.StatsDebounce, c.publishPlayer)
		c.remoteOut[id] = d
	}
	return d
}

func (c *Client) publishPlayer(state game.PlayerState) {
	state.UpdatedAt = c.clock.Now().UnixMilli()
	if err := c.transport.PublishPlayerState(c.session.Ctx(), state); err != nil {
		c.count(func(s *Stats) { s.PublishErrors++ })
		c.log.Error().Err(err).Msg("player publish failed")
	}
}

func (c *Client) publishProjectile(ev game.ProjectileEvent) {
	if err := c.transport.PublishProjectile(c.session.Ctx(), ev); err != nil {
		c.count(func(s *Stats) { s.PublishErrors++ })
		c.log.Error().Err(err).Msg("projectile publish failed")
	}
}

// Close stops the loop, cancels every pending timer, and makes a
// best-effort departure announcement.
func (c *Client) Close() {
	if c.closed {
		return
	}
	c.closed = true

	if c.ticker != nil {
		c.ticker.Stop()
	}
	c.session.Cancel()
	c.session.Wait()

	c.position.Cancel()
	c.localOut.Cancel()
	c.shotsOut.Cancel()
	c.statsMutex.Lock()
	for _, d := range c.remoteOut {
		d.Cancel()
	}
	c.statsMutex.Unlock()
	for _, s := range c.subscriptions {
		s.Close()
	}
	c.combat.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	local := c.combat.Local()
	if err := transport.RemovePlayer(ctx, c.transport, local.ID); err != nil {
		c.log.Error().Err(err).Msg("departure announcement failed")
	}

	stats := c.Stats()
	c.log.Info().
		Dur("uptime", c.session.Uptime()).
		Int("applied", stats.Applied).
		Int("noiseDrops", stats.NoiseDrops).
		Int("insignificantDrops", stats.InsignificantDrops).
		Int("staleApplies", stats.StaleApplies).
		Int("inboxDrops", stats.InboxDrops).
		Int("publishErrors", stats.PublishErrors).
		Msg("client closed")
}
