// Package bot drives headless clients through the same reconciliation loop
// a browser uses: a Pilot plays the role of the camera/input collaborator,
// and a Swarm runs many of them against one transport. It exists to soak
// the stack and to populate demo worlds.
package bot

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/repeale/fp-go"
	"github.com/rs/zerolog/log"
	"github.com/sasha-s/go-deadlock"

	"github.com/strafehq/strafe/pkg/client"
	"github.com/strafehq/strafe/pkg/game"
	"github.com/strafehq/strafe/pkg/transport"
	"github.com/strafehq/strafe/pkg/utils"
)

const (
	walkSpeed       = 4.0 // units per second
	waypointReached = 0.5
	fireInterval    = 700 * time.Millisecond
	fireJitter      = 300 * time.Millisecond
)

// Pilot is a scripted LocalSource: it wanders between random waypoints on
// the play disc and occasionally jumps or crouches.
type Pilot struct {
	mutex deadlock.Mutex

	settings game.Settings
	rng      *rand.Rand

	position  mgl64.Vec3
	waypoint  mgl64.Vec3
	jumping   bool
	crouching bool
	lastNow   time.Time
}

var _ client.LocalSource = (*Pilot)(nil)

func NewPilot(settings game.Settings, rng *rand.Rand) *Pilot {
	start := game.SpawnPoint(rng, settings.SpawnRadius, settings.SpawnHeight)
	return &Pilot{
		settings: settings,
		rng:      rng,
		position: start,
		waypoint: game.SpawnPoint(rng, settings.SpawnRadius, settings.SpawnHeight),
	}
}

func (p *Pilot) Pose(now time.Time) client.Pose {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	dt := now.Sub(p.lastNow).Seconds()
	p.lastNow = now
	if dt < 0 || dt > 1 {
		dt = 0
	}

	heading := p.waypoint.Sub(p.position)
	if heading.Len() < waypointReached {
		p.waypoint = game.SpawnPoint(p.rng, p.settings.SpawnRadius, p.settings.SpawnHeight)
		heading = p.waypoint.Sub(p.position)
	}

	velocity := mgl64.Vec3{}
	if heading.Len() > 0 {
		velocity = heading.Normalize().Mul(walkSpeed)
		p.position = p.position.Add(velocity.Mul(dt))
	}

	// Roughly one stance change every couple of seconds of wandering.
	if p.rng.Float64() < 0.5*dt {
		p.jumping = !p.jumping
	}
	if p.rng.Float64() < 0.25*dt {
		p.crouching = !p.crouching
	}

	return client.Pose{
		Position:  p.position,
		Rotation:  mgl64.Vec3{0, faceAngle(heading), 0},
		Velocity:  velocity,
		Jumping:   p.jumping,
		Crouching: p.crouching,
	}
}

// faceAngle is the yaw, in degrees, that looks along heading.
func faceAngle(heading mgl64.Vec3) float64 {
	if heading.X() == 0 && heading.Z() == 0 {
		return 0
	}
	return mgl64.RadToDeg(math.Atan2(heading.X(), heading.Z()))
}

// Swarm owns a set of bot clients sharing one transport.
type Swarm struct {
	session utils.Session
	clients []*client.Client
}

// Run starts count bots. Each one runs a full reconciliation client plus a
// trigger loop that shoots at the nearest live snapshot.
func Run(ctx context.Context, t transport.Transport, settings game.Settings, count int) (*Swarm, error) {
	swarm := &Swarm{session: utils.NewSession(ctx)}

	for i := 0; i < count; i++ {
		rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(i)))
		id := fmt.Sprintf("bot-%s", uuid.New().String()[:8])
		pilot := NewPilot(settings, rng)

		c, err := client.New(swarm.session.Ctx(), client.Options{
			ID:        id,
			Name:      fmt.Sprintf("bot-%d", i),
			Settings:  settings,
			Transport: t,
			Source:    pilot,
			Rng:       rng,
		})
		if err != nil {
			swarm.Close()
			return nil, err
		}
		if err := c.Start(); err != nil {
			swarm.Close()
			return nil, err
		}
		swarm.clients = append(swarm.clients, c)
		// The trigger loop runs on its own goroutine, so it gets its own
		// rng rather than sharing the pilot's.
		triggerRng := rand.New(rand.NewSource(rng.Int63()))
		swarm.session.Go(func() { swarm.trigger(c, triggerRng) })

		log.Info().Str("bot", id).Msg("bot started")
	}

	return swarm, nil
}

// trigger periodically aims at the nearest live player and fires.
func (s *Swarm) trigger(c *client.Client, rng *rand.Rand) {
	for {
		wait := fireInterval + time.Duration(rng.Int63n(int64(fireJitter)))
		select {
		case <-time.After(wait):
		case <-s.session.Ctx().Done():
			return
		}

		local := c.Local()
		if !local.Alive() {
			continue
		}

		targets := fp.Filter(func(p game.PlayerState) bool {
			return p.ID != local.ID && p.Alive() && !p.Inactive
		})(c.World().Players())
		if len(targets) == 0 {
			continue
		}

		nearest := targets[0]
		best := nearest.Position.Sub(local.Position).Len()
		for _, target := range targets[1:] {
			if d := target.Position.Sub(local.Position).Len(); d < best {
				nearest, best = target, d
			}
		}

		dir := nearest.Position.Sub(local.Position)
		if dir.Len() == 0 {
			continue
		}
		c.Fire(dir.Normalize())
	}
}

func (s *Swarm) NumClients() int {
	return len(s.clients)
}

// Close shuts every bot down and waits for their loops to exit.
func (s *Swarm) Close() {
	for _, c := range s.clients {
		c.Close()
	}
	s.session.Cancel()
	s.session.Wait()
}
