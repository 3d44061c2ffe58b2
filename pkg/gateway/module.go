// Package gateway is the browser-facing front door: a websocket service
// that relays Op-tagged cbor frames between connected clients and the
// realtime transport. It does not validate gameplay; the system stays
// client-authoritative, the gateway only moves frames.
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/mileusna/useragent"
	"github.com/repeale/fp-go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sasha-s/go-deadlock"
	"golang.org/x/time/rate"
	"nhooyr.io/websocket"

	"github.com/strafehq/strafe/pkg/game"
	"github.com/strafehq/strafe/pkg/transport"
	"github.com/strafehq/strafe/pkg/utils"
)

const (
	sendBuffer   = 64
	writeTimeout = 5 * time.Second

	// Inbound frames per connection: sustained and burst.
	inboundRate  = 120
	inboundBurst = 240

	sweepInterval = 30 * time.Second
	inactiveAfter = 60 * time.Second
)

type connection struct {
	session   string
	send      chan []byte
	closeSlow func()

	// playerID is set on hello and read by the broadcast and sweep
	// goroutines, so it lives under the mutex with lastSeen.
	mutex    deadlock.Mutex
	playerID string
	lastSeen time.Time
}

func (c *connection) touch(now time.Time) {
	c.mutex.Lock()
	c.lastSeen = now
	c.mutex.Unlock()
}

func (c *connection) player() string {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.playerID
}

func (c *connection) setPlayer(id string) {
	c.mutex.Lock()
	c.playerID = id
	c.mutex.Unlock()
}

func (c *connection) idle(now time.Time) time.Duration {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return now.Sub(c.lastSeen)
}

type Gateway struct {
	session   utils.Session
	transport transport.Transport

	mutex         deadlock.Mutex
	connections   map[*connection]struct{}
	subscriptions []transport.Subscription
}

func NewGateway(ctx context.Context, t transport.Transport) *Gateway {
	return &Gateway{
		session:     utils.NewSession(ctx),
		transport:   t,
		connections: make(map[*connection]struct{}),
	}
}

// Start subscribes to the transport and begins fanning events out to every
// connected client, plus the sweep that flags silent players inactive.
func (g *Gateway) Start() error {
	ctx := g.session.Ctx()

	players, err := g.transport.SubscribePlayerChanges(ctx, func(ev transport.PlayerEvent) {
		g.broadcast(PlayerEventMessage{Op: PlayerEventOp, Event: ev})
	})
	if err != nil {
		return err
	}
	g.subscriptions = append(g.subscriptions, players)

	projectiles, err := g.transport.SubscribeProjectileInserts(ctx, func(ev game.ProjectileEvent) {
		g.broadcast(ProjectileEventMessage{Op: ProjectileEventOp, Projectile: ev})
	})
	if err != nil {
		return err
	}
	g.subscriptions = append(g.subscriptions, projectiles)

	objects, err := g.transport.SubscribeMapObjectChanges(ctx, func(ev transport.ObjectEvent) {
		g.broadcast(ObjectEventMessage{Op: ObjectEventOp, Event: ev})
	})
	if err != nil {
		return err
	}
	g.subscriptions = append(g.subscriptions, objects)

	g.session.Go(g.sweep)
	return nil
}

func (g *Gateway) Close() {
	g.session.Cancel()
	g.session.Wait()
	for _, s := range g.subscriptions {
		s.Close()
	}
}

func (g *Gateway) NumConnections() int {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	return len(g.connections)
}

func (g *Gateway) add(c *connection) {
	g.mutex.Lock()
	g.connections[c] = struct{}{}
	g.mutex.Unlock()
}

func (g *Gateway) remove(c *connection) {
	g.mutex.Lock()
	delete(g.connections, c)
	g.mutex.Unlock()
}

// broadcast encodes the message once and hands it to every joined
// connection. A connection whose send buffer is full is closed as too slow
// rather than allowed to stall the rest.
func (g *Gateway) broadcast(message interface{}) {
	data, err := cbor.Marshal(message)
	if err != nil {
		log.Error().Err(err).Msg("could not encode broadcast")
		return
	}

	g.mutex.Lock()
	connections := make([]*connection, 0, len(g.connections))
	for c := range g.connections {
		connections = append(connections, c)
	}
	g.mutex.Unlock()

	joined := fp.Filter(func(c *connection) bool { return c.player() != "" })(connections)
	for _, c := range joined {
		select {
		case c.send <- data:
		default:
			c.closeSlow()
		}
	}
}

// sweep periodically flags players on silent connections inactive, so a
// backgrounded tab stops haunting everyone else's world.
func (g *Gateway) sweep() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			g.mutex.Lock()
			connections := make([]*connection, 0, len(g.connections))
			for c := range g.connections {
				connections = append(connections, c)
			}
			g.mutex.Unlock()

			idle := fp.Filter(func(c *connection) bool {
				return c.player() != "" && c.idle(now) > inactiveAfter
			})(connections)
			for _, c := range idle {
				id := c.player()
				log.Info().Str("player", id).Msg("flagging idle player inactive")
				if err := g.transport.MarkPlayerInactive(g.session.Ctx(), id); err != nil {
					log.Error().Err(err).Str("player", id).
						Msg("could not flag player inactive")
				}
			}
		case <-g.session.Ctx().Done():
			return
		}
	}
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		log.Error().Err(err).Msg("could not accept websocket")
		return
	}
	defer ws.Close(websocket.StatusInternalError, "")

	agent := useragent.Parse(r.Header.Get("User-Agent"))
	err = g.handle(r.Context(), ws, r.RemoteAddr, agent)
	if err != nil && websocket.CloseStatus(err) != websocket.StatusNormalClosure {
		log.Debug().Err(err).Msg("connection ended")
	}
}

func writeTimeoutFrame(ctx context.Context, ws *websocket.Conn, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return ws.Write(ctx, websocket.MessageBinary, data)
}

func (g *Gateway) handle(ctx context.Context, ws *websocket.Conn, host string, agent useragent.UserAgent) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c := &connection{
		session:  uuid.New().String(),
		send:     make(chan []byte, sendBuffer),
		lastSeen: time.Now(),
	}
	c.closeSlow = func() {
		ws.Close(websocket.StatusPolicyViolation, "connection too slow to keep up with messages")
	}

	g.add(c)
	defer g.remove(c)

	logger := log.With().
		Str("session", c.session).
		Str("host", host).
		Str("browser", agent.Name).
		Str("os", agent.OS).
		Logger()
	logger.Info().Msg("connection opened")

	receive := make(chan []byte)
	go func() {
		defer cancel()
		for {
			kind, data, err := ws.Read(ctx)
			if err != nil {
				return
			}
			if kind != websocket.MessageBinary {
				continue
			}
			select {
			case receive <- data:
			case <-ctx.Done():
				return
			}
		}
	}()

	limiter := rate.NewLimiter(rate.Limit(inboundRate), inboundBurst)

	for {
		select {
		case data := <-receive:
			if !limiter.Allow() {
				logger.Debug().Msg("dropping frame over rate limit")
				continue
			}
			c.touch(time.Now())
			if err := g.handleFrame(ctx, c, data, &logger); err != nil {
				return err
			}
		case data := <-c.send:
			if err := writeTimeoutFrame(ctx, ws, data); err != nil {
				logger.Info().Msg("connection missed write timeout")
				g.depart(c, &logger)
				return err
			}
		case <-ctx.Done():
			g.depart(c, &logger)
			return ctx.Err()
		}
	}
}

// handleFrame routes one inbound frame. Undecodable frames are dropped; a
// hostile or buggy client must never take the gateway down.
func (g *Gateway) handleFrame(ctx context.Context, c *connection, data []byte, logger *zerolog.Logger) error {
	var generic GenericMessage
	if err := cbor.Unmarshal(data, &generic); err != nil {
		logger.Debug().Err(err).Msg("dropping undecodable frame")
		return nil
	}

	// Everything except the handshake requires a joined player; a socket
	// that never said hello has no business publishing.
	switch generic.Op {
	case StateOp, ProjectileOp, ObjectOp:
		if c.player() == "" {
			logger.Debug().Int("op", generic.Op).
				Msg("dropping frame sent before hello")
			return nil
		}
	}

	switch generic.Op {
	case HelloOp:
		var hello HelloMessage
		if err := cbor.Unmarshal(data, &hello); err != nil || hello.ID == "" {
			logger.Debug().Msg("dropping malformed hello")
			return nil
		}
		c.setPlayer(hello.ID)
		*logger = logger.With().Str("player", hello.ID).Str("name", hello.Name).Logger()
		logger.Info().Msg("player joined")

		objects, err := g.transport.FetchMapObjects(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("could not fetch map objects")
			objects = nil
		}
		welcome, err := cbor.Marshal(WelcomeMessage{
			Op:      WelcomeOp,
			Session: c.session,
			Objects: objects,
		})
		if err != nil {
			return err
		}
		c.send <- welcome

	case StateOp:
		var message StateMessage
		if err := cbor.Unmarshal(data, &message); err != nil || message.State.ID == "" {
			return nil
		}
		// Clients own their state; the gateway relays it as-is.
		if id := c.player(); message.State.ID != id {
			logger.Debug().Str("claimed", message.State.ID).
				Msg("dropping state for foreign id")
			return nil
		}
		if err := g.transport.PublishPlayerState(ctx, message.State); err != nil {
			logger.Error().Err(err).Msg("player publish failed")
		}

	case ProjectileOp:
		var message ProjectileMessage
		if err := cbor.Unmarshal(data, &message); err != nil || message.Projectile.ID == "" {
			return nil
		}
		if err := g.transport.PublishProjectile(ctx, message.Projectile); err != nil {
			logger.Error().Err(err).Msg("projectile publish failed")
		}

	case ObjectOp:
		var message ObjectMessage
		if err := cbor.Unmarshal(data, &message); err != nil || message.Object.ID == "" {
			return nil
		}
		if err := g.transport.PublishMapObject(ctx, message.Object); err != nil {
			logger.Error().Err(err).Msg("object publish failed")
		}

	case LeaveOp:
		g.depart(c, logger)
		return fmt.Errorf("client left")
	}

	return nil
}

// depart makes the best-effort removal for a connection's player.
func (g *Gateway) depart(c *connection, logger *zerolog.Logger) {
	id := c.player()
	if id == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := transport.RemovePlayer(ctx, g.transport, id); err != nil {
		logger.Error().Err(err).Msg("departure cleanup failed")
	}
	c.setPlayer("")
	logger.Info().Msg("player left")
}
