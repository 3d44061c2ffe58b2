package gateway

import (
	"github.com/strafehq/strafe/pkg/game"
	"github.com/strafehq/strafe/pkg/transport"
)

// Every websocket frame is a cbor-encoded message whose first field is Op,
// so a frame can be probed with GenericMessage before a full decode.
const (
	// client -> gateway
	HelloOp int = iota
	StateOp
	ProjectileOp
	ObjectOp
	LeaveOp
	// gateway -> client
	WelcomeOp
	PlayerEventOp
	ProjectileEventOp
	ObjectEventOp
)

type GenericMessage struct {
	Op int
}

// HelloMessage must be the first frame a client sends.
type HelloMessage struct {
	Op   int // HelloOp
	ID   string
	Name string
}

type StateMessage struct {
	Op    int // StateOp
	State game.PlayerState
}

type ProjectileMessage struct {
	Op         int // ProjectileOp
	Projectile game.ProjectileEvent
}

type ObjectMessage struct {
	Op     int // ObjectOp
	Object game.MapObjectState
}

// WelcomeMessage answers a hello with the session id and the current map.
type WelcomeMessage struct {
	Op      int // WelcomeOp
	Session string
	Objects []game.MapObjectState
}

type PlayerEventMessage struct {
	Op    int // PlayerEventOp
	Event transport.PlayerEvent
}

type ProjectileEventMessage struct {
	Op         int // ProjectileEventOp
	Projectile game.ProjectileEvent
}

type ObjectEventMessage struct {
	Op    int // ObjectEventOp
	Event transport.ObjectEvent
}
