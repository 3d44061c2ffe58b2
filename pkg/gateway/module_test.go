package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strafehq/strafe/pkg/game"
	"github.com/strafehq/strafe/pkg/transport/memory"
)

func newTestConnection() *connection {
	return &connection{
		session:   "test-session",
		send:      make(chan []byte, sendBuffer),
		closeSlow: func() {},
		lastSeen:  time.Now(),
	}
}

func frame(t *testing.T, v any) []byte {
	t.Helper()
	data, err := cbor.Marshal(v)
	require.NoError(t, err)
	return data
}

func TestFramesBeforeHelloAreDropped(t *testing.T) {
	broker := memory.NewBroker()
	g := NewGateway(context.Background(), broker)
	c := newTestConnection()
	logger := zerolog.Nop()
	ctx := context.Background()

	state := frame(t, StateMessage{
		Op:    StateOp,
		State: game.PlayerState{ID: "p1", Health: 100},
	})
	shot := frame(t, ProjectileMessage{
		Op:         ProjectileOp,
		Projectile: game.ProjectileEvent{ID: "x", ShooterID: "p1"},
	})
	object := frame(t, ObjectMessage{
		Op:     ObjectOp,
		Object: game.MapObjectState{ID: "crate-1"},
	})

	// No hello yet: nothing reaches the transport.
	require.NoError(t, g.handleFrame(ctx, c, state, &logger))
	require.NoError(t, g.handleFrame(ctx, c, shot, &logger))
	require.NoError(t, g.handleFrame(ctx, c, object, &logger))
	assert.Equal(t, 0, broker.NumPlayers())
	objects, err := broker.FetchMapObjects(ctx)
	require.NoError(t, err)
	assert.Empty(t, objects)

	// After the handshake the same state frame goes through.
	hello := frame(t, HelloMessage{Op: HelloOp, ID: "p1", Name: "one"})
	require.NoError(t, g.handleFrame(ctx, c, hello, &logger))
	require.NoError(t, g.handleFrame(ctx, c, state, &logger))
	assert.Equal(t, 1, broker.NumPlayers())
}

func TestStateForForeignIdIsDropped(t *testing.T) {
	broker := memory.NewBroker()
	g := NewGateway(context.Background(), broker)
	c := newTestConnection()
	logger := zerolog.Nop()
	ctx := context.Background()

	hello := frame(t, HelloMessage{Op: HelloOp, ID: "p1", Name: "one"})
	require.NoError(t, g.handleFrame(ctx, c, hello, &logger))

	foreign := frame(t, StateMessage{
		Op:    StateOp,
		State: game.PlayerState{ID: "p2", Health: 100},
	})
	require.NoError(t, g.handleFrame(ctx, c, foreign, &logger))
	assert.Equal(t, 0, broker.NumPlayers())
}
