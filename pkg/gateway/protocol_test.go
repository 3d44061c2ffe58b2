package gateway

import (
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strafehq/strafe/pkg/game"
)

// Frames are probed with GenericMessage before the full decode; the Op must
// survive both passes.
func TestOpProbing(t *testing.T) {
	frame, err := cbor.Marshal(StateMessage{
		Op: StateOp,
		State: game.PlayerState{
			ID:       "p1",
			Health:   66,
			Position: mgl64.Vec3{1, 2, 3},
			Jumping:  true,
		},
	})
	require.NoError(t, err)

	var generic GenericMessage
	require.NoError(t, cbor.Unmarshal(frame, &generic))
	assert.Equal(t, StateOp, generic.Op)

	var message StateMessage
	require.NoError(t, cbor.Unmarshal(frame, &message))
	assert.Equal(t, "p1", message.State.ID)
	assert.Equal(t, 66, message.State.Health)
	assert.Equal(t, mgl64.Vec3{1, 2, 3}, message.State.Position)
	assert.True(t, message.State.Jumping)
}

func TestHelloWelcomeRoundTrip(t *testing.T) {
	hello, err := cbor.Marshal(HelloMessage{Op: HelloOp, ID: "p1", Name: "ana"})
	require.NoError(t, err)

	var decoded HelloMessage
	require.NoError(t, cbor.Unmarshal(hello, &decoded))
	assert.Equal(t, "p1", decoded.ID)

	welcome, err := cbor.Marshal(WelcomeMessage{
		Op:      WelcomeOp,
		Session: "s1",
		Objects: []game.MapObjectState{{ID: "b1", Kind: game.ObjectBuilding}},
	})
	require.NoError(t, err)

	var generic GenericMessage
	require.NoError(t, cbor.Unmarshal(welcome, &generic))
	assert.Equal(t, WelcomeOp, generic.Op)
}

// A malformed frame must decode into GenericMessage as garbage or fail, but
// never panic the gateway.
func TestMalformedFrame(t *testing.T) {
	var generic GenericMessage
	err := cbor.Unmarshal([]byte{0xff, 0x00, 0x12}, &generic)
	assert.Error(t, err)
}
