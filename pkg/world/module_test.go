package world

import (
	"sync"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strafehq/strafe/pkg/game"
)

func TestPlayerLifecycle(t *testing.T) {
	s := NewStore()

	_, ok := s.GetPlayer("a")
	assert.False(t, ok)
	assert.False(t, s.RemovePlayer("a"))

	s.UpsertPlayer(game.PlayerState{ID: "a", Name: "ana", Health: 100})
	p, ok := s.GetPlayer("a")
	require.True(t, ok)
	assert.Equal(t, "ana", p.Name)
	assert.Equal(t, 1, s.NumPlayers())

	p.Health = 66
	s.UpsertPlayer(p)
	p, _ = s.GetPlayer("a")
	assert.Equal(t, 66, p.Health)
	assert.Equal(t, 1, s.NumPlayers())

	assert.True(t, s.RemovePlayer("a"))
	assert.Equal(t, 0, s.NumPlayers())
}

func TestPlayersReturnsCopy(t *testing.T) {
	s := NewStore()
	s.UpsertPlayer(game.PlayerState{ID: "a", Health: 100})

	snapshot := s.Players()
	require.Len(t, snapshot, 1)
	snapshot[0].Health = 1

	p, _ := s.GetPlayer("a")
	assert.Equal(t, 100, p.Health)
}

func TestMutatePlayer(t *testing.T) {
	s := NewStore()

	ok := s.MutatePlayer("missing", func(p *game.PlayerState) {
		t.Fatal("fn should not run for an unknown id")
	})
	assert.False(t, ok)

	s.UpsertPlayer(game.PlayerState{ID: "a", Health: 100})
	ok = s.MutatePlayer("a", func(p *game.PlayerState) {
		p.ApplyDamage(34)
	})
	require.True(t, ok)
	p, _ := s.GetPlayer("a")
	assert.Equal(t, 66, p.Health)
}

func TestMutatePlayerIsSerialized(t *testing.T) {
	s := NewStore()
	s.UpsertPlayer(game.PlayerState{ID: "a", Health: 100})

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.MutatePlayer("a", func(p *game.PlayerState) {
				p.Health--
			})
		}()
	}
	wg.Wait()

	p, _ := s.GetPlayer("a")
	assert.Equal(t, 0, p.Health)
}

func TestObjectLifecycle(t *testing.T) {
	s := NewStore()

	s.UpsertObject(game.MapObjectState{
		ID:       "p1",
		Kind:     game.ObjectPlatform,
		Position: mgl64.Vec3{0, 4, 0},
		Scale:    mgl64.Vec3{8, 1, 8},
	})
	s.UpsertObject(game.MapObjectState{ID: "b1", Kind: game.ObjectBuilding})

	o, ok := s.GetObject("p1")
	require.True(t, ok)
	assert.Equal(t, game.ObjectPlatform, o.Kind)
	assert.Equal(t, 2, s.NumObjects())

	assert.True(t, s.RemoveObject("b1"))
	assert.False(t, s.RemoveObject("b1"))
	assert.Equal(t, 1, s.NumObjects())
	assert.Len(t, s.Objects(), 1)
}
