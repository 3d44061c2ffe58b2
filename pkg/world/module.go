// Package world holds the client's replica of every remote entity: the last
// accepted snapshot per player and per map object. It is a plain keyed store;
// deciding WHICH updates get in is the reconciliation layer's job.
package world

import (
	"github.com/sasha-s/go-deadlock"

	"github.com/strafehq/strafe/pkg/game"
)

type Store struct {
	mutex   deadlock.RWMutex
	players map[string]game.PlayerState
	objects map[string]game.MapObjectState
}

func NewStore() *Store {
	return &Store{
		players: make(map[string]game.PlayerState),
		objects: make(map[string]game.MapObjectState),
	}
}

func (s *Store) GetPlayer(id string) (game.PlayerState, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	p, ok := s.players[id]
	return p, ok
}

// UpsertPlayer replaces the stored snapshot wholesale. Callers construct the
// complete next state; nothing is merged field by field.
func (s *Store) UpsertPlayer(p game.PlayerState) {
	s.mutex.Lock()
	s.players[p.ID] = p
	s.mutex.Unlock()
}

func (s *Store) RemovePlayer(id string) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if _, ok := s.players[id]; !ok {
		return false
	}
	delete(s.players, id)
	return true
}

// Players returns a copy of every stored player snapshot. The copy is safe to
// iterate while the store keeps changing.
func (s *Store) Players() []game.PlayerState {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	out := make([]game.PlayerState, 0, len(s.players))
	for _, p := range s.players {
		out = append(out, p)
	}
	return out
}

func (s *Store) NumPlayers() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.players)
}

// MutatePlayer applies fn to the stored snapshot for id under the store lock
// and reports whether the id was known. Damage application uses this so no
// read-modify-write can interleave with another apply.
func (s *Store) MutatePlayer(id string, fn func(*game.PlayerState)) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	p, ok := s.players[id]
	if !ok {
		return false
	}
	fn(&p)
	s.players[id] = p
	return true
}

func (s *Store) GetObject(id string) (game.MapObjectState, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	o, ok := s.objects[id]
	return o, ok
}

func (s *Store) UpsertObject(o game.MapObjectState) {
	s.mutex.Lock()
	s.objects[o.ID] = o
	s.mutex.Unlock()
}

func (s *Store) RemoveObject(id string) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if _, ok := s.objects[id]; !ok {
		return false
	}
	delete(s.objects, id)
	return true
}

func (s *Store) Objects() []game.MapObjectState {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	out := make([]game.MapObjectState, 0, len(s.objects))
	for _, o := range s.objects {
		out = append(out, o)
	}
	return out
}

func (s *Store) NumObjects() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.objects)
}
