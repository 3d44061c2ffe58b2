// Package transport defines the pub/sub contract the reconciliation core
// speaks to the realtime backend. Adapters live in subpackages: memory for
// in-process tests and bot swarms, redis for the hosted deployment.
package transport

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/strafehq/strafe/pkg/game"
)

type EventKind string

const (
	EventInsert EventKind = "INSERT"
	EventUpdate EventKind = "UPDATE"
	EventDelete EventKind = "DELETE"
)

// PlayerEvent is one change to a player record. Previous is the state the
// backend held before this event, when the adapter can supply it.
type PlayerEvent struct {
	Kind     EventKind         `json:"kind"`
	State    game.PlayerState  `json:"state"`
	Previous *game.PlayerState `json:"previous,omitempty"`
}

type ObjectEvent struct {
	Kind     EventKind            `json:"kind"`
	State    game.MapObjectState  `json:"state"`
	Previous *game.MapObjectState `json:"previous,omitempty"`
}

// Subscription is the handle for one active callback registration.
type Subscription interface {
	Close()
}

// Transport is the realtime backend as the core sees it. All publishes have
// upsert semantics keyed by id. Callbacks run on the adapter's own
// goroutine; consumers must hand events off (e.g. into an inbox) rather
// than block in them.
type Transport interface {
	PublishPlayerState(ctx context.Context, state game.PlayerState) error
	PublishProjectile(ctx context.Context, ev game.ProjectileEvent) error
	PublishMapObject(ctx context.Context, obj game.MapObjectState) error

	SubscribePlayerChanges(ctx context.Context, fn func(PlayerEvent)) (Subscription, error)
	SubscribeProjectileInserts(ctx context.Context, fn func(game.ProjectileEvent)) (Subscription, error)
	SubscribeMapObjectChanges(ctx context.Context, fn func(ObjectEvent)) (Subscription, error)

	// FetchMapObjects is the one-time bulk read at world init.
	FetchMapObjects(ctx context.Context) ([]game.MapObjectState, error)

	DeletePlayer(ctx context.Context, id string) error
	MarkPlayerInactive(ctx context.Context, id string) error
}

// RemovePlayer is the best-effort departure every caller should use: a hard
// delete first, degraded to an inactive flag when the delete is refused
// (e.g. a referential constraint on dependent records).
func RemovePlayer(ctx context.Context, t Transport, id string) error {
	err := t.DeletePlayer(ctx, id)
	if err == nil {
		return nil
	}

	log.Debug().Err(err).Str("player", id).
		Msg("hard delete refused, marking inactive instead")
	return t.MarkPlayerInactive(ctx, id)
}
