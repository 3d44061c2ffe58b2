// Package redis adapts the transport contract onto a Redis deployment:
// per-entity hashes for storage and pub/sub channels for change events,
// everything cbor-encoded on the wire.
package redis

import (
	"context"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/go-redis/redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/strafehq/strafe/pkg/game"
	"github.com/strafehq/strafe/pkg/transport"
)

const (
	KEY_PLAYERS = "strafe:players"
	KEY_OBJECTS = "strafe:objects"

	CHANNEL_PLAYER_EVENTS = "strafe:players:events"
	CHANNEL_PROJECTILES   = "strafe:projectiles"
	CHANNEL_OBJECT_EVENTS = "strafe:objects:events"
)

type Settings struct {
	Address  string `json:"address" yaml:"address"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
}

type Service struct {
	client *redis.Client
}

var _ transport.Transport = (*Service)(nil)

func NewService(settings Settings) *Service {
	return &Service{
		client: redis.NewClient(&redis.Options{
			Addr:     settings.Address,
			Password: settings.Password,
			DB:       settings.DB,
		}),
	}
}

// Ping checks the connection; binaries call it once at startup so a bad
// address fails loudly instead of silently dropping every publish.
func (s *Service) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Service) Close() error {
	return s.client.Close()
}

func (s *Service) previousPlayer(ctx context.Context, id string) *game.PlayerState {
	data, err := s.client.HGet(ctx, KEY_PLAYERS, id).Bytes()
	if err != nil {
		return nil
	}
	var previous game.PlayerState
	if err := cbor.Unmarshal(data, &previous); err != nil {
		return nil
	}
	return &previous
}

func (s *Service) PublishPlayerState(ctx context.Context, state game.PlayerState) error {
	data, err := cbor.Marshal(state)
	if err != nil {
		return fmt.Errorf("could not encode player state: %w", err)
	}

	event := transport.PlayerEvent{
		Kind:  transport.EventInsert,
		State: state,
	}
	if previous := s.previousPlayer(ctx, state.ID); previous != nil {
		event.Kind = transport.EventUpdate
		event.Previous = previous
	}

	if err := s.client.HSet(ctx, KEY_PLAYERS, state.ID, data).Err(); err != nil {
		return fmt.Errorf("could not store player state: %w", err)
	}

	return s.publishEvent(ctx, CHANNEL_PLAYER_EVENTS, event)
}

func (s *Service) PublishProjectile(ctx context.Context, ev game.ProjectileEvent) error {
	// Projectiles are ephemeral: published, never stored.
	return s.publishEvent(ctx, CHANNEL_PROJECTILES, ev)
}

func (s *Service) PublishMapObject(ctx context.Context, obj game.MapObjectState) error {
	data, err := cbor.Marshal(obj)
	if err != nil {
		return fmt.Errorf("could not encode map object: %w", err)
	}

	event := transport.ObjectEvent{
		Kind:  transport.EventInsert,
		State: obj,
	}
	if raw, err := s.client.HGet(ctx, KEY_OBJECTS, obj.ID).Bytes(); err == nil {
		var previous game.MapObjectState
		if err := cbor.Unmarshal(raw, &previous); err == nil {
			event.Kind = transport.EventUpdate
			event.Previous = &previous
		}
	}

	if err := s.client.HSet(ctx, KEY_OBJECTS, obj.ID, data).Err(); err != nil {
		return fmt.Errorf("could not store map object: %w", err)
	}

	return s.publishEvent(ctx, CHANNEL_OBJECT_EVENTS, event)
}

func (s *Service) publishEvent(ctx context.Context, channel string, event interface{}) error {
	data, err := cbor.Marshal(event)
	if err != nil {
		return fmt.Errorf("could not encode event: %w", err)
	}
	return s.client.Publish(ctx, channel, data).Err()
}

func (s *Service) SubscribePlayerChanges(ctx context.Context, fn func(transport.PlayerEvent)) (transport.Subscription, error) {
	return subscribe(ctx, s.client, CHANNEL_PLAYER_EVENTS, fn)
}

func (s *Service) SubscribeProjectileInserts(ctx context.Context, fn func(game.ProjectileEvent)) (transport.Subscription, error) {
	return subscribe(ctx, s.client, CHANNEL_PROJECTILES, fn)
}

func (s *Service) SubscribeMapObjectChanges(ctx context.Context, fn func(transport.ObjectEvent)) (transport.Subscription, error) {
	return subscribe(ctx, s.client, CHANNEL_OBJECT_EVENTS, fn)
}

func (s *Service) FetchMapObjects(ctx context.Context) ([]game.MapObjectState, error) {
	entries, err := s.client.HGetAll(ctx, KEY_OBJECTS).Result()
	if err != nil {
		return nil, fmt.Errorf("could not fetch map objects: %w", err)
	}

	objects := make([]game.MapObjectState, 0, len(entries))
	for id, raw := range entries {
		var obj game.MapObjectState
		if err := cbor.Unmarshal([]byte(raw), &obj); err != nil {
			log.Debug().Err(err).Str("object", id).
				Msg("dropping undecodable map object")
			continue
		}
		objects = append(objects, obj)
	}
	return objects, nil
}

func (s *Service) DeletePlayer(ctx context.Context, id string) error {
	previous := s.previousPlayer(ctx, id)
	if previous == nil {
		return nil
	}

	if err := s.client.HDel(ctx, KEY_PLAYERS, id).Err(); err != nil {
		return fmt.Errorf("could not delete player %s: %w", id, err)
	}

	return s.publishEvent(ctx, CHANNEL_PLAYER_EVENTS, transport.PlayerEvent{
		Kind:     transport.EventDelete,
		State:    *previous,
		Previous: previous,
	})
}

func (s *Service) MarkPlayerInactive(ctx context.Context, id string) error {
	previous := s.previousPlayer(ctx, id)
	if previous == nil {
		return nil
	}

	state := *previous
	state.Inactive = true
	data, err := cbor.Marshal(state)
	if err != nil {
		return fmt.Errorf("could not encode player state: %w", err)
	}
	if err := s.client.HSet(ctx, KEY_PLAYERS, id, data).Err(); err != nil {
		return fmt.Errorf("could not flag player %s inactive: %w", id, err)
	}

	return s.publishEvent(ctx, CHANNEL_PLAYER_EVENTS, transport.PlayerEvent{
		Kind:     transport.EventUpdate,
		State:    state,
		Previous: previous,
	})
}

type subscription struct {
	cancel context.CancelFunc
	pubsub *redis.PubSub
}

func (s *subscription) Close() {
	s.cancel()
	s.pubsub.Close()
}

// subscribe pumps cbor payloads from one pub/sub channel into fn. Payloads
// that fail to decode are dropped; a malformed message from one client must
// never take the subscription down.
func subscribe[T any](ctx context.Context, client *redis.Client, channel string, fn func(T)) (transport.Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)
	pubsub := client.Subscribe(ctx, channel)

	if _, err := pubsub.Receive(ctx); err != nil {
		cancel()
		pubsub.Close()
		return nil, fmt.Errorf("could not subscribe to %s: %w", channel, err)
	}

	messages := pubsub.Channel()
	go func() {
		for {
			select {
			case message, ok := <-messages:
				if !ok {
					return
				}
				var value T
				if err := cbor.Unmarshal([]byte(message.Payload), &value); err != nil {
					log.Debug().Err(err).Str("channel", channel).
						Msg("dropping undecodable payload")
					continue
				}
				fn(value)
			case <-ctx.Done():
				return
			}
		}
	}()

	return &subscription{cancel: cancel, pubsub: pubsub}, nil
}
