// Package memory is the in-process Transport: a set of Topic fan-outs over
// shared maps. Tests and the bot runner use it to wire many clients to
// one world with no network in between.
package memory

import (
	"context"

	"github.com/sasha-s/go-deadlock"

	"github.com/strafehq/strafe/pkg/game"
	"github.com/strafehq/strafe/pkg/transport"
	"github.com/strafehq/strafe/pkg/utils"
)

const subscriberBuffer = 256

type Broker struct {
	mutex deadlock.Mutex

	players map[string]game.PlayerState
	objects map[string]game.MapObjectState

	playerEvents *utils.Topic[transport.PlayerEvent]
	projectiles  *utils.Topic[game.ProjectileEvent]
	objectEvents *utils.Topic[transport.ObjectEvent]

	// failure, when set, is returned from every publish. Error-path tests
	// flip it on to check that callers degrade instead of crashing.
	// failDelete only fails hard deletes, for exercising the
	// delete-conflict fallback to the inactive flag.
	failure    error
	failDelete error
}

var _ transport.Transport = (*Broker)(nil)

func NewBroker() *Broker {
	return &Broker{
		players:      make(map[string]game.PlayerState),
		objects:      make(map[string]game.MapObjectState),
		playerEvents: utils.NewTopic[transport.PlayerEvent](),
		projectiles:  utils.NewTopic[game.ProjectileEvent](),
		objectEvents: utils.NewTopic[transport.ObjectEvent](),
	}
}

// FailWith makes every subsequent publish/delete return err. Pass nil to
// restore normal operation.
func (b *Broker) FailWith(err error) {
	b.mutex.Lock()
	b.failure = err
	b.mutex.Unlock()
}

// FailDeletes makes only DeletePlayer return err, simulating a referential
// constraint refusing the hard delete.
func (b *Broker) FailDeletes(err error) {
	b.mutex.Lock()
	b.failDelete = err
	b.mutex.Unlock()
}

func (b *Broker) PublishPlayerState(ctx context.Context, state game.PlayerState) error {
	b.mutex.Lock()
	if b.failure != nil {
		err := b.failure
		b.mutex.Unlock()
		return err
	}

	event := transport.PlayerEvent{
		Kind:  transport.EventInsert,
		State: state,
	}
	if previous, ok := b.players[state.ID]; ok {
		event.Kind = transport.EventUpdate
		event.Previous = &previous
	}
	b.players[state.ID] = state
	b.mutex.Unlock()

	b.playerEvents.Publish(event)
	return nil
}

func (b *Broker) PublishProjectile(ctx context.Context, ev game.ProjectileEvent) error {
	b.mutex.Lock()
	if b.failure != nil {
		err := b.failure
		b.mutex.Unlock()
		return err
	}
	b.mutex.Unlock()

	b.projectiles.Publish(ev)
	return nil
}

func (b *Broker) PublishMapObject(ctx context.Context, obj game.MapObjectState) error {
	b.mutex.Lock()
	if b.failure != nil {
		err := b.failure
		b.mutex.Unlock()
		return err
	}

	event := transport.ObjectEvent{
		Kind:  transport.EventInsert,
		State: obj,
	}
	if previous, ok := b.objects[obj.ID]; ok {
		event.Kind = transport.EventUpdate
		event.Previous = &previous
	}
	b.objects[obj.ID] = obj
	b.mutex.Unlock()

	b.objectEvents.Publish(event)
	return nil
}

func (b *Broker) SubscribePlayerChanges(ctx context.Context, fn func(transport.PlayerEvent)) (transport.Subscription, error) {
	return pump(ctx, b.playerEvents, fn), nil
}

func (b *Broker) SubscribeProjectileInserts(ctx context.Context, fn func(game.ProjectileEvent)) (transport.Subscription, error) {
	return pump(ctx, b.projectiles, fn), nil
}

func (b *Broker) SubscribeMapObjectChanges(ctx context.Context, fn func(transport.ObjectEvent)) (transport.Subscription, error) {
	return pump(ctx, b.objectEvents, fn), nil
}

func (b *Broker) FetchMapObjects(ctx context.Context) ([]game.MapObjectState, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.failure != nil {
		return nil, b.failure
	}
	out := make([]game.MapObjectState, 0, len(b.objects))
	for _, obj := range b.objects {
		out = append(out, obj)
	}
	return out, nil
}

func (b *Broker) DeletePlayer(ctx context.Context, id string) error {
	b.mutex.Lock()
	if b.failure != nil {
		err := b.failure
		b.mutex.Unlock()
		return err
	}
	if b.failDelete != nil {
		err := b.failDelete
		b.mutex.Unlock()
		return err
	}
	previous, ok := b.players[id]
	if !ok {
		b.mutex.Unlock()
		return nil
	}
	delete(b.players, id)
	b.mutex.Unlock()

	b.playerEvents.Publish(transport.PlayerEvent{
		Kind:     transport.EventDelete,
		State:    previous,
		Previous: &previous,
	})
	return nil
}

func (b *Broker) MarkPlayerInactive(ctx context.Context, id string) error {
	b.mutex.Lock()
	if b.failure != nil {
		err := b.failure
		b.mutex.Unlock()
		return err
	}
	previous, ok := b.players[id]
	if !ok {
		b.mutex.Unlock()
		return nil
	}
	state := previous
	state.Inactive = true
	b.players[id] = state
	b.mutex.Unlock()

	b.playerEvents.Publish(transport.PlayerEvent{
		Kind:     transport.EventUpdate,
		State:    state,
		Previous: &previous,
	})
	return nil
}

// Player returns the stored record for id.
func (b *Broker) Player(id string) (game.PlayerState, bool) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	state, ok := b.players[id]
	return state, ok
}

// NumPlayers reports how many player records the broker currently holds.
func (b *Broker) NumPlayers() int {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return len(b.players)
}

type subscription struct {
	cancel context.CancelFunc
}

func (s *subscription) Close() {
	s.cancel()
}

// pump moves values from a topic subscriber onto fn until the subscription
// is closed or the caller's context ends.
func pump[T any](ctx context.Context, topic *utils.Topic[T], fn func(T)) transport.Subscription {
	ctx, cancel := context.WithCancel(ctx)
	subscriber := topic.Subscribe(subscriberBuffer)

	go func() {
		defer subscriber.Done()
		for {
			select {
			case value := <-subscriber.Recv():
				fn(value)
			case <-ctx.Done():
				return
			}
		}
	}()

	return &subscription{cancel: cancel}
}
