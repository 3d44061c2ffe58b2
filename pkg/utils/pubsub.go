package utils

import (
	"github.com/sasha-s/go-deadlock"
)

// Topic is an in-process fan-out of values to any number of subscribers.
// Delivery is best-effort: each subscriber reads from a buffered channel,
// and a subscriber that stops draining loses values rather than blocking
// the publisher.
type Topic[T any] struct {
	mutex       deadlock.Mutex
	subscribers map[*Subscriber[T]]struct{}
	dropped     uint64
}

func NewTopic[T any]() *Topic[T] {
	return &Topic[T]{
		subscribers: make(map[*Subscriber[T]]struct{}),
	}
}

func (t *Topic[T]) Publish(value T) {
	t.mutex.Lock()
	for subscriber := range t.subscribers {
		select {
		case subscriber.channel <- value:
		default:
			t.dropped++
		}
	}
	t.mutex.Unlock()
}

// Dropped counts values lost to full subscriber buffers since creation.
func (t *Topic[T]) Dropped() uint64 {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.dropped
}

func (t *Topic[T]) NumSubscribers() int {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return len(t.subscribers)
}

type Subscriber[T any] struct {
	channel chan T
	topic   *Topic[T]
}

func (t *Topic[T]) Subscribe(buffer int) *Subscriber[T] {
	if buffer < 1 {
		buffer = 1
	}
	subscriber := &Subscriber[T]{
		channel: make(chan T, buffer),
		topic:   t,
	}
	t.mutex.Lock()
	t.subscribers[subscriber] = struct{}{}
	t.mutex.Unlock()

	return subscriber
}

func (s *Subscriber[T]) Recv() <-chan T {
	return s.channel
}

func (s *Subscriber[T]) Done() {
	topic := s.topic
	topic.mutex.Lock()
	delete(topic.subscribers, s)
	topic.mutex.Unlock()
}
