package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopicFanOut(t *testing.T) {
	topic := NewTopic[int]()
	a := topic.Subscribe(4)
	b := topic.Subscribe(4)
	defer a.Done()
	defer b.Done()

	topic.Publish(7)
	assert.Equal(t, 7, <-a.Recv())
	assert.Equal(t, 7, <-b.Recv())
}

func TestTopicDropsWhenSubscriberIsFull(t *testing.T) {
	topic := NewTopic[int]()
	s := topic.Subscribe(2)
	defer s.Done()

	topic.Publish(1)
	topic.Publish(2)
	topic.Publish(3)

	assert.Equal(t, uint64(1), topic.Dropped())
	assert.Equal(t, 1, <-s.Recv())
	assert.Equal(t, 2, <-s.Recv())
	select {
	case v := <-s.Recv():
		t.Fatalf("unexpected value %d", v)
	default:
	}
}

func TestTopicUnsubscribe(t *testing.T) {
	topic := NewTopic[int]()
	s := topic.Subscribe(1)
	require.Equal(t, 1, topic.NumSubscribers())

	s.Done()
	assert.Equal(t, 0, topic.NumSubscribers())

	topic.Publish(1)
	assert.Equal(t, uint64(0), topic.Dropped(), "departed subscriber must not count as drops")
}
