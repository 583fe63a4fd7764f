package pubsub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTopicDeliversInOrder(t *testing.T) {
	topic := NewTopic[string]()
	var got []string

	topic.Subscribe(func(_ context.Context, v string) { got = append(got, "a:"+v) })
	topic.Subscribe(func(_ context.Context, v string) { got = append(got, "b:"+v) })

	topic.Publish(context.Background(), "x")
	require.Equal(t, []string{"a:x", "b:x"}, got)
	require.Equal(t, 2, topic.Len())
}

func TestTopicUnsubscribe(t *testing.T) {
	topic := NewTopic[int]()
	calls := 0
	unsubscribe := topic.Subscribe(func(context.Context, int) { calls++ })

	topic.Publish(context.Background(), 1)
	unsubscribe()
	unsubscribe()
	topic.Publish(context.Background(), 2)

	require.Equal(t, 1, calls)
	require.Zero(t, topic.Len())
}

func TestTopicUnsubscribeDuringPublish(t *testing.T) {
	topic := NewTopic[int]()
	calls := 0
	var unsubscribe func()
	unsubscribe = topic.Subscribe(func(context.Context, int) {
		calls++
		unsubscribe()
	})

	topic.Publish(context.Background(), 1)
	topic.Publish(context.Background(), 2)
	require.Equal(t, 1, calls)
}
