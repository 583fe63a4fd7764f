// Package pubsub provides a typed in-process publish/subscribe topic and a
// NATS bridge that fans a topic out across processes.
package pubsub

import (
	"context"
	"sync"
)

// Topic delivers values of type T to every current subscriber.
// Handlers run synchronously on the publishing goroutine, in subscription order.
type Topic[T any] struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]func(context.Context, T)
	order  []uint64
}

// NewTopic returns an empty topic.
func NewTopic[T any]() *Topic[T] {
	return &Topic[T]{subs: make(map[uint64]func(context.Context, T))}
}

// Subscribe registers fn and returns a function that removes it. The returned
// function is idempotent.
func (t *Topic[T]) Subscribe(fn func(context.Context, T)) (unsubscribe func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.nextID
	t.nextID++
	t.subs[id] = fn
	t.order = append(t.order, id)

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			delete(t.subs, id)
			for i, v := range t.order {
				if v == id {
					t.order = append(t.order[:i], t.order[i+1:]...)
					break
				}
			}
		})
	}
}

// Publish delivers v to a snapshot of the current subscribers.
func (t *Topic[T]) Publish(ctx context.Context, v T) {
	t.mu.RLock()
	handlers := make([]func(context.Context, T), 0, len(t.order))
	for _, id := range t.order {
		handlers = append(handlers, t.subs[id])
	}
	t.mu.RUnlock()

	for _, h := range handlers {
		h(ctx, v)
	}
}

// Len reports the number of active subscribers.
func (t *Topic[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.subs)
}
