// Package pubsub provides a single-publisher, multi-subscriber fan-out with
// explicit unsubscribe handles.
package pubsub

import "sync"

// Hub delivers published values to every current subscriber, synchronously and in
// publish order. Handlers must not block; they may subscribe or unsubscribe.
type Hub[T any] struct {
	mu       sync.Mutex
	delivery sync.Mutex
	next     uint64
	subs     map[uint64]func(T)
	order    []uint64
}

// NewHub creates an empty Hub.
func NewHub[T any]() *Hub[T] {
	return &Hub[T]{subs: make(map[uint64]func(T))}
}

// Subscribe registers handler and returns a function that removes it. Calling the
// returned function more than once is a no-op.
func (h *Hub[T]) Subscribe(handler func(T)) (unsubscribe func()) {
	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = handler
	h.order = append(h.order, id)
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { h.remove(id) })
	}
}

func (h *Hub[T]) remove(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.subs, id)
	for i, v := range h.order {
		if v == id {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
}

// Publish delivers v to subscribers in subscription order. Concurrent publishes
// are serialized so every subscriber observes the same sequence.
func (h *Hub[T]) Publish(v T) {
	h.delivery.Lock()
	defer h.delivery.Unlock()

	h.mu.Lock()
	handlers := make([]func(T), 0, len(h.order))
	for _, id := range h.order {
		handlers = append(handlers, h.subs[id])
	}
	h.mu.Unlock()

	for _, fn := range handlers {
		fn(v)
	}
}

// Len returns the number of current subscribers.
func (h *Hub[T]) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
