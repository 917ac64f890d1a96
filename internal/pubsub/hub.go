// Package pubsub provides a tiny generic fan-out hub: one writer
// broadcasts values of type T to any number of buffered subscriber
// channels, dropping a value for a subscriber whose buffer is full
// rather than blocking the writer.
package pubsub

import (
	"sync"

	"go.uber.org/zap"
)

// Subscription is a single subscriber's channel handle.
type Subscription[T any] struct {
	ch chan T
}

// Hub fans out broadcast values to its current subscribers, the way
// internal/bus fans out typed events to registered handlers — but a
// subscriber here is a channel a goroutine is draining (a WebSocket
// writer loop), not a callback the hub itself invokes, so a full
// buffer is a normal, expected condition rather than a programming
// error; Hub logs it at Debug instead of blocking the writer or
// isolating a panic that can't actually occur on a plain channel
// send.
type Hub[T any] struct {
	mu   sync.RWMutex
	subs map[*Subscription[T]]struct{}
	log  *zap.Logger
}

// New builds an empty hub. log may be nil, in which case a no-op
// logger is used, matching internal/bus.New's convention.
func New[T any](log *zap.Logger) *Hub[T] {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub[T]{subs: make(map[*Subscription[T]]struct{}), log: log}
}

// Subscribe registers a new subscriber with the given channel buffer
// depth.
func (h *Hub[T]) Subscribe(buffer int) *Subscription[T] {
	sub := &Subscription[T]{ch: make(chan T, buffer)}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

// Unsubscribe removes sub and closes its channel. The caller must stop
// reading from sub.Chan() once this returns.
func (h *Hub[T]) Unsubscribe(sub *Subscription[T]) {
	h.mu.Lock()
	delete(h.subs, sub)
	h.mu.Unlock()
	close(sub.ch)
}

// Chan exposes the subscription's receive-only channel.
func (s *Subscription[T]) Chan() <-chan T { return s.ch }

// Broadcast delivers value to every current subscriber, dropping it
// for any subscriber whose buffer is currently full. The lock is held
// for the whole fan-out, unlike internal/bus.Emit's copy-then-release
// pattern: Emit can release early because a registered Handler is
// never invalidated out from under it, but a Subscription's channel
// is closed by Unsubscribe, and sending on a closed channel panics, so
// the send and a concurrent close must stay mutually exclusive for as
// long as the send can happen.
func (h *Hub[T]) Broadcast(value T) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs {
		select {
		case sub.ch <- value:
		default:
			h.log.Debug("dropping value for full subscriber buffer")
		}
	}
}
