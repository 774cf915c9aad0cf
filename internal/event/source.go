// Package event provides typed event sources with ordered, synchronous delivery
// and one-shot subscriptions.
//
// A Source delivers every emitted value to its subscribers in registration
// order, on the emitting goroutine. Callers that need serialised processing
// hand the value to a dispatch queue from inside the handler.
package event

import "sync"

// Subscription is a registration on a Source.
//
// Unsubscribe releases the registration exactly once; further calls are no-ops.
// A nil *Subscription is valid and Unsubscribe on it does nothing.
type Subscription struct {
	once   sync.Once
	cancel func()
}

// NewSubscription wraps a release function in a one-shot Subscription.
// It lets implementations outside this package hand out the same type.
func NewSubscription(cancel func()) *Subscription {
	return &Subscription{cancel: cancel}
}

// Unsubscribe removes the handler from its source.
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
	})
}

type entry[T any] struct {
	id uint64
	fn func(T)
}

// Source is a typed event source. The zero value is ready to use.
//
// Thread Safety: all methods are safe for concurrent use.
type Source[T any] struct {
	mu     sync.Mutex
	nextID uint64
	subs   []entry[T]
}

// Subscribe registers fn and returns the subscription that removes it.
func (s *Source[T]) Subscribe(fn func(T)) *Subscription {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, entry[T]{id: id, fn: fn})
	s.mu.Unlock()

	return NewSubscription(func() { s.remove(id) })
}

func (s *Source[T]) remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, e := range s.subs {
		if e.id == id {
			s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
			return
		}
	}
}

// Emit delivers v to every current subscriber in registration order.
// Handlers registered or removed during delivery take effect on the next Emit.
func (s *Source[T]) Emit(v T) {
	s.mu.Lock()
	snapshot := make([]entry[T], len(s.subs))
	copy(snapshot, s.subs)
	s.mu.Unlock()

	for _, e := range snapshot {
		e.fn(v)
	}
}

// Len returns the number of registered handlers.
func (s *Source[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}
