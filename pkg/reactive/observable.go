// Package reactive implements value containers with change notification
// and multi-source derived reactions.
//
// Handlers run synchronously on the goroutine that called Set, so state
// propagation is deterministic as long as every Set for one container
// graph happens on one event loop. The containers themselves are safe
// for concurrent reads.
package reactive

import (
	"reflect"
	"sync"
)

// Observable holds a current value and an ordered set of subscribers.
// Subscribers are notified in registration order, and only when a new
// value is not deeply equal to the old one.
type Observable[T any] struct {
	mu     sync.Mutex
	value  T
	nextId int
	subs   []*subscription[T]
	eq     func(old, new T) bool
}

type subscription[T any] struct {
	id int
	fn func(T)
}

func NewObservable[T any](value T) *Observable[T] {
	return &Observable[T]{value: value, eq: deepEqual[T]}
}

// NewObservableEq overrides the change-suppression equality,
// e.g. identity comparison for handles to live resources.
func NewObservableEq[T any](value T, eq func(old, new T) bool) *Observable[T] {
	return &Observable[T]{value: value, eq: eq}
}

// deepEqual handles nested records and slices by value,
// not by reference identity.
func deepEqual[T any](old, new T) bool { return reflect.DeepEqual(old, new) }

func (o *Observable[T]) Get() T {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.value
}

// Set replaces the value. When the replacement differs from the old
// value, every subscriber registered at that moment is invoked, in
// registration order, with the new value. A subscriber registered by
// one of the handlers does not receive the in-flight notification.
func (o *Observable[T]) Set(value T) {
	o.mu.Lock()
	old := o.value
	o.value = value
	if o.eq(old, value) {
		o.mu.Unlock()
		return
	}
	snapshot := make([]*subscription[T], len(o.subs))
	copy(snapshot, o.subs)
	o.mu.Unlock()

	for _, s := range snapshot {
		s.fn(value)
	}
}

// Subscribe registers a handler and fires it immediately with the
// current value, unless skipInitial is set. The returned closure
// removes the handler; calling it twice is a no-op.
func (o *Observable[T]) Subscribe(fn func(T), skipInitial bool) (unsubscribe func()) {
	o.mu.Lock()
	s := &subscription[T]{id: o.nextId, fn: fn}
	o.nextId++
	o.subs = append(o.subs, s)
	value := o.value
	o.mu.Unlock()

	if !skipInitial {
		fn(value)
	}
	return func() { o.remove(s.id) }
}

func (o *Observable[T]) remove(id int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, s := range o.subs {
		if s.id == id {
			o.subs = append(o.subs[:i], o.subs[i+1:]...)
			return
		}
	}
}
