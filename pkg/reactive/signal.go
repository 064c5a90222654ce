package reactive

import (
	"reflect"
	"sync"
	"sync/atomic"
)

var idCounter uint64

// nextID returns a process-unique identifier for signals, watchers and owners.
func nextID() uint64 {
	return atomic.AddUint64(&idCounter, 1)
}

// watcher is a single registered change callback.
type watcher[T any] struct {
	id uint64
	fn func(T)
}

// Signal is a reactive value container.
// Watchers registered with Watch are called synchronously, in registration
// order, every time Set or Update stores a value that differs from the
// current one.
type Signal[T any] struct {
	id uint64

	// value is the current signal value.
	value T

	// mu protects value and equal.
	mu sync.RWMutex

	// watchers are the registered change callbacks.
	watchers  []watcher[T]
	watcherMu sync.RWMutex

	// equal decides whether a write is a change.
	// If nil, defaultEquals is used.
	equal func(T, T) bool
}

// NewSignal creates a new signal with the given initial value.
func NewSignal[T any](initial T) *Signal[T] {
	return &Signal[T]{
		id:    nextID(),
		value: initial,
	}
}

// ID returns the unique identifier for this signal.
func (s *Signal[T]) ID() uint64 {
	return s.id
}

// Get returns the current value.
func (s *Signal[T]) Get() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Set updates the value and notifies watchers if the value changed.
// It reports whether a change was stored.
func (s *Signal[T]) Set(value T) bool {
	s.mu.Lock()
	changed := !s.equals(s.value, value)
	if changed {
		s.value = value
	}
	s.mu.Unlock()

	if changed {
		s.notify(value)
	}
	return changed
}

// Update atomically reads and updates the value.
// The function receives the current value and returns the new value.
func (s *Signal[T]) Update(fn func(T) T) bool {
	if fn == nil {
		return false
	}
	s.mu.Lock()
	next := fn(s.value)
	changed := !s.equals(s.value, next)
	if changed {
		s.value = next
	}
	s.mu.Unlock()

	if changed {
		s.notify(next)
	}
	return changed
}

// WithEquals returns the signal configured with a custom equality function.
func (s *Signal[T]) WithEquals(fn func(T, T) bool) *Signal[T] {
	s.mu.Lock()
	s.equal = fn
	s.mu.Unlock()
	return s
}

// Watch registers fn to be called with the new value on every change.
// The returned function detaches fn; calling it more than once is a no-op.
func (s *Signal[T]) Watch(fn func(T)) (unwatch func()) {
	if fn == nil {
		return func() {}
	}
	id := nextID()

	s.watcherMu.Lock()
	s.watchers = append(s.watchers, watcher[T]{id: id, fn: fn})
	s.watcherMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { s.unwatch(id) })
	}
}

// Watchers returns the number of registered watchers.
func (s *Signal[T]) Watchers() int {
	s.watcherMu.RLock()
	defer s.watcherMu.RUnlock()
	return len(s.watchers)
}

func (s *Signal[T]) unwatch(id uint64) {
	s.watcherMu.Lock()
	defer s.watcherMu.Unlock()

	for i, w := range s.watchers {
		if w.id == id {
			s.watchers = append(s.watchers[:i], s.watchers[i+1:]...)
			return
		}
	}
}

// notify calls every watcher with value.
// Uses copy-before-notify so watchers may unwatch themselves.
func (s *Signal[T]) notify(value T) {
	s.watcherMu.RLock()
	watchers := make([]watcher[T], len(s.watchers))
	copy(watchers, s.watchers)
	s.watcherMu.RUnlock()

	for _, w := range watchers {
		w.fn(value)
	}
}

func (s *Signal[T]) equals(a, b T) bool {
	if s.equal != nil {
		return s.equal(a, b)
	}
	return defaultEquals(a, b)
}

// defaultEquals uses == for common scalar types and reflect.DeepEqual for
// everything else. Values of different dynamic types are never equal.
func defaultEquals[T any](a, b T) bool {
	switch av := any(a).(type) {
	case int:
		bv, ok := any(b).(int)
		return ok && av == bv
	case int64:
		bv, ok := any(b).(int64)
		return ok && av == bv
	case uint64:
		bv, ok := any(b).(uint64)
		return ok && av == bv
	case float64:
		bv, ok := any(b).(float64)
		return ok && av == bv
	case string:
		bv, ok := any(b).(string)
		return ok && av == bv
	case bool:
		bv, ok := any(b).(bool)
		return ok && av == bv
	default:
		return reflect.DeepEqual(a, b)
	}
}
