package sharedstate

import (
	"log/slog"
	"sync"

	"github.com/vango-dev/reactivator/pkg/loop"
	"github.com/vango-dev/reactivator/pkg/reactive"
)

// Option configures a Cache.
type Option func(*Cache)

// WithDispatcher routes implementation change callbacks through d.
// Use the component event loop so store writes are serialized with
// component hooks. Defaults to loop.Immediate.
func WithDispatcher(d loop.Dispatcher) Option {
	return func(c *Cache) {
		if d != nil {
			c.dispatcher = d
		}
	}
}

// WithMetrics sets the metrics sink. Defaults to NopMetrics.
func WithMetrics(m Metrics) Option {
	return func(c *Cache) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithLogger sets the cache logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// storeHandle is the type-erased view of a *Store[V] held by the cache.
type storeHandle interface {
	implementationName() string
	Listeners() int
}

// Cache memoizes one Store per Implementation.
// A Store lives from the first GetStore call for its Implementation until
// its last listener is removed.
type Cache struct {
	mu     sync.Mutex
	stores map[any]storeHandle

	dispatcher loop.Dispatcher
	metrics    Metrics
	logger     *slog.Logger
}

// NewCache creates an empty Cache.
func NewCache(opts ...Option) *Cache {
	c := &Cache{
		stores:     make(map[any]storeHandle),
		dispatcher: loop.Immediate,
		metrics:    NopMetrics{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Len returns the number of live stores.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.stores)
}

// Has reports whether a store exists for impl.
func (c *Cache) Has(impl any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.stores[impl]
	return ok
}

// StoreInfo describes a live store.
type StoreInfo struct {
	Implementation string `json:"implementation"`
	Listeners      int    `json:"listeners"`
}

// Snapshot describes every live store.
func (c *Cache) Snapshot() []StoreInfo {
	c.mu.Lock()
	handles := make([]storeHandle, 0, len(c.stores))
	for _, h := range c.stores {
		handles = append(handles, h)
	}
	c.mu.Unlock()

	out := make([]StoreInfo, 0, len(handles))
	for _, h := range handles {
		out = append(out, StoreInfo{
			Implementation: h.implementationName(),
			Listeners:      h.Listeners(),
		})
	}
	return out
}

// evict removes impl from the cache if it still maps to s.
func (c *Cache) evict(impl any, s storeHandle) {
	c.mu.Lock()
	current, ok := c.stores[impl]
	if ok && current == s {
		delete(c.stores, impl)
	}
	c.mu.Unlock()

	if ok && current == s {
		c.metrics.StoreReleased(s.implementationName())
		c.logger.Debug("store released", "implementation", s.implementationName())
	}
}

// GetStore returns the store for impl, creating it if none exists.
//
// initial seeds a newly created store and is ignored when the store already
// exists. Creating a store calls impl.Listen once; the subscription stays
// active until the store's last listener is removed.
func GetStore[V any](c *Cache, impl *Implementation[V], initial V) *Store[V] {
	if c == nil || impl == nil {
		return nil
	}

	c.mu.Lock()
	if h, ok := c.stores[impl]; ok {
		c.mu.Unlock()
		return h.(*Store[V])
	}
	s := &Store[V]{
		cache: c,
		impl:  impl,
		value: reactive.NewSignal(initial),
	}
	c.stores[impl] = s
	c.mu.Unlock()

	c.metrics.StoreCreated(impl.name())
	c.logger.Debug("store created", "implementation", impl.name())

	s.subscribe()
	return s
}

// Store holds the current value of one Implementation and counts the
// consumers listening to it.
type Store[V any] struct {
	cache *Cache
	impl  *Implementation[V]
	value *reactive.Signal[V]

	mu          sync.Mutex
	listeners   int
	unsubscribe func()
	released    bool
}

// Value returns the current value.
func (s *Store[V]) Value() V {
	return s.value.Get()
}

// Listeners returns the number of active listeners.
func (s *Store[V]) Listeners() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listeners
}

// Released reports whether the store has been torn down.
func (s *Store[V]) Released() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

func (s *Store[V]) implementationName() string {
	return s.impl.name()
}

// Listen calls handler with the new value every time the store's value
// changes. The returned function removes the handler; once every handler is
// removed the upstream subscription is cancelled and the store leaves the
// cache. Calling the returned function more than once has no further effect.
//
// Listening on a released store registers nothing.
func (s *Store[V]) Listen(handler func(V)) (remove func()) {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		s.cache.logger.Debug("listen on released store ignored", "implementation", s.impl.name())
		return func() {}
	}
	s.listeners++
	s.mu.Unlock()

	s.cache.metrics.ListenerAdded(s.impl.name())
	unwatch := s.value.Watch(handler)

	var once sync.Once
	return func() {
		once.Do(func() {
			unwatch()
			s.removeListener()
		})
	}
}

// subscribe attaches to the implementation's change feed.
func (s *Store[V]) subscribe() {
	if s.impl.Listen == nil {
		return
	}
	unsub := s.impl.Listen(s.receive)
	if unsub == nil {
		return
	}

	s.mu.Lock()
	if !s.released {
		s.unsubscribe = unsub
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	// Released while Listen was running.
	unsub()
}

// receive handles a value emitted by the implementation.
// A value the dispatcher refuses is lost until the next emission.
func (s *Store[V]) receive(v V) {
	ok := s.cache.dispatcher.Dispatch(func() {
		if s.Released() {
			return
		}
		s.cache.metrics.ValueReceived(s.impl.name())
		s.value.Set(v)
	})
	if !ok {
		s.cache.metrics.ValueDropped(s.impl.name())
		s.cache.logger.Warn("value dropped, dispatcher refused update", "implementation", s.impl.name())
	}
}

// removeListener decrements the listener count and tears the store down
// when it reaches zero.
func (s *Store[V]) removeListener() {
	s.mu.Lock()
	s.listeners--
	if s.listeners > 0 {
		s.mu.Unlock()
		s.cache.metrics.ListenerRemoved(s.impl.name())
		return
	}
	s.released = true
	unsub := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()

	s.cache.metrics.ListenerRemoved(s.impl.name())
	if unsub != nil {
		unsub()
	}
	s.cache.evict(s.impl, s)
}
