package sharedstate

import (
	"sync"
	"testing"
)

// fakeSource is a controllable Implementation backend.
type fakeSource[V any] struct {
	mu       sync.Mutex
	onChange func(V)
	listens  int
	unsubs   int
}

func (f *fakeSource[V]) listen(onChange func(V)) func() {
	f.mu.Lock()
	f.onChange = onChange
	f.listens++
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		f.unsubs++
		f.onChange = nil
		f.mu.Unlock()
	}
}

func (f *fakeSource[V]) emit(v V) {
	f.mu.Lock()
	fn := f.onChange
	f.mu.Unlock()
	if fn != nil {
		fn(v)
	}
}

func (f *fakeSource[V]) counts() (listens, unsubs int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listens, f.unsubs
}

func newFakeImpl[V any](name string) (*Implementation[V], *fakeSource[V]) {
	src := &fakeSource[V]{}
	return &Implementation[V]{Name: name, Listen: src.listen}, src
}

func TestGetStoreMemoizesByIdentity(t *testing.T) {
	cache := NewCache()
	impl, src := newFakeImpl[string]("a")

	s1 := GetStore(cache, impl, "first")
	s2 := GetStore(cache, impl, "second")

	if s1 != s2 {
		t.Fatal("same implementation should return the same store")
	}
	if s1.Value() != "first" {
		t.Errorf("first caller's initial value should win, got %q", s1.Value())
	}
	if listens, _ := src.counts(); listens != 1 {
		t.Errorf("Listen should be called once, got %d", listens)
	}
	if cache.Len() != 1 {
		t.Errorf("cache should hold 1 store, got %d", cache.Len())
	}
}

func TestGetStoreDistinctImplementations(t *testing.T) {
	cache := NewCache()
	a := &Implementation[int]{Name: "same"}
	b := &Implementation[int]{Name: "same"}

	if GetStore(cache, a, 1) == GetStore(cache, b, 1) {
		t.Error("equal but distinct implementations should get separate stores")
	}
	if cache.Len() != 2 {
		t.Errorf("cache should hold 2 stores, got %d", cache.Len())
	}
}

func TestGetStoreNil(t *testing.T) {
	if GetStore[int](nil, &Implementation[int]{}, 0) != nil {
		t.Error("nil cache should return nil store")
	}
	if GetStore[int](NewCache(), nil, 0) != nil {
		t.Error("nil implementation should return nil store")
	}
}

func TestStoreValueFollowsSource(t *testing.T) {
	cache := NewCache()
	impl, src := newFakeImpl[string]("a")
	store := GetStore(cache, impl, "initial")

	var seen []string
	remove := store.Listen(func(v string) { seen = append(seen, v) })
	defer remove()

	src.emit("A")
	src.emit("A")
	src.emit("B")

	if store.Value() != "B" {
		t.Errorf("value = %q, want B", store.Value())
	}
	if len(seen) != 2 || seen[0] != "A" || seen[1] != "B" {
		t.Errorf("handler saw %v, want [A B]", seen)
	}
}

func TestStoreTeardownOnLastListener(t *testing.T) {
	cache := NewCache()
	impl, src := newFakeImpl[int]("a")
	store := GetStore(cache, impl, 0)

	removeA := store.Listen(func(int) {})
	removeB := store.Listen(func(int) {})
	if store.Listeners() != 2 {
		t.Fatalf("listeners = %d, want 2", store.Listeners())
	}

	removeA()
	if _, unsubs := src.counts(); unsubs != 0 {
		t.Error("upstream should stay subscribed while listeners remain")
	}
	if !cache.Has(impl) {
		t.Error("store should stay cached while listeners remain")
	}

	removeB()
	if _, unsubs := src.counts(); unsubs != 1 {
		t.Errorf("unsubscribe should run once, got %d", unsubs)
	}
	if cache.Has(impl) {
		t.Error("store should be evicted after the last listener leaves")
	}
	if !store.Released() {
		t.Error("store should be released")
	}
}

func TestStoreRemoveIsIdempotent(t *testing.T) {
	cache := NewCache()
	impl, src := newFakeImpl[int]("a")
	store := GetStore(cache, impl, 0)

	removeA := store.Listen(func(int) {})
	removeB := store.Listen(func(int) {})

	removeA()
	removeA()
	removeA()
	if store.Listeners() != 1 {
		t.Fatalf("repeated removal should decrement once, listeners = %d", store.Listeners())
	}

	removeB()
	removeB()
	if _, unsubs := src.counts(); unsubs != 1 {
		t.Errorf("unsubscribe should run exactly once, got %d", unsubs)
	}
}

func TestStoreRecreatedAfterRelease(t *testing.T) {
	cache := NewCache()
	impl, src := newFakeImpl[int]("a")

	first := GetStore(cache, impl, 1)
	first.Listen(func(int) {})()

	second := GetStore(cache, impl, 2)
	if second == first {
		t.Fatal("a fresh store should be created after release")
	}
	if second.Value() != 2 {
		t.Errorf("fresh store should take the new initial value, got %d", second.Value())
	}
	if listens, _ := src.counts(); listens != 2 {
		t.Errorf("Listen should be called again, got %d calls", listens)
	}
}

func TestStoreListenAfterRelease(t *testing.T) {
	cache := NewCache()
	impl, src := newFakeImpl[int]("a")
	store := GetStore(cache, impl, 0)
	store.Listen(func(int) {})()

	calls := 0
	remove := store.Listen(func(int) { calls++ })
	remove()

	if store.Listeners() != 0 {
		t.Errorf("released store should not count listeners, got %d", store.Listeners())
	}
	src.emit(5)
	if calls != 0 {
		t.Error("handler on a released store should never run")
	}
	if _, unsubs := src.counts(); unsubs != 1 {
		t.Errorf("unsubscribe should still have run once, got %d", unsubs)
	}
}

func TestStaleReleaseDoesNotEvictNewStore(t *testing.T) {
	cache := NewCache()
	impl, _ := newFakeImpl[int]("a")

	old := GetStore(cache, impl, 0)
	old.Listen(func(int) {})()
	fresh := GetStore(cache, impl, 0)

	cache.evict(impl, old)
	if !cache.Has(impl) || GetStore(cache, impl, 0) != fresh {
		t.Error("evicting a stale store must not remove its replacement")
	}
}

func TestStoreWithoutListenCapability(t *testing.T) {
	cache := NewCache()
	impl := &Implementation[string]{Name: "static"}

	store := GetStore(cache, impl, "fixed")
	remove := store.Listen(func(string) {})
	remove()

	if store.Value() != "fixed" {
		t.Errorf("value = %q, want fixed", store.Value())
	}
	if cache.Has(impl) {
		t.Error("store without Listen should still be evicted")
	}
}

func TestStoreListenReturningNilUnsubscribe(t *testing.T) {
	cache := NewCache()
	impl := &Implementation[int]{
		Listen: func(func(int)) func() { return nil },
	}

	store := GetStore(cache, impl, 0)
	store.Listen(func(int) {})()

	if cache.Has(impl) {
		t.Error("store should be evicted")
	}
}

func TestStoreSynchronousEmitDuringListen(t *testing.T) {
	cache := NewCache()
	impl := &Implementation[string]{
		Listen: func(onChange func(string)) func() {
			onChange("ready")
			return func() {}
		},
	}

	store := GetStore(cache, impl, "initial")
	if store.Value() != "ready" {
		t.Errorf("value emitted during Listen should be stored, got %q", store.Value())
	}
}

func TestStoreReceiveUsesDispatcher(t *testing.T) {
	var queued []func()
	dispatcher := dispatcherFunc(func(fn func()) bool {
		queued = append(queued, fn)
		return true
	})
	cache := NewCache(WithDispatcher(dispatcher))
	impl, src := newFakeImpl[int]("a")
	store := GetStore(cache, impl, 0)
	defer store.Listen(func(int) {})()

	src.emit(9)
	if store.Value() != 0 {
		t.Fatal("value should not change until the dispatcher runs the callback")
	}
	if len(queued) != 1 {
		t.Fatalf("expected 1 queued callback, got %d", len(queued))
	}
	queued[0]()
	if store.Value() != 9 {
		t.Errorf("value = %d, want 9", store.Value())
	}
}

func TestStoreIgnoresValuesAfterRelease(t *testing.T) {
	var queued []func()
	cache := NewCache(WithDispatcher(dispatcherFunc(func(fn func()) bool {
		queued = append(queued, fn)
		return true
	})))
	impl, src := newFakeImpl[int]("a")
	store := GetStore(cache, impl, 0)
	remove := store.Listen(func(int) {})

	src.emit(3)
	remove()
	for _, fn := range queued {
		fn()
	}

	if store.Value() != 0 {
		t.Errorf("late value should be ignored after release, got %d", store.Value())
	}
}

func TestCacheSnapshot(t *testing.T) {
	cache := NewCache()
	impl, _ := newFakeImpl[int]("clock")
	store := GetStore(cache, impl, 0)
	defer store.Listen(func(int) {})()
	defer store.Listen(func(int) {})()

	snap := cache.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("snapshot = %v", snap)
	}
	if snap[0].Implementation != "clock" || snap[0].Listeners != 2 {
		t.Errorf("snapshot = %+v", snap[0])
	}
}

func TestCacheConcurrentConsumers(t *testing.T) {
	cache := NewCache()
	impl, src := newFakeImpl[int]("a")

	var wg sync.WaitGroup
	stores := make([]*Store[int], 50)
	removers := make([]func(), 50)
	for i := range stores {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			stores[i] = GetStore(cache, impl, i)
			removers[i] = stores[i].Listen(func(int) {})
		}(i)
	}
	wg.Wait()

	for _, s := range stores[1:] {
		if s != stores[0] {
			t.Fatal("concurrent consumers should share one store")
		}
	}

	for _, remove := range removers {
		wg.Add(1)
		go func(remove func()) {
			defer wg.Done()
			remove()
		}(remove)
	}
	wg.Wait()

	listens, unsubs := src.counts()
	if listens != 1 || unsubs != 1 {
		t.Errorf("listens=%d unsubs=%d, want 1 and 1", listens, unsubs)
	}
	if cache.Len() != 0 {
		t.Errorf("cache should be empty, has %d", cache.Len())
	}
}

type dispatcherFunc func(fn func()) bool

func (f dispatcherFunc) Dispatch(fn func()) bool { return f(fn) }
