package sharedstate

import (
	"github.com/vango-dev/reactivator/pkg/component"
)

// Binding pairs a component field with the Implementation that feeds it.
// Create one with Bind.
type Binding interface {
	// Field returns the component field name.
	Field() string

	initial(server bool) any
	attach(c *Cache, inst *component.Instance) (remove func())
}

type binding[V any] struct {
	field string
	impl  *Implementation[V]
}

// Bind feeds the named component field from impl.
func Bind[V any](field string, impl *Implementation[V]) Binding {
	return binding[V]{field: field, impl: impl}
}

func (b binding[V]) Field() string {
	return b.field
}

func (b binding[V]) initial(server bool) any {
	if b.impl == nil {
		var zero V
		return zero
	}
	return b.impl.initial(server)
}

func (b binding[V]) attach(c *Cache, inst *component.Instance) func() {
	store := GetStore(c, b.impl, component.Field[V](inst, b.field))
	if store == nil {
		return func() {}
	}
	field := b.field
	return store.Listen(func(v V) {
		inst.Set(field, v)
	})
}

// Mixin keeps component fields in sync with shared stores.
//
// On the server, fields get each Implementation's SSR state and nothing is
// subscribed. In a live component, fields start from the initial state and
// follow the shared store until the component is destroyed.
type Mixin struct {
	cache    *Cache
	bindings []Binding
}

// NewMixin creates a Mixin backed by cache.
// Components using mixins that share a cache share stores.
// A nil cache gets a private one.
func NewMixin(cache *Cache, bindings ...Binding) *Mixin {
	if cache == nil {
		cache = NewCache()
	}
	return &Mixin{cache: cache, bindings: bindings}
}

// Cache returns the cache backing the mixin.
func (m *Mixin) Cache() *Cache {
	return m.cache
}

// Bindings returns the mixin's bindings.
func (m *Mixin) Bindings() []Binding {
	return m.bindings
}

// removersKey scopes an instance's remove functions to one mixin.
type removersKey struct {
	mixin    *Mixin
	instance string
}

// Data returns the initial value of every bound field.
func (m *Mixin) Data(inst *component.Instance) map[string]any {
	data := make(map[string]any, len(m.bindings))
	for _, b := range m.bindings {
		data[b.Field()] = b.initial(inst.IsServer())
	}
	return data
}

// Created subscribes a live instance to the shared stores.
// Server instances are left untouched.
func (m *Mixin) Created(inst *component.Instance) {
	if inst.IsServer() {
		return
	}

	removers := make([]func(), 0, len(m.bindings))
	for _, b := range m.bindings {
		removers = append(removers, b.attach(m.cache, inst))
	}
	inst.Owner().SetValue(removersKey{mixin: m, instance: inst.ID()}, removers)
}

// BeforeDestroy removes the instance's listeners from the shared stores.
func (m *Mixin) BeforeDestroy(inst *component.Instance) {
	key := removersKey{mixin: m, instance: inst.ID()}
	removers, _ := inst.Owner().GetValue(key).([]func())
	for _, remove := range removers {
		remove()
	}
	inst.Owner().SetValue(key, nil)
}

var _ component.Mixin = (*Mixin)(nil)
