// Package component provides the component instance model mixins attach to.
//
// An Instance owns a set of named reactive data fields and a reactive.Owner.
// Mixins contribute initial field values through Data and hook into the
// instance lifecycle through Created and BeforeDestroy:
//
//	inst := component.New(component.WithMixins(m))
//	inst.Mount()           // Data of every mixin, then Created of every mixin
//	defer inst.Destroy()   // BeforeDestroy in reverse order, then owner disposal
//
// Instances created with WithServer(true) render once on the server and are
// expected never to subscribe to live changes.
package component

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/vango-dev/reactivator/pkg/reactive"
)

// Mixin contributes data and lifecycle hooks to an Instance.
type Mixin interface {
	// Data returns initial values for the fields this mixin owns.
	Data(inst *Instance) map[string]any

	// Created runs after all mixin data has been installed.
	Created(inst *Instance)

	// BeforeDestroy runs before the instance's owner is disposed.
	BeforeDestroy(inst *Instance)
}

// lifecycle states
const (
	stateNew = iota
	stateMounted
	stateDestroyed
)

// Option configures an Instance.
type Option func(*Instance)

// WithServer marks the instance as rendering on the server.
func WithServer(server bool) Option {
	return func(i *Instance) {
		i.server = server
	}
}

// WithMixins appends mixins to the instance.
func WithMixins(mixins ...Mixin) Option {
	return func(i *Instance) {
		i.mixins = append(i.mixins, mixins...)
	}
}

// WithParent makes the instance's owner a child of parent.
func WithParent(parent *reactive.Owner) Option {
	return func(i *Instance) {
		i.parent = parent
	}
}

// WithLogger sets the instance logger.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Instance) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// Instance is a mounted component.
type Instance struct {
	id     string
	server bool
	parent *reactive.Owner
	owner  *reactive.Owner
	mixins []Mixin
	logger *slog.Logger

	fields   map[string]*reactive.Signal[any]
	fieldsMu sync.RWMutex
	dataOnce sync.Once

	stateMu sync.Mutex
	state   int
}

// New creates an unmounted Instance.
func New(opts ...Option) *Instance {
	i := &Instance{
		id:     uuid.NewString(),
		logger: slog.Default(),
		fields: make(map[string]*reactive.Signal[any]),
	}
	for _, opt := range opts {
		opt(i)
	}
	i.owner = reactive.NewOwner(i.parent)
	i.logger = i.logger.With("component_id", i.id)
	return i
}

// ID returns the instance's unique identifier.
func (i *Instance) ID() string {
	return i.id
}

// IsServer reports whether the instance renders on the server.
func (i *Instance) IsServer() bool {
	return i.server
}

// Owner returns the reactive scope of the instance.
func (i *Instance) Owner() *reactive.Owner {
	return i.owner
}

// Logger returns the instance logger.
func (i *Instance) Logger() *slog.Logger {
	return i.logger
}

// Mount installs mixin data and runs Created hooks.
// Calling Mount on a mounted or destroyed instance does nothing.
func (i *Instance) Mount() {
	i.stateMu.Lock()
	if i.state != stateNew {
		i.stateMu.Unlock()
		return
	}
	i.state = stateMounted
	i.stateMu.Unlock()

	i.InitData()
	for _, m := range i.mixins {
		m.Created(i)
	}
	i.logger.Debug("component mounted", "server", i.server, "fields", len(i.Fields()))
}

// InitData installs every mixin's Data as the instance's fields. Mount calls
// it when it has not run yet. Data hooks may block, so a caller that mounts
// on an event loop can run InitData beforehand on its own goroutine. Only the
// first call has an effect.
func (i *Instance) InitData() {
	i.dataOnce.Do(func() {
		for _, m := range i.mixins {
			for name, value := range m.Data(i) {
				i.field(name).Set(value)
			}
		}
	})
}

// Destroy runs BeforeDestroy hooks in reverse mixin order and disposes the
// owner. Calling Destroy more than once does nothing.
func (i *Instance) Destroy() {
	i.stateMu.Lock()
	prev := i.state
	i.state = stateDestroyed
	i.stateMu.Unlock()

	if prev == stateDestroyed {
		return
	}
	if prev == stateMounted {
		for idx := len(i.mixins) - 1; idx >= 0; idx-- {
			i.mixins[idx].BeforeDestroy(i)
		}
	}
	i.owner.Dispose()
	i.logger.Debug("component destroyed")
}

// IsMounted reports whether Mount has run and Destroy has not.
func (i *Instance) IsMounted() bool {
	i.stateMu.Lock()
	defer i.stateMu.Unlock()
	return i.state == stateMounted
}

// Set stores value in the named field, creating the field if needed.
// Watchers of the field run when the value changes.
func (i *Instance) Set(name string, value any) {
	i.field(name).Set(value)
}

// Get returns the value of the named field, or nil if it does not exist.
func (i *Instance) Get(name string) any {
	i.fieldsMu.RLock()
	sig, ok := i.fields[name]
	i.fieldsMu.RUnlock()
	if !ok {
		return nil
	}
	return sig.Get()
}

// Has reports whether the named field exists.
func (i *Instance) Has(name string) bool {
	i.fieldsMu.RLock()
	defer i.fieldsMu.RUnlock()
	_, ok := i.fields[name]
	return ok
}

// Watch calls fn with the new value each time the named field changes.
// The watcher is removed when the returned function is called or when the
// instance is destroyed, whichever comes first.
func (i *Instance) Watch(name string, fn func(any)) (unwatch func()) {
	stop := i.field(name).Watch(fn)
	i.owner.OnCleanup(stop)
	return stop
}

// Fields returns a snapshot of all field values.
func (i *Instance) Fields() map[string]any {
	i.fieldsMu.RLock()
	defer i.fieldsMu.RUnlock()

	out := make(map[string]any, len(i.fields))
	for name, sig := range i.fields {
		out[name] = sig.Get()
	}
	return out
}

// FieldNames returns the sorted field names.
func (i *Instance) FieldNames() []string {
	i.fieldsMu.RLock()
	names := make([]string, 0, len(i.fields))
	for name := range i.fields {
		names = append(names, name)
	}
	i.fieldsMu.RUnlock()
	sort.Strings(names)
	return names
}

// field returns the signal backing name, creating it if needed.
func (i *Instance) field(name string) *reactive.Signal[any] {
	i.fieldsMu.RLock()
	sig, ok := i.fields[name]
	i.fieldsMu.RUnlock()
	if ok {
		return sig
	}

	i.fieldsMu.Lock()
	defer i.fieldsMu.Unlock()
	if sig, ok := i.fields[name]; ok {
		return sig
	}
	sig = reactive.NewSignal[any](nil)
	i.fields[name] = sig
	return sig
}

// Field returns the named field's value as V.
// It returns the zero value when the field is missing, nil, or of another type.
func Field[V any](i *Instance, name string) V {
	v, _ := i.Get(name).(V)
	return v
}
