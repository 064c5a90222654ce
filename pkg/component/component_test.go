package component

import (
	"testing"

	"github.com/vango-dev/reactivator/pkg/reactive"
)

type recordingMixin struct {
	name   string
	data   map[string]any
	events *[]string
}

func (m *recordingMixin) Data(inst *Instance) map[string]any {
	*m.events = append(*m.events, m.name+".data")
	return m.data
}

func (m *recordingMixin) Created(inst *Instance) {
	*m.events = append(*m.events, m.name+".created")
}

func (m *recordingMixin) BeforeDestroy(inst *Instance) {
	*m.events = append(*m.events, m.name+".beforeDestroy")
}

func TestInstanceLifecycleOrder(t *testing.T) {
	var events []string
	a := &recordingMixin{name: "a", data: map[string]any{"x": 1}, events: &events}
	b := &recordingMixin{name: "b", data: map[string]any{"y": "two"}, events: &events}

	inst := New(WithMixins(a, b))
	inst.Mount()
	inst.Mount()

	if !inst.IsMounted() {
		t.Error("instance should be mounted")
	}

	inst.Destroy()
	inst.Destroy()

	want := []string{"a.data", "b.data", "a.created", "b.created", "b.beforeDestroy", "a.beforeDestroy"}
	if len(events) != len(want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("events = %v, want %v", events, want)
		}
	}
	if !inst.Owner().IsDisposed() {
		t.Error("owner should be disposed after Destroy")
	}
}

func TestInstanceDataInstalledBeforeCreated(t *testing.T) {
	var events []string
	m := &recordingMixin{name: "m", data: map[string]any{"count": 3}, events: &events}
	check := &createdCheck{t: t}

	inst := New(WithMixins(m, check))
	inst.Mount()

	if !check.ran {
		t.Fatal("Created hook did not run")
	}
	if got := Field[int](inst, "count"); got != 3 {
		t.Errorf("count = %d, want 3", got)
	}
}

type createdCheck struct {
	t   *testing.T
	ran bool
}

func (c *createdCheck) Data(*Instance) map[string]any { return nil }
func (c *createdCheck) BeforeDestroy(*Instance)       {}
func (c *createdCheck) Created(inst *Instance) {
	c.ran = true
	if got := inst.Get("count"); got != 3 {
		c.t.Errorf("field should be installed before Created, got %v", got)
	}
}

func TestInitDataBeforeMount(t *testing.T) {
	var events []string
	m := &recordingMixin{name: "m", data: map[string]any{"count": 7}, events: &events}

	inst := New(WithMixins(m))
	inst.InitData()
	inst.InitData()
	if got := Field[int](inst, "count"); got != 7 {
		t.Errorf("count = %d, want 7", got)
	}

	inst.Mount()
	want := []string{"m.data", "m.created"}
	if len(events) != len(want) || events[0] != want[0] || events[1] != want[1] {
		t.Errorf("events = %v, want %v (Data runs once)", events, want)
	}
}

func TestDestroyWithoutMountSkipsHooks(t *testing.T) {
	var events []string
	m := &recordingMixin{name: "m", events: &events}

	inst := New(WithMixins(m))
	inst.Destroy()
	inst.Mount()

	if len(events) != 0 {
		t.Errorf("no hooks should run, got %v", events)
	}
}

func TestInstanceSetAndWatch(t *testing.T) {
	inst := New()

	var seen []any
	inst.Watch("status", func(v any) { seen = append(seen, v) })

	inst.Set("status", "online")
	inst.Set("status", "online")
	inst.Set("status", "offline")

	if len(seen) != 2 || seen[0] != "online" || seen[1] != "offline" {
		t.Errorf("seen = %v", seen)
	}
	if !inst.Has("status") {
		t.Error("field should exist after Set")
	}
	if inst.Get("missing") != nil {
		t.Error("missing field should read as nil")
	}
}

func TestInstanceWatchRemovedOnDestroy(t *testing.T) {
	inst := New()
	calls := 0
	inst.Watch("v", func(any) { calls++ })

	inst.Mount()
	inst.Destroy()
	inst.Set("v", 1)

	if calls != 0 {
		t.Errorf("watcher should be removed on destroy, got %d calls", calls)
	}
}

func TestField(t *testing.T) {
	inst := New()
	inst.Set("n", 7)
	inst.Set("s", "x")

	if Field[int](inst, "n") != 7 {
		t.Error("Field[int] should return the stored int")
	}
	if Field[int](inst, "s") != 0 {
		t.Error("Field with the wrong type should return zero")
	}
	if Field[string](inst, "missing") != "" {
		t.Error("Field for a missing name should return zero")
	}
}

func TestInstanceOptions(t *testing.T) {
	parent := reactive.NewOwner(nil)
	inst := New(WithServer(true), WithParent(parent))

	if !inst.IsServer() {
		t.Error("WithServer(true) should mark the instance as server-side")
	}
	if inst.Owner().Parent() != parent {
		t.Error("owner should be a child of the given parent")
	}
	if inst.ID() == "" || inst.ID() == New().ID() {
		t.Error("instances should get unique IDs")
	}

	parent.Dispose()
	if !inst.Owner().IsDisposed() {
		t.Error("disposing the parent should dispose the instance owner")
	}
}

func TestFieldNamesSorted(t *testing.T) {
	inst := New()
	inst.Set("b", 1)
	inst.Set("a", 2)
	inst.Set("c", 3)

	names := inst.FieldNames()
	if len(names) != 3 || names[0] != "a" || names[1] != "b" || names[2] != "c" {
		t.Errorf("FieldNames = %v", names)
	}
}
