package sharedstate

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func gatherValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if !labelsMatch(m, labels) {
				continue
			}
			switch {
			case m.GetGauge() != nil:
				return m.GetGauge().GetValue()
			case m.GetCounter() != nil:
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func labelsMatch(m *dto.Metric, want map[string]string) bool {
	found := 0
	for _, lp := range m.GetLabel() {
		if v, ok := want[lp.GetName()]; ok && v == lp.GetValue() {
			found++
		}
	}
	return found == len(want)
}

func TestPrometheusMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewPrometheusMetrics(WithRegistry(reg))
	cache := NewCache(WithMetrics(metrics))

	impl, src := newFakeImpl[int]("clock")
	store := GetStore(cache, impl, 0)
	removeA := store.Listen(func(int) {})
	removeB := store.Listen(func(int) {})
	src.emit(1)
	src.emit(2)

	if v := gatherValue(t, reg, "reactivator_sharedstate_stores_active", nil); v != 1 {
		t.Errorf("stores_active = %v, want 1", v)
	}
	if v := gatherValue(t, reg, "reactivator_sharedstate_listeners_active", nil); v != 2 {
		t.Errorf("listeners_active = %v, want 2", v)
	}
	clock := map[string]string{"implementation": "clock"}
	if v := gatherValue(t, reg, "reactivator_sharedstate_updates_total", clock); v != 2 {
		t.Errorf("updates_total = %v, want 2", v)
	}

	removeA()
	removeB()
	removeB()

	if v := gatherValue(t, reg, "reactivator_sharedstate_stores_active", nil); v != 0 {
		t.Errorf("stores_active after teardown = %v, want 0", v)
	}
	if v := gatherValue(t, reg, "reactivator_sharedstate_listeners_active", nil); v != 0 {
		t.Errorf("listeners_active after teardown = %v, want 0", v)
	}
	if v := gatherValue(t, reg, "reactivator_sharedstate_stores_created_total", clock); v != 1 {
		t.Errorf("stores_created_total = %v, want 1", v)
	}
	if v := gatherValue(t, reg, "reactivator_sharedstate_stores_released_total", clock); v != 1 {
		t.Errorf("stores_released_total = %v, want 1", v)
	}
}

func TestPrometheusMetricsNamespace(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPrometheusMetrics(WithRegistry(reg), WithNamespace("app"), WithSubsystem("state"))
	m.StoreCreated("x")

	if v := gatherValue(t, reg, "app_state_stores_active", nil); v != 1 {
		t.Errorf("app_state_stores_active = %v, want 1", v)
	}
}

func TestRefusedUpdatesAreCounted(t *testing.T) {
	reg := prometheus.NewRegistry()
	accept := true
	cache := NewCache(
		WithMetrics(NewPrometheusMetrics(WithRegistry(reg))),
		WithDispatcher(dispatcherFunc(func(fn func()) bool {
			if !accept {
				return false
			}
			fn()
			return true
		})),
	)

	impl, src := newFakeImpl[int]("feed")
	store := GetStore(cache, impl, 0)
	defer store.Listen(func(int) {})()

	src.emit(1)
	accept = false
	src.emit(2)
	src.emit(3)

	if store.Value() != 1 {
		t.Errorf("value = %d, want 1", store.Value())
	}
	feed := map[string]string{"implementation": "feed"}
	if v := gatherValue(t, reg, "reactivator_sharedstate_updates_dropped_total", feed); v != 2 {
		t.Errorf("updates_dropped_total = %v, want 2", v)
	}
	if v := gatherValue(t, reg, "reactivator_sharedstate_updates_total", feed); v != 1 {
		t.Errorf("updates_total = %v, want 1", v)
	}
}
