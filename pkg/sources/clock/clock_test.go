package clock

import (
	"sync"
	"testing"
	"time"
)

func TestClockStates(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 12, 30, 45, 500, time.UTC)
	impl := New(time.Minute, func() time.Time { return fixed })

	want := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	if got := impl.InitialState(); !got.Equal(want) {
		t.Errorf("InitialState = %v, want %v", got, want)
	}
	if got := impl.SSRState(); !got.Equal(want) {
		t.Errorf("SSRState = %v, want %v", got, want)
	}
}

func TestClockListen(t *testing.T) {
	impl := New(10*time.Millisecond, nil)

	var mu sync.Mutex
	ticks := 0
	stop := impl.Listen(func(time.Time) {
		mu.Lock()
		ticks++
		mu.Unlock()
	})

	time.Sleep(55 * time.Millisecond)
	stop()
	stop()

	mu.Lock()
	got := ticks
	mu.Unlock()
	if got == 0 {
		t.Fatal("expected at least one tick")
	}

	time.Sleep(30 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if ticks > got+1 {
		t.Errorf("ticks continued after stop: %d -> %d", got, ticks)
	}
}

func TestClockDefaultInterval(t *testing.T) {
	if impl := New(0, nil); impl.Name != "clock" || impl.Listen == nil {
		t.Error("New should return a listening clock implementation")
	}
}
