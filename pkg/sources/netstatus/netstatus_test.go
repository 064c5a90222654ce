package netstatus

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestProbe(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   Status
	}{
		{"ok", http.StatusOK, Online},
		{"not found still reachable", http.StatusNotFound, Online},
		{"server error", http.StatusServiceUnavailable, Offline},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodHead {
					t.Errorf("method = %s, want HEAD", r.Method)
				}
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			p := NewProber(srv.URL, srv.Client(), time.Second)
			if got := p.Probe(context.Background()); got != tt.want {
				t.Errorf("Probe = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestProbeUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	if got := NewProber(url, nil, 200*time.Millisecond).Probe(context.Background()); got != Offline {
		t.Errorf("Probe = %s, want offline", got)
	}
}

func TestNewStates(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	impl := New(NewProber(srv.URL, srv.Client(), time.Second), time.Minute)

	if got := impl.SSRState(); got != Unknown {
		t.Errorf("SSRState = %s, want unknown", got)
	}
	if hits.Load() != 0 {
		t.Error("SSRState should not probe")
	}
	if got := impl.InitialState(); got != Online {
		t.Errorf("InitialState = %s, want online", got)
	}
}

func TestListenReportsTransitions(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !healthy.Load() {
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	impl := New(NewProber(srv.URL, srv.Client(), time.Second), 10*time.Millisecond)

	var mu sync.Mutex
	var seen []Status
	stop := impl.Listen(func(s Status) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})
	defer stop()

	time.Sleep(60 * time.Millisecond)
	healthy.Store(false)
	time.Sleep(60 * time.Millisecond)
	stop()

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 || seen[0] != Online || seen[1] != Offline {
		t.Errorf("transitions = %v, want [online offline]", seen)
	}
}
