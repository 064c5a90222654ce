// Package netstatus provides a shared connectivity status derived from
// periodic HTTP probes.
package netstatus

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/vango-dev/reactivator/pkg/sharedstate"
)

// Status is the connectivity state.
type Status string

const (
	Unknown Status = "unknown"
	Online  Status = "online"
	Offline Status = "offline"
)

// DefaultInterval is the probe interval used when none is given.
const DefaultInterval = 5 * time.Second

// Prober checks whether a target is reachable.
type Prober struct {
	url     string
	client  *http.Client
	timeout time.Duration
}

// NewProber creates a Prober for url. A nil client gets http.DefaultClient.
func NewProber(url string, client *http.Client, timeout time.Duration) *Prober {
	if client == nil {
		client = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Prober{url: url, client: client, timeout: timeout}
}

// Probe sends a HEAD request and reports Online for any response below 500.
func (p *Prober) Probe(ctx context.Context) Status {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, nil)
	if err != nil {
		return Offline
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return Offline
	}
	resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return Offline
	}
	return Online
}

// New returns an Implementation that probes p every interval and reports
// status transitions. Server renders report Unknown without probing.
func New(p *Prober, interval time.Duration) *sharedstate.Implementation[Status] {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &sharedstate.Implementation[Status]{
		Name: "netstatus",
		InitialState: func() Status {
			return p.Probe(context.Background())
		},
		SSRState: func() Status {
			return Unknown
		},
		Listen: func(onChange func(Status)) func() {
			ctx, cancel := context.WithCancel(context.Background())
			go poll(ctx, p, interval, onChange)

			var once sync.Once
			return func() { once.Do(cancel) }
		},
	}
}

func poll(ctx context.Context, p *Prober, interval time.Duration, onChange func(Status)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := Unknown
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			status := p.Probe(ctx)
			if ctx.Err() != nil {
				return
			}
			if status != last {
				last = status
				onChange(status)
			}
		}
	}
}
