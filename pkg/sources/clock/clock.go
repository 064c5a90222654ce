// Package clock provides a shared wall-clock value that ticks at a fixed
// interval.
package clock

import (
	"sync"
	"time"

	"github.com/vango-dev/reactivator/pkg/sharedstate"
)

// DefaultInterval is used when New is given a non-positive interval.
const DefaultInterval = time.Second

// New returns an Implementation whose value is the current time, truncated
// to interval, updated every interval.
// now defaults to time.Now.
func New(interval time.Duration, now func() time.Time) *sharedstate.Implementation[time.Time] {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if now == nil {
		now = time.Now
	}
	read := func() time.Time {
		return now().Truncate(interval)
	}

	return &sharedstate.Implementation[time.Time]{
		Name:         "clock",
		InitialState: read,
		SSRState:     read,
		Listen: func(onChange func(time.Time)) func() {
			ticker := time.NewTicker(interval)
			done := make(chan struct{})
			go func() {
				defer ticker.Stop()
				for {
					select {
					case <-ticker.C:
						onChange(read())
					case <-done:
						return
					}
				}
			}()

			var once sync.Once
			return func() {
				once.Do(func() { close(done) })
			}
		},
	}
}
