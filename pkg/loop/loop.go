// Package loop provides the single-goroutine event loop that serializes all
// component and shared-store mutation.
//
// Anything may call Dispatch from any goroutine; callbacks run one at a time
// on the goroutine executing Run:
//
//	l := loop.New(loop.WithLogger(logger))
//	go l.Run(ctx)
//
//	go func() {
//	    v := fetch()
//	    l.Dispatch(func() { signal.Set(v) })
//	}()
package loop

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

// DefaultQueueSize is the dispatch queue capacity used when none is given.
const DefaultQueueSize = 256

// ErrClosed is returned by Do when the loop has been closed.
var ErrClosed = errors.New("loop: closed")

// Dispatcher queues a function to run on an event loop.
// It returns false if the function was discarded.
type Dispatcher interface {
	Dispatch(fn func()) bool
}

// DispatcherFunc adapts a function into a Dispatcher.
type DispatcherFunc func(fn func()) bool

// Dispatch calls f(fn).
func (f DispatcherFunc) Dispatch(fn func()) bool {
	if f == nil || fn == nil {
		return false
	}
	return f(fn)
}

// Immediate runs dispatched functions inline on the caller's goroutine.
// Server-side rendering and tests use it where no loop is running.
var Immediate Dispatcher = DispatcherFunc(func(fn func()) bool {
	fn()
	return true
})

// Option configures a Loop.
type Option func(*Loop)

// WithQueueSize sets the dispatch queue capacity.
func WithQueueSize(n int) Option {
	return func(l *Loop) {
		if n > 0 {
			l.queueSize = n
		}
	}
}

// WithLogger sets the logger used for dropped callbacks and panics.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// Loop runs dispatched callbacks sequentially on one goroutine.
type Loop struct {
	queueSize int
	logger    *slog.Logger

	dispatchCh chan func()
	done       chan struct{}
	closeOnce  sync.Once
	closed     atomic.Bool

	processed atomic.Uint64
	dropped   atomic.Uint64
	panics    atomic.Uint64
}

// New creates a Loop. Call Run to start processing.
func New(opts ...Option) *Loop {
	l := &Loop{
		queueSize: DefaultQueueSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.dispatchCh = make(chan func(), l.queueSize)
	l.done = make(chan struct{})
	return l
}

// Dispatch queues fn to run on the loop.
// Safe to call from any goroutine, including from within a callback.
func (l *Loop) Dispatch(fn func()) bool {
	if fn == nil || l.closed.Load() {
		return false
	}
	select {
	case l.dispatchCh <- fn:
		return true
	case <-l.done:
		return false
	default:
		l.dropped.Add(1)
		l.logger.Warn("dispatch queue full, discarding callback")
		return false
	}
}

// Do dispatches fn and waits until it has run.
// It returns ctx.Err() if the context ends first and ErrClosed if the loop
// is closed or the callback was discarded.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !l.Dispatch(func() {
		defer close(finished)
		fn()
	}) {
		return ErrClosed
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return ErrClosed
	}
}

// Run processes callbacks until ctx ends or Close is called.
// It must be called from exactly one goroutine.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case fn := <-l.dispatchCh:
			l.execute(fn)
		case <-ctx.Done():
			l.Close()
			return ctx.Err()
		case <-l.done:
			return nil
		}
	}
}

// Close stops the loop. Pending callbacks are discarded.
func (l *Loop) Close() {
	l.closeOnce.Do(func() {
		l.closed.Store(true)
		close(l.done)
	})
}

// Done is closed when the loop stops.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Stats reports callback counters.
type Stats struct {
	Processed uint64
	Dropped   uint64
	Panics    uint64
	Queued    int
}

// Stats returns a snapshot of the loop counters.
func (l *Loop) Stats() Stats {
	return Stats{
		Processed: l.processed.Load(),
		Dropped:   l.dropped.Load(),
		Panics:    l.panics.Load(),
		Queued:    len(l.dispatchCh),
	}
}

// execute runs fn with panic recovery so one bad callback cannot stop the loop.
func (l *Loop) execute(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.panics.Add(1)
			l.logger.Error("dispatch panic",
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	l.processed.Add(1)
	fn()
}
