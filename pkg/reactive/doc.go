// Package reactive provides the reactive primitives components are built on.
//
// Signal[T] is a value container that notifies watchers when it changes:
//
//	count := reactive.NewSignal(0)
//	stop := count.Watch(func(n int) { fmt.Println("count is", n) })
//	count.Set(5)  // prints "count is 5"
//	count.Set(5)  // equal value, no notification
//	stop()
//
// Owner is a disposable scope. Components own one; cleanups registered with
// OnCleanup run when the owner is disposed:
//
//	owner := reactive.NewOwner(nil)
//	owner.OnCleanup(stop)
//	owner.Dispose()
//
// # Thread Safety
//
// Signals and owners are safe to use from multiple goroutines. Watchers run
// on the goroutine that wrote the value, so callers that need ordering
// funnel writes through a single event loop (see package loop).
package reactive
