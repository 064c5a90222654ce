package sharedstate

// Implementation describes one piece of shared state: how to read it when a
// component is created, how to read it during server-side rendering, and
// how to subscribe to its changes.
//
// Every capability is optional. A nil InitialState or SSRState yields the
// zero value of V. A nil Listen means the value never changes after the
// store is created.
//
// Stores are keyed by the *Implementation pointer, so two Implementations
// with identical fields still get separate stores. Declare each one once,
// typically as a package-level variable.
type Implementation[V any] struct {
	// Name labels the implementation in logs and metrics.
	Name string

	// InitialState returns the value a live component starts with.
	InitialState func() V

	// SSRState returns the value used when rendering on the server.
	SSRState func() V

	// Listen subscribes to changes and returns a function that cancels the
	// subscription. onChange may be called from any goroutine.
	Listen func(onChange func(V)) (unsubscribe func())
}

// initial returns the starting value for a component instance.
func (i *Implementation[V]) initial(server bool) V {
	var zero V
	if server {
		if i.SSRState != nil {
			return i.SSRState()
		}
		return zero
	}
	if i.InitialState != nil {
		return i.InitialState()
	}
	return zero
}

func (i *Implementation[V]) name() string {
	if i.Name == "" {
		return "anonymous"
	}
	return i.Name
}
