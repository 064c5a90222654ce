// Package sharedstate lets many component instances share one reactive value
// per external source.
//
// An Implementation describes a source: how to read its value when a
// component is created, what to render on the server, and how to subscribe
// to changes. A Cache memoizes one Store per Implementation. The store
// subscribes to the source when created and unsubscribes (and leaves the
// cache) when its last listener is removed.
//
//	var Online = &sharedstate.Implementation[bool]{
//	    Name:         "online",
//	    InitialState: probe,
//	    SSRState:     func() bool { return true },
//	    Listen:       watchNetwork,
//	}
//
//	cache := sharedstate.NewCache(sharedstate.WithDispatcher(eventLoop))
//	mixin := sharedstate.NewMixin(cache, sharedstate.Bind("online", Online))
//
//	inst := component.New(component.WithMixins(mixin))
//	inst.Mount()
//	online := component.Field[bool](inst, "online")
//
// Every consumer of the same Implementation sees the same Store, so the
// source is subscribed to once no matter how many components render it.
package sharedstate
