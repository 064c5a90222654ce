// Package server exposes shared component state over HTTP.
//
// Every page load renders a server-side instance of the component: fields
// take their SSR values and no source subscription is opened. Each WebSocket
// connection mounts a live instance on the event loop; the instance's
// bindings attach to the shared cache, so any number of connected clients
// share one upstream subscription per source. Field changes are streamed to
// the client as JSON frames:
//
//	{"field":"now","value":"2024-05-01T12:30:00Z"}
//
// Routes:
//
//	GET /         server-rendered page
//	GET /ws       live field stream
//	GET /healthz  liveness probe
//	GET /status   cache and loop statistics
//	GET /metrics  Prometheus metrics
package server
