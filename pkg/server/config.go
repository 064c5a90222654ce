package server

import (
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ServerConfig configures a Server.
type ServerConfig struct {
	// Address is the address to listen on (e.g., ":8080" or "localhost:3000").
	// Default: ":8080".
	Address string

	// Title is the page title of the server-rendered page.
	// Default: "reactivator".
	Title string

	// ReadBufferSize is the WebSocket read buffer size.
	// Default: 4096.
	ReadBufferSize int

	// WriteBufferSize is the WebSocket write buffer size.
	// Default: 4096.
	WriteBufferSize int

	// CheckOrigin is called to validate the WebSocket request origin.
	// Default: SameOriginCheck.
	CheckOrigin func(r *http.Request) bool

	// MaxMessageSize bounds client messages. Clients only send control
	// frames, so this stays small.
	// Default: 4096.
	MaxMessageSize int64

	// WriteTimeout bounds each WebSocket frame write.
	// Default: 10 seconds.
	WriteTimeout time.Duration

	// SendBuffer is the number of frames queued per connection before new
	// frames are dropped.
	// Default: 64.
	SendBuffer int

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	// Default: 10 seconds.
	ShutdownTimeout time.Duration

	// MetricsPath is where Prometheus metrics are served.
	// Default: "/metrics".
	MetricsPath string

	// Namespace is the Prometheus namespace of the server metrics.
	// Default: "reactivator".
	Namespace string

	// Registry registers the server metrics and serves MetricsPath.
	// If nil, server metrics are not registered and MetricsPath serves
	// prometheus.DefaultGatherer.
	Registry *prometheus.Registry

	// TracerName is the OpenTelemetry tracer name.
	// Default: "reactivator".
	TracerName string

	// Logger is the structured logger.
	// Default: slog.Default().
	Logger *slog.Logger
}

// DefaultServerConfig returns a ServerConfig with sensible defaults.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Address:         ":8080",
		Title:           "reactivator",
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     SameOriginCheck,
		MaxMessageSize:  4096,
		WriteTimeout:    10 * time.Second,
		SendBuffer:      64,
		ShutdownTimeout: 10 * time.Second,
		MetricsPath:     "/metrics",
		Namespace:       "reactivator",
		TracerName:      "reactivator",
	}
}

// withDefaults returns a copy of c with zero fields set to their defaults.
func (c *ServerConfig) withDefaults() *ServerConfig {
	d := DefaultServerConfig()
	if c == nil {
		d.Logger = slog.Default()
		return d
	}
	out := *c
	if out.Address == "" {
		out.Address = d.Address
	}
	if out.Title == "" {
		out.Title = d.Title
	}
	if out.ReadBufferSize <= 0 {
		out.ReadBufferSize = d.ReadBufferSize
	}
	if out.WriteBufferSize <= 0 {
		out.WriteBufferSize = d.WriteBufferSize
	}
	if out.CheckOrigin == nil {
		out.CheckOrigin = d.CheckOrigin
	}
	if out.MaxMessageSize <= 0 {
		out.MaxMessageSize = d.MaxMessageSize
	}
	if out.WriteTimeout <= 0 {
		out.WriteTimeout = d.WriteTimeout
	}
	if out.SendBuffer <= 0 {
		out.SendBuffer = d.SendBuffer
	}
	if out.ShutdownTimeout <= 0 {
		out.ShutdownTimeout = d.ShutdownTimeout
	}
	if out.MetricsPath == "" {
		out.MetricsPath = d.MetricsPath
	}
	if out.Namespace == "" {
		out.Namespace = d.Namespace
	}
	if out.TracerName == "" {
		out.TracerName = d.TracerName
	}
	if out.Logger == nil {
		out.Logger = slog.Default()
	}
	return &out
}

// SameOriginCheck validates that the WebSocket request origin matches the host.
func SameOriginCheck(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		// Non-browser clients send no Origin.
		return true
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if r.Host == "" {
		return false
	}
	return originURL.Host == r.Host
}
