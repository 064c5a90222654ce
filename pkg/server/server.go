package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/reactivator/pkg/component"
	"github.com/vango-dev/reactivator/pkg/loop"
	"github.com/vango-dev/reactivator/pkg/sharedstate"
)

// Server serves server-rendered pages and live field streams.
type Server struct {
	config   *ServerConfig
	loop     *loop.Loop
	cache    *sharedstate.Cache
	mixins   []component.Mixin
	router   chi.Router
	upgrader websocket.Upgrader
	tracer   trace.Tracer
	metrics  *metrics
	logger   *slog.Logger

	mu         sync.Mutex
	sessions   map[string]*session
	closing    bool
	httpServer *http.Server
	started    time.Time
}

// New creates a Server. Live instances are mounted and destroyed on l, and
// /status reports the stores held by cache. The loop must be running.
func New(config *ServerConfig, l *loop.Loop, cache *sharedstate.Cache, mixins ...component.Mixin) *Server {
	config = config.withDefaults()

	var registerer prometheus.Registerer
	if config.Registry != nil {
		registerer = config.Registry
	}

	s := &Server{
		config: config,
		loop:   l,
		cache:  cache,
		mixins: mixins,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		tracer:   otel.Tracer(config.TracerName),
		metrics:  newMetrics(config.Namespace, registerer),
		logger:   config.Logger,
		sessions: make(map[string]*session),
		started:  time.Now(),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.logger))
	r.Use(Tracing(s.tracer))
	r.Use(s.metrics.instrument)

	r.Get("/", s.handlePage)
	r.Get("/ws", s.handleWebSocket)
	r.Get("/healthz", s.handleHealth)
	r.Get("/status", s.handleStatus)

	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if s.config.Registry != nil {
		gatherer = s.config.Registry
	}
	r.Method(http.MethodGet, s.config.MetricsPath, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return r
}

// Handler returns the HTTP handler serving all routes.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Sessions returns the number of connected WebSocket clients.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Server) addSession(sess *session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.sessions[sess.id] = sess
	s.metrics.activeSessions.Inc()
	return true
}

func (s *Server) removeSession(sess *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sess.id]; ok {
		delete(s.sessions, sess.id)
		s.metrics.activeSessions.Dec()
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok\n"))
}

// Status is the body of GET /status.
type Status struct {
	Uptime   string                  `json:"uptime"`
	Sessions int                     `json:"sessions"`
	Stores   []sharedstate.StoreInfo `json:"stores"`
	Loop     LoopStatus              `json:"loop"`
}

// LoopStatus reports event loop counters.
type LoopStatus struct {
	Processed uint64 `json:"processed"`
	Dropped   uint64 `json:"dropped"`
	Panics    uint64 `json:"panics"`
	Queued    int    `json:"queued"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stores := s.cache.Snapshot()
	sort.Slice(stores, func(i, j int) bool {
		return stores[i].Implementation < stores[j].Implementation
	})
	stats := s.loop.Stats()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(Status{
		Uptime:   time.Since(s.started).Round(time.Second).String(),
		Sessions: s.Sessions(),
		Stores:   stores,
		Loop: LoopStatus{
			Processed: stats.Processed,
			Dropped:   stats.Dropped,
			Panics:    stats.Panics,
			Queued:    stats.Queued,
		},
	})
}

// ListenAndServe listens on the configured address and serves until ctx ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.config.Address, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx ends, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.mu.Lock()
	s.httpServer = httpServer
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "address", ln.Addr().String())
		errCh <- httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err

	case <-ctx.Done():
		s.logger.Info("shutting down...")
		return s.Shutdown(context.Background())
	}
}

// Shutdown closes every WebSocket session and gracefully shuts down the
// HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	s.mu.Lock()
	s.closing = true
	sessions := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	httpServer := s.httpServer
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		sess.close()
	}

	if httpServer != nil {
		if err := httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			return err
		}
	}

	s.logger.Info("server shutdown complete")
	return nil
}
