package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/reactivator/pkg/component"
	"github.com/vango-dev/reactivator/pkg/loop"
)

// Frame is one field update sent to a client.
type Frame struct {
	Field string `json:"field"`
	Value any    `json:"value"`
}

// session is one connected WebSocket client.
type session struct {
	id     string
	conn   *websocket.Conn
	inst   *component.Instance
	out    chan Frame
	done   chan struct{}
	once   sync.Once
	logger *slog.Logger

	writeTimeout time.Duration
	metrics      *metrics
}

// send queues f for writing. Frames are dropped when the client falls
// behind or the session has ended.
func (s *session) send(f Frame) {
	select {
	case <-s.done:
		return
	default:
	}
	select {
	case s.out <- f:
	case <-s.done:
	default:
		s.metrics.framesDropped.Inc()
		s.logger.Warn("send buffer full, dropping frame", "field", f.Field)
	}
}

// close ends the session and closes the connection. Idempotent.
func (s *session) close() {
	s.once.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}

// writeLoop writes queued frames until the session ends.
func (s *session) writeLoop() {
	for {
		select {
		case <-s.done:
			return
		case f := <-s.out:
			s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := s.conn.WriteJSON(f); err != nil {
				s.logger.Debug("write failed", "error", err)
				s.close()
				return
			}
			s.metrics.framesSent.Inc()
		}
	}
}

// readLoop discards client messages until the connection fails or closes.
func (s *session) readLoop() {
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("read failed", "error", err)
			}
			return
		}
	}
}

// handleWebSocket mounts a live instance for the connection and streams its
// field changes until the client disconnects.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	conn.SetReadLimit(s.config.MaxMessageSize)

	inst := s.newInstance(false)
	sess := &session{
		id:           inst.ID(),
		conn:         conn,
		inst:         inst,
		out:          make(chan Frame, s.config.SendBuffer),
		done:         make(chan struct{}),
		logger:       s.logger.With("session_id", inst.ID()),
		writeTimeout: s.config.WriteTimeout,
		metrics:      s.metrics,
	}

	ctx, span := s.tracer.Start(r.Context(), "reactivator.session",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("reactivator.session_id", sess.id)),
	)
	defer span.End()

	if !s.addSession(sess) {
		sess.close()
		span.SetStatus(codes.Error, "server shutting down")
		return
	}
	defer s.removeSession(sess)

	// Initial state reads may block on the network; keep them off the loop.
	inst.InitData()

	if err := s.loop.Do(ctx, func() { s.mountSession(sess) }); err != nil {
		sess.logger.Error("mount failed", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "mount failed")
		sess.close()
		// The mount may still be queued or running; the destroy is queued
		// behind it.
		s.destroy(sess)
		return
	}
	sess.logger.Info("session started", "fields", len(inst.FieldNames()))

	go sess.writeLoop()
	sess.readLoop()
	sess.close()

	s.destroy(sess)
	sess.logger.Info("session ended")
}

// mountSession mounts the instance, queues the initial value of every field
// and watches each field for changes. Runs on the loop. A session the
// handler already gave up on is not mounted.
func (s *Server) mountSession(sess *session) {
	select {
	case <-sess.done:
		return
	default:
	}
	sess.inst.Mount()
	for _, name := range sess.inst.FieldNames() {
		sess.send(Frame{Field: name, Value: sess.inst.Get(name)})
		sess.inst.Watch(name, func(v any) {
			sess.send(Frame{Field: name, Value: v})
		})
	}
}

// destroy tears the instance down on the loop. When the loop has already
// stopped nothing else can touch the cache, so the instance is destroyed
// inline.
func (s *Server) destroy(sess *session) {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	err := s.loop.Do(ctx, sess.inst.Destroy)
	if errors.Is(err, loop.ErrClosed) {
		sess.inst.Destroy()
		return
	}
	if err != nil {
		sess.logger.Error("destroy failed", "error", err)
	}
}
