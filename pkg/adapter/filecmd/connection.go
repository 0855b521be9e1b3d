package filecmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/marmos91/filecmd/internal/logger"
	"github.com/marmos91/filecmd/internal/protocol/command"
	"github.com/marmos91/filecmd/internal/protocol/frame"
	"github.com/marmos91/filecmd/internal/ratelimiter"
	"github.com/marmos91/filecmd/pkg/dispatch"
	"github.com/marmos91/filecmd/pkg/metrics"
)

// verbInvalid labels metrics for frames that did not name a known verb.
const verbInvalid = "invalid"

// SessionConfig holds the per-connection limits.
type SessionConfig struct {
	ReadBufferSize int
	MaxFrameSize   int
	IdleTimeout    time.Duration
	WriteTimeout   time.Duration
	RateLimit      ratelimiter.Config
}

// Session serves the request/response exchange of one client connection.
//
// States:
//
//	AWAITING_FRAME -> DISPATCHING -> RESPONDING -> AWAITING_FRAME ...
//	any state -> CLOSED on client EOF, transport error, idle timeout,
//	oversized frame, or server shutdown
//
// All complete frames already buffered are answered, in arrival order, before
// the next read. A frame is fully answered before the next one is parsed.
//
// Thread safety:
// A Session is driven by a single goroutine.
type Session struct {
	id         string
	conn       net.Conn
	dispatcher *dispatch.Dispatcher
	config     SessionConfig
	metrics    metrics.ServerMetrics
	limiter    *ratelimiter.RateLimiter
	frames     *frame.Buffer
	log        *zap.SugaredLogger
}

// NewSession wraps conn. The session owns conn and closes it when Serve returns.
//
// Parameters:
//   - conn: Accepted client connection
//   - dispatcher: Shared request executor
//   - config: Per-connection limits
//   - m: Metrics sink (nil for no metrics)
func NewSession(conn net.Conn, dispatcher *dispatch.Dispatcher, config SessionConfig, m metrics.ServerMetrics) *Session {
	if m == nil {
		m = metrics.NewNoopServerMetrics()
	}
	if config.ReadBufferSize <= 0 {
		config.ReadBufferSize = 1 << 20
	}

	id := uuid.NewString()
	return &Session{
		id:         id,
		conn:       conn,
		dispatcher: dispatcher,
		config:     config,
		metrics:    m,
		limiter:    ratelimiter.New(config.RateLimit),
		frames:     frame.NewBuffer(config.MaxFrameSize),
		log:        logger.With("session", id, "peer", conn.RemoteAddr().String()),
	}
}

// ID returns the session identifier used in log lines.
func (s *Session) ID() string {
	return s.id
}

// Serve runs the session until the client disconnects, an error occurs, or
// ctx is cancelled.
//
// Cancellation interrupts a pending read but lets a request already being
// dispatched finish and its response be written.
//
// Serve never panics: a panic in request handling is recovered and logged,
// and only this connection is closed.
func (s *Session) Serve(ctx context.Context) {
	peer := s.conn.RemoteAddr().String()

	defer func() {
		if r := recover(); r != nil {
			s.log.Errorf("Panic in session: %v", r)
		}
		_ = s.conn.Close()
		logger.Info("Closing connection from %s", peer)
	}()

	logger.Info("New connection from %s", peer)

	stop := context.AfterFunc(ctx, func() {
		_ = s.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	buf := make([]byte, s.config.ReadBufferSize)

	for {
		if err := s.renewReadDeadline(); err != nil {
			s.log.Debugf("Failed to set read deadline: %v", err)
			return
		}
		// Checked after renewing: a cancellation that raced the renewal has
		// already moved the deadline and must not be overwritten.
		if ctx.Err() != nil {
			s.log.Debug("Session closed due to server shutdown")
			return
		}

		n, readErr := s.conn.Read(buf)
		if n > 0 {
			s.metrics.RecordBytes("in", int64(n))

			appendErr := s.frames.Append(buf[:n])

			if err := s.drain(ctx); err != nil {
				s.logTransportError(err)
				return
			}

			if appendErr != nil {
				s.rejectOversized(appendErr)
				return
			}
		}

		if readErr != nil {
			if ctx.Err() != nil {
				s.log.Debug("Session closed due to server shutdown")
			} else {
				s.logTransportError(readErr)
			}
			return
		}
	}
}

// drain answers every complete frame currently buffered.
func (s *Session) drain(ctx context.Context) error {
	for {
		raw, ok := s.frames.Next()
		if !ok {
			return nil
		}
		if err := s.handleFrame(ctx, raw); err != nil {
			return err
		}
	}
}

// handleFrame parses, dispatches and answers one frame.
//
// Returns an error only for transport failures; protocol failures become
// FAILED responses.
func (s *Session) handleFrame(ctx context.Context, raw []byte) error {
	start := time.Now()

	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	// A request that has started runs to completion even during shutdown.
	req, resp := s.dispatcher.Handle(context.WithoutCancel(ctx), string(raw))

	if err := s.write(dispatch.Marshal(resp)); err != nil {
		return err
	}

	status := string(resp.ResponseStatus())
	s.metrics.RecordRequest(verbLabel(req.Verb), status, time.Since(start))
	s.log.Debugw("Request served", "verb", req.Verb, "status", status, "duration", time.Since(start))

	return nil
}

// rejectOversized tells the client its frame is too large. The caller closes
// the connection afterwards; the rest of the stream cannot be resynchronized.
func (s *Session) rejectOversized(cause error) {
	s.metrics.RecordFrameRejected()
	s.log.Warnf("Closing session: %v", cause)

	if err := s.write(dispatch.Marshal(dispatch.Failed("Request too large"))); err != nil {
		s.log.Debugf("Failed to send rejection: %v", err)
	}
	s.frames.Reset()
}

// write sends one framed response under the write timeout.
func (s *Session) write(payload []byte) error {
	if s.config.WriteTimeout > 0 {
		if err := s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout)); err != nil {
			return fmt.Errorf("set write deadline: %w", err)
		}
	}

	n, err := s.conn.Write(frame.Encode(payload))
	s.metrics.RecordBytes("out", int64(n))
	if err != nil {
		return fmt.Errorf("write response: %w", err)
	}
	return nil
}

func (s *Session) renewReadDeadline() error {
	if s.config.IdleTimeout <= 0 {
		return nil
	}
	return s.conn.SetReadDeadline(time.Now().Add(s.config.IdleTimeout))
}

func (s *Session) logTransportError(err error) {
	var netErr net.Error
	switch {
	case errors.Is(err, io.EOF):
		s.log.Debug("Connection closed by client")
	case errors.As(err, &netErr) && netErr.Timeout():
		s.log.Debugf("Connection idle timeout: %v", err)
	case errors.Is(err, context.Canceled):
		s.log.Debugf("Session cancelled: %v", err)
	default:
		s.log.Debugf("Connection error: %v", err)
	}
}

// verbLabel bounds the metric label set to the known verbs.
func verbLabel(verb string) string {
	switch verb {
	case command.VerbList, command.VerbGet, command.VerbUpload, command.VerbDelete:
		return verb
	default:
		return verbInvalid
	}
}
