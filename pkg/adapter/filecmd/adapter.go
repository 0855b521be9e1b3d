// Package filecmd implements the file command protocol server.
//
// A client sends text requests terminated by "\r\n\r\n" and receives one JSON
// response per request, terminated the same way. The adapter owns the TCP
// listener and hands every accepted connection to a worker Pool; sessions
// run either on goroutines sharing one Store (thread discipline) or inside
// child processes that each own a Store (process discipline).
package filecmd

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/filecmd/internal/logger"
	"github.com/marmos91/filecmd/pkg/metrics"
)

// FileCmdAdapter implements the adapter.Adapter interface for the file
// command protocol.
//
// Architecture:
// The accept loop never serves a connection itself. It registers the
// connection for shutdown tracking and submits it to the Pool, which queues
// it until a worker is idle.
//
// Shutdown flow:
//  1. Context cancelled or Stop() called
//  2. Listener closed (no new connections)
//  3. Pool drains: queued connections still reach a worker and sessions run
//     until their clients disconnect
//  4. After ShutdownTimeout, sessionCtx is cancelled, queued connections are
//     dropped, worker processes are killed and remaining connections are
//     force-closed
//
// Thread safety:
// All methods are safe for concurrent use. Shutdown is idempotent.
type FileCmdAdapter struct {
	config FileCmdConfig

	// pool runs the sessions
	pool Pool

	metrics metrics.ServerMetrics

	// mu guards listener and orders its assignment against close(shutdown)
	mu sync.Mutex

	// listener is closed during shutdown to stop accepting connections
	listener net.Listener

	// listening is closed once listener is set, or when Serve fails to bind
	listening chan struct{}

	// activeConns counts tracked connections until they are closed
	activeConns sync.WaitGroup

	shutdownOnce sync.Once
	shutdown     chan struct{}

	connCount atomic.Int32

	// sessionCtx is the context every session runs under. It is cancelled
	// when the drain times out, or once it has completed.
	sessionCtx     context.Context
	cancelSessions context.CancelFunc

	// activeConnections maps connection id to *trackedConn for forced closure
	activeConnections sync.Map

	nextConnID atomic.Uint64
	boundPort  atomic.Int32
}

// New creates a FileCmdAdapter.
//
// Zero values in config are replaced with defaults.
//
// Parameters:
//   - config: Listener and session settings
//   - pool: Worker pool matching config.Discipline
//   - m: Optional metrics collector (nil for no metrics)
//
// Panics if config validation fails.
func New(config FileCmdConfig, pool Pool, m metrics.ServerMetrics) *FileCmdAdapter {
	config.applyDefaults()
	if err := config.validate(); err != nil {
		panic(fmt.Sprintf("invalid filecmd config: %v", err))
	}

	if m == nil {
		m = metrics.NewNoopServerMetrics()
	}

	sessionCtx, cancelSessions := context.WithCancel(context.Background())

	return &FileCmdAdapter{
		config:         config,
		pool:           pool,
		metrics:        m,
		listening:      make(chan struct{}),
		shutdown:       make(chan struct{}),
		sessionCtx:     sessionCtx,
		cancelSessions: cancelSessions,
	}
}

// Serve binds the listener, starts the pool and accepts connections until
// ctx is cancelled or Stop is called.
//
// Returns:
//   - nil on graceful shutdown
//   - error if the listener or pool cannot start, or if shutdown had to
//     force-close connections
func (s *FileCmdAdapter) Serve(ctx context.Context) error {
	address := net.JoinHostPort(s.config.BindAddress, strconv.Itoa(s.config.Port))

	listener, err := listen(address, s.config.Backlog)
	if err != nil {
		close(s.listening)
		return fmt.Errorf("failed to create filecmd listener on %s: %w", address, err)
	}

	if tcpAddr, ok := listener.Addr().(*net.TCPAddr); ok {
		s.boundPort.Store(int32(tcpAddr.Port))
	}

	if err := s.pool.Start(s.sessionCtx); err != nil {
		_ = listener.Close()
		close(s.listening)
		return fmt.Errorf("failed to start %s pool: %w", s.pool.Discipline(), err)
	}

	s.mu.Lock()
	s.listener = listener
	stopped := s.isShuttingDown()
	s.mu.Unlock()
	close(s.listening)

	if stopped {
		_ = listener.Close()
	}

	logger.Info("File server listening on %s (%s pool, %d workers)",
		listener.Addr(), s.pool.Discipline(), s.config.PoolSize)
	logger.Debug("filecmd config: max_frame_size=%d read_buffer_size=%d idle_timeout=%v write_timeout=%v",
		s.config.MaxFrameSize, s.config.ReadBufferSize, s.config.IdleTimeout, s.config.WriteTimeout)

	go func() {
		select {
		case <-ctx.Done():
			logger.Info("filecmd shutdown signal received: %v", ctx.Err())
			s.initiateShutdown()
		case <-s.shutdown:
		}
	}()

	if s.config.MetricsLogInterval > 0 {
		go s.logMetrics(s.sessionCtx)
	}

	for {
		tcpConn, err := listener.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				return s.gracefulShutdown()
			default:
				logger.Debug("Error accepting connection: %v", err)
				continue
			}
		}

		s.pool.Submit(s.track(tcpConn))
	}
}

// track registers conn for shutdown and returns the wrapper that unregisters
// it on Close.
func (s *FileCmdAdapter) track(conn net.Conn) net.Conn {
	id := s.nextConnID.Add(1)
	tc := &trackedConn{Conn: conn}
	tc.onClose = func() {
		s.activeConnections.Delete(id)
		s.activeConns.Done()
		current := s.connCount.Add(-1)

		s.metrics.RecordConnectionClosed()
		s.metrics.SetActiveConnections(current)
	}

	s.activeConns.Add(1)
	current := s.connCount.Add(1)
	s.activeConnections.Store(id, tc)

	s.metrics.RecordConnectionAccepted()
	s.metrics.SetActiveConnections(current)

	logger.Debug("Connection accepted from %s (active: %d, queued: %d)",
		conn.RemoteAddr(), current, s.pool.QueueDepth())

	return tc
}

// initiateShutdown stops the accept loop. Sessions keep running.
func (s *FileCmdAdapter) initiateShutdown() {
	s.shutdownOnce.Do(func() {
		logger.Debug("filecmd shutdown initiated")

		s.mu.Lock()
		close(s.shutdown)
		listener := s.listener
		s.mu.Unlock()

		if listener != nil {
			if err := listener.Close(); err != nil {
				logger.Debug("Error closing listener: %v", err)
			}
		}
	})
}

func (s *FileCmdAdapter) isShuttingDown() bool {
	select {
	case <-s.shutdown:
		return true
	default:
		return false
	}
}

// gracefulShutdown drains the pool, then cancels sessions and force-closes
// connections if it has not drained after ShutdownTimeout.
func (s *FileCmdAdapter) gracefulShutdown() error {
	defer s.cancelSessions()

	logger.Info("filecmd graceful shutdown: draining %d connection(s), %d queued (timeout: %v)",
		s.connCount.Load(), s.pool.QueueDepth(), s.config.ShutdownTimeout)

	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	if err := s.pool.Shutdown(ctx); err != nil {
		s.cancelSessions()
		remaining := s.connCount.Load()
		logger.Warn("filecmd shutdown timeout exceeded: %d connection(s) still active after %v, forcing closure",
			remaining, s.config.ShutdownTimeout)

		s.forceCloseConnections()
		return fmt.Errorf("filecmd shutdown timeout: %d connections force-closed", remaining)
	}

	logger.Info("filecmd graceful shutdown complete")
	return nil
}

// forceCloseConnections closes every tracked connection.
//
// Under the process discipline this closes the parent's copy of each socket;
// the children holding the other copy have already been killed by the pool.
func (s *FileCmdAdapter) forceCloseConnections() {
	closed := 0
	s.activeConnections.Range(func(_, value any) bool {
		tc := value.(*trackedConn)
		if err := tc.Close(); err != nil {
			logger.Debug("Error force-closing connection to %s: %v", tc.RemoteAddr(), err)
		} else {
			closed++
			s.metrics.RecordConnectionForceClosed()
		}
		return true
	})

	if closed > 0 {
		logger.Info("Force-closed %d connection(s)", closed)
	}
}

// Stop initiates graceful shutdown and waits for tracked connections to close
// or ctx to end.
func (s *FileCmdAdapter) Stop(ctx context.Context) error {
	s.initiateShutdown()

	done := make(chan struct{})
	go func() {
		s.activeConns.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		logger.Warn("filecmd stop: %d connection(s) still active: %v", s.connCount.Load(), ctx.Err())
		return ctx.Err()
	}
}

// logMetrics periodically logs connection and queue state.
func (s *FileCmdAdapter) logMetrics(ctx context.Context) {
	ticker := time.NewTicker(s.config.MetricsLogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logger.Info("filecmd metrics: active_connections=%d queued=%d discipline=%s",
				s.connCount.Load(), s.pool.QueueDepth(), s.pool.Discipline())
		}
	}
}

// GetActiveConnections returns the number of accepted connections not yet closed,
// queued ones included.
func (s *FileCmdAdapter) GetActiveConnections() int32 {
	return s.connCount.Load()
}

// Status is a point-in-time view of the adapter, served on /status.
type Status struct {
	Discipline        string `json:"discipline"`
	PoolSize          int    `json:"pool_size"`
	QueueDepth        int    `json:"queue_depth"`
	ActiveConnections int32  `json:"active_connections"`
	WorkerPids        []int  `json:"worker_pids,omitempty"`
}

// Status returns the current pool and connection state.
func (s *FileCmdAdapter) Status() Status {
	st := Status{
		Discipline:        s.pool.Discipline(),
		PoolSize:          s.config.PoolSize,
		QueueDepth:        s.pool.QueueDepth(),
		ActiveConnections: s.connCount.Load(),
	}
	if p, ok := s.pool.(interface{ Pids() []int }); ok {
		st.WorkerPids = p.Pids()
	}
	return st
}

// Addr blocks until Serve has bound its listener and returns its address.
// Returns nil if Serve failed to bind.
func (s *FileCmdAdapter) Addr() net.Addr {
	<-s.listening

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Port returns the bound TCP port, or the configured one before Serve binds.
func (s *FileCmdAdapter) Port() int {
	if p := s.boundPort.Load(); p != 0 {
		return int(p)
	}
	return s.config.Port
}

// Protocol returns "filecmd".
func (s *FileCmdAdapter) Protocol() string {
	return "filecmd"
}

// trackedConn runs onClose exactly once, on the first Close.
type trackedConn struct {
	net.Conn
	once    sync.Once
	onClose func()
}

func (c *trackedConn) Close() error {
	err := net.ErrClosed
	c.once.Do(func() {
		err = c.Conn.Close()
		c.onClose()
	})
	return err
}

// NetConn returns the underlying connection.
func (c *trackedConn) NetConn() net.Conn {
	return c.Conn
}
