package filecmd

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/marmos91/filecmd/internal/logger"
	"github.com/marmos91/filecmd/pkg/dispatch"
	"github.com/marmos91/filecmd/pkg/metrics"
)

// Pool runs sessions for accepted connections on a fixed set of workers.
//
// Lifecycle:
//  1. Start launches the workers
//  2. Submit hands over a connection; it never blocks
//  3. Shutdown stops taking work and lets the queue and running sessions drain
//
// Connections submitted while every worker is busy wait in FIFO order.
//
// Thread safety:
// Submit may be called concurrently with itself and with Shutdown.
type Pool interface {
	// Start launches the workers. ctx is the session context: its
	// cancellation interrupts running sessions at their next read and stops
	// workers from taking queued connections.
	Start(ctx context.Context) error

	// Submit queues conn for the next idle worker. The pool owns conn from
	// here on and closes it when its session ends. After Shutdown, conn is
	// closed immediately.
	Submit(conn net.Conn)

	// Shutdown rejects new connections and waits until every queued
	// connection has been served and every session has ended, or ctx is done.
	//
	// When ctx ends first, connections still queued are closed and ctx.Err()
	// is returned. Running sessions are left to the caller, which cancels
	// the Start context.
	Shutdown(ctx context.Context) error

	// Discipline returns "thread" or "process".
	Discipline() string

	// QueueDepth returns the number of connections waiting for a worker.
	QueueDepth() int
}

// ThreadPool serves sessions on a fixed number of goroutines.
//
// Every worker shares the same Dispatcher, and therefore the same Store.
type ThreadPool struct {
	size       int
	dispatcher *dispatch.Dispatcher
	session    SessionConfig
	metrics    metrics.ServerMetrics

	queue *connQueue
	wg    sync.WaitGroup
}

// NewThreadPool creates a pool of size goroutine workers.
//
// Parameters:
//   - size: Number of concurrent sessions (must be > 0)
//   - dispatcher: Request executor shared by every session
//   - session: Per-connection limits
//   - m: Metrics sink (nil for no metrics)
func NewThreadPool(size int, dispatcher *dispatch.Dispatcher, session SessionConfig, m metrics.ServerMetrics) *ThreadPool {
	if m == nil {
		m = metrics.NewNoopServerMetrics()
	}
	return &ThreadPool{
		size:       size,
		dispatcher: dispatcher,
		session:    session,
		metrics:    m,
		queue:      newConnQueue(m.SetQueueDepth),
	}
}

// Start launches the worker goroutines.
func (p *ThreadPool) Start(ctx context.Context) error {
	if p.size <= 0 {
		return fmt.Errorf("invalid pool size %d: must be > 0", p.size)
	}
	if p.dispatcher == nil {
		return fmt.Errorf("thread pool requires a dispatcher")
	}

	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}

	logger.Debug("Thread pool started with %d workers", p.size)
	return nil
}

func (p *ThreadPool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	for {
		conn, ok := p.queue.Pop(ctx)
		if !ok {
			logger.Debug("Thread worker %d exiting", id)
			return
		}
		NewSession(conn, p.dispatcher, p.session, p.metrics).Serve(ctx)
	}
}

// Submit queues conn for the next idle worker.
func (p *ThreadPool) Submit(conn net.Conn) {
	if !p.queue.Push(conn) {
		_ = conn.Close()
	}
}

// Shutdown lets the workers serve every queued connection, then waits for
// them to exit.
func (p *ThreadPool) Shutdown(ctx context.Context) error {
	p.queue.Close()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		closeQueued(p.queue)
		return ctx.Err()
	}
}

// closeQueued closes the connections that never reached a worker.
func closeQueued(q *connQueue) {
	pending := q.Discard()
	for _, conn := range pending {
		_ = conn.Close()
	}
	if len(pending) > 0 {
		logger.Info("Closed %d queued connection(s) that never reached a worker", len(pending))
	}
}

// Discipline returns DisciplineThread.
func (p *ThreadPool) Discipline() string {
	return DisciplineThread
}

// QueueDepth returns the number of connections waiting for a worker.
func (p *ThreadPool) QueueDepth() int {
	return p.queue.Len()
}
