package filecmd

import (
	"context"
	"net"
	"sync"
)

// connQueue is an unbounded FIFO of accepted connections waiting for a worker.
//
// Push never blocks, so the accept loop is never held up by busy workers.
//
// Thread safety:
// Safe for concurrent use by one producer and any number of consumers.
type connQueue struct {
	mu     sync.Mutex
	items  []net.Conn
	closed bool

	// ready has capacity 1 and carries a wake-up for one consumer. It is
	// closed by Close to wake every consumer.
	ready chan struct{}

	onDepth func(int)
}

func newConnQueue(onDepth func(int)) *connQueue {
	if onDepth == nil {
		onDepth = func(int) {}
	}
	return &connQueue{
		ready:   make(chan struct{}, 1),
		onDepth: onDepth,
	}
}

// Push appends conn. Returns false if the queue is closed.
func (q *connQueue) Push(conn net.Conn) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.items = append(q.items, conn)
	q.onDepth(len(q.items))
	q.signal()
	return true
}

// Pop removes the oldest connection, blocking until one is available.
//
// Connections pushed before Close are still handed out. Returns false once
// the queue is closed and empty, or when ctx is done.
func (q *connQueue) Pop(ctx context.Context) (net.Conn, bool) {
	for {
		if ctx.Err() != nil {
			return nil, false
		}

		q.mu.Lock()
		if len(q.items) > 0 {
			conn := q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			q.onDepth(len(q.items))
			if len(q.items) > 0 {
				q.signal()
			}
			q.mu.Unlock()
			return conn, true
		}
		if q.closed {
			q.mu.Unlock()
			return nil, false
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, false
		case <-q.ready:
		}
	}
}

// Close rejects further pushes and wakes every consumer. Connections already
// queued stay queued until popped or discarded.
func (q *connQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.ready)
}

// Discard empties the queue and returns the connections that were never
// popped.
func (q *connQueue) Discard() []net.Conn {
	q.mu.Lock()
	defer q.mu.Unlock()

	pending := q.items
	q.items = nil
	q.onDepth(0)
	return pending
}

// Len returns the number of waiting connections.
func (q *connQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// signal must be called with mu held. Once closed, ready is closed and
// already wakes every consumer.
func (q *connQueue) signal() {
	if q.closed {
		return
	}
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
