//go:build unix

package filecmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/marmos91/filecmd/internal/logger"
	"github.com/marmos91/filecmd/pkg/metrics"
)

// respawnDelay throttles restarts of a worker that keeps dying.
const respawnDelay = 200 * time.Millisecond

// errNotDelivered marks a hand-off that failed before the worker received the
// connection, so the connection can be offered to a fresh worker.
var errNotDelivered = errors.New("connection not delivered to worker")

// errNoDescriptor marks a connection whose socket cannot be passed on. The
// worker is unaffected.
var errNoDescriptor = errors.New("connection has no descriptor")

// ProcessPool serves sessions in a fixed number of child processes.
//
// Each child is a long-lived re-execution of the server binary in worker mode
// (see ServeWorker). It builds its own Store and Dispatcher once and reuses
// them for every connection it is given. The parent keeps the FIFO queue and,
// for each child, a unix control socket:
//
//	parent                                child
//	  | --- 1 byte + SCM_RIGHTS(fd) ---->  |  serve session
//	  | <--------- 1 byte ack ------------ |  session ended, idle again
//
// A child that exits is replaced. Sessions in different children share only
// what the Store shares (the filesystem, S3 bucket, ...).
type ProcessPool struct {
	size    int
	command WorkerCommand
	metrics metrics.ServerMetrics

	queue *connQueue
	wg    sync.WaitGroup

	// abort is closed when Shutdown gives up waiting; dead children are no
	// longer replaced after that
	abort     chan struct{}
	abortOnce sync.Once

	mu      sync.Mutex
	workers []*workerProcess
}

// workerProcess is the parent's handle on one child.
type workerProcess struct {
	slot   int
	cmd    *exec.Cmd
	ctrl   *net.UnixConn
	exited chan struct{}
}

// NewProcessPool creates a pool of size child processes started from command.
//
// Parameters:
//   - size: Number of child processes (must be > 0)
//   - command: How to start a child; Path defaults to the running executable
//   - m: Metrics sink for queue depth and restarts (nil for no metrics)
func NewProcessPool(size int, command WorkerCommand, m metrics.ServerMetrics) (*ProcessPool, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid pool size %d: must be > 0", size)
	}
	if command.Path == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("resolve worker executable: %w", err)
		}
		command.Path = exe
	}
	if m == nil {
		m = metrics.NewNoopServerMetrics()
	}

	return &ProcessPool{
		size:    size,
		command: command,
		metrics: m,
		queue:   newConnQueue(m.SetQueueDepth),
		abort:   make(chan struct{}),
		workers: make([]*workerProcess, size),
	}, nil
}

// Start spawns every child and the goroutine that feeds it.
//
// If a child cannot be started, the ones already running are stopped.
func (p *ProcessPool) Start(ctx context.Context) error {
	for slot := 0; slot < p.size; slot++ {
		w, err := p.spawn(slot)
		if err != nil {
			p.killAll()
			return err
		}
		p.setWorker(slot, w)
	}

	for slot := 0; slot < p.size; slot++ {
		p.wg.Add(1)
		go p.feed(ctx, slot)
	}

	logger.Debug("Process pool started with %d workers", p.size)
	return nil
}

// spawn starts the child for slot with a fresh control socket.
func (p *ProcessPool) spawn(slot int) (*workerProcess, error) {
	// Hold ForkLock so no concurrent exec inherits the pair before it is
	// marked close-on-exec.
	syscall.ForkLock.RLock()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err == nil {
		unix.CloseOnExec(fds[0])
		unix.CloseOnExec(fds[1])
	}
	syscall.ForkLock.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("worker %d: socketpair: %w", slot, err)
	}

	parentFile := os.NewFile(uintptr(fds[0]), fmt.Sprintf("worker-%d-ctrl", slot))
	childFile := os.NewFile(uintptr(fds[1]), fmt.Sprintf("worker-%d-ctrl-child", slot))
	defer childFile.Close()

	fc, err := net.FileConn(parentFile)
	_ = parentFile.Close()
	if err != nil {
		return nil, fmt.Errorf("worker %d: control socket: %w", slot, err)
	}
	ctrl := fc.(*net.UnixConn)

	cmd := exec.Command(p.command.Path, p.command.Args...)
	cmd.Env = append(os.Environ(), p.command.Env...)
	cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%d", WorkerSlotEnv, slot))
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	// ExtraFiles[0] becomes WorkerControlFD in the child.
	cmd.ExtraFiles = []*os.File{childFile}

	if err := cmd.Start(); err != nil {
		_ = ctrl.Close()
		return nil, fmt.Errorf("worker %d: start %s: %w", slot, p.command.Path, err)
	}

	w := &workerProcess{
		slot:   slot,
		cmd:    cmd,
		ctrl:   ctrl,
		exited: make(chan struct{}),
	}

	go func() {
		err := cmd.Wait()
		logger.Debug("Worker %d (pid %d) exited: %v", slot, cmd.Process.Pid, err)
		close(w.exited)
	}()

	logger.Info("Worker %d started (pid %d)", slot, cmd.Process.Pid)
	return w, nil
}

// feed hands queued connections to the child in slot, one at a time.
func (p *ProcessPool) feed(ctx context.Context, slot int) {
	defer p.wg.Done()

	w := p.worker(slot)
	defer func() {
		// Closing the control socket tells the child to exit.
		_ = w.ctrl.Close()
		<-w.exited
	}()

	for {
		conn, ok := p.queue.Pop(ctx)
		if !ok {
			return
		}

		err := p.handoff(w, conn)
		if err == nil {
			continue
		}
		if errors.Is(err, errNoDescriptor) {
			logger.Warn("Dropping connection: %v", err)
			continue
		}

		logger.Warn("Worker %d failed: %v", slot, err)

		next := p.respawn(ctx, w)
		if next == nil {
			_ = conn.Close()
			return
		}
		w = next

		if errors.Is(err, errNotDelivered) {
			if err := p.handoff(w, conn); err != nil {
				logger.Warn("Worker %d failed on retry: %v", slot, err)
				_ = conn.Close()
			}
		}
	}
}

// handoff passes conn to w and blocks until w reports the session finished.
//
// The parent keeps its own copy of the socket open during the session so the
// connection stays tracked; it is closed once the child acknowledges.
func (p *ProcessPool) handoff(w *workerProcess, conn net.Conn) error {
	f, err := connFile(conn)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("%w: %v", errNoDescriptor, err)
	}

	_, _, err = w.ctrl.WriteMsgUnix([]byte{0}, unix.UnixRights(int(f.Fd())), nil)
	_ = f.Close()
	if err != nil {
		return fmt.Errorf("%w: %v", errNotDelivered, err)
	}

	ack := make([]byte, 1)
	_, err = io.ReadFull(w.ctrl, ack)
	_ = conn.Close()
	if err != nil {
		return fmt.Errorf("wait for session end: %w", err)
	}
	return nil
}

// respawn replaces the dead child w. Returns nil once ctx is done or
// Shutdown has timed out.
func (p *ProcessPool) respawn(ctx context.Context, w *workerProcess) *workerProcess {
	_ = w.ctrl.Close()
	_ = w.cmd.Process.Kill()
	<-w.exited

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-p.abort:
			return nil
		case <-time.After(respawnDelay):
		}

		next, err := p.spawn(w.slot)
		if err != nil {
			logger.Error("Respawning worker %d: %v", w.slot, err)
			continue
		}

		p.metrics.RecordWorkerRestart()
		p.setWorker(w.slot, next)
		return next
	}
}

// Submit queues conn for the next idle child.
func (p *ProcessPool) Submit(conn net.Conn) {
	if !p.queue.Push(conn) {
		_ = conn.Close()
	}
}

// Shutdown lets the children serve every queued connection. Each feeder
// closes its control socket once the queue is empty, and the idle child exits.
// Children still running when ctx ends are killed.
func (p *ProcessPool) Shutdown(ctx context.Context) error {
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
		logger.Warn("Worker processes still running after shutdown timeout, killing them")
		p.abortOnce.Do(func() { close(p.abort) })
		closeQueued(p.queue)
		p.killAll()
		<-done
		return ctx.Err()
	}
}

// Discipline returns DisciplineProcess.
func (p *ProcessPool) Discipline() string {
	return DisciplineProcess
}

// QueueDepth returns the number of connections waiting for a worker.
func (p *ProcessPool) QueueDepth() int {
	return p.queue.Len()
}

// Pids returns the process ids of the current children.
func (p *ProcessPool) Pids() []int {
	p.mu.Lock()
	defer p.mu.Unlock()

	pids := make([]int, 0, len(p.workers))
	for _, w := range p.workers {
		if w != nil {
			pids = append(pids, w.cmd.Process.Pid)
		}
	}
	return pids
}

func (p *ProcessPool) worker(slot int) *workerProcess {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.workers[slot]
}

func (p *ProcessPool) setWorker(slot int, w *workerProcess) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.workers[slot] = w
}

func (p *ProcessPool) killAll() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, w := range p.workers {
		if w == nil {
			continue
		}
		_ = w.ctrl.Close()
		if err := w.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			logger.Debug("Kill worker %d: %v", w.slot, err)
		}
	}
}

// connFile returns a duplicate descriptor of the socket behind conn.
func connFile(conn net.Conn) (*os.File, error) {
	if u, ok := conn.(interface{ NetConn() net.Conn }); ok {
		conn = u.NetConn()
	}

	fc, ok := conn.(interface{ File() (*os.File, error) })
	if !ok {
		return nil, fmt.Errorf("%T has no file descriptor", conn)
	}
	return fc.File()
}
