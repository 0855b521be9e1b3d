//go:build unix

package filecmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/marmos91/filecmd/internal/logger"
	"github.com/marmos91/filecmd/pkg/dispatch"
)

// ServeWorker runs the child side of the process discipline.
//
// It receives client sockets over control, serves each one as a Session using
// dispatcher, and writes one acknowledgement byte after every session. It
// returns nil when the parent closes the control socket or ctx is cancelled.
// Cancellation also interrupts the session in progress, the way an expired
// shutdown timeout does under the thread discipline. The parent never signals
// its children during a drain: it closes their control sockets once the queue
// is empty and kills them only when the timeout expires.
//
// Parameters:
//   - ctx: Worker lifetime, usually cancelled on SIGTERM
//   - control: The inherited control socket (see WorkerControlFD)
//   - dispatcher: Process-wide request executor, built once
//   - session: Per-connection limits
func ServeWorker(ctx context.Context, control *os.File, dispatcher *dispatch.Dispatcher, session SessionConfig) error {
	fc, err := net.FileConn(control)
	_ = control.Close()
	if err != nil {
		return fmt.Errorf("control socket: %w", err)
	}
	ctrl, ok := fc.(*net.UnixConn)
	if !ok {
		_ = fc.Close()
		return fmt.Errorf("control socket is %T, want unix socket", fc)
	}
	defer ctrl.Close()

	stop := context.AfterFunc(ctx, func() {
		_ = ctrl.SetReadDeadline(time.Now())
	})
	defer stop()

	logger.Debug("Worker %s ready (pid %d)", os.Getenv(WorkerSlotEnv), os.Getpid())

	buf := make([]byte, 1)
	oob := make([]byte, unix.CmsgSpace(4))

	for {
		if ctx.Err() != nil {
			return nil
		}

		n, oobn, _, _, err := ctrl.ReadMsgUnix(buf, oob)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("receive connection: %w", err)
		}
		if n == 0 && oobn == 0 {
			return nil
		}

		conn, err := receivedConn(oob[:oobn])
		if err != nil {
			logger.Warn("Worker received unusable connection: %v", err)
		} else {
			NewSession(conn, dispatcher, session, nil).Serve(ctx)
		}

		if _, err := ctrl.Write([]byte{1}); err != nil {
			return fmt.Errorf("acknowledge session: %w", err)
		}
	}
}

// receivedConn turns the SCM_RIGHTS payload into a net.Conn.
func receivedConn(oob []byte) (net.Conn, error) {
	msgs, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		return nil, fmt.Errorf("parse control message: %w", err)
	}
	if len(msgs) != 1 {
		return nil, fmt.Errorf("expected 1 control message, got %d", len(msgs))
	}

	fds, err := unix.ParseUnixRights(&msgs[0])
	if err != nil {
		return nil, fmt.Errorf("parse rights: %w", err)
	}
	if len(fds) != 1 {
		for _, fd := range fds {
			_ = unix.Close(fd)
		}
		return nil, fmt.Errorf("expected 1 descriptor, got %d", len(fds))
	}

	f := os.NewFile(uintptr(fds[0]), "client")
	defer f.Close()

	conn, err := net.FileConn(f)
	if err != nil {
		return nil, fmt.Errorf("wrap descriptor: %w", err)
	}
	return conn, nil
}
