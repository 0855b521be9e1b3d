//go:build !unix

package filecmd

import (
	"context"
	"errors"
	"os"

	"github.com/marmos91/filecmd/pkg/dispatch"
	"github.com/marmos91/filecmd/pkg/metrics"
)

var errProcessUnsupported = errors.New("process discipline requires a unix platform")

// ProcessPool is not available on this platform.
type ProcessPool struct{ Pool }

// NewProcessPool always fails on this platform.
func NewProcessPool(size int, command WorkerCommand, m metrics.ServerMetrics) (*ProcessPool, error) {
	return nil, errProcessUnsupported
}

// ServeWorker always fails on this platform.
func ServeWorker(ctx context.Context, control *os.File, dispatcher *dispatch.Dispatcher, session SessionConfig) error {
	return errProcessUnsupported
}
