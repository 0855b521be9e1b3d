package e2e

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"testing"

	"github.com/marmos91/filecmd/internal/logger"
	"github.com/marmos91/filecmd/pkg/adapter/filecmd"
	"github.com/marmos91/filecmd/pkg/config"
	"github.com/marmos91/filecmd/pkg/dispatch"
)

func TestMain(m *testing.M) {
	if os.Getenv(workerEnv) == "1" {
		os.Exit(runWorker())
	}
	os.Exit(m.Run())
}

// runWorker is the child side of the process discipline. It mirrors the
// hidden "worker" command of the filecmd binary.
func runWorker() int {
	cfg, err := config.Load(os.Getenv(workerConfigEnv))
	if err != nil {
		fmt.Fprintf(os.Stderr, "worker config: %v\n", err)
		return 1
	}
	logger.SetLevel(cfg.Logging.Level)

	signal.Ignore(os.Interrupt)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	if err := cfg.Adapter.Normalize(); err != nil {
		fmt.Fprintf(os.Stderr, "worker config: %v\n", err)
		return 1
	}

	st, err := config.CreateStore(ctx, &cfg.Store, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "worker store: %v\n", err)
		return 1
	}
	defer st.Close()

	control := os.NewFile(filecmd.WorkerControlFD, "control")
	if err := filecmd.ServeWorker(ctx, control, dispatch.New(st), cfg.Adapter.SessionConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "worker: %v\n", err)
		return 1
	}
	return 0
}
