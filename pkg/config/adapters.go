package config

import (
	"fmt"

	"github.com/marmos91/filecmd/pkg/adapter/filecmd"
	"github.com/marmos91/filecmd/pkg/dispatch"
	"github.com/marmos91/filecmd/pkg/metrics"
	"github.com/marmos91/filecmd/pkg/store"
)

// CreateAdapter creates the filecmd adapter and the worker pool selected by
// cfg.Adapter.Discipline.
//
// Parameters:
//   - cfg: The complete filecmd configuration
//   - st: Store shared by the thread pool; must be nil for the process
//     discipline, where each worker opens its own
//   - serverMetrics: Optional adapter metrics collector (nil = no metrics)
//   - worker: How to launch worker processes; only used by the process discipline
//
// Returns:
//   - *filecmd.FileCmdAdapter: Adapter ready to be added to the server
//   - error: Any error during pool creation
func CreateAdapter(cfg *Config, st store.Store, serverMetrics metrics.ServerMetrics, worker filecmd.WorkerCommand) (*filecmd.FileCmdAdapter, error) {
	var pool filecmd.Pool

	switch cfg.Adapter.Discipline {
	case filecmd.DisciplineThread:
		if st == nil {
			return nil, fmt.Errorf("thread discipline requires a store")
		}
		pool = filecmd.NewThreadPool(cfg.Adapter.PoolSize, dispatch.New(st), cfg.Adapter.SessionConfig(), serverMetrics)

	case filecmd.DisciplineProcess:
		processPool, err := filecmd.NewProcessPool(cfg.Adapter.PoolSize, worker, serverMetrics)
		if err != nil {
			return nil, fmt.Errorf("failed to create process pool: %w", err)
		}
		pool = processPool

	default:
		return nil, fmt.Errorf("unknown discipline: %q", cfg.Adapter.Discipline)
	}

	return filecmd.New(cfg.Adapter, pool, serverMetrics), nil
}
