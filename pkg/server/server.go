package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/marmos91/filecmd/internal/logger"
	"github.com/marmos91/filecmd/pkg/adapter"
	"github.com/marmos91/filecmd/pkg/metrics"
	"github.com/marmos91/filecmd/pkg/store"
)

// DefaultShutdownTimeout bounds adapter Stop() calls when New gets 0.
const DefaultShutdownTimeout = 30 * time.Second

// ErrAlreadyServed is returned by Serve on a second call.
var ErrAlreadyServed = errors.New("server: Serve already called")

// FileServer manages the lifecycle of the protocol adapters, the optional
// metrics HTTP server and the store they share.
//
// Lifecycle:
//  1. Creation: New() with the store (nil when workers own their stores)
//  2. Registration: AddAdapter() for each listener
//  3. Startup: Serve() starts everything concurrently
//  4. Shutdown: Context cancellation stops adapters, then the metrics server,
//     then closes the store
//
// Thread safety:
// AddAdapter() may be called concurrently before Serve(). Serve() may only be
// called once.
//
// Example usage:
//
//	srv := server.New(st, 30*time.Second)
//	srv.AddAdapter(filecmd.New(cfg, pool, m))
//
//	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer cancel()
//
//	if err := srv.Serve(ctx); err != nil && err != context.Canceled {
//	    log.Fatal(err)
//	}
type FileServer struct {
	// store is closed after every adapter has stopped; may be nil
	store store.Store

	// shutdownTimeout bounds the Stop() calls issued to adapters
	shutdownTimeout time.Duration

	adapters      []adapter.Adapter
	metricsServer *metrics.Server

	// mu protects adapters, metricsServer and served
	mu     sync.Mutex
	served bool
}

// New creates a FileServer.
//
// Parameters:
//   - st: Store shared by in-process sessions. The server closes it on
//     shutdown. nil when sessions run in worker processes.
//   - shutdownTimeout: How long to wait for adapters to stop (0 = DefaultShutdownTimeout)
func New(st store.Store, shutdownTimeout time.Duration) *FileServer {
	if shutdownTimeout <= 0 {
		shutdownTimeout = DefaultShutdownTimeout
	}
	return &FileServer{
		store:           st,
		shutdownTimeout: shutdownTimeout,
		adapters:        make([]adapter.Adapter, 0, 1),
	}
}

// AddAdapter registers a protocol adapter.
//
// Returns an error if another adapter already uses the same protocol or port.
//
// Panics if a is nil or Serve() has already been called.
func (s *FileServer) AddAdapter(a adapter.Adapter) error {
	if a == nil {
		panic("adapter cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.served {
		panic("cannot add adapter after Serve() has been called")
	}

	for _, existing := range s.adapters {
		if existing.Protocol() == a.Protocol() {
			return fmt.Errorf("adapter for protocol %s already registered", a.Protocol())
		}
		if a.Port() != 0 && existing.Port() == a.Port() {
			return fmt.Errorf("port %d already in use by %s adapter", a.Port(), existing.Protocol())
		}
	}

	s.adapters = append(s.adapters, a)
	logger.Info("Registered %s adapter on port %d", a.Protocol(), a.Port())
	return nil
}

// SetMetricsServer registers the /metrics HTTP server to run alongside the adapters.
func (s *FileServer) SetMetricsServer(ms *metrics.Server) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metricsServer = ms
}

// Serve starts every adapter and blocks until ctx is cancelled or an adapter
// fails.
//
// Returns:
//   - context.Canceled (or ctx's error) after a shutdown triggered by ctx
//   - the adapter's error, wrapped, if an adapter failed
//   - ErrAlreadyServed on a second call
func (s *FileServer) Serve(ctx context.Context) error {
	s.mu.Lock()
	if s.served {
		s.mu.Unlock()
		return ErrAlreadyServed
	}
	s.served = true
	if len(s.adapters) == 0 {
		s.mu.Unlock()
		return fmt.Errorf("no adapters registered; call AddAdapter() before Serve()")
	}
	adapters := make([]adapter.Adapter, len(s.adapters))
	copy(adapters, s.adapters)
	metricsServer := s.metricsServer
	s.mu.Unlock()

	defer s.closeStore()

	// Adapters and the metrics server run under a context we cancel ourselves
	// when one of them fails.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errChan := make(chan adapterError, len(adapters)+1)
	var wg sync.WaitGroup

	startTime := time.Now()
	for _, adp := range adapters {
		wg.Add(1)
		go func(a adapter.Adapter) {
			defer wg.Done()

			logger.Info("Starting %s adapter on port %d", a.Protocol(), a.Port())

			err := a.Serve(runCtx)
			switch {
			case err == nil:
				logger.Info("%s adapter stopped", a.Protocol())
			case runCtx.Err() == nil:
				errChan <- adapterError{protocol: a.Protocol(), err: err}
			default:
				logger.Warn("%s adapter stopped with error: %v", a.Protocol(), err)
			}
		}(adp)
	}

	if metricsServer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := metricsServer.Start(runCtx); err != nil && runCtx.Err() == nil {
				errChan <- adapterError{protocol: "metrics", err: err}
			}
		}()
	}

	logger.Debug("Started %d adapter(s) in %v", len(adapters), time.Since(startTime))

	var shutdownErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received (reason: %v)", ctx.Err())
		shutdownErr = ctx.Err()

	case adapterErr := <-errChan:
		logger.Error("%s failed: %v - initiating shutdown", adapterErr.protocol, adapterErr.err)
		shutdownErr = fmt.Errorf("%s adapter error: %w", adapterErr.protocol, adapterErr.err)
	}

	cancel()
	s.stopAllAdapters(adapters)

	logger.Debug("Waiting for all adapters to complete shutdown")
	wg.Wait()

	logger.Info("Server stopped")
	return shutdownErr
}

// adapterError pairs a component name with its error.
type adapterError struct {
	protocol string
	err      error
}

// stopAllAdapters calls Stop() on every adapter in reverse registration order.
func (s *FileServer) stopAllAdapters(adapters []adapter.Adapter) {
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	for i := len(adapters) - 1; i >= 0; i-- {
		adp := adapters[i]
		if err := adp.Stop(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Error stopping %s adapter: %v", adp.Protocol(), err)
		}
	}
}

func (s *FileServer) closeStore() {
	if s.store == nil {
		return
	}
	if err := s.store.Close(); err != nil {
		logger.Error("Error closing store: %v", err)
	}
}

// Adapters returns a snapshot of the registered adapters.
func (s *FileServer) Adapters() []adapter.Adapter {
	s.mu.Lock()
	defer s.mu.Unlock()

	adapters := make([]adapter.Adapter, len(s.adapters))
	copy(adapters, s.adapters)
	return adapters
}
