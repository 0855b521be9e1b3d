// Package metrics provides Prometheus metrics collection for the file command server.
//
// All metrics are optional. If the registry is not initialized, constructors
// return no-op implementations, so the server runs the same with or without
// collection enabled.
//
// Usage:
//
//	// Initialize global registry (typically in main.go)
//	metrics.InitRegistry()
//
//	// Create metrics instances for components
//	serverMetrics := prometheus.NewServerMetrics()
//	cacheMetrics := metrics.NewCacheMetrics()
//
//	// Or use nil for no-op behavior
//	adapter := filecmd.New(config, pool, serverMetrics)
//
// With the process discipline only the parent process registers metrics.
// Worker processes run sessions with no-op metrics, so per-request series
// are reported by the thread discipline only.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// registry is the global Prometheus registry, written once by InitRegistry.
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry initializes the global Prometheus registry.
//
// This must be called before creating any metrics instances. It's safe to call
// multiple times; subsequent calls are ignored.
//
// Thread safety:
// sync.Once provides the memory barrier that makes the registry visible to
// all subsequent readers.
func InitRegistry() {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			prometheus.NewGoCollector(),
			prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		)
	})
}

// GetRegistry returns the global Prometheus registry, or nil when metrics
// are disabled.
func GetRegistry() *prometheus.Registry {
	return registry
}

// IsEnabled returns true if InitRegistry has been called.
func IsEnabled() bool {
	return GetRegistry() != nil
}
