package config

import (
	"github.com/marmos91/filecmd/pkg/metrics"
	promMetrics "github.com/marmos91/filecmd/pkg/metrics/prometheus"
	"github.com/marmos91/filecmd/pkg/store/cache"
)

// MetricsResult contains all metrics-related components created from configuration.
type MetricsResult struct {
	// Server is the HTTP server exposing Prometheus metrics (nil if disabled)
	Server *metrics.Server

	// ServerMetrics is the collector for the filecmd adapter (never nil, uses noop if disabled)
	ServerMetrics metrics.ServerMetrics

	// CacheMetrics is the collector for the read cache (nil if disabled)
	CacheMetrics cache.CacheMetrics
}

// InitializeMetrics creates and initializes all metrics components based on configuration.
//
// If metrics are enabled in the configuration:
//   - Initializes the global Prometheus registry
//   - Creates the metrics HTTP server
//   - Creates Prometheus-backed metrics instances for all components
//
// If metrics are disabled:
//   - Returns nil server
//   - Returns no-op metrics implementations (zero overhead)
//
// Only the server process calls this. Worker processes run without metrics.
func InitializeMetrics(cfg *Config) *MetricsResult {
	if !cfg.Server.Metrics.Enabled {
		return &MetricsResult{
			ServerMetrics: metrics.NewNoopServerMetrics(),
		}
	}

	metrics.InitRegistry()

	server := metrics.NewServer(metrics.ServerConfig{
		BindAddress: cfg.Server.Metrics.BindAddress,
		Port:        cfg.Server.Metrics.Port,
	})

	return &MetricsResult{
		Server:        server,
		ServerMetrics: promMetrics.NewServerMetrics(),
		CacheMetrics:  metrics.NewCacheMetrics(),
	}
}
