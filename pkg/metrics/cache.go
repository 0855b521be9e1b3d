package metrics

import (
	"github.com/marmos91/filecmd/pkg/store/cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// cacheMetrics is the Prometheus implementation of cache.CacheMetrics.
type cacheMetrics struct {
	lookups   *prometheus.CounterVec
	evictions prometheus.Counter
}

// NewCacheMetrics creates a Prometheus-backed CacheMetrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called), which
// causes the cache to use its built-in no-op implementation.
func NewCacheMetrics() cache.CacheMetrics {
	if !IsEnabled() {
		return nil
	}

	reg := GetRegistry()

	return &cacheMetrics{
		lookups: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "filecmd_cache_lookups_total",
				Help: "Total number of read cache lookups by result",
			},
			[]string{"result"}, // hit or miss
		),
		evictions: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "filecmd_cache_evictions_total",
				Help: "Total number of entries removed from the read cache",
			},
		),
	}
}

func (m *cacheMetrics) RecordHit() {
	m.lookups.WithLabelValues("hit").Inc()
}

func (m *cacheMetrics) RecordMiss() {
	m.lookups.WithLabelValues("miss").Inc()
}

func (m *cacheMetrics) RecordEviction() {
	m.evictions.Inc()
}
