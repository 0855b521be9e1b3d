package cache

// CacheMetrics provides observability for the read cache.
//
// This is optional. If not provided, metrics collection is skipped.
type CacheMetrics interface {
	// RecordHit records a Read served from the cache.
	RecordHit()

	// RecordMiss records a Read that went to the underlying store.
	RecordMiss()

	// RecordEviction records an entry removed by LRU pressure, expiry or invalidation.
	RecordEviction()
}

// noopCacheMetrics is the default no-op implementation.
type noopCacheMetrics struct{}

func (noopCacheMetrics) RecordHit()      {}
func (noopCacheMetrics) RecordMiss()     {}
func (noopCacheMetrics) RecordEviction() {}
