// Package cache implements a read-through LRU cache in front of a Store.
//
// The cache lives in the memory of one process. With the thread pool every
// session shares it. With the process pool each worker process owns its own
// cache, so a file changed through one worker can be served stale by another
// until the entry expires. Keep the TTL short, or leave the cache disabled,
// when running the process discipline.
package cache

import (
	"context"
	"errors"
	"fmt"
	"hash/maphash"
	"sync"
	"time"

	"github.com/bluele/gcache"
	"github.com/marmos91/filecmd/pkg/store"
)

// Defaults used when the corresponding Config field is zero.
const (
	DefaultMaxEntries    = 256
	DefaultTTL           = 30 * time.Second
	DefaultMaxEntryBytes = 4 * 1024 * 1024
)

// generationStripes is the number of write generations names are hashed onto.
const generationStripes = 1024

// Config controls the read cache.
type Config struct {
	// MaxEntries bounds the number of cached files (LRU eviction).
	MaxEntries int

	// TTL is how long an entry stays valid after being loaded.
	TTL time.Duration

	// MaxEntryBytes skips caching for files larger than this.
	MaxEntryBytes int
}

// CachedStore wraps a Store and caches Read results.
//
// Write and Delete go to the underlying store first and then update or drop
// the cached entry. List always goes to the underlying store.
//
// A miss only fills the cache if no Write or Delete of the same name finished
// while it was loading. Each completed mutation bumps the generation of the
// name's stripe; a load that started under an older generation is returned to
// its caller but not cached.
//
// Thread Safety:
// Safe for concurrent use.
type CachedStore struct {
	next          store.Store
	cache         gcache.Cache
	maxEntryBytes int
	metrics       CacheMetrics

	// mu orders generation bumps with the cache updates that follow them
	mu   sync.Mutex
	seed maphash.Seed
	gens [generationStripes]uint64
}

// New wraps next with a read cache.
//
// Parameters:
//   - next: Backend that owns the data
//   - cfg: Cache sizing; zero fields take the package defaults
//   - metrics: Optional metrics sink (nil for no-op)
func New(next store.Store, cfg Config, metrics CacheMetrics) *CachedStore {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.MaxEntryBytes <= 0 {
		cfg.MaxEntryBytes = DefaultMaxEntryBytes
	}
	if metrics == nil {
		metrics = noopCacheMetrics{}
	}

	c := &CachedStore{
		next:          next,
		maxEntryBytes: cfg.MaxEntryBytes,
		metrics:       metrics,
		seed:          maphash.MakeSeed(),
	}

	c.cache = gcache.New(cfg.MaxEntries).
		LRU().
		Expiration(cfg.TTL).
		EvictedFunc(func(key, value any) {
			c.metrics.RecordEviction()
		}).
		Build()

	return c
}

// List passes through to the underlying store.
func (c *CachedStore) List(ctx context.Context) ([]string, error) {
	return c.next.List(ctx)
}

// Read serves name from the cache, loading it from the underlying store on a miss.
func (c *CachedStore) Read(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if v, err := c.cache.Get(name); err == nil {
		c.metrics.RecordHit()
		return clone(v.([]byte)), nil
	} else if !errors.Is(err, gcache.KeyNotFoundError) {
		return nil, fmt.Errorf("cache lookup: %w", err)
	}

	c.metrics.RecordMiss()

	stripe := c.stripe(name)
	c.mu.Lock()
	gen := c.gens[stripe]
	c.mu.Unlock()

	data, err := c.next.Read(ctx, name)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.gens[stripe] == gen {
		c.store(name, data)
	}
	c.mu.Unlock()

	return data, nil
}

// Write stores data in the underlying store and refreshes the cached entry.
func (c *CachedStore) Write(ctx context.Context, name string, data []byte) error {
	err := c.next.Write(ctx, name, data)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.gens[c.stripe(name)]++
	if err != nil {
		c.cache.Remove(name)
		return err
	}
	c.store(name, data)
	return nil
}

// Delete removes name from the underlying store and drops the cached entry.
func (c *CachedStore) Delete(ctx context.Context, name string) error {
	err := c.next.Delete(ctx, name)

	c.mu.Lock()
	c.gens[c.stripe(name)]++
	c.cache.Remove(name)
	c.mu.Unlock()

	return err
}

// Close purges the cache and closes the underlying store.
func (c *CachedStore) Close() error {
	c.cache.Purge()
	return c.next.Close()
}

// Unwrap returns the underlying store.
func (c *CachedStore) Unwrap() store.Store {
	return c.next
}

func (c *CachedStore) stripe(name string) int {
	return int(maphash.String(c.seed, name) % generationStripes)
}

// store must be called with mu held.
func (c *CachedStore) store(name string, data []byte) {
	if len(data) > c.maxEntryBytes {
		c.cache.Remove(name)
		return
	}
	_ = c.cache.Set(name, clone(data))
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
