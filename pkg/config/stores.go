package config

import (
	"context"
	"fmt"
	"os"

	"github.com/marmos91/filecmd/internal/logger"
	"github.com/marmos91/filecmd/pkg/store"
	"github.com/marmos91/filecmd/pkg/store/badger"
	"github.com/marmos91/filecmd/pkg/store/cache"
	"github.com/marmos91/filecmd/pkg/store/fs"
	"github.com/marmos91/filecmd/pkg/store/memory"
	"github.com/marmos91/filecmd/pkg/store/s3"
	"github.com/mitchellh/mapstructure"
)

// filesystemYAMLConfig represents filesystem store options loaded from config files.
type filesystemYAMLConfig struct {
	Path     string `mapstructure:"path"`
	DirMode  uint32 `mapstructure:"dir_mode"`
	FileMode uint32 `mapstructure:"file_mode"`
}

// s3YAMLConfig represents S3 store options loaded from config files.
type s3YAMLConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	KeyPrefix       string `mapstructure:"key_prefix"`
	MaxRetries      int    `mapstructure:"max_retries"`
}

// badgerYAMLConfig represents BadgerDB store options loaded from config files.
type badgerYAMLConfig struct {
	DBPath           string `mapstructure:"db_path"`
	InMemory         bool   `mapstructure:"in_memory"`
	BlockCacheSizeMB int64  `mapstructure:"block_cache_size_mb"`
	SyncWrites       bool   `mapstructure:"sync_writes"`
}

// CreateStore creates the storage backend selected by cfg.Type and, when
// enabled, wraps it with the read cache.
//
// Each process that serves sessions calls CreateStore once at startup: the
// server process for the thread discipline, every worker process for the
// process discipline.
//
// Parameters:
//   - ctx: Context for initialization operations
//   - cfg: Store configuration
//   - cacheMetrics: Optional cache metrics sink (nil for no-op)
//
// Returns:
//   - store.Store: Initialized store; the caller must Close it
//   - error: Configuration or initialization error
func CreateStore(ctx context.Context, cfg *StoreConfig, cacheMetrics cache.CacheMetrics) (store.Store, error) {
	var (
		st  store.Store
		err error
	)

	switch cfg.Type {
	case "filesystem":
		st, err = createFilesystemStore(ctx, cfg.Filesystem)
	case "memory":
		st = memory.NewMemoryStore()
	case "s3":
		st, err = createS3Store(ctx, cfg.S3)
	case "badger":
		st, err = createBadgerStore(ctx, cfg.Badger)
	default:
		return nil, fmt.Errorf("unknown store type: %q", cfg.Type)
	}
	if err != nil {
		return nil, err
	}

	if cfg.Cache.Enabled {
		logger.Info("Read cache enabled: max_entries=%d, ttl=%v", cfg.Cache.MaxEntries, cfg.Cache.TTL)
		st = cache.New(st, cache.Config{
			MaxEntries:    cfg.Cache.MaxEntries,
			TTL:           cfg.Cache.TTL,
			MaxEntryBytes: cfg.Cache.MaxEntryBytes,
		}, cacheMetrics)
	}

	return st, nil
}

// createFilesystemStore creates a store backed by one local directory.
func createFilesystemStore(ctx context.Context, options map[string]any) (store.Store, error) {
	var storeCfg filesystemYAMLConfig
	if err := mapstructure.Decode(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode filesystem store config: %w", err)
	}

	if storeCfg.Path == "" {
		return nil, fmt.Errorf("filesystem store: path is required")
	}

	st, err := fs.NewFSStore(ctx, fs.FSStoreConfig{
		BasePath: storeCfg.Path,
		DirMode:  os.FileMode(storeCfg.DirMode),
		FileMode: os.FileMode(storeCfg.FileMode),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create filesystem store: %w", err)
	}

	logger.Info("Filesystem store initialized: path=%s", storeCfg.Path)
	return st, nil
}

// createS3Store creates a store backed by an S3 bucket.
func createS3Store(ctx context.Context, options map[string]any) (store.Store, error) {
	var storeCfg s3YAMLConfig
	if err := mapstructure.Decode(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode S3 store config: %w", err)
	}

	if storeCfg.Bucket == "" {
		return nil, fmt.Errorf("S3 store: bucket is required")
	}
	if storeCfg.Region == "" {
		return nil, fmt.Errorf("S3 store: region is required")
	}

	client, err := s3.NewClient(ctx, s3.ClientConfig{
		Region:          storeCfg.Region,
		Endpoint:        storeCfg.Endpoint,
		AccessKeyID:     storeCfg.AccessKeyID,
		SecretAccessKey: storeCfg.SecretAccessKey,
		MaxRetries:      storeCfg.MaxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	st, err := s3.NewS3Store(ctx, s3.S3StoreConfig{
		Client:    client,
		Bucket:    storeCfg.Bucket,
		KeyPrefix: storeCfg.KeyPrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 store: %w", err)
	}

	logger.Info("S3 store initialized: bucket=%s, region=%s, prefix=%s",
		storeCfg.Bucket, storeCfg.Region, storeCfg.KeyPrefix)

	return st, nil
}

// createBadgerStore creates a store backed by an embedded BadgerDB.
func createBadgerStore(ctx context.Context, options map[string]any) (store.Store, error) {
	var storeCfg badgerYAMLConfig
	if err := mapstructure.Decode(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode badger store config: %w", err)
	}

	if !storeCfg.InMemory && storeCfg.DBPath == "" {
		return nil, fmt.Errorf("badger store: db_path is required")
	}

	st, err := badger.NewBadgerStore(ctx, badger.BadgerStoreConfig{
		DBPath:           storeCfg.DBPath,
		InMemory:         storeCfg.InMemory,
		BlockCacheSizeMB: storeCfg.BlockCacheSizeMB,
		SyncWrites:       storeCfg.SyncWrites,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create badger store: %w", err)
	}

	logger.Info("Badger store initialized: path=%s, in_memory=%v", storeCfg.DBPath, storeCfg.InMemory)
	return st, nil
}
