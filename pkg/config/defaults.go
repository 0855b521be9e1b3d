package config

import (
	"strings"
	"time"

	"github.com/marmos91/filecmd/pkg/adapter/filecmd"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
//   - Store-specific defaults are handled by store implementations
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applyStoreDefaults(&cfg.Store)
	applyAdapterDefaults(&cfg.Adapter)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}

	if cfg.Rotation.MaxSizeMB == 0 {
		cfg.Rotation.MaxSizeMB = 100
	}
	if cfg.Rotation.MaxBackups == 0 {
		cfg.Rotation.MaxBackups = 5
	}
	if cfg.Rotation.MaxAgeDays == 0 {
		cfg.Rotation.MaxAgeDays = 28
	}
}

// applyServerDefaults sets server defaults.
func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = 9090
	}
}

// applyStoreDefaults sets store defaults.
func applyStoreDefaults(cfg *StoreConfig) {
	if cfg.Type == "" {
		cfg.Type = "filesystem"
	}

	// Initialize maps if nil
	if cfg.Filesystem == nil {
		cfg.Filesystem = make(map[string]any)
	}
	if cfg.Memory == nil {
		cfg.Memory = make(map[string]any)
	}
	if cfg.S3 == nil {
		cfg.S3 = make(map[string]any)
	}
	if cfg.Badger == nil {
		cfg.Badger = make(map[string]any)
	}

	// Apply defaults for all store types (for config file generation)
	if _, ok := cfg.Filesystem["path"]; !ok {
		cfg.Filesystem["path"] = "/tmp/filecmd-files"
	}
	if _, ok := cfg.Badger["db_path"]; !ok {
		cfg.Badger["db_path"] = "/tmp/filecmd-badger"
	}

	applyCacheDefaults(&cfg.Cache)
}

// applyCacheDefaults sets read cache defaults. The cache stays disabled
// unless explicitly enabled.
func applyCacheDefaults(cfg *CacheConfig) {
	if cfg.MaxEntries == 0 {
		cfg.MaxEntries = 256
	}
	if cfg.TTL == 0 {
		cfg.TTL = 30 * time.Second
	}
	if cfg.MaxEntryBytes == 0 {
		cfg.MaxEntryBytes = 4 * 1024 * 1024
	}
}

// applyAdapterDefaults sets filecmd adapter defaults.
func applyAdapterDefaults(cfg *filecmd.FileCmdConfig) {
	if cfg.Port == 0 {
		cfg.Port = filecmd.DefaultPort
	}

	if cfg.PoolSize == 0 {
		cfg.PoolSize = 5
	}

	if cfg.Discipline == "" {
		cfg.Discipline = filecmd.DisciplineThread
	}

	// Backlog defaults to 0 (platform default)

	if cfg.MaxFrameSize == 0 {
		cfg.MaxFrameSize = 256 * 1024 * 1024
	}

	if cfg.ReadBufferSize == 0 {
		cfg.ReadBufferSize = 1024 * 1024
	}

	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 30 * time.Minute
	}

	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 5 * time.Minute
	}

	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}

	// RateLimit defaults to disabled

	if cfg.MetricsLogInterval == 0 {
		cfg.MetricsLogInterval = 5 * time.Minute
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
