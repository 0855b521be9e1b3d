package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/marmos91/filecmd/pkg/adapter/filecmd"
	"github.com/spf13/viper"
)

// Config represents the complete filecmd server configuration.
//
// This structure captures all configurable aspects of the server including:
//   - Logging configuration
//   - Server-wide settings (shutdown, metrics endpoint)
//   - Store selection and configuration (store-specific)
//   - The filecmd protocol adapter (listener and worker pool)
//
// Configuration sources (in order of precedence):
//  1. Environment variables (FILECMD_*)
//  2. Configuration file (YAML or TOML)
//  3. Default values (lowest priority)
//
// Store Configuration Pattern:
// Each store implementation defines its own configuration type and factory function.
// The Config struct contains type-specific sections (e.g., store.filesystem, store.s3)
// and only the section matching the selected type is used.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging"`

	// Server contains server-wide settings
	Server ServerConfig `mapstructure:"server"`

	// Store specifies the storage backend and its type-specific configuration
	Store StoreConfig `mapstructure:"store"`

	// Adapter contains the filecmd protocol listener configuration.
	// Uses the filecmd.FileCmdConfig type directly to avoid duplication.
	Adapter filecmd.FileCmdConfig `mapstructure:"adapter"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required"`

	// Rotation applies when Output is a file path
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig controls log file rotation.
type RotationConfig struct {
	// MaxSizeMB is the size at which the log file is rotated
	MaxSizeMB int `mapstructure:"max_size_mb" validate:"gte=0"`

	// MaxBackups is the number of rotated files to keep (0 keeps all)
	MaxBackups int `mapstructure:"max_backups" validate:"gte=0"`

	// MaxAgeDays is the number of days to keep rotated files (0 keeps all)
	MaxAgeDays int `mapstructure:"max_age_days" validate:"gte=0"`

	// Compress gzips rotated files
	Compress bool `mapstructure:"compress"`
}

// ServerConfig contains server-wide settings.
type ServerConfig struct {
	// ShutdownTimeout is the maximum time to wait for adapters to stop
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0"`

	// Metrics configures the Prometheus endpoint
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// MetricsConfig configures the operator HTTP endpoint (/metrics, /healthz, /status).
type MetricsConfig struct {
	// Enabled turns on metrics collection and the HTTP endpoint
	Enabled bool `mapstructure:"enabled"`

	// BindAddress is the interface the endpoint listens on (empty means all)
	BindAddress string `mapstructure:"bind_address"`

	// Port is the HTTP port of the endpoint
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
}

// StoreConfig specifies the storage backend.
//
// The Type field determines which store implementation is used.
// Only the corresponding type-specific configuration section is used.
type StoreConfig struct {
	// Type specifies which store implementation to use
	// Valid values: filesystem, memory, s3, badger
	Type string `mapstructure:"type" validate:"required,oneof=filesystem memory s3 badger"`

	// Filesystem contains filesystem-specific configuration
	// Only used when Type = "filesystem"
	Filesystem map[string]any `mapstructure:"filesystem"`

	// Memory contains memory-specific configuration
	// Only used when Type = "memory"
	Memory map[string]any `mapstructure:"memory"`

	// S3 contains S3-specific configuration
	// Only used when Type = "s3"
	S3 map[string]any `mapstructure:"s3"`

	// Badger contains BadgerDB-specific configuration
	// Only used when Type = "badger"
	Badger map[string]any `mapstructure:"badger"`

	// Cache wraps the selected store with a process-local read cache
	Cache CacheConfig `mapstructure:"cache"`
}

// CacheConfig configures the read cache in front of the store.
type CacheConfig struct {
	// Enabled turns the read cache on
	Enabled bool `mapstructure:"enabled"`

	// MaxEntries bounds the number of cached files
	MaxEntries int `mapstructure:"max_entries" validate:"gte=0"`

	// TTL is how long a cached file stays valid
	TTL time.Duration `mapstructure:"ttl" validate:"gte=0"`

	// MaxEntryBytes skips caching for larger files
	MaxEntryBytes int `mapstructure:"max_entry_bytes" validate:"gte=0"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (FILECMD_*)
//  2. Configuration file
//  3. Default values
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// envKeys lists the scalar keys that can be overridden from the environment
// even when the config file does not mention them. viper's AutomaticEnv only
// consults the environment for keys it already knows about.
var envKeys = []string{
	"logging.level",
	"logging.format",
	"logging.output",
	"server.shutdown_timeout",
	"server.metrics.enabled",
	"server.metrics.port",
	"store.type",
	"store.cache.enabled",
	"adapter.bind_address",
	"adapter.port",
	"adapter.pool_size",
	"adapter.discipline",
	"adapter.backlog",
	"adapter.idle_timeout",
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use FILECMD_ prefix and underscores
	// Example: FILECMD_ADAPTER_POOL_SIZE=16
	v.SetEnvPrefix("FILECMD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default location: $XDG_CONFIG_HOME/filecmd/config.{yaml,toml}
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		// An explicit path that does not exist is reported as a plain
		// os error rather than ConfigFileNotFoundError.
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "filecmd")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "filecmd")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists checks if a config file exists at the default location.
func ConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for init command).
func GetConfigDir() string {
	return getConfigDir()
}
