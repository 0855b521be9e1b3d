package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// configHeader is written at the top of every generated config file.
const configHeader = `# filecmd Configuration File
#
# Every value can be overridden with an environment variable using the
# FILECMD_ prefix and underscores as separators, for example:
#   FILECMD_ADAPTER_POOL_SIZE=16
#   FILECMD_STORE_TYPE=s3
#
`

// InitConfig writes a default configuration file to the default location.
//
// Parameters:
//   - force: Overwrite an existing file
//
// Returns:
//   - string: Path of the written file
//   - error: If the file exists and force is false, or on write failure
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes a default configuration file to path, creating
// parent directories as needed.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	content, err := generateYAMLWithComments(GetDefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to generate config: %w", err)
	}

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// yamlSection is one top-level key of the generated file.
type yamlSection struct {
	key     string
	comment string
	value   any
}

// generateYAMLWithComments renders cfg as YAML with a comment above each
// top-level section. Durations are written in their string form ("30s") so
// the file stays readable; viper decodes them back into time.Duration.
func generateYAMLWithComments(cfg *Config) (string, error) {
	sections := []yamlSection{
		{
			key:     "logging",
			comment: "# Logging\n#   level: DEBUG, INFO, WARN, ERROR\n#   format: text, json\n#   output: stdout, stderr, or a file path (rotated)",
			value: map[string]any{
				"level":  cfg.Logging.Level,
				"format": cfg.Logging.Format,
				"output": cfg.Logging.Output,
				"rotation": map[string]any{
					"max_size_mb":  cfg.Logging.Rotation.MaxSizeMB,
					"max_backups":  cfg.Logging.Rotation.MaxBackups,
					"max_age_days": cfg.Logging.Rotation.MaxAgeDays,
					"compress":     cfg.Logging.Rotation.Compress,
				},
			},
		},
		{
			key:     "server",
			comment: "# Server-wide settings and the Prometheus /metrics endpoint",
			value: map[string]any{
				"shutdown_timeout": cfg.Server.ShutdownTimeout.String(),
				"metrics": map[string]any{
					"enabled":      cfg.Server.Metrics.Enabled,
					"bind_address": cfg.Server.Metrics.BindAddress,
					"port":         cfg.Server.Metrics.Port,
				},
			},
		},
		{
			key:     "store",
			comment: "# Storage backend\n#   type: filesystem, memory, s3, badger\n#   Only the section matching type is used. badger and memory cannot be\n#   combined with the process discipline.",
			value: map[string]any{
				"type":       cfg.Store.Type,
				"filesystem": cfg.Store.Filesystem,
				"badger":     cfg.Store.Badger,
				"s3": map[string]any{
					"region":     "us-east-1",
					"bucket":     "",
					"key_prefix": "",
					"endpoint":   "",
				},
				"cache": map[string]any{
					"enabled":         cfg.Store.Cache.Enabled,
					"max_entries":     cfg.Store.Cache.MaxEntries,
					"ttl":             cfg.Store.Cache.TTL.String(),
					"max_entry_bytes": cfg.Store.Cache.MaxEntryBytes,
				},
			},
		},
		{
			key:     "adapter",
			comment: "# filecmd listener\n#   discipline: thread (goroutines) or process (worker processes, unix only)\n#   backlog: listen backlog hint, 0 for the platform default",
			value: map[string]any{
				"bind_address":     cfg.Adapter.BindAddress,
				"port":             cfg.Adapter.Port,
				"pool_size":        cfg.Adapter.PoolSize,
				"discipline":       cfg.Adapter.Discipline,
				"backlog":          cfg.Adapter.Backlog,
				"max_frame_size":   cfg.Adapter.MaxFrameSize,
				"read_buffer_size": cfg.Adapter.ReadBufferSize,
				"idle_timeout":     cfg.Adapter.IdleTimeout.String(),
				"write_timeout":    cfg.Adapter.WriteTimeout.String(),
				"shutdown_timeout": cfg.Adapter.ShutdownTimeout.String(),
				"rate_limit": map[string]any{
					"requests_per_second": cfg.Adapter.RateLimit.RequestsPerSecond,
					"burst":               cfg.Adapter.RateLimit.Burst,
				},
				"metrics_log_interval": cfg.Adapter.MetricsLogInterval.String(),
			},
		},
	}

	root := &yaml.Node{Kind: yaml.MappingNode}
	for _, s := range sections {
		var value yaml.Node
		if err := value.Encode(s.value); err != nil {
			return "", fmt.Errorf("encode %s: %w", s.key, err)
		}
		root.Content = append(root.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: s.key, HeadComment: s.comment},
			&value,
		)
	}

	var buf bytes.Buffer
	buf.WriteString(configHeader)

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(root); err != nil {
		return "", err
	}
	if err := enc.Close(); err != nil {
		return "", err
	}

	return buf.String(), nil
}
