package config

import (
	"strings"
	"testing"
	"time"

	"github.com/marmos91/filecmd/pkg/adapter/filecmd"
)

func TestValidate_ValidConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	if err := Validate(cfg); err != nil {
		t.Errorf("Expected valid config to pass validation, got error: %v", err)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Level = "INVALID"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for invalid log level")
	}
	if !strings.Contains(err.Error(), "oneof") {
		t.Errorf("Expected 'oneof' validation error, got: %v", err)
	}
}

func TestValidate_LowercaseLogLevel(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Level = "warn"

	if err := Validate(cfg); err != nil {
		t.Errorf("Expected lowercase log level to be accepted, got: %v", err)
	}
}

func TestValidate_InvalidLogFormat(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Format = "xml"

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for invalid log format")
	}
}

func TestValidate_InvalidStoreType(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Store.Type = "invalid"

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for invalid store type")
	}
}

func TestValidate_ZeroShutdownTimeout(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Server.ShutdownTimeout = 0

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for zero shutdown timeout")
	}
}

func TestValidate_InvalidAdapterFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*filecmd.FileCmdConfig)
	}{
		{"port too large", func(c *filecmd.FileCmdConfig) { c.Port = 70000 }},
		{"zero port", func(c *filecmd.FileCmdConfig) { c.Port = 0 }},
		{"unknown discipline", func(c *filecmd.FileCmdConfig) { c.Discipline = "fiber" }},
		{"negative pool size", func(c *filecmd.FileCmdConfig) { c.PoolSize = -1 }},
		{"negative backlog", func(c *filecmd.FileCmdConfig) { c.Backlog = -5 }},
		{"negative idle timeout", func(c *filecmd.FileCmdConfig) { c.IdleTimeout = -time.Second }},
		{"negative rate", func(c *filecmd.FileCmdConfig) { c.RateLimit.RequestsPerSecond = -1 }},
		{"zero read buffer", func(c *filecmd.FileCmdConfig) { c.ReadBufferSize = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			tt.mutate(&cfg.Adapter)

			if err := Validate(cfg); err == nil {
				t.Errorf("Expected validation error for %s", tt.name)
			}
		})
	}
}

func TestValidate_ProcessDisciplineStoreRules(t *testing.T) {
	tests := []struct {
		storeType string
		wantErr   bool
	}{
		{"filesystem", false},
		{"s3", false},
		{"badger", true},
		{"memory", true},
	}

	for _, tt := range tests {
		t.Run(tt.storeType, func(t *testing.T) {
			cfg := GetDefaultConfig()
			cfg.Store.Type = tt.storeType
			cfg.Adapter.Discipline = filecmd.DisciplineProcess

			err := Validate(cfg)
			if tt.wantErr && err == nil {
				t.Errorf("Expected %s to be rejected with the process discipline", tt.storeType)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Expected %s to be accepted with the process discipline, got: %v", tt.storeType, err)
			}
		})
	}
}

func TestValidate_ThreadDisciplineAcceptsEveryStore(t *testing.T) {
	for _, storeType := range []string{"filesystem", "memory", "s3", "badger"} {
		cfg := GetDefaultConfig()
		cfg.Store.Type = storeType

		if err := Validate(cfg); err != nil {
			t.Errorf("Expected %s to be accepted with the thread discipline, got: %v", storeType, err)
		}
	}
}

func TestValidate_MetricsPortConflict(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Server.Metrics.Enabled = true
	cfg.Server.Metrics.Port = cfg.Adapter.Port

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for metrics port conflicting with the adapter")
	}
	if !strings.Contains(err.Error(), "metrics.port") {
		t.Errorf("Expected error to mention metrics.port, got: %v", err)
	}
}

func TestValidate_NegativeCacheValues(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Store.Cache.MaxEntries = -1

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for negative cache max_entries")
	}
}
