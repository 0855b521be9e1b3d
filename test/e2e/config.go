package e2e

import (
	"fmt"
	"path/filepath"
	"strings"
)

// StoreType represents the backing store of a test server
type StoreType string

const (
	StoreMemory     StoreType = "memory"
	StoreFilesystem StoreType = "filesystem"
	StoreBadger     StoreType = "badger"
	StoreS3         StoreType = "s3"
)

// Discipline represents the worker model of a test server
type Discipline string

const (
	DisciplineThread  Discipline = "thread"
	DisciplineProcess Discipline = "process"
)

// TestContextProvider is an interface for providing test context dependencies
type TestContextProvider interface {
	CreateTempDir(prefix string) string
	GetConfig() *TestConfig
	GetPort() int
}

// TestConfig holds the configuration for a test run
type TestConfig struct {
	Name       string
	Store      StoreType
	Discipline Discipline
	PoolSize   int

	// Cache wraps the store in the read cache.
	Cache bool

	// S3-specific fields (set by localstack setup)
	s3Endpoint string
	s3Bucket   string
}

// String returns a string representation of the configuration
func (tc *TestConfig) String() string {
	s := fmt.Sprintf("%s/%s", tc.Store, tc.Discipline)
	if tc.Cache {
		s += "/cached"
	}
	return s
}

// storeDir returns the directory a store keeps its data in. Stores without
// on-disk data return "".
func storeDir(tc TestContextProvider) string {
	switch tc.GetConfig().Store {
	case StoreFilesystem, StoreBadger:
		return tc.CreateTempDir("filecmd-e2e-store-*")
	default:
		return ""
	}
}

// YAML renders the configuration as a filecmd config file. dataDir is the
// store directory returned by storeDir.
func (tc *TestConfig) YAML(port int, dataDir string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "logging:\n  level: ERROR\n")

	fmt.Fprintf(&b, "store:\n  type: %s\n", tc.Store)
	switch tc.Store {
	case StoreFilesystem:
		fmt.Fprintf(&b, "  filesystem:\n    path: %q\n", dataDir)
	case StoreBadger:
		fmt.Fprintf(&b, "  badger:\n    db_path: %q\n", filepath.Join(dataDir, "files.db"))
	case StoreS3:
		fmt.Fprintf(&b, "  s3:\n    endpoint: %q\n    region: us-east-1\n    bucket: %q\n", tc.s3Endpoint, tc.s3Bucket)
		fmt.Fprintf(&b, "    access_key_id: test\n    secret_access_key: test\n    key_prefix: %q\n", fmt.Sprintf("e2e-%d/", port))
	}
	fmt.Fprintf(&b, "  cache:\n    enabled: %t\n", tc.Cache)

	poolSize := tc.PoolSize
	if poolSize == 0 {
		poolSize = 4
	}
	fmt.Fprintf(&b, "adapter:\n  bind_address: 127.0.0.1\n  port: %d\n  pool_size: %d\n  discipline: %s\n", port, poolSize, tc.Discipline)
	fmt.Fprintf(&b, "  shutdown_timeout: 5s\n  metrics_log_interval: 0s\n")

	return b.String()
}

// AllConfigurations returns all test configurations to run
func AllConfigurations() []*TestConfig {
	return []*TestConfig{
		{
			Name:       "memory-thread",
			Store:      StoreMemory,
			Discipline: DisciplineThread,
		},
		{
			Name:       "filesystem-thread",
			Store:      StoreFilesystem,
			Discipline: DisciplineThread,
		},
		{
			Name:       "filesystem-cached-thread",
			Store:      StoreFilesystem,
			Discipline: DisciplineThread,
			Cache:      true,
		},
		{
			Name:       "badger-thread",
			Store:      StoreBadger,
			Discipline: DisciplineThread,
		},
		{
			Name:       "filesystem-process",
			Store:      StoreFilesystem,
			Discipline: DisciplineProcess,
		},
	}
}

// S3Configurations returns configurations that use S3 (requires localstack)
func S3Configurations() []*TestConfig {
	return []*TestConfig{
		{
			Name:       "s3-thread",
			Store:      StoreS3,
			Discipline: DisciplineThread,
		},
		{
			Name:       "s3-process",
			Store:      StoreS3,
			Discipline: DisciplineProcess,
		},
	}
}

// PersistentConfigurations returns configurations whose files survive a
// server restart
func PersistentConfigurations() []*TestConfig {
	var out []*TestConfig
	for _, c := range AllConfigurations() {
		if c.Store != StoreMemory {
			out = append(out, c)
		}
	}
	return out
}

