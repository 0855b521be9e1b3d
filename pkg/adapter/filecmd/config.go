package filecmd

import (
	"fmt"
	"time"

	"github.com/marmos91/filecmd/internal/ratelimiter"
)

// Worker disciplines.
const (
	// DisciplineThread serves connections on a fixed set of goroutines that
	// share one Dispatcher and Store.
	DisciplineThread = "thread"

	// DisciplineProcess serves connections in a fixed set of child processes,
	// each with its own Dispatcher and Store.
	DisciplineProcess = "process"
)

// DefaultPort is the port the server listens on when none is configured.
const DefaultPort = 6667

// FileCmdConfig holds configuration parameters for the file command server.
//
// Default values (applied by New if zero):
//   - PoolSize: 5
//   - Discipline: thread
//   - MaxFrameSize: 256 MiB
//   - ReadBufferSize: 1 MiB
//   - IdleTimeout: 30m
//   - WriteTimeout: 5m
//   - ShutdownTimeout: 30s
//
// Port 0 asks the kernel for an ephemeral port; the configured default of
// 6667 is filled in by pkg/config, not here.
type FileCmdConfig struct {
	// BindAddress is the interface to listen on. Empty means all interfaces.
	BindAddress string `mapstructure:"bind_address"`

	// Port is the TCP port to listen on.
	Port int `mapstructure:"port" validate:"min=0,max=65535"`

	// PoolSize is the number of workers (goroutines or processes).
	// Connections beyond PoolSize wait in a FIFO queue.
	PoolSize int `mapstructure:"pool_size" validate:"min=0"`

	// Discipline selects the worker model: "thread" or "process".
	// The process discipline is only available on unix platforms.
	Discipline string `mapstructure:"discipline" validate:"omitempty,oneof=thread process"`

	// Backlog is the listen(2) backlog hint. 0 uses the platform default.
	Backlog int `mapstructure:"backlog" validate:"min=0"`

	// MaxFrameSize bounds the bytes a client may send without a frame
	// delimiter. Exceeding it closes the connection with "Request too large".
	MaxFrameSize int `mapstructure:"max_frame_size" validate:"min=0"`

	// ReadBufferSize is the maximum number of bytes taken from the socket per read.
	ReadBufferSize int `mapstructure:"read_buffer_size" validate:"min=0"`

	// IdleTimeout closes a connection that sends nothing for this long.
	// It is a read deadline renewed before every read.
	IdleTimeout time.Duration `mapstructure:"idle_timeout" validate:"min=0"`

	// WriteTimeout bounds the time spent writing one response.
	WriteTimeout time.Duration `mapstructure:"write_timeout" validate:"min=0"`

	// ShutdownTimeout is how long shutdown waits for sessions before
	// force-closing connections (thread) or killing workers (process).
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=0"`

	// RateLimit optionally throttles requests per connection.
	// Disabled when requests_per_second is 0.
	RateLimit ratelimiter.Config `mapstructure:"rate_limit"`

	// MetricsLogInterval is the interval at which to log pool state.
	// 0 disables periodic metrics logging.
	MetricsLogInterval time.Duration `mapstructure:"metrics_log_interval" validate:"min=0"`
}

// applyDefaults fills in zero values with sensible defaults.
func (c *FileCmdConfig) applyDefaults() {
	if c.PoolSize <= 0 {
		c.PoolSize = 5
	}
	if c.Discipline == "" {
		c.Discipline = DisciplineThread
	}
	if c.MaxFrameSize == 0 {
		c.MaxFrameSize = 256 << 20
	}
	if c.ReadBufferSize == 0 {
		c.ReadBufferSize = 1 << 20
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 30 * time.Minute
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 5 * time.Minute
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
}

// validate checks that the configuration can be served.
func (c *FileCmdConfig) validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be 0-65535", c.Port)
	}
	if c.PoolSize <= 0 {
		return fmt.Errorf("invalid PoolSize %d: must be > 0", c.PoolSize)
	}
	if c.Discipline != DisciplineThread && c.Discipline != DisciplineProcess {
		return fmt.Errorf("invalid Discipline %q: must be %q or %q", c.Discipline, DisciplineThread, DisciplineProcess)
	}
	if c.Backlog < 0 {
		return fmt.Errorf("invalid Backlog %d: must be >= 0", c.Backlog)
	}
	if c.MaxFrameSize < 0 {
		return fmt.Errorf("invalid MaxFrameSize %d: must be >= 0", c.MaxFrameSize)
	}
	if c.ReadBufferSize <= 0 {
		return fmt.Errorf("invalid ReadBufferSize %d: must be > 0", c.ReadBufferSize)
	}
	if c.IdleTimeout < 0 {
		return fmt.Errorf("invalid IdleTimeout %v: must be >= 0", c.IdleTimeout)
	}
	if c.WriteTimeout < 0 {
		return fmt.Errorf("invalid WriteTimeout %v: must be >= 0", c.WriteTimeout)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid ShutdownTimeout %v: must be > 0", c.ShutdownTimeout)
	}
	if c.RateLimit.RequestsPerSecond < 0 {
		return fmt.Errorf("invalid RateLimit.RequestsPerSecond %v: must be >= 0", c.RateLimit.RequestsPerSecond)
	}
	return nil
}

// Normalize applies defaults and validates the configuration.
//
// Worker processes call it before building sessions so that they agree with
// the parent on every limit.
func (c *FileCmdConfig) Normalize() error {
	c.applyDefaults()
	return c.validate()
}

// SessionConfig returns the per-connection settings derived from c.
func (c FileCmdConfig) SessionConfig() SessionConfig {
	return SessionConfig{
		ReadBufferSize: c.ReadBufferSize,
		MaxFrameSize:   c.MaxFrameSize,
		IdleTimeout:    c.IdleTimeout,
		WriteTimeout:   c.WriteTimeout,
		RateLimit:      c.RateLimit,
	}
}
