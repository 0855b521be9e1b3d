// Package ratelimiter throttles the request frames of a single connection.
package ratelimiter

import (
	"context"
	"math"

	"golang.org/x/time/rate"
)

// Config describes a token bucket.
//
// A zero RequestsPerSecond disables limiting.
type Config struct {
	// RequestsPerSecond is the sustained number of frames allowed per second.
	RequestsPerSecond float64 `mapstructure:"requests_per_second" validate:"min=0"`

	// Burst is the bucket capacity. Defaults to max(1, ceil(RequestsPerSecond)).
	Burst int `mapstructure:"burst" validate:"min=0"`
}

// Enabled reports whether the config describes an active limit.
func (c Config) Enabled() bool {
	return c.RequestsPerSecond > 0
}

// RateLimiter delays request frames that exceed a token bucket.
//
// A session owns one RateLimiter, so the bucket applies per connection.
// Frames are never rejected: Wait blocks until a token is available, keeping
// the response order intact.
//
// A nil *RateLimiter is valid and never limits, so callers do not need to
// branch on whether limiting is configured.
//
// Thread safety:
// All methods are safe for concurrent use.
type RateLimiter struct {
	limiter *rate.Limiter
}

// New creates a limiter from cfg, or returns nil when cfg is disabled.
//
// Example:
//
//	// 50 frames/s sustained, bursts of 100
//	limiter := New(Config{RequestsPerSecond: 50, Burst: 100})
func New(cfg Config) *RateLimiter {
	if !cfg.Enabled() {
		return nil
	}

	burst := cfg.Burst
	if burst <= 0 {
		burst = int(cfg.RequestsPerSecond)
		if float64(burst) < cfg.RequestsPerSecond {
			burst++
		}
		burst = max(burst, 1)
	}

	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst),
	}
}

// Allow consumes a token if one is available and reports whether it did.
func (r *RateLimiter) Allow() bool {
	if r == nil {
		return true
	}
	return r.limiter.Allow()
}

// Wait blocks until a token is available or ctx is done.
//
// Returns:
//   - nil if a token was acquired (or the limiter is nil)
//   - context error if ctx ended first
func (r *RateLimiter) Wait(ctx context.Context) error {
	if r == nil {
		return ctx.Err()
	}
	return r.limiter.Wait(ctx)
}

// Tokens returns the number of tokens currently in the bucket.
//
// Primarily useful for tests and debugging. A nil limiter reports +Inf.
func (r *RateLimiter) Tokens() float64 {
	if r == nil {
		return math.Inf(1)
	}
	return r.limiter.Tokens()
}
