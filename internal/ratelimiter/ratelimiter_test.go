package ratelimiter

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DisabledReturnsNil(t *testing.T) {
	assert.Nil(t, New(Config{}))
	assert.Nil(t, New(Config{RequestsPerSecond: -1, Burst: 10}))
}

func TestNilLimiterNeverLimits(t *testing.T) {
	var limiter *RateLimiter

	for range 1000 {
		require.True(t, limiter.Allow())
	}
	require.NoError(t, limiter.Wait(context.Background()))
	assert.True(t, math.IsInf(limiter.Tokens(), 1))
}

func TestNew_DefaultBurst(t *testing.T) {
	tests := []struct {
		name      string
		rps       float64
		wantBurst int
	}{
		{name: "integer rate", rps: 10, wantBurst: 10},
		{name: "fractional rate rounds up", rps: 2.5, wantBurst: 3},
		{name: "sub-one rate", rps: 0.2, wantBurst: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limiter := New(Config{RequestsPerSecond: tt.rps})
			require.NotNil(t, limiter)
			assert.Equal(t, tt.wantBurst, limiter.limiter.Burst())
		})
	}
}

// TestAllow verifies that Allow() enforces the bucket.
func TestAllow(t *testing.T) {
	limiter := New(Config{RequestsPerSecond: 10, Burst: 10})

	for i := range 10 {
		require.True(t, limiter.Allow(), "request %d should be allowed (within burst)", i)
	}
	assert.False(t, limiter.Allow(), "request should be limited after burst exhausted")

	// 100ms refills one token at 10 req/s
	time.Sleep(110 * time.Millisecond)
	assert.True(t, limiter.Allow(), "request should be allowed after replenishment")
}

// TestWait verifies that Wait() blocks until a token is available.
func TestWait(t *testing.T) {
	limiter := New(Config{RequestsPerSecond: 10, Burst: 1})
	ctx := context.Background()

	require.NoError(t, limiter.Wait(ctx))

	start := time.Now()
	require.NoError(t, limiter.Wait(ctx))
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
	assert.LessOrEqual(t, elapsed, 250*time.Millisecond)
}

// TestWaitContextCancellation verifies that Wait() respects cancellation.
func TestWaitContextCancellation(t *testing.T) {
	limiter := New(Config{RequestsPerSecond: 1, Burst: 1})
	require.True(t, limiter.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	assert.Error(t, limiter.Wait(ctx))
}
