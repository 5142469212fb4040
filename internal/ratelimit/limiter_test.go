package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThrottleSpacesSameKey(t *testing.T) {
	l := New(50 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, l.Throttle(ctx, "gemini"))
	first := time.Since(start)
	require.NoError(t, l.Throttle(ctx, "gemini"))
	second := time.Since(start)

	assert.Less(t, first, 25*time.Millisecond, "first call should not wait")
	assert.GreaterOrEqual(t, second, 45*time.Millisecond)
}

func TestThrottleKeysAreIndependent(t *testing.T) {
	l := New(200 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, l.Throttle(ctx, "a"))
	require.NoError(t, l.Throttle(ctx, "b"))
	require.NoError(t, l.Throttle(ctx, ""))

	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestThrottleEmptyKeyUsesDefault(t *testing.T) {
	l := New(50 * time.Millisecond)
	ctx := context.Background()

	require.NoError(t, l.Throttle(ctx, ""))
	start := time.Now()
	require.NoError(t, l.Throttle(ctx, DefaultKey))
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestThrottleHonoursContext(t *testing.T) {
	l := New(time.Hour)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	require.NoError(t, l.Throttle(ctx, "k"))
	assert.Error(t, l.Throttle(ctx, "k"))
}

func TestDisabledLimiter(t *testing.T) {
	l := New(0)
	start := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, l.Throttle(context.Background(), "k"))
	}
	assert.Less(t, time.Since(start), 10*time.Millisecond)
}
