package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginLimiter_AllowsUpToMax(t *testing.T) {
	mr, client := setupTestRedis(t)
	limiter := NewLoginLimiter(client, 3, 15*time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := limiter.Allow(ctx, "owner:10.0.0.1")
		require.NoError(t, err)
		assert.True(t, ok, "attempt %d should be allowed", i+1)
	}
	ok, err := limiter.Allow(ctx, "owner:10.0.0.1")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, 15*time.Minute, mr.TTL("login:owner:10.0.0.1"))
}

func TestLoginLimiter_WindowDoesNotSlide(t *testing.T) {
	mr, client := setupTestRedis(t)
	limiter := NewLoginLimiter(client, 1, time.Minute)
	ctx := context.Background()

	_, err := limiter.Allow(ctx, "k")
	require.NoError(t, err)
	mr.FastForward(30 * time.Second)
	_, err = limiter.Allow(ctx, "k")
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, mr.TTL("login:k"))

	mr.FastForward(31 * time.Second)
	ok, err := limiter.Allow(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok, "a new window should start after expiry")
}

func TestLoginLimiter_KeysAreIndependent(t *testing.T) {
	_, client := setupTestRedis(t)
	limiter := NewLoginLimiter(client, 1, time.Minute)
	ctx := context.Background()

	ok, _ := limiter.Allow(ctx, "a")
	assert.True(t, ok)
	ok, _ = limiter.Allow(ctx, "a")
	assert.False(t, ok)
	ok, _ = limiter.Allow(ctx, "b")
	assert.True(t, ok)
}

func TestLoginLimiter_Reset(t *testing.T) {
	_, client := setupTestRedis(t)
	limiter := NewLoginLimiter(client, 1, time.Minute)
	ctx := context.Background()

	_, _ = limiter.Allow(ctx, "k")
	ok, _ := limiter.Allow(ctx, "k")
	require.False(t, ok)

	require.NoError(t, limiter.Reset(ctx, "k"))
	ok, err := limiter.Allow(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
}
