package attempts

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupLimiter(t *testing.T, maxAttempts int, window time.Duration) (*Limiter, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return New(client, maxAttempts, window), mr
}

func TestAllow_WithinLimit(t *testing.T) {
	limiter, mr := setupLimiter(t, 3, time.Hour)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := limiter.Allow(ctx, "u1")
		require.NoError(t, err)
		assert.True(t, ok, "attempt %d", i+1)
	}

	ok, err := limiter.Allow(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.True(t, mr.Exists("coupon:attempts:u1"))
	assert.Equal(t, time.Hour, mr.TTL("coupon:attempts:u1"))
}

func TestAllow_PerUser(t *testing.T) {
	limiter, _ := setupLimiter(t, 1, time.Hour)
	ctx := context.Background()

	ok, err := limiter.Allow(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = limiter.Allow(ctx, "u2")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = limiter.Allow(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAllow_WindowExpires(t *testing.T) {
	limiter, mr := setupLimiter(t, 1, time.Minute)
	ctx := context.Background()

	ok, err := limiter.Allow(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = limiter.Allow(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)

	mr.FastForward(2 * time.Minute)

	ok, err = limiter.Allow(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAllow_Disabled(t *testing.T) {
	limiter, mr := setupLimiter(t, 0, time.Minute)

	for i := 0; i < 5; i++ {
		ok, err := limiter.Allow(context.Background(), "u1")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	assert.False(t, mr.Exists("coupon:attempts:u1"))
}

func TestAllow_RedisUnavailable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	limiter := New(client, 1, time.Hour)
	mr.Close()

	_, err = limiter.Allow(context.Background(), "u1")
	assert.Error(t, err)
}
