//go:build integration

package redis_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uteshop/uteshop-api/internal/store/redis"
	"github.com/uteshop/uteshop-api/internal/testutil/containers"
)

func TestRedisAdapters(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	ctx := context.Background()

	t.Run("client connects from url", func(t *testing.T) {
		c, err := redis.New(ctx, redis.Config{URL: rc.URL, PoolSize: 4})
		require.NoError(t, err)
		t.Cleanup(func() { _ = c.Close() })
		assert.NoError(t, c.Health(ctx))

		none, err := redis.New(ctx, redis.Config{})
		require.NoError(t, err)
		assert.Nil(t, none)
	})

	t.Run("revoker", func(t *testing.T) {
		require.NoError(t, rc.FlushAll(ctx))
		r := redis.NewRevoker(rc.Client)

		revoked, err := r.IsRevoked(ctx, "jti-1")
		require.NoError(t, err)
		assert.False(t, revoked)

		require.NoError(t, r.Revoke(ctx, "jti-1", time.Minute))
		revoked, err = r.IsRevoked(ctx, "jti-1")
		require.NoError(t, err)
		assert.True(t, revoked)

		ttl, err := rc.Client.TTL(ctx, "uteshop:revoked:jti-1").Result()
		require.NoError(t, err)
		assert.Greater(t, ttl, 50*time.Second)
	})

	t.Run("cache delete prefix spans scan batches", func(t *testing.T) {
		require.NoError(t, rc.FlushAll(ctx))
		c := redis.NewCache(rc.Client)

		for i := range 450 {
			require.NoError(t, c.Set(ctx, fmt.Sprintf("products:list:%d", i), []byte("x"), time.Minute))
		}
		require.NoError(t, c.Set(ctx, "brands:list", []byte("b"), time.Minute))

		v, ok, err := c.Get(ctx, "products:list:7")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, []byte("x"), v)

		require.NoError(t, c.DeletePrefix(ctx, "products:"))
		_, ok, err = c.Get(ctx, "products:list:449")
		require.NoError(t, err)
		assert.False(t, ok)
		_, ok, _ = c.Get(ctx, "brands:list")
		assert.True(t, ok)
	})

	t.Run("throttle", func(t *testing.T) {
		require.NoError(t, rc.FlushAll(ctx))
		th := redis.NewThrottle(rc.Client)

		ok, err := th.Allow(ctx, "otp:register:a@b.c", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = th.Allow(ctx, "otp:register:a@b.c", time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}
