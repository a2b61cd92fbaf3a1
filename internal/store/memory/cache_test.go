package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	c := NewCache()
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "products:list:a", []byte("A"), time.Minute))
	require.NoError(t, c.Set(ctx, "products:list:b", []byte("B"), time.Minute))
	require.NoError(t, c.Set(ctx, "home", []byte("H"), time.Minute))

	v, ok, err := c.Get(ctx, "products:list:a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("A"), v)

	require.NoError(t, c.DeletePrefix(ctx, "products:"))
	_, ok, _ = c.Get(ctx, "products:list:b")
	assert.False(t, ok)
	_, ok, _ = c.Get(ctx, "home")
	assert.True(t, ok)

	now = now.Add(time.Minute)
	_, ok, _ = c.Get(ctx, "home")
	assert.False(t, ok, "entries expire at their ttl")
}

func TestThrottle(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	th := NewThrottle()
	th.now = func() time.Time { return now }

	ok, _ := th.Allow(ctx, "otp:register:a@b.c", time.Minute)
	assert.True(t, ok)
	ok, _ = th.Allow(ctx, "otp:register:a@b.c", time.Minute)
	assert.False(t, ok)
	ok, _ = th.Allow(ctx, "otp:reset:a@b.c", time.Minute)
	assert.True(t, ok)

	now = now.Add(time.Minute)
	ok, _ = th.Allow(ctx, "otp:register:a@b.c", time.Minute)
	assert.True(t, ok)
}
