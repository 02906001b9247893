package adapter

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-directchat/internal/infrastructure/cache/port"
)

func TestMemoryCacheSetGetDel(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(16, time.Hour)

	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, port.ErrMiss)

	require.NoError(t, c.Set(ctx, "k", "v", 0))
	v, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)

	n, err := c.Del(ctx, "k", "missing")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, port.ErrMiss)
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(16, time.Hour)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "k", "v", time.Minute))
	_, err := c.Get(ctx, "k")
	require.NoError(t, err)

	now = now.Add(time.Minute)
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, port.ErrMiss)
}

func TestMemoryCacheIsBounded(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(2, time.Hour)

	require.NoError(t, c.Set(ctx, "a", "1", 0))
	require.NoError(t, c.Set(ctx, "b", "2", 0))
	_, err := c.Get(ctx, "a") // a becomes most recently used
	require.NoError(t, err)
	require.NoError(t, c.Set(ctx, "c", "3", 0))

	assert.Equal(t, 2, c.Len())
	_, err = c.Get(ctx, "b")
	assert.ErrorIs(t, err, port.ErrMiss, "least recently used entry is evicted")
	v, err := c.Get(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, "3", v)
}

func TestMemoryCacheDropsExpiredEntriesWithoutReads(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(1000, 50*time.Millisecond)

	for i := 0; i < 100; i++ {
		require.NoError(t, c.Set(ctx, fmt.Sprintf("conversation:pair:%d", i), "id", time.Minute))
	}
	require.Equal(t, 100, c.Len())

	assert.Eventually(t, func() bool { return c.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestRedisCacheKeyPrefix(t *testing.T) {
	r := &RedisCache{prefix: "chat"}
	assert.Equal(t, "chat:conv", r.key("conv"))

	r = &RedisCache{}
	assert.Equal(t, "conv", r.key("conv"))
}

func TestNewRedisCacheRejectsEmptyURL(t *testing.T) {
	_, err := NewRedisCache(context.Background(), "", "chat")
	assert.Error(t, err)
}
