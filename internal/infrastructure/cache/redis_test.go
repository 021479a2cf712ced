package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xpose-triage/pkg/logger"
)

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewWithClient(client, "xpose:", logger.Nop()), mr
}

func TestTextCache(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	_, ok, err := c.GetText(ctx, "translate", "mera phone chori ho gaya")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.SetText(ctx, "translate", "mera phone chori ho gaya", "my phone was stolen", time.Hour))

	got, ok, err := c.GetText(ctx, "translate", "mera phone chori ho gaya")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "my phone was stolen", got)

	// keys are namespaced per operation
	_, ok, err = c.GetText(ctx, "readability", "mera phone chori ho gaya")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.True(t, mr.Exists("xpose:"+TextKey("translate", "mera phone chori ho gaya")))

	mr.FastForward(2 * time.Hour)
	_, ok, err = c.GetText(ctx, "translate", "mera phone chori ho gaya")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTextKey(t *testing.T) {
	assert.Equal(t, TextKey("translate", "abc"), TextKey("translate", "abc"))
	assert.NotEqual(t, TextKey("translate", "abc"), TextKey("translate", "abd"))
	assert.NotEqual(t, TextKey("a", "bc"), TextKey("ab", "c"))
}

func TestCheckRateLimit(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		allowed, remaining, _, err := c.CheckRateLimit(ctx, "10.0.0.1", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.Equal(t, 3-i, remaining)
	}

	allowed, remaining, reset, err := c.CheckRateLimit(ctx, "10.0.0.1", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Zero(t, remaining)
	assert.True(t, reset.After(time.Now()))

	allowed, _, _, err = c.CheckRateLimit(ctx, "10.0.0.2", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestLock(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	ok, err := c.AcquireLock(ctx, "R1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.AcquireLock(ctx, "R1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.ReleaseLock(ctx, "R1"))
	ok, err = c.AcquireLock(ctx, "R1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPing(t *testing.T) {
	c, mr := newTestCache(t)
	require.NoError(t, c.Ping(context.Background()))

	mr.Close()
	assert.Error(t, c.Ping(context.Background()))
}
