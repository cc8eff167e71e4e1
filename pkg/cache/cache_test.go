package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(time.Minute)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	_, hit := c.GetCache(ctx, "k")
	assert.False(t, hit)

	require.NoError(t, c.SetCache(ctx, "k", []byte("v")))
	val, hit := c.GetCache(ctx, "k")
	assert.True(t, hit)
	assert.Equal(t, []byte("v"), val)

	// returned slices are copies
	val[0] = 'x'
	val, _ = c.GetCache(ctx, "k")
	assert.Equal(t, []byte("v"), val)

	now = now.Add(2 * time.Minute)
	_, hit = c.GetCache(ctx, "k")
	assert.False(t, hit, "entry should expire")
	assert.Equal(t, 0, c.Len())
}

func TestMemory_NoTTL(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(0)
	require.NoError(t, c.SetCache(ctx, "k", []byte("v")))
	c.now = func() time.Time { return time.Now().Add(24 * 365 * time.Hour) }
	_, hit := c.GetCache(ctx, "k")
	assert.True(t, hit)
}

func TestNop(t *testing.T) {
	var c Cacher = Nop{}
	require.NoError(t, c.SetCache(context.Background(), "k", []byte("v")))
	_, hit := c.GetCache(context.Background(), "k")
	assert.False(t, hit)
}

func TestRedis_UnreachableIsMiss(t *testing.T) {
	assert.Nil(t, OpenRedis("", "", 0))

	rc := OpenRedis("127.0.0.1:1", "", 0)
	require.NotNil(t, rc)
	c := NewRedis(rc, "test:", time.Minute)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, hit := c.GetCache(ctx, "k")
	assert.False(t, hit)
	assert.Error(t, c.SetCache(ctx, "k", []byte("v")))
}
