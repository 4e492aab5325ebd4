package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestLocalCache(t *testing.T) {
	config := LocalConfig{
		MaxSize:         2,
		CleanupInterval: 10 * time.Minute,
	}

	cache := NewLocalCache(config)
	defer cache.Close()

	ctx := context.Background()

	t.Run("Set and Get", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, "a", sample{Name: "x", Count: 1}, time.Minute))

		var got sample
		ok, err := cache.Get(ctx, "a", &got)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, sample{Name: "x", Count: 1}, got)
	})

	t.Run("Expired entries are misses", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, "short", 1, time.Millisecond))
		time.Sleep(5 * time.Millisecond)

		ok, err := cache.Get(ctx, "short", nil)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("LRU eviction", func(t *testing.T) {
		require.NoError(t, cache.Clear(ctx))
		require.NoError(t, cache.Set(ctx, "k1", 1, 0))
		require.NoError(t, cache.Set(ctx, "k2", 2, 0))
		require.NoError(t, cache.Set(ctx, "k3", 3, 0))

		assert.False(t, cache.Exists(ctx, "k1"))
		assert.True(t, cache.Exists(ctx, "k3"))
	})
}

func TestGoCache_SnapshotSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache", "snapshot.gob")

	first := NewGoCache(LocalConfig{SnapshotPath: path})
	require.NoError(t, first.Set(ctx, "thresholds:latest", map[string]int{"warning": 60}, 0))
	require.NoError(t, first.Close())

	second := NewGoCache(LocalConfig{SnapshotPath: path})
	defer second.Close()

	var got map[string]int
	ok, err := second.Get(ctx, "thresholds:latest", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 60, got["warning"])

	require.NoError(t, second.Delete(ctx, "thresholds:latest"))
	assert.False(t, second.Exists(ctx, "thresholds:latest"))
}

func TestRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	c, err := NewRedisCache(RedisConfig{Addr: mr.Addr(), KeyPrefix: "test:"})
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Set(ctx, "k", sample{Name: "redis", Count: 3}, time.Minute))
	assert.True(t, mr.Exists("test:k"))

	var got sample
	ok, err := c.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "redis", got.Name)

	ok, err = c.Get(ctx, "missing", &got)
	require.NoError(t, err)
	assert.False(t, ok)

	// Clear 只清理带前缀的键
	require.NoError(t, mr.Set("other", "keep"))
	require.NoError(t, c.Clear(ctx))
	assert.False(t, mr.Exists("test:k"))
	assert.True(t, mr.Exists("other"))
}

func TestLayeredCache_BackfillsLocal(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	c, err := NewCache(Config{
		Type:    "redis",
		Layered: true,
		Redis:   RedisConfig{Addr: mr.Addr(), KeyPrefix: "l:"},
		Local:   LocalConfig{MaxSize: 10, DefaultExpiration: time.Minute},
	})
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, mr.Set("l:remote", `{"name":"from-redis","count":7}`))

	var got sample
	ok, err := c.Get(ctx, "remote", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 7, got.Count)

	// redis 删掉后本地层仍然命中
	mr.Del("l:remote")
	ok, err = c.Get(ctx, "remote", &got)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNewCache_UnsupportedType(t *testing.T) {
	_, err := NewCache(Config{Type: "memcached"})
	assert.Error(t, err)
}
