package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// goCacheWrapper go-cache包装器，可选地把内容快照到文件
type goCacheWrapper struct {
	cache        *gocache.Cache
	snapshotPath string
	mu           sync.Mutex
}

// NewGoCache 创建基于go-cache的本地缓存；配置了快照文件时先尝试加载
func NewGoCache(config LocalConfig) Cache {
	defaultExpiration := config.DefaultExpiration
	if defaultExpiration <= 0 {
		defaultExpiration = gocache.NoExpiration
	}
	cleanupInterval := config.CleanupInterval
	if cleanupInterval <= 0 {
		cleanupInterval = 10 * time.Minute
	}

	gc := &goCacheWrapper{
		cache:        gocache.New(defaultExpiration, cleanupInterval),
		snapshotPath: config.SnapshotPath,
	}

	if gc.snapshotPath != "" {
		// 文件不存在属于首次启动，忽略
		_ = gc.cache.LoadFile(gc.snapshotPath)
	}
	return gc
}

func (gc *goCacheWrapper) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	value, found := gc.cache.Get(key)
	if !found {
		return false, nil
	}
	data, ok := value.([]byte)
	if !ok {
		return true, fmt.Errorf("unexpected cache value type %T for key %s", value, key)
	}
	return true, decode(data, dest)
}

func (gc *goCacheWrapper) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	if expiration <= 0 {
		expiration = gocache.DefaultExpiration
	}
	gc.cache.Set(key, data, expiration)
	return gc.persist()
}

func (gc *goCacheWrapper) Delete(ctx context.Context, key string) error {
	gc.cache.Delete(key)
	return gc.persist()
}

func (gc *goCacheWrapper) Exists(ctx context.Context, key string) bool {
	_, found := gc.cache.Get(key)
	return found
}

func (gc *goCacheWrapper) Clear(ctx context.Context) error {
	gc.cache.Flush()
	return gc.persist()
}

func (gc *goCacheWrapper) Close() error {
	return gc.persist()
}

// persist 写临时文件再 rename，避免进程中断留下半个快照
func (gc *goCacheWrapper) persist() error {
	if gc.snapshotPath == "" {
		return nil
	}
	gc.mu.Lock()
	defer gc.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(gc.snapshotPath), 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot dir: %w", err)
	}
	tmp := gc.snapshotPath + ".tmp"
	if err := gc.cache.SaveFile(tmp); err != nil {
		return fmt.Errorf("failed to save cache snapshot: %w", err)
	}
	return os.Rename(tmp, gc.snapshotPath)
}
