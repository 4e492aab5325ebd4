package cache

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// NewCache 创建缓存实例
func NewCache(config Config) (Cache, error) {
	switch strings.ToLower(config.Type) {
	case "local":
		return NewLocalCache(config.Local), nil
	case "", "gocache":
		return NewGoCache(config.Local), nil
	case "redis":
		if config.Layered {
			return NewLayeredCache(config)
		}
		return NewRedisCache(config.Redis)
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", config.Type)
	}
}

// NewLayeredCache 创建分层缓存（本地缓存 + redis）
func NewLayeredCache(config Config) (Cache, error) {
	distributed, err := NewRedisCache(config.Redis)
	if err != nil {
		return nil, fmt.Errorf("failed to create redis cache: %w", err)
	}
	return newLayered(NewLocalCache(config.Local), distributed, config.Local.DefaultExpiration), nil
}

func newLayered(local, distributed Cache, localExpiration time.Duration) Cache {
	if localExpiration <= 0 {
		localExpiration = time.Minute
	}
	return &layeredCache{local: local, distributed: distributed, localExpiration: localExpiration}
}

// layeredCache 分层缓存实现；本地层只是读加速，redis 为准
type layeredCache struct {
	local           Cache
	distributed     Cache
	localExpiration time.Duration
}

// Get 先查本地，未命中再查 redis 并回填本地
func (lc *layeredCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if ok, err := lc.local.Get(ctx, key, dest); ok && err == nil {
		return true, nil
	}

	var raw interface{}
	ok, err := lc.distributed.Get(ctx, key, &raw)
	if err != nil || !ok {
		return false, err
	}
	_ = lc.local.Set(ctx, key, raw, lc.localExpiration)
	return lc.local.Get(ctx, key, dest)
}

// Set 先写 redis 再写本地
func (lc *layeredCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if err := lc.distributed.Set(ctx, key, value, expiration); err != nil {
		return err
	}
	localExp := lc.localExpiration
	if expiration > 0 && expiration < localExp {
		localExp = expiration
	}
	return lc.local.Set(ctx, key, value, localExp)
}

func (lc *layeredCache) Delete(ctx context.Context, key string) error {
	if err := lc.local.Delete(ctx, key); err != nil {
		return err
	}
	return lc.distributed.Delete(ctx, key)
}

func (lc *layeredCache) Exists(ctx context.Context, key string) bool {
	return lc.local.Exists(ctx, key) || lc.distributed.Exists(ctx, key)
}

func (lc *layeredCache) Clear(ctx context.Context) error {
	if err := lc.local.Clear(ctx); err != nil {
		return err
	}
	return lc.distributed.Clear(ctx)
}

func (lc *layeredCache) Close() error {
	if err := lc.local.Close(); err != nil {
		return err
	}
	return lc.distributed.Close()
}
