package cache

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// localCache 基于 LRU 的进程内缓存
type localCache struct {
	config LocalConfig
	items  *lru.Cache[string, cacheItem]
	mu     sync.Mutex
	done   chan struct{}
	once   sync.Once
}

// cacheItem 缓存项
type cacheItem struct {
	data       []byte
	expiration time.Time
}

func (it cacheItem) expired(now time.Time) bool {
	return !it.expiration.IsZero() && now.After(it.expiration)
}

// NewLocalCache 创建本地缓存
func NewLocalCache(config LocalConfig) Cache {
	if config.MaxSize <= 0 {
		config.MaxSize = 1000
	}
	items, _ := lru.New[string, cacheItem](config.MaxSize)
	lc := &localCache{
		config: config,
		items:  items,
		done:   make(chan struct{}),
	}

	if config.CleanupInterval > 0 {
		go lc.startCleanup()
	}
	return lc
}

func (lc *localCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	lc.mu.Lock()
	item, ok := lc.items.Get(key)
	if ok && item.expired(time.Now()) {
		lc.items.Remove(key)
		ok = false
	}
	lc.mu.Unlock()

	if !ok {
		return false, nil
	}
	return true, decode(item.data, dest)
}

func (lc *localCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	if expiration <= 0 {
		expiration = lc.config.DefaultExpiration
	}

	var exp time.Time
	if expiration > 0 {
		exp = time.Now().Add(expiration)
	}

	lc.mu.Lock()
	lc.items.Add(key, cacheItem{data: data, expiration: exp})
	lc.mu.Unlock()
	return nil
}

func (lc *localCache) Delete(ctx context.Context, key string) error {
	lc.mu.Lock()
	lc.items.Remove(key)
	lc.mu.Unlock()
	return nil
}

func (lc *localCache) Exists(ctx context.Context, key string) bool {
	ok, _ := lc.Get(ctx, key, nil)
	return ok
}

func (lc *localCache) Clear(ctx context.Context) error {
	lc.mu.Lock()
	lc.items.Purge()
	lc.mu.Unlock()
	return nil
}

func (lc *localCache) Close() error {
	lc.once.Do(func() { close(lc.done) })
	return nil
}

// startCleanup 定期清理过期项
func (lc *localCache) startCleanup() {
	ticker := time.NewTicker(lc.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-lc.done:
			return
		case <-ticker.C:
			lc.cleanup()
		}
	}
}

func (lc *localCache) cleanup() {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	now := time.Now()
	for _, key := range lc.items.Keys() {
		if item, ok := lc.items.Peek(key); ok && item.expired(now) {
			lc.items.Remove(key)
		}
	}
}
