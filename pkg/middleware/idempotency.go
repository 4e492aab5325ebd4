package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	gocache "github.com/patrickmn/go-cache"
)

type IdemStore interface {
	Set(key string, ttl time.Duration) bool // return true if set, false if exists
}

// goCacheIdemStore 基于 go-cache 的 Add 语义：键已存在且未过期时失败
type goCacheIdemStore struct {
	c *gocache.Cache
}

func newGoCacheIdemStore() *goCacheIdemStore {
	return &goCacheIdemStore{c: gocache.New(10*time.Minute, time.Minute)}
}

func (s *goCacheIdemStore) Set(key string, ttl time.Duration) bool {
	return s.c.Add(key, struct{}{}, ttl) == nil
}

type IdempotencyConfig struct {
	HeaderName string        // Idempotency-Key 的请求头名
	TTL        time.Duration // 决定一段时间内重复请求的拒绝窗口
	Store      IdemStore     // 可选外部存储
}

// IdempotencyMiddleware 设备重试时带同一个 Idempotency-Key，重复请求返回 409；不带头的请求直接放行
func IdempotencyMiddleware(cfg IdempotencyConfig) gin.HandlerFunc {
	if cfg.HeaderName == "" {
		cfg.HeaderName = "Idempotency-Key"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}
	store := cfg.Store
	if store == nil {
		store = newGoCacheIdemStore()
	}
	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(cfg.HeaderName))
		if key == "" {
			c.Next()
			return
		}
		if !store.Set(c.FullPath()+":"+key, cfg.TTL) {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "duplicate request"})
			return
		}
		c.Next()
	}
}
