package cooldown

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"lonelycare/internal/alert"
	"lonelycare/pkg/cache"
)

const (
	cacheKey = "cooldown:records"

	DefaultDuration           = 2 * time.Hour
	DefaultDiagnosticDuration = time.Minute
)

type Config struct {
	Duration time.Duration
	// 诊断模式，必须显式开启
	Diagnostic         bool
	DiagnosticDuration time.Duration
	// 高级别冷却期间压制同一好友的低级别通知
	SuppressFlap bool
}

func (cfg Config) Window() time.Duration {
	if cfg.Diagnostic {
		if cfg.DiagnosticDuration > 0 {
			return cfg.DiagnosticDuration
		}
		return DefaultDiagnosticDuration
	}
	if cfg.Duration > 0 {
		return cfg.Duration
	}
	return DefaultDuration
}

// Record (好友, 级别) 最近一次成功发送
type Record struct {
	ContactID string     `json:"contactId"`
	Tier      alert.Tier `json:"tier"`
	SentAt    time.Time  `json:"sentAt"`
}

type key struct {
	contactID string
	tier      alert.Tier
}

type Cooldown struct {
	cfg    Config
	window time.Duration
	cache  cache.Cache
	now    func() time.Time
	logger *zap.Logger

	mu      sync.Mutex
	records map[key]time.Time
}

// c 为 nil 时冷却记录不跨进程保留
func New(cfg Config, c cache.Cache, now func() time.Time, logger *zap.Logger) *Cooldown {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cd := &Cooldown{
		cfg:     cfg,
		window:  cfg.Window(),
		cache:   c,
		now:     now,
		logger:  logger,
		records: make(map[key]time.Time),
	}
	mode := "production"
	if cfg.Diagnostic {
		mode = "diagnostic"
	}
	logger.Info("Notification cooldown configured",
		zap.String("mode", mode),
		zap.Duration("window", cd.window),
		zap.Bool("suppress_flap", cfg.SuppressFlap),
	)
	return cd
}

func (c *Cooldown) Window() time.Duration { return c.window }

// Load 恢复上一个进程写入缓存的记录
func (c *Cooldown) Load(ctx context.Context) error {
	if c.cache == nil {
		return nil
	}
	var recs []Record
	ok, err := c.cache.Get(ctx, cacheKey, &recs)
	if err != nil || !ok {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range recs {
		c.records[key{r.ContactID, r.Tier}] = r.SentAt
	}
	c.logger.Info("Cooldown records restored", zap.Int("count", len(recs)))
	return nil
}

// ShouldSend 只读，不修改状态
func (c *Cooldown) ShouldSend(contactID string, tier alert.Tier) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()

	if sent, ok := c.records[key{contactID, tier}]; ok && now.Sub(sent) < c.window {
		return false
	}
	if c.cfg.SuppressFlap {
		for higher := tier + 1; higher <= alert.Emergency; higher++ {
			if sent, ok := c.records[key{contactID, higher}]; ok && now.Sub(sent) < c.window {
				return false
			}
		}
	}
	return true
}

// MarkSent 只在送达之后调用
func (c *Cooldown) MarkSent(ctx context.Context, contactID string, tier alert.Tier) {
	c.mu.Lock()
	c.records[key{contactID, tier}] = c.now()
	c.mu.Unlock()
	c.persist(ctx)
}

func (c *Cooldown) Reset(ctx context.Context, contactID string, tier alert.Tier) {
	c.mu.Lock()
	delete(c.records, key{contactID, tier})
	c.mu.Unlock()
	c.persist(ctx)
}

func (c *Cooldown) ResetContact(ctx context.Context, contactID string) {
	c.mu.Lock()
	for k := range c.records {
		if k.contactID == contactID {
			delete(c.records, k)
		}
	}
	c.mu.Unlock()
	c.persist(ctx)
}

func (c *Cooldown) ResetAll(ctx context.Context) {
	c.mu.Lock()
	c.records = make(map[key]time.Time)
	c.mu.Unlock()
	c.persist(ctx)
}

func (c *Cooldown) Records() []Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Cooldown) snapshotLocked() []Record {
	out := make([]Record, 0, len(c.records))
	for k, sent := range c.records {
		out = append(out, Record{ContactID: k.contactID, Tier: k.tier, SentAt: sent})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ContactID != out[j].ContactID {
			return out[i].ContactID < out[j].ContactID
		}
		return out[i].Tier < out[j].Tier
	})
	return out
}

func (c *Cooldown) persist(ctx context.Context) {
	if c.cache == nil {
		return
	}
	c.mu.Lock()
	recs := c.snapshotLocked()
	c.mu.Unlock()
	if err := c.cache.Set(ctx, cacheKey, recs, 0); err != nil {
		c.logger.Warn("Failed to mirror cooldown records", zap.Error(err))
	}
}
