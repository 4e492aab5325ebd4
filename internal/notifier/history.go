package notifier

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"lonelycare/internal/alert"
	"lonelycare/pkg/cache"
)

const (
	historyCacheKey = "notifications:history"
	DefaultHistory  = 100
)

type Entry struct {
	ID          string     `json:"id"`
	Kind        string     `json:"kind"`
	ContactID   string     `json:"contactId"`
	ContactName string     `json:"contactName"`
	Tier        alert.Tier `json:"tier"`
	Title       string     `json:"title"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// History 最近的通知记录，按时间顺序
type History struct {
	mu      sync.Mutex
	entries []Entry
	limit   int
	cache   cache.Cache
	logger  *zap.Logger
}

func NewHistory(limit int, c cache.Cache, logger *zap.Logger) *History {
	if limit <= 0 {
		limit = DefaultHistory
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &History{limit: limit, cache: c, logger: logger}
}

func (h *History) Load(ctx context.Context) error {
	if h.cache == nil {
		return nil
	}
	var entries []Entry
	ok, err := h.cache.Get(ctx, historyCacheKey, &entries)
	if err != nil || !ok {
		return err
	}
	h.mu.Lock()
	h.entries = trim(entries, h.limit)
	h.mu.Unlock()
	return nil
}

func (h *History) Append(ctx context.Context, e Entry) {
	h.mu.Lock()
	h.entries = trim(append(h.entries, e), h.limit)
	snapshot := h.copyLocked()
	h.mu.Unlock()

	if h.cache == nil {
		return
	}
	if err := h.cache.Set(ctx, historyCacheKey, snapshot, 0); err != nil {
		h.logger.Warn("Failed to mirror notification history", zap.Error(err))
	}
}

func (h *History) Entries() []Entry {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.copyLocked()
}

func (h *History) copyLocked() []Entry {
	out := make([]Entry, len(h.entries))
	copy(out, h.entries)
	return out
}

func trim(entries []Entry, limit int) []Entry {
	if len(entries) <= limit {
		return entries
	}
	return append([]Entry(nil), entries[len(entries)-limit:]...)
}
