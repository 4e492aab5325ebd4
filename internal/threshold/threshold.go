package threshold

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"lonelycare/internal/alert"
	"lonelycare/pkg/cache"
	"lonelycare/pkg/metrics"
)

const cacheKey = "thresholds:latest"

type Source string

const (
	SourceRemote  Source = "remote"
	SourceCache   Source = "cache"
	SourceDefault Source = "default"
)

// RemoteSource 未配置时返回 (nil, nil)
type RemoteSource interface {
	FetchThresholds(ctx context.Context) (*alert.Thresholds, error)
}

type Manager struct {
	remote   RemoteSource
	cache    cache.Cache
	defaults alert.Thresholds
	logger   *zap.Logger
	metrics  *metrics.Metrics

	mu       sync.Mutex
	resolved *alert.Thresholds
	source   Source
}

// defaults 不合法时使用内置默认值；remote 和 c 都可以为 nil
func NewManager(remote RemoteSource, c cache.Cache, defaults alert.Thresholds, logger *zap.Logger, m *metrics.Metrics) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := defaults.Validate(); err != nil {
		logger.Warn("Configured default thresholds rejected, using built-in values", zap.Error(err))
		defaults = alert.DefaultThresholds()
	}
	return &Manager{remote: remote, cache: c, defaults: defaults, logger: logger, metrics: m}
}

// Get 远程 → 缓存 → 默认值，结果在进程内缓存
func (m *Manager) Get(ctx context.Context) alert.Thresholds {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.resolved != nil {
		return *m.resolved
	}

	th, source := m.resolve(ctx)
	m.resolved = &th
	m.source = source
	m.metrics.RecordThresholdSource(string(source))
	m.logger.Info("Thresholds resolved",
		zap.String("source", string(source)),
		zap.Int("warning", th.Warning),
		zap.Int("danger", th.Danger),
		zap.Int("emergency", th.Emergency),
	)
	return th
}

func (m *Manager) Invalidate() {
	m.mu.Lock()
	m.resolved = nil
	m.source = ""
	m.mu.Unlock()
}

// 当前值的来源，首次 Get 之前为空
func (m *Manager) Source() Source {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.source
}

func (m *Manager) resolve(ctx context.Context) (alert.Thresholds, Source) {
	if th, ok := m.fromRemote(ctx); ok {
		if m.cache != nil {
			if err := m.cache.Set(ctx, cacheKey, th, 0); err != nil {
				m.logger.Warn("Failed to mirror thresholds to cache", zap.Error(err))
			}
		}
		return th, SourceRemote
	}
	if th, ok := m.fromCache(ctx); ok {
		return th, SourceCache
	}
	return m.defaults, SourceDefault
}

func (m *Manager) fromRemote(ctx context.Context) (alert.Thresholds, bool) {
	if m.remote == nil {
		return alert.Thresholds{}, false
	}
	th, err := m.remote.FetchThresholds(ctx)
	if err != nil {
		m.logger.Debug("Remote thresholds unavailable", zap.Error(err))
		return alert.Thresholds{}, false
	}
	if th == nil {
		return alert.Thresholds{}, false
	}
	if err := th.Validate(); err != nil {
		m.logger.Warn("Remote thresholds rejected", zap.Error(err))
		return alert.Thresholds{}, false
	}
	return *th, true
}

func (m *Manager) fromCache(ctx context.Context) (alert.Thresholds, bool) {
	if m.cache == nil {
		return alert.Thresholds{}, false
	}
	var th alert.Thresholds
	ok, err := m.cache.Get(ctx, cacheKey, &th)
	if err != nil {
		m.logger.Debug("Cached thresholds unreadable", zap.Error(err))
		return alert.Thresholds{}, false
	}
	if !ok {
		return alert.Thresholds{}, false
	}
	if err := th.Validate(); err != nil {
		m.logger.Warn("Cached thresholds rejected", zap.Error(err))
		return alert.Thresholds{}, false
	}
	return th, true
}
