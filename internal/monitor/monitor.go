package monitor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"lonelycare/internal/alert"
	"lonelycare/internal/escalation"
	"lonelycare/internal/friend"
	"lonelycare/internal/models"
	"lonelycare/internal/notifier"
	"lonelycare/internal/threshold"
	"lonelycare/pkg/errors"
	"lonelycare/pkg/metrics"
	"lonelycare/pkg/scheduler"
)

var (
	ErrPassInProgress = errors.WithCode(errors.CodePassInProgress, "evaluation pass already in progress")
	ErrNoOwner        = errors.WithCode(errors.CodeUnavailable, "no owner configured")
	ErrNotConfigured  = errors.WithCode(errors.CodeUnavailable, "monitor dependencies missing")
)

type Resolver interface {
	Resolve(ctx context.Context, ownerID string) ([]friend.Contact, error)
}

type ThresholdProvider interface {
	Get(ctx context.Context) alert.Thresholds
	Source() threshold.Source
}

type Gate interface {
	ShouldSend(contactID string, tier alert.Tier) bool
	MarkSent(ctx context.Context, contactID string, tier alert.Tier)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, t notifier.Target, tier alert.Tier) *notifier.Result
}

type Escalator interface {
	Escalate(ctx context.Context, t notifier.Target) escalation.Record
}

type StatusRecorder interface {
	RecordStatuses(ctx context.Context, ownerID string, statuses []models.FriendStatus) error
}

type Config struct {
	OwnerID string
	// cron 表达式或 "@every 5m"
	Schedule string
}

type Deps struct {
	Resolver   Resolver
	Thresholds ThresholdProvider
	Classifier *alert.Manager
	Cooldown   Gate
	Notifier   Dispatcher
	Escalator  Escalator
	Recorder   StatusRecorder
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
}

// ContactResult 一轮评估中单个好友的结果
type ContactResult struct {
	ContactID    string             `json:"contactId"`
	DisplayName  string             `json:"displayName"`
	Tier         string             `json:"tier"`
	LastActivity *time.Time         `json:"lastActivity,omitempty"`
	Degraded     bool               `json:"degraded"`
	Suppressed   bool               `json:"suppressed"`
	Notified     bool               `json:"notified"`
	Dispatch     *notifier.Result   `json:"dispatch,omitempty"`
	Escalation   *escalation.Record `json:"escalation,omitempty"`
}

type PassSummary struct {
	OwnerID         string           `json:"ownerId"`
	StartedAt       time.Time        `json:"startedAt"`
	Duration        time.Duration    `json:"duration"`
	Thresholds      alert.Thresholds `json:"thresholds"`
	ThresholdSource threshold.Source `json:"thresholdSource"`
	ByTier          map[string]int   `json:"byTier"`
	Dispatched      int              `json:"dispatched"`
	Delivered       int              `json:"delivered"`
	Suppressed      int              `json:"suppressed"`
	Escalated       int              `json:"escalated"`
	Contacts        []ContactResult  `json:"contacts"`
}

const TierUnknown = "unknown"

type Monitor struct {
	cfg  Config
	deps Deps

	running atomic.Bool

	mu   sync.Mutex
	cron *scheduler.Cron
	last *PassSummary
}

func New(cfg Config, deps Deps) *Monitor {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Classifier == nil {
		deps.Classifier = alert.NewManager(nil)
	}
	return &Monitor{cfg: cfg, deps: deps}
}

func (m *Monitor) Running() bool { return m.running.Load() }

// 最近一轮完成的评估，没有时为 nil
func (m *Monitor) LastSummary() *PassSummary {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// RunOnce 评估所有好友一次；已有评估在运行时直接返回 ErrPassInProgress，不排队
func (m *Monitor) RunOnce(ctx context.Context) (*PassSummary, error) {
	if m.cfg.OwnerID == "" {
		m.deps.Logger.Warn("Evaluation pass skipped: no owner configured")
		return nil, ErrNoOwner
	}
	if m.deps.Resolver == nil || m.deps.Thresholds == nil || m.deps.Cooldown == nil || m.deps.Notifier == nil {
		m.deps.Logger.Warn("Evaluation pass skipped: store or dispatch not wired")
		return nil, ErrNotConfigured
	}
	if !m.running.CompareAndSwap(false, true) {
		m.deps.Logger.Debug("Evaluation pass skipped: previous pass still running")
		m.deps.Metrics.RecordPass("skipped", 0)
		return nil, ErrPassInProgress
	}
	defer m.running.Store(false)

	summary, err := m.run(ctx)
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.deps.Metrics.RecordPass(status, summary.Duration)

	m.mu.Lock()
	m.last = summary
	m.mu.Unlock()
	return summary, err
}

func (m *Monitor) run(ctx context.Context) (*PassSummary, error) {
	log := m.deps.Logger.With(zap.String("owner_id", m.cfg.OwnerID))
	start := time.Now()
	summary := &PassSummary{
		OwnerID:   m.cfg.OwnerID,
		StartedAt: m.deps.Classifier.Now(),
		ByTier:    make(map[string]int),
	}
	defer func() { summary.Duration = time.Since(start) }()

	contacts, err := m.deps.Resolver.Resolve(ctx, m.cfg.OwnerID)
	if err != nil {
		log.Error("Failed to resolve contacts, nothing evaluated", zap.Error(err))
		return summary, err
	}

	summary.Thresholds = m.deps.Thresholds.Get(ctx)
	summary.ThresholdSource = m.deps.Thresholds.Source()

	statuses := make([]models.FriendStatus, 0, len(contacts))
	for _, c := range contacts {
		res := m.evaluate(ctx, c, summary.Thresholds)
		summary.Contacts = append(summary.Contacts, res)
		summary.ByTier[res.Tier]++
		if res.Suppressed {
			summary.Suppressed++
		}
		if res.Dispatch != nil {
			summary.Dispatched++
			if res.Dispatch.Delivered {
				summary.Delivered++
			}
		}
		if res.Escalation != nil && res.Escalation.Status != escalation.StatusSuppressed {
			summary.Escalated++
		}
		statuses = append(statuses, models.FriendStatus{
			FriendID:     res.ContactID,
			DisplayName:  res.DisplayName,
			Tier:         res.Tier,
			LastActivity: res.LastActivity,
			Degraded:     res.Degraded,
			Notified:     res.Notified,
			EvaluatedAt:  summary.StartedAt,
		})
	}

	m.deps.Metrics.SetContactsByTier(summary.ByTier, append(alert.TierNames(), TierUnknown))

	if m.deps.Recorder != nil {
		if err := m.deps.Recorder.RecordStatuses(ctx, m.cfg.OwnerID, statuses); err != nil {
			log.Warn("Failed to record friend statuses", zap.Error(err))
		}
	}

	log.Info("Evaluation pass finished",
		zap.Int("contacts", len(contacts)),
		zap.Int("dispatched", summary.Dispatched),
		zap.Int("delivered", summary.Delivered),
		zap.Int("suppressed", summary.Suppressed),
		zap.Int("escalated", summary.Escalated),
		zap.String("threshold_source", string(summary.ThresholdSource)),
	)
	return summary, nil
}

func (m *Monitor) evaluate(ctx context.Context, c friend.Contact, th alert.Thresholds) ContactResult {
	res := ContactResult{
		ContactID:    c.ID,
		DisplayName:  c.DisplayName,
		LastActivity: c.LastActivity,
		Degraded:     c.Degraded,
	}
	// 数据不可信，下一轮重试
	if c.Degraded {
		res.Tier = TierUnknown
		return res
	}

	tier := m.deps.Classifier.Classify(c.LastActivity, th)
	res.Tier = tier.String()
	if tier == alert.Normal {
		return res
	}

	if !m.deps.Cooldown.ShouldSend(c.ID, tier) {
		res.Suppressed = true
		m.deps.Metrics.RecordCooldownSuppressed(tier.String())
		return res
	}

	target := notifier.Target{
		OwnerID:      m.cfg.OwnerID,
		ContactID:    c.ID,
		ContactName:  c.DisplayName,
		LastActivity: c.LastActivity,
	}
	res.Dispatch = m.deps.Notifier.Dispatch(ctx, target, tier)
	if res.Dispatch.Delivered {
		m.deps.Cooldown.MarkSent(ctx, c.ID, tier)
		res.Notified = true
	}

	if tier == alert.Emergency && m.deps.Escalator != nil {
		rec := m.deps.Escalator.Escalate(ctx, target)
		res.Escalation = &rec
	}
	return res
}

// Start 按计划评估，上一轮未结束时跳过本次
func (m *Monitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cron != nil {
		return nil
	}
	schedule := m.cfg.Schedule
	if schedule == "" {
		schedule = "@every 5m"
	}
	c := scheduler.NewCron(time.UTC, m.deps.Logger)
	_, err := c.AddWithCtx(schedule, func(ctx context.Context) {
		if _, err := m.RunOnce(ctx); err != nil && !errors.HasCode(err, errors.CodePassInProgress) {
			m.deps.Logger.Warn("Scheduled evaluation pass failed", zap.Error(err))
		}
	})
	if err != nil {
		return errors.WrapCode(err, errors.CodeInvalidConfig, "invalid evaluation schedule")
	}
	c.Start()
	m.cron = c
	m.deps.Logger.Info("Monitor started", zap.String("owner_id", m.cfg.OwnerID), zap.String("schedule", schedule))
	return nil
}

// Stop 停止调度并等待进行中的评估
func (m *Monitor) Stop() {
	m.mu.Lock()
	c := m.cron
	m.cron = nil
	m.mu.Unlock()
	if c == nil {
		return
	}
	c.Stop()
	m.deps.Logger.Info("Monitor stopped", zap.String("owner_id", m.cfg.OwnerID))
}
