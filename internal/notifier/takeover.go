package notifier

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"lonelycare/pkg/errors"
	"lonelycare/pkg/scheduler"
)

const DefaultTakeoverTimeout = 5 * time.Minute

const (
	TakeoverPending      = "pending"
	TakeoverAcknowledged = "acknowledged"
	TakeoverExpired      = "expired"
)

type Takeover struct {
	ID             string     `json:"id"`
	NotificationID string     `json:"notificationId"`
	OwnerID        string     `json:"ownerId"`
	ContactID      string     `json:"contactId"`
	Status         string     `json:"status"`
	OpenedAt       time.Time  `json:"openedAt"`
	ExpiresAt      time.Time  `json:"expiresAt"`
	AckedAt        *time.Time `json:"ackedAt,omitempty"`
}

// Takeovers 全屏告警的确认状态；超时以注入的时钟为准，OnExpire 对每个超时的接管只调用一次
type Takeovers struct {
	mu       sync.Mutex
	items    map[string]*Takeover
	sched    *scheduler.Scheduler
	timeout  time.Duration
	now      func() time.Time
	logger   *zap.Logger
	OnExpire func(Takeover)
}

func NewTakeovers(timeout time.Duration, now func() time.Time, logger *zap.Logger) *Takeovers {
	if timeout <= 0 {
		timeout = DefaultTakeoverTimeout
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Takeovers{
		items:   make(map[string]*Takeover),
		sched:   scheduler.New(),
		timeout: timeout,
		now:     now,
		logger:  logger,
	}
}

func (t *Takeovers) Open(n Notification) Takeover {
	now := t.now()
	tk := &Takeover{
		ID:             uuid.NewString(),
		NotificationID: n.ID,
		OwnerID:        n.OwnerID,
		ContactID:      n.ContactID,
		Status:         TakeoverPending,
		OpenedAt:       now,
		ExpiresAt:      now.Add(t.timeout),
	}
	t.mu.Lock()
	t.pruneLocked(now)
	t.items[tk.ID] = tk
	t.mu.Unlock()
	t.sched.OnceAfter(t.timeout, scheduler.FuncJob(func(context.Context) { t.ExpireDue() }))
	return *tk
}

// Cancel 撤销没有送达任何客户端的接管
func (t *Takeovers) Cancel(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.items, id)
}

func (t *Takeovers) Acknowledge(id string) (Takeover, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tk, ok := t.items[id]
	if !ok {
		return Takeover{}, errors.WithCodef(errors.CodeNotFound, "takeover %s not found", id)
	}
	now := t.now()
	if tk.Status == TakeoverPending && !now.Before(tk.ExpiresAt) {
		// 状态留给 ExpireDue 修改，保证 OnExpire 仍会被调用
		snapshot := *tk
		snapshot.Status = TakeoverExpired
		return snapshot, errors.WithCodef(errors.CodeNotFound, "takeover %s expired", id)
	}
	switch tk.Status {
	case TakeoverExpired:
		return *tk, errors.WithCodef(errors.CodeNotFound, "takeover %s expired", id)
	case TakeoverAcknowledged:
		return *tk, nil
	}
	tk.Status = TakeoverAcknowledged
	tk.AckedAt = &now
	t.logger.Info("Takeover acknowledged", zap.String("takeover_id", id), zap.String("contact_id", tk.ContactID))
	return *tk, nil
}

// Pending 未确认且未过期的接管，按打开时间排序
func (t *Takeovers) Pending(ownerID string) []Takeover {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	var out []Takeover
	for _, tk := range t.items {
		if tk.OwnerID == ownerID && tk.Status == TakeoverPending && now.Before(tk.ExpiresAt) {
			out = append(out, *tk)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OpenedAt.Before(out[j].OpenedAt) })
	return out
}

// Stop 停止超时检查，等待进行中的检查结束
func (t *Takeovers) Stop() { t.sched.Stop() }

// ExpireDue 把当前时钟下已到期的待确认接管标记为过期，返回本次过期的条目
func (t *Takeovers) ExpireDue() []Takeover {
	t.mu.Lock()
	now := t.now()
	var expired []Takeover
	for _, tk := range t.items {
		if tk.Status == TakeoverPending && !now.Before(tk.ExpiresAt) {
			tk.Status = TakeoverExpired
			expired = append(expired, *tk)
		}
	}
	onExpire := t.OnExpire
	t.mu.Unlock()

	sort.Slice(expired, func(i, j int) bool { return expired[i].OpenedAt.Before(expired[j].OpenedAt) })
	for _, tk := range expired {
		t.logger.Warn("Takeover expired without acknowledgement",
			zap.String("takeover_id", tk.ID),
			zap.String("contact_id", tk.ContactID),
		)
		if onExpire != nil {
			onExpire(tk)
		}
	}
	return expired
}

// 清理早已结束的接管
func (t *Takeovers) pruneLocked(now time.Time) {
	for id, tk := range t.items {
		if tk.Status != TakeoverPending && now.Sub(tk.OpenedAt) > 4*t.timeout {
			delete(t.items, id)
		}
	}
}
