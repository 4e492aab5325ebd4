package escalation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"lonelycare/internal/alert"
	"lonelycare/internal/models"
	"lonelycare/internal/notifier"
	"lonelycare/pkg/cache"
	"lonelycare/pkg/metrics"
	"lonelycare/pkg/notification"
)

type Status string

const (
	StatusReported   Status = "reported_to_authorities"
	StatusBackupSent Status = "backup_notification_sent"
	StatusFailed     Status = "failed"
	// 防重复报告拦截，不写审计日志
	StatusSuppressed Status = "suppressed"
)

const (
	Unknown = "unknown"

	DefaultAuditLimit = 30
	DefaultGuard      = 24 * time.Hour

	auditCacheKey = "emergency:audit"
	guardCacheKey = "emergency:last_escalated"
)

type Reporter interface {
	ReportEmergency(ctx context.Context, report notification.EmergencyReport) (*notification.EmergencyResult, error)
}

// 没有资料时返回 (nil, nil)
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
}

type UrgentNotifier interface {
	DispatchUrgent(ctx context.Context, t notifier.Target, reason string) *notifier.Result
}

// Record 审计日志条目，也是 Escalate 的返回值
type Record struct {
	ContactID string    `json:"contactId"`
	Status    Status    `json:"status"`
	ReportID  string    `json:"reportId,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type Config struct {
	// 报告方，即监护人
	ReporterID string
	Guard      time.Duration
	AuditLimit int
}

type Escalator struct {
	cfg      Config
	reporter Reporter
	profiles ProfileStore
	urgent   UrgentNotifier
	cache    cache.Cache
	now      func() time.Time
	logger   *zap.Logger
	metrics  *metrics.Metrics

	mu            sync.Mutex
	audit         []Record
	lastEscalated map[string]time.Time
}

type Options struct {
	Cache   cache.Cache
	Now     func() time.Time
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// reporter 为 nil 时全部走备用通知
func New(cfg Config, reporter Reporter, profiles ProfileStore, urgent UrgentNotifier, opts Options) *Escalator {
	if cfg.Guard <= 0 {
		cfg.Guard = DefaultGuard
	}
	if cfg.AuditLimit <= 0 {
		cfg.AuditLimit = DefaultAuditLimit
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Escalator{
		cfg:           cfg,
		reporter:      reporter,
		profiles:      profiles,
		urgent:        urgent,
		cache:         opts.Cache,
		now:           opts.Now,
		logger:        opts.Logger,
		metrics:       opts.Metrics,
		lastEscalated: make(map[string]time.Time),
	}
}

// Load 恢复审计日志和防重复报告时间
func (e *Escalator) Load(ctx context.Context) error {
	if e.cache == nil {
		return nil
	}
	var audit []Record
	if _, err := e.cache.Get(ctx, auditCacheKey, &audit); err != nil {
		return err
	}
	last := make(map[string]time.Time)
	if _, err := e.cache.Get(ctx, guardCacheKey, &last); err != nil {
		return err
	}
	e.mu.Lock()
	e.audit = capRecords(audit, e.cfg.AuditLimit)
	for id, ts := range last {
		e.lastEscalated[id] = ts
	}
	e.mu.Unlock()
	return nil
}

// Escalate 失败都体现在返回的 Record 里
func (e *Escalator) Escalate(ctx context.Context, t notifier.Target) Record {
	now := e.now()
	if e.guarded(t.ContactID, now) {
		e.logger.Info("Escalation suppressed by re-report guard",
			zap.String("contact_id", t.ContactID),
			zap.Duration("guard", e.cfg.Guard),
		)
		e.metrics.RecordEscalation(string(StatusSuppressed))
		return Record{ContactID: t.ContactID, Status: StatusSuppressed, Timestamp: now}
	}

	report, declined := e.buildReport(ctx, t, now)
	rec := Record{ContactID: t.ContactID, ReportID: report.ReportID, Timestamp: now}

	reason := e.report(ctx, report, declined)
	if reason == "" {
		rec.Status = StatusReported
	} else {
		rec.Reason = reason
		rec.Status = e.backup(ctx, t, reason)
	}

	e.append(ctx, rec)
	e.metrics.RecordEscalation(string(rec.Status))

	fields := []zap.Field{
		zap.String("contact_id", rec.ContactID),
		zap.String("report_id", rec.ReportID),
		zap.String("status", string(rec.Status)),
		zap.String("reason", rec.Reason),
	}
	if rec.Status == StatusFailed {
		e.logger.Error("Emergency escalation failed", fields...)
	} else {
		e.logger.Warn("Emergency escalation completed", fields...)
	}
	return rec
}

func (e *Escalator) AuditLog() []Record {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Record, len(e.audit))
	copy(out, e.audit)
	return out
}

func (e *Escalator) guarded(contactID string, now time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	last, ok := e.lastEscalated[contactID]
	return ok && now.Sub(last) < e.cfg.Guard
}

// 成功返回 ""，否则返回需要走备用通知的原因
func (e *Escalator) report(ctx context.Context, report notification.EmergencyReport, declined bool) (reason string) {
	if declined {
		return "emergency contact consent declined"
	}
	if e.reporter == nil {
		return "emergency service unavailable"
	}
	defer func() {
		if r := recover(); r != nil {
			reason = fmt.Sprintf("emergency service panicked: %v", r)
		}
	}()
	res, err := e.reporter.ReportEmergency(ctx, report)
	switch {
	case err != nil:
		return err.Error()
	case res == nil:
		return "empty response from emergency service"
	case !res.Success:
		if res.Error != "" {
			return res.Error
		}
		return "emergency service rejected report"
	}
	return ""
}

func (e *Escalator) backup(ctx context.Context, t notifier.Target, reason string) Status {
	if e.urgent == nil {
		return StatusFailed
	}
	res := e.urgent.DispatchUrgent(ctx, t, reason)
	if res != nil && res.Delivered {
		return StatusBackupSent
	}
	return StatusFailed
}

func (e *Escalator) buildReport(ctx context.Context, t notifier.Target, now time.Time) (notification.EmergencyReport, bool) {
	report := notification.EmergencyReport{
		ReportID:          uuid.NewString(),
		ContactID:         t.ContactID,
		ContactName:       orUnknown(t.ContactName),
		ReporterID:        e.cfg.ReporterID,
		Address:           Unknown,
		MedicalNotes:      Unknown,
		EmergencyContacts: []string{},
		InactiveMinutes:   -1,
	}
	if t.LastActivity != nil {
		report.InactiveMinutes = alert.ElapsedMinutes(*t.LastActivity, now)
	}

	if e.profiles == nil {
		return report, false
	}
	p, err := e.profiles.GetProfile(ctx, t.ContactID)
	if err != nil {
		e.logger.Warn("Profile lookup failed, reporting with placeholders",
			zap.String("contact_id", t.ContactID), zap.Error(err))
		return report, false
	}
	if p == nil {
		return report, false
	}
	if p.Address != nil && *p.Address != "" {
		report.Address = *p.Address
	}
	if p.MedicalNotes != nil && *p.MedicalNotes != "" {
		report.MedicalNotes = *p.MedicalNotes
	}
	if len(p.EmergencyContacts) > 0 {
		report.EmergencyContacts = append(report.EmergencyContacts, p.EmergencyContacts...)
	}
	declined := p.EmergencyConsent != nil && !*p.EmergencyConsent
	return report, declined
}

func (e *Escalator) append(ctx context.Context, rec Record) {
	e.mu.Lock()
	e.audit = capRecords(append(e.audit, rec), e.cfg.AuditLimit)
	if rec.Status != StatusFailed {
		e.lastEscalated[rec.ContactID] = rec.Timestamp
	}
	audit := make([]Record, len(e.audit))
	copy(audit, e.audit)
	last := make(map[string]time.Time, len(e.lastEscalated))
	for id, ts := range e.lastEscalated {
		last[id] = ts
	}
	e.mu.Unlock()

	if e.cache == nil {
		return
	}
	if err := e.cache.Set(ctx, auditCacheKey, audit, 0); err != nil {
		e.logger.Warn("Failed to mirror emergency audit log", zap.Error(err))
	}
	if err := e.cache.Set(ctx, guardCacheKey, last, 0); err != nil {
		e.logger.Warn("Failed to mirror escalation guard", zap.Error(err))
	}
}

func capRecords(recs []Record, limit int) []Record {
	if len(recs) <= limit {
		return recs
	}
	return append([]Record(nil), recs[len(recs)-limit:]...)
}

func orUnknown(s string) string {
	if s == "" {
		return Unknown
	}
	return s
}
