package notifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"lonelycare/internal/alert"
	"lonelycare/pkg/i18n"
	"lonelycare/pkg/metrics"
)

type Outcome string

const (
	Delivered Outcome = "delivered"
	// 只是记录，不算送达
	Recorded Outcome = "recorded"
	Skipped  Outcome = "skipped"
	Failed   Outcome = "failed"
)

const (
	KindAlert  = "alert"
	KindUrgent = "urgent"
)

// Target 通知 OwnerID 关于 ContactID 的情况
type Target struct {
	OwnerID      string
	ContactID    string
	ContactName  string
	LastActivity *time.Time
}

type Notification struct {
	ID           string            `json:"id"`
	Kind         string            `json:"kind"`
	OwnerID      string            `json:"ownerId"`
	ContactID    string            `json:"contactId"`
	ContactName  string            `json:"contactName"`
	Tier         alert.Tier        `json:"tier"`
	Title        string            `json:"title"`
	Body         string            `json:"body"`
	LastActivity *time.Time        `json:"lastActivity,omitempty"`
	CreatedAt    time.Time         `json:"createdAt"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	// 其他语言的文案，Title/Body 为默认语言
	Texts map[string]Text `json:"-"`
}

type Text struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Localized 取 lang 的文案，没有则回退默认语言
func (n Notification) Localized(lang string) Text {
	if t, ok := n.Texts[lang]; ok {
		return t
	}
	return Text{Title: n.Title, Body: n.Body}
}

// Channel 返回 error 时一律按失败处理
type Channel interface {
	Name() string
	Deliver(ctx context.Context, n Notification) (Outcome, error)
}

type ChannelResult struct {
	Channel  string        `json:"channel"`
	Outcome  Outcome       `json:"outcome"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

type Result struct {
	ID              string          `json:"id"`
	Kind            string          `json:"kind"`
	ContactID       string          `json:"contactId"`
	Tier            alert.Tier      `json:"tier"`
	Delivered       bool            `json:"delivered"`
	Channels        []ChannelResult `json:"channels"`
	Duration        time.Duration   `json:"duration"`
	FallbackInvoked bool            `json:"fallbackInvoked"`
}

func (r *Result) Outcome(channel string) Outcome {
	for _, c := range r.Channels {
		if c.Channel == channel {
			return c.Outcome
		}
	}
	return ""
}

// FallbackFunc 所有渠道都未送达时同步调用
type FallbackFunc func(ctx context.Context, n Notification, r *Result)

type Options struct {
	Lang       string   // 默认语言，为空时取翻译器默认值
	Languages  []string // 额外渲染的语言，供按连接语言推送
	Translator *i18n.I18nSupport
	Fallback   FallbackFunc
	Metrics    *metrics.Metrics
	Logger     *zap.Logger
	Now        func() time.Time
}

type Notifier struct {
	channels  []Channel
	lang      string
	languages []string
	tr        *i18n.I18nSupport
	formatter *alert.Formatter
	fallback  FallbackFunc
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

func New(channels []Channel, opts Options) (*Notifier, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	tr := opts.Translator
	if tr == nil {
		var err error
		if tr, err = i18n.NewI18nSupport("en"); err != nil {
			return nil, err
		}
	}
	if err := alert.RegisterMessages(tr); err != nil {
		return nil, err
	}
	if err := registerMessages(tr); err != nil {
		return nil, err
	}
	lang := opts.Lang
	if lang == "" {
		lang = tr.DefaultLang()
	}
	var languages []string
	seen := map[string]bool{lang: true}
	for _, l := range opts.Languages {
		if l != "" && !seen[l] {
			seen[l] = true
			languages = append(languages, l)
		}
	}
	return &Notifier{
		channels:  channels,
		lang:      lang,
		languages: languages,
		tr:        tr,
		formatter: alert.NewFormatter(tr),
		fallback:  opts.Fallback,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
		now:       opts.Now,
	}, nil
}

func (n *Notifier) Channels() []string {
	names := make([]string, 0, len(n.channels))
	for _, ch := range n.channels {
		names = append(names, ch.Name())
	}
	return names
}

func (n *Notifier) Dispatch(ctx context.Context, t Target, tier alert.Tier) *Result {
	return n.deliver(ctx, n.build(t, tier, KindAlert, ""))
}

// DispatchUrgent 联系不上应急服务时的备用通知，固定为紧急级别
func (n *Notifier) DispatchUrgent(ctx context.Context, t Target, reason string) *Result {
	return n.deliver(ctx, n.build(t, alert.Emergency, KindUrgent, reason))
}

func (n *Notifier) build(t Target, tier alert.Tier, kind, reason string) Notification {
	now := n.now()
	name := t.ContactName
	if name == "" {
		name = t.ContactID
	}
	title, body := n.render(n.lang, tier, kind, name, reason, t.LastActivity, now)
	var texts map[string]Text
	if len(n.languages) > 0 {
		texts = make(map[string]Text, len(n.languages))
		for _, lang := range n.languages {
			lt, lb := n.render(lang, tier, kind, name, reason, t.LastActivity, now)
			texts[lang] = Text{Title: lt, Body: lb}
		}
	}
	meta := map[string]string{"contactId": t.ContactID, "kind": kind}
	if reason != "" {
		meta["reason"] = reason
	}
	return Notification{
		ID:           uuid.NewString(),
		Kind:         kind,
		OwnerID:      t.OwnerID,
		ContactID:    t.ContactID,
		ContactName:  name,
		Tier:         tier,
		Title:        title,
		Body:         body,
		LastActivity: t.LastActivity,
		CreatedAt:    now,
		Metadata:     meta,
		Texts:        texts,
	}
}

func (n *Notifier) deliver(ctx context.Context, note Notification) *Result {
	start := time.Now()
	res := &Result{ID: note.ID, Kind: note.Kind, ContactID: note.ContactID, Tier: note.Tier}

	for _, ch := range n.channels {
		cr := n.runChannel(ctx, ch, note)
		res.Channels = append(res.Channels, cr)
		if cr.Outcome == Delivered {
			res.Delivered = true
		}
		n.metrics.RecordChannelOutcome(cr.Channel, string(cr.Outcome))
	}
	res.Duration = time.Since(start)
	n.metrics.RecordDispatch(note.Tier.String(), res.Delivered)

	fields := []zap.Field{
		zap.String("dispatch_id", res.ID),
		zap.String("kind", res.Kind),
		zap.String("contact_id", res.ContactID),
		zap.Stringer("tier", res.Tier),
		zap.String("channels", summarize(res.Channels)),
		zap.Duration("duration", res.Duration),
	}
	if res.Delivered {
		n.logger.Info("Notification dispatched", fields...)
		return res
	}

	n.logger.Error("Notification not delivered on any channel", fields...)
	if n.fallback != nil {
		res.FallbackInvoked = true
		n.runFallback(ctx, note, res)
	}
	return res
}

// panic 记为失败，不影响其他渠道
func (n *Notifier) runChannel(ctx context.Context, ch Channel, note Notification) (cr ChannelResult) {
	cr.Channel = ch.Name()
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			cr.Outcome = Failed
			cr.Error = fmt.Sprintf("panic: %v", r)
			n.logger.Error("Notification channel panicked",
				zap.String("channel", cr.Channel),
				zap.Any("panic", r),
			)
		}
		cr.Duration = time.Since(start)
	}()

	outcome, err := ch.Deliver(ctx, note)
	if err != nil {
		cr.Outcome = Failed
		cr.Error = err.Error()
		n.logger.Warn("Notification channel failed",
			zap.String("channel", cr.Channel),
			zap.String("dispatch_id", note.ID),
			zap.Error(err),
		)
		return cr
	}
	cr.Outcome = outcome
	return cr
}

func (n *Notifier) runFallback(ctx context.Context, note Notification, res *Result) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("Notification fallback panicked", zap.String("dispatch_id", note.ID), zap.Any("panic", r))
		}
	}()
	n.fallback(ctx, note, res)
}

func summarize(crs []ChannelResult) string {
	parts := make([]string, 0, len(crs))
	for _, c := range crs {
		parts = append(parts, c.Channel+"="+string(c.Outcome))
	}
	return strings.Join(parts, ",")
}
