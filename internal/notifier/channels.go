package notifier

import (
	"context"
	"time"

	"lonelycare/internal/alert"
	"lonelycare/pkg/notification"
)

// Broadcaster 向用户的在线连接推送事件，返回接收的连接数
type Broadcaster interface {
	SendToGroupJSON(group, name string, v interface{}) (int, error)
	SendToGroupLangJSON(group, lang, name string, v interface{}) (int, error)
	GroupLangs(group string) []string
}

// sendLocalized 按连接语言分别推送，build 生成对应语言的事件
func sendLocalized(hub Broadcaster, n Notification, name string, build func(Text) interface{}) (int, error) {
	total := 0
	for _, lang := range hub.GroupLangs(n.OwnerID) {
		sent, err := hub.SendToGroupLangJSON(n.OwnerID, lang, name, build(n.Localized(lang)))
		if err != nil {
			return total, err
		}
		total += sent
	}
	return total, nil
}

type Pusher interface {
	Send(ctx context.Context, msg notification.PushMessage) error
}

// Permission 用户是否允许声音和振动
type Permission interface {
	Allowed(userID string) bool
}

// PushChannel client 为 nil 时推送关闭
type PushChannel struct {
	client Pusher
}

func NewPushChannel(client Pusher) *PushChannel { return &PushChannel{client: client} }

func (c *PushChannel) Name() string { return "push" }

func (c *PushChannel) Deliver(ctx context.Context, n Notification) (Outcome, error) {
	if c.client == nil {
		return Skipped, nil
	}
	meta := make(map[string]string, len(n.Metadata)+1)
	for k, v := range n.Metadata {
		meta[k] = v
	}
	meta["notificationId"] = n.ID
	err := c.client.Send(ctx, notification.PushMessage{
		UserID:   n.OwnerID,
		Title:    n.Title,
		Body:     n.Body,
		Tier:     n.Tier.String(),
		Metadata: meta,
	})
	if err != nil {
		return Failed, err
	}
	return Delivered, nil
}

// 级别越高横幅停留越久
func BannerDismissAfter(tier alert.Tier) time.Duration {
	switch tier {
	case alert.Emergency:
		return 30 * time.Second
	case alert.Danger:
		return 15 * time.Second
	case alert.Warning:
		return 8 * time.Second
	default:
		return 5 * time.Second
	}
}

type bannerEvent struct {
	ID             string     `json:"id"`
	Kind           string     `json:"kind"`
	Tier           alert.Tier `json:"tier"`
	Title          string     `json:"title"`
	Body           string     `json:"body"`
	ContactID      string     `json:"contactId"`
	ContactName    string     `json:"contactName"`
	DismissAfterMs int64      `json:"dismissAfterMs"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// BannerChannel 应用内横幅
type BannerChannel struct {
	hub Broadcaster
}

func NewBannerChannel(hub Broadcaster) *BannerChannel { return &BannerChannel{hub: hub} }

func (c *BannerChannel) Name() string { return "banner" }

func (c *BannerChannel) Deliver(ctx context.Context, n Notification) (Outcome, error) {
	sent, err := sendLocalized(c.hub, n, "banner", func(text Text) interface{} {
		return bannerEvent{
			ID:             n.ID,
			Kind:           n.Kind,
			Tier:           n.Tier,
			Title:          text.Title,
			Body:           text.Body,
			ContactID:      n.ContactID,
			ContactName:    n.ContactName,
			DismissAfterMs: BannerDismissAfter(n.Tier).Milliseconds(),
			CreatedAt:      n.CreatedAt,
		}
	})
	if err != nil {
		return Failed, err
	}
	if sent == 0 {
		return Skipped, nil
	}
	return Delivered, nil
}

// AuditChannel 只写本地历史，不算送达
type AuditChannel struct {
	history *History
}

func NewAuditChannel(history *History) *AuditChannel { return &AuditChannel{history: history} }

func (c *AuditChannel) Name() string { return "audit" }

func (c *AuditChannel) Deliver(ctx context.Context, n Notification) (Outcome, error) {
	c.history.Append(ctx, Entry{
		ID:          n.ID,
		Kind:        n.Kind,
		ContactID:   n.ContactID,
		ContactName: n.ContactName,
		Tier:        n.Tier,
		Title:       n.Title,
		CreatedAt:   n.CreatedAt,
	})
	return Recorded, nil
}

// 客户端用振荡器播放
type Sound struct {
	FrequencyHz int `json:"frequencyHz"`
	DurationMs  int `json:"durationMs"`
	Repeat      int `json:"repeat"`
}

type AlarmPattern struct {
	Sound     Sound `json:"sound"`
	Vibration []int `json:"vibration"` // on/off in ms
}

func PatternFor(tier alert.Tier) (AlarmPattern, bool) {
	switch tier {
	case alert.Warning:
		return AlarmPattern{Sound{FrequencyHz: 440, DurationMs: 200, Repeat: 1}, []int{200}}, true
	case alert.Danger:
		return AlarmPattern{Sound{FrequencyHz: 660, DurationMs: 300, Repeat: 2}, []int{300, 100, 300}}, true
	case alert.Emergency:
		return AlarmPattern{Sound{FrequencyHz: 880, DurationMs: 500, Repeat: 3}, []int{500, 200, 500, 200, 500}}, true
	default:
		return AlarmPattern{}, false
	}
}

type alarmEvent struct {
	ID        string     `json:"id"`
	Tier      alert.Tier `json:"tier"`
	ContactID string     `json:"contactId"`
	AlarmPattern
}

// AlarmChannel 未授权时跳过，不算失败
type AlarmChannel struct {
	hub  Broadcaster
	gate Permission
}

func NewAlarmChannel(hub Broadcaster, gate Permission) *AlarmChannel {
	return &AlarmChannel{hub: hub, gate: gate}
}

func (c *AlarmChannel) Name() string { return "alarm" }

func (c *AlarmChannel) Deliver(ctx context.Context, n Notification) (Outcome, error) {
	pattern, ok := PatternFor(n.Tier)
	if !ok {
		return Skipped, nil
	}
	if c.gate == nil || !c.gate.Allowed(n.OwnerID) {
		return Skipped, nil
	}
	sent, err := c.hub.SendToGroupJSON(n.OwnerID, "alarm", alarmEvent{
		ID:           n.ID,
		Tier:         n.Tier,
		ContactID:    n.ContactID,
		AlarmPattern: pattern,
	})
	if err != nil {
		return Failed, err
	}
	if sent == 0 {
		return Skipped, nil
	}
	return Delivered, nil
}

type takeoverEvent struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	ContactID   string    `json:"contactId"`
	ContactName string    `json:"contactName"`
	RequiresAck bool      `json:"requiresAck"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// TakeoverChannel 紧急级别的全屏接管，需要确认
type TakeoverChannel struct {
	hub       Broadcaster
	takeovers *Takeovers
}

func NewTakeoverChannel(hub Broadcaster, takeovers *Takeovers) *TakeoverChannel {
	return &TakeoverChannel{hub: hub, takeovers: takeovers}
}

func (c *TakeoverChannel) Name() string { return "takeover" }

func (c *TakeoverChannel) Deliver(ctx context.Context, n Notification) (Outcome, error) {
	if n.Tier < alert.Emergency {
		return Skipped, nil
	}
	tk := c.takeovers.Open(n)
	sent, err := sendLocalized(c.hub, n, "takeover", func(text Text) interface{} {
		return takeoverEvent{
			ID:          tk.ID,
			Title:       text.Title,
			Body:        text.Body,
			ContactID:   n.ContactID,
			ContactName: n.ContactName,
			RequiresAck: true,
			ExpiresAt:   tk.ExpiresAt,
		}
	})
	if err != nil || sent == 0 {
		c.takeovers.Cancel(tk.ID)
		if err != nil {
			return Failed, err
		}
		return Skipped, nil
	}
	return Delivered, nil
}
