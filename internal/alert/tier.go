package alert

import (
	"fmt"
	"strings"
	"time"

	"lonelycare/pkg/errors"
)

// Tier 按严重程度递增，可以直接比较大小
type Tier int

const (
	Normal Tier = iota
	Warning
	Danger
	Emergency
)

var tierNames = [...]string{"normal", "warning", "danger", "emergency"}

func (t Tier) String() string {
	if t < Normal || t > Emergency {
		return fmt.Sprintf("tier(%d)", int(t))
	}
	return tierNames[t]
}

func (t Tier) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *Tier) UnmarshalText(b []byte) error {
	v, err := ParseTier(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

func ParseTier(s string) (Tier, error) {
	for i, name := range tierNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return Tier(i), nil
		}
	}
	return Normal, errors.WithCodef(errors.CodeInvalidConfig, "unknown tier %q", s)
}

func Tiers() []Tier { return []Tier{Normal, Warning, Danger, Emergency} }

// 指标标签用
func TierNames() []string { return tierNames[:] }

// Thresholds 各级别的无活动分钟数
type Thresholds struct {
	Warning   int `json:"warning"`
	Danger    int `json:"danger"`
	Emergency int `json:"emergency"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{Warning: 1440, Danger: 2880, Emergency: 4320}
}

// 必须为正且严格递增
func (th Thresholds) Validate() error {
	if th.Warning <= 0 || th.Danger <= 0 || th.Emergency <= 0 {
		return errors.WithCodef(errors.CodeInvalidConfig,
			"thresholds must be positive: warning=%d danger=%d emergency=%d", th.Warning, th.Danger, th.Emergency)
	}
	if th.Warning >= th.Danger || th.Danger >= th.Emergency {
		return errors.WithCodef(errors.CodeInvalidConfig,
			"thresholds must satisfy warning < danger < emergency: %d/%d/%d", th.Warning, th.Danger, th.Emergency)
	}
	return nil
}

// ElapsedMinutes 整分钟数，最小为 0
func ElapsedMinutes(last, now time.Time) int64 {
	d := now.Sub(last)
	if d < 0 {
		return 0
	}
	return int64(d / time.Minute)
}

// Classify 没有心跳记录时视为正常
func Classify(last *time.Time, th Thresholds, now time.Time) Tier {
	if last == nil {
		return Normal
	}
	elapsed := ElapsedMinutes(*last, now)
	switch {
	case elapsed >= int64(th.Emergency):
		return Emergency
	case elapsed >= int64(th.Danger):
		return Danger
	case elapsed >= int64(th.Warning):
		return Warning
	default:
		return Normal
	}
}

type Manager struct {
	now func() time.Time
}

func NewManager(now func() time.Time) *Manager {
	if now == nil {
		now = time.Now
	}
	return &Manager{now: now}
}

func (m *Manager) Now() time.Time { return m.now() }

func (m *Manager) Classify(last *time.Time, th Thresholds) Tier {
	return Classify(last, th, m.now())
}

// 没有活动时间时返回 false
func (m *Manager) ElapsedMinutes(last *time.Time) (int64, bool) {
	if last == nil {
		return 0, false
	}
	return ElapsedMinutes(*last, m.now()), true
}
