package alert

import (
	"sync"

	"lonelycare/pkg/i18n"
)

const (
	msgJustNow    = "elapsed.just_now"
	msgMinutesAgo = "elapsed.minutes_ago"
	msgHoursAgo   = "elapsed.hours_ago"
	msgDaysAgo    = "elapsed.days_ago"
)

var elapsedMessages = map[string][]*i18n.Message{
	"en": {
		{ID: msgJustNow, Other: "just now"},
		{ID: msgMinutesAgo, One: "{{.Count}} minute ago", Other: "{{.Count}} minutes ago"},
		{ID: msgHoursAgo, One: "{{.Count}} hour ago", Other: "{{.Count}} hours ago"},
		{ID: msgDaysAgo, One: "{{.Count}} day ago", Other: "{{.Count}} days ago"},
	},
	"ko": {
		{ID: msgJustNow, Other: "방금 전"},
		{ID: msgMinutesAgo, Other: "{{.Count}}분 전"},
		{ID: msgHoursAgo, Other: "{{.Count}}시간 전"},
		{ID: msgDaysAgo, Other: "{{.Count}}일 전"},
	},
}

// RegisterMessages 注册相对时间文案
func RegisterMessages(tr *i18n.I18nSupport) error {
	for lang, msgs := range elapsedMessages {
		if err := tr.AddMessages(lang, msgs...); err != nil {
			return err
		}
	}
	return nil
}

// Formatter 把分钟数渲染成本地化的相对时间
type Formatter struct {
	tr *i18n.I18nSupport
}

func NewFormatter(tr *i18n.I18nSupport) *Formatter { return &Formatter{tr: tr} }

func (f *Formatter) Format(lang string, minutes int64) string {
	switch {
	case minutes < 1:
		return f.tr.T(lang, msgJustNow, nil)
	case minutes < 60:
		return f.tr.TPlural(lang, msgMinutesAgo, int(minutes))
	case minutes < 1440:
		return f.tr.TPlural(lang, msgHoursAgo, int(minutes/60))
	default:
		return f.tr.TPlural(lang, msgDaysAgo, int(minutes/1440))
	}
}

var (
	defaultFormatterOnce sync.Once
	defaultFormatter     *Formatter
)

// 英文
func FormatElapsed(minutes int64) string {
	defaultFormatterOnce.Do(func() {
		tr, _ := i18n.NewI18nSupport("en")
		_ = RegisterMessages(tr)
		defaultFormatter = NewFormatter(tr)
	})
	return defaultFormatter.Format("en", minutes)
}
