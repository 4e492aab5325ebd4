package notifier

import (
	"time"

	"lonelycare/internal/alert"
	"lonelycare/pkg/i18n"
)

var notifyMessages = map[string][]*i18n.Message{
	"en": {
		{ID: "notify.title.warning", Other: "Check on {{.Name}}"},
		{ID: "notify.title.danger", Other: "{{.Name}} has been inactive for a long time"},
		{ID: "notify.title.emergency", Other: "Emergency: {{.Name}} is not responding"},
		{ID: "notify.title.urgent", Other: "Urgent: {{.Name}} needs help now"},
		{ID: "notify.body.activity", Other: "Last activity {{.Elapsed}}."},
		{ID: "notify.body.no_activity", Other: "No recent activity recorded."},
		{ID: "notify.body.urgent", Other: "Emergency services could not be reached ({{.Reason}}). Please contact {{.Name}} right away."},
	},
	"ko": {
		{ID: "notify.title.warning", Other: "{{.Name}}님의 안부를 확인해 주세요"},
		{ID: "notify.title.danger", Other: "{{.Name}}님이 오랫동안 활동이 없습니다"},
		{ID: "notify.title.emergency", Other: "긴급: {{.Name}}님이 응답하지 않습니다"},
		{ID: "notify.title.urgent", Other: "긴급: {{.Name}}님에게 즉시 연락하세요"},
		{ID: "notify.body.activity", Other: "마지막 활동: {{.Elapsed}}"},
		{ID: "notify.body.no_activity", Other: "최근 활동 기록이 없습니다."},
		{ID: "notify.body.urgent", Other: "응급 서비스에 연결하지 못했습니다 ({{.Reason}}). {{.Name}}님에게 바로 연락해 주세요."},
	},
}

func registerMessages(tr *i18n.I18nSupport) error {
	for lang, msgs := range notifyMessages {
		if err := tr.AddMessages(lang, msgs...); err != nil {
			return err
		}
	}
	return nil
}

func (n *Notifier) render(lang string, tier alert.Tier, kind, name, reason string, last *time.Time, now time.Time) (string, string) {
	data := map[string]interface{}{"Name": name, "Reason": reason}

	if kind == KindUrgent {
		return n.tr.T(lang, "notify.title.urgent", data), n.tr.T(lang, "notify.body.urgent", data)
	}

	titleKey := "notify.title." + tier.String()
	if tier < alert.Warning {
		titleKey = "notify.title.warning"
	}
	title := n.tr.T(lang, titleKey, data)

	if last == nil {
		return title, n.tr.T(lang, "notify.body.no_activity", data)
	}
	data["Elapsed"] = n.formatter.Format(lang, alert.ElapsedMinutes(*last, now))
	return title, n.tr.T(lang, "notify.body.activity", data)
}
