package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{"OWNER_ID", "ADDR", "COOLDOWN_DURATION", "COOLDOWN_DIAGNOSTIC",
		"THRESHOLD_WARNING_MINUTES", "EVAL_SCHEDULE", "ESCALATION_GUARD", "CACHE_TYPE", "BACKUP_SCHEDULE", "BACKUP_KEEP", "LANGUAGES", "I18N_FILES"} {
		t.Setenv(k, "")
	}

	cfg := FromEnv()

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 1440, cfg.ThresholdWarningMinutes)
	assert.Equal(t, 2880, cfg.ThresholdDangerMinutes)
	assert.Equal(t, 4320, cfg.ThresholdEmergencyMinutes)
	assert.Equal(t, 2*time.Hour, cfg.CooldownDuration)
	assert.False(t, cfg.CooldownDiagnostic)
	assert.Equal(t, 2*time.Hour, cfg.ActiveCooldown())
	assert.Equal(t, "@every 5m", cfg.EvalSchedule)
	assert.Equal(t, 24*time.Hour, cfg.EscalationGuard)
	assert.Equal(t, 5*time.Minute, cfg.TakeoverTimeout)
	assert.Equal(t, "gocache", cfg.Cache.Type)
	assert.Empty(t, cfg.BackupSchedule)
	assert.Equal(t, 7, cfg.BackupKeep)
	assert.Equal(t, []string{"en", "ko"}, cfg.Languages)
	assert.Empty(t, cfg.I18nFiles)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("OWNER_ID", "owner-1")
	t.Setenv("COOLDOWN_DIAGNOSTIC", "true")
	t.Setenv("COOLDOWN_DIAGNOSTIC_DURATION", "30")
	t.Setenv("THRESHOLD_WARNING_MINUTES", "60")
	t.Setenv("PUSH_TIMEOUT", "2s")
	t.Setenv("LANGUAGES", "ko, ja,")
	t.Setenv("I18N_FILES", "locales/ko.json,locales/ja.json")

	cfg := FromEnv()

	assert.Equal(t, "owner-1", cfg.OwnerID)
	assert.Equal(t, 60, cfg.ThresholdWarningMinutes)
	// 纯数字按秒处理
	assert.Equal(t, 30*time.Second, cfg.ActiveCooldown())
	assert.Equal(t, 2*time.Second, cfg.PushTimeout)
	assert.Equal(t, []string{"ko", "ja"}, cfg.Languages)
	assert.Equal(t, []string{"locales/ko.json", "locales/ja.json"}, cfg.I18nFiles)
}
