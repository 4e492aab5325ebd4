package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"lonelycare/internal/alert"
	"lonelycare/internal/escalation"
	"lonelycare/internal/models"
	"lonelycare/internal/notifier"
	"lonelycare/internal/store"
	"lonelycare/pkg/util"
)

func newStore(t *testing.T) *store.Store {
	db, err := util.OpenDatabase("sqlite", "", false)
	require.NoError(t, err)
	require.NoError(t, models.AutoMigrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return store.New(db)
}

func TestSaveUndelivered_MergesRepeatedFailures(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	fallback := saveUndelivered(st, zap.NewNop())

	note := notifier.Notification{OwnerID: "owner", ContactID: "b", Tier: alert.Danger}
	for i := 0; i < 3; i++ {
		fallback(ctx, note, &notifier.Result{ID: "d", ContactID: "b", Tier: alert.Danger})
	}
	fallback(ctx, notifier.Notification{OwnerID: "owner", ContactID: "b", Tier: alert.Emergency}, &notifier.Result{})

	alerts, err := st.ListAlerts(ctx, "owner", 0)
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	byTier := map[string]models.Alert{}
	for _, a := range alerts {
		byTier[a.Tier] = a
	}
	assert.Equal(t, 3, byTier["danger"].Attempts)
	assert.Equal(t, models.AlertStatusPending, byTier["danger"].Status)
	assert.Equal(t, models.AlertTypeUndelivered, byTier["danger"].AlertType)
	assert.Contains(t, byTier["danger"].AlertDetails, `"contactId":"b"`)
	assert.Equal(t, 1, byTier["emergency"].Attempts)
}

type urgentStub struct{ delivered bool }

func (u *urgentStub) DispatchUrgent(ctx context.Context, t notifier.Target, reason string) *notifier.Result {
	return &notifier.Result{Delivered: u.delivered}
}

func TestAuditedEscalator_RecordsOutcomes(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	urgent := &urgentStub{}
	esc := &auditedEscalator{
		Escalator: escalation.New(escalation.Config{ReporterID: "owner"}, nil, nil, urgent, escalation.Options{}),
		store:     st,
		ownerID:   "owner",
		logger:    zap.NewNop(),
	}
	target := notifier.Target{OwnerID: "owner", ContactID: "b", ContactName: "Bob"}

	// 两次失败合并成一条待跟进
	assert.Equal(t, escalation.StatusFailed, esc.Escalate(ctx, target).Status)
	assert.Equal(t, escalation.StatusFailed, esc.Escalate(ctx, target).Status)

	urgent.delivered = true
	assert.Equal(t, escalation.StatusBackupSent, esc.Escalate(ctx, target).Status)
	// 防重复报告期间不落库
	assert.Equal(t, escalation.StatusSuppressed, esc.Escalate(ctx, target).Status)

	alerts, err := st.ListAlerts(ctx, "owner", 0)
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, models.AlertStatusResolved, alerts[0].Status)
	assert.Equal(t, models.AlertStatusPending, alerts[1].Status)
	assert.Equal(t, 2, alerts[1].Attempts)
	for _, a := range alerts {
		assert.Equal(t, models.AlertTypeEmergency, a.AlertType)
		assert.Equal(t, "emergency", a.Tier)
	}
}

func TestSupportedLanguages(t *testing.T) {
	assert.Equal(t, []string{"ko", "en"}, supportedLanguages("ko", []string{"en", "ko", ""}))
	assert.Equal(t, []string{"en"}, supportedLanguages("en", nil))
}
