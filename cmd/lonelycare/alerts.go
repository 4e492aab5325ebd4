package main

import (
	"context"
	"encoding/json"

	"lonelycare/internal/alert"
	"lonelycare/internal/escalation"
	"lonelycare/internal/models"
	"lonelycare/internal/notifier"
	"lonelycare/internal/store"

	"go.uber.org/zap"
)

// saveUndelivered 所有渠道都没送达时记一条待跟进告警；同一好友同一级别重复失败只累加次数
func saveUndelivered(st *store.Store, log *zap.Logger) notifier.FallbackFunc {
	return func(ctx context.Context, n notifier.Notification, r *notifier.Result) {
		details, _ := json.Marshal(r)
		a := &models.Alert{
			OwnerID:      n.OwnerID,
			ContactID:    n.ContactID,
			AlertType:    models.AlertTypeUndelivered,
			Tier:         n.Tier.String(),
			AlertDetails: string(details),
		}
		if err := st.UpsertPendingAlert(ctx, a); err != nil {
			log.Error("Failed to save undelivered alert", zap.String("contact_id", n.ContactID), zap.Error(err))
			return
		}
		log.Warn("Undelivered notification queued for follow-up",
			zap.String("contact_id", n.ContactID),
			zap.Uint("alert_id", a.ID),
			zap.Int("attempts", a.Attempts),
		)
	}
}

// auditedEscalator 把每次实际发生的升级也写入 alerts 表
type auditedEscalator struct {
	*escalation.Escalator
	store   *store.Store
	ownerID string
	logger  *zap.Logger
}

func (e *auditedEscalator) Escalate(ctx context.Context, t notifier.Target) escalation.Record {
	rec := e.Escalator.Escalate(ctx, t)
	if rec.Status == escalation.StatusSuppressed {
		return rec
	}
	details, _ := json.Marshal(rec)
	a := &models.Alert{
		OwnerID:      e.ownerID,
		ContactID:    rec.ContactID,
		AlertType:    models.AlertTypeEmergency,
		Tier:         alert.Emergency.String(),
		Status:       models.AlertStatusResolved,
		AlertDetails: string(details),
	}
	var err error
	if rec.Status == escalation.StatusFailed {
		// 失败的升级会在下一轮重试，合并成一条待跟进记录
		err = e.store.UpsertPendingAlert(ctx, a)
	} else {
		err = e.store.SaveAlert(ctx, a)
	}
	if err != nil {
		e.logger.Error("Failed to save emergency alert", zap.String("contact_id", rec.ContactID), zap.Error(err))
	}
	return rec
}
