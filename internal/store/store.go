package store

import (
	"context"
	stderrors "errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"lonelycare/internal/alert"
	"lonelycare/internal/friend"
	"lonelycare/internal/models"
	"lonelycare/pkg/errors"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store { return &Store{db: db} }

func (s *Store) DB() *gorm.DB { return s.db }

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return errors.WrapCode(err, errors.CodeStoreUnavailable, "database connection failed")
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return errors.WrapCode(err, errors.CodeStoreUnavailable, "database ping failed")
	}
	return nil
}

func (s *Store) GetRelationships(ctx context.Context, ownerID string, dir friend.Direction) ([]models.Friendship, error) {
	column := "user_id"
	if dir == friend.Incoming {
		column = "friend_id"
	}
	var out []models.Friendship
	err := s.db.WithContext(ctx).Where(column+" = ?", ownerID).Find(&out).Error
	if err != nil {
		return nil, errors.WrapCode(err, errors.CodeStoreUnavailable, "query friendships")
	}
	return out, nil
}

func (s *Store) GetIdentity(ctx context.Context, userID string) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).Where("id = ?", userID).Take(&u).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.WrapCode(err, errors.CodeStoreUnavailable, "query user")
	}
	return &u, nil
}

// 只做等值过滤，调用方排序
func (s *Store) ListHeartbeats(ctx context.Context, userID string) ([]models.Heartbeat, error) {
	var out []models.Heartbeat
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&out).Error
	if err != nil {
		return nil, errors.WrapCode(err, errors.CodeStoreUnavailable, "query heartbeats")
	}
	return out, nil
}

func (s *Store) RecordHeartbeat(ctx context.Context, userID, source string, at time.Time) (*models.Heartbeat, error) {
	hb := &models.Heartbeat{UserID: userID, Source: source, Timestamp: at}
	if err := s.db.WithContext(ctx).Create(hb).Error; err != nil {
		return nil, errors.WrapCode(err, errors.CodeStoreUnavailable, "insert heartbeat")
	}
	return hb, nil
}

func (s *Store) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	var p models.Profile
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Take(&p).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.WrapCode(err, errors.CodeStoreUnavailable, "query profile")
	}
	return &p, nil
}

// FetchThresholds 取最新的管理员设置，没有时返回 (nil, nil)
func (s *Store) FetchThresholds(ctx context.Context) (*alert.Thresholds, error) {
	var st models.NotificationSettings
	err := s.db.WithContext(ctx).Order("updated_at DESC").Order("id DESC").Take(&st).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.WrapCode(err, errors.CodeStoreUnavailable, "query notification settings")
	}
	return &alert.Thresholds{
		Warning:   st.WarningMinutes,
		Danger:    st.DangerMinutes,
		Emergency: st.EmergencyMinutes,
	}, nil
}

// RecordStatuses 按 (owner, friend) 覆盖写入
func (s *Store) RecordStatuses(ctx context.Context, ownerID string, statuses []models.FriendStatus) error {
	if len(statuses) == 0 {
		return nil
	}
	for i := range statuses {
		statuses[i].OwnerID = ownerID
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "owner_id"}, {Name: "friend_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"display_name", "tier", "last_activity", "degraded", "notified", "evaluated_at"}),
	}).Create(&statuses).Error
	if err != nil {
		return errors.WrapCode(err, errors.CodeStoreUnavailable, "upsert friend statuses")
	}
	return nil
}

func (s *Store) ListStatuses(ctx context.Context, ownerID string) ([]models.FriendStatus, error) {
	var out []models.FriendStatus
	err := s.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("friend_id").Find(&out).Error
	if err != nil {
		return nil, errors.WrapCode(err, errors.CodeStoreUnavailable, "query friend statuses")
	}
	return out, nil
}

func (s *Store) SaveAlert(ctx context.Context, a *models.Alert) error {
	if err := s.db.WithContext(ctx).Create(a).Error; err != nil {
		return errors.WrapCode(err, errors.CodeStoreUnavailable, "insert alert")
	}
	return nil
}

// UpsertPendingAlert 同一好友同一类型同一级别只保留一条待跟进记录，重复失败时累加次数并刷新详情
func (s *Store) UpsertPendingAlert(ctx context.Context, a *models.Alert) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Alert
		err := tx.Where("owner_id = ? AND contact_id = ? AND alert_type = ? AND tier = ? AND status = ?",
			a.OwnerID, a.ContactID, a.AlertType, a.Tier, models.AlertStatusPending).
			Order("id DESC").First(&existing).Error
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			a.Status = models.AlertStatusPending
			a.Attempts = 1
			return tx.Create(a).Error
		}
		if err != nil {
			return err
		}
		existing.Attempts++
		existing.AlertDetails = a.AlertDetails
		if err := tx.Model(&existing).Updates(map[string]interface{}{
			"attempts":      existing.Attempts,
			"alert_details": existing.AlertDetails,
		}).Error; err != nil {
			return err
		}
		*a = existing
		return nil
	})
	if err != nil {
		return errors.WrapCode(err, errors.CodeStoreUnavailable, "upsert pending alert")
	}
	return nil
}

func (s *Store) ListAlerts(ctx context.Context, ownerID string, limit int) ([]models.Alert, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []models.Alert
	err := s.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("id DESC").Limit(limit).Find(&out).Error
	if err != nil {
		return nil, errors.WrapCode(err, errors.CodeStoreUnavailable, "query alerts")
	}
	return out, nil
}
