package models

import "time"

const (
	AlertTypeUndelivered = "undelivered"      // 所有渠道都失败的通知
	AlertTypeEmergency   = "emergency_report" // 紧急升级结果

	AlertStatusPending  = "pending"
	AlertStatusResolved = "resolved"
)

// Alert 需要人工跟进的告警记录（通知全部失败、紧急升级）
type Alert struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	OwnerID      string    `json:"ownerId" gorm:"size:64;index"`   // 监护人
	ContactID    string    `json:"contactId" gorm:"size:64;index"` // 被监护的好友
	AlertType    string    `json:"alertType" gorm:"size:32"`
	Tier         string    `json:"tier" gorm:"size:16"`
	Status       string    `json:"status" gorm:"size:16"`
	Attempts     int       `json:"attempts" gorm:"default:1"`    // 待跟进期间重复失败的次数
	AlertDetails string    `json:"alertDetails" gorm:"type:text"` // JSON 格式的上下文
	CreatedAt    time.Time `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt    time.Time `json:"updatedAt" gorm:"autoUpdateTime"`
}
