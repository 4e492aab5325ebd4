package models

import "time"

// NotificationSettings 管理员设置的阈值（分钟），取最新一条
type NotificationSettings struct {
	ID               uint      `json:"id" gorm:"primaryKey"`
	WarningMinutes   int       `json:"warningMinutes"`
	DangerMinutes    int       `json:"dangerMinutes"`
	EmergencyMinutes int       `json:"emergencyMinutes"`
	UpdatedBy        string    `json:"updatedBy,omitempty" gorm:"size:64"`
	CreatedAt        time.Time `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt        time.Time `json:"updatedAt" gorm:"autoUpdateTime"`
}
