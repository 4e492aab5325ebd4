package models

import "time"

type User struct {
	ID          string    `json:"id" gorm:"primaryKey;size:64"`
	DisplayName string    `json:"displayName" gorm:"size:128"`
	Phone       string    `json:"phone,omitempty" gorm:"size:32"`
	Email       string    `json:"email,omitempty" gorm:"size:128"`
	CreatedAt   time.Time `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt   time.Time `json:"updatedAt" gorm:"autoUpdateTime"`
}

// Profile 紧急升级时使用的扩展资料，字段都可能缺失
type Profile struct {
	UserID            string    `json:"userId" gorm:"primaryKey;size:64"`
	Address           *string   `json:"address,omitempty" gorm:"size:512"`
	MedicalNotes      *string   `json:"medicalNotes,omitempty" gorm:"type:text"`
	EmergencyContacts []string  `json:"emergencyContacts,omitempty" gorm:"serializer:json"`
	EmergencyConsent  *bool     `json:"emergencyConsent,omitempty"` // nil 视为未拒绝
	UpdatedAt         time.Time `json:"updatedAt" gorm:"autoUpdateTime"`
}
