package models

import "time"

const (
	FriendshipPending  = "pending"
	FriendshipAccepted = "accepted"
	FriendshipBlocked  = "blocked"
)

// Friendship 单向创建的好友关系；UserID 为发起方，FriendID 为被添加方
type Friendship struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    string    `json:"userId" gorm:"size:64;index"`
	FriendID  string    `json:"friendId" gorm:"size:64;index"`
	Status    string    `json:"status" gorm:"size:16"`
	CreatedAt time.Time `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"autoUpdateTime"`
}

// Heartbeat 设备上报的存活信号
type Heartbeat struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    string    `json:"userId" gorm:"size:64;index"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source,omitempty" gorm:"size:32"` // web / android / ...
	CreatedAt time.Time `json:"createdAt" gorm:"autoCreateTime"`
}

// FriendStatus 每轮评估写回的结果，只用于展示
type FriendStatus struct {
	OwnerID      string     `json:"ownerId" gorm:"primaryKey;size:64"`
	FriendID     string     `json:"friendId" gorm:"primaryKey;size:64"`
	DisplayName  string     `json:"displayName" gorm:"size:128"`
	Tier         string     `json:"tier" gorm:"size:16"`
	LastActivity *time.Time `json:"lastActivity,omitempty"`
	Degraded     bool       `json:"degraded"`
	Notified     bool       `json:"notified"`
	EvaluatedAt  time.Time  `json:"evaluatedAt"`
}
