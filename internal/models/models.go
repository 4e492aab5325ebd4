package models

import "gorm.io/gorm"

// AutoMigrate 创建/更新全部表
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&Profile{},
		&Friendship{},
		&Heartbeat{},
		&FriendStatus{},
		&NotificationSettings{},
		&Alert{},
	)
}
