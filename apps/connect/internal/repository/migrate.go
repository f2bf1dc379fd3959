package repository

import (
	"ChatRelay/model"

	"gorm.io/gorm"
)

// AutoMigrate 建表/补齐索引
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.UserInfo{},
		&model.FriendRequest{},
		&model.ChatMessage{},
	)
}
