package model

import "time"

const DefaultMimeType = "text/plain"

// ChatMessage 单聊消息表。
// 创建后只允许 has_read 由 false 变为 true；id 单调递增，可直接作为分页游标。
type ChatMessage struct {
	ID       int64     `gorm:"column:id;primaryKey;autoIncrement:false;comment:雪花id" json:"id,string"`
	FromID   string    `gorm:"column:from_id;type:char(36);not null;index:idx_pair,priority:1;comment:发送方" json:"from"`
	ToID     string    `gorm:"column:to_id;type:char(36);not null;index:idx_pair,priority:2;index:idx_to_read;comment:接收方" json:"to"`
	MimeType string    `gorm:"column:mime_type;type:varchar(64);not null;default:'text/plain'" json:"mime_type"`
	Content  string    `gorm:"column:content;type:text;not null" json:"content"`
	SentAt   time.Time `gorm:"column:sent_at;not null" json:"sent_at"`
	HasRead  bool      `gorm:"column:has_read;not null;default:false;index:idx_to_read" json:"has_read"`
}

func (ChatMessage) TableName() string { return "chat_message" }

// SessionSummary 会话列表项（由 chat_message 聚合得出，不落库）。
type SessionSummary struct {
	PeerID        string `json:"peer_id"`
	Phone         string `json:"phone"`
	Avatar        string `json:"avatar"`
	UnreadCount   int64  `json:"unread_count"`
	LatestID      int64  `json:"latest_id,string"`
	LatestPreview string `json:"latest_preview"`
}
