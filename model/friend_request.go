package model

import "time"

// FriendRequestStatus 好友申请状态：Pending -> Accepted | Rejected。
type FriendRequestStatus string

const (
	FriendRequestPending  FriendRequestStatus = "Pending"
	FriendRequestAccepted FriendRequestStatus = "Accepted"
	FriendRequestRejected FriendRequestStatus = "Rejected"
)

// FriendRequest 好友申请表。
// 约束：uidx_from_to 保证同一有序 (from,to) 只有一行，重复申请只会把状态重置为 Pending。
type FriendRequest struct {
	ID        int64               `gorm:"column:id;primaryKey;autoIncrement:false;comment:雪花id" json:"id,string"`
	FromID    string              `gorm:"column:from_id;type:char(36);not null;uniqueIndex:uidx_from_to;comment:申请人" json:"from"`
	ToID      string              `gorm:"column:to_id;type:char(36);not null;uniqueIndex:uidx_from_to;index:idx_to_status;comment:被申请人" json:"to"`
	Status    FriendRequestStatus `gorm:"column:status;type:varchar(16);not null;default:'Pending';index:idx_to_status;comment:状态" json:"status"`
	CreatedAt time.Time           `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time           `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (FriendRequest) TableName() string { return "friend_request" }

// PendingFriendRequest 待处理申请列表项，附带申请人资料。
type PendingFriendRequest struct {
	ID     int64  `json:"id,string"`
	From   string `gorm:"column:from_id" json:"from"`
	Phone  string `json:"phone"`
	Avatar string `json:"avatar"`
}

// Friend 好友列表项。
type Friend struct {
	ID          string `json:"id"`
	Phone       string `json:"phone"`
	Avatar      string `json:"avatar"`
	UnreadCount int64  `json:"unread_count"`
}
