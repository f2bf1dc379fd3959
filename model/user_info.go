package model

import "time"

// UserInfo 用户表。
// ID 为对外暴露的不透明用户标识（uuid），手机号唯一；除头像与推送 token 外创建后不再修改。
type UserInfo struct {
	ID        string    `gorm:"column:id;type:char(36);primaryKey;comment:用户id" json:"id"`
	Phone     string    `gorm:"column:phone;type:varchar(32);not null;uniqueIndex:uidx_phone;comment:手机号" json:"phone"`
	Password  string    `gorm:"column:password;type:varchar(255);not null;comment:bcrypt 密码" json:"-"`
	Avatar    string    `gorm:"column:avatar;type:varchar(512);not null;default:'';comment:头像地址" json:"avatar"`
	PushToken string    `gorm:"column:push_token;type:varchar(512);not null;default:'';comment:FCM 设备 token" json:"-"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"-"`
}

func (UserInfo) TableName() string { return "user_info" }

// UserRelationType 搜索用户时返回的与当前用户的关系。
type UserRelationType string

const (
	RelationMyself     UserRelationType = "Myself"
	RelationFriend     UserRelationType = "Friend"
	RelationRequesting UserRelationType = "Requesting" // 我发给对方、待处理
	RelationRequested  UserRelationType = "Requested"  // 对方发给我、待处理
	RelationStranger   UserRelationType = "Stranger"
)

// UserSearchResult 按手机号搜索用户的结果。
type UserSearchResult struct {
	ID     string           `json:"id"`
	Phone  string           `json:"phone"`
	Avatar string           `json:"avatar"`
	Typ    UserRelationType `json:"typ"`
}
