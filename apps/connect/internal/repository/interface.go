package repository

import (
	"context"

	"ChatRelay/model"
)

// ==================== 用户 Repository ====================

// IUserRepository 用户数据访问接口
type IUserRepository interface {
	// Create 创建用户，手机号冲突返回 ErrDuplicateKey
	Create(ctx context.Context, user *model.UserInfo) error

	// GetByID 按用户 id 查询，不存在返回 ErrRecordNotFound
	GetByID(ctx context.Context, id string) (*model.UserInfo, error)

	// GetByPhone 按手机号查询，不存在返回 ErrRecordNotFound
	GetByPhone(ctx context.Context, phone string) (*model.UserInfo, error)

	// BatchGetByIDs 批量查询，不存在的 id 不出现在结果中
	BatchGetByIDs(ctx context.Context, ids []string) ([]*model.UserInfo, error)

	// UpdateAvatar 更新头像
	UpdateAvatar(ctx context.Context, id, avatar string) error

	// UpdatePushToken 更新设备推送 token
	UpdatePushToken(ctx context.Context, id, token string) error
}

// ==================== 好友申请 Repository ====================

// IFriendRepository 好友申请数据访问接口
type IFriendRepository interface {
	// Upsert 有序 (from,to) 不存在则插入，存在则把状态重置为 Pending，返回行 id
	Upsert(ctx context.Context, fromID, toID string) (int64, error)

	// GetByID 查询申请，不存在返回 ErrRecordNotFound
	GetByID(ctx context.Context, id int64) (*model.FriendRequest, error)

	// Transition 仅当当前状态为 Pending 时更新为 status，返回是否发生了变更
	Transition(ctx context.Context, id int64, status model.FriendRequestStatus) (bool, error)

	// ListPending 发给 toID 的待处理申请（附申请人资料），新的在前
	ListPending(ctx context.Context, toID string) ([]*model.PendingFriendRequest, error)

	// CountPending 发给 toID 的待处理申请数
	CountPending(ctx context.Context, toID string) (int64, error)

	// ListFriends 已通过的好友（任一方向），附对方发给自己的未读数
	ListFriends(ctx context.Context, userID string, limit, offset int) ([]*model.Friend, error)

	// ListBetween 两人之间任一方向的申请
	ListBetween(ctx context.Context, a, b string) ([]*model.FriendRequest, error)
}

// ==================== 聊天消息 Repository ====================

// IChatRepository 聊天消息数据访问接口
type IChatRepository interface {
	// Insert 落库并返回完整行（雪花 id 与发送时间由仓储生成）
	Insert(ctx context.Context, fromID, toID, mimeType, content string) (*model.ChatMessage, error)

	// GetByID 查询单条消息，不存在返回 ErrRecordNotFound
	GetByID(ctx context.Context, id int64) (*model.ChatMessage, error)

	// History 两人之间 id < before（before<=0 表示最新）的最近 limit 条，按 id 升序返回
	History(ctx context.Context, self, other string, limit int, before int64) ([]*model.ChatMessage, error)

	// MarkReadUpTo 把 author 发给 reader、id <= maxID 的未读消息置为已读，返回影响行数
	MarkReadUpTo(ctx context.Context, reader, author string, maxID int64) (int64, error)

	// MarkRead 接收方为 reader 且未读时置为已读，返回是否发生了变更
	MarkRead(ctx context.Context, reader string, id int64) (bool, error)

	// Sessions 按最近一条消息倒序的会话列表
	Sessions(ctx context.Context, userID string, limit, offset int) ([]*model.SessionSummary, error)
}

// ==================== 登录态 / 在线状态 Repository ====================

// ISessionRepository 登录态与在线状态（Redis）
type ISessionRepository interface {
	// StoreAccessToken 保存 md5(token)，登出或过期前有效
	StoreAccessToken(ctx context.Context, userID, token string) error

	// VerifyAccessToken token 与缓存一致返回 true；key 不存在返回 false；Redis 异常返回 error
	VerifyAccessToken(ctx context.Context, userID, token string) (bool, error)

	// DeleteAccessToken 删除登录态
	DeleteAccessToken(ctx context.Context, userID string) error

	// MarkOnline / MarkOffline / TouchActive 在线状态与最近活跃时间
	MarkOnline(ctx context.Context, userID string) error
	MarkOffline(ctx context.Context, userID string) error
	TouchActive(ctx context.Context, userID string) error
}
