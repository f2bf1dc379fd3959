package svc

import (
	"context"
	"encoding/json"
	"io"

	"ChatRelay/model"
)

// ==================== 连接服务接口 ====================

// IConnectService 握手鉴权与在线状态
type IConnectService interface {
	Authenticate(ctx context.Context, token, clientIP string) (*Session, error)
	OnConnect(ctx context.Context, session *Session)
	OnActive(ctx context.Context, session *Session)
	OnDisconnect(ctx context.Context, session *Session)
}

// ==================== 消息路由接口 ====================

// IRelay 聊天、RTC 信令与即时消息的转发
type IRelay interface {
	SendChat(ctx context.Context, from, to, mimeType, content string) (*model.ChatMessage, error)
	RelayRTC(ctx context.Context, from, to, typ string, payload json.RawMessage) error
	RelayMessage(ctx context.Context, from, to, content string) error
}

// ==================== 好友服务接口 ====================

// IFriendService 好友申请状态机与好友查询
type IFriendService interface {
	AddFriendRequest(ctx context.Context, from, to string) (int64, error)
	AcceptFriendRequest(ctx context.Context, caller string, id int64) error
	RejectFriendRequest(ctx context.Context, caller string, id int64) error
	PendingFriendRequests(ctx context.Context, to string) ([]*model.PendingFriendRequest, error)
	CountPending(ctx context.Context, to string) (int64, error)
	Friends(ctx context.Context, userID string, limit, offset int) ([]*model.Friend, error)
	SearchUser(ctx context.Context, self, phone string) (*model.UserSearchResult, error)
}

// ==================== 聊天记录接口 ====================

// IChatService 历史消息、已读回执与会话列表
type IChatService interface {
	History(ctx context.Context, self, other string, limit int, before int64) ([]*model.ChatMessage, error)
	MarkAsRead(ctx context.Context, self string, id int64) (bool, error)
	Sessions(ctx context.Context, userID string, limit, offset int) ([]*model.SessionSummary, error)
}

// ==================== 认证服务接口 ====================

// IAuthService 注册、登录、登出
type IAuthService interface {
	Signup(ctx context.Context, phone, password string) (*model.UserInfo, error)
	Login(ctx context.Context, phone, password string) (*LoginResult, error)
	Logout(ctx context.Context, userID string) error
}

// ==================== 用户服务接口 ====================

// IUserService 用户资料
type IUserService interface {
	Profile(ctx context.Context, userID string) (*model.UserInfo, error)
	UpdatePushToken(ctx context.Context, userID, token string) error
	UploadAvatar(ctx context.Context, userID string, reader io.Reader, size int64) (string, error)
}

var (
	_ IConnectService = (*ConnectService)(nil)
	_ IRelay          = (*Relay)(nil)
	_ IFriendService  = (*FriendService)(nil)
	_ IChatService    = (*ChatService)(nil)
	_ IAuthService    = (*AuthService)(nil)
	_ IUserService    = (*UserService)(nil)
)
