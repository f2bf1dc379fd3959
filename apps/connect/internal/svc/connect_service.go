package svc

import (
	"context"
	"strings"

	"ChatRelay/apps/connect/internal/repository"
	"ChatRelay/pkg/async"
	"ChatRelay/pkg/logger"
	"ChatRelay/pkg/util"
)

// Session 保存连接鉴权后的身份信息。
// 该结构会在整个连接生命周期中复用，避免重复解析 token。
type Session struct {
	UserID   string
	ClientIP string
}

// ConnectService 连接级业务：握手鉴权与在线状态维护。
type ConnectService struct {
	sessionRepo repository.ISessionRepository
}

// NewConnectService 创建业务服务实例。
func NewConnectService(sessionRepo repository.ISessionRepository) *ConnectService {
	return &ConnectService{sessionRepo: sessionRepo}
}

// Authenticate 校验 WebSocket 握手 token。
// 校验流程：
// 1. token 不能为空；
// 2. 解析 JWT，校验签名、有效期与 uid；
// 3. 校验 auth:at:{user_id} 中存储的 token md5，key 不存在说明已登出。
//
// 降级策略（Fail-Open）：
// - Redis 异常时退化为仅 JWT 校验，优先保证连接服务可用性；
// - 代价是登出后的旧 token 在 Redis 恢复前仍可连接。
func (s *ConnectService) Authenticate(ctx context.Context, token, clientIP string) (*Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrTokenRequired
	}

	claims, err := util.ParseToken(token)
	if err != nil {
		return nil, ErrTokenInvalid
	}

	ok, err := s.sessionRepo.VerifyAccessToken(ctx, claims.UserID, token)
	switch {
	case err != nil:
		logger.Warn(ctx, "连接鉴权读取 Redis 失败，降级为仅 JWT 校验",
			logger.String("user_id", claims.UserID),
			logger.ErrorField("error", err),
		)
	case !ok:
		return nil, ErrTokenInvalid
	}

	return &Session{
		UserID:   claims.UserID,
		ClientIP: strings.TrimSpace(clientIP),
	}, nil
}

// OnConnect 连接注册成功后标记在线。
func (s *ConnectService) OnConnect(ctx context.Context, session *Session) {
	userID := session.UserID
	async.RunSafe(ctx, func(ctx context.Context) {
		_ = s.sessionRepo.MarkOnline(ctx, userID)
	}, 0)
}

// OnActive 收到 ping 或业务帧时刷新活跃时间。
func (s *ConnectService) OnActive(ctx context.Context, session *Session) {
	userID := session.UserID
	async.RunSafe(ctx, func(ctx context.Context) {
		_ = s.sessionRepo.TouchActive(ctx, userID)
	}, 0)
}

// OnDisconnect 连接注销后标记离线。
func (s *ConnectService) OnDisconnect(ctx context.Context, session *Session) {
	userID := session.UserID
	async.RunSafe(ctx, func(ctx context.Context) {
		_ = s.sessionRepo.MarkOffline(ctx, userID)
	}, 0)
}
