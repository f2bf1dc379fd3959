package svc

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"ChatRelay/apps/connect/internal/manager"
	"ChatRelay/apps/connect/internal/repository"
	"ChatRelay/model"
	"ChatRelay/pkg/logger"
	"ChatRelay/pkg/util"

	"golang.org/x/crypto/bcrypt"
)

var phonePattern = regexp.MustCompile(`^\+?[0-9]{6,20}$`)

const (
	minPasswordLen = 6
	maxPasswordLen = 72 // bcrypt 只使用前 72 字节
)

// LoginResult 登录成功返回的令牌与用户资料
type LoginResult struct {
	Token string          `json:"token"`
	User  *model.UserInfo `json:"user"`
}

// AuthService 注册、登录与登出。
// 登录态 = JWT + Redis 中的 md5(token)；登出删除 Redis 记录并把在线连接踢下线。
type AuthService struct {
	userRepo    repository.IUserRepository
	sessionRepo repository.ISessionRepository
	registry    manager.Registry
}

// NewAuthService 创建认证服务
func NewAuthService(userRepo repository.IUserRepository, sessionRepo repository.ISessionRepository, registry manager.Registry) *AuthService {
	return &AuthService{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		registry:    registry,
	}
}

// Signup 手机号注册
func (s *AuthService) Signup(ctx context.Context, phone, password string) (*model.UserInfo, error) {
	phone = strings.TrimSpace(phone)
	if !phonePattern.MatchString(phone) {
		return nil, ErrInvalidArgument
	}
	if len(password) < minPasswordLen || len(password) > maxPasswordLen {
		return nil, ErrInvalidArgument
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		logger.Error(ctx, "生成密码哈希失败",
			logger.ErrorField("error", err),
		)
		return nil, err
	}

	user := &model.UserInfo{
		ID:       util.NewUUID(),
		Phone:    phone,
		Password: string(hashedPassword),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, ErrUserAlreadyExist
		}
		logger.Error(ctx, "创建用户失败",
			logger.String("phone", util.MaskPhone(phone)),
			logger.ErrorField("error", err),
		)
		return nil, persistenceError(err)
	}

	logger.Info(ctx, "用户注册成功",
		logger.String("user_id", user.ID),
		logger.String("phone", util.MaskPhone(phone)),
	)
	return user, nil
}

// Login 手机号 + 密码登录，签发访问令牌并写入 Redis。
// Redis 写入失败不影响登录：失败的写入已进入 Kafka 重试队列，期间握手鉴权按 fail-open 处理。
func (s *AuthService) Login(ctx context.Context, phone, password string) (*LoginResult, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" || password == "" {
		return nil, ErrInvalidArgument
	}

	user, err := s.userRepo.GetByPhone(ctx, phone)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrUserNotFound
		}
		logger.Error(ctx, "查询用户失败",
			logger.String("phone", util.MaskPhone(phone)),
			logger.ErrorField("error", err),
		)
		return nil, persistenceError(err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrPasswordMismatch
	}

	token, err := util.GenerateToken(user.ID)
	if err != nil {
		logger.Error(ctx, "生成访问令牌失败",
			logger.ErrorField("error", err),
		)
		return nil, err
	}
	if err := s.sessionRepo.StoreAccessToken(ctx, user.ID, token); err != nil {
		logger.Error(ctx, "AccessToken 写入 Redis 失败",
			logger.String("user_id", user.ID),
			logger.ErrorField("error", err),
		)
	}

	logger.Info(ctx, "用户登录成功",
		logger.String("user_id", user.ID),
		logger.String("phone", util.MaskPhone(phone)),
	)
	return &LoginResult{Token: token, User: user}, nil
}

// Logout 删除登录态并注销在线连接。
// 注销只在这里发生一次：会话清理时 Unregister 返回 false，不会再触发离线回调，
// 因此离线标记也由这里负责。
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	if err := s.sessionRepo.DeleteAccessToken(ctx, userID); err != nil {
		logger.Error(ctx, "删除 AccessToken 失败",
			logger.String("user_id", userID),
			logger.ErrorField("error", err),
		)
	}
	if h := s.registry.Remove(userID); h != nil {
		h.Close()
		if err := s.sessionRepo.MarkOffline(ctx, userID); err != nil {
			logger.Warn(ctx, "登出标记离线失败",
				logger.String("user_id", userID),
				logger.ErrorField("error", err),
			)
		}
		logger.Info(ctx, "登出并断开在线连接",
			logger.String("user_id", userID),
		)
	}
	return nil
}
