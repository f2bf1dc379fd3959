package svc

import (
	"context"
	"io"
	"strings"

	"ChatRelay/apps/connect/internal/notifier"
	"ChatRelay/apps/connect/internal/repository"
	"ChatRelay/model"
	"ChatRelay/pkg/logger"
	pkgminio "ChatRelay/pkg/minio"
)

const avatarPathPrefix = "avatars/"

// ObjectUploader 对象存储上传，*pkgminio.Client 实现了该接口
type ObjectUploader interface {
	Upload(ctx context.Context, reader io.Reader, size int64, opts pkgminio.UploadOptions) (*pkgminio.UploadResult, error)
	Delete(ctx context.Context, objectName string) error
}

// UserService 用户资料：头像与推送 token
type UserService struct {
	userRepo repository.IUserRepository
	notifier notifier.Notifier
	uploader ObjectUploader
}

// NewUserService 创建用户服务，uploader 为 nil 表示未启用对象存储
func NewUserService(userRepo repository.IUserRepository, n notifier.Notifier, uploader ObjectUploader) *UserService {
	return &UserService{
		userRepo: userRepo,
		notifier: n,
		uploader: uploader,
	}
}

// Profile 查询用户资料
func (s *UserService) Profile(ctx context.Context, userID string) (*model.UserInfo, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, persistenceError(err)
	}
	return user, nil
}

// UpdatePushToken 登记设备推送 token，空字符串表示注销推送
func (s *UserService) UpdatePushToken(ctx context.Context, userID, token string) error {
	if err := s.notifier.UpdateToken(ctx, userID, strings.TrimSpace(token)); err != nil {
		if isNotFound(err) {
			return ErrUserNotFound
		}
		return persistenceError(err)
	}
	return nil
}

// UploadAvatar 上传头像到对象存储并更新用户头像地址
func (s *UserService) UploadAvatar(ctx context.Context, userID string, reader io.Reader, size int64) (string, error) {
	if s.uploader == nil {
		return "", ErrUploadNotConfigured
	}
	result, err := s.uploader.Upload(ctx, reader, size, pkgminio.UploadOptions{
		PathPrefix: avatarPathPrefix,
		Metadata:   map[string]string{"user-id": userID},
	})
	if err != nil {
		logger.Warn(ctx, "头像上传失败",
			logger.String("user_id", userID),
			logger.ErrorField("error", err),
		)
		return "", err
	}
	if err := s.userRepo.UpdateAvatar(ctx, userID, result.URL); err != nil {
		// 头像地址没写进去，刚上传的对象就成了孤儿
		if delErr := s.uploader.Delete(ctx, result.ObjectName); delErr != nil {
			logger.Warn(ctx, "清理孤儿头像对象失败",
				logger.String("object", result.ObjectName),
				logger.ErrorField("error", delErr),
			)
		}
		if isNotFound(err) {
			return "", ErrUserNotFound
		}
		return "", persistenceError(err)
	}
	return result.URL, nil
}
