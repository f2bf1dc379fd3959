// Package notifier 离线推送：对端不在线时把聊天消息或 RTC Offer 转成系统通知。
package notifier

import (
	"context"
	"errors"

	"ChatRelay/apps/connect/internal/repository"
)

// ErrUnavailable 推送通道熔断或未配置。
var ErrUnavailable = errors.New("notifier unavailable")

// Notifier 推送通道。GetToken 返回 (token, 是否存在, err)。
type Notifier interface {
	GetToken(ctx context.Context, userID string) (string, bool, error)
	UpdateToken(ctx context.Context, userID, token string) error
	SendNotification(ctx context.Context, token, title, body string, data map[string]string) error
}

// userTokens 设备 token 存在用户表的 push_token 列上，FCM 与内存实现共用。
type userTokens struct {
	users repository.IUserRepository
}

func (t userTokens) GetToken(ctx context.Context, userID string) (string, bool, error) {
	u, err := t.users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return u.PushToken, u.PushToken != "", nil
}

func (t userTokens) UpdateToken(ctx context.Context, userID, token string) error {
	return t.users.UpdatePushToken(ctx, userID, token)
}
