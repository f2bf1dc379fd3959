package notifier

import (
	"context"
	"sync"

	"ChatRelay/apps/connect/internal/repository"
	"ChatRelay/pkg/logger"
)

// Notification 一次推送记录。
type Notification struct {
	Token string
	Title string
	Body  string
	Data  map[string]string
}

// MemoryNotifier 只记录不外发，未配置 FCM 时使用，也用于测试断言。
type MemoryNotifier struct {
	userTokens

	mu   sync.Mutex
	sent []Notification
	// Err 非 nil 时 SendNotification 直接返回该错误
	Err error
}

var _ Notifier = (*MemoryNotifier)(nil)

// NewMemoryNotifier token 读写走 users
func NewMemoryNotifier(users repository.IUserRepository) *MemoryNotifier {
	return &MemoryNotifier{userTokens: userTokens{users: users}}
}

func (n *MemoryNotifier) SendNotification(ctx context.Context, token, title, body string, data map[string]string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.Err != nil {
		return n.Err
	}
	n.sent = append(n.sent, Notification{Token: token, Title: title, Body: body, Data: data})
	logger.Debug(ctx, "离线推送（内存）", logger.String("title", title))
	return nil
}

// Sent 已记录推送的快照
func (n *MemoryNotifier) Sent() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Notification, len(n.sent))
	copy(out, n.sent)
	return out
}
