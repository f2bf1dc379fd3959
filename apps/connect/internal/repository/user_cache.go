package repository

import (
	"context"
	"sync"
	"time"

	"ChatRelay/model"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// cachedUserRepository 进程内用户资料缓存。
// 推送、好友通知每次都要按 id 取手机号/头像/推送 token，热点用户命中本地缓存即可。
// 写操作前后各递增 gen，读穿透期间 gen 变化则不回填，避免旧行在失效之后被写回。
type cachedUserRepository struct {
	IUserRepository
	byID *expirable.LRU[string, model.UserInfo]

	mu  sync.Mutex
	gen uint64
}

// NewCachedUserRepository 包装 inner，size<=0 时直接返回 inner
func NewCachedUserRepository(inner IUserRepository, size int, ttl time.Duration) IUserRepository {
	if size <= 0 {
		return inner
	}
	return &cachedUserRepository{
		IUserRepository: inner,
		byID:            expirable.NewLRU[string, model.UserInfo](size, nil, ttl),
	}
}

// GetByID 返回副本，调用方修改不会污染缓存
func (r *cachedUserRepository) GetByID(ctx context.Context, id string) (*model.UserInfo, error) {
	if u, ok := r.byID.Get(id); ok {
		return &u, nil
	}
	gen := r.generation()
	user, err := r.IUserRepository.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if r.gen == gen {
		r.byID.Add(id, *user)
	}
	r.mu.Unlock()
	return user, nil
}

func (r *cachedUserRepository) UpdateAvatar(ctx context.Context, id, avatar string) error {
	r.invalidate(id)
	defer r.invalidate(id)
	return r.IUserRepository.UpdateAvatar(ctx, id, avatar)
}

func (r *cachedUserRepository) UpdatePushToken(ctx context.Context, id, token string) error {
	r.invalidate(id)
	defer r.invalidate(id)
	return r.IUserRepository.UpdatePushToken(ctx, id, token)
}

func (r *cachedUserRepository) generation() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gen
}

func (r *cachedUserRepository) invalidate(id string) {
	r.mu.Lock()
	r.gen++
	r.byID.Remove(id)
	r.mu.Unlock()
}
