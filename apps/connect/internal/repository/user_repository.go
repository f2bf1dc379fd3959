package repository

import (
	"context"

	"ChatRelay/model"

	"gorm.io/gorm"
)

// userRepositoryImpl 用户数据访问层实现
type userRepositoryImpl struct {
	db *gorm.DB
}

// NewUserRepository 创建用户仓储实例
func NewUserRepository(db *gorm.DB) IUserRepository {
	return &userRepositoryImpl{db: db}
}

func (r *userRepositoryImpl) Create(ctx context.Context, user *model.UserInfo) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return WrapDBError(err)
	}
	return nil
}

func (r *userRepositoryImpl) GetByID(ctx context.Context, id string) (*model.UserInfo, error) {
	var user model.UserInfo
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, WrapDBError(err)
	}
	return &user, nil
}

func (r *userRepositoryImpl) GetByPhone(ctx context.Context, phone string) (*model.UserInfo, error) {
	var user model.UserInfo
	if err := r.db.WithContext(ctx).Where("phone = ?", phone).First(&user).Error; err != nil {
		return nil, WrapDBError(err)
	}
	return &user, nil
}

// BatchGetByIDs 结果按传入 ids 顺序排列
func (r *userRepositoryImpl) BatchGetByIDs(ctx context.Context, ids []string) ([]*model.UserInfo, error) {
	if len(ids) == 0 {
		return []*model.UserInfo{}, nil
	}
	var users []*model.UserInfo
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, WrapDBError(err)
	}

	byID := make(map[string]*model.UserInfo, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	ordered := make([]*model.UserInfo, 0, len(users))
	for _, id := range ids {
		if u, ok := byID[id]; ok {
			ordered = append(ordered, u)
			delete(byID, id)
		}
	}
	return ordered, nil
}

func (r *userRepositoryImpl) UpdateAvatar(ctx context.Context, id, avatar string) error {
	return r.updateColumn(ctx, id, "avatar", avatar)
}

func (r *userRepositoryImpl) UpdatePushToken(ctx context.Context, id, token string) error {
	return r.updateColumn(ctx, id, "push_token", token)
}

func (r *userRepositoryImpl) updateColumn(ctx context.Context, id, column, value string) error {
	result := r.db.WithContext(ctx).
		Model(&model.UserInfo{}).
		Where("id = ?", id).
		Update(column, value)
	if result.Error != nil {
		return WrapDBError(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}
