package repository

import (
	"context"
	"time"

	"ChatRelay/model"
	"ChatRelay/pkg/util"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// friendRepositoryImpl 好友申请数据访问层实现
type friendRepositoryImpl struct {
	db *gorm.DB
}

// NewFriendRepository 创建好友申请仓储实例
func NewFriendRepository(db *gorm.DB) IFriendRepository {
	return &friendRepositoryImpl{db: db}
}

// Upsert INSERT ... ON DUPLICATE KEY UPDATE status='Pending'
// 冲突时保留原 id，因此再按唯一键读回 id。
func (r *friendRepositoryImpl) Upsert(ctx context.Context, fromID, toID string) (int64, error) {
	now := time.Now()
	req := &model.FriendRequest{
		ID:        util.NextID(),
		FromID:    fromID,
		ToID:      toID,
		Status:    model.FriendRequestPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "from_id"}, {Name: "to_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"status":     model.FriendRequestPending,
			"updated_at": now,
		}),
	}).Create(req).Error
	if err != nil {
		return 0, WrapDBError(err)
	}

	var ids []int64
	err = r.db.WithContext(ctx).
		Model(&model.FriendRequest{}).
		Where("from_id = ? AND to_id = ?", fromID, toID).
		Limit(1).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, WrapDBError(err)
	}
	if len(ids) == 0 {
		return 0, ErrRecordNotFound
	}
	return ids[0], nil
}

func (r *friendRepositoryImpl) GetByID(ctx context.Context, id int64) (*model.FriendRequest, error) {
	var req model.FriendRequest
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&req).Error; err != nil {
		return nil, WrapDBError(err)
	}
	return &req, nil
}

// Transition 条件更新，状态机的并发安全由 WHERE status='Pending' 保证
func (r *friendRepositoryImpl) Transition(ctx context.Context, id int64, status model.FriendRequestStatus) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.FriendRequest{}).
		Where("id = ? AND status = ?", id, model.FriendRequestPending).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return false, WrapDBError(result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *friendRepositoryImpl) ListPending(ctx context.Context, toID string) ([]*model.PendingFriendRequest, error) {
	var list []*model.PendingFriendRequest
	err := r.db.WithContext(ctx).
		Table("friend_request AS f").
		Select("f.id, f.from_id, u.phone, u.avatar").
		Joins("JOIN user_info AS u ON u.id = f.from_id").
		Where("f.to_id = ? AND f.status = ?", toID, model.FriendRequestPending).
		Order("f.updated_at DESC, f.id DESC").
		Scan(&list).Error
	if err != nil {
		return nil, WrapDBError(err)
	}
	return list, nil
}

func (r *friendRepositoryImpl) CountPending(ctx context.Context, toID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.FriendRequest{}).
		Where("to_id = ? AND status = ?", toID, model.FriendRequestPending).
		Count(&count).Error
	if err != nil {
		return 0, WrapDBError(err)
	}
	return count, nil
}

// ListFriends 双向申请都通过时对方只出现一次
func (r *friendRepositoryImpl) ListFriends(ctx context.Context, userID string, limit, offset int) ([]*model.Friend, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var friends []*model.Friend
	err := r.db.WithContext(ctx).Raw(`
		SELECT u.id, u.phone, u.avatar,
			(SELECT COUNT(*) FROM chat_message m
				WHERE m.from_id = u.id AND m.to_id = ? AND m.has_read = ?) AS unread_count
		FROM user_info u
		WHERE u.id IN (
			SELECT CASE WHEN f.from_id = ? THEN f.to_id ELSE f.from_id END
			FROM friend_request f
			WHERE (f.from_id = ? OR f.to_id = ?) AND f.status = ?
		)
		ORDER BY u.phone
		LIMIT ? OFFSET ?`,
		userID, false,
		userID,
		userID, userID, model.FriendRequestAccepted,
		limit, offset,
	).Scan(&friends).Error
	if err != nil {
		return nil, WrapDBError(err)
	}
	return friends, nil
}

func (r *friendRepositoryImpl) ListBetween(ctx context.Context, a, b string) ([]*model.FriendRequest, error) {
	var list []*model.FriendRequest
	err := r.db.WithContext(ctx).
		Where("(from_id = ? AND to_id = ?) OR (from_id = ? AND to_id = ?)", a, b, b, a).
		Find(&list).Error
	if err != nil {
		return nil, WrapDBError(err)
	}
	return list, nil
}
