package repository

import (
	"context"
	"time"

	"ChatRelay/model"
	"ChatRelay/pkg/util"

	"gorm.io/gorm"
)

const previewMaxRunes = 64

// chatRepositoryImpl 聊天消息数据访问层实现
type chatRepositoryImpl struct {
	db *gorm.DB
}

// NewChatRepository 创建聊天消息仓储实例
func NewChatRepository(db *gorm.DB) IChatRepository {
	return &chatRepositoryImpl{db: db}
}

func (r *chatRepositoryImpl) Insert(ctx context.Context, fromID, toID, mimeType, content string) (*model.ChatMessage, error) {
	msg := newChatMessage(fromID, toID, mimeType, content)
	if err := r.db.WithContext(ctx).Create(msg).Error; err != nil {
		return nil, WrapDBError(err)
	}
	return msg, nil
}

func (r *chatRepositoryImpl) GetByID(ctx context.Context, id int64) (*model.ChatMessage, error) {
	var msg model.ChatMessage
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&msg).Error; err != nil {
		return nil, WrapDBError(err)
	}
	return &msg, nil
}

// History 先按 id 倒序取一页，再翻转为升序
func (r *chatRepositoryImpl) History(ctx context.Context, self, other string, limit int, before int64) ([]*model.ChatMessage, error) {
	query := r.db.WithContext(ctx).
		Where("((from_id = ? AND to_id = ?) OR (from_id = ? AND to_id = ?))", self, other, other, self)
	if before > 0 {
		query = query.Where("id < ?", before)
	}

	var page []*model.ChatMessage
	if err := query.Order("id DESC").Limit(limit).Find(&page).Error; err != nil {
		return nil, WrapDBError(err)
	}
	reverse(page)
	return page, nil
}

func (r *chatRepositoryImpl) MarkReadUpTo(ctx context.Context, reader, author string, maxID int64) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.ChatMessage{}).
		Where("to_id = ? AND from_id = ? AND id <= ? AND has_read = ?", reader, author, maxID, false).
		Update("has_read", true)
	if result.Error != nil {
		return 0, WrapDBError(result.Error)
	}
	return result.RowsAffected, nil
}

func (r *chatRepositoryImpl) MarkRead(ctx context.Context, reader string, id int64) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.ChatMessage{}).
		Where("id = ? AND to_id = ? AND has_read = ?", id, reader, false).
		Update("has_read", true)
	if result.Error != nil {
		return false, WrapDBError(result.Error)
	}
	return result.RowsAffected > 0, nil
}

type sessionAggregate struct {
	PeerID      string
	LatestID    int64
	UnreadCount int64
}

// Sessions 聚合一条 SQL 得到每个会话的最新 id 与未读数，再批量补齐预览与对方资料
func (r *chatRepositoryImpl) Sessions(ctx context.Context, userID string, limit, offset int) ([]*model.SessionSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var aggs []sessionAggregate
	err := r.db.WithContext(ctx).Raw(`
		SELECT t.peer_id AS peer_id,
			MAX(t.id) AS latest_id,
			SUM(CASE WHEN t.to_id = ? AND t.has_read = ? THEN 1 ELSE 0 END) AS unread_count
		FROM (
			SELECT id, to_id, has_read,
				CASE WHEN from_id = ? THEN to_id ELSE from_id END AS peer_id
			FROM chat_message
			WHERE from_id = ? OR to_id = ?
		) t
		GROUP BY t.peer_id
		ORDER BY latest_id DESC
		LIMIT ? OFFSET ?`,
		userID, false,
		userID,
		userID, userID,
		limit, offset,
	).Scan(&aggs).Error
	if err != nil {
		return nil, WrapDBError(err)
	}
	if len(aggs) == 0 {
		return []*model.SessionSummary{}, nil
	}

	latestIDs := make([]int64, 0, len(aggs))
	peerIDs := make([]string, 0, len(aggs))
	for _, a := range aggs {
		latestIDs = append(latestIDs, a.LatestID)
		peerIDs = append(peerIDs, a.PeerID)
	}

	var latest []*model.ChatMessage
	if err := r.db.WithContext(ctx).Where("id IN ?", latestIDs).Find(&latest).Error; err != nil {
		return nil, WrapDBError(err)
	}
	var peers []*model.UserInfo
	if err := r.db.WithContext(ctx).Where("id IN ?", peerIDs).Find(&peers).Error; err != nil {
		return nil, WrapDBError(err)
	}

	return buildSessions(aggs, latest, peers), nil
}

func buildSessions(aggs []sessionAggregate, latest []*model.ChatMessage, peers []*model.UserInfo) []*model.SessionSummary {
	msgByID := make(map[int64]*model.ChatMessage, len(latest))
	for _, m := range latest {
		msgByID[m.ID] = m
	}
	userByID := make(map[string]*model.UserInfo, len(peers))
	for _, u := range peers {
		userByID[u.ID] = u
	}

	out := make([]*model.SessionSummary, 0, len(aggs))
	for _, a := range aggs {
		s := &model.SessionSummary{
			PeerID:      a.PeerID,
			UnreadCount: a.UnreadCount,
			LatestID:    a.LatestID,
		}
		if m, ok := msgByID[a.LatestID]; ok {
			s.LatestPreview = preview(m)
		}
		if u, ok := userByID[a.PeerID]; ok {
			s.Phone = u.Phone
			s.Avatar = u.Avatar
		}
		out = append(out, s)
	}
	return out
}

func newChatMessage(fromID, toID, mimeType, content string) *model.ChatMessage {
	if mimeType == "" {
		mimeType = model.DefaultMimeType
	}
	return &model.ChatMessage{
		ID:       util.NextID(),
		FromID:   fromID,
		ToID:     toID,
		MimeType: mimeType,
		Content:  content,
		SentAt:   time.Now().UTC().Truncate(time.Millisecond),
	}
}

// preview 文本消息截断展示，非文本显示类型占位
func preview(m *model.ChatMessage) string {
	return Preview(m.MimeType, m.Content)
}

// Preview 会话列表与推送通知共用的消息摘要
func Preview(mimeType, content string) string {
	if mimeType != "" && mimeType != model.DefaultMimeType {
		return "[" + mimeType + "]"
	}
	runes := []rune(content)
	if len(runes) <= previewMaxRunes {
		return content
	}
	return string(runes[:previewMaxRunes]) + "…"
}

func reverse(list []*model.ChatMessage) {
	for i, j := 0, len(list)-1; i < j; i, j = i+1, j-1 {
		list[i], list[j] = list[j], list[i]
	}
}
