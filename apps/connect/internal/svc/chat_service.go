package svc

import (
	"context"
	"strings"

	"ChatRelay/apps/connect/internal/repository"
	"ChatRelay/config"
	"ChatRelay/model"
)

// ChatService 聊天记录与已读回执。
// 拉取历史是批量置已读的唯一途径：返回一页后，对方发给自己、id 不超过本页最大 id 的消息全部置为已读。
type ChatService struct {
	chatRepo    repository.IChatRepository
	pageSize    int
	maxPageSize int
}

// NewChatService 创建聊天记录服务
func NewChatService(chatRepo repository.IChatRepository, cfg config.SessionConfig) *ChatService {
	pageSize := cfg.HistoryPageSize
	if pageSize <= 0 {
		pageSize = defaultListLimit
	}
	maxPageSize := cfg.HistoryMaxPageSize
	if maxPageSize < pageSize {
		maxPageSize = pageSize
	}
	return &ChatService{
		chatRepo:    chatRepo,
		pageSize:    pageSize,
		maxPageSize: maxPageSize,
	}
}

// History 返回 self 与 other 之间 id < before 的最近一页（before<=0 为最新一页），页内按 id 升序。
// 空页不标记任何消息；重复拉取同一页只返回已读状态，不会再产生写入。
func (s *ChatService) History(ctx context.Context, self, other string, limit int, before int64) ([]*model.ChatMessage, error) {
	other = strings.TrimSpace(other)
	if other == "" {
		return nil, ErrInvalidArgument
	}
	limit, _ = clampPage(limit, 0, s.pageSize, s.maxPageSize)

	page, err := s.chatRepo.History(ctx, self, other, limit, before)
	if err != nil {
		return nil, persistenceError(err)
	}
	if len(page) == 0 {
		return []*model.ChatMessage{}, nil
	}

	maxID := page[len(page)-1].ID
	if _, err := s.chatRepo.MarkReadUpTo(ctx, self, other, maxID); err != nil {
		return nil, persistenceError(err)
	}
	for _, m := range page {
		if m.FromID == other && m.ToID == self {
			m.HasRead = true
		}
	}
	return page, nil
}

// MarkAsRead 单条消息已读回执，只有接收方可以确认。返回是否发生了 false -> true 的变更。
func (s *ChatService) MarkAsRead(ctx context.Context, self string, id int64) (bool, error) {
	if id <= 0 {
		return false, ErrInvalidArgument
	}
	msg, err := s.chatRepo.GetByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return false, ErrMessageNotFound
		}
		return false, persistenceError(err)
	}
	if msg.ToID != self {
		return false, ErrNotMessageRecipient
	}
	changed, err := s.chatRepo.MarkRead(ctx, self, id)
	if err != nil {
		return false, persistenceError(err)
	}
	return changed, nil
}

// Sessions 会话列表：每个对端的未读数与最近一条消息预览
func (s *ChatService) Sessions(ctx context.Context, userID string, limit, offset int) ([]*model.SessionSummary, error) {
	limit, offset = clampPage(limit, offset, defaultListLimit, maxListLimit)
	list, err := s.chatRepo.Sessions(ctx, userID, limit, offset)
	if err != nil {
		return nil, persistenceError(err)
	}
	if list == nil {
		list = []*model.SessionSummary{}
	}
	return list, nil
}
