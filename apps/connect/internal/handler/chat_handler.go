package handler

import (
	"ChatRelay/apps/connect/internal/dto"
	"ChatRelay/apps/connect/internal/middleware"
	"ChatRelay/apps/connect/internal/protocol"
	"ChatRelay/apps/connect/internal/svc"
	"ChatRelay/consts"
	"ChatRelay/pkg/result"

	"github.com/gin-gonic/gin"
)

// ChatHandler 聊天记录、已读回执与会话列表
type ChatHandler struct {
	chatService svc.IChatService
}

// NewChatHandler 创建聊天记录处理器
func NewChatHandler(chatService svc.IChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// GetMessages 拉取与 peer 的聊天记录，同时把对方发来的消息标记为已读
// GET /api/v1/auth/chat/messages?peer=&limit=&before=
func (h *ChatHandler) GetMessages(c *gin.Context) {
	ctx := middleware.NewContextWithGin(c)
	userID, ok := middleware.GetUserID(c)
	if !ok {
		result.Fail(c, nil, consts.CodeUnauthorized)
		return
	}

	// 1. 绑定查询参数
	var req dto.HistoryRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		result.Fail(c, nil, consts.CodeParamError)
		return
	}

	// 2. 调用服务层
	page, err := h.chatService.History(ctx, userID, req.Peer, req.Limit, req.Before)
	if err != nil {
		failWithError(c, ctx, err, "拉取聊天记录服务内部错误")
		return
	}

	result.Success(c, page)
}

// MarkRead 单条消息已读回执
// PUT /api/v1/auth/chat/messages/:id/read
func (h *ChatHandler) MarkRead(c *gin.Context) {
	ctx := middleware.NewContextWithGin(c)
	userID, ok := middleware.GetUserID(c)
	if !ok {
		result.Fail(c, nil, consts.CodeUnauthorized)
		return
	}

	id, err := protocol.ParseID(c.Param("id"))
	if err != nil {
		result.Fail(c, nil, consts.CodeParamError)
		return
	}

	changed, err := h.chatService.MarkAsRead(ctx, userID, id)
	if err != nil {
		failWithError(c, ctx, err, "标记已读服务内部错误")
		return
	}
	result.Success(c, &dto.MarkReadResponse{ID: id, Changed: changed})
}

// GetSessions 会话列表，按最近一条消息倒序
// GET /api/v1/auth/chat/sessions?limit=&offset=
func (h *ChatHandler) GetSessions(c *gin.Context) {
	ctx := middleware.NewContextWithGin(c)
	userID, ok := middleware.GetUserID(c)
	if !ok {
		result.Fail(c, nil, consts.CodeUnauthorized)
		return
	}

	var req dto.PageRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		result.Fail(c, nil, consts.CodeParamError)
		return
	}

	sessions, err := h.chatService.Sessions(ctx, userID, req.Limit, req.Offset)
	if err != nil {
		failWithError(c, ctx, err, "获取会话列表服务内部错误")
		return
	}
	result.Success(c, sessions)
}
