package handler

import (
	"context"

	"ChatRelay/apps/connect/internal/dto"
	"ChatRelay/apps/connect/internal/middleware"
	"ChatRelay/apps/connect/internal/protocol"
	"ChatRelay/apps/connect/internal/svc"
	"ChatRelay/consts"
	"ChatRelay/pkg/result"

	"github.com/gin-gonic/gin"
)

// FriendHandler 好友处理器，与 WebSocket 上的 AddFriend/Accept/Reject/FriendRequests 帧共用同一套服务
type FriendHandler struct {
	friendService svc.IFriendService
}

// NewFriendHandler 创建好友处理器
func NewFriendHandler(friendService svc.IFriendService) *FriendHandler {
	return &FriendHandler{friendService: friendService}
}

// SearchUser 按手机号搜索用户，返回与当前用户的关系
// GET /api/v1/auth/users?phone=
func (h *FriendHandler) SearchUser(c *gin.Context) {
	ctx := middleware.NewContextWithGin(c)
	userID, ok := middleware.GetUserID(c)
	if !ok {
		result.Fail(c, nil, consts.CodeUnauthorized)
		return
	}

	var req dto.SearchUserRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		result.Fail(c, nil, consts.CodeParamError)
		return
	}

	res, err := h.friendService.SearchUser(ctx, userID, req.Phone)
	if err != nil {
		failWithError(c, ctx, err, "搜索用户服务内部错误")
		return
	}
	result.Success(c, res)
}

// GetFriends 好友列表（附带未读数）
// GET /api/v1/auth/friends?limit=&offset=
func (h *FriendHandler) GetFriends(c *gin.Context) {
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

	friends, err := h.friendService.Friends(ctx, userID, req.Limit, req.Offset)
	if err != nil {
		failWithError(c, ctx, err, "获取好友列表服务内部错误")
		return
	}
	result.Success(c, friends)
}

// SendFriendRequest 发送好友申请
// POST /api/v1/auth/friends/requests
func (h *FriendHandler) SendFriendRequest(c *gin.Context) {
	ctx := middleware.NewContextWithGin(c)
	userID, ok := middleware.GetUserID(c)
	if !ok {
		result.Fail(c, nil, consts.CodeUnauthorized)
		return
	}

	// 1. 绑定请求数据
	var req dto.SendFriendRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		result.Fail(c, nil, consts.CodeParamError)
		return
	}

	// 2. 调用服务层，对端在线时会收到 System/FriendRequest
	id, err := h.friendService.AddFriendRequest(ctx, userID, req.FriendID)
	if err != nil {
		failWithError(c, ctx, err, "发送好友申请服务内部错误")
		return
	}

	result.Success(c, &dto.SendFriendRequestResponse{ID: id})
}

// GetFriendRequests 收到的待处理好友申请
// GET /api/v1/auth/friends/requests
func (h *FriendHandler) GetFriendRequests(c *gin.Context) {
	ctx := middleware.NewContextWithGin(c)
	userID, ok := middleware.GetUserID(c)
	if !ok {
		result.Fail(c, nil, consts.CodeUnauthorized)
		return
	}

	list, err := h.friendService.PendingFriendRequests(ctx, userID)
	if err != nil {
		failWithError(c, ctx, err, "获取好友申请列表服务内部错误")
		return
	}
	result.Success(c, list)
}

// CountFriendRequests 待处理好友申请数
// GET /api/v1/auth/friends/requests/count
func (h *FriendHandler) CountFriendRequests(c *gin.Context) {
	ctx := middleware.NewContextWithGin(c)
	userID, ok := middleware.GetUserID(c)
	if !ok {
		result.Fail(c, nil, consts.CodeUnauthorized)
		return
	}

	count, err := h.friendService.CountPending(ctx, userID)
	if err != nil {
		failWithError(c, ctx, err, "统计好友申请服务内部错误")
		return
	}
	result.Success(c, &dto.CountResponse{Count: count})
}

// AcceptFriendRequest 同意好友申请
// PUT /api/v1/auth/friends/requests/:id/accept
func (h *FriendHandler) AcceptFriendRequest(c *gin.Context) {
	h.resolve(c, h.friendService.AcceptFriendRequest, "同意好友申请服务内部错误")
}

// RejectFriendRequest 拒绝好友申请
// PUT /api/v1/auth/friends/requests/:id/reject
func (h *FriendHandler) RejectFriendRequest(c *gin.Context) {
	h.resolve(c, h.friendService.RejectFriendRequest, "拒绝好友申请服务内部错误")
}

func (h *FriendHandler) resolve(c *gin.Context, action func(ctx context.Context, caller string, id int64) error, logMsg string) {
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

	if err := action(ctx, userID, id); err != nil {
		failWithError(c, ctx, err, logMsg)
		return
	}
	result.Success(c, &dto.SendFriendRequestResponse{ID: id})
}
