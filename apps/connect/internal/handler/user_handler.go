package handler

import (
	"ChatRelay/apps/connect/internal/dto"
	"ChatRelay/apps/connect/internal/middleware"
	"ChatRelay/apps/connect/internal/svc"
	"ChatRelay/consts"
	"ChatRelay/pkg/logger"
	"ChatRelay/pkg/result"

	"github.com/gin-gonic/gin"
)

// avatarFormField 头像上传的 multipart 字段名
const avatarFormField = "file"

// UserHandler 用户资料
type UserHandler struct {
	userService svc.IUserService
}

// NewUserHandler 创建用户处理器
func NewUserHandler(userService svc.IUserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// GetProfile 获取当前用户资料
// GET /api/v1/auth/user/profile
func (h *UserHandler) GetProfile(c *gin.Context) {
	ctx := middleware.NewContextWithGin(c)
	userID, ok := middleware.GetUserID(c)
	if !ok {
		result.Fail(c, nil, consts.CodeUnauthorized)
		return
	}

	user, err := h.userService.Profile(ctx, userID)
	if err != nil {
		failWithError(c, ctx, err, "获取用户资料服务内部错误")
		return
	}
	result.Success(c, dto.ConvertUserInfo(user))
}

// UpdatePushToken 登记设备推送 token
// PUT /api/v1/auth/user/push-token
func (h *UserHandler) UpdatePushToken(c *gin.Context) {
	ctx := middleware.NewContextWithGin(c)
	userID, ok := middleware.GetUserID(c)
	if !ok {
		result.Fail(c, nil, consts.CodeUnauthorized)
		return
	}

	// 1. 绑定请求数据
	var req dto.UpdatePushTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		result.Fail(c, nil, consts.CodeParamError)
		return
	}

	// 2. 调用服务层
	if err := h.userService.UpdatePushToken(ctx, userID, req.Token); err != nil {
		failWithError(c, ctx, err, "更新推送 token 服务内部错误")
		return
	}

	result.Success(c, nil)
}

// UploadAvatar 上传头像（multipart/form-data，字段 file）
// POST /api/v1/auth/user/avatar
func (h *UserHandler) UploadAvatar(c *gin.Context) {
	ctx := middleware.NewContextWithGin(c)
	userID, ok := middleware.GetUserID(c)
	if !ok {
		result.Fail(c, nil, consts.CodeUnauthorized)
		return
	}

	// 1. 读取上传文件
	fileHeader, err := c.FormFile(avatarFormField)
	if err != nil {
		result.Fail(c, nil, consts.CodeParamError)
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		logger.Warn(ctx, "打开上传文件失败", logger.ErrorField("error", err))
		result.Fail(c, nil, consts.CodeBodyError)
		return
	}
	defer file.Close()

	// 2. 上传并更新头像地址
	url, err := h.userService.UploadAvatar(ctx, userID, file, fileHeader.Size)
	if err != nil {
		failWithError(c, ctx, err, "上传头像服务内部错误")
		return
	}

	result.Success(c, &dto.UploadAvatarResponse{AvatarURL: url})
}
