package handler

import (
	"ChatRelay/apps/connect/internal/dto"
	"ChatRelay/apps/connect/internal/middleware"
	"ChatRelay/apps/connect/internal/svc"
	"ChatRelay/consts"
	"ChatRelay/pkg/result"

	"github.com/gin-gonic/gin"
)

// AuthHandler 注册、登录、登出
type AuthHandler struct {
	authService svc.IAuthService
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(authService svc.IAuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Signup 手机号注册接口
// POST /api/v1/public/user/signup
func (h *AuthHandler) Signup(c *gin.Context) {
	ctx := middleware.NewContextWithGin(c)

	// 1. 绑定请求数据
	var req dto.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// 参数错误由客户端输入导致,属于正常业务流程,不记录日志
		result.Fail(c, nil, consts.CodeParamError)
		return
	}

	// 2. 调用服务层
	user, err := h.authService.Signup(ctx, req.Phone, req.Password)
	if err != nil {
		failWithError(c, ctx, err, "注册服务内部错误")
		return
	}

	// 3. 返回成功响应
	result.Success(c, &dto.SignupResponse{UserInfo: dto.ConvertUserInfo(user)})
}

// Login 手机号密码登录接口
// POST /api/v1/public/user/login
func (h *AuthHandler) Login(c *gin.Context) {
	ctx := middleware.NewContextWithGin(c)

	// 1. 绑定请求数据
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		result.Fail(c, nil, consts.CodeParamError)
		return
	}

	// 2. 调用服务层
	res, err := h.authService.Login(ctx, req.Phone, req.Password)
	if err != nil {
		failWithError(c, ctx, err, "登录服务内部错误")
		return
	}

	// 3. 返回成功响应
	result.Success(c, &dto.LoginResponse{
		AccessToken: res.Token,
		TokenType:   "Bearer",
		UserInfo:    dto.ConvertUserInfo(res.User),
	})
}

// Logout 登出接口，同时断开该用户的在线连接
// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	ctx := middleware.NewContextWithGin(c)

	userID, ok := middleware.GetUserID(c)
	if !ok {
		result.Fail(c, nil, consts.CodeUnauthorized)
		return
	}

	if err := h.authService.Logout(ctx, userID); err != nil {
		failWithError(c, ctx, err, "登出服务内部错误")
		return
	}

	result.Success(c, nil)
}
