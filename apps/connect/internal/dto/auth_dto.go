package dto

import "ChatRelay/model"

// ==================== 认证相关 DTO ====================

// SignupRequest 注册请求 DTO
type SignupRequest struct {
	Phone    string `json:"phone" binding:"required,min=6,max=20"`    // 手机号
	Password string `json:"password" binding:"required,min=6,max=72"` // 密码
}

// SignupResponse 注册响应 DTO
type SignupResponse struct {
	UserInfo *UserInfo `json:"userInfo"`
}

// LoginRequest 登录请求 DTO
type LoginRequest struct {
	Phone    string `json:"phone" binding:"required"`    // 手机号
	Password string `json:"password" binding:"required"` // 密码
}

// LoginResponse 登录响应 DTO
type LoginResponse struct {
	AccessToken string    `json:"accessToken"` // 访问令牌，WebSocket 握手与 Bearer 认证共用
	TokenType   string    `json:"tokenType"`   // 固定为 Bearer
	UserInfo    *UserInfo `json:"userInfo"`
}

// UserInfo 用户信息 DTO
type UserInfo struct {
	ID        string `json:"id"`        // 用户ID
	Phone     string `json:"phone"`     // 手机号
	Avatar    string `json:"avatar"`    // 头像
	CreatedAt int64  `json:"createdAt"` // 注册时间（毫秒时间戳）
}

// ConvertUserInfo 将用户表记录转换为 DTO，不暴露密码与推送 token
func ConvertUserInfo(u *model.UserInfo) *UserInfo {
	if u == nil {
		return nil
	}
	return &UserInfo{
		ID:        u.ID,
		Phone:     u.Phone,
		Avatar:    u.Avatar,
		CreatedAt: u.CreatedAt.UnixMilli(),
	}
}
