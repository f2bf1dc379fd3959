package dto

// ==================== 用户相关 DTO ====================

// SearchUserRequest 按手机号搜索用户
type SearchUserRequest struct {
	Phone string `form:"phone" binding:"required,max=20"`
}

// UpdatePushTokenRequest 登记推送 token，空字符串表示注销
type UpdatePushTokenRequest struct {
	Token string `json:"token" binding:"max=512"`
}

// UploadAvatarResponse 上传头像响应
type UploadAvatarResponse struct {
	AvatarURL string `json:"avatarUrl"`
}
