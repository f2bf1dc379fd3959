package dto

// ==================== 好友相关 DTO ====================

// PageRequest 列表分页参数，limit 为 0 时使用服务端默认值
type PageRequest struct {
	Limit  int `form:"limit" binding:"omitempty,min=0"`
	Offset int `form:"offset" binding:"omitempty,min=0"`
}

// SendFriendRequestRequest 发送好友申请请求
type SendFriendRequestRequest struct {
	FriendID string `json:"friendId" binding:"required,max=64"` // 目标用户ID
}

// SendFriendRequestResponse 发送好友申请响应
type SendFriendRequestResponse struct {
	ID int64 `json:"id,string"` // 申请ID
}

// CountResponse 计数响应
type CountResponse struct {
	Count int64 `json:"count"`
}
