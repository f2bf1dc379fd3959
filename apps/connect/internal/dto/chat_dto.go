package dto

// ==================== 聊天记录相关 DTO ====================

// HistoryRequest 拉取与某个对端的聊天记录
// before 为消息 id 游标（不含），0 表示从最新一页开始
type HistoryRequest struct {
	Peer   string `form:"peer" binding:"required,max=64"`
	Limit  int    `form:"limit" binding:"omitempty,min=0"`
	Before int64  `form:"before" binding:"omitempty,min=0"`
}

// MarkReadResponse 已读回执响应，changed 表示本次调用是否真正改变了状态
type MarkReadResponse struct {
	ID      int64 `json:"id,string"`
	Changed bool  `json:"changed"`
}
