package util

// MaskPhone 手机号脱敏，用于日志
// 示例: 13800138000 -> 138****8000
func MaskPhone(phone string) string {
	if len(phone) < 7 {
		return phone
	}
	return phone[:3] + "****" + phone[len(phone)-4:]
}

// MaskID 用户 id 脱敏，只保留首尾
// 示例: 550e8400-e29b-41d4-a716-446655440000 -> 550e****0000
func MaskID(id string) string {
	if len(id) < 8 {
		return id
	}
	return id[:4] + "****" + id[len(id)-4:]
}
