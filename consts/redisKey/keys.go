package rediskey

import (
	"fmt"
	"time"
)

// ==================== TTL 常量 ====================

const (
	// AccessTokenTTL 登录态缓存 TTL，与 JWT 有效期保持一致
	AccessTokenTTL = 7 * 24 * time.Hour
	// UserActiveTTL 用户最近活跃时间 TTL
	UserActiveTTL = 45 * 24 * time.Hour
)

// ==================== Key 构造函数 ====================

// AccessTokenKey 登录态 Key: auth:at:{user_id}，值为 md5(access_token)
func AccessTokenKey(userID string) string {
	return fmt.Sprintf("auth:at:%s", userID)
}

// UserActiveKey 最近活跃时间 Key: user:active:{user_id}
// Hash 字段：last_active（unix 秒）、online（1/0）
func UserActiveKey(userID string) string {
	return fmt.Sprintf("user:active:%s", userID)
}

// OnlineUsersKey 在线用户集合 Key: connect:online
func OnlineUsersKey() string {
	return "connect:online"
}

// IPRateLimitKey 公开接口 IP 限流令牌桶 Key: rate:limit:ip:{ip}
func IPRateLimitKey(ip string) string {
	return fmt.Sprintf("rate:limit:ip:%s", ip)
}
