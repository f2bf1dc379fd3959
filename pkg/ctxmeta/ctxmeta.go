// Package ctxmeta 统一管理请求/连接级上下文元数据（trace_id、user_id、client_ip）。
package ctxmeta

import (
	"context"

	"github.com/gin-gonic/gin"
)

type ctxKey string

const (
	keyTraceID  ctxKey = "trace_id"
	keyUserID   ctxKey = "user_id"
	keyClientIP ctxKey = "client_ip"
)

// Gin 上下文中使用的 key，与 ctxKey 同名。
const (
	GinTraceID  = "trace_id"
	GinUserID   = "user_id"
	GinClientIP = "client_ip"
)

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, keyTraceID, traceID)
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, keyUserID, userID)
}

func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, keyClientIP, ip)
}

func TraceID(ctx context.Context) string { return stringValue(ctx, keyTraceID) }

func UserID(ctx context.Context) string { return stringValue(ctx, keyUserID) }

func ClientIP(ctx context.Context) string { return stringValue(ctx, keyClientIP) }

// TraceIDFromGin 读取 TraceLogger 中间件写入的 trace_id。
func TraceIDFromGin(c *gin.Context) string {
	return c.GetString(GinTraceID)
}

// FromGin 把 gin.Context 中的元数据搬到 request context 上。
func FromGin(c *gin.Context) context.Context {
	ctx := c.Request.Context()
	if v := c.GetString(GinTraceID); v != "" {
		ctx = WithTraceID(ctx, v)
	}
	if v := c.GetString(GinUserID); v != "" {
		ctx = WithUserID(ctx, v)
	}
	if v := c.GetString(GinClientIP); v != "" {
		ctx = WithClientIP(ctx, v)
	}
	return ctx
}

// Detach 复制元数据到一个新的根 context，用于脱离请求生命周期的异步任务。
func Detach(parent context.Context) context.Context {
	ctx := context.Background()
	if parent == nil {
		return ctx
	}
	if v := TraceID(parent); v != "" {
		ctx = WithTraceID(ctx, v)
	}
	if v := UserID(parent); v != "" {
		ctx = WithUserID(ctx, v)
	}
	if v := ClientIP(parent); v != "" {
		ctx = WithClientIP(ctx, v)
	}
	return ctx
}

func stringValue(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}
