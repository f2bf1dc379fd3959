package util

import (
	"ChatRelay/pkg/ctxmeta"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const HeaderXRequestID = "X-Request-ID"

// TraceLogger 生成或透传 trace_id，写入 Gin 上下文、request context 与响应头。
func TraceLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 优先沿用上游（Nginx/客户端）带来的 ID
		traceID := c.GetHeader(HeaderXRequestID)
		if traceID == "" {
			traceID = NewUUID()
		}

		c.Set(ctxmeta.GinTraceID, traceID)
		c.Request = c.Request.WithContext(ctxmeta.WithTraceID(c.Request.Context(), traceID))
		c.Header(HeaderXRequestID, traceID)

		c.Next()
	}
}

// NewUUID 生成新的 UUID
func NewUUID() string {
	return uuid.New().String()
}
