package middleware

import (
	"context"
	"time"

	"ChatRelay/pkg/ctxmeta"
	"ChatRelay/pkg/logger"

	"github.com/gin-gonic/gin"
)

// slowRequestThreshold 超过该耗时的请求记录告警
const slowRequestThreshold = 2 * time.Second

// NewContextWithGin 从 gin.Context 创建包含 trace_id、user_id、client_ip 的 context.Context
// 用于将 Gin 上下文中的元数据传递到日志系统和 svc 层
func NewContextWithGin(c *gin.Context) context.Context {
	return ctxmeta.FromGin(c)
}

// GinLogger 请求日志
func GinLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		cost := time.Since(start)
		status := c.Writer.Status()

		// 只记录服务端错误(5xx)和慢请求,正常请求不记录
		if status >= 500 || cost > slowRequestThreshold {
			logger.Warn(NewContextWithGin(c), "慢请求或服务端错误",
				logger.Int("status", status),
				logger.String("method", c.Request.Method),
				logger.String("path", path),
				logger.String("query", query),
				logger.String("ip", ClientIPFromGinContext(c)),
				logger.String("user-agent", c.Request.UserAgent()),
				logger.String("errors", c.Errors.ByType(gin.ErrorTypePrivate).String()),
				logger.Duration("cost", cost),
			)
		}
	}
}
