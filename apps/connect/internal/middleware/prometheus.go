package middleware

import (
	"strconv"
	"time"

	"ChatRelay/apps/connect/internal/metrics"

	"github.com/gin-gonic/gin"
)

// PrometheusMiddleware 记录 HTTP 请求数与耗时
// path 使用路由模板（如 /api/v1/auth/friends/requests/:id/accept），未命中路由记为 unmatched，避免标签基数膨胀
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method
		metrics.HTTPRequests.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}
