package middleware

import (
	"context"
	"errors"
	"time"

	"ChatRelay/consts"
	"ChatRelay/pkg/logger"
	"ChatRelay/pkg/result"

	"github.com/gin-gonic/gin"
)

// TimeoutMiddleware 请求超时控制中间件
// 不开启 Goroutine，依赖下游（gorm / go-redis / minio）感知 Context 超时
func TimeoutMiddleware(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1. 基于 request context 派生带超时的 context
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		// 2. 替换请求的 context，后续 handler 与存储调用都拿到这个 ctx
		c.Request = c.Request.WithContext(ctx)

		// 3. 直接在当前协程执行
		c.Next()

		// 4. 下游没来得及写响应 ctx 就过期了，才由中间件兜底
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !c.Writer.Written() {
			logger.Warn(NewContextWithGin(c), "请求超时",
				logger.String("path", c.Request.URL.Path),
				logger.Duration("timeout", timeout),
			)
			result.Fail(c, nil, consts.CodeTimeoutError)
		}
	}
}
