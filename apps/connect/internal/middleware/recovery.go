package middleware

import (
	"errors"
	"net"
	"net/http"
	"net/http/httputil"
	"os"
	"runtime/debug"
	"strings"

	"ChatRelay/consts"
	"ChatRelay/pkg/logger"
	"ChatRelay/pkg/result"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// GinRecovery recover 掉项目可能出现的 panic，并使用 zap 记录相关日志
func GinRecovery(stack bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			err := recover()
			if err == nil {
				return
			}
			ctx := NewContextWithGin(c)

			// 客户端断开（broken pipe / connection reset）不需要打印堆栈，也无法再写响应
			if isBrokenPipe(err) {
				httpRequest, _ := httputil.DumpRequest(c.Request, false)
				logger.Error(ctx, "客户端连接已断开",
					logger.String("path", c.Request.URL.Path),
					logger.Any("error", err),
					logger.String("request", string(httpRequest)),
				)
				_ = c.Error(errorOf(err))
				c.Abort()
				return
			}

			fields := []zap.Field{
				logger.String("path", c.Request.URL.Path),
				logger.String("method", c.Request.Method),
				logger.Any("error", err),
			}
			if stack {
				fields = append(fields, logger.String("stack", string(debug.Stack())))
			}
			logger.Error(ctx, "请求处理发生 panic", fields...)

			result.Abort(c, http.StatusInternalServerError, consts.CodeInternalError)
		}()
		c.Next()
	}
}

func isBrokenPipe(recovered any) bool {
	err, ok := recovered.(error)
	if !ok {
		return false
	}
	var opErr *net.OpError
	if !errors.As(err, &opErr) {
		return false
	}
	var syscallErr *os.SyscallError
	if !errors.As(opErr, &syscallErr) {
		return false
	}
	msg := strings.ToLower(syscallErr.Error())
	return strings.Contains(msg, "broken pipe") || strings.Contains(msg, "connection reset by peer")
}

func errorOf(recovered any) error {
	if err, ok := recovered.(error); ok {
		return err
	}
	return errors.New("panic")
}
