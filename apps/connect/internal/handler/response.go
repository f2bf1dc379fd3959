package handler

import (
	"context"

	"ChatRelay/apps/connect/internal/svc"
	"ChatRelay/consts"
	"ChatRelay/pkg/logger"
	"ChatRelay/pkg/result"

	"github.com/gin-gonic/gin"
)

// failWithError 把 svc 错误写成统一响应体
// 业务错误（如用户不存在、申请已处理）属于正常流程,不记录日志；其他内部错误记录后统一返回 CodeInternalError
func failWithError(c *gin.Context, ctx context.Context, err error, logMsg string) {
	code := svc.CodeOf(err)
	if consts.IsNonServerError(code) {
		result.Fail(c, nil, code)
		return
	}
	logger.Error(ctx, logMsg, logger.ErrorField("error", err))
	result.Fail(c, nil, consts.CodeInternalError)
}
