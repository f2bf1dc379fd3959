package result

import (
	"net/http"

	"ChatRelay/consts"
	"ChatRelay/pkg/ctxmeta"

	"github.com/gin-gonic/gin"
)

// Response 统一响应体
type Response struct {
	Code    int32       `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
	TraceId string      `json:"trace_id"`
}

// Result 以 HTTP 200 返回业务响应，message 为空时按 code 取默认文案。
func Result(c *gin.Context, data interface{}, message string, code int32) {
	c.JSON(http.StatusOK, build(c, data, message, code))
}

// Success 返回成功响应
func Success(c *gin.Context, data interface{}) {
	Result(c, data, "", consts.CodeSuccess)
}

// Fail 返回失败响应
func Fail(c *gin.Context, data interface{}, code int32) {
	Result(c, data, "", code)
}

// FailWithMessage 返回失败响应并自定义消息
func FailWithMessage(c *gin.Context, data interface{}, message string, code int32) {
	Result(c, data, message, code)
}

// Abort 以指定 HTTP 状态码返回并终止后续中间件（鉴权、限流等场景）。
func Abort(c *gin.Context, httpStatus int, code int32) {
	c.AbortWithStatusJSON(httpStatus, build(c, nil, "", code))
}

func build(c *gin.Context, data interface{}, message string, code int32) Response {
	if message == "" {
		message = consts.GetMessage(code)
	}
	return Response{
		Code:    code,
		Message: message,
		Data:    data,
		TraceId: c.GetString(ctxmeta.GinTraceID),
	}
}
