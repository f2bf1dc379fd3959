package consts

// 通用错误码
const (
	CodeSuccess = 0 // 成功
)

// 客户端错误 (1xxxx)
const (
	CodeParamError       = 10001 // 参数验证失败
	CodeBodyError        = 10002 // 请求体格式错误
	CodeResourceNotFound = 10003 // 资源不存在
	CodeTooManyRequests  = 10005 // 请求过于频繁
	CodeBodyTooLarge     = 10006 // 请求体过大
	CodeUnsupportedFrame = 10007 // 不支持的 WebSocket 帧
)

// 认证错误 (2xxxx)
const (
	CodeUnauthorized   = 20001 // 未认证
	CodeInvalidToken   = 20002 // Token 无效
	CodePermissionDeny = 20004 // 权限不足
)

// 用户模块错误 (11xxx)
const (
	CodeUserNotFound        = 11001 // 用户不存在
	CodeUserAlreadyExist    = 11002 // 用户已存在
	CodePasswordError       = 11003 // 密码错误
	CodePhoneError          = 11005 // 手机号格式错误
	CodeFileTypeNotAllowed  = 11008 // 文件类型不允许
	CodeUploadNotConfigured = 11009 // 未配置文件存储
)

// 好友模块错误 (12xxx)
const (
	CodeAlreadyFriend         = 12001 // 已经是好友
	CodeFriendRequestNotFound = 12005 // 好友申请不存在
	CodeFriendRequestClosed   = 12006 // 好友申请已处理
	CodeCannotAddSelf         = 12007 // 不能添加自己
)

// 消息模块错误 (13xxx)
const (
	CodeMessageNotFound = 13001 // 消息不存在
	CodeMessageSendFail = 13002 // 消息发送失败
	CodePeerOffline     = 13005 // 对端不在线
	CodeNoDeviceToken   = 13006 // 对端没有推送 token
)

// 服务端错误 (3xxxx)
const (
	CodeInternalError      = 30001 // 服务器内部错误
	CodeServiceUnavailable = 30002 // 服务暂不可用
	CodeTimeoutError       = 30003 // 请求超时
)

// CodeMessage 错误消息映射
var CodeMessage = map[int32]string{
	CodeSuccess: "success",

	CodeParamError:       "参数验证失败",
	CodeBodyError:        "请求体格式错误",
	CodeResourceNotFound: "资源不存在",
	CodeTooManyRequests:  "请求过于频繁",
	CodeBodyTooLarge:     "请求体过大",
	CodeUnsupportedFrame: "不支持的消息类型",

	CodeUnauthorized:   "未认证",
	CodeInvalidToken:   "Token 无效",
	CodePermissionDeny: "权限不足",

	CodeUserNotFound:        "用户不存在",
	CodeUserAlreadyExist:    "用户已存在",
	CodePasswordError:       "密码错误",
	CodePhoneError:          "手机号格式错误",
	CodeFileTypeNotAllowed:  "文件类型不允许",
	CodeUploadNotConfigured: "文件存储未启用",

	CodeAlreadyFriend:         "已经是好友",
	CodeFriendRequestNotFound: "好友申请不存在",
	CodeFriendRequestClosed:   "好友申请已处理",
	CodeCannotAddSelf:         "不能添加自己为好友",

	CodeMessageNotFound: "消息不存在",
	CodeMessageSendFail: "消息发送失败",
	CodePeerOffline:     "对端不在线",
	CodeNoDeviceToken:   "对端未注册推送",

	CodeInternalError:      "服务器内部错误",
	CodeServiceUnavailable: "服务暂不可用",
	CodeTimeoutError:       "请求超时",
}

// GetMessage 根据错误码获取错误消息
func GetMessage(code int32) string {
	if msg, ok := CodeMessage[code]; ok {
		return msg
	}
	return "未知错误"
}

// IsNonServerError 判断是否为客户端/业务错误（非 3xxxx 服务端错误）。
// handler 据此决定是否记录错误日志。
func IsNonServerError(code int32) bool {
	return code != CodeSuccess && code < CodeInternalError
}
