package svc

import (
	"errors"
	"fmt"
	"net/http"

	"ChatRelay/apps/connect/internal/protocol"
	"ChatRelay/apps/connect/internal/repository"
	"ChatRelay/consts"
	pkgminio "ChatRelay/pkg/minio"
)

// ==================== 业务错误 ====================

var (
	// ErrTokenRequired 握手参数中缺少 token
	ErrTokenRequired = errors.New("token is required")
	// ErrTokenInvalid token 非法、已过期或已登出
	ErrTokenInvalid = errors.New("token is invalid")

	// ErrInvalidArgument 参数不合法
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUserNotFound 用户不存在
	ErrUserNotFound = errors.New("user not found")
	// ErrUserAlreadyExist 手机号已注册
	ErrUserAlreadyExist = errors.New("user already exists")
	// ErrPasswordMismatch 密码错误
	ErrPasswordMismatch = errors.New("password mismatch")

	// ErrDestinationNotFound 对端不在线且无法兜底
	ErrDestinationNotFound = errors.New("could not forward")
	// ErrNoDeviceToken 对端不在线且没有推送 token
	ErrNoDeviceToken = errors.New("destination has no device token")

	// ErrCannotAddSelf 不能向自己发好友申请
	ErrCannotAddSelf = errors.New("cannot add yourself")
	// ErrNotRequestRecipient 只有被申请人能处理好友申请
	ErrNotRequestRecipient = errors.New("not the recipient of this friend request")
	// ErrFriendRequestNotFound 好友申请不存在
	ErrFriendRequestNotFound = errors.New("friend request not found")
	// ErrFriendRequestClosed 好友申请已处于相反的终态
	ErrFriendRequestClosed = errors.New("friend request already closed")

	// ErrMessageNotFound 消息不存在
	ErrMessageNotFound = errors.New("message not found")
	// ErrNotMessageRecipient 只有接收方能标记已读
	ErrNotMessageRecipient = errors.New("not the recipient of this message")

	// ErrUploadNotConfigured 未启用对象存储
	ErrUploadNotConfigured = errors.New("upload not configured")

	// ErrPersistence 存储层失败
	ErrPersistence = errors.New("persistence failure")
)

type errorMapping struct {
	target error
	status int
	code   int32
}

// errorTable 按顺序匹配，第一个命中的生效
var errorTable = []errorMapping{
	{protocol.ErrInvalidFrame, http.StatusBadRequest, consts.CodeBodyError},
	{ErrInvalidArgument, http.StatusBadRequest, consts.CodeParamError},
	{ErrCannotAddSelf, http.StatusBadRequest, consts.CodeCannotAddSelf},
	{pkgminio.ErrTypeNotAllowed, http.StatusBadRequest, consts.CodeFileTypeNotAllowed},
	{pkgminio.ErrFileTooLarge, http.StatusBadRequest, consts.CodeBodyTooLarge},
	{ErrTokenRequired, http.StatusForbidden, consts.CodeUnauthorized},
	{ErrTokenInvalid, http.StatusForbidden, consts.CodeInvalidToken},
	{ErrNotRequestRecipient, http.StatusForbidden, consts.CodePermissionDeny},
	{ErrNotMessageRecipient, http.StatusForbidden, consts.CodePermissionDeny},
	{ErrPasswordMismatch, http.StatusForbidden, consts.CodePasswordError},
	{ErrUserNotFound, http.StatusNotFound, consts.CodeUserNotFound},
	{ErrDestinationNotFound, http.StatusNotFound, consts.CodePeerOffline},
	{ErrNoDeviceToken, http.StatusNotFound, consts.CodeNoDeviceToken},
	{ErrFriendRequestNotFound, http.StatusNotFound, consts.CodeFriendRequestNotFound},
	{ErrMessageNotFound, http.StatusNotFound, consts.CodeMessageNotFound},
	{ErrUserAlreadyExist, http.StatusConflict, consts.CodeUserAlreadyExist},
	{ErrFriendRequestClosed, http.StatusConflict, consts.CodeFriendRequestClosed},
	{ErrUploadNotConfigured, http.StatusServiceUnavailable, consts.CodeUploadNotConfigured},
}

// StatusOf 错误对应的信封 status（HTTP 语义），未知错误一律 500
func StatusOf(err error) int {
	if err == nil {
		return http.StatusOK
	}
	for _, m := range errorTable {
		if errors.Is(err, m.target) {
			return m.status
		}
	}
	return http.StatusInternalServerError
}

// CodeOf 错误对应的业务错误码，未知错误一律 CodeInternalError
func CodeOf(err error) int32 {
	if err == nil {
		return consts.CodeSuccess
	}
	for _, m := range errorTable {
		if errors.Is(err, m.target) {
			return m.code
		}
	}
	return consts.CodeInternalError
}

// ReasonOf 信封 reason：业务错误取错误文本，内部错误不向客户端暴露细节
func ReasonOf(err error) string {
	if err == nil {
		return ""
	}
	if StatusOf(err) == http.StatusInternalServerError {
		return consts.GetMessage(consts.CodeInternalError)
	}
	return err.Error()
}

// persistenceError 把仓储错误统一包装为 ErrPersistence，保留原始错误链
func persistenceError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrPersistence, err)
}

func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrRecordNotFound)
}
