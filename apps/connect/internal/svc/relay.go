package svc

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"ChatRelay/apps/connect/internal/manager"
	"ChatRelay/apps/connect/internal/metrics"
	"ChatRelay/apps/connect/internal/notifier"
	"ChatRelay/apps/connect/internal/protocol"
	"ChatRelay/apps/connect/internal/repository"
	"ChatRelay/model"
	"ChatRelay/pkg/logger"
)

// RTCOffer 只有 Offer 在对端离线时会转成推送（来电提醒），其余信令离线即失败
const RTCOffer = "Offer"

// 转发种类，用作指标 label
const (
	kindChat    = "chat"
	kindRTC     = "rtc"
	kindMessage = "message"
	kindSystem  = "system"
)

// Relay 消息路由：对端在线走 Registry 投递到其邮箱，不在线走落库/推送兜底。
// 投递是 best-effort、至多一次，没有重试与排队。
type Relay struct {
	registry manager.Registry
	chatRepo repository.IChatRepository
	userRepo repository.IUserRepository
	notifier notifier.Notifier
}

// NewRelay 创建消息路由
func NewRelay(registry manager.Registry, chatRepo repository.IChatRepository, userRepo repository.IUserRepository, n notifier.Notifier) *Relay {
	return &Relay{
		registry: registry,
		chatRepo: chatRepo,
		userRepo: userRepo,
		notifier: n,
	}
}

// IsOnline 对端当前是否有注册连接
func (r *Relay) IsOnline(userID string) bool {
	_, ok := r.registry.Get(userID)
	return ok
}

// Push 仅在线投递，用于好友申请等系统通知。返回对端是否在线。
func (r *Relay) Push(ctx context.Context, to string, env protocol.Envelope) bool {
	return r.deliver(ctx, kindSystem, to, env)
}

// SendChat 发送聊天消息。
// 必须先落库：落库失败整个操作失败，绝不转发未持久化的消息。
// 落库成功后对端在线则投递 ChatMessage 信封，不在线则尝试推送；推送失败只记日志。
func (r *Relay) SendChat(ctx context.Context, from, to, mimeType, content string) (*model.ChatMessage, error) {
	if to == "" || content == "" {
		return nil, ErrInvalidArgument
	}

	msg, err := r.chatRepo.Insert(ctx, from, to, mimeType, content)
	if err != nil {
		metrics.ObserveRelay(kindChat, metrics.OutcomeFailed)
		logger.Error(ctx, "聊天消息落库失败",
			logger.String("from", from),
			logger.String("to", to),
			logger.ErrorField("error", err),
		)
		return nil, persistenceError(err)
	}

	if r.deliver(ctx, kindChat, to, protocol.Success(protocol.TypChatMessage, msg)) {
		return msg, nil
	}

	data := map[string]string{
		"typ":  protocol.TypChatMessage,
		"id":   strconv.FormatInt(msg.ID, 10),
		"from": from,
	}
	if err := r.notify(ctx, kindChat, from, to, repository.Preview(msg.MimeType, msg.Content), data); err != nil {
		// 消息已落库，对端上线后可通过历史记录拉取
		logger.Info(ctx, "聊天消息离线推送未送达",
			logger.String("to", to),
			logger.Int64("message_id", msg.ID),
			logger.ErrorField("reason", err),
		)
	}
	return msg, nil
}

// RelayRTC 转发 WebRTC 信令，从不落库。
// 对端离线时只有 Offer 会转推送（无 token 返回 ErrNoDeviceToken），其余子类型返回 ErrDestinationNotFound。
func (r *Relay) RelayRTC(ctx context.Context, from, to, typ string, payload json.RawMessage) error {
	if to == "" || typ == "" {
		return ErrInvalidArgument
	}

	env := protocol.Success(protocol.TypRTC, protocol.RTCPayload{From: from, Typ: typ, Payload: payload})
	if r.deliver(ctx, kindRTC, to, env) {
		return nil
	}
	if typ != RTCOffer {
		metrics.ObserveRelay(kindRTC, metrics.OutcomeOffline)
		return ErrDestinationNotFound
	}

	data := map[string]string{
		"typ":  protocol.TypRTC,
		"rtc":  typ,
		"from": from,
	}
	err := r.notify(ctx, kindRTC, from, to, "邀请你进行通话", data)
	if errors.Is(err, ErrNoDeviceToken) {
		return err
	}
	// 推送失败已在 notify 中记录，不影响调用方
	return nil
}

// RelayMessage 不落库的即时消息，对端离线直接返回 ErrDestinationNotFound。
func (r *Relay) RelayMessage(ctx context.Context, from, to, content string) error {
	if to == "" {
		return ErrInvalidArgument
	}
	env := protocol.Success(protocol.TypMessage, protocol.MessagePayload{From: from, Content: content})
	if r.deliver(ctx, kindMessage, to, env) {
		return nil
	}
	metrics.ObserveRelay(kindMessage, metrics.OutcomeOffline)
	return ErrDestinationNotFound
}

// deliver 查 Registry 并投递到对端邮箱，返回对端是否在线。
// 对端在线但邮箱满或正在关闭时消息被丢弃，仍视为在线（不会再走推送）。
func (r *Relay) deliver(ctx context.Context, kind, to string, env protocol.Envelope) bool {
	h, ok := r.registry.Get(to)
	if !ok {
		return false
	}
	if h.Enqueue(protocol.Encode(env)) {
		metrics.ObserveRelay(kind, metrics.OutcomeDelivered)
		return true
	}
	metrics.ObserveRelay(kind, metrics.OutcomeDropped)
	logger.Warn(ctx, "对端邮箱已满或连接关闭，消息丢弃",
		logger.String("kind", kind),
		logger.String("to", to),
		logger.String("typ", env.Typ),
	)
	return true
}

// notify 离线推送：取对端 token 后调用 Notifier，标题为发送方手机号。
// 没有 token 返回 ErrNoDeviceToken。
func (r *Relay) notify(ctx context.Context, kind, from, to, body string, data map[string]string) error {
	token, ok, err := r.notifier.GetToken(ctx, to)
	if err != nil {
		metrics.ObserveRelay(kind, metrics.OutcomeFailed)
		logger.Error(ctx, "离线推送读取设备 token 失败",
			logger.String("kind", kind),
			logger.String("to", to),
			logger.ErrorField("error", err),
		)
		return persistenceError(err)
	}
	if !ok || strings.TrimSpace(token) == "" {
		metrics.ObserveRelay(kind, metrics.OutcomeNoToken)
		return ErrNoDeviceToken
	}

	if err := r.notifier.SendNotification(ctx, token, r.senderTitle(ctx, from), body, data); err != nil {
		metrics.ObserveRelay(kind, metrics.OutcomeFailed)
		logger.Warn(ctx, "离线推送发送失败",
			logger.String("kind", kind),
			logger.String("to", to),
			logger.ErrorField("error", err),
		)
		return err
	}
	metrics.ObserveRelay(kind, metrics.OutcomeNotified)
	return nil
}

// senderTitle 推送标题，查不到发送方资料时退化为 id
func (r *Relay) senderTitle(ctx context.Context, from string) string {
	user, err := r.userRepo.GetByID(ctx, from)
	if err != nil || user.Phone == "" {
		return from
	}
	return user.Phone
}
