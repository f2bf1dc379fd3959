package handler

import (
	"context"
	"net/http"

	"ChatRelay/apps/connect/internal/manager"
	"ChatRelay/apps/connect/internal/metrics"
	"ChatRelay/apps/connect/internal/protocol"
	"ChatRelay/apps/connect/internal/svc"
	"ChatRelay/pkg/logger"

	"golang.org/x/time/rate"
)

// sessionState 连接会话状态：Connecting -> Authenticated -> Closed
type sessionState int

const (
	stateConnecting sessionState = iota
	stateAuthenticated
	stateClosed
)

func (s sessionState) String() string {
	switch s {
	case stateConnecting:
		return "Connecting"
	case stateAuthenticated:
		return "Authenticated"
	case stateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

const (
	reasonTooManyRequests = "too many requests"
	reasonUnsupportedType = "unsupported message type"
)

// session 单个已鉴权连接的上行帧分发。
// 所有方法都只在该连接的读 goroutine 中调用，帧严格按到达顺序处理。
type session struct {
	h       *WSHandler
	client  *manager.Client
	info    *svc.Session
	limiter *rate.Limiter
	state   sessionState
}

func newSession(h *WSHandler, client *manager.Client, info *svc.Session) *session {
	s := &session{
		h:      h,
		client: client,
		info:   info,
		state:  stateConnecting,
	}
	if h.cfg.InboundRate > 0 {
		burst := h.cfg.InboundBurst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(h.cfg.InboundRate), burst)
	}
	return s
}

// handleText 处理一条上行文本帧：限流 -> 解码 -> 分发。任何错误都只回错误信封，连接保持。
func (s *session) handleText(ctx context.Context, raw []byte) {
	if s.state != stateAuthenticated {
		return
	}

	// 1. 单连接限流，超出的帧直接丢弃
	if s.limiter != nil && !s.limiter.Allow() {
		metrics.InboundFrames.WithLabelValues("limited").Inc()
		s.reply(ctx, protocol.Failure(protocol.TypError, http.StatusTooManyRequests, reasonTooManyRequests))
		return
	}

	// 2. 解码
	frame, err := protocol.Decode(raw)
	if err != nil {
		metrics.InboundFrames.WithLabelValues("invalid").Inc()
		s.reply(ctx, protocol.Failure(protocol.TypError, http.StatusBadRequest, err.Error()))
		return
	}
	metrics.InboundFrames.WithLabelValues(string(frame.Kind())).Inc()

	// 3. 分发
	s.dispatch(ctx, frame)
}

// handleNonText 目前只接受文本帧，二进制帧回 400
func (s *session) handleNonText(ctx context.Context, messageType int) {
	if s.state != stateAuthenticated {
		return
	}
	metrics.InboundFrames.WithLabelValues("unsupported").Inc()
	logger.Debug(ctx, "收到不支持的帧类型", logger.Int("message_type", messageType))
	s.reply(ctx, protocol.Failure(protocol.TypError, http.StatusBadRequest, reasonUnsupportedType))
}

func (s *session) dispatch(ctx context.Context, frame protocol.Frame) {
	self := s.info.UserID
	h := s.h

	switch f := frame.(type) {
	case protocol.ChatFrame:
		msg, err := h.relay.SendChat(ctx, self, f.To, f.MimeType, f.Content)
		if err != nil {
			s.replyError(ctx, protocol.TypChatMessage, err)
			return
		}
		// 发送方回执带完整消息行（含 id 与 sent_at）
		s.reply(ctx, protocol.Success(protocol.TypChatMessage, msg))

	case protocol.RTCFrame:
		if err := h.relay.RelayRTC(ctx, self, f.To, f.Typ, f.Payload); err != nil {
			s.replyError(ctx, protocol.TypRTC, err)
		}

	case protocol.MessageFrame:
		if err := h.relay.RelayMessage(ctx, self, f.To, f.Content); err != nil {
			s.replyError(ctx, protocol.TypMessage, err)
		}

	case protocol.AddFriendFrame:
		id, err := h.friends.AddFriendRequest(ctx, self, f.FriendID)
		if err != nil {
			s.replyError(ctx, protocol.TypAddFriend, err)
			return
		}
		s.reply(ctx, protocol.Success(protocol.TypAddFriend, protocol.IDPayload{ID: id}))

	case protocol.AcceptFrame:
		if err := h.friends.AcceptFriendRequest(ctx, self, f.ID); err != nil {
			s.replyError(ctx, protocol.TypAccept, err)
			return
		}
		s.reply(ctx, protocol.Success(protocol.TypAccept, protocol.IDPayload{ID: f.ID}))

	case protocol.RejectFrame:
		if err := h.friends.RejectFriendRequest(ctx, self, f.ID); err != nil {
			s.replyError(ctx, protocol.TypReject, err)
			return
		}
		s.reply(ctx, protocol.Success(protocol.TypReject, protocol.IDPayload{ID: f.ID}))

	case protocol.FriendRequestsFrame:
		list, err := h.friends.PendingFriendRequests(ctx, self)
		if err != nil {
			s.replyError(ctx, protocol.TypFriendRequests, err)
			return
		}
		s.reply(ctx, protocol.Success(protocol.TypFriendRequests, list))

	case protocol.ReadFrame:
		if _, err := h.chats.MarkAsRead(ctx, self, f.ID); err != nil {
			s.replyError(ctx, protocol.TypRead, err)
			return
		}
		s.reply(ctx, protocol.Success(protocol.TypRead, protocol.IDPayload{ID: f.ID}))
	}
}

// replyError 业务错误原样回 reason；内部错误记录日志，reason 不暴露细节
func (s *session) replyError(ctx context.Context, typ string, err error) {
	status := svc.StatusOf(err)
	if status == http.StatusInternalServerError {
		logger.Error(ctx, "处理上行帧失败",
			logger.String("typ", typ),
			logger.String("user_id", s.info.UserID),
			logger.ErrorField("error", err),
		)
	}
	s.reply(ctx, protocol.Failure(typ, status, svc.ReasonOf(err)))
}

// reply 回写给本连接。写队列满通常表示连接不可写，此时主动关闭连接避免资源泄漏。
func (s *session) reply(ctx context.Context, env protocol.Envelope) {
	if s.client.Enqueue(protocol.Encode(env)) {
		return
	}
	logger.Warn(ctx, "回写队列已满，关闭连接",
		logger.String("user_id", s.info.UserID),
		logger.String("typ", env.Typ),
	)
	s.client.Close()
}

// close 连接彻底关闭后调用一次。
// 只有本连接仍是 Registry 中的当前连接时才注销并标记离线，被新连接替换的旧会话什么都不做。
func (s *session) close(ctx context.Context) {
	if s.state == stateClosed {
		return
	}
	s.state = stateClosed

	h := s.h
	if h.registry.Unregister(s.client) {
		h.connectSvc.OnDisconnect(ctx, s.info)
	}
	metrics.OnlineConnections.Set(float64(h.registry.Count()))

	logger.Info(ctx, "WebSocket 连接已断开",
		logger.String("user_id", s.info.UserID),
		logger.Int("online_count", h.registry.Count()),
	)
}
