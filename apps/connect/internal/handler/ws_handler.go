package handler

import (
	"context"
	"net/http"

	"ChatRelay/apps/connect/internal/manager"
	"ChatRelay/apps/connect/internal/metrics"
	"ChatRelay/apps/connect/internal/middleware"
	"ChatRelay/apps/connect/internal/svc"
	"ChatRelay/config"
	"ChatRelay/pkg/ctxmeta"
	"ChatRelay/pkg/logger"
	"ChatRelay/pkg/result"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// 当前阶段默认放开来源校验，方便本地多端调试（Web/移动端模拟器）。
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// WSHandler 负责处理 /ws 接入请求。
// 职责边界：
// - 处理 Gin/HTTP 层参数、升级与错误响应；
// - 调用 connectSvc 完成鉴权与在线状态维护；
// - 调用 registry 维护连接生命周期，上行帧交给 session 分发。
type WSHandler struct {
	registry   manager.Registry
	connectSvc svc.IConnectService
	relay      svc.IRelay
	friends    svc.IFriendService
	chats      svc.IChatService
	cfg        config.SessionConfig
}

// NewWSHandler 创建 WebSocket 入口处理器。
func NewWSHandler(
	registry manager.Registry,
	connectSvc svc.IConnectService,
	relay svc.IRelay,
	friends svc.IFriendService,
	chats svc.IChatService,
	cfg config.SessionConfig,
) *WSHandler {
	return &WSHandler{
		registry:   registry,
		connectSvc: connectSvc,
		relay:      relay,
		friends:    friends,
		chats:      chats,
		cfg:        cfg,
	}
}

// ServeWS 处理 WebSocket 握手与接入。
// 执行流程：
// 1. 从 query 中读取 token（兼容 auth_token），并获取 client_ip。
// 2. 升级前调用 connectSvc.Authenticate 做鉴权，失败直接返回 HTTP 403，不会注册。
// 3. 构建连接级 context（注入 trace/user/ip）。
// 4. 完成协议升级并进入连接处理主循环。
func (h *WSHandler) ServeWS(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = c.Query("auth_token")
	}
	clientIP := middleware.ClientIPFromGinContext(c)

	session, err := h.connectSvc.Authenticate(c.Request.Context(), token, clientIP)
	if err != nil {
		h.writeAuthError(c, err)
		return
	}

	// 连接的生命周期长于本次 HTTP 请求，只保留元数据
	connCtx := ctxmeta.Detach(middleware.NewContextWithGin(c))
	connCtx = ctxmeta.WithUserID(connCtx, session.UserID)
	connCtx = ctxmeta.WithClientIP(connCtx, session.ClientIP)

	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn(connCtx, "WebSocket 升级失败",
			logger.ErrorField("error", err),
		)
		return
	}
	if h.cfg.MaxFrameSize > 0 {
		conn.SetReadLimit(h.cfg.MaxFrameSize)
	}

	h.handleConnection(connCtx, conn, session)
}

// handleConnection 承载单个连接的完整生命周期。
// 关键语义：
// - 同一用户重复连接时，用新连接替换旧连接并关闭旧连接；
// - 旧连接断开时 Unregister 不会误删新连接，也不会把用户标记为离线；
// - 日志里保留 user_id 便于排障。
func (h *WSHandler) handleConnection(ctx context.Context, conn *websocket.Conn, info *svc.Session) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	client := manager.NewClient(conn, info.UserID)
	s := newSession(h, client, info)

	if replaced := h.registry.Add(info.UserID, client); replaced != nil {
		logger.Info(ctx, "同一用户重复连接，关闭旧连接",
			logger.String("user_id", info.UserID),
		)
		replaced.Close()
	}
	s.state = stateAuthenticated
	metrics.OnlineConnections.Set(float64(h.registry.Count()))

	h.connectSvc.OnConnect(ctx, info)
	logger.Info(ctx, "WebSocket 连接已建立",
		logger.String("user_id", info.UserID),
		logger.String("client_ip", info.ClientIP),
		logger.Int("online_count", h.registry.Count()),
	)

	client.Run(ctx,
		func(raw []byte) { s.handleText(ctx, raw) },
		func(messageType int) { s.handleNonText(ctx, messageType) },
		func() { h.connectSvc.OnActive(ctx, info) },
		func() { s.close(ctx) },
	)
}

// writeAuthError 将鉴权错误映射为 HTTP 握手阶段错误响应。
// 握手前还未升级为 WebSocket，因此用 HTTP JSON 返回。
func (h *WSHandler) writeAuthError(c *gin.Context, err error) {
	status := svc.StatusOf(err)
	if status == http.StatusInternalServerError {
		logger.Error(middleware.NewContextWithGin(c), "WebSocket 握手鉴权内部错误",
			logger.ErrorField("error", err),
		)
	}
	result.Abort(c, status, svc.CodeOf(err))
}
