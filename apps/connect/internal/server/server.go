package server

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"time"

	"ChatRelay/apps/connect/internal/handler"
	"ChatRelay/apps/connect/internal/middleware"
	"ChatRelay/pkg/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config 定义 connect HTTP 服务的运行参数。
// 这些超时用于限制异常连接占用资源，避免慢连接拖垮服务。
type Config struct {
	Addr              string
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration

	// RequestTimeout 需要认证的 HTTP 接口单次处理上限，<=0 表示不限制。
	RequestTimeout time.Duration
	// PublicRate / PublicBurst 注册、登录接口按 IP 的令牌桶参数。
	PublicRate  float64
	PublicBurst int
}

// DefaultConfig 返回 connect 服务的默认配置。
// 端口优先读取 CONNECT_ADDR，未设置时默认监听 :8081；PUBLIC_RATE 可覆盖公开接口限流速率。
func DefaultConfig() Config {
	addr := os.Getenv("CONNECT_ADDR")
	if addr == "" {
		addr = ":8081"
	}
	cfg := Config{
		Addr:              addr,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		RequestTimeout:    10 * time.Second,
		PublicRate:        5,
		PublicBurst:       10,
	}
	if v := os.Getenv("PUBLIC_RATE"); v != "" {
		if rate, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.PublicRate = rate
		}
	}
	return cfg
}

// Handlers 路由依赖的全部处理器。
type Handlers struct {
	WS     *handler.WSHandler
	Auth   *handler.AuthHandler
	User   *handler.UserHandler
	Friend *handler.FriendHandler
	Chat   *handler.ChatHandler
}

// Server 对 http.Server 的轻量封装。
// 这里集中管理启动和优雅关闭，避免调用方直接操作底层对象。
type Server struct {
	httpServer *http.Server
}

// New 构建 Gin 路由并包装成 HTTP Server。
// verifier 用于校验 Bearer token 是否已登出，limiter 为 nil 时公开接口不限流。
func New(cfg Config, h Handlers, verifier middleware.TokenVerifier, limiter *middleware.RedisRateLimiter) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           NewRouter(cfg, h, verifier, limiter),
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
			ReadTimeout:       cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
		},
	}
}

// NewRouter 初始化路由
// - GET /health:  健康检查，供容器/探针调用。
// - GET /metrics: Prometheus 拉取指标。
// - GET /ws:      WebSocket 接入入口，token 走 query 参数。
// - /api/v1/public/*: 注册登录，按 IP 限流。
// - /api/v1/auth/*:   Bearer 认证后的 REST 接口。
func NewRouter(cfg Config, h Handlers, verifier middleware.TokenVerifier, limiter *middleware.RedisRateLimiter) *gin.Engine {
	r := gin.New()

	// 恢复中间件
	r.Use(middleware.GinRecovery(true))

	// 追踪中间件 (生成 trace_id)
	r.Use(util.TraceLogger())

	// 客户端 IP 中间件
	r.Use(middleware.ClientIPMiddleware())

	// 日志中间件
	r.Use(middleware.GinLogger())

	// Prometheus 监控中间件
	r.Use(middleware.PrometheusMiddleware())

	// 跨域中间件
	r.Use(middleware.CorsMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/ws", h.WS.ServeWS)

	api := r.Group("/api/v1")
	{
		// 公开接口（不需要认证）
		public := api.Group("/public")
		public.Use(middleware.IPRateLimitMiddleware(limiter))
		{
			user := public.Group("/user")
			{
				user.POST("/signup", h.Auth.Signup)
				user.POST("/login", h.Auth.Login)
			}
		}

		// 需要认证的接口
		auth := api.Group("/auth")
		auth.Use(middleware.JWTAuthMiddleware(verifier))
		if cfg.RequestTimeout > 0 {
			auth.Use(middleware.TimeoutMiddleware(cfg.RequestTimeout))
		}
		{
			auth.POST("/logout", h.Auth.Logout)
			auth.GET("/users", h.Friend.SearchUser)

			user := auth.Group("/user")
			{
				user.GET("/profile", h.User.GetProfile)
				user.PUT("/push-token", h.User.UpdatePushToken)
				user.POST("/avatar", h.User.UploadAvatar)
			}

			friends := auth.Group("/friends")
			{
				friends.GET("", h.Friend.GetFriends)
				friends.GET("/requests", h.Friend.GetFriendRequests)
				friends.POST("/requests", h.Friend.SendFriendRequest)
				friends.GET("/requests/count", h.Friend.CountFriendRequests)
				friends.PUT("/requests/:id/accept", h.Friend.AcceptFriendRequest)
				friends.PUT("/requests/:id/reject", h.Friend.RejectFriendRequest)
			}

			chat := auth.Group("/chat")
			{
				chat.GET("/messages", h.Chat.GetMessages)
				chat.PUT("/messages/:id/read", h.Chat.MarkRead)
				chat.GET("/sessions", h.Chat.GetSessions)
			}
		}
	}

	return r
}

// Start 启动 HTTP 监听。
// 正常优雅关闭时会返回 http.ErrServerClosed，调用方应将其视为正常退出。
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown 执行优雅停机。
// 调用方需要传入带超时的 ctx，以防止无限等待。
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
