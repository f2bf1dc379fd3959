package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"ChatRelay/apps/connect/internal/handler"
	"ChatRelay/apps/connect/internal/manager"
	"ChatRelay/apps/connect/internal/middleware"
	"ChatRelay/apps/connect/internal/notifier"
	"ChatRelay/apps/connect/internal/repository"
	"ChatRelay/apps/connect/internal/server"
	"ChatRelay/apps/connect/internal/svc"
	"ChatRelay/apps/connect/mq"
	"ChatRelay/config"
	"ChatRelay/pkg/async"
	"ChatRelay/pkg/ctxmeta"
	pkgkafka "ChatRelay/pkg/kafka"
	"ChatRelay/pkg/logger"
	pkgminio "ChatRelay/pkg/minio"
	pkgmysql "ChatRelay/pkg/mysql"
	pkgredis "ChatRelay/pkg/redis"
	"ChatRelay/pkg/util"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

func main() {
	// 初始化根上下文，并放入一个默认 trace_id。
	// connect 服务不是从 HTTP 请求起步，因此先放一个固定值用于启动期日志串联。
	ctx := ctxmeta.WithTraceID(context.Background(), "0")

	// 1) 初始化日志组件（必须最先完成，后续模块初始化都依赖日志输出）。
	logCfg := config.DefaultLoggerConfig()
	l, err := logger.Build(logCfg)
	if err != nil {
		panic(err)
	}
	logger.ReplaceGlobal(l)
	defer func() {
		_ = l.Sync()
	}()

	ginMode := os.Getenv("GIN_MODE")
	if ginMode == "" {
		ginMode = gin.ReleaseMode
	}
	gin.SetMode(ginMode)

	// 2) 令牌签名与 ID 生成器。
	util.InitJWT(config.DefaultJWTConfig())
	nodeID := int64(1)
	if v := os.Getenv("SNOWFLAKE_NODE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			nodeID = n
		}
	}
	if err := util.InitSnowflake(nodeID); err != nil {
		logger.Fatal(ctx, "初始化雪花 ID 失败", logger.ErrorField("error", err))
	}

	// 3) 初始化数据库。DB_DRIVER=memory 时不落库，重启即丢数据。
	dbCfg := config.DefaultMySQLConfig()
	sessionCfg := config.DefaultSessionConfig()
	var (
		db         *gorm.DB
		userRepo   repository.IUserRepository
		friendRepo repository.IFriendRepository
		chatRepo   repository.IChatRepository
	)
	if dbCfg.Driver == config.DriverMemory {
		store := repository.NewMemoryStore()
		userRepo, friendRepo, chatRepo = store.Users(), store.Friends(), store.Chats()
		logger.Warn(ctx, "使用内存仓储，数据不会持久化")
	} else {
		db, err = pkgmysql.Build(dbCfg)
		if err != nil {
			logger.Fatal(ctx, "数据库初始化失败",
				logger.String("driver", dbCfg.Driver),
				logger.ErrorField("error", err),
			)
		}
		pkgmysql.ReplaceGlobal(db)
		if dbCfg.AutoMigrate {
			if err := repository.AutoMigrate(db); err != nil {
				logger.Fatal(ctx, "数据库建表失败", logger.ErrorField("error", err))
			}
		}
		userRepo = repository.NewUserRepository(db)
		friendRepo = repository.NewFriendRepository(db)
		chatRepo = repository.NewChatRepository(db)
		logger.Info(ctx, "数据库初始化成功", logger.String("driver", dbCfg.Driver))
	}
	userRepo = repository.NewCachedUserRepository(userRepo, sessionCfg.UserCacheSize, sessionCfg.UserCacheTTL)

	// 4) 初始化 Redis。
	// 说明：
	// - 登录态、在线状态与公开接口限流都依赖 Redis。
	// - 这里采用降级策略：Redis 不可用时服务仍可启动（仅能力受限）。
	redisCfg := config.DefaultRedisConfig()
	redisClient, err := pkgredis.Build(redisCfg)
	if err != nil {
		logger.Warn(ctx, "Connect 服务 Redis 初始化失败，降级为无 Redis 模式",
			logger.ErrorField("error", err),
		)
		redisClient = nil
	} else {
		pkgredis.ReplaceGlobal(redisClient)
		logger.Info(ctx, "Connect 服务 Redis 初始化成功",
			logger.String("addr", redisCfg.Addr),
		)
	}

	// 5) 初始化 Kafka 重试队列（可选）：Redis 写失败的命令投递到 Kafka，由消费者重放。
	kafkaCfg := config.DefaultKafkaConfig()
	var (
		producer *pkgkafka.Producer
		consumer *mq.RedisRetryConsumer
	)
	consumerCtx, stopConsumer := context.WithCancel(ctx)
	defer stopConsumer()
	if kafkaCfg.Enabled() {
		producer, err = pkgkafka.NewProducer(kafkaCfg)
		if err != nil {
			logger.Warn(ctx, "Kafka 生产者初始化失败，Redis 重试队列不可用", logger.ErrorField("error", err))
		} else {
			pkgkafka.ReplaceGlobal(producer)
			mq.SetGlobalProducer(producer, kafkaCfg.RedisRetryTopic)
			logger.Info(ctx, "Kafka 重试队列已启用",
				logger.String("topic", kafkaCfg.RedisRetryTopic),
			)
		}

		if producer != nil && redisClient != nil {
			reader, err := pkgkafka.NewReader(kafkaCfg, kafkaCfg.RedisRetryTopic)
			if err != nil {
				logger.Warn(ctx, "Kafka 消费者初始化失败", logger.ErrorField("error", err))
			} else {
				consumer = mq.NewRedisRetryConsumer(reader, redisClient, producer, kafkaCfg.RedisRetryTopic, kafkaCfg.RetryBackoff)
				go func() {
					if err := consumer.Start(consumerCtx); err != nil {
						logger.Error(ctx, "Redis 重试消费者异常退出", logger.ErrorField("error", err))
					}
				}()
			}
		}
	}

	// 6) 初始化协程池（在线状态写入等旁路任务）。
	if err := async.Init(config.DefaultAsyncConfig()); err != nil {
		logger.Fatal(ctx, "协程池初始化失败", logger.ErrorField("error", err))
	}

	// 7) 初始化对象存储（可选）。未启用时头像上传返回 CodeUploadNotConfigured。
	var uploader svc.ObjectUploader
	if minioCfg := config.DefaultMinIOConfig(); minioCfg.Endpoint != "" {
		mc, err := pkgminio.Build(minioCfg)
		if err != nil {
			logger.Warn(ctx, "MinIO 初始化失败，头像上传不可用", logger.ErrorField("error", err))
		} else {
			uploader = mc
			logger.Info(ctx, "MinIO 初始化成功", logger.String("endpoint", minioCfg.Endpoint))
		}
	}

	// 8) 初始化离线推送。未配置 FCM 时只记录不外发。
	var n notifier.Notifier
	if fcmCfg := config.DefaultFCMConfig(); fcmCfg.ServiceAccountPath != "" {
		fcm, err := notifier.NewFCMNotifier(fcmCfg, userRepo)
		if err != nil {
			logger.Fatal(ctx, "FCM 初始化失败", logger.ErrorField("error", err))
		}
		n = fcm
	} else {
		logger.Warn(ctx, "未配置 FCM，离线推送只记录日志")
		n = notifier.NewMemoryNotifier(userRepo)
	}

	// 9) 组装核心依赖：
	// - manager: 连接注册/注销与在线连接索引。
	// - svc:     鉴权、转发、好友、聊天记录。
	// - handler: Gin 入口，/ws 与 REST 共用同一套 svc。
	connManager := manager.NewConnectionManager()
	sessionRepo := repository.NewSessionRepository(redisClient)

	relay := svc.NewRelay(connManager, chatRepo, userRepo, n)
	friendSvc := svc.NewFriendService(friendRepo, userRepo, relay)
	chatSvc := svc.NewChatService(chatRepo, sessionCfg)
	connectSvc := svc.NewConnectService(sessionRepo)

	handlers := server.Handlers{
		WS:     handler.NewWSHandler(connManager, connectSvc, relay, friendSvc, chatSvc, sessionCfg),
		Auth:   handler.NewAuthHandler(svc.NewAuthService(userRepo, sessionRepo, connManager)),
		User:   handler.NewUserHandler(svc.NewUserService(userRepo, n, uploader)),
		Friend: handler.NewFriendHandler(friendSvc),
		Chat:   handler.NewChatHandler(chatSvc),
	}

	srvCfg := server.DefaultConfig()
	var scripter redis.Scripter
	if redisClient != nil {
		scripter = redisClient
	}
	limiter := middleware.NewRedisRateLimiter(scripter, srvCfg.PublicRate, srvCfg.PublicBurst)

	// 10) 构建 HTTP 服务并后台启动监听。
	// ListenAndServe 的正常退出会返回 http.ErrServerClosed，这种情况不视为启动失败。
	srv := server.New(srvCfg, handlers, sessionRepo, limiter)
	go func() {
		logger.Info(ctx, "Connect 服务启动中",
			logger.String("addr", srvCfg.Addr),
		)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal(ctx, "Connect 服务启动失败",
				logger.ErrorField("error", err),
			)
		}
	}()

	// 11) 阻塞等待系统退出信号（Ctrl+C / SIGTERM）。
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// 12) 优雅关闭流程：
	// - 先关闭连接管理器，主动断开所有 WebSocket 连接，避免悬挂连接。
	// - 再关闭 HTTP 服务，等待进行中的请求在超时时间内结束。
	// - 最后释放协程池与外部连接。
	logger.Info(ctx, "Connect 服务开始优雅停机")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	connManager.Shutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "Connect 服务优雅停机失败",
			logger.ErrorField("error", err),
		)
	}

	stopConsumer()
	if consumer != nil {
		_ = consumer.Close()
	}
	if err := async.Release(); err != nil {
		logger.Warn(ctx, "协程池释放超时", logger.ErrorField("error", err))
	}
	if producer != nil {
		_ = producer.Close()
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if err := pkgmysql.Close(db); err != nil {
		logger.Warn(ctx, "关闭数据库连接失败", logger.ErrorField("error", err))
	}

	logger.Info(ctx, "Connect 服务已退出")
}
