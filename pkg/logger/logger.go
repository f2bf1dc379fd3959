package logger

import (
	"context"
	"os"
	"strings"
	"time"

	"ChatRelay/config"
	"ChatRelay/pkg/ctxmeta"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var global = zap.NewNop()

// L 返回全局 logger，未初始化时是 Nop。
func L() *zap.Logger {
	return global
}

// ReplaceGlobal 设置全局 logger 并同步 zap.L()，进程启动时调用一次。
func ReplaceGlobal(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	global = l
	zap.ReplaceGlobals(l)
}

// Build 根据配置构建 zap Logger。
// 级别解析失败回退到 info；文件输出不做滚动，交给外部系统。
func Build(cfg config.LoggerConfig) (*zap.Logger, error) {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(strings.ToLower(cfg.Level))); err != nil {
		level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	encoderCfg := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stack",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeTime:     zapcore.TimeEncoderOfLayout(time.RFC3339Nano),
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var encoder zapcore.Encoder
	if strings.EqualFold(cfg.Encoding, "console") {
		encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		if cfg.EnableColor {
			encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	} else {
		encoderCfg.EncodeLevel = zapcore.LowercaseLevelEncoder
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	core := zapcore.NewCore(encoder, buildSyncer(cfg.OutputPaths, zapcore.AddSync(os.Stdout)), level)
	opts := []zap.Option{
		zap.ErrorOutput(buildSyncer(cfg.ErrorOutputPaths, zapcore.AddSync(os.Stderr))),
		zap.AddCaller(),
		zap.AddCallerSkip(2), // 跳过 Info/Warn 与 write 两层封装
	}
	if cfg.Development {
		opts = append(opts, zap.Development(), zap.AddStacktrace(zapcore.ErrorLevel))
	}
	return zap.New(core, opts...), nil
}

// buildSyncer 支持 stdout/stderr 关键字和文件路径，全部不可用时回退到 fallback。
func buildSyncer(paths []string, fallback zapcore.WriteSyncer) zapcore.WriteSyncer {
	var syncers []zapcore.WriteSyncer
	for _, p := range paths {
		switch strings.ToLower(p) {
		case "stdout":
			syncers = append(syncers, zapcore.AddSync(os.Stdout))
		case "stderr":
			syncers = append(syncers, zapcore.AddSync(os.Stderr))
		default:
			if f, err := os.OpenFile(p, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644); err == nil {
				syncers = append(syncers, zapcore.AddSync(f))
			}
		}
	}
	if len(syncers) == 0 {
		return fallback
	}
	return zapcore.NewMultiWriteSyncer(syncers...)
}

func Info(ctx context.Context, msg string, fields ...zap.Field) {
	write(ctx, zapcore.InfoLevel, msg, fields)
}

func Warn(ctx context.Context, msg string, fields ...zap.Field) {
	write(ctx, zapcore.WarnLevel, msg, fields)
}

func Error(ctx context.Context, msg string, fields ...zap.Field) {
	write(ctx, zapcore.ErrorLevel, msg, fields)
}

func Fatal(ctx context.Context, msg string, fields ...zap.Field) {
	write(ctx, zapcore.FatalLevel, msg, fields)
}

func Debug(ctx context.Context, msg string, fields ...zap.Field) {
	write(ctx, zapcore.DebugLevel, msg, fields)
}

// write 追加 ctx 中的 trace_id / user_id 后输出。
func write(ctx context.Context, lvl zapcore.Level, msg string, fields []zap.Field) {
	if ce := global.Check(lvl, msg); ce != nil {
		if traceID := ctxmeta.TraceID(ctx); traceID != "" {
			fields = append(fields, zap.String("trace_id", traceID))
		}
		if userID := ctxmeta.UserID(ctx); userID != "" {
			fields = append(fields, zap.String("user_id", userID))
		}
		ce.Write(fields...)
	}
}

// ========== Field 辅助函数封装 ==========
// 业务代码无需直接导入 zap 包

func String(key, value string) zap.Field {
	return zap.String(key, value)
}

func Int(key string, value int) zap.Field {
	return zap.Int(key, value)
}

func Int64(key string, value int64) zap.Field {
	return zap.Int64(key, value)
}

func Bool(key string, value bool) zap.Field {
	return zap.Bool(key, value)
}

// ErrorField 创建错误字段，key 为空时使用 zap 默认的 "error"。
func ErrorField(key string, err error) zap.Field {
	if key == "" || key == "error" {
		return zap.Error(err)
	}
	return zap.NamedError(key, err)
}

func Any(key string, value interface{}) zap.Field {
	return zap.Any(key, value)
}

func Duration(key string, value time.Duration) zap.Field {
	return zap.Duration(key, value)
}

func Time(key string, value time.Time) zap.Field {
	return zap.Time(key, value)
}
