package config

import (
	"os"
	"strconv"
	"time"
)

// SessionConfig WebSocket 会话配置。
type SessionConfig struct {
	// InboundRate 单连接每秒允许的上行帧数，<=0 表示不限流。
	InboundRate  float64 `json:"inboundRate" yaml:"inboundRate"`
	InboundBurst int     `json:"inboundBurst" yaml:"inboundBurst"`
	// MaxFrameSize 单帧最大字节数。
	MaxFrameSize int64 `json:"maxFrameSize" yaml:"maxFrameSize"`
	// HistoryPageSize / HistoryMaxPageSize 聊天记录分页参数。
	HistoryPageSize    int `json:"historyPageSize" yaml:"historyPageSize"`
	HistoryMaxPageSize int `json:"historyMaxPageSize" yaml:"historyMaxPageSize"`
	// UserCacheSize / UserCacheTTL 用户资料本地缓存。
	UserCacheSize int           `json:"userCacheSize" yaml:"userCacheSize"`
	UserCacheTTL  time.Duration `json:"userCacheTTL" yaml:"userCacheTTL"`
}

// DefaultSessionConfig 返回默认配置，WS_INBOUND_RATE 可覆盖。
func DefaultSessionConfig() SessionConfig {
	cfg := SessionConfig{
		InboundRate:        20,
		InboundBurst:       40,
		MaxFrameSize:       64 * 1024,
		HistoryPageSize:    20,
		HistoryMaxPageSize: 100,
		UserCacheSize:      10000,
		UserCacheTTL:       5 * time.Minute,
	}
	if v := os.Getenv("WS_INBOUND_RATE"); v != "" {
		if rate, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.InboundRate = rate
		}
	}
	return cfg
}
