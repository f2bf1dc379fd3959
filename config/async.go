package config

import (
	"os"
	"strconv"
	"time"
)

// AsyncConfig 协程池配置。
// connect 服务里只用于旁路任务（在线状态写入、重试投递），不参与消息转发主链路。
type AsyncConfig struct {
	PoolSize         int           `json:"poolSize" yaml:"poolSize"`
	MaxBlockingTasks int           `json:"maxBlockingTasks" yaml:"maxBlockingTasks"` // 0 表示不限制
	ExpiryDuration   time.Duration `json:"expiryDuration" yaml:"expiryDuration"`
	Nonblocking      bool          `json:"nonblocking" yaml:"nonblocking"` // 池满时直接拒绝而不是等待
	ReleaseTimeout   time.Duration `json:"releaseTimeout" yaml:"releaseTimeout"`
	TaskTimeout      time.Duration `json:"taskTimeout" yaml:"taskTimeout"` // RunSafe 默认超时
}

// DefaultAsyncConfig 返回默认配置，ASYNC_POOL_SIZE 可覆盖。
func DefaultAsyncConfig() AsyncConfig {
	cfg := AsyncConfig{
		PoolSize:         512,
		MaxBlockingTasks: 1024,
		ExpiryDuration:   10 * time.Second,
		Nonblocking:      true,
		ReleaseTimeout:   5 * time.Second,
		TaskTimeout:      3 * time.Second,
	}
	if v := os.Getenv("ASYNC_POOL_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.PoolSize = n
		}
	}
	return cfg
}
