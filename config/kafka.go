package config

import (
	"os"
	"strings"
	"time"
)

// KafkaConfig Kafka 配置。
// 目前只承载 Redis 失败写入的重试队列。
type KafkaConfig struct {
	Brokers         []string      `json:"brokers" yaml:"brokers"`
	RedisRetryTopic string        `json:"redisRetryTopic" yaml:"redisRetryTopic"`
	ConsumerGroup   string        `json:"consumerGroup" yaml:"consumerGroup"`
	BatchTimeout    time.Duration `json:"batchTimeout" yaml:"batchTimeout"`
	WriteTimeout    time.Duration `json:"writeTimeout" yaml:"writeTimeout"`
	RetryBackoff    time.Duration `json:"retryBackoff" yaml:"retryBackoff"` // 消费端每次重放前等待
}

// DefaultKafkaConfig 返回默认配置，KAFKA_BROKERS（逗号分隔）可覆盖；为空时不启用。
func DefaultKafkaConfig() KafkaConfig {
	cfg := KafkaConfig{
		RedisRetryTopic: "chatrelay.redis.retry",
		ConsumerGroup:   "chatrelay-connect",
		BatchTimeout:    50 * time.Millisecond,
		WriteTimeout:    5 * time.Second,
		RetryBackoff:    time.Second,
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		for _, b := range strings.Split(v, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.Brokers = append(cfg.Brokers, b)
			}
		}
	}
	return cfg
}

// Enabled 是否配置了 broker。
func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0
}
