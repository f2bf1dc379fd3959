package repository

import (
	"context"
	"errors"
	"fmt"

	"ChatRelay/apps/connect/mq"
	"ChatRelay/pkg/logger"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// ==================== Repository 层统一错误定义 ====================

var (
	// ErrRecordNotFound 记录不存在
	ErrRecordNotFound = errors.New("record not found")

	// ErrDuplicateKey 唯一键冲突
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrDatabase 数据库操作错误
	ErrDatabase = errors.New("database error")

	// ErrRedis Redis 操作错误
	ErrRedis = errors.New("redis error")
)

// wrapError 按 rules 映射已知错误，未命中时包装 defaultErr 并保留原始信息。
func wrapError(err error, rules map[error]error, defaultErr error) error {
	if err == nil {
		return nil
	}
	for source, target := range rules {
		if errors.Is(err, source) {
			return target
		}
	}
	return fmt.Errorf("%w: %v", defaultErr, err)
}

var dbErrorRules = map[error]error{
	gorm.ErrRecordNotFound: ErrRecordNotFound,
	gorm.ErrDuplicatedKey:  ErrDuplicateKey,
}

// WrapDBError 包装数据库错误
func WrapDBError(err error) error {
	return wrapError(err, dbErrorRules, ErrDatabase)
}

// WrapRedisError 包装 Redis 错误，redis.Nil 不算错误由调用方自行判断。
func WrapRedisError(err error) error {
	if errors.Is(err, redis.Nil) {
		return err
	}
	return wrapError(err, nil, ErrRedis)
}

// LogAndRetryRedisError 记录 Redis 写失败并投递到 Kafka 重试队列。
func LogAndRetryRedisError(ctx context.Context, task mq.RedisTask, err error) {
	logger.Warn(ctx, "Redis 操作失败，发送到重试队列",
		logger.ErrorField("error", err),
		logger.String("task_type", string(task.Type)),
		logger.String("source", task.Source),
	)

	task = task.WithContext(ctx).WithError(err)
	if kafkaErr := mq.SendRedisTask(ctx, task); kafkaErr != nil {
		logger.Error(ctx, "发送 Redis 重试任务到 Kafka 失败，放弃处理",
			logger.ErrorField("kafka_error", kafkaErr),
			logger.ErrorField("original_error", err),
			logger.String("source", task.Source),
		)
	}
}
