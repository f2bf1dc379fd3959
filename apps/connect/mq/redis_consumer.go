package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"ChatRelay/pkg/ctxmeta"
	"ChatRelay/pkg/logger"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
)

// MessageReader 抽象 kafka.Reader，便于测试替换。
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Executor 重放所需的 Redis 能力，*redis.Client 满足该接口。
type Executor interface {
	Do(ctx context.Context, args ...interface{}) *redis.Cmd
	Pipeline() redis.Pipeliner
}

// RedisRetryConsumer 消费重试队列并重放 Redis 命令。
// 重放失败且未超过 MaxRetries 时计数 +1 重新投递，否则记录错误后放弃。
type RedisRetryConsumer struct {
	reader  MessageReader
	redis   Executor
	sender  Sender
	topic   string
	backoff time.Duration
}

// NewRedisRetryConsumer 创建消费者，sender 为 nil 时失败任务不再回投。
func NewRedisRetryConsumer(reader MessageReader, rdb Executor, sender Sender, topic string, backoff time.Duration) *RedisRetryConsumer {
	return &RedisRetryConsumer{
		reader:  reader,
		redis:   rdb,
		sender:  sender,
		topic:   topic,
		backoff: backoff,
	}
}

// Start 阻塞消费直到 ctx 取消或 reader 关闭。
func (c *RedisRetryConsumer) Start(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		c.handle(ctx, msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			logger.Warn(ctx, "提交 Redis 重试消息 offset 失败", logger.ErrorField("error", err))
		}
	}
}

// Close 关闭底层 reader。
func (c *RedisRetryConsumer) Close() error {
	return c.reader.Close()
}

func (c *RedisRetryConsumer) handle(ctx context.Context, msg kafka.Message) {
	var task RedisTask
	if err := json.Unmarshal(msg.Value, &task); err != nil {
		logger.Error(ctx, "Redis 重试消息解析失败，丢弃", logger.ErrorField("error", err))
		return
	}

	taskCtx := ctxmeta.WithUserID(ctxmeta.WithTraceID(ctx, task.TraceID), task.UserID)
	if c.backoff > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.backoff):
		}
	}

	err := c.Execute(taskCtx, task)
	if err == nil {
		logger.Info(taskCtx, "Redis 重试任务执行成功",
			logger.String("source", task.Source),
			logger.Int("retry_count", task.RetryCount),
		)
		return
	}

	task.RetryCount++
	task.OriginalErr = err.Error()
	if task.RetryCount >= task.MaxRetries || c.sender == nil {
		logger.Error(taskCtx, "Redis 重试任务超过最大重试次数，放弃",
			logger.String("source", task.Source),
			logger.Int("retry_count", task.RetryCount),
			logger.ErrorField("error", err),
		)
		return
	}

	value, mErr := json.Marshal(task)
	if mErr != nil {
		logger.Error(taskCtx, "Redis 重试任务序列化失败", logger.ErrorField("error", mErr))
		return
	}
	if sErr := c.sender.Send(ctx, c.topic, task.key(), value); sErr != nil {
		logger.Error(taskCtx, "Redis 重试任务回投失败，放弃",
			logger.ErrorField("kafka_error", sErr),
			logger.ErrorField("original_error", err),
		)
	}
}

// Execute 在 Redis 上重放任务。
func (c *RedisRetryConsumer) Execute(ctx context.Context, task RedisTask) error {
	switch task.Type {
	case CmdSimple:
		return c.redis.Do(ctx, commandArgs(task.Command, task.Args)...).Err()
	case CmdPipeline:
		pipe := c.redis.Pipeline()
		for _, cmd := range task.PipelineCmds {
			pipe.Do(ctx, commandArgs(cmd.Command, cmd.Args)...)
		}
		_, err := pipe.Exec(ctx)
		return err
	default:
		return fmt.Errorf("unknown redis task type %q", task.Type)
	}
}

func commandArgs(command string, args []interface{}) []interface{} {
	out := make([]interface{}, 0, len(args)+1)
	out = append(out, command)
	return append(out, args...)
}
