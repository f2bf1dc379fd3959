package mq

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"ChatRelay/pkg/ctxmeta"
)

// ==================== Redis 任务定义 ====================

type CommandType string

const (
	CmdSimple   CommandType = "simple"   // SET, DEL, HSET...
	CmdPipeline CommandType = "pipeline" // 一组命令
)

const defaultMaxRetries = 3

// ErrProducerNotSet 未配置 Kafka 时重试任务直接丢弃。
var ErrProducerNotSet = errors.New("redis retry producer not set")

// RedisTask 写入 Kafka 的重试消息体。
type RedisTask struct {
	Type CommandType `json:"type"`

	// 普通命令，如 DEL key
	Command string        `json:"command,omitempty"`
	Args    []interface{} `json:"args,omitempty"`

	// Pipeline
	PipelineCmds []RedisCmd `json:"pipeline_cmds,omitempty"`

	TraceID     string    `json:"trace_id,omitempty"`
	UserID      string    `json:"user_id,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	RetryCount  int       `json:"retry_count"`
	MaxRetries  int       `json:"max_retries"`
	OriginalErr string    `json:"original_err"`
	Source      string    `json:"source,omitempty"`
}

type RedisCmd struct {
	Command string        `json:"command"`
	Args    []interface{} `json:"args"`
}

// ==================== 构造器 ====================

func simpleTask(command string, args ...interface{}) RedisTask {
	return RedisTask{
		Type:       CmdSimple,
		Command:    command,
		Args:       args,
		Timestamp:  time.Now(),
		MaxRetries: defaultMaxRetries,
	}
}

// BuildDelTask DEL key...
func BuildDelTask(keys ...string) RedisTask {
	args := make([]interface{}, 0, len(keys))
	for _, k := range keys {
		args = append(args, k)
	}
	return simpleTask("del", args...)
}

// BuildSetTask SET key val [EX ttl]
func BuildSetTask(key string, val interface{}, ttl time.Duration) RedisTask {
	args := []interface{}{key, val}
	if ttl > 0 {
		args = append(args, "EX", int(ttl.Seconds()))
	}
	return simpleTask("set", args...)
}

// BuildSAddTask SADD key member...
func BuildSAddTask(key string, members ...interface{}) RedisTask {
	return simpleTask("sadd", append([]interface{}{key}, members...)...)
}

// BuildSRemTask SREM key member...
func BuildSRemTask(key string, members ...interface{}) RedisTask {
	return simpleTask("srem", append([]interface{}{key}, members...)...)
}

// BuildPipelineTask 一组命令整体重试。
func BuildPipelineTask(cmds []RedisCmd) RedisTask {
	return RedisTask{
		Type:         CmdPipeline,
		PipelineCmds: cmds,
		Timestamp:    time.Now(),
		MaxRetries:   defaultMaxRetries,
	}
}

// ==================== 链式方法 ====================

// WithContext 带上 trace/user 元数据，方便消费端日志串联。
func (t RedisTask) WithContext(ctx context.Context) RedisTask {
	t.TraceID = ctxmeta.TraceID(ctx)
	t.UserID = ctxmeta.UserID(ctx)
	return t
}

func (t RedisTask) WithError(err error) RedisTask {
	if err != nil {
		t.OriginalErr = err.Error()
	}
	return t
}

func (t RedisTask) WithSource(source string) RedisTask {
	t.Source = source
	return t
}

func (t RedisTask) WithMaxRetries(maxRetries int) RedisTask {
	t.MaxRetries = maxRetries
	return t
}

// key 作为 Kafka 分区键，同一个 Redis key 的重试落到同一分区保持顺序。
func (t RedisTask) key() []byte {
	if t.Type == CmdSimple && len(t.Args) > 0 {
		if s, ok := t.Args[0].(string); ok {
			return []byte(s)
		}
	}
	if len(t.PipelineCmds) > 0 && len(t.PipelineCmds[0].Args) > 0 {
		if s, ok := t.PipelineCmds[0].Args[0].(string); ok {
			return []byte(s)
		}
	}
	return nil
}

// ==================== 投递 ====================

// Sender 抽象 Kafka 生产者，*kafka.Producer 满足该接口。
type Sender interface {
	Send(ctx context.Context, topic string, key, value []byte) error
}

var (
	producerMu sync.RWMutex
	producer   Sender
	retryTopic string
)

// SetGlobalProducer 设置重试任务的生产者与 topic，传 nil 关闭重试。
func SetGlobalProducer(p Sender, topic string) {
	producerMu.Lock()
	defer producerMu.Unlock()
	producer = p
	retryTopic = topic
}

// SendRedisTask 把失败的 Redis 写入投递到重试队列。
func SendRedisTask(ctx context.Context, task RedisTask) error {
	producerMu.RLock()
	p, topic := producer, retryTopic
	producerMu.RUnlock()
	if p == nil {
		return ErrProducerNotSet
	}

	value, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return p.Send(ctx, topic, task.key(), value)
}
