package kafka

import (
	"context"
	"errors"
	"time"

	"ChatRelay/config"

	"github.com/segmentio/kafka-go"
)

// ErrNotConfigured 未配置 broker。
var ErrNotConfigured = errors.New("kafka brokers not configured")

// Producer 对 kafka.Writer 的轻量封装，topic 由每条消息指定。
type Producer struct {
	writer *kafka.Writer
}

var global *Producer

// Global 返回全局生产者（未初始化时为 nil）。
func Global() *Producer { return global }

// ReplaceGlobal 设置全局生产者。
func ReplaceGlobal(p *Producer) { global = p }

// NewProducer 创建生产者。kafka-go 的 Writer 惰性建连，这里不会阻塞。
func NewProducer(cfg config.KafkaConfig) (*Producer, error) {
	if !cfg.Enabled() {
		return nil, ErrNotConfigured
	}
	return &Producer{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Balancer:               &kafka.Hash{},
			BatchTimeout:           cfg.BatchTimeout,
			WriteTimeout:           cfg.WriteTimeout,
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
		},
	}, nil
}

// Send 同步写入一条消息。
func (p *Producer) Send(ctx context.Context, topic string, key, value []byte) error {
	return p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   key,
		Value: value,
		Time:  time.Now(),
	})
}

// Close 刷出缓冲并关闭。
func (p *Producer) Close() error {
	if p == nil {
		return nil
	}
	return p.writer.Close()
}

// NewReader 创建消费组 reader。
func NewReader(cfg config.KafkaConfig, topic string) (*kafka.Reader, error) {
	if !cfg.Enabled() {
		return nil, ErrNotConfigured
	}
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		GroupID:  cfg.ConsumerGroup,
		Topic:    topic,
		MinBytes: 1,
		MaxBytes: 1 << 20,
		MaxWait:  time.Second,
	}), nil
}
