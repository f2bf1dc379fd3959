package redis

import (
	"context"
	"fmt"

	"ChatRelay/config"

	"github.com/redis/go-redis/v9"
)

var global *redis.Client

// Client 返回全局 Redis 客户端（未初始化时为 nil）。
func Client() *redis.Client { return global }

// ReplaceGlobal 设置全局 Redis 客户端。
func ReplaceGlobal(c *redis.Client) { global = c }

// Build 创建客户端并 Ping，一次失败即返回错误，由调用方决定是否降级。
func Build(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout+cfg.ReadTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}
	return client, nil
}
