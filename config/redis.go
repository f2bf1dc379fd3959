package config

import (
	"os"
	"time"
)

// RedisConfig Redis 配置。
type RedisConfig struct {
	Addr         string        `json:"addr" yaml:"addr"`
	Password     string        `json:"password" yaml:"password"`
	DB           int           `json:"db" yaml:"db"`
	PoolSize     int           `json:"poolSize" yaml:"poolSize"`
	MinIdleConns int           `json:"minIdleConns" yaml:"minIdleConns"`
	DialTimeout  time.Duration `json:"dialTimeout" yaml:"dialTimeout"`
	ReadTimeout  time.Duration `json:"readTimeout" yaml:"readTimeout"`
	WriteTimeout time.Duration `json:"writeTimeout" yaml:"writeTimeout"`
}

// DefaultRedisConfig 返回默认配置，REDIS_ADDR / REDIS_PASSWORD 可覆盖。
func DefaultRedisConfig() RedisConfig {
	cfg := RedisConfig{
		Addr:         "redis:6379",
		PoolSize:     100,
		MinIdleConns: 10,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Addr = v
	}
	cfg.Password = os.Getenv("REDIS_PASSWORD")
	return cfg
}
