package config

import (
	"os"
	"time"
)

// JWTConfig 访问令牌配置。
type JWTConfig struct {
	Secret         string        `json:"secret" yaml:"secret"`
	Issuer         string        `json:"issuer" yaml:"issuer"`
	AccessTokenTTL time.Duration `json:"accessTokenTTL" yaml:"accessTokenTTL"`
}

// DefaultJWTConfig 返回默认配置，JWT_SECRET 可覆盖。
func DefaultJWTConfig() JWTConfig {
	cfg := JWTConfig{
		Secret:         "chatrelay-dev-secret",
		Issuer:         "chatrelay",
		AccessTokenTTL: 7 * 24 * time.Hour,
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Secret = v
	}
	return cfg
}
