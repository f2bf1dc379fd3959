package config

import (
	"os"
	"time"
)

// FCMConfig Firebase Cloud Messaging 推送配置。
// ServiceAccountPath 为空时不启用 FCM，离线推送退化为进程内记录。
type FCMConfig struct {
	ServiceAccountPath string        `json:"serviceAccountPath" yaml:"serviceAccountPath"`
	Endpoint           string        `json:"endpoint" yaml:"endpoint"` // 发送接口根地址
	TokenURL           string        `json:"tokenUrl" yaml:"tokenUrl"` // 为空时使用 service account 中的 token_uri
	Scope              string        `json:"scope" yaml:"scope"`
	RequestTimeout     time.Duration `json:"requestTimeout" yaml:"requestTimeout"`
}

// DefaultFCMConfig 返回默认配置，FCM_SERVICE_ACCOUNT 可覆盖。
func DefaultFCMConfig() FCMConfig {
	return FCMConfig{
		ServiceAccountPath: os.Getenv("FCM_SERVICE_ACCOUNT"),
		Endpoint:           "https://fcm.googleapis.com",
		Scope:              "https://www.googleapis.com/auth/firebase.messaging",
		RequestTimeout:     10 * time.Second,
	}
}

// Enabled 是否配置了 service account。
func (c FCMConfig) Enabled() bool {
	return c.ServiceAccountPath != ""
}
