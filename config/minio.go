package config

import (
	"os"
	"time"
)

// MinIOConfig 头像等用户文件的对象存储配置。
type MinIOConfig struct {
	Endpoint        string `json:"endpoint" yaml:"endpoint"`
	AccessKeyID     string `json:"accessKeyId" yaml:"accessKeyId"`
	SecretAccessKey string `json:"secretAccessKey" yaml:"secretAccessKey"`
	UseSSL          bool   `json:"useSSL" yaml:"useSSL"`

	BucketName string `json:"bucketName" yaml:"bucketName"`
	Location   string `json:"location" yaml:"location"`
	PublicRead bool   `json:"publicRead" yaml:"publicRead"`
	BaseURL    string `json:"baseUrl" yaml:"baseUrl"` // 返回给客户端的访问前缀

	MaxFileSize   int64         `json:"maxFileSize" yaml:"maxFileSize"`
	AllowedTypes  []string      `json:"allowedTypes" yaml:"allowedTypes"`
	UploadTimeout time.Duration `json:"uploadTimeout" yaml:"uploadTimeout"`
}

// DefaultMinIOConfig 返回默认配置，MINIO_* 环境变量可覆盖；MINIO_ENDPOINT 为空串时不启用上传。
func DefaultMinIOConfig() MinIOConfig {
	cfg := MinIOConfig{
		Endpoint:        "minio:9000",
		AccessKeyID:     "minioadmin",
		SecretAccessKey: "minioadmin",
		BucketName:      "chatrelay",
		Location:        "us-east-1",
		PublicRead:      true,
		BaseURL:         "http://localhost:9000",
		MaxFileSize:     5 * 1024 * 1024,
		AllowedTypes:    []string{"image/jpeg", "image/png", "image/gif", "image/webp"},
		UploadTimeout:   30 * time.Second,
	}
	if v, ok := os.LookupEnv("MINIO_ENDPOINT"); ok {
		cfg.Endpoint = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		cfg.AccessKeyID = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		cfg.SecretAccessKey = v
	}
	if v := os.Getenv("MINIO_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	cfg.UseSSL = os.Getenv("MINIO_USE_SSL") == "true"
	return cfg
}
