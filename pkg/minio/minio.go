package minio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"ChatRelay/config"
	"ChatRelay/pkg/logger"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var (
	// ErrFileTooLarge 超过 MaxFileSize
	ErrFileTooLarge = errors.New("file too large")
	// ErrTypeNotAllowed 内容类型不在白名单
	ErrTypeNotAllowed = errors.New("file type not allowed")
)

// Client 对象存储客户端封装
type Client struct {
	client *minio.Client
	config config.MinIOConfig
}

// UploadOptions 上传选项
type UploadOptions struct {
	PathPrefix string            // 如 "avatars/"
	Metadata   map[string]string // 可选用户元数据
}

// UploadResult 上传结果
type UploadResult struct {
	ObjectName  string `json:"object_name"`
	Size        int64  `json:"size"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
}

// Build 创建客户端并确保 bucket 存在。
func Build(cfg config.MinIOConfig) (*Client, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, errors.New("minio endpoint is empty")
	}
	if strings.TrimSpace(cfg.BucketName) == "" {
		return nil, errors.New("minio bucketName is empty")
	}

	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := mc.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := mc.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{Region: cfg.Location}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
		logger.Info(ctx, "MinIO Bucket 创建成功", logger.String("bucket", cfg.BucketName))

		if cfg.PublicRead {
			if err := mc.SetBucketPolicy(ctx, cfg.BucketName, publicReadPolicy(cfg.BucketName)); err != nil {
				logger.Warn(ctx, "设置 Bucket 公开读策略失败",
					logger.String("bucket", cfg.BucketName),
					logger.ErrorField("error", err),
				)
			}
		}
	}

	return &Client{client: mc, config: cfg}, nil
}

// Upload 上传文件。内容类型只信任前 512 字节的嗅探结果，不看扩展名。
func (c *Client) Upload(ctx context.Context, reader io.Reader, size int64, opts UploadOptions) (*UploadResult, error) {
	if c.config.MaxFileSize > 0 && size > c.config.MaxFileSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrFileTooLarge, size, c.config.MaxFileSize)
	}

	head := make([]byte, 512)
	n, err := io.ReadFull(reader, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("read file head: %w", err)
	}
	head = head[:n]

	contentType := http.DetectContentType(head)
	if !c.allowed(contentType) {
		return nil, fmt.Errorf("%w: %s", ErrTypeNotAllowed, contentType)
	}

	objectName := path.Join(strings.Trim(opts.PathPrefix, "/"), uuid.New().String()+extensionOf(contentType))

	uploadCtx := ctx
	if c.config.UploadTimeout > 0 {
		var cancel context.CancelFunc
		uploadCtx, cancel = context.WithTimeout(ctx, c.config.UploadTimeout)
		defer cancel()
	}

	info, err := c.client.PutObject(uploadCtx, c.config.BucketName, objectName,
		io.MultiReader(bytes.NewReader(head), reader), size,
		minio.PutObjectOptions{ContentType: contentType, UserMetadata: opts.Metadata},
	)
	if err != nil {
		logger.Error(ctx, "MinIO 上传失败",
			logger.String("object", objectName),
			logger.Int64("size", size),
			logger.ErrorField("error", err),
		)
		return nil, fmt.Errorf("put object: %w", err)
	}

	return &UploadResult{
		ObjectName:  objectName,
		Size:        info.Size,
		URL:         c.URL(objectName),
		ContentType: contentType,
	}, nil
}

// Delete 删除对象
func (c *Client) Delete(ctx context.Context, objectName string) error {
	if err := c.client.RemoveObject(ctx, c.config.BucketName, objectName, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object: %w", err)
	}
	return nil
}

// URL 返回对象的外部访问地址
func (c *Client) URL(objectName string) string {
	return fmt.Sprintf("%s/%s/%s",
		strings.TrimSuffix(c.config.BaseURL, "/"),
		c.config.BucketName,
		strings.TrimPrefix(objectName, "/"),
	)
}

func (c *Client) allowed(contentType string) bool {
	if len(c.config.AllowedTypes) == 0 {
		return true
	}
	for _, t := range c.config.AllowedTypes {
		if strings.EqualFold(t, contentType) {
			return true
		}
	}
	return false
}

func extensionOf(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ""
	}
}

func publicReadPolicy(bucket string) string {
	return fmt.Sprintf(`{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"AWS":["*"]},"Action":["s3:GetObject"],"Resource":["arn:aws:s3:::%s/*"]}]}`, bucket)
}
