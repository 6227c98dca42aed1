package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"blogmusic/config"
	"blogmusic/logger"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Uploader is what the HTTP layer needs from object storage.
type Uploader interface {
	Upload(ctx context.Context, objectName string, r io.Reader, size int64, contentType string) (string, error)
}

// MinioStore 封装 MinIO 客户端与存储桶
type MinioStore struct {
	client     *minio.Client
	bucket     string
	publicBase string
}

// NewMinioStore 初始化 MinIO 客户端，存储桶不存在时自动创建
func NewMinioStore(ctx context.Context, cfg *config.Config) (*MinioStore, error) {
	logger.Info("正在连接 MinIO 服务器",
		logger.String("endpoint", cfg.MinioEndpoint),
		logger.String("bucket", cfg.MinioBucket))

	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("创建 MinIO 客户端失败: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return nil, fmt.Errorf("检查存储桶失败: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{Region: cfg.MinioRegion}); err != nil {
			return nil, fmt.Errorf("创建存储桶失败: %w", err)
		}
		logger.Info("成功创建存储桶", logger.String("bucket", cfg.MinioBucket))
	}

	return &MinioStore{
		client:     client,
		bucket:     cfg.MinioBucket,
		publicBase: PublicBase(cfg),
	}, nil
}

// PublicBase returns the URL prefix objects are served from.
func PublicBase(cfg *config.Config) string {
	if cfg.MinioPublicBaseURL != "" {
		return strings.TrimRight(cfg.MinioPublicBaseURL, "/")
	}
	scheme := "http"
	if cfg.MinioUseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s", scheme, cfg.MinioEndpoint, cfg.MinioBucket)
}

// PublicURL 对象的公开访问地址
func (s *MinioStore) PublicURL(objectName string) string {
	return s.publicBase + "/" + strings.TrimLeft(objectName, "/")
}

// Upload stores the object and returns its public URL.
func (s *MinioStore) Upload(ctx context.Context, objectName string, r io.Reader, size int64, contentType string) (string, error) {
	info, err := s.client.PutObject(ctx, s.bucket, objectName, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("上传对象失败: %w", err)
	}
	logger.Info("对象上传成功",
		logger.String("object", info.Key),
		logger.Int64("size", info.Size))
	return s.PublicURL(objectName), nil
}

// CoverObjectName builds a unique key under covers/ keeping the file extension.
func CoverObjectName(filename string, now time.Time) string {
	ext := strings.ToLower(path.Ext(filename))
	return fmt.Sprintf("covers/%s/%s%s", now.Format("2006/01"), uuid.NewString(), ext)
}

// AllowedImageType reports whether the cover upload content type is accepted.
func AllowedImageType(contentType string) bool {
	switch strings.ToLower(contentType) {
	case "image/jpeg", "image/png", "image/gif", "image/webp":
		return true
	}
	return false
}
