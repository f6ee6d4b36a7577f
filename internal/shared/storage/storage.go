package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jionychiow/CMSS-SOFT/internal/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ErrNotConfigured 未配置对象存储
var ErrNotConfigured = errors.New("storage not configured")

// ObjectInfo 对象元信息
type ObjectInfo struct {
	Key         string
	Size        int64
	ContentType string
}

// ObjectStore 媒体文件存储
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error)
	Remove(ctx context.Context, key string) error
}

// ObjectKey 生成 prefix/2006/01/02/<uuid8>.<ext> 形式的对象名
func ObjectKey(prefix, fileName string, now time.Time) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	return fmt.Sprintf("%s/%s/%s%s", prefix, now.Format("2006/01/02"), uuid.New().String()[:8], ext)
}

// MinIOStore 基于 MinIO 的对象存储
type MinIOStore struct {
	client *minio.Client
	bucket string
}

// NewMinIOStore 创建 MinIO 存储，未配置 endpoint 时返回 ErrNotConfigured
func NewMinIOStore(cfg config.MinIOConfig) (*MinIOStore, error) {
	if cfg.Endpoint == "" {
		return nil, ErrNotConfigured
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &MinIOStore{client: client, bucket: cfg.Bucket}, nil
}

// EnsureBucket bucket 不存在时创建
func (s *MinIOStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("make bucket: %w", err)
	}
	return nil
}

func (s *MinIOStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("upload file: %w", err)
	}
	return nil
}

func (s *MinIOStore) Get(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error) {
	object, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, nil, fmt.Errorf("get object: %w", err)
	}
	stat, err := object.Stat()
	if err != nil {
		object.Close()
		return nil, nil, fmt.Errorf("stat object: %w", err)
	}
	return object, &ObjectInfo{Key: key, Size: stat.Size, ContentType: stat.ContentType}, nil
}

func (s *MinIOStore) Remove(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object: %w", err)
	}
	return nil
}
