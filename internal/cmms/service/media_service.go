package service

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/jionychiow/CMSS-SOFT/internal/shared/storage"
)

// 媒体类型
const (
	MediaImage = "image"
	MediaVideo = "video"
)

// 允许下载的对象前缀
var mediaPrefixes = []string{"manuals/", "cases/"}

// MediaUpload 上传的媒体文件
type MediaUpload struct {
	Kind        string
	FileName    string
	ContentType string
	Size        int64
	Reader      io.Reader
}

// contentType 未提供时按扩展名推断
func (u *MediaUpload) contentType() string {
	if u.ContentType != "" && u.ContentType != "application/octet-stream" {
		return u.ContentType
	}
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(u.FileName))); t != "" {
		return t
	}
	return "application/octet-stream"
}

func (u *MediaUpload) validate() error {
	if u.Kind != MediaImage && u.Kind != MediaVideo {
		return newError(ErrInvalidInput, "媒体类型无效: %s", u.Kind)
	}
	if !strings.HasPrefix(u.contentType(), u.Kind+"/") {
		return newError(ErrInvalidInput, "文件类型与媒体类型不符: %s", u.FileName)
	}
	return nil
}

// putMedia 写入对象存储并返回对象名
func putMedia(ctx context.Context, store storage.ObjectStore, prefix string, u *MediaUpload) (string, error) {
	if store == nil {
		return "", ErrStorageUnavailable
	}
	if err := u.validate(); err != nil {
		return "", err
	}
	key := storage.ObjectKey(prefix, u.FileName, time.Now())
	if err := store.Put(ctx, key, u.Reader, u.Size, u.contentType()); err != nil {
		return "", fmt.Errorf("上传文件失败: %w", err)
	}
	return key, nil
}

// removeMedia 删除旧对象，失败不影响主流程
func removeMedia(ctx context.Context, store storage.ObjectStore, keys ...string) {
	if store == nil {
		return
	}
	for _, key := range keys {
		if key != "" {
			_ = store.Remove(ctx, key)
		}
	}
}

// MediaService 媒体文件下载
type MediaService struct {
	store storage.ObjectStore
}

func NewMediaService(store storage.ObjectStore) *MediaService {
	return &MediaService{store: store}
}

// Open 打开对象，只允许手册和案例目录下的对象
func (s *MediaService) Open(ctx context.Context, key string) (io.ReadCloser, *storage.ObjectInfo, error) {
	if s.store == nil {
		return nil, nil, ErrStorageUnavailable
	}
	key = strings.TrimPrefix(key, "/")
	if strings.Contains(key, "..") || !hasMediaPrefix(key) {
		return nil, nil, ErrNotFound
	}
	rc, info, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, nil, fmt.Errorf("读取文件失败: %w", err)
	}
	return rc, info, nil
}

func hasMediaPrefix(key string) bool {
	for _, p := range mediaPrefixes {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}
