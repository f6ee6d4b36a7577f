package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jionychiow/CMSS-SOFT/internal/cmms/repository"
	"go.uber.org/zap"
)

// CleanupResult 一次清理删除的行数
type CleanupResult struct {
	RevokedTokens int64 `json:"revoked_tokens"`
	Activities    int64 `json:"activities"`
}

// CleanupService 清理过期的令牌黑名单和活动日志
type CleanupService struct {
	tokenRepo    *repository.TokenRepository
	activityRepo *repository.ActivityRepository
	logger       *zap.Logger
	now          func() time.Time
}

func NewCleanupService(tokenRepo *repository.TokenRepository, activityRepo *repository.ActivityRepository, logger *zap.Logger) *CleanupService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CleanupService{tokenRepo: tokenRepo, activityRepo: activityRepo, logger: logger, now: time.Now}
}

// Run 删除 retentionDays 天之前的数据
func (s *CleanupService) Run(ctx context.Context, retentionDays int) (*CleanupResult, error) {
	if retentionDays <= 0 {
		return nil, newError(ErrInvalidInput, "保留天数必须大于0")
	}
	cutoff := s.now().AddDate(0, 0, -retentionDays)

	tokens, err := s.tokenRepo.DeleteStale(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("清理令牌黑名单失败: %w", err)
	}
	activities, err := s.activityRepo.DeleteBefore(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("清理活动日志失败: %w", err)
	}

	s.logger.Info("Cleanup finished",
		zap.Time("cutoff", cutoff),
		zap.Int64("revoked_tokens", tokens),
		zap.Int64("activities", activities),
	)
	return &CleanupResult{RevokedTokens: tokens, Activities: activities}, nil
}

// Job 包装为定时任务
func (s *CleanupService) Job(retentionDays int) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		_, err := s.Run(ctx, retentionDays)
		return err
	}
}
