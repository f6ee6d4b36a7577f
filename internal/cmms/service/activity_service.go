package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jionychiow/CMSS-SOFT/internal/cmms/entity"
	"github.com/jionychiow/CMSS-SOFT/internal/cmms/repository"
	"github.com/redis/go-redis/v9"
)

const visitUsersKeyPrefix = "visit:users:"

// ActivityService 活动日志与访问统计
type ActivityService struct {
	repo *repository.ActivityRepository
	rdb  *redis.Client
	loc  *time.Location
}

func NewActivityService(repo *repository.ActivityRepository, rdb *redis.Client, loc *time.Location) *ActivityService {
	if loc == nil {
		loc = time.Local
	}
	return &ActivityService{repo: repo, rdb: rdb, loc: loc}
}

// RecordVisit 当日访问量加一，用户当日首次访问时独立访客加一。
// 没有 Redis 时只计访问量
func (s *ActivityService) RecordVisit(ctx context.Context, userID string, at time.Time) error {
	date := at.In(s.loc).Format(xlsxDateLayout)
	newVisitor := false
	if s.rdb != nil {
		key := visitUsersKeyPrefix + date
		added, err := s.rdb.SAdd(ctx, key, userID).Result()
		if err != nil {
			return fmt.Errorf("record visitor: %w", err)
		}
		if added > 0 {
			newVisitor = true
			s.rdb.Expire(ctx, key, 48*time.Hour)
		}
	}
	return s.repo.IncrementVisit(ctx, date, newVisitor)
}

// List 组织内活动日志
func (s *ActivityService) List(ctx context.Context, orgID string, page, pageSize int, filters map[string]string) ([]entity.UserActivity, int64, error) {
	items, total, err := s.repo.FindAll(ctx, orgID, page, pageSize, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("查询活动日志失败: %w", err)
	}
	return items, total, nil
}

// Log 记录一条活动，附带请求来源
func (s *ActivityService) Log(ctx context.Context, userID, activityType, description, ip, userAgent string) error {
	if _, ok := entity.ActivityTypeLabels[activityType]; !ok {
		activityType = entity.ActivityOther
	}
	return s.repo.Create(ctx, &entity.UserActivity{
		UserID:       userID,
		ActivityType: activityType,
		Description:  description,
		IPAddress:    ip,
		UserAgent:    userAgent,
	})
}
