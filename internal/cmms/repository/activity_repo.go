package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jionychiow/CMSS-SOFT/internal/cmms/entity"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ActivityRepository 用户活动与访问趋势仓库
type ActivityRepository struct {
	db *gorm.DB
}

func NewActivityRepository(db *gorm.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Create 创建活动日志
func (r *ActivityRepository) Create(ctx context.Context, a *entity.UserActivity) error {
	if a.ID == "" {
		a.ID = uuid.New().String()[:32]
	}
	return r.db.WithContext(ctx).Omit("User").Create(a).Error
}

// LogActivity 便捷记录活动日志，忽略错误
func (r *ActivityRepository) LogActivity(ctx context.Context, userID, activityType, description string, metadata map[string]interface{}) {
	a := &entity.UserActivity{
		ID:           uuid.New().String()[:32],
		UserID:       userID,
		ActivityType: activityType,
		Description:  description,
	}
	if len(metadata) > 0 {
		a.Metadata = datatypes.JSONMap(metadata)
	}
	r.db.WithContext(ctx).Omit("User").Create(a)
}

// FindAll 活动日志列表，orgID 非空时只看该组织用户的活动
func (r *ActivityRepository) FindAll(ctx context.Context, orgID string, page, pageSize int, filters map[string]string) ([]entity.UserActivity, int64, error) {
	var items []entity.UserActivity

	query := r.db.WithContext(ctx).Model(&entity.UserActivity{})
	if orgID != "" {
		query = query.Where("user_id IN (?)", r.db.Model(&entity.User{}).Select("id").Where("organization_id = ?", orgID))
	}
	if userID := filters["user_id"]; userID != "" {
		query = query.Where("user_id = ?", userID)
	}
	if t := filters["activity_type"]; t != "" {
		query = query.Where("activity_type = ?", t)
	}

	total, err := paginate(query.Preload("User"), page, pageSize, "created_at DESC", &items)
	return items, total, err
}

// Recent 最近的活动
func (r *ActivityRepository) Recent(ctx context.Context, orgID string, limit int) ([]entity.UserActivity, error) {
	items, _, err := r.FindAll(ctx, orgID, 1, limit, nil)
	return items, err
}

// CountActiveUsers since 之后有活动的用户数
func (r *ActivityRepository) CountActiveUsers(ctx context.Context, orgID string, since time.Time) (int64, error) {
	var n int64
	query := r.db.WithContext(ctx).Model(&entity.UserActivity{}).Where("created_at >= ?", since)
	if orgID != "" {
		query = query.Where("user_id IN (?)", r.db.Model(&entity.User{}).Select("id").Where("organization_id = ?", orgID))
	}
	err := query.Distinct("user_id").Count(&n).Error
	return n, err
}

// DeleteBefore 删除 cutoff 之前的活动日志
func (r *ActivityRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&entity.UserActivity{})
	return res.RowsAffected, res.Error
}

// IncrementVisit 当日访问量加一，newVisitor 时独立访客数同时加一
func (r *ActivityRepository) IncrementVisit(ctx context.Context, date string, newVisitor bool) error {
	unique := 0
	updates := map[string]interface{}{
		"visit_count": gorm.Expr("weekly_visit_trends.visit_count + 1"),
		"updated_at":  time.Now(),
	}
	if newVisitor {
		unique = 1
		updates["unique_visitors"] = gorm.Expr("weekly_visit_trends.unique_visitors + 1")
	}
	row := &entity.VisitTrend{
		ID:             uuid.New().String()[:32],
		Date:           date,
		VisitCount:     1,
		UniqueVisitors: unique,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "date"}},
		DoUpdates: clause.Assignments(updates),
	}).Create(row).Error
}

// VisitsBetween [from, to] 内的访问趋势，按日期升序
func (r *ActivityRepository) VisitsBetween(ctx context.Context, from, to string) ([]entity.VisitTrend, error) {
	var items []entity.VisitTrend
	err := r.db.WithContext(ctx).
		Where("date >= ? AND date <= ?", from, to).
		Order("date ASC").
		Find(&items).Error
	return items, err
}
