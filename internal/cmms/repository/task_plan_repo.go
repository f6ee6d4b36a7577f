package repository

import (
	"context"
	"time"

	"github.com/jionychiow/CMSS-SOFT/internal/cmms/entity"
	"gorm.io/gorm"
)

// TaskPlanFilter 任务计划过滤条件
type TaskPlanFilter struct {
	Status  string
	PhaseID string
	// [From, To) 日期范围
	From *time.Time
	To   *time.Time
}

// TaskPlanRepository 任务计划仓库
type TaskPlanRepository struct {
	db *gorm.DB
}

func NewTaskPlanRepository(db *gorm.DB) *TaskPlanRepository {
	return &TaskPlanRepository{db: db}
}

func (r *TaskPlanRepository) filtered(ctx context.Context, scope Scope, f TaskPlanFilter) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&entity.TaskPlan{})
	if scope.OrgID != "" {
		query = query.Where("organization_id = ?", scope.OrgID)
	}
	// 非管理员看自己创建的和分配给自己的
	if !scope.Admin {
		query = query.Where("created_by = ? OR id IN (?)", scope.UserID,
			r.db.Table("task_plan_assignees").Select("task_plan_id").Where("user_id = ?", scope.UserID))
	}
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	if f.PhaseID != "" {
		query = query.Where("phase_id = ?", f.PhaseID)
	}
	if f.From != nil {
		query = query.Where("date >= ?", *f.From)
	}
	if f.To != nil {
		query = query.Where("date < ?", *f.To)
	}
	return query
}

func (r *TaskPlanRepository) preloaded(query *gorm.DB) *gorm.DB {
	return query.
		Preload("AssignedUsers").
		Preload("Phase").
		Preload("Process").
		Preload("ProductionLine")
}

// FindAll 任务计划列表
func (r *TaskPlanRepository) FindAll(ctx context.Context, scope Scope, page, pageSize int, f TaskPlanFilter) ([]entity.TaskPlan, int64, error) {
	var items []entity.TaskPlan
	total, err := paginate(r.preloaded(r.filtered(ctx, scope, f)), page, pageSize, "date DESC, created_at DESC", &items)
	return items, total, err
}

// ListForExport 导出用，不分页
func (r *TaskPlanRepository) ListForExport(ctx context.Context, scope Scope, f TaskPlanFilter) ([]entity.TaskPlan, error) {
	var items []entity.TaskPlan
	err := r.preloaded(r.filtered(ctx, scope, f)).Order("date DESC, created_at DESC").Find(&items).Error
	return items, err
}

func (r *TaskPlanRepository) FindByID(ctx context.Context, id string) (*entity.TaskPlan, error) {
	var tp entity.TaskPlan
	if err := r.preloaded(r.db.WithContext(ctx)).Where("id = ?", id).First(&tp).Error; err != nil {
		return nil, notFound(err)
	}
	return &tp, nil
}

// Create 创建任务计划及其实施人关联，不回写用户表
func (r *TaskPlanRepository) Create(ctx context.Context, tp *entity.TaskPlan) error {
	return r.db.WithContext(ctx).
		Omit("AssignedUsers.*", "Phase", "Process", "ProductionLine").
		Create(tp).Error
}

// Update 保存任务计划并替换实施人关联
func (r *TaskPlanRepository) Update(ctx context.Context, tp *entity.TaskPlan) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		users := tp.AssignedUsers
		if err := tx.Omit("AssignedUsers", "Phase", "Process", "ProductionLine").Save(tp).Error; err != nil {
			return err
		}
		assoc := tx.Model(tp).Omit("AssignedUsers.*").Association("AssignedUsers")
		if len(users) == 0 {
			return assoc.Clear()
		}
		return assoc.Replace(users)
	})
}

func (r *TaskPlanRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tp := &entity.TaskPlan{ID: id}
		if err := tx.Model(tp).Association("AssignedUsers").Clear(); err != nil {
			return err
		}
		return tx.Delete(tp).Error
	})
}

// StatusCount 按状态统计
type StatusCount struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

// CountByStatusOn 某天的任务状态分布
func (r *TaskPlanRepository) CountByStatusOn(ctx context.Context, orgID string, day time.Time) ([]StatusCount, error) {
	var rows []StatusCount
	next := day.AddDate(0, 0, 1)
	err := r.db.WithContext(ctx).Model(&entity.TaskPlan{}).
		Where("organization_id = ? AND date >= ? AND date < ?", orgID, day, next).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	return rows, err
}

// CountOverdue 早于 day 仍未开始的任务
func (r *TaskPlanRepository) CountOverdue(ctx context.Context, orgID string, day time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&entity.TaskPlan{}).
		Where("organization_id = ? AND date < ? AND status = ?", orgID, day, entity.TaskStatusPending).
		Count(&n).Error
	return n, err
}

// CountWhere 组织内满足条件的任务数量
func (r *TaskPlanRepository) CountWhere(ctx context.Context, orgID string, f TaskPlanFilter, statuses ...string) (int64, error) {
	var n int64
	query := r.filtered(ctx, Scope{OrgID: orgID, Admin: true}, f)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}
	err := query.Count(&n).Error
	return n, err
}
