package repository

import (
	"context"

	"github.com/jionychiow/CMSS-SOFT/internal/cmms/entity"
	"gorm.io/gorm"
)

// PlanRepository 维护计划仓库
type PlanRepository struct {
	db *gorm.DB
}

func NewPlanRepository(db *gorm.DB) *PlanRepository {
	return &PlanRepository{db: db}
}

// WithTx 绑定到事务
func (r *PlanRepository) WithTx(tx *gorm.DB) *PlanRepository {
	return &PlanRepository{db: tx}
}

// FindAll 维护计划列表
func (r *PlanRepository) FindAll(ctx context.Context, scope Scope, page, pageSize int, filters map[string]string) ([]entity.MaintenancePlan, int64, error) {
	var items []entity.MaintenancePlan

	query := scope.apply(r.db.WithContext(ctx).Model(&entity.MaintenancePlan{}), "created_by")

	if search := filters["search"]; search != "" {
		query = query.Where("LOWER(name) LIKE ? OR LOWER(ref) LIKE ?", likeArg(search), likeArg(search))
	}
	if status := filters["status"]; status != "" {
		query = query.Where("status = ?", status)
	}
	if priority := filters["priority"]; priority != "" {
		query = query.Where("priority = ?", priority)
	}
	if assetID := filters["asset_id"]; assetID != "" {
		query = query.Where("asset_id = ?", assetID)
	}

	total, err := paginate(query.Preload("Asset"), page, pageSize, "created_at DESC", &items)
	return items, total, err
}

func (r *PlanRepository) FindByID(ctx context.Context, id string) (*entity.MaintenancePlan, error) {
	var plan entity.MaintenancePlan
	if err := r.db.WithContext(ctx).Preload("Asset").Where("id = ?", id).First(&plan).Error; err != nil {
		return nil, notFound(err)
	}
	return &plan, nil
}

func (r *PlanRepository) Create(ctx context.Context, plan *entity.MaintenancePlan) error {
	return r.db.WithContext(ctx).Omit("Asset").Create(plan).Error
}

func (r *PlanRepository) Update(ctx context.Context, plan *entity.MaintenancePlan) error {
	return r.db.WithContext(ctx).Omit("Asset").Save(plan).Error
}

func (r *PlanRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&entity.MaintenancePlan{}).Error
}

// CountOpenByOrg 组织内未结束的计划数量
func (r *PlanRepository) CountOpenByOrg(ctx context.Context, orgID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&entity.MaintenancePlan{}).
		Where("organization_id = ? AND status IN ?", orgID, []string{entity.PlanStatusPending, entity.PlanStatusInProgress}).
		Count(&n).Error
	return n, err
}
