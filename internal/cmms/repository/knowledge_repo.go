package repository

import (
	"context"

	"github.com/jionychiow/CMSS-SOFT/internal/cmms/entity"
	"gorm.io/gorm"
)

// ManualRepository 维护手册仓库
type ManualRepository struct {
	db *gorm.DB
}

func NewManualRepository(db *gorm.DB) *ManualRepository {
	return &ManualRepository{db: db}
}

// FindAll 手册列表，组织内共享
func (r *ManualRepository) FindAll(ctx context.Context, scope Scope, page, pageSize int, filters map[string]string) ([]entity.MaintenanceManual, int64, error) {
	var items []entity.MaintenanceManual

	query := scope.apply(r.db.WithContext(ctx).Model(&entity.MaintenanceManual{}), "")

	if search := filters["search"]; search != "" {
		query = query.Where("LOWER(title) LIKE ? OR LOWER(equipment_name) LIKE ? OR search_key LIKE ?",
			likeArg(search), likeArg(search), likeArg(search))
	}
	if phaseID := filters["phase_id"]; phaseID != "" {
		query = query.Where("phase_id = ?", phaseID)
	}
	if processID := filters["process_id"]; processID != "" {
		query = query.Where("process_id = ?", processID)
	}
	if lineID := filters["production_line_id"]; lineID != "" {
		query = query.Where("production_line_id = ?", lineID)
	}

	query = query.Preload("Phase").Preload("Process").Preload("ProductionLine")
	total, err := paginate(query, page, pageSize, "created_at DESC", &items)
	return items, total, err
}

// FindByID 手册详情，步骤按序号排列
func (r *ManualRepository) FindByID(ctx context.Context, id string) (*entity.MaintenanceManual, error) {
	var m entity.MaintenanceManual
	err := r.db.WithContext(ctx).
		Preload("Steps", func(db *gorm.DB) *gorm.DB {
			return db.Order("step_number ASC")
		}).
		Preload("Phase").
		Preload("Process").
		Preload("ProductionLine").
		Where("id = ?", id).
		First(&m).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

func (r *ManualRepository) Create(ctx context.Context, m *entity.MaintenanceManual) error {
	return r.db.WithContext(ctx).Omit("Steps", "Phase", "Process", "ProductionLine").Create(m).Error
}

func (r *ManualRepository) Update(ctx context.Context, m *entity.MaintenanceManual) error {
	return r.db.WithContext(ctx).Omit("Steps", "Phase", "Process", "ProductionLine").Save(m).Error
}

// Delete 删除手册及其步骤
func (r *ManualRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("manual_id = ?", id).Delete(&entity.MaintenanceStep{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&entity.MaintenanceManual{}).Error
	})
}

// CountByOrg 组织内手册数量
func (r *ManualRepository) CountByOrg(ctx context.Context, orgID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&entity.MaintenanceManual{}).Where("organization_id = ?", orgID).Count(&n).Error
	return n, err
}

// ListSteps 手册步骤
func (r *ManualRepository) ListSteps(ctx context.Context, manualID string) ([]entity.MaintenanceStep, error) {
	var steps []entity.MaintenanceStep
	err := r.db.WithContext(ctx).Where("manual_id = ?", manualID).Order("step_number ASC").Find(&steps).Error
	return steps, err
}

func (r *ManualRepository) FindStep(ctx context.Context, manualID, stepID string) (*entity.MaintenanceStep, error) {
	var step entity.MaintenanceStep
	if err := r.db.WithContext(ctx).Where("id = ? AND manual_id = ?", stepID, manualID).First(&step).Error; err != nil {
		return nil, notFound(err)
	}
	return &step, nil
}

// StepNumberTaken 序号是否已被手册内其他步骤占用
func (r *ManualRepository) StepNumberTaken(ctx context.Context, manualID string, number int, exceptID string) (bool, error) {
	var n int64
	query := r.db.WithContext(ctx).Model(&entity.MaintenanceStep{}).
		Where("manual_id = ? AND step_number = ?", manualID, number)
	if exceptID != "" {
		query = query.Where("id <> ?", exceptID)
	}
	err := query.Count(&n).Error
	return n > 0, err
}

func (r *ManualRepository) CreateStep(ctx context.Context, step *entity.MaintenanceStep) error {
	return r.db.WithContext(ctx).Create(step).Error
}

func (r *ManualRepository) UpdateStep(ctx context.Context, step *entity.MaintenanceStep) error {
	return r.db.WithContext(ctx).Save(step).Error
}

func (r *ManualRepository) DeleteStep(ctx context.Context, manualID, stepID string) error {
	return r.db.WithContext(ctx).Where("id = ? AND manual_id = ?", stepID, manualID).Delete(&entity.MaintenanceStep{}).Error
}

// CaseRepository 故障案例仓库
type CaseRepository struct {
	db *gorm.DB
}

func NewCaseRepository(db *gorm.DB) *CaseRepository {
	return &CaseRepository{db: db}
}

// FindAll 案例列表，组织内共享
func (r *CaseRepository) FindAll(ctx context.Context, scope Scope, page, pageSize int, filters map[string]string) ([]entity.MaintenanceCase, int64, error) {
	var items []entity.MaintenanceCase

	query := scope.apply(r.db.WithContext(ctx).Model(&entity.MaintenanceCase{}), "")

	if search := filters["search"]; search != "" {
		query = query.Where("LOWER(equipment_name) LIKE ? OR LOWER(fault_phenomenon) LIKE ? OR search_key LIKE ?",
			likeArg(search), likeArg(search), likeArg(search))
	}
	if processID := filters["process_id"]; processID != "" {
		query = query.Where("process_id = ?", processID)
	}

	total, err := paginate(query.Preload("Process"), page, pageSize, "created_at DESC", &items)
	return items, total, err
}

func (r *CaseRepository) FindByID(ctx context.Context, id string) (*entity.MaintenanceCase, error) {
	var c entity.MaintenanceCase
	if err := r.db.WithContext(ctx).Preload("Process").Where("id = ?", id).First(&c).Error; err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (r *CaseRepository) Create(ctx context.Context, c *entity.MaintenanceCase) error {
	return r.db.WithContext(ctx).Omit("Process").Create(c).Error
}

func (r *CaseRepository) Update(ctx context.Context, c *entity.MaintenanceCase) error {
	return r.db.WithContext(ctx).Omit("Process").Save(c).Error
}

func (r *CaseRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&entity.MaintenanceCase{}).Error
}
