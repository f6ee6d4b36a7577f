package repository

import (
	"context"

	"github.com/jionychiow/CMSS-SOFT/internal/cmms/entity"
	"gorm.io/gorm"
)

// ConfigRepository 期数/产线/工序/班次类型配置仓库
type ConfigRepository struct {
	db *gorm.DB
}

func NewConfigRepository(db *gorm.DB) *ConfigRepository {
	return &ConfigRepository{db: db}
}

// ---------- 期数 ----------

// ListPhases 期数列表，activeOnly 只返回启用的
func (r *ConfigRepository) ListPhases(ctx context.Context, activeOnly bool) ([]entity.PlantPhase, error) {
	var items []entity.PlantPhase
	query := r.db.WithContext(ctx)
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	err := query.Order("code ASC").Find(&items).Error
	return items, err
}

func (r *ConfigRepository) FindPhase(ctx context.Context, id string) (*entity.PlantPhase, error) {
	var phase entity.PlantPhase
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&phase).Error; err != nil {
		return nil, notFound(err)
	}
	return &phase, nil
}

// FindPhaseByCode 按代码查找期数
func (r *ConfigRepository) FindPhaseByCode(ctx context.Context, code string) (*entity.PlantPhase, error) {
	var phase entity.PlantPhase
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&phase).Error; err != nil {
		return nil, notFound(err)
	}
	return &phase, nil
}

// FindPhaseByNameOrCode 导入时按名称或代码匹配
func (r *ConfigRepository) FindPhaseByNameOrCode(ctx context.Context, v string) (*entity.PlantPhase, error) {
	var phase entity.PlantPhase
	if err := r.db.WithContext(ctx).Where("name = ? OR code = ?", v, v).First(&phase).Error; err != nil {
		return nil, notFound(err)
	}
	return &phase, nil
}

func (r *ConfigRepository) CreatePhase(ctx context.Context, phase *entity.PlantPhase) error {
	return r.db.WithContext(ctx).Create(phase).Error
}

func (r *ConfigRepository) UpdatePhase(ctx context.Context, phase *entity.PlantPhase) error {
	return r.db.WithContext(ctx).Save(phase).Error
}

func (r *ConfigRepository) DeletePhase(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&entity.PlantPhase{}).Error
}

// PhaseReferences 统计引用该期数的产线、资产、维护记录数量
func (r *ConfigRepository) PhaseReferences(ctx context.Context, id string) (lines, assets, records int64, err error) {
	db := r.db.WithContext(ctx)
	if err = db.Model(&entity.ProductionLine{}).Where("phase_id = ?", id).Count(&lines).Error; err != nil {
		return
	}
	if err = db.Model(&entity.Asset{}).Where("phase_id = ?", id).Count(&assets).Error; err != nil {
		return
	}
	err = db.Model(&entity.ShiftMaintenanceRecord{}).Where("phase_id = ?", id).Count(&records).Error
	return
}

// ---------- 产线 ----------

// ListLines 产线列表，phaseID 为空时返回全部
func (r *ConfigRepository) ListLines(ctx context.Context, phaseID string, activeOnly bool) ([]entity.ProductionLine, error) {
	var items []entity.ProductionLine
	query := r.db.WithContext(ctx).Preload("Phase")
	if phaseID != "" {
		query = query.Where("phase_id = ?", phaseID)
	}
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	err := query.Order("code ASC").Find(&items).Error
	return items, err
}

func (r *ConfigRepository) FindLine(ctx context.Context, id string) (*entity.ProductionLine, error) {
	var line entity.ProductionLine
	if err := r.db.WithContext(ctx).Preload("Phase").Where("id = ?", id).First(&line).Error; err != nil {
		return nil, notFound(err)
	}
	return &line, nil
}

// FindLineByNameOrCode 在期数内按名称或代码匹配产线，phaseID 为空时不限期数
func (r *ConfigRepository) FindLineByNameOrCode(ctx context.Context, phaseID, v string) (*entity.ProductionLine, error) {
	var line entity.ProductionLine
	query := r.db.WithContext(ctx).Where("name = ? OR code = ?", v, v)
	if phaseID != "" {
		query = query.Where("phase_id = ?", phaseID)
	}
	if err := query.First(&line).Error; err != nil {
		return nil, notFound(err)
	}
	return &line, nil
}

func (r *ConfigRepository) CreateLine(ctx context.Context, line *entity.ProductionLine) error {
	return r.db.WithContext(ctx).Omit("Phase").Create(line).Error
}

func (r *ConfigRepository) UpdateLine(ctx context.Context, line *entity.ProductionLine) error {
	return r.db.WithContext(ctx).Omit("Phase").Save(line).Error
}

func (r *ConfigRepository) DeleteLine(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&entity.ProductionLine{}).Error
}

// ---------- 工序 ----------

func (r *ConfigRepository) ListProcesses(ctx context.Context, activeOnly bool) ([]entity.Process, error) {
	var items []entity.Process
	query := r.db.WithContext(ctx)
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	err := query.Order("code ASC").Find(&items).Error
	return items, err
}

func (r *ConfigRepository) FindProcess(ctx context.Context, id string) (*entity.Process, error) {
	var p entity.Process
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// FindProcessByNameOrCode 导入时按名称或代码匹配工序
func (r *ConfigRepository) FindProcessByNameOrCode(ctx context.Context, v string) (*entity.Process, error) {
	var p entity.Process
	if err := r.db.WithContext(ctx).Where("name = ? OR code = ?", v, v).First(&p).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (r *ConfigRepository) CreateProcess(ctx context.Context, p *entity.Process) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *ConfigRepository) UpdateProcess(ctx context.Context, p *entity.Process) error {
	return r.db.WithContext(ctx).Save(p).Error
}

func (r *ConfigRepository) DeleteProcess(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&entity.Process{}).Error
}

// ---------- 班次类型 ----------

func (r *ConfigRepository) ListShiftTypes(ctx context.Context, activeOnly bool) ([]entity.ShiftType, error) {
	var items []entity.ShiftType
	query := r.db.WithContext(ctx)
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	err := query.Order("code ASC").Find(&items).Error
	return items, err
}

func (r *ConfigRepository) FindShiftType(ctx context.Context, id string) (*entity.ShiftType, error) {
	var s entity.ShiftType
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

// FindShiftTypeByCode 按代码查找班次类型
func (r *ConfigRepository) FindShiftTypeByCode(ctx context.Context, code string) (*entity.ShiftType, error) {
	var s entity.ShiftType
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&s).Error; err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

func (r *ConfigRepository) CreateShiftType(ctx context.Context, s *entity.ShiftType) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *ConfigRepository) UpdateShiftType(ctx context.Context, s *entity.ShiftType) error {
	return r.db.WithContext(ctx).Save(s).Error
}

func (r *ConfigRepository) DeleteShiftType(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&entity.ShiftType{}).Error
}

// ShiftTypeReferences 统计引用该班次类型的维护记录数量
func (r *ConfigRepository) ShiftTypeReferences(ctx context.Context, id string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&entity.ShiftMaintenanceRecord{}).Where("shift_type_id = ?", id).Count(&n).Error
	return n, err
}
