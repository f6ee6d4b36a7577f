package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jionychiow/CMSS-SOFT/internal/cmms/entity"
	"gorm.io/gorm"
)

// RecordFilter 维护记录过滤条件
type RecordFilter struct {
	PhaseID     string
	ShiftTypeID string
	Month       string
	// [From, To) 内开始或结束的记录
	From *time.Time
	To   *time.Time
	// 维修类型
	ChangeReason string
	Search       string
}

// ShiftRecordRepository 班次维护记录仓库
type ShiftRecordRepository struct {
	db *gorm.DB
}

func NewShiftRecordRepository(db *gorm.DB) *ShiftRecordRepository {
	return &ShiftRecordRepository{db: db}
}

func (r *ShiftRecordRepository) filtered(ctx context.Context, scope Scope, f RecordFilter) *gorm.DB {
	query := scope.apply(r.db.WithContext(ctx).Model(&entity.ShiftMaintenanceRecord{}), "created_by")

	if f.PhaseID != "" {
		query = query.Where("phase_id = ?", f.PhaseID)
	}
	if f.ShiftTypeID != "" {
		query = query.Where("shift_type_id = ?", f.ShiftTypeID)
	}
	if f.Month != "" {
		query = query.Where("month = ?", f.Month)
	}
	if f.From != nil && f.To != nil {
		query = query.Where(
			"(start_datetime IS NOT NULL AND start_datetime >= ? AND start_datetime < ?) OR (end_datetime IS NOT NULL AND end_datetime >= ? AND end_datetime < ?)",
			f.From.UTC(), f.To.UTC(), f.From.UTC(), f.To.UTC(),
		)
	}
	if f.ChangeReason != "" {
		query = query.Where("change_reason = ?", f.ChangeReason)
	}
	if f.Search != "" {
		query = query.Where("LOWER(equipment_name) LIKE ? OR LOWER(equipment_number) LIKE ? OR LOWER(serial_number) LIKE ?",
			likeArg(f.Search), likeArg(f.Search), likeArg(f.Search))
	}
	return query
}

// FindAll 维护记录列表
func (r *ShiftRecordRepository) FindAll(ctx context.Context, scope Scope, page, pageSize int, f RecordFilter) ([]entity.ShiftMaintenanceRecord, int64, error) {
	var items []entity.ShiftMaintenanceRecord
	query := r.filtered(ctx, scope, f).Preload("Phase").Preload("ShiftType")
	total, err := paginate(query, page, pageSize, "created_at DESC", &items)
	return items, total, err
}

// ListForExport 导出用，按创建时间倒序，不分页
func (r *ShiftRecordRepository) ListForExport(ctx context.Context, scope Scope, f RecordFilter) ([]entity.ShiftMaintenanceRecord, error) {
	var items []entity.ShiftMaintenanceRecord
	err := r.filtered(ctx, scope, f).
		Preload("Phase").
		Preload("ShiftType").
		Order("created_at DESC").
		Find(&items).Error
	return items, err
}

func (r *ShiftRecordRepository) FindByID(ctx context.Context, id string) (*entity.ShiftMaintenanceRecord, error) {
	var rec entity.ShiftMaintenanceRecord
	err := r.db.WithContext(ctx).
		Preload("Phase").
		Preload("ShiftType").
		Where("id = ?", id).
		First(&rec).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &rec, nil
}

func (r *ShiftRecordRepository) Create(ctx context.Context, rec *entity.ShiftMaintenanceRecord) error {
	return r.db.WithContext(ctx).Omit("Phase", "ShiftType").Create(rec).Error
}

func (r *ShiftRecordRepository) Update(ctx context.Context, rec *entity.ShiftMaintenanceRecord) error {
	return r.db.WithContext(ctx).Omit("Phase", "ShiftType").Save(rec).Error
}

func (r *ShiftRecordRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&entity.ShiftMaintenanceRecord{}).Error
}

// LatestSerial 以 prefix 开头、字典序最大的序号，不存在时返回空串
func (r *ShiftRecordRepository) LatestSerial(ctx context.Context, prefix string) (string, error) {
	var rec entity.ShiftMaintenanceRecord
	err := r.db.WithContext(ctx).
		Select("serial_number").
		Where("serial_number LIKE ?", prefix+"%").
		Order("serial_number DESC").
		Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return rec.SerialNumber, nil
}

// SerialExists 序号是否已被占用
func (r *ShiftRecordRepository) SerialExists(ctx context.Context, serial string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&entity.ShiftMaintenanceRecord{}).
		Where("serial_number = ?", serial).
		Count(&n).Error
	return n > 0, err
}

// PhaseShiftCount 按期数和班次统计的数量
type PhaseShiftCount struct {
	PhaseID     string `json:"phase_id"`
	ShiftTypeID string `json:"shift_type_id"`
	Count       int64  `json:"count"`
}

// CountByPhaseShift 按期数和班次分组统计
func (r *ShiftRecordRepository) CountByPhaseShift(ctx context.Context, scope Scope) ([]PhaseShiftCount, error) {
	var rows []PhaseShiftCount
	err := scope.apply(r.db.WithContext(ctx).Model(&entity.ShiftMaintenanceRecord{}), "created_by").
		Select("phase_id, shift_type_id, COUNT(*) AS count").
		Group("phase_id, shift_type_id").
		Scan(&rows).Error
	return rows, err
}

// RateFilter 维修率统计条件，按创建时间取 [From, To]
type RateFilter struct {
	PhaseID        string
	Process        string
	ProductionLine string
	From           time.Time
	To             time.Time
}

// ListForRate 维修率统计用，只取分组需要的列
func (r *ShiftRecordRepository) ListForRate(ctx context.Context, scope Scope, f RateFilter) ([]entity.ShiftMaintenanceRecord, error) {
	query := scope.apply(r.db.WithContext(ctx).Model(&entity.ShiftMaintenanceRecord{}), "created_by").
		Select("id, phase_id, process, production_line, created_at").
		Where("created_at >= ? AND created_at <= ?", f.From.UTC(), f.To.UTC())
	if f.PhaseID != "" {
		query = query.Where("phase_id = ?", f.PhaseID)
	}
	if f.Process != "" {
		query = query.Where("process = ?", f.Process)
	}
	if f.ProductionLine != "" {
		query = query.Where("production_line = ?", f.ProductionLine)
	}
	var items []entity.ShiftMaintenanceRecord
	err := query.Order("created_at ASC").Find(&items).Error
	return items, err
}

// CountByOrg 组织内记录总数，phaseID 非空时只统计该期
func (r *ShiftRecordRepository) CountByOrg(ctx context.Context, orgID, phaseID string) (int64, error) {
	var n int64
	query := r.db.WithContext(ctx).Model(&entity.ShiftMaintenanceRecord{}).Where("organization_id = ?", orgID)
	if phaseID != "" {
		query = query.Where("phase_id = ?", phaseID)
	}
	err := query.Count(&n).Error
	return n, err
}
