package repository

import (
	"context"

	"github.com/jionychiow/CMSS-SOFT/internal/cmms/entity"
	"gorm.io/gorm"
)

// AssetRepository 资产仓库
type AssetRepository struct {
	db *gorm.DB
}

func NewAssetRepository(db *gorm.DB) *AssetRepository {
	return &AssetRepository{db: db}
}

// WithTx 绑定到事务
func (r *AssetRepository) WithTx(tx *gorm.DB) *AssetRepository {
	return &AssetRepository{db: tx}
}

// FindAll 资产列表
func (r *AssetRepository) FindAll(ctx context.Context, scope Scope, page, pageSize int, filters map[string]string) ([]entity.Asset, int64, error) {
	var items []entity.Asset

	query := scope.apply(r.db.WithContext(ctx).Model(&entity.Asset{}), "created_by")

	if search := filters["search"]; search != "" {
		query = query.Where("LOWER(name) LIKE ? OR LOWER(ref) LIKE ? OR search_key LIKE ?",
			likeArg(search), likeArg(search), likeArg(search))
	}
	if status := filters["status"]; status != "" {
		query = query.Where("status = ?", status)
	}
	if phaseID := filters["phase_id"]; phaseID != "" {
		query = query.Where("phase_id = ?", phaseID)
	}
	if assetType := filters["asset_type"]; assetType != "" {
		query = query.Where("asset_type = ?", assetType)
	}

	query = query.Preload("Phase").Preload("Process").Preload("ProductionLine")
	total, err := paginate(query, page, pageSize, "created_at DESC", &items)
	return items, total, err
}

// FindByID 根据ID查找资产
func (r *AssetRepository) FindByID(ctx context.Context, id string) (*entity.Asset, error) {
	var asset entity.Asset
	err := r.db.WithContext(ctx).
		Preload("Phase").
		Preload("Process").
		Preload("ProductionLine").
		Where("id = ?", id).
		First(&asset).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &asset, nil
}

// FindByRef 组织内按设备编号查找
func (r *AssetRepository) FindByRef(ctx context.Context, orgID, ref string) (*entity.Asset, error) {
	var asset entity.Asset
	if err := r.db.WithContext(ctx).Where("organization_id = ? AND ref = ?", orgID, ref).First(&asset).Error; err != nil {
		return nil, notFound(err)
	}
	return &asset, nil
}

// ListForExport 导出用，phaseID 为空时不过滤
func (r *AssetRepository) ListForExport(ctx context.Context, scope Scope, phaseID string) ([]entity.Asset, error) {
	var items []entity.Asset
	query := scope.apply(r.db.WithContext(ctx), "created_by")
	if phaseID != "" {
		query = query.Where("phase_id = ?", phaseID)
	}
	err := query.
		Preload("Phase").
		Preload("Process").
		Preload("ProductionLine").
		Order("created_at DESC").
		Find(&items).Error
	return items, err
}

func (r *AssetRepository) Create(ctx context.Context, asset *entity.Asset) error {
	return r.db.WithContext(ctx).Omit("Phase", "Process", "ProductionLine").Create(asset).Error
}

func (r *AssetRepository) Update(ctx context.Context, asset *entity.Asset) error {
	return r.db.WithContext(ctx).Omit("Phase", "Process", "ProductionLine").Save(asset).Error
}

// UpdateStatus 只更新状态列
func (r *AssetRepository) UpdateStatus(ctx context.Context, id, status string) error {
	return r.db.WithContext(ctx).Model(&entity.Asset{}).Where("id = ?", id).Update("status", status).Error
}

func (r *AssetRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&entity.Asset{}).Error
}

// CountByOrg 组织内资产数量
func (r *AssetRepository) CountByOrg(ctx context.Context, orgID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&entity.Asset{}).Where("organization_id = ?", orgID).Count(&n).Error
	return n, err
}
