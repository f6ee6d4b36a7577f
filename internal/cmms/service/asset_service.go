package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jionychiow/CMSS-SOFT/internal/cmms/entity"
	"github.com/jionychiow/CMSS-SOFT/internal/cmms/repository"
	"github.com/shopspring/decimal"
)

// AssetService 设备资产服务
type AssetService struct {
	repo         *repository.AssetRepository
	userRepo     *repository.UserRepository
	configRepo   *repository.ConfigRepository
	activityRepo *repository.ActivityRepository
}

func NewAssetService(
	repo *repository.AssetRepository,
	userRepo *repository.UserRepository,
	configRepo *repository.ConfigRepository,
	activityRepo *repository.ActivityRepository,
) *AssetService {
	return &AssetService{
		repo:         repo,
		userRepo:     userRepo,
		configRepo:   configRepo,
		activityRepo: activityRepo,
	}
}

// CreateAssetRequest 创建资产请求
type CreateAssetRequest struct {
	Name                   string           `json:"name" binding:"required"`
	Ref                    string           `json:"ref"`
	AssetType              string           `json:"asset_type"`
	Location               string           `json:"location"`
	SerialNumber           string           `json:"serial_number"`
	PurchaseDate           *time.Time       `json:"purchase_date"`
	WarrantyExpirationDate *time.Time       `json:"warranty_expiration_date"`
	PhaseID                *string          `json:"phase_id"`
	ProcessID              *string          `json:"process_id"`
	ProductionLineID       *string          `json:"production_line_id"`
	Cost                   *decimal.Decimal `json:"cost"`
	CurrentValue           *decimal.Decimal `json:"current_value"`
	Status                 string           `json:"status"`
	State                  string           `json:"state"`
}

// UpdateAssetRequest 更新资产请求，空字段保持不变
type UpdateAssetRequest struct {
	Name                   string           `json:"name"`
	Ref                    string           `json:"ref"`
	AssetType              string           `json:"asset_type"`
	Location               string           `json:"location"`
	SerialNumber           string           `json:"serial_number"`
	PurchaseDate           *time.Time       `json:"purchase_date"`
	WarrantyExpirationDate *time.Time       `json:"warranty_expiration_date"`
	PhaseID                *string          `json:"phase_id"`
	ProcessID              *string          `json:"process_id"`
	ProductionLineID       *string          `json:"production_line_id"`
	Cost                   *decimal.Decimal `json:"cost" copier:"-"`
	CurrentValue           *decimal.Decimal `json:"current_value" copier:"-"`
	Status                 string           `json:"status"`
	State                  string           `json:"state"`
}

func (s *AssetService) List(ctx context.Context, scope repository.Scope, page, pageSize int, filters map[string]string) ([]entity.Asset, int64, error) {
	items, total, err := s.repo.FindAll(ctx, scope, page, pageSize, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("查询资产失败: %w", err)
	}
	return items, total, nil
}

func (s *AssetService) Get(ctx context.Context, scope repository.Scope, id string) (*entity.Asset, error) {
	asset, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkAccess(scope, asset.OrganizationID, asset.CreatedBy); err != nil {
		return nil, ErrNotFound
	}
	return asset, nil
}

// Create 创建资产，受组织资产配额限制
func (s *AssetService) Create(ctx context.Context, scope repository.Scope, req *CreateAssetRequest) (*entity.Asset, error) {
	asset := &entity.Asset{
		Name:                   req.Name,
		Ref:                    req.Ref,
		AssetType:              defaultString(req.AssetType, "Equipment"),
		Location:               req.Location,
		SerialNumber:           req.SerialNumber,
		PurchaseDate:           req.PurchaseDate,
		WarrantyExpirationDate: req.WarrantyExpirationDate,
		PhaseID:                req.PhaseID,
		ProcessID:              req.ProcessID,
		ProductionLineID:       req.ProductionLineID,
		Status:                 defaultString(req.Status, entity.AssetStatusActive),
		State:                  req.State,
	}
	if req.Cost != nil {
		asset.Cost = *req.Cost
	}
	if req.CurrentValue != nil {
		asset.CurrentValue = *req.CurrentValue
	}
	if asset.State != "" && !inList(asset.State, entity.AssetStates) {
		return nil, newError(ErrInvalidInput, "设备状态详情无效: %s", asset.State)
	}
	if err := s.create(ctx, scope, asset); err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, asset.ID)
}

// create 校验并写入，导入与手工创建共用
func (s *AssetService) create(ctx context.Context, scope repository.Scope, asset *entity.Asset) error {
	if err := s.validate(ctx, asset); err != nil {
		return err
	}
	err := checkQuota(ctx, s.userRepo, scope.OrgID, "资产",
		func(org *entity.Organization) int { return org.MaxAssets },
		func() (int64, error) { return s.repo.CountByOrg(ctx, scope.OrgID) })
	if err != nil {
		return err
	}

	asset.ID = newID()
	asset.UUID = uuid.New().String()
	asset.OrganizationID = scope.OrgID
	asset.CreatedBy = scope.UserID
	asset.SearchKey = searchKey(asset.Name, asset.Ref)
	if err := s.repo.Create(ctx, asset); err != nil {
		return fmt.Errorf("创建资产失败: %w", err)
	}

	s.activityRepo.LogActivity(ctx, scope.UserID, entity.ActivityCreateAsset,
		fmt.Sprintf("创建资产 %s", asset.Name),
		map[string]interface{}{"asset_id": asset.ID, "ref": asset.Ref})
	return nil
}

func (s *AssetService) Update(ctx context.Context, scope repository.Scope, id string, req *UpdateAssetRequest) (*entity.Asset, error) {
	asset, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkAccess(scope, asset.OrganizationID, asset.CreatedBy); err != nil {
		return nil, err
	}
	if err := applyUpdate(asset, req); err != nil {
		return nil, err
	}
	if req.Cost != nil {
		asset.Cost = *req.Cost
	}
	if req.CurrentValue != nil {
		asset.CurrentValue = *req.CurrentValue
	}
	if req.State != "" && !inList(req.State, entity.AssetStates) {
		return nil, newError(ErrInvalidInput, "设备状态详情无效: %s", req.State)
	}
	if err := s.save(ctx, scope, asset); err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, asset.ID)
}

func (s *AssetService) save(ctx context.Context, scope repository.Scope, asset *entity.Asset) error {
	asset.Phase, asset.Process, asset.ProductionLine = nil, nil, nil
	if err := s.validate(ctx, asset); err != nil {
		return err
	}
	asset.SearchKey = searchKey(asset.Name, asset.Ref)
	if err := s.repo.Update(ctx, asset); err != nil {
		return fmt.Errorf("更新资产失败: %w", err)
	}
	s.activityRepo.LogActivity(ctx, scope.UserID, entity.ActivityEditAsset,
		fmt.Sprintf("编辑资产 %s", asset.Name),
		map[string]interface{}{"asset_id": asset.ID})
	return nil
}

func (s *AssetService) Delete(ctx context.Context, scope repository.Scope, id string) error {
	asset, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := checkAccess(scope, asset.OrganizationID, asset.CreatedBy); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return inUseOr(err, "无法删除资产，仍有维护计划关联此资产", "删除资产失败")
	}
	return nil
}

func (s *AssetService) validate(ctx context.Context, asset *entity.Asset) error {
	asset.PhaseID = nilIfEmpty(asset.PhaseID)
	asset.ProcessID = nilIfEmpty(asset.ProcessID)
	asset.ProductionLineID = nilIfEmpty(asset.ProductionLineID)
	if asset.Name == "" {
		return newError(ErrInvalidInput, "设备名称不能为空")
	}
	if !inList(asset.AssetType, entity.AssetTypes) {
		return newError(ErrInvalidInput, "设备类型无效: %s", asset.AssetType)
	}
	if !inList(asset.Status, entity.AssetStatuses) {
		return newError(ErrInvalidInput, "资产状态无效: %s", asset.Status)
	}
	if asset.Cost.IsNegative() || asset.CurrentValue.IsNegative() {
		return newError(ErrInvalidInput, "成本和当前价值不能为负数")
	}
	if id := asset.PhaseID; id != nil {
		if _, err := s.configRepo.FindPhase(ctx, *id); err != nil {
			return refError(err, "期别不存在")
		}
	}
	if id := asset.ProcessID; id != nil {
		if _, err := s.configRepo.FindProcess(ctx, *id); err != nil {
			return refError(err, "工序不存在")
		}
	}
	if id := asset.ProductionLineID; id != nil {
		line, err := s.configRepo.FindLine(ctx, *id)
		if err != nil {
			return refError(err, "产线不存在")
		}
		if asset.PhaseID != nil && line.PhaseID != *asset.PhaseID {
			return newError(ErrInvalidInput, "产线 %s 不属于所选期别", line.Name)
		}
	}
	return nil
}

func refError(err error, msg string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return newError(ErrInvalidInput, "%s", msg)
	}
	return err
}
