package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jionychiow/CMSS-SOFT/internal/cmms/entity"
	"github.com/jionychiow/CMSS-SOFT/internal/cmms/repository"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// 计划状态到资产状态的固定映射
var planAssetStatus = map[string]string{
	entity.PlanStatusInProgress: entity.AssetStatusUnderMaintenance,
	entity.PlanStatusPending:    entity.AssetStatusActive,
	entity.PlanStatusCancelled:  entity.AssetStatusActive,
	entity.PlanStatusCompleted:  entity.AssetStatusActive,
}

var (
	planTypes      = []string{"Planned", "UnPlanned", "Other"}
	planPriorities = []string{"Low", "Medium", "High"}
)

// MaintenancePlanService 维护计划服务，计划状态变化时同步关联资产状态
type MaintenancePlanService struct {
	db        *gorm.DB
	planRepo  *repository.PlanRepository
	assetRepo *repository.AssetRepository
	userRepo  *repository.UserRepository
}

func NewMaintenancePlanService(db *gorm.DB, planRepo *repository.PlanRepository, assetRepo *repository.AssetRepository, userRepo *repository.UserRepository) *MaintenancePlanService {
	return &MaintenancePlanService{
		db:        db,
		planRepo:  planRepo,
		assetRepo: assetRepo,
		userRepo:  userRepo,
	}
}

// CreatePlanRequest 创建维护计划请求
type CreatePlanRequest struct {
	Name                string           `json:"name" binding:"required"`
	Ref                 string           `json:"ref"`
	Description         string           `json:"description"`
	AssetID             *string          `json:"asset_id"`
	AssignedTo          *string          `json:"assigned_to"`
	PlannedStartingDate *time.Time       `json:"planned_starting_date"`
	PlannedFinished     *time.Time       `json:"planned_finished"`
	Type                string           `json:"type"`
	Priority            string           `json:"priority"`
	Status              string           `json:"status"`
	EstimatedCost       *decimal.Decimal `json:"estimated_cost"`
}

// UpdatePlanRequest 更新维护计划请求
type UpdatePlanRequest struct {
	Name                string           `json:"name"`
	Ref                 string           `json:"ref"`
	Description         string           `json:"description"`
	AssetID             *string          `json:"asset_id"`
	AssignedTo          *string          `json:"assigned_to"`
	PlannedStartingDate *time.Time       `json:"planned_starting_date"`
	PlannedFinished     *time.Time       `json:"planned_finished"`
	StartedAt           *time.Time       `json:"started_at"`
	FinishedAt          *time.Time       `json:"finished_at"`
	Type                string           `json:"type"`
	Priority            string           `json:"priority"`
	Status              string           `json:"status"`
	EstimatedCost       *decimal.Decimal `json:"estimated_cost" copier:"-"`
}

func (s *MaintenancePlanService) List(ctx context.Context, scope repository.Scope, page, pageSize int, filters map[string]string) ([]entity.MaintenancePlan, int64, error) {
	items, total, err := s.planRepo.FindAll(ctx, scope, page, pageSize, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("查询维护计划失败: %w", err)
	}
	return items, total, nil
}

func (s *MaintenancePlanService) Get(ctx context.Context, scope repository.Scope, id string) (*entity.MaintenancePlan, error) {
	plan, err := s.planRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkAccess(scope, plan.OrganizationID, plan.CreatedBy); err != nil {
		return nil, ErrNotFound
	}
	return plan, nil
}

// Create 创建维护计划并同步资产状态
func (s *MaintenancePlanService) Create(ctx context.Context, scope repository.Scope, req *CreatePlanRequest) (*entity.MaintenancePlan, error) {
	plan := &entity.MaintenancePlan{
		ID:                  newID(),
		OrganizationID:      scope.OrgID,
		CreatedBy:           scope.UserID,
		AssignedTo:          req.AssignedTo,
		AssetID:             req.AssetID,
		Name:                req.Name,
		Ref:                 req.Ref,
		Description:         req.Description,
		PlannedStartingDate: req.PlannedStartingDate,
		PlannedFinished:     req.PlannedFinished,
		Type:                defaultString(req.Type, "Planned"),
		Priority:            defaultString(req.Priority, "Medium"),
		Status:              defaultString(req.Status, entity.PlanStatusPending),
	}
	if req.EstimatedCost != nil {
		plan.EstimatedCost = *req.EstimatedCost
	}
	if err := validatePlan(plan); err != nil {
		return nil, err
	}
	if err := s.checkAsset(ctx, scope, plan.AssetID); err != nil {
		return nil, err
	}
	if plan.IsOpen() {
		err := checkQuota(ctx, s.userRepo, scope.OrgID, "进行中工单",
			func(org *entity.Organization) int { return org.MaxActiveOrders },
			func() (int64, error) { return s.planRepo.CountOpenByOrg(ctx, scope.OrgID) })
		if err != nil {
			return nil, err
		}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.planRepo.WithTx(tx).Create(ctx, plan); err != nil {
			return fmt.Errorf("创建维护计划失败: %w", err)
		}
		return s.syncAssetStatus(ctx, tx, plan)
	})
	if err != nil {
		return nil, err
	}
	return s.planRepo.FindByID(ctx, plan.ID)
}

// Update 更新维护计划，状态或资产变化都会触发同步
func (s *MaintenancePlanService) Update(ctx context.Context, scope repository.Scope, id string, req *UpdatePlanRequest) (*entity.MaintenancePlan, error) {
	plan, err := s.planRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkAccess(scope, plan.OrganizationID, plan.CreatedBy); err != nil {
		return nil, err
	}
	if err := applyUpdate(plan, req); err != nil {
		return nil, err
	}
	if req.EstimatedCost != nil {
		plan.EstimatedCost = *req.EstimatedCost
	}
	plan.Asset = nil
	if err := validatePlan(plan); err != nil {
		return nil, err
	}
	if err := s.checkAsset(ctx, scope, plan.AssetID); err != nil {
		return nil, err
	}
	return s.save(ctx, plan)
}

// UpdateStatus 只修改计划状态
func (s *MaintenancePlanService) UpdateStatus(ctx context.Context, scope repository.Scope, id, status string) (*entity.MaintenancePlan, error) {
	plan, err := s.planRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkAccess(scope, plan.OrganizationID, plan.CreatedBy); err != nil {
		return nil, err
	}
	now := time.Now()
	switch status {
	case entity.PlanStatusInProgress:
		if plan.StartedAt == nil {
			plan.StartedAt = &now
		}
	case entity.PlanStatusCompleted:
		if plan.FinishedAt == nil {
			plan.FinishedAt = &now
		}
	}
	plan.Status = status
	plan.Asset = nil
	return s.save(ctx, plan)
}

func (s *MaintenancePlanService) save(ctx context.Context, plan *entity.MaintenancePlan) (*entity.MaintenancePlan, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.planRepo.WithTx(tx).Update(ctx, plan); err != nil {
			return fmt.Errorf("更新维护计划失败: %w", err)
		}
		return s.syncAssetStatus(ctx, tx, plan)
	})
	if err != nil {
		return nil, err
	}
	return s.planRepo.FindByID(ctx, plan.ID)
}

// syncAssetStatus 在同一事务内按计划状态改写资产状态。
// 未映射的计划状态返回错误使整个保存回滚；停用、报废的资产保持不变
func (s *MaintenancePlanService) syncAssetStatus(ctx context.Context, tx *gorm.DB, plan *entity.MaintenancePlan) error {
	status, ok := planAssetStatus[plan.Status]
	if !ok {
		return newError(ErrUnmappedPlanStatus, "未知的维护计划状态: %s", plan.Status)
	}
	if plan.AssetID == nil || *plan.AssetID == "" {
		return nil
	}

	assets := s.assetRepo.WithTx(tx)
	asset, err := assets.FindByID(ctx, *plan.AssetID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("查询关联资产失败: %w", err)
	}
	if asset.IsTerminal() || asset.Status == status {
		return nil
	}
	if err := assets.UpdateStatus(ctx, asset.ID, status); err != nil {
		return fmt.Errorf("同步资产状态失败: %w", err)
	}
	return nil
}

// Delete 删除维护计划，不回滚资产状态
func (s *MaintenancePlanService) Delete(ctx context.Context, scope repository.Scope, id string) error {
	plan, err := s.planRepo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := checkAccess(scope, plan.OrganizationID, plan.CreatedBy); err != nil {
		return err
	}
	if err := s.planRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("删除维护计划失败: %w", err)
	}
	return nil
}

func (s *MaintenancePlanService) checkAsset(ctx context.Context, scope repository.Scope, assetID *string) error {
	if assetID == nil || *assetID == "" {
		return nil
	}
	asset, err := s.assetRepo.FindByID(ctx, *assetID)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && scope.OrgID != "" && asset.OrganizationID != scope.OrgID) {
		return newError(ErrInvalidInput, "关联资产不存在: %s", *assetID)
	}
	return err
}

func validatePlan(plan *entity.MaintenancePlan) error {
	plan.AssetID = nilIfEmpty(plan.AssetID)
	plan.AssignedTo = nilIfEmpty(plan.AssignedTo)
	if plan.Name == "" {
		return newError(ErrInvalidInput, "计划名称不能为空")
	}
	if !inList(plan.Type, planTypes) {
		return newError(ErrInvalidInput, "计划类型无效: %s", plan.Type)
	}
	if !inList(plan.Priority, planPriorities) {
		return newError(ErrInvalidInput, "优先级无效: %s", plan.Priority)
	}
	if plan.EstimatedCost.IsNegative() {
		return newError(ErrInvalidInput, "预计费用不能为负数")
	}
	return nil
}

func defaultString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
