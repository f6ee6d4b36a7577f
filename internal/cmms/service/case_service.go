package service

import (
	"context"
	"fmt"

	"github.com/jionychiow/CMSS-SOFT/internal/cmms/entity"
	"github.com/jionychiow/CMSS-SOFT/internal/cmms/repository"
	"github.com/jionychiow/CMSS-SOFT/internal/shared/storage"
)

// CaseService 故障案例
type CaseService struct {
	repo  *repository.CaseRepository
	store storage.ObjectStore
}

func NewCaseService(repo *repository.CaseRepository, store storage.ObjectStore) *CaseService {
	return &CaseService{repo: repo, store: store}
}

// CaseRequest 创建/更新案例请求
type CaseRequest struct {
	ProcessID           *string `json:"process_id"`
	EquipmentName       string  `json:"equipment_name"`
	FaultReason         string  `json:"fault_reason"`
	FaultPhenomenon     string  `json:"fault_phenomenon"`
	FaultHandlingMethod string  `json:"fault_handling_method"`
}

func (s *CaseService) List(ctx context.Context, scope repository.Scope, page, pageSize int, filters map[string]string) ([]entity.MaintenanceCase, int64, error) {
	items, total, err := s.repo.FindAll(ctx, scope, page, pageSize, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("查询故障案例失败: %w", err)
	}
	return items, total, nil
}

func (s *CaseService) Get(ctx context.Context, scope repository.Scope, id string) (*entity.MaintenanceCase, error) {
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if scope.OrgID != "" && c.OrganizationID != scope.OrgID {
		return nil, ErrNotFound
	}
	return c, nil
}

func (s *CaseService) Create(ctx context.Context, scope repository.Scope, req *CaseRequest) (*entity.MaintenanceCase, error) {
	if req.EquipmentName == "" {
		return nil, newError(ErrInvalidInput, "设备名称不能为空")
	}
	c := &entity.MaintenanceCase{
		ID:                  newID(),
		OrganizationID:      scope.OrgID,
		CreatedBy:           scope.UserID,
		ProcessID:           nilIfEmpty(req.ProcessID),
		EquipmentName:       req.EquipmentName,
		FaultReason:         req.FaultReason,
		FaultPhenomenon:     req.FaultPhenomenon,
		FaultHandlingMethod: req.FaultHandlingMethod,
		ImageKeys:           []string{},
		VideoKeys:           []string{},
		SearchKey:           searchKey(req.EquipmentName),
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("创建故障案例失败: %w", err)
	}
	return s.repo.FindByID(ctx, c.ID)
}

func (s *CaseService) Update(ctx context.Context, scope repository.Scope, id string, req *CaseRequest) (*entity.MaintenanceCase, error) {
	c, err := s.Get(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if err := applyUpdate(c, req); err != nil {
		return nil, err
	}
	c.ProcessID = nilIfEmpty(c.ProcessID)
	c.Process = nil
	c.SearchKey = searchKey(c.EquipmentName)
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("更新故障案例失败: %w", err)
	}
	return s.repo.FindByID(ctx, c.ID)
}

func (s *CaseService) Delete(ctx context.Context, scope repository.Scope, id string) error {
	c, err := s.Get(ctx, scope, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("删除故障案例失败: %w", err)
	}
	removeMedia(ctx, s.store, c.ImageKeys...)
	removeMedia(ctx, s.store, c.VideoKeys...)
	return nil
}

// AttachMedia 追加案例图片或视频
func (s *CaseService) AttachMedia(ctx context.Context, scope repository.Scope, id string, upload *MediaUpload) (*entity.MaintenanceCase, error) {
	c, err := s.Get(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	key, err := putMedia(ctx, s.store, "cases", upload)
	if err != nil {
		return nil, err
	}
	if upload.Kind == MediaImage {
		c.ImageKeys = append(c.ImageKeys, key)
	} else {
		c.VideoKeys = append(c.VideoKeys, key)
	}
	c.Process = nil
	if err := s.repo.Update(ctx, c); err != nil {
		removeMedia(ctx, s.store, key)
		return nil, fmt.Errorf("更新故障案例失败: %w", err)
	}
	return s.repo.FindByID(ctx, c.ID)
}
