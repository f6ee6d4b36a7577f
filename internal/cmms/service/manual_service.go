package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jionychiow/CMSS-SOFT/internal/cmms/entity"
	"github.com/jionychiow/CMSS-SOFT/internal/cmms/repository"
	"github.com/jionychiow/CMSS-SOFT/internal/shared/storage"
	"gorm.io/gorm"
)

// ManualService 维护手册与步骤
type ManualService struct {
	repo  *repository.ManualRepository
	store storage.ObjectStore
}

func NewManualService(repo *repository.ManualRepository, store storage.ObjectStore) *ManualService {
	return &ManualService{repo: repo, store: store}
}

// ManualRequest 创建/更新手册请求
type ManualRequest struct {
	Title            string  `json:"title"`
	Description      string  `json:"description"`
	EquipmentName    string  `json:"equipment_name"`
	PhaseID          *string `json:"phase_id"`
	ProcessID        *string `json:"process_id"`
	ProductionLineID *string `json:"production_line_id"`
}

// StepRequest 创建/更新步骤请求，StepNumber 为0时追加到末尾
type StepRequest struct {
	StepNumber  int    `json:"step_number"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

func (s *ManualService) List(ctx context.Context, scope repository.Scope, page, pageSize int, filters map[string]string) ([]entity.MaintenanceManual, int64, error) {
	items, total, err := s.repo.FindAll(ctx, scope, page, pageSize, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("查询维护手册失败: %w", err)
	}
	return items, total, nil
}

// Get 手册组织内共享
func (s *ManualService) Get(ctx context.Context, scope repository.Scope, id string) (*entity.MaintenanceManual, error) {
	m, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if scope.OrgID != "" && m.OrganizationID != scope.OrgID {
		return nil, ErrNotFound
	}
	return m, nil
}

func (s *ManualService) Create(ctx context.Context, scope repository.Scope, req *ManualRequest) (*entity.MaintenanceManual, error) {
	if req.Title == "" {
		return nil, newError(ErrInvalidInput, "手册标题不能为空")
	}
	m := &entity.MaintenanceManual{
		ID:               newID(),
		OrganizationID:   scope.OrgID,
		CreatedBy:        scope.UserID,
		Title:            req.Title,
		Description:      req.Description,
		EquipmentName:    req.EquipmentName,
		PhaseID:          nilIfEmpty(req.PhaseID),
		ProcessID:        nilIfEmpty(req.ProcessID),
		ProductionLineID: nilIfEmpty(req.ProductionLineID),
		SearchKey:        searchKey(req.Title, req.EquipmentName),
	}
	if err := s.repo.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("创建维护手册失败: %w", err)
	}
	return s.repo.FindByID(ctx, m.ID)
}

func (s *ManualService) Update(ctx context.Context, scope repository.Scope, id string, req *ManualRequest) (*entity.MaintenanceManual, error) {
	m, err := s.Get(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if err := applyUpdate(m, req); err != nil {
		return nil, err
	}
	m.PhaseID = nilIfEmpty(m.PhaseID)
	m.ProcessID = nilIfEmpty(m.ProcessID)
	m.ProductionLineID = nilIfEmpty(m.ProductionLineID)
	m.Steps, m.Phase, m.Process, m.ProductionLine = nil, nil, nil, nil
	m.SearchKey = searchKey(m.Title, m.EquipmentName)
	if err := s.repo.Update(ctx, m); err != nil {
		return nil, fmt.Errorf("更新维护手册失败: %w", err)
	}
	return s.repo.FindByID(ctx, m.ID)
}

// Delete 删除手册、步骤及步骤的媒体文件
func (s *ManualService) Delete(ctx context.Context, scope repository.Scope, id string) error {
	m, err := s.Get(ctx, scope, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("删除维护手册失败: %w", err)
	}
	for _, step := range m.Steps {
		removeMedia(ctx, s.store, step.ImageKey, step.VideoKey)
	}
	return nil
}

func (s *ManualService) ListSteps(ctx context.Context, scope repository.Scope, manualID string) ([]entity.MaintenanceStep, error) {
	if _, err := s.Get(ctx, scope, manualID); err != nil {
		return nil, err
	}
	return s.repo.ListSteps(ctx, manualID)
}

// CreateStep 新增步骤，序号在手册内唯一
func (s *ManualService) CreateStep(ctx context.Context, scope repository.Scope, manualID string, req *StepRequest) (*entity.MaintenanceStep, error) {
	m, err := s.Get(ctx, scope, manualID)
	if err != nil {
		return nil, err
	}
	if req.Title == "" {
		return nil, newError(ErrInvalidInput, "步骤标题不能为空")
	}
	number := req.StepNumber
	if number == 0 {
		for _, st := range m.Steps {
			if st.StepNumber > number {
				number = st.StepNumber
			}
		}
		number++
	}
	if err := s.checkStepNumber(ctx, m, number, ""); err != nil {
		return nil, err
	}

	step := &entity.MaintenanceStep{
		ID:          newID(),
		ManualID:    manualID,
		StepNumber:  number,
		Title:       req.Title,
		Description: req.Description,
	}
	if err := s.repo.CreateStep(ctx, step); err != nil {
		return nil, s.stepError(err, m, number, "创建步骤失败")
	}
	return step, nil
}

func (s *ManualService) UpdateStep(ctx context.Context, scope repository.Scope, manualID, stepID string, req *StepRequest) (*entity.MaintenanceStep, error) {
	m, err := s.Get(ctx, scope, manualID)
	if err != nil {
		return nil, err
	}
	step, err := s.repo.FindStep(ctx, manualID, stepID)
	if err != nil {
		return nil, err
	}
	if req.StepNumber != 0 && req.StepNumber != step.StepNumber {
		if err := s.checkStepNumber(ctx, m, req.StepNumber, step.ID); err != nil {
			return nil, err
		}
	}
	if err := applyUpdate(step, req); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStep(ctx, step); err != nil {
		return nil, s.stepError(err, m, step.StepNumber, "更新步骤失败")
	}
	return step, nil
}

func (s *ManualService) DeleteStep(ctx context.Context, scope repository.Scope, manualID, stepID string) error {
	if _, err := s.Get(ctx, scope, manualID); err != nil {
		return err
	}
	step, err := s.repo.FindStep(ctx, manualID, stepID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteStep(ctx, manualID, stepID); err != nil {
		return fmt.Errorf("删除步骤失败: %w", err)
	}
	removeMedia(ctx, s.store, step.ImageKey, step.VideoKey)
	return nil
}

// AttachStepMedia 上传步骤图片或视频，替换旧文件
func (s *ManualService) AttachStepMedia(ctx context.Context, scope repository.Scope, manualID, stepID string, upload *MediaUpload) (*entity.MaintenanceStep, error) {
	if _, err := s.Get(ctx, scope, manualID); err != nil {
		return nil, err
	}
	step, err := s.repo.FindStep(ctx, manualID, stepID)
	if err != nil {
		return nil, err
	}
	key, err := putMedia(ctx, s.store, "manuals", upload)
	if err != nil {
		return nil, err
	}

	var old string
	if upload.Kind == MediaImage {
		old, step.ImageKey = step.ImageKey, key
	} else {
		old, step.VideoKey = step.VideoKey, key
	}
	if err := s.repo.UpdateStep(ctx, step); err != nil {
		removeMedia(ctx, s.store, key)
		return nil, fmt.Errorf("更新步骤失败: %w", err)
	}
	removeMedia(ctx, s.store, old)
	return step, nil
}

func (s *ManualService) checkStepNumber(ctx context.Context, m *entity.MaintenanceManual, number int, exceptID string) error {
	if number < 1 {
		return newError(ErrInvalidInput, "步骤序号必须大于0")
	}
	taken, err := s.repo.StepNumberTaken(ctx, m.ID, number, exceptID)
	if err != nil {
		return fmt.Errorf("检查步骤序号失败: %w", err)
	}
	if taken {
		return newError(ErrInvalidInput, "手册 %s 中已存在步骤序号 %d", m.Title, number)
	}
	return nil
}

// stepError 并发写入时由唯一索引兜底
func (s *ManualService) stepError(err error, m *entity.MaintenanceManual, number int, action string) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return newError(ErrInvalidInput, "手册 %s 中已存在步骤序号 %d", m.Title, number)
	}
	return fmt.Errorf("%s: %w", action, err)
}
