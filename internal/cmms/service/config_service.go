package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jionychiow/CMSS-SOFT/internal/cmms/entity"
	"github.com/jionychiow/CMSS-SOFT/internal/cmms/repository"
	"gorm.io/gorm"
)

// ConfigService 期数、产线、工序、班次类型配置
type ConfigService struct {
	repo *repository.ConfigRepository
}

func NewConfigService(repo *repository.ConfigRepository) *ConfigService {
	return &ConfigService{repo: repo}
}

// ConfigItemRequest 配置项通用请求
type ConfigItemRequest struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
	IsActive    *bool  `json:"is_active"`
}

// LineRequest 产线请求
type LineRequest struct {
	ConfigItemRequest
	PhaseID string `json:"phase_id"`
}

func (r *ConfigItemRequest) normalize() {
	r.Code = strings.TrimSpace(r.Code)
	r.Name = strings.TrimSpace(r.Name)
}

func activeOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

// ============================================================
// 期数
// ============================================================

func (s *ConfigService) ListPhases(ctx context.Context, activeOnly bool) ([]entity.PlantPhase, error) {
	return s.repo.ListPhases(ctx, activeOnly)
}

func (s *ConfigService) GetPhase(ctx context.Context, id string) (*entity.PlantPhase, error) {
	return s.repo.FindPhase(ctx, id)
}

// PhaseByCode 导入导出按代码查找期数
func (s *ConfigService) PhaseByCode(ctx context.Context, code string) (*entity.PlantPhase, error) {
	return s.repo.FindPhaseByCode(ctx, code)
}

func (s *ConfigService) CreatePhase(ctx context.Context, req *ConfigItemRequest) (*entity.PlantPhase, error) {
	req.normalize()
	if req.Code == "" || req.Name == "" {
		return nil, newError(ErrInvalidInput, "期数代码和名称不能为空")
	}
	phase := &entity.PlantPhase{
		ID:          newID(),
		Code:        req.Code,
		Name:        req.Name,
		Description: req.Description,
		IsActive:    activeOr(req.IsActive, true),
	}
	if err := s.repo.CreatePhase(ctx, phase); err != nil {
		return nil, conflictOr(err, "期数代码已存在", "创建期数失败")
	}
	return phase, nil
}

func (s *ConfigService) UpdatePhase(ctx context.Context, id string, req *ConfigItemRequest) (*entity.PlantPhase, error) {
	phase, err := s.repo.FindPhase(ctx, id)
	if err != nil {
		return nil, err
	}
	req.normalize()
	if req.Code != "" {
		phase.Code = req.Code
	}
	if req.Name != "" {
		phase.Name = req.Name
	}
	if req.Description != "" {
		phase.Description = req.Description
	}
	phase.IsActive = activeOr(req.IsActive, phase.IsActive)
	if err := s.repo.UpdatePhase(ctx, phase); err != nil {
		return nil, conflictOr(err, "期数代码已存在", "更新期数失败")
	}
	return phase, nil
}

// DeletePhase 仍被产线、资产或维护记录引用的期数不能删除
func (s *ConfigService) DeletePhase(ctx context.Context, id string) error {
	if _, err := s.repo.FindPhase(ctx, id); err != nil {
		return err
	}
	lines, assets, records, err := s.repo.PhaseReferences(ctx, id)
	if err != nil {
		return fmt.Errorf("检查期数引用失败: %w", err)
	}
	switch {
	case lines > 0:
		return newError(ErrInUse, "无法删除期数，仍有产线关联此期数")
	case assets > 0:
		return newError(ErrInUse, "无法删除期数，仍有资产关联此期数")
	case records > 0:
		return newError(ErrInUse, "无法删除期数，仍有维护记录关联此期数")
	}
	if err := s.repo.DeletePhase(ctx, id); err != nil {
		return inUseOr(err, "无法删除期数，仍有数据关联此期数", "删除期数失败")
	}
	return nil
}

// ============================================================
// 产线
// ============================================================

func (s *ConfigService) ListLines(ctx context.Context, phaseID string, activeOnly bool) ([]entity.ProductionLine, error) {
	return s.repo.ListLines(ctx, phaseID, activeOnly)
}

func (s *ConfigService) GetLine(ctx context.Context, id string) (*entity.ProductionLine, error) {
	return s.repo.FindLine(ctx, id)
}

func (s *ConfigService) CreateLine(ctx context.Context, req *LineRequest) (*entity.ProductionLine, error) {
	req.normalize()
	if req.Code == "" || req.Name == "" || req.PhaseID == "" {
		return nil, newError(ErrInvalidInput, "产线代码、名称和所属期数不能为空")
	}
	if _, err := s.repo.FindPhase(ctx, req.PhaseID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newError(ErrInvalidInput, "所属期数不存在")
		}
		return nil, err
	}
	line := &entity.ProductionLine{
		ID:          newID(),
		Code:        req.Code,
		Name:        req.Name,
		PhaseID:     req.PhaseID,
		Description: req.Description,
		IsActive:    activeOr(req.IsActive, true),
	}
	if err := s.repo.CreateLine(ctx, line); err != nil {
		return nil, conflictOr(err, "该期数下产线代码已存在", "创建产线失败")
	}
	return s.repo.FindLine(ctx, line.ID)
}

func (s *ConfigService) UpdateLine(ctx context.Context, id string, req *LineRequest) (*entity.ProductionLine, error) {
	line, err := s.repo.FindLine(ctx, id)
	if err != nil {
		return nil, err
	}
	req.normalize()
	if req.Code != "" {
		line.Code = req.Code
	}
	if req.Name != "" {
		line.Name = req.Name
	}
	if req.Description != "" {
		line.Description = req.Description
	}
	if req.PhaseID != "" && req.PhaseID != line.PhaseID {
		if _, err := s.repo.FindPhase(ctx, req.PhaseID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, newError(ErrInvalidInput, "所属期数不存在")
			}
			return nil, err
		}
		line.PhaseID = req.PhaseID
	}
	line.IsActive = activeOr(req.IsActive, line.IsActive)
	line.Phase = nil
	if err := s.repo.UpdateLine(ctx, line); err != nil {
		return nil, conflictOr(err, "该期数下产线代码已存在", "更新产线失败")
	}
	return s.repo.FindLine(ctx, line.ID)
}

func (s *ConfigService) DeleteLine(ctx context.Context, id string) error {
	if _, err := s.repo.FindLine(ctx, id); err != nil {
		return err
	}
	if err := s.repo.DeleteLine(ctx, id); err != nil {
		return inUseOr(err, "无法删除产线，仍有数据关联此产线", "删除产线失败")
	}
	return nil
}

// ============================================================
// 工序
// ============================================================

func (s *ConfigService) ListProcesses(ctx context.Context, activeOnly bool) ([]entity.Process, error) {
	return s.repo.ListProcesses(ctx, activeOnly)
}

func (s *ConfigService) GetProcess(ctx context.Context, id string) (*entity.Process, error) {
	return s.repo.FindProcess(ctx, id)
}

func (s *ConfigService) CreateProcess(ctx context.Context, req *ConfigItemRequest) (*entity.Process, error) {
	req.normalize()
	if req.Code == "" || req.Name == "" {
		return nil, newError(ErrInvalidInput, "工序代码和名称不能为空")
	}
	p := &entity.Process{
		ID:          newID(),
		Code:        req.Code,
		Name:        req.Name,
		Description: req.Description,
		IsActive:    activeOr(req.IsActive, true),
	}
	if err := s.repo.CreateProcess(ctx, p); err != nil {
		return nil, conflictOr(err, "工序代码已存在", "创建工序失败")
	}
	return p, nil
}

func (s *ConfigService) UpdateProcess(ctx context.Context, id string, req *ConfigItemRequest) (*entity.Process, error) {
	p, err := s.repo.FindProcess(ctx, id)
	if err != nil {
		return nil, err
	}
	req.normalize()
	if req.Code != "" {
		p.Code = req.Code
	}
	if req.Name != "" {
		p.Name = req.Name
	}
	if req.Description != "" {
		p.Description = req.Description
	}
	p.IsActive = activeOr(req.IsActive, p.IsActive)
	if err := s.repo.UpdateProcess(ctx, p); err != nil {
		return nil, conflictOr(err, "工序代码已存在", "更新工序失败")
	}
	return p, nil
}

func (s *ConfigService) DeleteProcess(ctx context.Context, id string) error {
	if _, err := s.repo.FindProcess(ctx, id); err != nil {
		return err
	}
	if err := s.repo.DeleteProcess(ctx, id); err != nil {
		return inUseOr(err, "无法删除工序，仍有数据关联此工序", "删除工序失败")
	}
	return nil
}

// ============================================================
// 班次类型
// ============================================================

func (s *ConfigService) ListShiftTypes(ctx context.Context, activeOnly bool) ([]entity.ShiftType, error) {
	return s.repo.ListShiftTypes(ctx, activeOnly)
}

func (s *ConfigService) GetShiftType(ctx context.Context, id string) (*entity.ShiftType, error) {
	return s.repo.FindShiftType(ctx, id)
}

// ShiftByCode 导入导出按代码查找班次类型
func (s *ConfigService) ShiftByCode(ctx context.Context, code string) (*entity.ShiftType, error) {
	return s.repo.FindShiftTypeByCode(ctx, code)
}

func (s *ConfigService) CreateShiftType(ctx context.Context, req *ConfigItemRequest) (*entity.ShiftType, error) {
	req.normalize()
	if req.Code == "" || req.Name == "" {
		return nil, newError(ErrInvalidInput, "班次类型代码和名称不能为空")
	}
	st := &entity.ShiftType{
		ID:          newID(),
		Code:        req.Code,
		Name:        req.Name,
		Description: req.Description,
		IsActive:    activeOr(req.IsActive, true),
	}
	if err := s.repo.CreateShiftType(ctx, st); err != nil {
		return nil, conflictOr(err, "班次类型代码已存在", "创建班次类型失败")
	}
	return st, nil
}

func (s *ConfigService) UpdateShiftType(ctx context.Context, id string, req *ConfigItemRequest) (*entity.ShiftType, error) {
	st, err := s.repo.FindShiftType(ctx, id)
	if err != nil {
		return nil, err
	}
	req.normalize()
	if req.Code != "" {
		st.Code = req.Code
	}
	if req.Name != "" {
		st.Name = req.Name
	}
	if req.Description != "" {
		st.Description = req.Description
	}
	st.IsActive = activeOr(req.IsActive, st.IsActive)
	if err := s.repo.UpdateShiftType(ctx, st); err != nil {
		return nil, conflictOr(err, "班次类型代码已存在", "更新班次类型失败")
	}
	return st, nil
}

func (s *ConfigService) DeleteShiftType(ctx context.Context, id string) error {
	if _, err := s.repo.FindShiftType(ctx, id); err != nil {
		return err
	}
	n, err := s.repo.ShiftTypeReferences(ctx, id)
	if err != nil {
		return fmt.Errorf("检查班次类型引用失败: %w", err)
	}
	if n > 0 {
		return newError(ErrInUse, "无法删除班次类型，仍有维护记录关联此班次类型")
	}
	if err := s.repo.DeleteShiftType(ctx, id); err != nil {
		return inUseOr(err, "无法删除班次类型，仍有数据关联此班次类型", "删除班次类型失败")
	}
	return nil
}

// conflictOr 唯一约束冲突转为 ErrConflict，其余错误加上动作说明
func conflictOr(err error, conflictMsg, action string) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return newError(ErrConflict, "%s", conflictMsg)
	}
	return fmt.Errorf("%s: %w", action, err)
}

// inUseOr 外键约束拒绝删除时转为 ErrInUse
func inUseOr(err error, inUseMsg, action string) error {
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return newError(ErrInUse, "%s", inUseMsg)
	}
	return fmt.Errorf("%s: %w", action, err)
}
