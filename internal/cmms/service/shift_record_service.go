package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jionychiow/CMSS-SOFT/internal/cmms/entity"
	"github.com/jionychiow/CMSS-SOFT/internal/cmms/repository"
	"gorm.io/gorm"
)

const defaultSerialMaxAttempts = 5

var yearMonthRe = regexp.MustCompile(`^\d{4}-\d{1,2}$`)

// ShiftRecordService 班次维护记录服务
type ShiftRecordService struct {
	repo         *repository.ShiftRecordRepository
	configRepo   *repository.ConfigRepository
	activityRepo *repository.ActivityRepository
	allocator    *SerialAllocator
	maxAttempts  int
	loc          *time.Location
	now          func() time.Time
}

// NewShiftRecordService 创建维护记录服务，maxAttempts 为序号冲突时的插入次数上限
func NewShiftRecordService(
	repo *repository.ShiftRecordRepository,
	configRepo *repository.ConfigRepository,
	activityRepo *repository.ActivityRepository,
	maxAttempts int,
	loc *time.Location,
) *ShiftRecordService {
	if maxAttempts <= 0 {
		maxAttempts = defaultSerialMaxAttempts
	}
	if loc == nil {
		loc = time.Local
	}
	return &ShiftRecordService{
		repo:         repo,
		configRepo:   configRepo,
		activityRepo: activityRepo,
		allocator:    NewSerialAllocator(repo),
		maxAttempts:  maxAttempts,
		loc:          loc,
		now:          time.Now,
	}
}

// CreateRecordRequest 创建维护记录请求，期数和班次类型可按ID或代码指定
type CreateRecordRequest struct {
	SerialNumber     string     `json:"serial_number"`
	Month            string     `json:"month"`
	PhaseID          string     `json:"phase_id"`
	PhaseCode        string     `json:"phase_code"`
	ShiftTypeID      string     `json:"shift_type_id"`
	ShiftTypeCode    string     `json:"shift_type_code"`
	ProductionLine   string     `json:"production_line"`
	Process          string     `json:"process"`
	EquipmentName    string     `json:"equipment_name" binding:"required"`
	EquipmentNumber  string     `json:"equipment_number"`
	EquipmentPart    string     `json:"equipment_part"`
	ChangeReason     string     `json:"change_reason"`
	BeforeChange     string     `json:"before_change"`
	AfterChange      string     `json:"after_change"`
	PartsConsumables string     `json:"parts_consumables"`
	StartDatetime    *time.Time `json:"start_datetime"`
	EndDatetime      *time.Time `json:"end_datetime"`
	Duration         *float64   `json:"duration"`
	Implementer      string     `json:"implementer"`
	ConfirmPerson    string     `json:"confirm_person"`
	Acceptor         string     `json:"acceptor"`
	Remarks          string     `json:"remarks"`
	AssetID          *string    `json:"asset_id"`
}

// UpdateRecordRequest 更新维护记录请求，空字段保持不变
type UpdateRecordRequest struct {
	SerialNumber     string     `json:"serial_number"`
	Month            string     `json:"month"`
	PhaseID          string     `json:"phase_id" copier:"-"`
	ShiftTypeID      string     `json:"shift_type_id" copier:"-"`
	ProductionLine   string     `json:"production_line"`
	Process          string     `json:"process"`
	EquipmentName    string     `json:"equipment_name"`
	EquipmentNumber  string     `json:"equipment_number"`
	EquipmentPart    string     `json:"equipment_part"`
	ChangeReason     string     `json:"change_reason"`
	BeforeChange     string     `json:"before_change"`
	AfterChange      string     `json:"after_change"`
	PartsConsumables string     `json:"parts_consumables"`
	StartDatetime    *time.Time `json:"start_datetime"`
	EndDatetime      *time.Time `json:"end_datetime"`
	Duration         *float64   `json:"duration"`
	Implementer      string     `json:"implementer"`
	ConfirmPerson    string     `json:"confirm_person"`
	Acceptor         string     `json:"acceptor"`
	Remarks          string     `json:"remarks"`
	AssetID          *string    `json:"asset_id"`
}

// RecordQuery 列表查询条件。Month 为 YYYY-MM 时按起止时间过滤，否则按月份列精确匹配
type RecordQuery struct {
	PhaseID      string
	PhaseCode    string
	ShiftTypeID  string
	ShiftCode    string
	Month        string
	ChangeReason string
	Search       string
}

// List 维护记录列表
func (s *ShiftRecordService) List(ctx context.Context, scope repository.Scope, page, pageSize int, q RecordQuery) ([]entity.ShiftMaintenanceRecord, int64, error) {
	filter, err := s.buildFilter(ctx, q)
	if err != nil {
		return nil, 0, err
	}
	items, total, err := s.repo.FindAll(ctx, scope, page, pageSize, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("查询维护记录失败: %w", err)
	}
	return items, total, nil
}

func (s *ShiftRecordService) buildFilter(ctx context.Context, q RecordQuery) (repository.RecordFilter, error) {
	f := repository.RecordFilter{
		PhaseID:      q.PhaseID,
		ShiftTypeID:  q.ShiftTypeID,
		ChangeReason: q.ChangeReason,
		Search:       q.Search,
	}
	if q.PhaseCode != "" {
		phase, err := s.configRepo.FindPhaseByCode(ctx, q.PhaseCode)
		if err != nil {
			return f, s.lookupError(err, "找不到对应的期数: %s", q.PhaseCode)
		}
		f.PhaseID = phase.ID
	}
	if q.ShiftCode != "" {
		shift, err := s.configRepo.FindShiftTypeByCode(ctx, q.ShiftCode)
		if err != nil {
			return f, s.lookupError(err, "找不到对应的班次类型: %s", q.ShiftCode)
		}
		f.ShiftTypeID = shift.ID
	}
	if yearMonthRe.MatchString(q.Month) {
		from, to, err := ParseMonth(q.Month, s.loc)
		if err != nil {
			return f, err
		}
		f.From, f.To = from, to
	} else if q.Month != "all" {
		f.Month = q.Month
	}
	return f, nil
}

func (s *ShiftRecordService) lookupError(err error, format string, args ...interface{}) error {
	if errors.Is(err, repository.ErrNotFound) {
		return newError(ErrNotFound, format, args...)
	}
	return err
}

// Get 维护记录详情
func (s *ShiftRecordService) Get(ctx context.Context, scope repository.Scope, id string) (*entity.ShiftMaintenanceRecord, error) {
	rec, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if scope.OrgID != "" && rec.OrganizationID != scope.OrgID {
		return nil, ErrNotFound
	}
	if !scope.Admin && rec.CreatedBy != scope.UserID {
		return nil, ErrNotFound
	}
	return rec, nil
}

// Create 手工录入维护记录，未提供序号时自动分配
func (s *ShiftRecordService) Create(ctx context.Context, scope repository.Scope, req *CreateRecordRequest) (*entity.ShiftMaintenanceRecord, error) {
	if req.ChangeReason != "" {
		if _, ok := entity.ChangeReasonLabels[req.ChangeReason]; !ok {
			return nil, newError(ErrInvalidInput, "变更原因无效: %s", req.ChangeReason)
		}
	}
	phase, err := s.resolvePhase(ctx, req.PhaseID, req.PhaseCode)
	if err != nil {
		return nil, err
	}
	shift, err := s.resolveShift(ctx, req.ShiftTypeID, req.ShiftTypeCode)
	if err != nil {
		return nil, err
	}

	rec := &entity.ShiftMaintenanceRecord{
		SerialNumber:     req.SerialNumber,
		Month:            req.Month,
		PhaseID:          phase.ID,
		ShiftTypeID:      shift.ID,
		ProductionLine:   req.ProductionLine,
		Process:          req.Process,
		EquipmentName:    req.EquipmentName,
		EquipmentNumber:  req.EquipmentNumber,
		EquipmentPart:    req.EquipmentPart,
		ChangeReason:     req.ChangeReason,
		BeforeChange:     req.BeforeChange,
		AfterChange:      req.AfterChange,
		PartsConsumables: req.PartsConsumables,
		StartDatetime:    req.StartDatetime,
		EndDatetime:      req.EndDatetime,
		Duration:         req.Duration,
		Implementer:      req.Implementer,
		ConfirmPerson:    req.ConfirmPerson,
		Acceptor:         req.Acceptor,
		Remarks:          req.Remarks,
		AssetID:          req.AssetID,
		OrganizationID:   scope.OrgID,
		CreatedBy:        scope.UserID,
	}
	if err := s.insert(ctx, rec, phase.Code, shift.Code); err != nil {
		return nil, err
	}

	s.activityRepo.LogActivity(ctx, scope.UserID, entity.ActivityCreateRecord,
		fmt.Sprintf("创建维护记录 %s", rec.SerialNumber),
		map[string]interface{}{"record_id": rec.ID, "serial_number": rec.SerialNumber})

	return s.repo.FindByID(ctx, rec.ID)
}

// insert 分配序号并插入。调用方指定的序号冲突直接返回，
// 自动分配的序号冲突时重新读取最大序号再试，超过上限返回 ErrSerialExhausted
func (s *ShiftRecordService) insert(ctx context.Context, rec *entity.ShiftMaintenanceRecord, phaseCode, shiftCode string) error {
	now := s.now().In(s.loc)

	if rec.SerialNumber != "" {
		rec.ID = newID()
		rec.Prepare(now)
		if err := s.repo.Create(ctx, rec); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return newError(ErrDuplicateSerial, "序号已存在: %s", rec.SerialNumber)
			}
			return fmt.Errorf("创建维护记录失败: %w", err)
		}
		return nil
	}

	var lastErr error
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		serial, err := s.allocator.Next(ctx, phaseCode, shiftCode)
		if err != nil {
			return err
		}
		rec.ID = newID()
		rec.SerialNumber = serial
		rec.Prepare(now)

		err = s.repo.Create(ctx, rec)
		if err == nil {
			return nil
		}
		rec.SerialNumber = ""
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("创建维护记录失败: %w", err)
		}
		lastErr = err
	}
	return newError(ErrSerialExhausted, "序号分配失败，已尝试 %d 次: %v", s.maxAttempts, lastErr)
}

// Update 更新维护记录，每次保存都会按起止时间重算耗时
func (s *ShiftRecordService) Update(ctx context.Context, scope repository.Scope, id string, req *UpdateRecordRequest) (*entity.ShiftMaintenanceRecord, error) {
	rec, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkAccess(scope, rec.OrganizationID, rec.CreatedBy); err != nil {
		return nil, err
	}
	if req.ChangeReason != "" {
		if _, ok := entity.ChangeReasonLabels[req.ChangeReason]; !ok {
			return nil, newError(ErrInvalidInput, "变更原因无效: %s", req.ChangeReason)
		}
	}

	if err := applyUpdate(rec, req); err != nil {
		return nil, err
	}
	if req.PhaseID != "" && req.PhaseID != rec.PhaseID {
		phase, err := s.resolvePhase(ctx, req.PhaseID, "")
		if err != nil {
			return nil, err
		}
		rec.PhaseID = phase.ID
	}
	if req.ShiftTypeID != "" && req.ShiftTypeID != rec.ShiftTypeID {
		shift, err := s.resolveShift(ctx, req.ShiftTypeID, "")
		if err != nil {
			return nil, err
		}
		rec.ShiftTypeID = shift.ID
	}
	rec.Phase, rec.ShiftType = nil, nil
	rec.Prepare(s.now().In(s.loc))

	if err := s.repo.Update(ctx, rec); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, newError(ErrDuplicateSerial, "序号已存在: %s", rec.SerialNumber)
		}
		return nil, fmt.Errorf("更新维护记录失败: %w", err)
	}

	s.activityRepo.LogActivity(ctx, scope.UserID, entity.ActivityEditRecord,
		fmt.Sprintf("编辑维护记录 %s", rec.SerialNumber),
		map[string]interface{}{"record_id": rec.ID})

	return s.repo.FindByID(ctx, rec.ID)
}

// Delete 删除维护记录
func (s *ShiftRecordService) Delete(ctx context.Context, scope repository.Scope, id string) error {
	rec, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := checkAccess(scope, rec.OrganizationID, rec.CreatedBy); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("删除维护记录失败: %w", err)
	}
	return nil
}

// RecordStat 按期数和班次的记录数
type RecordStat struct {
	PhaseID       string `json:"phase_id"`
	PhaseCode     string `json:"phase_code"`
	PhaseName     string `json:"phase_name"`
	ShiftTypeID   string `json:"shift_type_id"`
	ShiftTypeCode string `json:"shift_type_code"`
	ShiftTypeName string `json:"shift_type_name"`
	Count         int64  `json:"count"`
}

// Stats 按期数和班次分组统计
func (s *ShiftRecordService) Stats(ctx context.Context, scope repository.Scope) ([]RecordStat, error) {
	rows, err := s.repo.CountByPhaseShift(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("统计维护记录失败: %w", err)
	}
	phases, err := s.configRepo.ListPhases(ctx, false)
	if err != nil {
		return nil, err
	}
	shifts, err := s.configRepo.ListShiftTypes(ctx, false)
	if err != nil {
		return nil, err
	}
	phaseByID := make(map[string]entity.PlantPhase, len(phases))
	for _, p := range phases {
		phaseByID[p.ID] = p
	}
	shiftByID := make(map[string]entity.ShiftType, len(shifts))
	for _, st := range shifts {
		shiftByID[st.ID] = st
	}

	stats := make([]RecordStat, 0, len(rows))
	for _, r := range rows {
		stat := RecordStat{PhaseID: r.PhaseID, ShiftTypeID: r.ShiftTypeID, Count: r.Count}
		if p, ok := phaseByID[r.PhaseID]; ok {
			stat.PhaseCode, stat.PhaseName = p.Code, p.Name
		}
		if st, ok := shiftByID[r.ShiftTypeID]; ok {
			stat.ShiftTypeCode, stat.ShiftTypeName = st.Code, st.Name
		}
		stats = append(stats, stat)
	}
	return stats, nil
}

func (s *ShiftRecordService) resolvePhase(ctx context.Context, id, code string) (*entity.PlantPhase, error) {
	var (
		phase *entity.PlantPhase
		err   error
	)
	switch {
	case id != "":
		phase, err = s.configRepo.FindPhase(ctx, id)
	case code != "":
		phase, err = s.configRepo.FindPhaseByCode(ctx, code)
	default:
		return nil, newError(ErrInvalidInput, "期数不能为空")
	}
	if errors.Is(err, repository.ErrNotFound) {
		return nil, newError(ErrInvalidInput, "期数不存在: %s%s", id, code)
	}
	return phase, err
}

func (s *ShiftRecordService) resolveShift(ctx context.Context, id, code string) (*entity.ShiftType, error) {
	var (
		shift *entity.ShiftType
		err   error
	)
	switch {
	case id != "":
		shift, err = s.configRepo.FindShiftType(ctx, id)
	case code != "":
		shift, err = s.configRepo.FindShiftTypeByCode(ctx, code)
	default:
		return nil, newError(ErrInvalidInput, "班次类型不能为空")
	}
	if errors.Is(err, repository.ErrNotFound) {
		return nil, newError(ErrInvalidInput, "班次类型不存在: %s%s", id, code)
	}
	return shift, err
}
