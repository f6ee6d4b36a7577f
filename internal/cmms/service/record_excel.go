package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jionychiow/CMSS-SOFT/internal/cmms/entity"
	"github.com/jionychiow/CMSS-SOFT/internal/cmms/repository"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// 导出列顺序
var recordExportHeaders = []string{
	"期数", "班次类型", "月份", "序号", "设备名称", "设备编号", "生产线", "工序",
	"变更原因", "变更前", "变更后", "开始日期及时间", "结束日期及时间", "耗用时长",
	"实施人", "确认人", "验收人", "备注",
}

var recordExportWidths = []float64{8, 10, 6, 14, 18, 14, 14, 12, 10, 24, 24, 18, 18, 14, 10, 10, 10, 24}

// 导入模板列
var recordTemplateHeaders = []string{
	"序号", "月份", "产线", "工序", "设备名称", "设备编号", "变更原因", "变更前", "变更后",
	"开始日期及时间", "结束日期及时间", "耗用时长", "实施人", "确认人", "验收人", "备注", "班次类型", "期数",
}

// ImportDefaults 表格未提供期数/班次时使用的默认代码
type ImportDefaults struct {
	PhaseCode string `form:"phase" json:"phase"`
	ShiftCode string `form:"shift_type" json:"shift_type"`
}

// ImportResult 导入结果，行级错误不影响其他行
type ImportResult struct {
	ImportedCount int      `json:"imported_count"`
	Errors        []string `json:"errors"`
}

// ExportFilter 导出过滤条件
type ExportFilter struct {
	PhaseCode string `form:"phase"`
	ShiftCode string `form:"shift_type"`
	Month     string `form:"month"`
}

// RecordExcelService 维护记录导入导出
type RecordExcelService struct {
	records      *ShiftRecordService
	repo         *repository.ShiftRecordRepository
	configRepo   *repository.ConfigRepository
	activityRepo *repository.ActivityRepository
	loc          *time.Location
	logger       *zap.Logger
}

func NewRecordExcelService(
	records *ShiftRecordService,
	repo *repository.ShiftRecordRepository,
	configRepo *repository.ConfigRepository,
	activityRepo *repository.ActivityRepository,
	loc *time.Location,
	logger *zap.Logger,
) *RecordExcelService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.Local
	}
	return &RecordExcelService{
		records:      records,
		repo:         repo,
		configRepo:   configRepo,
		activityRepo: activityRepo,
		loc:          loc,
		logger:       logger,
	}
}

// ImportRecords 逐行导入，第一行为表头。行号按表格计算：数据下标 + 2
func (s *RecordExcelService) ImportRecords(ctx context.Context, scope repository.Scope, rows [][]string, defaults ImportDefaults) (*ImportResult, error) {
	if len(rows) == 0 {
		return nil, newError(ErrInvalidInput, "文件为空")
	}
	cols := newSheetColumns(rows[0])
	result := &ImportResult{Errors: []string{}}

	phases := map[string]*entity.PlantPhase{}
	shifts := map[string]*entity.ShiftType{}

	for i, row := range rows[1:] {
		rowNum := i + 2
		if isBlankRow(row) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}

		phaseCode, phaseErr := ResolvePhaseCode(cols.get(row, "期数"), defaults.PhaseCode)
		shiftCode, shiftErr := ResolveShiftCode(cols.get(row, "班次类型"), defaults.ShiftCode)
		if phaseErr != nil || shiftErr != nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("第%d行缺少期数或班次类型信息: phase='%s', shift_type='%s'", rowNum, phaseCode, shiftCode))
			continue
		}

		phase, ok := phases[phaseCode]
		if !ok {
			p, err := s.configRepo.FindPhaseByCode(ctx, phaseCode)
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				result.Errors = append(result.Errors, fmt.Sprintf("第%d行处理失败: %v", rowNum, err))
				continue
			}
			phase = p
			phases[phaseCode] = p
		}
		if phase == nil {
			result.Errors = append(result.Errors, fmt.Sprintf("第%d行期数代码不存在: %s", rowNum, phaseCode))
			continue
		}

		shift, ok := shifts[shiftCode]
		if !ok {
			st, err := s.configRepo.FindShiftTypeByCode(ctx, shiftCode)
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				result.Errors = append(result.Errors, fmt.Sprintf("第%d行处理失败: %v", rowNum, err))
				continue
			}
			shift = st
			shifts[shiftCode] = st
		}
		if shift == nil {
			result.Errors = append(result.Errors, fmt.Sprintf("第%d行班次类型代码不存在: %s", rowNum, shiftCode))
			continue
		}

		rec := s.recordFromRow(cols, row)
		rec.PhaseID = phase.ID
		rec.ShiftTypeID = shift.ID
		rec.OrganizationID = scope.OrgID
		rec.CreatedBy = scope.UserID

		// 序号和月份由系统生成
		if err := s.records.insert(ctx, rec, phase.Code, shift.Code); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("第%d行处理失败: %v", rowNum, err))
			continue
		}
		result.ImportedCount++
	}

	if result.ImportedCount > 0 && scope.UserID != "" {
		s.activityRepo.LogActivity(ctx, scope.UserID, entity.ActivityCreateRecord,
			fmt.Sprintf("导入维护记录 %d 条", result.ImportedCount),
			map[string]interface{}{"imported_count": result.ImportedCount, "error_count": len(result.Errors)})
	}
	return result, nil
}

func (s *RecordExcelService) recordFromRow(cols sheetColumns, row []string) *entity.ShiftMaintenanceRecord {
	rec := &entity.ShiftMaintenanceRecord{
		ProductionLine:  cols.get(row, "产线"),
		Process:         cols.get(row, "工序"),
		EquipmentName:   cols.get(row, "设备名称"),
		EquipmentNumber: cols.get(row, "设备编号"),
		ChangeReason:    ResolveChangeReason(cols.get(row, "变更原因")),
		BeforeChange:    cols.get(row, "变更前"),
		AfterChange:     cols.get(row, "变更后"),
		StartDatetime:   parseDateTime(cols.get(row, "开始日期及时间"), s.loc),
		EndDatetime:     parseDateTime(cols.get(row, "结束日期及时间"), s.loc),
		Implementer:     cols.get(row, "实施人"),
		ConfirmPerson:   cols.get(row, "确认人"),
		Acceptor:        cols.get(row, "验收人"),
		Remarks:         cols.get(row, "备注"),
	}
	// 起止时间不全时才保留表格中的耗时
	if v, ok := parseNumber(cols.get(row, "耗用时长")); ok {
		rec.Duration = &v
	}
	return rec
}

// ExportRecords 按期数/班次/月份导出。过滤条件无法解析时整体失败，任一行渲染失败也整体失败
func (s *RecordExcelService) ExportRecords(ctx context.Context, scope repository.Scope, filter ExportFilter) (*excelize.File, string, error) {
	var f repository.RecordFilter

	if filter.PhaseCode != "" {
		phase, err := s.configRepo.FindPhaseByCode(ctx, filter.PhaseCode)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, "", newError(ErrNotFound, "找不到对应的期数: %s", filter.PhaseCode)
			}
			return nil, "", fmt.Errorf("查询期数失败: %w", err)
		}
		f.PhaseID = phase.ID
	}
	if filter.ShiftCode != "" {
		shift, err := s.configRepo.FindShiftTypeByCode(ctx, filter.ShiftCode)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, "", newError(ErrNotFound, "找不到对应的班次类型: %s", filter.ShiftCode)
			}
			return nil, "", fmt.Errorf("查询班次类型失败: %w", err)
		}
		f.ShiftTypeID = shift.ID
	}
	from, to, err := ParseMonth(filter.Month, s.loc)
	if err != nil {
		return nil, "", err
	}
	f.From, f.To = from, to

	records, err := s.repo.ListForExport(ctx, scope, f)
	if err != nil {
		return nil, "", fmt.Errorf("查询维护记录失败: %w", err)
	}

	file, err := s.renderRecords(records)
	if err != nil {
		s.logger.Error("export shift records failed",
			zap.String("phase", filter.PhaseCode),
			zap.String("shift_type", filter.ShiftCode),
			zap.String("month", filter.Month),
			zap.Error(err),
		)
		return nil, "", fmt.Errorf("%w: %v", ErrExportRender, err)
	}
	return file, attachmentName("维修记录", time.Now().In(s.loc)), nil
}

func (s *RecordExcelService) renderRecords(records []entity.ShiftMaintenanceRecord) (*excelize.File, error) {
	sheet := "维修记录"
	f, err := newSheet(sheet, recordExportHeaders, recordExportWidths)
	if err != nil {
		return nil, err
	}
	for i := range records {
		values, err := s.recordRow(&records[i])
		if err != nil {
			f.Close()
			return nil, err
		}
		if err := writeRow(f, sheet, i+2, values); err != nil {
			f.Close()
			return nil, fmt.Errorf("记录 %s 写入失败: %w", records[i].SerialNumber, err)
		}
	}
	return f, nil
}

func (s *RecordExcelService) recordRow(rec *entity.ShiftMaintenanceRecord) ([]interface{}, error) {
	if rec.Phase == nil {
		return nil, fmt.Errorf("记录 %s 缺少期数 %s", rec.SerialNumber, rec.PhaseID)
	}
	if rec.ShiftType == nil {
		return nil, fmt.Errorf("记录 %s 缺少班次类型 %s", rec.SerialNumber, rec.ShiftTypeID)
	}

	span := ""
	if rec.StartDatetime != nil && rec.EndDatetime != nil {
		span = FormatSpan(rec.EndDatetime.Sub(*rec.StartDatetime))
	}

	return []interface{}{
		rec.Phase.Name,
		rec.ShiftType.Name,
		rec.Month,
		rec.SerialNumber,
		rec.EquipmentName,
		rec.EquipmentNumber,
		rec.ProductionLine,
		rec.Process,
		entity.ChangeReasonLabel(rec.ChangeReason),
		rec.BeforeChange,
		rec.AfterChange,
		formatDateTime(rec.StartDatetime, s.loc),
		formatDateTime(rec.EndDatetime, s.loc),
		span,
		rec.Implementer,
		rec.ConfirmPerson,
		rec.Acceptor,
		rec.Remarks,
	}, nil
}

// TemplateRecords 导入模板：表头、示例行和填写说明
func (s *RecordExcelService) TemplateRecords() (*excelize.File, error) {
	sheet := "维修记录模板"
	f, err := newSheet(sheet, recordTemplateHeaders, nil)
	if err != nil {
		return nil, err
	}

	sample := []interface{}{
		"", "", "一期生产线A", "装配工序", "空压机", "KYLJ-001", "维保", "待保养", "已保养",
		"2024-01-01 08:00", "2024-01-01 09:00", "", "张三", "李四", "", "", "长白班", "一期",
	}
	if err := writeRow(f, sheet, 2, sample); err != nil {
		f.Close()
		return nil, err
	}

	writeHelpSheet(f, [][]string{
		{"列名", "说明", "是否必填"},
		{"序号", "系统自动生成，填写内容会被忽略", "否"},
		{"月份", "系统按保存时间自动填写", "否"},
		{"产线", "生产线名称，也可使用列名 生产线", "否"},
		{"工序", "工序名称", "否"},
		{"设备名称", "设备名称", "是"},
		{"设备编号", "设备编号", "否"},
		{"变更原因", "维保/维修/技改", "否"},
		{"开始日期及时间", "如 2024-01-01 08:00", "否"},
		{"结束日期及时间", "如 2024-01-01 09:30，起止时间齐全时自动计算耗时", "否"},
		{"耗用时长", "小时数，起止时间齐全时忽略", "否"},
		{"确认人", "长白班填写", "否"},
		{"验收人", "倒班填写", "否"},
		{"班次类型", "长白班/倒班，留空时使用页面当前班次", "否"},
		{"期数", "一期/二期，留空时使用页面当前期数", "否"},
	})
	return f, nil
}
