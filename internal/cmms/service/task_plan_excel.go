package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jionychiow/CMSS-SOFT/internal/cmms/entity"
	"github.com/jionychiow/CMSS-SOFT/internal/cmms/repository"
	"github.com/xuri/excelize/v2"
)

var taskPlanHeaders = []string{"日期", "任务计划", "任务实施人", "状态", "完成进度(%)", "期别", "工序", "产线"}

var taskPlanWidths = []float64{12, 40, 24, 10, 12, 8, 12, 12}

// TaskPlanExcelService 任务计划导入导出
type TaskPlanExcelService struct {
	taskPlans  *TaskPlanService
	repo       *repository.TaskPlanRepository
	configRepo *repository.ConfigRepository
	loc        *time.Location
}

func NewTaskPlanExcelService(taskPlans *TaskPlanService, repo *repository.TaskPlanRepository, configRepo *repository.ConfigRepository, loc *time.Location) *TaskPlanExcelService {
	if loc == nil {
		loc = time.Local
	}
	return &TaskPlanExcelService{taskPlans: taskPlans, repo: repo, configRepo: configRepo, loc: loc}
}

// TemplateTaskPlans 任务计划导入模板
func (s *TaskPlanExcelService) TemplateTaskPlans() (*excelize.File, error) {
	sheet := "任务计划模板"
	f, err := newSheet(sheet, taskPlanHeaders, taskPlanWidths)
	if err != nil {
		return nil, err
	}
	sample := []interface{}{"2024-01-01", "一期空压机月度保养", "zhangsan,lisi", "待开始", 0, "一期", "装配工序", "1#"}
	if err := writeRow(f, sheet, 2, sample); err != nil {
		f.Close()
		return nil, err
	}
	writeHelpSheet(f, [][]string{
		{"字段", "说明", "必填"},
		{"日期", "格式 YYYY-MM-DD，为空时取当天", "否"},
		{"任务计划", "任务内容描述", "是"},
		{"任务实施人", "用户名，多人用逗号分隔", "否"},
		{"状态", "待开始/进行中/已完成/已取消", "否"},
		{"完成进度(%)", "0 到 100", "否"},
		{"期别", "期别名称或代码", "否"},
		{"工序", "工序名称或代码", "否"},
		{"产线", "产线名称或代码", "否"},
	})
	return f, nil
}

// ExportTaskPlans 导出任务计划，month 为 YYYY-MM，为空或 all 时导出全部
func (s *TaskPlanExcelService) ExportTaskPlans(ctx context.Context, scope repository.Scope, month string) (*excelize.File, string, error) {
	from, to, err := ParseMonth(month, s.loc)
	if err != nil {
		return nil, "", err
	}
	plans, err := s.repo.ListForExport(ctx, scope, repository.TaskPlanFilter{From: from, To: to})
	if err != nil {
		return nil, "", fmt.Errorf("查询任务计划失败: %w", err)
	}

	sheet := "任务计划"
	f, err := newSheet(sheet, taskPlanHeaders, taskPlanWidths)
	if err != nil {
		return nil, "", err
	}
	for i := range plans {
		tp := &plans[i]
		names := make([]string, 0, len(tp.AssignedUsers))
		for _, u := range tp.AssignedUsers {
			names = append(names, u.Username)
		}
		var phase, process, line string
		if tp.Phase != nil {
			phase = tp.Phase.Name
		}
		if tp.Process != nil {
			process = tp.Process.Name
		}
		if tp.ProductionLine != nil {
			line = tp.ProductionLine.Name
		}
		status := tp.Status
		if label, ok := entity.TaskStatusLabels[status]; ok {
			status = label
		}
		row := []interface{}{
			formatDate(&tp.Date, s.loc), tp.TaskDescription, strings.Join(names, ","),
			status, tp.Progress, phase, process, line,
		}
		if err := writeRow(f, sheet, i+2, row); err != nil {
			f.Close()
			return nil, "", fmt.Errorf("%w: %v", ErrExportRender, err)
		}
	}
	return f, attachmentName("任务计划", time.Now().In(s.loc)), nil
}

// ImportTaskPlans 逐行创建任务计划，行级错误汇总返回
func (s *TaskPlanExcelService) ImportTaskPlans(ctx context.Context, scope repository.Scope, rows [][]string) (*ImportResult, error) {
	if len(rows) == 0 {
		return nil, newError(ErrInvalidInput, "文件为空")
	}
	cols := newSheetColumns(rows[0])
	result := &ImportResult{Errors: []string{}}

	for i, row := range rows[1:] {
		rowNum := i + 2
		if isBlankRow(row) {
			continue
		}
		req, err := s.requestFromRow(ctx, cols, row)
		if err == nil {
			_, err = s.taskPlans.Create(ctx, scope, req)
		}
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("第%d行处理失败: %v", rowNum, err))
			continue
		}
		result.ImportedCount++
	}
	return result, nil
}

func (s *TaskPlanExcelService) requestFromRow(ctx context.Context, cols sheetColumns, row []string) (*TaskPlanRequest, error) {
	req := &TaskPlanRequest{
		Date:              cols.get(row, "日期"),
		TaskDescription:   cols.get(row, "任务计划"),
		AssignedUsernames: splitNames(cols.get(row, "任务实施人")),
		Status:            taskStatusCode(cols.get(row, "状态")),
	}
	if req.TaskDescription == "" {
		return nil, errors.New("任务计划不能为空")
	}
	if req.Date != "" && parseDate(req.Date, s.loc) == nil {
		return nil, fmt.Errorf("日期格式不正确: %s", req.Date)
	}
	if p := strings.TrimSuffix(cols.get(row, "完成进度(%)"), "%"); p != "" {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("完成进度不是数字: %s", p)
		}
		req.Progress = &v
	}

	lookup := configLookup{repo: s.configRepo}
	var err error
	if req.PhaseID, err = lookup.phase(ctx, cols.get(row, "期数")); err != nil {
		return nil, err
	}
	if req.ProcessID, err = lookup.process(ctx, cols.get(row, "工序")); err != nil {
		return nil, err
	}
	if req.ProductionLineID, err = lookup.line(ctx, req.PhaseID, cols.get(row, "产线")); err != nil {
		return nil, err
	}
	return req, nil
}

// taskStatusCode 中文标签转状态代码，未识别的原样返回交给校验
func taskStatusCode(v string) string {
	for code, label := range entity.TaskStatusLabels {
		if v == label {
			return code
		}
	}
	return v
}

// splitNames 支持中英文逗号和顿号分隔
func splitNames(v string) []string {
	return strings.FieldsFunc(v, func(r rune) bool {
		return r == ',' || r == '，' || r == '、' || r == ';' || r == '；'
	})
}
