package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jionychiow/CMSS-SOFT/internal/cmms/repository"
	"github.com/jionychiow/CMSS-SOFT/internal/shared/textenc"
	"github.com/xuri/excelize/v2"
)

const (
	xlsxDateTimeLayout = "2006-01-02 15:04"
	xlsxDateLayout     = "2006-01-02"
	monthLayout        = "2006-01"
)

// 表头别名，归一到标准列名
var headerAliases = map[string]string{
	"生产线":      "产线",
	"开始时间":     "开始日期及时间",
	"结束时间":     "结束日期及时间",
	"持续时间(分钟)": "耗用时长",
	"操作人":      "实施人",
	"确认人(长白班)": "确认人",
	"接令人(倒班)":  "验收人",
	"期别":       "期数",
	"任务描述":     "任务计划",
	"实施人员":     "任务实施人",
}

// newSheet 新建工作簿，首个工作表改名并写入带样式的表头
func newSheet(sheet string, headers []string, widths []float64) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeHeader(f, sheet, headers, widths); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// writeHeader 表头: 加粗、浅蓝底、下边框
func writeHeader(f *excelize.File, sheet string, headers []string, widths []float64) error {
	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return err
	}
	for i, h := range headers {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := col + "1"
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, cell, cell, style); err != nil {
			return err
		}
		w := 15.0
		if i < len(widths) {
			w = widths[i]
		}
		if err := f.SetColWidth(sheet, col, col, w); err != nil {
			return err
		}
	}
	return nil
}

// writeRow 写入第 row 行（1 起）
func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

// writeHelpSheet 填写说明工作表
func writeHelpSheet(f *excelize.File, rows [][]string) {
	helpSheet := "填写说明"
	f.NewSheet(helpSheet)
	for i, row := range rows {
		for j, val := range row {
			col, _ := excelize.ColumnNumberToName(j + 1)
			f.SetCellValue(helpSheet, fmt.Sprintf("%s%d", col, i+1), val)
		}
	}
	f.SetColWidth(helpSheet, "A", "A", 16)
	f.SetColWidth(helpSheet, "B", "B", 50)
	f.SetColWidth(helpSheet, "C", "C", 10)
}

// ReadSheetRows 读取上传文件的全部行，.csv 按文本解码，其余按 xlsx 解析。
// xlsx 取原始单元格值，日期保留为序列号由 parseDateTime 处理
func ReadSheetRows(fileName string, r io.Reader) ([][]string, error) {
	if strings.EqualFold(filepath.Ext(fileName), ".csv") {
		return textenc.ReadCSV(r)
	}
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, newError(ErrInvalidInput, "无法解析Excel文件: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0), excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read excel: %w", err)
	}
	return rows, nil
}

func normalizeHeader(h string) string {
	h = strings.TrimSpace(h)
	h = strings.NewReplacer("（", "(", "）", ")", " ", "").Replace(h)
	if canonical, ok := headerAliases[h]; ok {
		return canonical
	}
	return h
}

// sheetColumns 标准列名到列下标
type sheetColumns map[string]int

func newSheetColumns(header []string) sheetColumns {
	cols := make(sheetColumns, len(header))
	for i, h := range header {
		name := normalizeHeader(h)
		if name == "" {
			continue
		}
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}
	return cols
}

// get 取单元格文本，列不存在或越界时为空
func (c sheetColumns) get(row []string, name string) string {
	idx, ok := c[name]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func isBlankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

var dateTimeLayouts = []string{
	"2006-1-2 15:04:05",
	"2006-1-2 15:04",
	"2006-1-2T15:04:05",
	"2006-1-2T15:04",
	"2006/1/2 15:04:05",
	"2006/1/2 15:04",
	"2006.1.2 15:04",
	"2006年1月2日 15:04",
	"2006年1月2日15:04",
	"2006-1-2",
	"2006/1/2",
	"2006.1.2",
	"2006年1月2日",
}

// parseDateTime 宽松解析日期时间：常见文本格式或 Excel 日期序列号，失败返回 nil
func parseDateTime(s string, loc *time.Location) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		t = t.In(loc)
		return &t
	}
	for _, layout := range dateTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return &t
		}
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 0 {
		raw, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return nil
		}
		// 序列号是不带时区的墙上时间，精确到分钟
		raw = raw.Round(time.Minute)
		t := time.Date(raw.Year(), raw.Month(), raw.Day(), raw.Hour(), raw.Minute(), 0, 0, loc)
		return &t
	}
	return nil
}

// parseDate 只取日期部分
func parseDate(s string, loc *time.Location) *time.Time {
	t := parseDateTime(s, loc)
	if t == nil {
		return nil
	}
	d := startOfDay(*t, loc)
	return &d
}

func formatDateTime(t *time.Time, loc *time.Location) string {
	if t == nil {
		return ""
	}
	return t.In(loc).Format(xlsxDateTimeLayout)
}

func formatDate(t *time.Time, loc *time.Location) string {
	if t == nil {
		return ""
	}
	return t.In(loc).Format(xlsxDateLayout)
}

// FormatSpan 耗时显示: X天Y小时Z分钟 / Y小时Z分钟 / Z分钟，负值加 "-"
func FormatSpan(d time.Duration) string {
	if d < 0 {
		return "-" + FormatSpan(-d)
	}
	total := int64(d / time.Minute)
	days := total / (24 * 60)
	hours := (total % (24 * 60)) / 60
	minutes := total % 60
	switch {
	case days > 0:
		return fmt.Sprintf("%d天%d小时%d分钟", days, hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%d小时%d分钟", hours, minutes)
	default:
		return fmt.Sprintf("%d分钟", minutes)
	}
}

// ParseMonth 把 YYYY-MM 解析为 [月初, 下月初)，空串或 all 表示不过滤
func ParseMonth(month string, loc *time.Location) (from, to *time.Time, err error) {
	month = strings.TrimSpace(month)
	if month == "" || strings.EqualFold(month, "all") {
		return nil, nil, nil
	}
	start, err := time.ParseInLocation(monthLayout, month, loc)
	if err != nil {
		// 兼容 2024-1
		start, err = time.ParseInLocation("2006-1", month, loc)
		if err != nil {
			return nil, nil, newError(ErrInvalidMonth, "月份格式不正确，请使用 YYYY-MM 格式")
		}
	}
	end := start.AddDate(0, 1, 0)
	return &start, &end, nil
}

// parseNumber 解析数字单元格，兼容千分位与货币符号
func parseNumber(s string) (float64, bool) {
	s = strings.NewReplacer(",", "", "¥", "", "￥", "", " ", "").Replace(strings.TrimSpace(s))
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// attachmentName 导出文件名: 前缀_20060102.xlsx
func attachmentName(prefix string, now time.Time) string {
	return fmt.Sprintf("%s_%s.xlsx", prefix, now.Format("20060102"))
}

// configLookup 按表格中的名称或代码查找工厂配置，空白单元格返回 nil
type configLookup struct {
	repo *repository.ConfigRepository
}

// phase 先按名称或代码匹配，再按"一期/二期"推断
func (l configLookup) phase(ctx context.Context, text string) (*string, error) {
	if text == "" {
		return nil, nil
	}
	phase, err := l.repo.FindPhaseByNameOrCode(ctx, text)
	if errors.Is(err, repository.ErrNotFound) {
		code, resolveErr := ResolvePhaseCode(text, "")
		if resolveErr != nil {
			return nil, fmt.Errorf("期别不存在: %s", text)
		}
		phase, err = l.repo.FindPhaseByCode(ctx, code)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("期别不存在: %s", text)
		}
	}
	if err != nil {
		return nil, err
	}
	return &phase.ID, nil
}

func (l configLookup) process(ctx context.Context, text string) (*string, error) {
	if text == "" {
		return nil, nil
	}
	p, err := l.repo.FindProcessByNameOrCode(ctx, text)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("工序不存在: %s", text)
	}
	if err != nil {
		return nil, err
	}
	return &p.ID, nil
}

func (l configLookup) line(ctx context.Context, phaseID *string, text string) (*string, error) {
	if text == "" {
		return nil, nil
	}
	scopePhase := ""
	if phaseID != nil {
		scopePhase = *phaseID
	}
	line, err := l.repo.FindLineByNameOrCode(ctx, scopePhase, text)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("产线不存在: %s", text)
	}
	if err != nil {
		return nil, err
	}
	return &line.ID, nil
}
