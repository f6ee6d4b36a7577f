package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jionychiow/CMSS-SOFT/internal/cmms/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePhaseCode(t *testing.T) {
	cases := []struct {
		text, fallback, want string
	}{
		{"一期", "", entity.PhaseOneCode},
		{"1期", "", entity.PhaseOneCode},
		{"二期", "", entity.PhaseTwoCode},
		{"phase_3", "", "phase_3"},
		{"", entity.PhaseTwoCode, entity.PhaseTwoCode},
		{"  ", entity.PhaseOneCode, entity.PhaseOneCode},
	}
	for _, c := range cases {
		got, err := ResolvePhaseCode(c.text, c.fallback)
		require.NoError(t, err, c.text)
		assert.Equal(t, c.want, got, c.text)
	}

	_, err := ResolvePhaseCode("三期", entity.PhaseOneCode)
	assert.ErrorIs(t, err, ErrUnresolvedCode)
	_, err = ResolvePhaseCode("", "")
	assert.ErrorIs(t, err, ErrUnresolvedCode)
}

func TestResolveShiftCode(t *testing.T) {
	got, err := ResolveShiftCode("长白班", "")
	require.NoError(t, err)
	assert.Equal(t, entity.ShiftLongDay, got)

	got, err = ResolveShiftCode("白班", "")
	require.NoError(t, err)
	assert.Equal(t, entity.ShiftLongDay, got)

	got, err = ResolveShiftCode("倒班", entity.ShiftLongDay)
	require.NoError(t, err)
	assert.Equal(t, entity.ShiftRotating, got)

	got, err = ResolveShiftCode("", entity.ShiftRotating)
	require.NoError(t, err)
	assert.Equal(t, entity.ShiftRotating, got)

	_, err = ResolveShiftCode("夜班", entity.ShiftLongDay)
	assert.ErrorIs(t, err, ErrUnresolvedCode)
}

func TestResolveChangeReason(t *testing.T) {
	assert.Equal(t, entity.ChangeReasonRepair, ResolveChangeReason("维修"))
	assert.Equal(t, entity.ChangeReasonTechMod, ResolveChangeReason(" 技改 "))
	assert.Equal(t, "其它", ResolveChangeReason("其它"))
}

func TestFormatSpan(t *testing.T) {
	assert.Equal(t, "45分钟", FormatSpan(45*time.Minute))
	assert.Equal(t, "1小时30分钟", FormatSpan(90*time.Minute))
	assert.Equal(t, "1天2小时5分钟", FormatSpan(26*time.Hour+5*time.Minute))
	assert.Equal(t, "0分钟", FormatSpan(0))
	assert.Equal(t, "-2小时0分钟", FormatSpan(-2*time.Hour))
}

func TestParseMonth(t *testing.T) {
	from, to, err := ParseMonth("2024-12", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC), *from)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), *to)

	from, _, err = ParseMonth("2024-3", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.March, from.Month())

	from, to, err = ParseMonth("all", time.UTC)
	require.NoError(t, err)
	assert.Nil(t, from)
	assert.Nil(t, to)

	_, _, err = ParseMonth("2024/03", time.UTC)
	assert.True(t, errors.Is(err, ErrInvalidMonth))
}

func TestParseDateTime(t *testing.T) {
	got := parseDateTime("2024-01-02 08:30", time.UTC)
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2024, 1, 2, 8, 30, 0, 0, time.UTC), *got)

	got = parseDateTime("2024年1月2日", time.UTC)
	require.NotNil(t, got)
	assert.Equal(t, 2, got.Day())

	// Excel 序列号 45293.5 = 2024-01-02 12:00
	got = parseDateTime("45293.5", time.UTC)
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC), *got)

	assert.Nil(t, parseDateTime("明天", time.UTC))
}

func TestSheetColumnsAliases(t *testing.T) {
	cols := newSheetColumns([]string{"生产线", "设备名称 ", "期别"})
	row := []string{"A线", "泵"}
	assert.Equal(t, "A线", cols.get(row, "产线"))
	assert.Equal(t, "泵", cols.get(row, "设备名称"))
	// 越界单元格为空
	assert.Equal(t, "", cols.get(row, "期数"))
}

func recordSheet(rows ...[]string) [][]string {
	header := []string{"设备名称", "变更原因", "开始日期及时间", "结束日期及时间", "实施人", "班次类型", "期数"}
	return append([][]string{header}, rows...)
}

func TestImportRecordsReportsRowErrors(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()

	var rows [][]string
	for i := 0; i < 6; i++ {
		rows = append(rows, []string{fmt.Sprintf("设备%d", i), "维修", "2024-01-02 08:00", "2024-01-02 09:00", "张三", "", ""})
	}
	// 第5行期数无法识别
	rows[3][6] = "三期"

	result, err := env.Svc.RecordExcel.ImportRecords(ctx, env.adminScope(), recordSheet(rows...),
		ImportDefaults{PhaseCode: entity.PhaseOneCode, ShiftCode: entity.ShiftLongDay})
	require.NoError(t, err)
	assert.Equal(t, 5, result.ImportedCount)
	require.Len(t, result.Errors, 1)
	assert.True(t, strings.HasPrefix(result.Errors[0], "第5行"), result.Errors[0])

	items, total, err := env.Svc.ShiftRecord.List(ctx, env.adminScope(), 1, 20, RecordQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	for _, rec := range items {
		assert.Equal(t, entity.ChangeReasonRepair, rec.ChangeReason)
		assert.True(t, strings.HasPrefix(rec.SerialNumber, "1CB-"), rec.SerialNumber)
		require.NotNil(t, rec.Duration)
		assert.Equal(t, 1.0, *rec.Duration)
	}
}

func TestImportRecordsReportsUnknownShift(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()

	var rows [][]string
	for i := 0; i < 6; i++ {
		rows = append(rows, []string{fmt.Sprintf("设备%d", i), "维修", "2024-01-02 08:00", "2024-01-02 09:00", "张三", "长白班", ""})
	}
	// 没有默认班次时，无法识别的班次文本只影响本行
	rows[3][5] = "夜班"

	result, err := env.Svc.RecordExcel.ImportRecords(ctx, env.adminScope(), recordSheet(rows...),
		ImportDefaults{PhaseCode: entity.PhaseOneCode})
	require.NoError(t, err)
	assert.Equal(t, 5, result.ImportedCount)
	require.Len(t, result.Errors, 1)
	assert.True(t, strings.HasPrefix(result.Errors[0], "第5行"), result.Errors[0])
	assert.Contains(t, result.Errors[0], "班次类型")

	_, total, err := env.Svc.ShiftRecord.List(ctx, env.adminScope(), 1, 20, RecordQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
}

func TestImportRecordsRequiresPhaseAndShift(t *testing.T) {
	env := setupServices(t)
	result, err := env.Svc.RecordExcel.ImportRecords(context.Background(), env.adminScope(),
		recordSheet([]string{"泵", "", "", "", "", "", "一期"}), ImportDefaults{})
	require.NoError(t, err)
	assert.Equal(t, 0, result.ImportedCount)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "第2行缺少期数或班次类型信息")
}

func exportedEquipment(t *testing.T, env *testEnv, month string) []string {
	t.Helper()
	f, name, err := env.Svc.RecordExcel.ExportRecords(context.Background(), env.adminScope(), ExportFilter{
		PhaseCode: entity.PhaseOneCode, Month: month,
	})
	require.NoError(t, err)
	defer f.Close()
	assert.True(t, strings.HasSuffix(name, ".xlsx"))

	rows, err := f.GetRows("维修记录")
	require.NoError(t, err)
	require.NotEmpty(t, rows)
	assert.Equal(t, recordExportHeaders, rows[0])
	var names []string
	for _, row := range rows[1:] {
		assert.Equal(t, "一期", row[0])
		names = append(names, row[4])
	}
	return names
}

func TestExportRecordsByMonth(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	cst := time.FixedZone("CST", 8*3600)

	create := func(name string, start, end time.Time) {
		_, err := env.Svc.ShiftRecord.Create(ctx, env.adminScope(), &CreateRecordRequest{
			PhaseCode: entity.PhaseOneCode, ShiftTypeCode: entity.ShiftLongDay, EquipmentName: name,
			StartDatetime: &start, EndDatetime: &end,
		})
		require.NoError(t, err)
	}
	create("开始在二月", time.Date(2024, 2, 5, 8, 0, 0, 0, time.UTC), time.Date(2024, 2, 5, 10, 0, 0, 0, time.UTC))
	create("结束在二月", time.Date(2024, 1, 31, 22, 0, 0, 0, time.UTC), time.Date(2024, 2, 1, 2, 0, 0, 0, time.UTC))
	create("一月", time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC), time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC))
	// 东八区 2月1日 07:00 即 UTC 1月31日 23:00
	create("东八区", time.Date(2024, 2, 1, 7, 0, 0, 0, cst), time.Date(2024, 2, 1, 7, 30, 0, 0, cst))

	assert.ElementsMatch(t, []string{"开始在二月", "结束在二月"}, exportedEquipment(t, env, "2024-02"))
	assert.ElementsMatch(t, []string{"结束在二月", "一月", "东八区"}, exportedEquipment(t, env, "2024-01"))
	assert.Len(t, exportedEquipment(t, env, "all"), 4)

	items, total, err := env.Svc.ShiftRecord.List(ctx, env.adminScope(), 1, 20, RecordQuery{Month: "2024-02"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, items, 2)

	_, _, err = env.Svc.RecordExcel.ExportRecords(ctx, env.adminScope(), ExportFilter{PhaseCode: "phase_9"})
	assert.True(t, errors.Is(err, ErrNotFound))

	_, _, err = env.Svc.RecordExcel.ExportRecords(ctx, env.adminScope(), ExportFilter{Month: "2024-13"})
	assert.True(t, errors.Is(err, ErrInvalidMonth))
}

func TestTemplateRecordsHasHelpSheet(t *testing.T) {
	env := setupServices(t)
	f, err := env.Svc.RecordExcel.TemplateRecords()
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("维修记录模板")
	require.NoError(t, err)
	assert.Equal(t, recordTemplateHeaders, rows[0])
	assert.Contains(t, f.GetSheetList(), "填写说明")
}

func TestDeleteReferencedPhaseIsRejected(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	_, err := env.Svc.ShiftRecord.Create(ctx, env.adminScope(), &CreateRecordRequest{
		PhaseCode: entity.PhaseTwoCode, ShiftTypeCode: entity.ShiftLongDay, EquipmentName: "泵",
	})
	require.NoError(t, err)

	err = env.Svc.Config.DeletePhase(ctx, env.Plant.Phase2.ID)
	assert.True(t, errors.Is(err, ErrInUse))

	_, err = env.Repos.Config.FindPhase(ctx, env.Plant.Phase2.ID)
	assert.NoError(t, err)
}
