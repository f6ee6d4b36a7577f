package service

import (
	"context"
	"testing"
	"time"

	"github.com/jionychiow/CMSS-SOFT/internal/cmms/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeeklyTrendsFillsWholeWeek(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	// 2024-05-15 是周三
	env.Svc.Dashboard.now = func() time.Time { return time.Date(2024, 5, 15, 10, 0, 0, 0, time.UTC) }

	monday := time.Date(2024, 5, 13, 9, 0, 0, 0, time.UTC)
	require.NoError(t, env.Svc.Activity.RecordVisit(ctx, "u1", monday))
	require.NoError(t, env.Svc.Activity.RecordVisit(ctx, "u1", monday.Add(time.Hour)))
	require.NoError(t, env.Svc.Activity.RecordVisit(ctx, "u2", monday.Add(2*time.Hour)))
	require.NoError(t, env.Svc.Activity.RecordVisit(ctx, "u1", monday.AddDate(0, 0, 2)))
	// 上周日不计入
	require.NoError(t, env.Svc.Activity.RecordVisit(ctx, "u1", monday.AddDate(0, 0, -1)))

	days, err := env.Svc.Dashboard.WeeklyTrends(ctx)
	require.NoError(t, err)
	require.Len(t, days, 7)
	assert.Equal(t, "2024-05-13", days[0].Date)
	assert.Equal(t, "周一", days[0].Weekday)
	assert.Equal(t, 3, days[0].VisitCount)
	assert.Equal(t, 2, days[0].UniqueVisitors)
	assert.Equal(t, 0, days[1].VisitCount)
	assert.Equal(t, 1, days[2].VisitCount)
	assert.Equal(t, "2024-05-19", days[6].Date)
	assert.Equal(t, "周日", days[6].Weekday)
}

func TestTaskStatusDistribution(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	now := time.Date(2024, 5, 15, 10, 0, 0, 0, time.UTC)
	env.Svc.Dashboard.now = func() time.Time { return now }

	create := func(date, status string) {
		_, err := env.Svc.TaskPlan.Create(ctx, env.adminScope(), &TaskPlanRequest{
			Date: date, TaskDescription: "任务", Status: status,
		})
		require.NoError(t, err)
	}
	create("2024-05-15", entity.TaskStatusPending)
	create("2024-05-15", entity.TaskStatusCompleted)
	create("2024-05-15", entity.TaskStatusCompleted)
	create("2024-05-14", entity.TaskStatusPending)
	create("2024-05-10", entity.TaskStatusInProgress)

	buckets, err := env.Svc.Dashboard.TaskStatus(ctx, env.Plant.Org.ID)
	require.NoError(t, err)
	counts := map[string]int64{}
	for _, b := range buckets {
		counts[b.Status] = b.Count
	}
	assert.Equal(t, int64(1), counts[entity.TaskStatusPending])
	assert.Equal(t, int64(2), counts[entity.TaskStatusCompleted])
	assert.Equal(t, int64(0), counts[entity.TaskStatusInProgress])
	assert.Equal(t, int64(1), counts["overdue"])
	assert.Equal(t, "已逾期", buckets[len(buckets)-1].Label)

	ov, err := env.Svc.Dashboard.Overview(ctx, env.Plant.Org.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), ov.TodayTasks)
	assert.Equal(t, int64(2), ov.CompletedToday)
	assert.Equal(t, int64(3), ov.IncompleteTasks)
	assert.Equal(t, int64(1), ov.InProgressTasks)

	// 缓存期内新数据不影响结果
	create("2024-05-15", entity.TaskStatusPending)
	cached, err := env.Svc.Dashboard.Overview(ctx, env.Plant.Org.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), cached.TodayTasks)

	env.Redis.FastForward(time.Minute)
	fresh, err := env.Svc.Dashboard.Overview(ctx, env.Plant.Org.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4), fresh.TodayTasks)
}

func TestMaintenanceRate(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	process := createProcessForRate(t, env, "装配")
	for _, r := range []struct{ phase, process, line string }{
		{entity.PhaseOneCode, "装配", "A线"},
		{entity.PhaseOneCode, "装配", "A线"},
		{entity.PhaseOneCode, "", ""},
		{entity.PhaseTwoCode, "焊接", "B线"},
	} {
		_, err := env.Svc.ShiftRecord.Create(ctx, env.adminScope(), &CreateRecordRequest{
			PhaseCode: r.phase, ShiftTypeCode: entity.ShiftLongDay, EquipmentName: "设备",
			Process: r.process, ProductionLine: r.line,
		})
		require.NoError(t, err)
	}

	rate, err := env.Svc.Dashboard.MaintenanceRate(ctx, env.adminScope(), RateQuery{Period: "week"})
	require.NoError(t, err)
	assert.Equal(t, "month", rate.Period)
	assert.Equal(t, int64(4), rate.TotalCount)
	require.Len(t, rate.Daily, 1)
	assert.Equal(t, int64(4), rate.Daily[0].Count)
	require.Len(t, rate.Breakdown, 3)
	assert.Equal(t, RateBucket{Process: "装配", ProductionLine: "A线", Phase: "一期", Count: 2}, rate.Breakdown[0])
	assert.Contains(t, rate.Breakdown, RateBucket{Process: "未知工段", ProductionLine: "未知产线", Phase: "一期", Count: 1})

	rate, err = env.Svc.Dashboard.MaintenanceRate(ctx, env.adminScope(), RateQuery{PhaseCode: entity.PhaseOneCode, ProcessID: process.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(2), rate.TotalCount)

	// 未知工序不参与过滤
	rate, err = env.Svc.Dashboard.MaintenanceRate(ctx, env.adminScope(), RateQuery{ProcessID: "missing"})
	require.NoError(t, err)
	assert.Equal(t, int64(4), rate.TotalCount)

	// 未知期数返回空结果
	rate, err = env.Svc.Dashboard.MaintenanceRate(ctx, env.adminScope(), RateQuery{PhaseCode: "phase_9"})
	require.NoError(t, err)
	assert.Equal(t, int64(0), rate.TotalCount)
	assert.Empty(t, rate.Daily)
}

func createProcessForRate(t *testing.T, env *testEnv, name string) *entity.Process {
	t.Helper()
	p, err := env.Svc.Config.CreateProcess(context.Background(), &ConfigItemRequest{Code: "assembly", Name: name})
	require.NoError(t, err)
	return p
}
