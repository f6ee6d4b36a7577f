package service

import (
	"context"
	"errors"
	"testing"

	"github.com/jionychiow/CMSS-SOFT/internal/cmms/entity"
	"github.com/jionychiow/CMSS-SOFT/internal/cmms/repository"
	"github.com/jionychiow/CMSS-SOFT/internal/cmms/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskPlanPlannedPeopleCount(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	worker := testutil.SeedUser(t, env.DB, env.Plant.Org.ID, "worker", entity.UserTypeOperator)

	tp, err := env.Svc.TaskPlan.Create(ctx, env.adminScope(), &TaskPlanRequest{
		Date:              "2024-05-01",
		TaskDescription:   "更换滤芯",
		AssignedUserIDs:   []string{env.Plant.Operator.ID},
		AssignedUsernames: []string{"worker", "operator"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, tp.PlannedPeopleCount)
	assert.Len(t, tp.AssignedUsers, 2)
	assert.Equal(t, entity.TaskStatusPending, tp.Status)

	// 实施人置空后人数归零
	tp, err = env.Svc.TaskPlan.Update(ctx, env.adminScope(), tp.ID, &TaskPlanRequest{AssignedUserIDs: []string{}})
	require.NoError(t, err)
	assert.Equal(t, 0, tp.PlannedPeopleCount)

	progress := 100.0
	tp, err = env.Svc.TaskPlan.Update(ctx, env.adminScope(), tp.ID, &TaskPlanRequest{
		AssignedUserIDs: []string{worker.ID}, Status: entity.TaskStatusCompleted, Progress: &progress,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, tp.PlannedPeopleCount)
	assert.NotNil(t, tp.CompletedAt)

	// 改派后关联表只保留新的实施人
	got, err := env.Svc.TaskPlan.Get(ctx, env.adminScope(), tp.ID)
	require.NoError(t, err)
	require.Len(t, got.AssignedUsers, 1)
	assert.Equal(t, worker.ID, got.AssignedUsers[0].ID)
	var links int64
	require.NoError(t, env.DB.Table("task_plan_assignees").Where("task_plan_id = ?", tp.ID).Count(&links).Error)
	assert.Equal(t, int64(1), links)

	var users int64
	require.NoError(t, env.DB.Model(&entity.User{}).Where("id = ?", worker.ID).Count(&users).Error)
	assert.Equal(t, int64(1), users)

	require.NoError(t, env.Svc.TaskPlan.Delete(ctx, env.adminScope(), tp.ID))
	require.NoError(t, env.DB.Table("task_plan_assignees").Where("task_plan_id = ?", tp.ID).Count(&links).Error)
	assert.Equal(t, int64(0), links)
}

func TestTaskPlanValidation(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()

	_, err := env.Svc.TaskPlan.Create(ctx, env.adminScope(), &TaskPlanRequest{TaskDescription: " "})
	assert.True(t, errors.Is(err, ErrInvalidInput))

	over := 120.0
	_, err = env.Svc.TaskPlan.Create(ctx, env.adminScope(), &TaskPlanRequest{TaskDescription: "巡检", Progress: &over})
	assert.True(t, errors.Is(err, ErrInvalidInput))

	_, err = env.Svc.TaskPlan.Create(ctx, env.adminScope(), &TaskPlanRequest{
		TaskDescription: "巡检", AssignedUsernames: []string{"ghost"},
	})
	require.Error(t, err)
	assert.Equal(t, "实施人不存在: ghost", err.Error())

	_, err = env.Svc.TaskPlan.Create(ctx, env.adminScope(), &TaskPlanRequest{TaskDescription: "巡检", Status: "done"})
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestTaskPlanAssigneeAccess(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	outsider := testutil.SeedUser(t, env.DB, env.Plant.Org.ID, "outsider", entity.UserTypeOperator)
	outsiderScope := repository.Scope{OrgID: env.Plant.Org.ID, UserID: outsider.ID}

	tp, err := env.Svc.TaskPlan.Create(ctx, env.adminScope(), &TaskPlanRequest{
		Date: "2024-05-02", TaskDescription: "润滑", AssignedUserIDs: []string{env.Plant.Operator.ID},
	})
	require.NoError(t, err)

	// 实施人能看到并更新进度
	items, total, err := env.Svc.TaskPlan.List(ctx, env.operatorScope(), 1, 20, TaskPlanQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, tp.ID, items[0].ID)

	progress := 50.0
	_, err = env.Svc.TaskPlan.Update(ctx, env.operatorScope(), tp.ID, &TaskPlanRequest{
		Status: entity.TaskStatusInProgress, Progress: &progress,
	})
	require.NoError(t, err)

	// 实施人不能改派或修改内容
	_, err = env.Svc.TaskPlan.Update(ctx, env.operatorScope(), tp.ID, &TaskPlanRequest{
		AssignedUserIDs: []string{outsider.ID},
	})
	assert.True(t, errors.Is(err, ErrForbidden))
	_, err = env.Svc.TaskPlan.Update(ctx, env.operatorScope(), tp.ID, &TaskPlanRequest{TaskDescription: "改写"})
	assert.True(t, errors.Is(err, ErrForbidden))

	got, err := env.Svc.TaskPlan.Get(ctx, env.adminScope(), tp.ID)
	require.NoError(t, err)
	assert.Equal(t, "润滑", got.TaskDescription)
	assert.Equal(t, 50.0, got.Progress)
	require.Len(t, got.AssignedUsers, 1)
	assert.Equal(t, env.Plant.Operator.ID, got.AssignedUsers[0].ID)

	// 实施人不能删除
	err = env.Svc.TaskPlan.Delete(ctx, env.operatorScope(), tp.ID)
	assert.True(t, errors.Is(err, ErrForbidden))

	_, total, err = env.Svc.TaskPlan.List(ctx, outsiderScope, 1, 20, TaskPlanQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
	_, err = env.Svc.TaskPlan.Get(ctx, outsiderScope, tp.ID)
	assert.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, env.Svc.TaskPlan.Delete(ctx, env.adminScope(), tp.ID))
}

func TestTaskPlanListByDateAndMonth(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	for _, day := range []string{"2024-04-30", "2024-05-01", "2024-05-20"} {
		_, err := env.Svc.TaskPlan.Create(ctx, env.adminScope(), &TaskPlanRequest{Date: day, TaskDescription: "点检 " + day})
		require.NoError(t, err)
	}

	_, total, err := env.Svc.TaskPlan.List(ctx, env.adminScope(), 1, 20, TaskPlanQuery{Month: "2024-05"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	items, total, err := env.Svc.TaskPlan.List(ctx, env.adminScope(), 1, 20, TaskPlanQuery{Date: "2024-05-01"})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	assert.Equal(t, "点检 2024-05-01", items[0].TaskDescription)

	_, _, err = env.Svc.TaskPlan.List(ctx, env.adminScope(), 1, 20, TaskPlanQuery{Date: "05/01"})
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestTaskPlanImportAndExport(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	testutil.SeedUser(t, env.DB, env.Plant.Org.ID, "worker", entity.UserTypeOperator)

	rows := [][]string{
		{"日期", "任务计划", "任务实施人", "状态", "完成进度(%)", "期别"},
		{"2024-06-03", "清理冷却塔", "operator，worker", "进行中", "40%", "一期"},
		{"2024-06-04", "检查皮带", "nobody", "待开始", "", ""},
		{"2024-06-05", "更换轴承", "", "", "", "二期"},
	}
	result, err := env.Svc.TaskPlanExcel.ImportTaskPlans(ctx, env.adminScope(), rows)
	require.NoError(t, err)
	assert.Equal(t, 2, result.ImportedCount)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "第3行")

	items, _, err := env.Svc.TaskPlan.List(ctx, env.adminScope(), 1, 20, TaskPlanQuery{Date: "2024-06-03"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, entity.TaskStatusInProgress, items[0].Status)
	assert.Equal(t, 40.0, items[0].Progress)
	assert.Equal(t, 2, items[0].PlannedPeopleCount)
	require.NotNil(t, items[0].PhaseID)
	assert.Equal(t, env.Plant.Phase1.ID, *items[0].PhaseID)

	f, _, err := env.Svc.TaskPlanExcel.ExportTaskPlans(ctx, env.adminScope(), "2024-06")
	require.NoError(t, err)
	defer f.Close()
	sheet := f.GetSheetName(0)
	out, err := f.GetRows(sheet)
	require.NoError(t, err)
	assert.Len(t, out, 3)
	assert.Equal(t, taskPlanHeaders, out[0])
}
