package service

import (
	"context"
	"errors"
	"testing"

	"github.com/jionychiow/CMSS-SOFT/internal/cmms/entity"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createAsset(t *testing.T, env *testEnv, name, status string) *entity.Asset {
	t.Helper()
	asset, err := env.Svc.Asset.Create(context.Background(), env.adminScope(), &CreateAssetRequest{
		Name: name, Ref: name + "-001", Status: status,
	})
	require.NoError(t, err)
	return asset
}

func assetStatus(t *testing.T, env *testEnv, id string) string {
	t.Helper()
	asset, err := env.Repos.Asset.FindByID(context.Background(), id)
	require.NoError(t, err)
	return asset.Status
}

func TestPlanInProgressMarksAssetUnderMaintenance(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	asset := createAsset(t, env, "空压机", entity.AssetStatusActive)

	plan, err := env.Svc.Plan.Create(ctx, env.adminScope(), &CreatePlanRequest{
		Name: "季度保养", AssetID: &asset.ID, Status: entity.PlanStatusInProgress,
	})
	require.NoError(t, err)
	assert.Equal(t, entity.AssetStatusUnderMaintenance, assetStatus(t, env, asset.ID))

	_, err = env.Svc.Plan.UpdateStatus(ctx, env.adminScope(), plan.ID, entity.PlanStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, entity.AssetStatusActive, assetStatus(t, env, asset.ID))

	done, err := env.Svc.Plan.Get(ctx, env.adminScope(), plan.ID)
	require.NoError(t, err)
	assert.NotNil(t, done.FinishedAt)
}

func TestPlanLeavesRetiredAssetUnchanged(t *testing.T) {
	env := setupServices(t)
	asset := createAsset(t, env, "旧泵", entity.AssetStatusRetired)

	_, err := env.Svc.Plan.Create(context.Background(), env.adminScope(), &CreatePlanRequest{
		Name: "拆除", AssetID: &asset.ID, Status: entity.PlanStatusInProgress,
	})
	require.NoError(t, err)
	assert.Equal(t, entity.AssetStatusRetired, assetStatus(t, env, asset.ID))
}

func TestPlanUnmappedStatusRollsBack(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	asset := createAsset(t, env, "风机", entity.AssetStatusActive)

	plan, err := env.Svc.Plan.Create(ctx, env.adminScope(), &CreatePlanRequest{
		Name: "点检", AssetID: &asset.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, entity.PlanStatusPending, plan.Status)

	_, err = env.Svc.Plan.UpdateStatus(ctx, env.adminScope(), plan.ID, "Paused")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnmappedPlanStatus))

	stored, err := env.Repos.Plan.FindByID(ctx, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.PlanStatusPending, stored.Status)
	assert.Equal(t, entity.AssetStatusActive, assetStatus(t, env, asset.ID))
}

func TestPlanRejectsUnknownAsset(t *testing.T) {
	env := setupServices(t)
	missing := "no-such-asset"
	_, err := env.Svc.Plan.Create(context.Background(), env.adminScope(), &CreatePlanRequest{
		Name: "点检", AssetID: &missing,
	})
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestDeleteAssetWithPlansIsRejected(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	asset := createAsset(t, env, "冷却塔", entity.AssetStatusActive)
	_, err := env.Svc.Plan.Create(ctx, env.adminScope(), &CreatePlanRequest{Name: "清洗", AssetID: &asset.ID})
	require.NoError(t, err)

	err = env.Svc.Asset.Delete(ctx, env.adminScope(), asset.ID)
	assert.True(t, errors.Is(err, ErrInUse))
}

func TestAssetQuotaAndValidation(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	require.NoError(t, env.DB.Model(&entity.Organization{}).
		Where("id = ?", env.Plant.Org.ID).Update("max_assets", 1).Error)

	createAsset(t, env, "泵", entity.AssetStatusActive)
	_, err := env.Svc.Asset.Create(ctx, env.adminScope(), &CreateAssetRequest{Name: "阀门"})
	assert.True(t, errors.Is(err, ErrQuotaExceeded))

	require.NoError(t, env.DB.Model(&entity.Organization{}).
		Where("id = ?", env.Plant.Org.ID).Update("max_assets", 0).Error)
	negative := decimal.NewFromInt(-1)
	_, err = env.Svc.Asset.Create(ctx, env.adminScope(), &CreateAssetRequest{Name: "阀门", Cost: &negative})
	assert.True(t, errors.Is(err, ErrInvalidInput))

	line := "no-such-line"
	_, err = env.Svc.Asset.Create(ctx, env.adminScope(), &CreateAssetRequest{Name: "阀门", ProductionLineID: &line})
	assert.True(t, errors.Is(err, ErrInvalidInput))
}
