package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jionychiow/CMSS-SOFT/internal/cmms/entity"
	"github.com/jionychiow/CMSS-SOFT/internal/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createLoginUser(t *testing.T, env *testEnv, username string) *entity.User {
	t.Helper()
	user, err := env.Svc.User.Create(context.Background(), env.Plant.Org.ID, &CreateUserRequest{
		Username: username, Password: "secret123", Name: "张三",
	})
	require.NoError(t, err)
	return user
}

func TestLoginIssuesTokens(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	user := createLoginUser(t, env, "zhangsan")

	result, err := env.Svc.Auth.Login(ctx, &LoginRequest{Username: "zhangsan", Password: "secret123"})
	require.NoError(t, err)
	assert.NotEmpty(t, result.AccessToken)
	assert.NotEmpty(t, result.RefreshToken)
	assert.Equal(t, user.ID, result.User.ID)

	claims, err := env.Svc.Auth.parse(result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, middleware.TokenTypeAccess, claims.TokenType)
	assert.Equal(t, env.Plant.Org.ID, claims.OrgID)
	assert.Equal(t, []string{entity.UserTypeOperator}, claims.Roles)
	// 新建操作员默认可以录入维护记录
	assert.Contains(t, claims.Permissions, entity.PermRecordCreate)
	assert.NotContains(t, claims.Permissions, entity.PermAssetDelete)

	stored, err := env.Repos.User.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.LastLoginAt)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	createLoginUser(t, env, "lisi")

	_, err := env.Svc.Auth.Login(ctx, &LoginRequest{Username: "lisi", Password: "wrong"})
	assert.True(t, errors.Is(err, ErrInvalidCredentials))

	_, err = env.Svc.Auth.Login(ctx, &LoginRequest{Username: "nobody", Password: "secret123"})
	assert.True(t, errors.Is(err, ErrInvalidCredentials))
}

func TestLoginRejectsDisabledUser(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	user := createLoginUser(t, env, "wangwu")

	disabled := "disabled"
	_, err := env.Svc.User.Update(ctx, env.Plant.Org.ID, user.ID, &UpdateUserRequest{Status: &disabled})
	require.NoError(t, err)

	_, err = env.Svc.Auth.Login(ctx, &LoginRequest{Username: "wangwu", Password: "secret123"})
	require.Error(t, err)
	assert.Equal(t, "账号已停用", err.Error())
}

func TestLogoutRevokesTokens(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	createLoginUser(t, env, "zhaoliu")

	result, err := env.Svc.Auth.Login(ctx, &LoginRequest{Username: "zhaoliu", Password: "secret123"})
	require.NoError(t, err)
	claims, err := env.Svc.Auth.parse(result.AccessToken)
	require.NoError(t, err)

	revoked, err := env.Svc.Auth.IsRevoked(ctx, claims.ID)
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, env.Svc.Auth.Logout(ctx, claims, result.RefreshToken))

	revoked, err = env.Svc.Auth.IsRevoked(ctx, claims.ID)
	require.NoError(t, err)
	assert.True(t, revoked)

	// Redis 清空后仍能从数据库查到
	env.Redis.FlushAll()
	revoked, err = env.Svc.Auth.IsRevoked(ctx, claims.ID)
	require.NoError(t, err)
	assert.True(t, revoked)

	_, err = env.Svc.Auth.Refresh(ctx, result.RefreshToken)
	assert.True(t, errors.Is(err, ErrInvalidCredentials))
}

func TestRefreshRotatesToken(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	createLoginUser(t, env, "sunqi")

	result, err := env.Svc.Auth.Login(ctx, &LoginRequest{Username: "sunqi", Password: "secret123"})
	require.NoError(t, err)

	pair, err := env.Svc.Auth.Refresh(ctx, result.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, result.RefreshToken, pair.RefreshToken)

	// 旧 Refresh Token 只能使用一次
	_, err = env.Svc.Auth.Refresh(ctx, result.RefreshToken)
	assert.True(t, errors.Is(err, ErrInvalidCredentials))

	// 访问令牌不能用于刷新
	_, err = env.Svc.Auth.Refresh(ctx, pair.AccessToken)
	assert.True(t, errors.Is(err, ErrInvalidCredentials))
}

func TestCleanupRemovesStaleRows(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, env.Repos.Token.Revoke(ctx, &entity.RevokedToken{
		ID: newID(), JTI: "old", UserID: env.Plant.Admin.ID, ExpiresAt: now.AddDate(0, 0, -40),
	}))
	require.NoError(t, env.Repos.Token.Revoke(ctx, &entity.RevokedToken{
		ID: newID(), JTI: "fresh", UserID: env.Plant.Admin.ID, ExpiresAt: now.Add(time.Hour),
	}))
	require.NoError(t, env.Repos.Activity.Create(ctx, &entity.UserActivity{
		UserID: env.Plant.Admin.ID, ActivityType: entity.ActivityLogin, CreatedAt: now.AddDate(0, 0, -40),
	}))
	require.NoError(t, env.Repos.Activity.Create(ctx, &entity.UserActivity{
		UserID: env.Plant.Admin.ID, ActivityType: entity.ActivityLogin,
	}))

	result, err := env.Svc.Cleanup.Run(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.RevokedTokens)
	assert.Equal(t, int64(1), result.Activities)

	revoked, err := env.Repos.Token.IsRevoked(ctx, "fresh")
	require.NoError(t, err)
	assert.True(t, revoked)

	_, err = env.Svc.Cleanup.Run(ctx, 0)
	assert.True(t, errors.Is(err, ErrInvalidInput))

	require.NoError(t, env.Svc.Cleanup.Job(30)(ctx))
}

func TestUserQuotaAndDuplicate(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()

	_, err := env.Svc.User.Create(ctx, env.Plant.Org.ID, &CreateUserRequest{Username: "operator", Password: "secret123"})
	assert.True(t, errors.Is(err, ErrConflict))

	_, err = env.Svc.User.Create(ctx, env.Plant.Org.ID, &CreateUserRequest{Username: "x", Password: "secret123", Type: "Root"})
	assert.True(t, errors.Is(err, ErrInvalidInput))

	// 已有管理员和操作员两个用户
	require.NoError(t, env.DB.Model(&entity.Organization{}).
		Where("id = ?", env.Plant.Org.ID).Update("max_users", 2).Error)
	_, err = env.Svc.User.Create(ctx, env.Plant.Org.ID, &CreateUserRequest{Username: "third", Password: "secret123"})
	assert.True(t, errors.Is(err, ErrQuotaExceeded))
}
