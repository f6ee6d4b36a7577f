package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Maintenance.SerialMaxAttempts)
	assert.Equal(t, "Asia/Shanghai", cfg.Maintenance.Timezone)
	assert.True(t, cfg.Scheduler.Enabled)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	// 显式指定的文件不存在时不降级为环境变量
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
server:
  port: 9090
database:
  driver: sqlite
  path: test.db
maintenance:
  timezone: UTC
  serial_max_attempts: 8
`)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	t.Setenv("JWT_SECRET", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "from-env", cfg.JWT.Secret)
	assert.Equal(t, 8, cfg.Maintenance.SerialMaxAttempts)
	assert.Equal(t, time.UTC, cfg.Maintenance.Location())
	// 未配置的字段使用默认值
	assert.Equal(t, 7, cfg.Scheduler.RetentionDays)
	assert.Equal(t, "@every 24h", cfg.Scheduler.CleanupSpec)
	assert.Equal(t, 2*time.Hour, cfg.JWT.AccessTokenExpire)
}

func TestLocationFallback(t *testing.T) {
	assert.Equal(t, time.Local, MaintenanceConfig{}.Location())
	assert.Equal(t, time.Local, MaintenanceConfig{Timezone: "Not/AZone"}.Location())
}
