package service

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jionychiow/CMSS-SOFT/internal/cmms/repository"
	"github.com/jionychiow/CMSS-SOFT/internal/cmms/testutil"
	"github.com/jionychiow/CMSS-SOFT/internal/config"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type testEnv struct {
	DB    *gorm.DB
	Repos *repository.Repositories
	Svc   *Services
	Plant *testutil.Plant
	Store *testutil.MemoryStore
	Redis *miniredis.Miniredis
}

func (e *testEnv) adminScope() repository.Scope {
	return repository.Scope{OrgID: e.Plant.Org.ID, UserID: e.Plant.Admin.ID, Admin: true}
}

func (e *testEnv) operatorScope() repository.Scope {
	return repository.Scope{OrgID: e.Plant.Org.ID, UserID: e.Plant.Operator.ID}
}

func testConfig() *config.Config {
	return &config.Config{
		JWT: config.JWTConfig{
			Secret:             testutil.JWTSecret,
			AccessTokenExpire:  time.Hour,
			RefreshTokenExpire: 24 * time.Hour,
			Issuer:             "cmms-test",
		},
		Maintenance: config.MaintenanceConfig{Timezone: "UTC", SerialMaxAttempts: 10},
	}
}

func setupServices(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)
	mr, rdb := testutil.SetupRedis(t)
	store := testutil.NewMemoryStore()
	repos := repository.NewRepositories(db)

	return &testEnv{
		DB:    db,
		Repos: repos,
		Svc:   NewServices(repos, rdb, store, testConfig(), zap.NewNop()),
		Plant: testutil.SeedPlant(t, db),
		Store: store,
		Redis: mr,
	}
}
