package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/jionychiow/CMSS-SOFT/internal/cmms/entity"
	"github.com/jionychiow/CMSS-SOFT/internal/cmms/repository"
	"github.com/jionychiow/CMSS-SOFT/internal/config"
	"github.com/jionychiow/CMSS-SOFT/internal/shared/storage"
	"github.com/mozillazg/go-pinyin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// 业务错误类别，handler 据此映射响应码
var (
	ErrNotFound           = repository.ErrNotFound
	ErrInvalidInput       = errors.New("invalid input")
	ErrConflict           = errors.New("conflict")
	ErrInUse              = errors.New("still referenced")
	ErrForbidden          = errors.New("forbidden")
	ErrSerialExhausted    = errors.New("serial number allocation exhausted")
	ErrDuplicateSerial    = errors.New("duplicate serial number")
	ErrUnmappedPlanStatus = errors.New("unmapped maintenance plan status")
	ErrInvalidMonth       = errors.New("invalid month")
	ErrExportRender       = errors.New("export render failed")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrQuotaExceeded      = errors.New("organization quota exceeded")
	ErrStorageUnavailable = storage.ErrNotConfigured
)

// bizError 带中文提示的业务错误
type bizError struct {
	kind error
	msg  string
}

func (e *bizError) Error() string { return e.msg }
func (e *bizError) Unwrap() error { return e.kind }

func newError(kind error, format string, args ...interface{}) error {
	return &bizError{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Services 服务集合
type Services struct {
	Config        *ConfigService
	Auth          *AuthService
	User          *UserService
	Asset         *AssetService
	AssetExcel    *AssetExcelService
	Plan          *MaintenancePlanService
	ShiftRecord   *ShiftRecordService
	RecordExcel   *RecordExcelService
	TaskPlan      *TaskPlanService
	TaskPlanExcel *TaskPlanExcelService
	Manual        *ManualService
	Case          *CaseService
	Media         *MediaService
	Activity      *ActivityService
	Dashboard     *DashboardService
	Cleanup       *CleanupService
}

// NewServices 创建服务集合，rdb 和 store 可为空
func NewServices(repos *repository.Repositories, rdb *redis.Client, store storage.ObjectStore, cfg *config.Config, logger *zap.Logger) *Services {
	loc := cfg.Maintenance.Location()

	configSvc := NewConfigService(repos.Config)
	recordSvc := NewShiftRecordService(repos.ShiftRecord, repos.Config, repos.Activity, cfg.Maintenance.SerialMaxAttempts, loc)
	assetSvc := NewAssetService(repos.Asset, repos.User, repos.Config, repos.Activity)
	taskPlanSvc := NewTaskPlanService(repos.TaskPlan, repos.User, repos.Activity, loc)

	return &Services{
		Config:        configSvc,
		Auth:          NewAuthService(repos.User, repos.Token, repos.Activity, rdb, cfg.JWT),
		User:          NewUserService(repos.User),
		Asset:         assetSvc,
		AssetExcel:    NewAssetExcelService(assetSvc, repos.Asset, repos.Config, loc),
		Plan:          NewMaintenancePlanService(repos.DB(), repos.Plan, repos.Asset, repos.User),
		ShiftRecord:   recordSvc,
		RecordExcel:   NewRecordExcelService(recordSvc, repos.ShiftRecord, repos.Config, repos.Activity, loc, logger),
		TaskPlan:      taskPlanSvc,
		TaskPlanExcel: NewTaskPlanExcelService(taskPlanSvc, repos.TaskPlan, repos.Config, loc),
		Manual:        NewManualService(repos.Manual, store),
		Case:          NewCaseService(repos.Case, store),
		Media:         NewMediaService(store),
		Activity:      NewActivityService(repos.Activity, rdb, loc),
		Dashboard:     NewDashboardService(repos, rdb, loc),
		Cleanup:       NewCleanupService(repos.Token, repos.Activity, logger),
	}
}

func newID() string {
	return uuid.New().String()[:32]
}

// applyUpdate 把更新请求中非空字段拷贝到实体
func applyUpdate(dst, src interface{}) error {
	if err := copier.CopyWithOption(dst, src, copier.Option{IgnoreEmpty: true}); err != nil {
		return fmt.Errorf("apply update: %w", err)
	}
	return nil
}

// checkAccess 跨组织的数据视为不存在，非管理员只能操作自己创建的数据
func checkAccess(scope repository.Scope, orgID, ownerID string) error {
	if scope.OrgID != "" && orgID != scope.OrgID {
		return ErrNotFound
	}
	if !scope.Admin && ownerID != scope.UserID {
		return newError(ErrForbidden, "无权操作他人创建的数据")
	}
	return nil
}

// checkQuota 组织配额检查，配额为0或组织不存在时不限制
func checkQuota(ctx context.Context, users *repository.UserRepository, orgID, what string,
	limit func(*entity.Organization) int, count func() (int64, error)) error {
	if orgID == "" {
		return nil
	}
	org, err := users.FindOrganization(ctx, orgID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("查询组织失败: %w", err)
	}
	quota := limit(org)
	if quota <= 0 {
		return nil
	}
	n, err := count()
	if err != nil {
		return fmt.Errorf("统计%s数量失败: %w", what, err)
	}
	if n >= int64(quota) {
		return newError(ErrQuotaExceeded, "%s数量已达组织上限 %d", what, quota)
	}
	return nil
}

func inList(v string, list []string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// nilIfEmpty 空串外键按未设置处理
func nilIfEmpty(p *string) *string {
	if p == nil || strings.TrimSpace(*p) == "" {
		return nil
	}
	return p
}

const searchKeyMaxLen = 512

// searchKey 生成拼音检索键：全拼与首字母，小写
func searchKey(parts ...string) string {
	args := pinyin.NewArgs()
	var full, initials strings.Builder
	for _, part := range parts {
		for _, py := range pinyin.LazyPinyin(part, args) {
			full.WriteString(py)
			if py != "" {
				initials.WriteByte(py[0])
			}
		}
		full.WriteByte(' ')
	}
	key := strings.ToLower(strings.TrimSpace(full.String()) + " " + initials.String())
	if len(key) > searchKeyMaxLen {
		key = key[:searchKeyMaxLen]
	}
	return key
}

// startOfDay 当地时区的零点
func startOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
