package repository

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

var (
	ErrNotFound = errors.New("record not found")
)

// Scope 列表查询的数据范围：管理员看组织内全部，其他用户只看自己创建的
type Scope struct {
	OrgID  string
	UserID string
	Admin  bool
}

// apply 按组织和创建人过滤，ownerCol 为空时只按组织过滤
func (s Scope) apply(query *gorm.DB, ownerCol string) *gorm.DB {
	if s.OrgID != "" {
		query = query.Where("organization_id = ?", s.OrgID)
	}
	if !s.Admin && ownerCol != "" {
		query = query.Where(ownerCol+" = ?", s.UserID)
	}
	return query
}

// likeArg 生成大小写不敏感的模糊匹配参数
func likeArg(s string) string {
	return "%" + strings.ToLower(strings.TrimSpace(s)) + "%"
}

// paginate 统计总数后分页查询
func paginate(query *gorm.DB, page, pageSize int, order string, dest interface{}) (int64, error) {
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return 0, err
	}
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * pageSize
	err := query.
		Order(order).
		Offset(offset).
		Limit(pageSize).
		Find(dest).Error
	return total, err
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// Repositories 仓库集合
type Repositories struct {
	db *gorm.DB

	Config      *ConfigRepository
	User        *UserRepository
	Asset       *AssetRepository
	Plan        *PlanRepository
	ShiftRecord *ShiftRecordRepository
	TaskPlan    *TaskPlanRepository
	Manual      *ManualRepository
	Case        *CaseRepository
	Activity    *ActivityRepository
	Token       *TokenRepository
}

// NewRepositories 创建仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		db:          db,
		Config:      NewConfigRepository(db),
		User:        NewUserRepository(db),
		Asset:       NewAssetRepository(db),
		Plan:        NewPlanRepository(db),
		ShiftRecord: NewShiftRecordRepository(db),
		TaskPlan:    NewTaskPlanRepository(db),
		Manual:      NewManualRepository(db),
		Case:        NewCaseRepository(db),
		Activity:    NewActivityRepository(db),
		Token:       NewTokenRepository(db),
	}
}

// DB 底层连接，用于开启事务
func (r *Repositories) DB() *gorm.DB {
	return r.db
}
