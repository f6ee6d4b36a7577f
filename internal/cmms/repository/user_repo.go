package repository

import (
	"context"
	"time"

	"github.com/jionychiow/CMSS-SOFT/internal/cmms/entity"
	"gorm.io/gorm"
)

// UserRepository 用户与组织仓库
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*entity.User, error) {
	var user entity.User
	err := r.db.WithContext(ctx).
		Preload("Organization").
		Preload("Phase").
		Preload("ShiftType").
		Where("id = ?", id).
		First(&user).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// FindByUsername 登录时按用户名查找
func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*entity.User, error) {
	var user entity.User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// FindByUsernames 批量按用户名查找，限定组织
func (r *UserRepository) FindByUsernames(ctx context.Context, orgID string, usernames []string) ([]entity.User, error) {
	var users []entity.User
	if len(usernames) == 0 {
		return users, nil
	}
	err := r.db.WithContext(ctx).
		Where("organization_id = ? AND username IN ?", orgID, usernames).
		Find(&users).Error
	return users, err
}

// FindByIDs 批量按ID查找，限定组织
func (r *UserRepository) FindByIDs(ctx context.Context, orgID string, ids []string) ([]entity.User, error) {
	var users []entity.User
	if len(ids) == 0 {
		return users, nil
	}
	err := r.db.WithContext(ctx).
		Where("organization_id = ? AND id IN ?", orgID, ids).
		Find(&users).Error
	return users, err
}

// FindAll 组织内用户列表
func (r *UserRepository) FindAll(ctx context.Context, orgID string, page, pageSize int, search string) ([]entity.User, int64, error) {
	var items []entity.User
	query := r.db.WithContext(ctx).Model(&entity.User{}).Where("organization_id = ?", orgID)
	if search != "" {
		query = query.Where("LOWER(username) LIKE ? OR LOWER(name) LIKE ?", likeArg(search), likeArg(search))
	}
	total, err := paginate(query, page, pageSize, "created_at DESC", &items)
	return items, total, err
}

func (r *UserRepository) Create(ctx context.Context, user *entity.User) error {
	return r.db.WithContext(ctx).Omit("Organization", "Phase", "ShiftType").Create(user).Error
}

func (r *UserRepository) Update(ctx context.Context, user *entity.User) error {
	return r.db.WithContext(ctx).Omit("Organization", "Phase", "ShiftType").Save(user).Error
}

// TouchLogin 更新最后登录时间
func (r *UserRepository) TouchLogin(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&entity.User{}).Where("id = ?", id).Update("last_login_at", at).Error
}

// CountByOrg 组织内用户数量
func (r *UserRepository) CountByOrg(ctx context.Context, orgID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&entity.User{}).Where("organization_id = ?", orgID).Count(&n).Error
	return n, err
}

// FindOrganization 查找组织
func (r *UserRepository) FindOrganization(ctx context.Context, id string) (*entity.Organization, error) {
	var org entity.Organization
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&org).Error; err != nil {
		return nil, notFound(err)
	}
	return &org, nil
}

// FindOrganizationBySubdomain 按子域名查找组织
func (r *UserRepository) FindOrganizationBySubdomain(ctx context.Context, subdomain string) (*entity.Organization, error) {
	var org entity.Organization
	if err := r.db.WithContext(ctx).Where("subdomain = ?", subdomain).First(&org).Error; err != nil {
		return nil, notFound(err)
	}
	return &org, nil
}

func (r *UserRepository) CreateOrganization(ctx context.Context, org *entity.Organization) error {
	return r.db.WithContext(ctx).Create(org).Error
}
