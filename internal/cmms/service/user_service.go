package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jionychiow/CMSS-SOFT/internal/cmms/entity"
	"github.com/jionychiow/CMSS-SOFT/internal/cmms/repository"
	"gorm.io/gorm"
)

// UserService 组织内用户管理
type UserService struct {
	repo *repository.UserRepository
}

func NewUserService(repo *repository.UserRepository) *UserService {
	return &UserService{repo: repo}
}

// CreateUserRequest 创建操作员请求
type CreateUserRequest struct {
	Username    string  `json:"username" binding:"required"`
	Password    string  `json:"password" binding:"required,min=6"`
	Name        string  `json:"name"`
	Email       string  `json:"email"`
	Type        string  `json:"type"`
	PhaseID     *string `json:"phase_id"`
	ShiftTypeID *string `json:"shift_type_id"`
}

// UpdateUserRequest 更新档案，权限开关为 nil 时不修改
type UpdateUserRequest struct {
	Name        *string `json:"name"`
	Email       *string `json:"email"`
	Status      *string `json:"status"`
	Password    *string `json:"password"`
	PhaseID     *string `json:"phase_id"`
	ShiftTypeID *string `json:"shift_type_id"`

	CanAddAssets              *bool `json:"can_add_assets"`
	CanEditAssets             *bool `json:"can_edit_assets"`
	CanDeleteAssets           *bool `json:"can_delete_assets"`
	CanAddMaintenanceRecords  *bool `json:"can_add_maintenance_records"`
	CanEditMaintenanceRecords *bool `json:"can_edit_maintenance_records"`
	CanDeleteMaintenanceRecs  *bool `json:"can_delete_maintenance_records"`
	CanAddManuals             *bool `json:"can_add_manuals"`
	CanEditManuals            *bool `json:"can_edit_manuals"`
	CanDeleteManuals          *bool `json:"can_delete_manuals"`
	CanAddCases               *bool `json:"can_add_cases"`
	CanEditCases              *bool `json:"can_edit_cases"`
	CanDeleteCases            *bool `json:"can_delete_cases"`
}

func (s *UserService) List(ctx context.Context, orgID string, page, pageSize int, search string) ([]entity.User, int64, error) {
	items, total, err := s.repo.FindAll(ctx, orgID, page, pageSize, search)
	if err != nil {
		return nil, 0, fmt.Errorf("查询用户失败: %w", err)
	}
	return items, total, nil
}

// Create 创建用户，受组织用户配额限制
func (s *UserService) Create(ctx context.Context, orgID string, req *CreateUserRequest) (*entity.User, error) {
	userType := defaultString(req.Type, entity.UserTypeOperator)
	if userType != entity.UserTypeAdmin && userType != entity.UserTypeOperator {
		return nil, newError(ErrInvalidInput, "用户类型无效: %s", req.Type)
	}
	err := checkQuota(ctx, s.repo, orgID, "用户",
		func(org *entity.Organization) int { return org.MaxUsers },
		func() (int64, error) { return s.repo.CountByOrg(ctx, orgID) })
	if err != nil {
		return nil, err
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	user := &entity.User{
		ID:             newID(),
		Username:       req.Username,
		PasswordHash:   hash,
		Name:           req.Name,
		Email:          req.Email,
		OrganizationID: orgID,
		Type:           userType,
		PhaseID:        nilIfEmpty(req.PhaseID),
		ShiftTypeID:    nilIfEmpty(req.ShiftTypeID),
		Status:         "active",

		CanAddMaintenanceRecords:  true,
		CanEditMaintenanceRecords: true,
		CanAddCases:               true,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, newError(ErrConflict, "用户名已存在: %s", req.Username)
		}
		return nil, fmt.Errorf("创建用户失败: %w", err)
	}
	return s.repo.FindByID(ctx, user.ID)
}

func (s *UserService) Update(ctx context.Context, orgID, id string, req *UpdateUserRequest) (*entity.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if orgID != "" && user.OrganizationID != orgID {
		return nil, ErrNotFound
	}

	if req.Status != nil {
		if *req.Status != "active" && *req.Status != "disabled" {
			return nil, newError(ErrInvalidInput, "用户状态无效: %s", *req.Status)
		}
		user.Status = *req.Status
	}
	if req.Password != nil {
		if len(*req.Password) < 6 {
			return nil, newError(ErrInvalidInput, "密码长度不能少于6位")
		}
		hash, err := HashPassword(*req.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}
	if req.PhaseID != nil {
		user.PhaseID = nilIfEmpty(req.PhaseID)
	}
	if req.ShiftTypeID != nil {
		user.ShiftTypeID = nilIfEmpty(req.ShiftTypeID)
	}
	setString(&user.Name, req.Name)
	setString(&user.Email, req.Email)

	setBool(&user.CanAddAssets, req.CanAddAssets)
	setBool(&user.CanEditAssets, req.CanEditAssets)
	setBool(&user.CanDeleteAssets, req.CanDeleteAssets)
	setBool(&user.CanAddMaintenanceRecords, req.CanAddMaintenanceRecords)
	setBool(&user.CanEditMaintenanceRecords, req.CanEditMaintenanceRecords)
	setBool(&user.CanDeleteMaintenanceRecs, req.CanDeleteMaintenanceRecs)
	setBool(&user.CanAddManuals, req.CanAddManuals)
	setBool(&user.CanEditManuals, req.CanEditManuals)
	setBool(&user.CanDeleteManuals, req.CanDeleteManuals)
	setBool(&user.CanAddCases, req.CanAddCases)
	setBool(&user.CanEditCases, req.CanEditCases)
	setBool(&user.CanDeleteCases, req.CanDeleteCases)

	user.Organization, user.Phase, user.ShiftType = nil, nil, nil
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("更新用户失败: %w", err)
	}
	return s.repo.FindByID(ctx, user.ID)
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
