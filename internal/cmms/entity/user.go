package entity

import (
	"time"
)

// 用户类型
const (
	UserTypeAdmin    = "Admin"
	UserTypeOperator = "Operator"
)

// 权限代码，由用户档案的开关推导
const (
	PermAssetCreate  = "asset:create"
	PermAssetUpdate  = "asset:update"
	PermAssetDelete  = "asset:delete"
	PermRecordCreate = "record:create"
	PermRecordUpdate = "record:update"
	PermRecordDelete = "record:delete"
	PermManualCreate = "manual:create"
	PermManualUpdate = "manual:update"
	PermManualDelete = "manual:delete"
	PermCaseCreate   = "case:create"
	PermCaseUpdate   = "case:update"
	PermCaseDelete   = "case:delete"
)

// Organization 组织（租户），配额为0表示不限制
type Organization struct {
	ID              string    `json:"id" gorm:"primaryKey;size:32"`
	Name            string    `json:"name" gorm:"size:128;not null"`
	Subdomain       string    `json:"subdomain" gorm:"size:64;not null;uniqueIndex"`
	MaxAssets       int       `json:"max_assets" gorm:"not null;default:0"`
	MaxUsers        int       `json:"max_users" gorm:"not null;default:0"`
	MaxActiveOrders int       `json:"max_active_orders" gorm:"not null;default:0"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (Organization) TableName() string {
	return "organizations"
}

// User 用户及其档案
type User struct {
	ID             string     `json:"id" gorm:"primaryKey;size:32"`
	Username       string     `json:"username" gorm:"size:64;not null;uniqueIndex"`
	PasswordHash   string     `json:"-" gorm:"size:128;not null"`
	Name           string     `json:"name" gorm:"size:64"`
	Email          string     `json:"email" gorm:"size:128"`
	OrganizationID string     `json:"organization_id" gorm:"size:32;not null;index"`
	Type           string     `json:"type" gorm:"size:16;not null;default:Operator"`
	PhaseID        *string    `json:"phase_id" gorm:"size:32"`
	ShiftTypeID    *string    `json:"shift_type_id" gorm:"size:32"`
	Status         string     `json:"status" gorm:"size:16;not null;default:active"`
	LastLoginAt    *time.Time `json:"last_login_at"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`

	CanAddAssets              bool `json:"can_add_assets" gorm:"not null;default:false"`
	CanEditAssets             bool `json:"can_edit_assets" gorm:"not null;default:false"`
	CanDeleteAssets           bool `json:"can_delete_assets" gorm:"not null;default:false"`
	CanAddMaintenanceRecords  bool `json:"can_add_maintenance_records" gorm:"not null;default:true"`
	CanEditMaintenanceRecords bool `json:"can_edit_maintenance_records" gorm:"not null;default:true"`
	CanDeleteMaintenanceRecs  bool `json:"can_delete_maintenance_records" gorm:"column:can_delete_maintenance_records;not null;default:false"`
	CanAddManuals             bool `json:"can_add_manuals" gorm:"not null;default:false"`
	CanEditManuals            bool `json:"can_edit_manuals" gorm:"not null;default:false"`
	CanDeleteManuals          bool `json:"can_delete_manuals" gorm:"not null;default:false"`
	CanAddCases               bool `json:"can_add_cases" gorm:"not null;default:true"`
	CanEditCases              bool `json:"can_edit_cases" gorm:"not null;default:false"`
	CanDeleteCases            bool `json:"can_delete_cases" gorm:"not null;default:false"`

	Organization *Organization `json:"organization,omitempty" gorm:"foreignKey:OrganizationID"`
	Phase        *PlantPhase   `json:"phase,omitempty" gorm:"foreignKey:PhaseID"`
	ShiftType    *ShiftType    `json:"shift_type,omitempty" gorm:"foreignKey:ShiftTypeID"`
}

func (User) TableName() string {
	return "users"
}

// IsAdmin 是否组织管理员
func (u *User) IsAdmin() bool {
	return u.Type == UserTypeAdmin
}

// PermissionCodes 档案开关转为权限代码，管理员拥有全部权限
func (u *User) PermissionCodes() []string {
	if u.IsAdmin() {
		return []string{"*"}
	}
	flags := []struct {
		on   bool
		code string
	}{
		{u.CanAddAssets, PermAssetCreate},
		{u.CanEditAssets, PermAssetUpdate},
		{u.CanDeleteAssets, PermAssetDelete},
		{u.CanAddMaintenanceRecords, PermRecordCreate},
		{u.CanEditMaintenanceRecords, PermRecordUpdate},
		{u.CanDeleteMaintenanceRecs, PermRecordDelete},
		{u.CanAddManuals, PermManualCreate},
		{u.CanEditManuals, PermManualUpdate},
		{u.CanDeleteManuals, PermManualDelete},
		{u.CanAddCases, PermCaseCreate},
		{u.CanEditCases, PermCaseUpdate},
		{u.CanDeleteCases, PermCaseDelete},
	}
	perms := make([]string, 0, len(flags))
	for _, f := range flags {
		if f.on {
			perms = append(perms, f.code)
		}
	}
	return perms
}
