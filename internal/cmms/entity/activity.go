package entity

import (
	"time"

	"gorm.io/datatypes"
)

// 用户活动类型
const (
	ActivityLogin          = "login"
	ActivityLogout         = "logout"
	ActivityCreateAsset    = "create_asset"
	ActivityEditAsset      = "edit_asset"
	ActivityCreateRecord   = "create_maintenance"
	ActivityEditRecord     = "edit_maintenance"
	ActivityCreateTaskPlan = "create_task_plan"
	ActivityEditTaskPlan   = "edit_task_plan"
	ActivityViewDashboard  = "view_dashboard"
	ActivityOther          = "other"
)

// ActivityTypeLabels 活动类型显示名
var ActivityTypeLabels = map[string]string{
	ActivityLogin:          "登录",
	ActivityLogout:         "登出",
	ActivityCreateAsset:    "创建资产",
	ActivityEditAsset:      "编辑资产",
	ActivityCreateRecord:   "创建维护记录",
	ActivityEditRecord:     "编辑维护记录",
	ActivityCreateTaskPlan: "创建任务计划",
	ActivityEditTaskPlan:   "编辑任务计划",
	ActivityViewDashboard:  "查看仪表板",
	ActivityOther:          "其他",
}

// UserActivity 用户活动日志
type UserActivity struct {
	ID           string            `json:"id" gorm:"primaryKey;size:32"`
	UserID       string            `json:"user_id" gorm:"size:32;not null;index"`
	ActivityType string            `json:"activity_type" gorm:"size:32;not null"`
	Description  string            `json:"description" gorm:"type:text"`
	IPAddress    string            `json:"ip_address" gorm:"size:64"`
	UserAgent    string            `json:"user_agent" gorm:"type:text"`
	Metadata     datatypes.JSONMap `json:"metadata"`
	CreatedAt    time.Time         `json:"created_at" gorm:"index"`

	User *User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

func (UserActivity) TableName() string {
	return "user_activities"
}

// VisitTrend 每日访问量
type VisitTrend struct {
	ID             string    `json:"id" gorm:"primaryKey;size:32"`
	Date           string    `json:"date" gorm:"size:10;not null;uniqueIndex"`
	VisitCount     int       `json:"visit_count" gorm:"not null;default:0"`
	UniqueVisitors int       `json:"unique_visitors" gorm:"not null;default:0"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (VisitTrend) TableName() string {
	return "weekly_visit_trends"
}

// RevokedToken 已注销的访问令牌
type RevokedToken struct {
	ID        string    `json:"id" gorm:"primaryKey;size:32"`
	JTI       string    `json:"jti" gorm:"column:jti;size:64;not null;uniqueIndex"`
	UserID    string    `json:"user_id" gorm:"size:32"`
	ExpiresAt time.Time `json:"expires_at" gorm:"index"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
}

func (RevokedToken) TableName() string {
	return "revoked_tokens"
}

// AllModels 需要迁移的全部实体
func AllModels() []interface{} {
	return []interface{}{
		&Organization{},
		&PlantPhase{},
		&ProductionLine{},
		&Process{},
		&ShiftType{},
		&User{},
		&Asset{},
		&MaintenancePlan{},
		&ShiftMaintenanceRecord{},
		&TaskPlan{},
		&MaintenanceManual{},
		&MaintenanceStep{},
		&MaintenanceCase{},
		&UserActivity{},
		&VisitTrend{},
		&RevokedToken{},
	}
}
