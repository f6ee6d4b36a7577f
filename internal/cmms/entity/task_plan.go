package entity

import (
	"time"

	"gorm.io/gorm"
)

// 任务计划状态
const (
	TaskStatusPending    = "pending"
	TaskStatusInProgress = "in_progress"
	TaskStatusCompleted  = "completed"
	TaskStatusCancelled  = "cancelled"
)

// TaskStatusLabels 任务状态中文标签
var TaskStatusLabels = map[string]string{
	TaskStatusPending:    "待开始",
	TaskStatusInProgress: "进行中",
	TaskStatusCompleted:  "已完成",
	TaskStatusCancelled:  "已取消",
}

// TaskPlan 每日任务计划
type TaskPlan struct {
	ID                 string     `json:"id" gorm:"primaryKey;size:32"`
	OrganizationID     string     `json:"organization_id" gorm:"size:32;not null;index"`
	CreatedBy          string     `json:"created_by" gorm:"size:32;index"`
	Date               time.Time  `json:"date" gorm:"type:date;not null;index"`
	TaskDescription    string     `json:"task_description" gorm:"type:text;not null"`
	PlannedPeopleCount int        `json:"planned_people_count" gorm:"not null;default:0"`
	Status             string     `json:"status" gorm:"size:16;not null;default:pending"`
	Progress           float64    `json:"progress" gorm:"not null;default:0"`
	CompletedAt        *time.Time `json:"completed_at"`
	PhaseID            *string    `json:"phase_id" gorm:"size:32"`
	ProcessID          *string    `json:"process_id" gorm:"size:32"`
	ProductionLineID   *string    `json:"production_line_id" gorm:"size:32"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`

	AssignedUsers  []User          `json:"assigned_users" gorm:"many2many:task_plan_assignees;"`
	Phase          *PlantPhase     `json:"phase,omitempty" gorm:"foreignKey:PhaseID"`
	Process        *Process        `json:"process,omitempty" gorm:"foreignKey:ProcessID"`
	ProductionLine *ProductionLine `json:"production_line,omitempty" gorm:"foreignKey:ProductionLineID"`
}

func (TaskPlan) TableName() string {
	return "task_plans"
}

// Prepare 计划人数取实施人数量；状态进入完成时记录完成时间，离开完成时清空
func (t *TaskPlan) Prepare(now time.Time) {
	t.PlannedPeopleCount = len(t.AssignedUsers)
	switch {
	case t.Status == TaskStatusCompleted && t.CompletedAt == nil:
		t.CompletedAt = &now
	case t.Status != TaskStatusCompleted:
		t.CompletedAt = nil
	}
}

// BeforeSave 关联用户已加载时保持人数一致
func (t *TaskPlan) BeforeSave(tx *gorm.DB) error {
	t.Prepare(time.Now())
	return nil
}
