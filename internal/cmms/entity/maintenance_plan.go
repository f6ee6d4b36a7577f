package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// 维护计划状态
const (
	PlanStatusPending    = "Pending"
	PlanStatusInProgress = "In Progress"
	PlanStatusCompleted  = "Completed"
	PlanStatusCancelled  = "Cancelled"
)

// MaintenancePlan 维护计划（工单）
type MaintenancePlan struct {
	ID                  string          `json:"id" gorm:"primaryKey;size:32"`
	OrganizationID      string          `json:"organization_id" gorm:"size:32;not null;index"`
	CreatedBy           string          `json:"created_by" gorm:"size:32;index"`
	AssignedTo          *string         `json:"assigned_to" gorm:"size:32"`
	AssetID             *string         `json:"asset_id" gorm:"size:32;index"`
	Name                string          `json:"name" gorm:"size:200;not null"`
	Ref                 string          `json:"ref" gorm:"size:100"`
	Description         string          `json:"description" gorm:"type:text"`
	PlannedStartingDate *time.Time      `json:"planned_starting_date"`
	PlannedFinished     *time.Time      `json:"planned_finished"`
	StartedAt           *time.Time      `json:"started_at"`
	FinishedAt          *time.Time      `json:"finished_at"`
	Type                string          `json:"type" gorm:"size:16;not null;default:Planned"`
	Priority            string          `json:"priority" gorm:"size:16;not null;default:Medium"`
	Status              string          `json:"status" gorm:"size:16;not null;default:Pending"`
	EstimatedCost       decimal.Decimal `json:"estimated_cost" gorm:"type:decimal(10,2);not null;default:0"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`

	Asset *Asset `json:"asset,omitempty" gorm:"foreignKey:AssetID"`
}

func (MaintenancePlan) TableName() string {
	return "maintenance_plans"
}

// IsOpen 未完成、未取消的计划计入组织的进行中工单配额
func (p *MaintenancePlan) IsOpen() bool {
	return p.Status == PlanStatusPending || p.Status == PlanStatusInProgress
}
