package entity

import (
	"time"

	"gorm.io/datatypes"
)

// MaintenanceManual 维护手册
type MaintenanceManual struct {
	ID               string    `json:"id" gorm:"primaryKey;size:32"`
	OrganizationID   string    `json:"organization_id" gorm:"size:32;not null;index"`
	CreatedBy        string    `json:"created_by" gorm:"size:32"`
	Title            string    `json:"title" gorm:"size:200;not null"`
	Description      string    `json:"description" gorm:"type:text"`
	EquipmentName    string    `json:"equipment_name" gorm:"size:200"`
	PhaseID          *string   `json:"phase_id" gorm:"size:32"`
	ProcessID        *string   `json:"process_id" gorm:"size:32"`
	ProductionLineID *string   `json:"production_line_id" gorm:"size:32"`
	SearchKey        string    `json:"-" gorm:"size:512"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`

	Steps          []MaintenanceStep `json:"steps,omitempty" gorm:"foreignKey:ManualID;constraint:OnDelete:CASCADE"`
	Phase          *PlantPhase       `json:"phase,omitempty" gorm:"foreignKey:PhaseID"`
	Process        *Process          `json:"process,omitempty" gorm:"foreignKey:ProcessID"`
	ProductionLine *ProductionLine   `json:"production_line,omitempty" gorm:"foreignKey:ProductionLineID"`
}

func (MaintenanceManual) TableName() string {
	return "maintenance_manuals"
}

// MaintenanceStep 手册步骤，序号在手册内唯一
type MaintenanceStep struct {
	ID          string    `json:"id" gorm:"primaryKey;size:32"`
	ManualID    string    `json:"manual_id" gorm:"size:32;not null;uniqueIndex:uk_manual_step"`
	StepNumber  int       `json:"step_number" gorm:"not null;uniqueIndex:uk_manual_step"`
	Title       string    `json:"title" gorm:"size:200;not null"`
	Description string    `json:"description" gorm:"type:text"`
	ImageKey    string    `json:"image_key" gorm:"size:255"`
	VideoKey    string    `json:"video_key" gorm:"size:255"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (MaintenanceStep) TableName() string {
	return "maintenance_steps"
}

// MaintenanceCase 故障案例
type MaintenanceCase struct {
	ID                  string                      `json:"id" gorm:"primaryKey;size:32"`
	OrganizationID      string                      `json:"organization_id" gorm:"size:32;not null;index"`
	CreatedBy           string                      `json:"created_by" gorm:"size:32"`
	ProcessID           *string                     `json:"process_id" gorm:"size:32"`
	EquipmentName       string                      `json:"equipment_name" gorm:"size:200;not null"`
	FaultReason         string                      `json:"fault_reason" gorm:"type:text"`
	FaultPhenomenon     string                      `json:"fault_phenomenon" gorm:"type:text"`
	FaultHandlingMethod string                      `json:"fault_handling_method" gorm:"type:text"`
	ImageKeys           datatypes.JSONSlice[string] `json:"image_keys"`
	VideoKeys           datatypes.JSONSlice[string] `json:"video_keys"`
	SearchKey           string                      `json:"-" gorm:"size:512"`
	CreatedAt           time.Time                   `json:"created_at"`
	UpdatedAt           time.Time                   `json:"updated_at"`

	Process *Process `json:"process,omitempty" gorm:"foreignKey:ProcessID"`
}

func (MaintenanceCase) TableName() string {
	return "maintenance_cases"
}
