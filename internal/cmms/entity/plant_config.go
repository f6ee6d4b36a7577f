package entity

import "time"

// 期数、班次类型的标准代码
const (
	PhaseOneCode = "phase_1"
	PhaseTwoCode = "phase_2"

	ShiftLongDay  = "long_day_shift"
	ShiftRotating = "rotating_shift"
)

// PlantPhase 工厂期数配置
type PlantPhase struct {
	ID          string    `json:"id" gorm:"primaryKey;size:32"`
	Code        string    `json:"code" gorm:"size:32;not null;uniqueIndex"`
	Name        string    `json:"name" gorm:"size:64;not null"`
	Description string    `json:"description" gorm:"type:text"`
	IsActive    bool      `json:"is_active" gorm:"not null;default:true"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (PlantPhase) TableName() string {
	return "plant_phase_config"
}

// ProductionLine 产线配置，代码在同一期数内唯一
type ProductionLine struct {
	ID          string    `json:"id" gorm:"primaryKey;size:32"`
	Code        string    `json:"code" gorm:"size:32;not null;uniqueIndex:uk_line_code_phase"`
	Name        string    `json:"name" gorm:"size:64;not null"`
	PhaseID     string    `json:"phase_id" gorm:"size:32;not null;uniqueIndex:uk_line_code_phase"`
	Description string    `json:"description" gorm:"type:text"`
	IsActive    bool      `json:"is_active" gorm:"not null;default:true"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Phase *PlantPhase `json:"phase,omitempty" gorm:"foreignKey:PhaseID;constraint:OnDelete:RESTRICT"`
}

func (ProductionLine) TableName() string {
	return "production_line_config"
}

// Process 工序配置
type Process struct {
	ID          string    `json:"id" gorm:"primaryKey;size:32"`
	Code        string    `json:"code" gorm:"size:32;not null;uniqueIndex"`
	Name        string    `json:"name" gorm:"size:64;not null"`
	Description string    `json:"description" gorm:"type:text"`
	IsActive    bool      `json:"is_active" gorm:"not null;default:true"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Process) TableName() string {
	return "process_config"
}

// ShiftType 班次类型配置
type ShiftType struct {
	ID          string    `json:"id" gorm:"primaryKey;size:32"`
	Code        string    `json:"code" gorm:"size:32;not null;uniqueIndex"`
	Name        string    `json:"name" gorm:"size:64;not null"`
	Description string    `json:"description" gorm:"type:text"`
	IsActive    bool      `json:"is_active" gorm:"not null;default:true"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (ShiftType) TableName() string {
	return "shift_type_config"
}
