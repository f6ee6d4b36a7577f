package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// 资产状态
const (
	AssetStatusActive           = "Active"
	AssetStatusInactive         = "Inactive"
	AssetStatusUnderMaintenance = "Under Maintenance"
	AssetStatusRetired          = "Retired"
)

// AssetStatuses 合法资产状态
var AssetStatuses = []string{
	AssetStatusActive, AssetStatusInactive, AssetStatusUnderMaintenance, AssetStatusRetired,
}

// AssetTypes 合法资产类型
var AssetTypes = []string{"Vehicle", "Equipment", "Building", "Furniture", "IT", "Other"}

// AssetStates 设备运行事件标签
var AssetStates = []string{
	"on", "off", "run", "stop",
	"out of order", "resume out of order",
	"failure", "resume failure",
	"break in", "resume break in",
	"break out", "resume break out",
	"fault", "resume fault",
	"report",
}

// Asset 设备资产
type Asset struct {
	ID                     string          `json:"id" gorm:"primaryKey;size:32"`
	UUID                   string          `json:"uuid" gorm:"column:uuid;size:36;not null;uniqueIndex"`
	OrganizationID         string          `json:"organization_id" gorm:"size:32;not null;index"`
	CreatedBy              string          `json:"created_by" gorm:"size:32;index"`
	Name                   string          `json:"name" gorm:"size:200;not null"`
	Ref                    string          `json:"ref" gorm:"size:100;index"`
	AssetType              string          `json:"asset_type" gorm:"size:32;not null;default:Equipment"`
	Location               string          `json:"location" gorm:"size:200"`
	SerialNumber           string          `json:"serial_number" gorm:"size:100"`
	PurchaseDate           *time.Time      `json:"purchase_date"`
	WarrantyExpirationDate *time.Time      `json:"warranty_expiration_date"`
	PhaseID                *string         `json:"phase_id" gorm:"size:32;index"`
	ProcessID              *string         `json:"process_id" gorm:"size:32"`
	ProductionLineID       *string         `json:"production_line_id" gorm:"size:32"`
	Cost                   decimal.Decimal `json:"cost" gorm:"type:decimal(10,2);not null;default:0"`
	CurrentValue           decimal.Decimal `json:"current_value" gorm:"type:decimal(10,2);not null;default:0"`
	Status                 string          `json:"status" gorm:"size:32;not null;default:Active"`
	State                  string          `json:"state" gorm:"size:32"`
	SearchKey              string          `json:"-" gorm:"size:512"`
	CreatedAt              time.Time       `json:"created_at"`
	UpdatedAt              time.Time       `json:"updated_at"`

	Phase          *PlantPhase     `json:"phase,omitempty" gorm:"foreignKey:PhaseID;constraint:OnDelete:RESTRICT"`
	Process        *Process        `json:"process,omitempty" gorm:"foreignKey:ProcessID"`
	ProductionLine *ProductionLine `json:"production_line,omitempty" gorm:"foreignKey:ProductionLineID"`
}

func (Asset) TableName() string {
	return "assets"
}

// IsTerminal 停用、报废的资产不参与状态同步
func (a *Asset) IsTerminal() bool {
	return a.Status == AssetStatusInactive || a.Status == AssetStatusRetired
}
