package entity

import (
	"strconv"
	"time"

	"gorm.io/gorm"
)

// 变更原因
const (
	ChangeReasonMaintenance = "maintenance"
	ChangeReasonRepair      = "repair"
	ChangeReasonTechMod     = "technical_modification"
)

// ChangeReasonLabels 变更原因中文标签
var ChangeReasonLabels = map[string]string{
	ChangeReasonMaintenance: "维保",
	ChangeReasonRepair:      "维修",
	ChangeReasonTechMod:     "技改",
}

// ChangeReasonLabel 未知原因原样返回
func ChangeReasonLabel(reason string) string {
	if label, ok := ChangeReasonLabels[reason]; ok {
		return label
	}
	return reason
}

// ShiftMaintenanceRecord 班次维护记录
type ShiftMaintenanceRecord struct {
	ID               string     `json:"id" gorm:"primaryKey;size:32"`
	SerialNumber     string     `json:"serial_number" gorm:"size:32;not null;uniqueIndex"`
	Month            string     `json:"month" gorm:"size:8"`
	PhaseID          string     `json:"phase_id" gorm:"size:32;not null;index"`
	ShiftTypeID      string     `json:"shift_type_id" gorm:"size:32;not null;index"`
	ProductionLine   string     `json:"production_line" gorm:"size:100"`
	Process          string     `json:"process" gorm:"size:100"`
	EquipmentName    string     `json:"equipment_name" gorm:"size:200"`
	EquipmentNumber  string     `json:"equipment_number" gorm:"size:100"`
	EquipmentPart    string     `json:"equipment_part" gorm:"size:200"`
	ChangeReason     string     `json:"change_reason" gorm:"size:32"`
	BeforeChange     string     `json:"before_change" gorm:"type:text"`
	AfterChange      string     `json:"after_change" gorm:"type:text"`
	PartsConsumables string     `json:"parts_consumables" gorm:"type:text"`
	StartDatetime    *time.Time `json:"start_datetime" gorm:"index"`
	EndDatetime      *time.Time `json:"end_datetime" gorm:"index"`
	Duration         *float64   `json:"duration"`
	Implementer      string     `json:"implementer" gorm:"size:100"`
	ConfirmPerson    string     `json:"confirm_person" gorm:"size:100"`
	Acceptor         string     `json:"acceptor" gorm:"size:100"`
	Remarks          string     `json:"remarks" gorm:"type:text"`
	OrganizationID   string     `json:"organization_id" gorm:"size:32;index"`
	CreatedBy        string     `json:"created_by" gorm:"size:32;index"`
	AssetID          *string    `json:"asset_id" gorm:"size:32"`
	CreatedAt        time.Time  `json:"created_at" gorm:"index"`
	UpdatedAt        time.Time  `json:"updated_at"`

	Phase     *PlantPhase `json:"phase,omitempty" gorm:"foreignKey:PhaseID;constraint:OnDelete:RESTRICT"`
	ShiftType *ShiftType  `json:"shift_type,omitempty" gorm:"foreignKey:ShiftTypeID;constraint:OnDelete:RESTRICT"`
}

func (ShiftMaintenanceRecord) TableName() string {
	return "shift_maintenance_records"
}

// Prepare 保存前的派生字段：起止时间统一存 UTC，月份为空时取当前月份，起止时间齐全时重算耗时（小时）
func (r *ShiftMaintenanceRecord) Prepare(now time.Time) {
	r.StartDatetime = utcPtr(r.StartDatetime)
	r.EndDatetime = utcPtr(r.EndDatetime)
	if r.Month == "" {
		r.Month = strconv.Itoa(int(now.Month()))
	}
	if r.StartDatetime != nil && r.EndDatetime != nil {
		hours := r.EndDatetime.Sub(*r.StartDatetime).Hours()
		r.Duration = &hours
	}
}

// BeforeSave 每次保存都重算，覆盖调用方传入的耗时
func (r *ShiftMaintenanceRecord) BeforeSave(tx *gorm.DB) error {
	r.Prepare(time.Now())
	return nil
}

// utcPtr sqlite 按文本比较时间，入库前统一时区
func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
