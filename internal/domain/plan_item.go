package domain

import "time"

// ItemType 计划项目类型（决定详情的形态）
type ItemType string

const (
	ItemTypeMedication ItemType = "MEDICATION"
	ItemTypeRehab      ItemType = "REHAB"
)

// Valid 是否为已知类型
func (t ItemType) Valid() bool {
	return t == ItemTypeMedication || t == ItemTypeRehab
}

// ItemStatus 计划项目状态
type ItemStatus string

const (
	ItemStatusActive  ItemStatus = "ACTIVE"
	ItemStatusPaused  ItemStatus = "PAUSED"
	ItemStatusStopped ItemStatus = "STOPPED"
)

// Valid 是否为已知状态
func (s ItemStatus) Valid() bool {
	return s == ItemStatusActive || s == ItemStatusPaused || s == ItemStatusStopped
}

// PlanItem 计划项目领域模型（对应 care_plan_items 表）
// Detail 与 ItemType 一一对应：MEDICATION -> *MedicationDetail，REHAB -> *RehabDetail
type PlanItem struct {
	ItemID string `db:"item_id"` // UUID, PRIMARY KEY
	PlanID string `db:"plan_id"` // UUID, NOT NULL, FK to care_plans

	ItemType    ItemType   `db:"item_type"` // VARCHAR(20), NOT NULL
	Name        string     `db:"name"`
	Description string     `db:"description"`
	Status      ItemStatus `db:"status"` // VARCHAR(20), NOT NULL, DEFAULT 'ACTIVE'

	StartDate time.Time  `db:"start_date"`
	EndDate   *time.Time `db:"end_date"`

	// 类型详情（存放在 medication_item_details / rehab_item_details 表）
	Detail ItemDetail `db:"-"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// ItemDetail 计划项目详情（按 ItemType 区分的变体）
type ItemDetail interface {
	Type() ItemType
	isItemDetail()
}

// MedicationDetail 用药详情（对应 medication_item_details 表）
type MedicationDetail struct {
	DrugName      string  `db:"drug_name" json:"drug_name"`           // NOT NULL
	Dosage        string  `db:"dosage" json:"dosage"`                 // NOT NULL，如 "10mg"
	FrequencyType string  `db:"frequency_type" json:"frequency_type"` // NOT NULL，如 "BID"
	Instructions  *string `db:"instructions" json:"instructions,omitempty"`
}

func (*MedicationDetail) Type() ItemType { return ItemTypeMedication }
func (*MedicationDetail) isItemDetail()  {}

// RehabDetail 康复训练详情（对应 rehab_item_details 表）
type RehabDetail struct {
	ExerciseName     string  `db:"exercise_name" json:"exercise_name"` // NOT NULL
	ExerciseType     *string `db:"exercise_type" json:"exercise_type,omitempty"`
	GuideResourceURL *string `db:"guide_resource_url" json:"guide_resource_url,omitempty"`
}

func (*RehabDetail) Type() ItemType { return ItemTypeRehab }
func (*RehabDetail) isItemDetail()  {}

// DetailMatches 详情存在且与声明的类型一致
func (i *PlanItem) DetailMatches() bool {
	if i.Detail == nil {
		return false
	}
	switch d := i.Detail.(type) {
	case *MedicationDetail:
		return d != nil && i.ItemType == ItemTypeMedication
	case *RehabDetail:
		return d != nil && i.ItemType == ItemTypeRehab
	default:
		return false
	}
}
