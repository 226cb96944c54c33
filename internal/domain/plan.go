package domain

import "time"

// PlanStatus 护理计划状态
type PlanStatus string

const (
	PlanStatusDraft     PlanStatus = "DRAFT"
	PlanStatusPending   PlanStatus = "PENDING"
	PlanStatusActive    PlanStatus = "ACTIVE"
	PlanStatusPaused    PlanStatus = "PAUSED"
	PlanStatusFinished  PlanStatus = "FINISHED"
	PlanStatusCancelled PlanStatus = "CANCELLED"
	PlanStatusStopped   PlanStatus = "STOPPED"
)

// Valid 是否为已知状态
func (s PlanStatus) Valid() bool {
	switch s {
	case PlanStatusDraft, PlanStatusPending, PlanStatusActive, PlanStatusPaused,
		PlanStatusFinished, PlanStatusCancelled, PlanStatusStopped:
		return true
	}
	return false
}

// Plan 护理计划领域模型（对应 care_plans 表）
// 一个计划属于一位长者，包含若干用药/康复项目
type Plan struct {
	// 主键
	PlanID string `db:"plan_id"` // UUID, PRIMARY KEY

	// 关联长者
	ElderID string `db:"elder_id"` // UUID, NOT NULL

	Title       string `db:"title"`       // VARCHAR(200), NOT NULL
	Description string `db:"description"` // TEXT, nullable

	Status PlanStatus `db:"status"` // VARCHAR(20), NOT NULL, DEFAULT 'ACTIVE'

	// 计划周期（日期，无时分秒）
	StartDate time.Time  `db:"start_date"` // DATE, NOT NULL
	EndDate   *time.Time `db:"end_date"`   // DATE, nullable，必须晚于 start_date

	// 创建人
	CreatorID string `db:"creator_id"` // UUID, nullable

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}
