package domain

import "time"

// TaskStatus 任务实例状态
// 生成时一律为 PENDING；MISSED 由外部逾期扫描设置，本服务不主动设置
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "PENDING"
	TaskStatusCompleted TaskStatus = "COMPLETED"
	TaskStatusSkipped   TaskStatus = "SKIPPED"
	TaskStatusMissed    TaskStatus = "MISSED"
	TaskStatusStopped   TaskStatus = "STOPPED"
)

// Valid 是否为已知状态
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusCompleted, TaskStatusSkipped, TaskStatusMissed, TaskStatusStopped:
		return true
	}
	return false
}

// TaskInstance 任务实例（对应 care_task_instances 表）
// CompleteTime 仅在 Status=COMPLETED 时有值
type TaskInstance struct {
	TaskID     string  `db:"task_id"`     // UUID, PRIMARY KEY
	ItemID     string  `db:"item_id"`     // UUID, NOT NULL, FK to care_plan_items
	ScheduleID *string `db:"schedule_id"` // UUID, nullable, FK to care_schedules (ON DELETE SET NULL)

	TaskDate time.Time `db:"task_date"` // DATE, NOT NULL
	TaskTime *string   `db:"task_time"` // "HH:mm", nullable

	Status       TaskStatus `db:"status"`
	CompleteTime *time.Time `db:"complete_time"`
	Remark       *string    `db:"remark"`
	ProofRef     *string    `db:"proof_ref"` // 打卡凭证（文件服务的引用）

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}
