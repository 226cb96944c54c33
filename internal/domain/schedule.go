package domain

import "time"

// ScheduleType 重复规则类型
type ScheduleType string

const (
	ScheduleTypeOnce   ScheduleType = "ONCE"
	ScheduleTypeDaily  ScheduleType = "DAILY"
	ScheduleTypeWeekly ScheduleType = "WEEKLY"
)

// Valid 是否为已知类型
func (t ScheduleType) Valid() bool {
	return t == ScheduleTypeOnce || t == ScheduleTypeDaily || t == ScheduleTypeWeekly
}

// Schedule 计划项目的重复规则（对应 care_schedules 表）
type Schedule struct {
	ScheduleID string `db:"schedule_id"` // UUID, PRIMARY KEY
	ItemID     string `db:"item_id"`     // UUID, NOT NULL, FK to care_plan_items

	ScheduleType ScheduleType `db:"schedule_type"` // VARCHAR(10), NOT NULL

	StartDate time.Time  `db:"start_date"` // DATE, NOT NULL
	EndDate   *time.Time `db:"end_date"`   // DATE, nullable

	// 每天的执行时间，"HH:mm"，有序
	TimesOfDay []string `db:"times_of_day"` // TEXT[]

	// 星期（1=周一 ... 7=周日），仅 WEEKLY 有效
	Weekdays []int `db:"weekdays"` // SMALLINT[]

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}
