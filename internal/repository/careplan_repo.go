package repository

import (
	"context"
	"time"

	"wisefido-careplan/internal/domain"
)

// ============================================
// 护理计划相关 Repository 接口
// 使用强类型领域模型；所有 NotFound 均包装 ErrNotFound
// ============================================

// PlanFilters 计划查询过滤器
type PlanFilters struct {
	Status domain.PlanStatus // 为空不过滤
	Order  string            // 按 start_date 排序："asc" / "desc"（默认 desc）
}

// PlanPatch 计划部分更新
type PlanPatch struct {
	Title       *string
	Description Optional[string]
	StartDate   *time.Time
	EndDate     Optional[time.Time]
}

// PlansRepository 护理计划 Repository
type PlansRepository interface {
	CreatePlan(ctx context.Context, plan *domain.Plan) (string, error)
	GetPlan(ctx context.Context, planID string) (*domain.Plan, error)
	ListPlansByElder(ctx context.Context, elderID string, filters PlanFilters) ([]*domain.Plan, error)
	UpdatePlan(ctx context.Context, planID string, patch PlanPatch) error
	SetPlanStatus(ctx context.Context, planID string, status domain.PlanStatus) error
}

// ItemPatch 计划项目部分更新
// Detail 非空时整体替换详情，类型必须与项目一致
type ItemPatch struct {
	Name        *string
	Description Optional[string]
	StartDate   *time.Time
	EndDate     Optional[time.Time]
	Detail      domain.ItemDetail
}

// PlanItemsRepository 计划项目 Repository
// 项目与详情的创建、删除各自在一个事务内完成
type PlanItemsRepository interface {
	CreateItem(ctx context.Context, item *domain.PlanItem) (string, error)
	GetItem(ctx context.Context, itemID string) (*domain.PlanItem, error)
	ListItemsByPlan(ctx context.Context, planID string, status domain.ItemStatus) ([]*domain.PlanItem, error)
	UpdateItem(ctx context.Context, itemID string, patch ItemPatch) error
	SetItemStatus(ctx context.Context, itemID string, status domain.ItemStatus) error
	// SetStatusByPlan 将计划下所有项目置为 status（不论当前状态），返回影响行数
	SetStatusByPlan(ctx context.Context, planID string, status domain.ItemStatus) (int64, error)
	DeleteItem(ctx context.Context, itemID string) error
}

// SchedulePatch 重复规则部分更新
type SchedulePatch struct {
	ScheduleType *domain.ScheduleType
	StartDate    *time.Time
	EndDate      Optional[time.Time]
	TimesOfDay   *[]string
	Weekdays     *[]int
}

// SchedulesRepository 重复规则 Repository
type SchedulesRepository interface {
	// CreateScheduleWithTasks 在一个事务内写入规则及其初始任务；返回规则ID和实际写入的任务数
	CreateScheduleWithTasks(ctx context.Context, schedule *domain.Schedule, tasks []*domain.TaskInstance) (string, int, error)
	GetSchedule(ctx context.Context, scheduleID string) (*domain.Schedule, error)
	ListSchedulesByItem(ctx context.Context, itemID string) ([]*domain.Schedule, error)
	UpdateSchedule(ctx context.Context, scheduleID string, patch SchedulePatch) error
	DeleteSchedule(ctx context.Context, scheduleID string) error
}

// TaskFilters 任务查询过滤器
type TaskFilters struct {
	From   *time.Time        // task_date >= From
	To     *time.Time        // task_date <= To
	Status domain.TaskStatus // 为空不过滤
}

// TaskPatch 任务部分更新
type TaskPatch struct {
	Status       *domain.TaskStatus
	CompleteTime Optional[time.Time]
	Remark       Optional[string]
	ProofRef     Optional[string]
}

// TaskInstancesRepository 任务实例 Repository
// 写入按 (item_id, schedule_id, task_date, task_time) 去重，已存在的槽位不会重复生成
type TaskInstancesRepository interface {
	GetTask(ctx context.Context, taskID string) (*domain.TaskInstance, error)
	ListTasksByItem(ctx context.Context, itemID string, filters TaskFilters) ([]*domain.TaskInstance, error)
	// InsertTasks 批量写入，返回实际新增数
	InsertTasks(ctx context.Context, tasks []*domain.TaskInstance) (int, error)
	// DeleteBySchedule 删除规则在 [from, to] 内的所有任务（不论状态）
	DeleteBySchedule(ctx context.Context, scheduleID string, from, to time.Time) (int64, error)
	// GenerateForSchedule 加规则级锁后（可选）删除窗口内任务并写入新任务，一个事务完成
	GenerateForSchedule(ctx context.Context, scheduleID string, from, to time.Time, tasks []*domain.TaskInstance, override bool) (int, error)
	UpdateTask(ctx context.Context, taskID string, patch TaskPatch) error
	// BulkUpdateStatus 仅更新当前状态仍为 from 的任务，返回实际更新数
	BulkUpdateStatus(ctx context.Context, taskIDs []string, from, to domain.TaskStatus) (int64, error)
	ListIDsByPlan(ctx context.Context, planID string, status domain.TaskStatus) ([]string, error)
	ListIDsByItem(ctx context.Context, itemID string, status domain.TaskStatus) ([]string, error)
}
