package service

import (
	"context"
	"fmt"
	"time"

	"wisefido-careplan/internal/domain"
	"wisefido-careplan/internal/repository"
	"wisefido-careplan/internal/schedule"
	"wisefido-careplan/internal/store"

	"go.uber.org/zap"
)

// CarePlanService 护理计划生命周期服务接口
// 负责计划/项目/规则的创建、任务生成，以及停止时的级联
type CarePlanService interface {
	// 计划
	CreatePlan(ctx context.Context, req CreatePlanRequest) (*domain.Plan, error)
	GetPlan(ctx context.Context, planID string) (*domain.Plan, error)
	ListPlansByElder(ctx context.Context, req ListPlansRequest) ([]*domain.Plan, error)
	UpdatePlan(ctx context.Context, planID string, patch repository.PlanPatch) (*domain.Plan, error)
	SetPlanStatus(ctx context.Context, planID string, status domain.PlanStatus) (*domain.Plan, error)
	StopPlan(ctx context.Context, planID string) (*StopPlanResult, error)

	// 项目
	CreateItem(ctx context.Context, planID string, req CreateItemRequest) (*domain.PlanItem, error)
	GetItem(ctx context.Context, itemID string) (*domain.PlanItem, error)
	ListItemsByPlan(ctx context.Context, planID string, status domain.ItemStatus) ([]*domain.PlanItem, error)
	UpdateItem(ctx context.Context, itemID string, patch repository.ItemPatch) (*domain.PlanItem, error)
	SetItemStatus(ctx context.Context, itemID string, status domain.ItemStatus) (*SetItemStatusResult, error)
	DeleteItem(ctx context.Context, itemID string) error

	// 重复规则与任务生成
	CreateSchedule(ctx context.Context, itemID string, req CreateScheduleRequest) (*CreateScheduleResult, error)
	ListSchedulesByItem(ctx context.Context, itemID string) ([]*domain.Schedule, error)
	UpdateSchedule(ctx context.Context, scheduleID string, patch repository.SchedulePatch) (*domain.Schedule, error)
	DeleteSchedule(ctx context.Context, scheduleID string) error
	GenerateTasks(ctx context.Context, req GenerateTasksRequest) (int, error)

	// 任务查询
	ListTasksByItem(ctx context.Context, itemID string, filters repository.TaskFilters) ([]*domain.TaskInstance, error)
	GetTask(ctx context.Context, taskID string) (*domain.TaskInstance, error)
}

// CarePlanRepos 服务依赖的四个存储
type CarePlanRepos struct {
	Plans     repository.PlansRepository
	Items     repository.PlanItemsRepository
	Schedules repository.SchedulesRepository
	Tasks     repository.TaskInstancesRepository
}

// carePlanService 实现
type carePlanService struct {
	plans     repository.PlansRepository
	items     repository.PlanItemsRepository
	schedules repository.SchedulesRepository
	tasks     repository.TaskInstancesRepository
	events    store.EventPublisher
	elders    ElderDirectory // 可选，nil 不校验长者
	logger    *zap.Logger
}

// NewCarePlanService 创建 CarePlanService 实例
func NewCarePlanService(repos CarePlanRepos, events store.EventPublisher, elders ElderDirectory, logger *zap.Logger) CarePlanService {
	if events == nil {
		events = store.NopEventPublisher{}
	}
	return &carePlanService{
		plans:     repos.Plans,
		items:     repos.Items,
		schedules: repos.Schedules,
		tasks:     repos.Tasks,
		events:    events,
		elders:    elders,
		logger:    logger,
	}
}

// publish 事件发布失败不影响主流程，只记录警告
func (s *carePlanService) publish(ctx context.Context, ev store.Event) {
	if err := s.events.Publish(ctx, ev); err != nil {
		s.logger.Warn("Failed to publish care plan event", zap.String("type", string(ev.Type)), zap.Error(err))
	}
}

// ============================================
// 计划
// ============================================

// CreatePlanRequest 创建计划请求
type CreatePlanRequest struct {
	ElderID     string
	Title       string
	Description string
	StartDate   time.Time
	EndDate     *time.Time
	CreatorID   string
}

// ListPlansRequest 查询长者计划请求
type ListPlansRequest struct {
	ElderID string
	Status  domain.PlanStatus // 可选
	Order   string            // "asc" / "desc"（默认）
}

// StopPlanResult 停止计划结果
type StopPlanResult struct {
	PlanID       string `json:"plan_id"`
	ItemsStopped int64  `json:"items_stopped"`
	TasksStopped int64  `json:"tasks_stopped"`
}

// checkPlanRange 计划要求 end_date 严格晚于 start_date
func checkPlanRange(start time.Time, end *time.Time) error {
	if end != nil && !domain.Date(*end).After(domain.Date(start)) {
		return fmt.Errorf("plan end_date %s must be after start_date %s: %w",
			domain.FormatDate(*end), domain.FormatDate(start), ErrInvalidRange)
	}
	return nil
}

// checkRange 项目/规则允许 end_date 等于 start_date
func checkRange(start time.Time, end *time.Time) error {
	if end != nil && domain.Date(*end).Before(domain.Date(start)) {
		return fmt.Errorf("end_date %s before start_date %s: %w",
			domain.FormatDate(*end), domain.FormatDate(start), ErrInvalidRange)
	}
	return nil
}

func datePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := domain.Date(*t)
	return &d
}

// mergeEnd 合并部分更新后的 end_date
func mergeEnd(current *time.Time, patch repository.Optional[time.Time]) *time.Time {
	if !patch.Set {
		return current
	}
	return patch.Value
}

// CreatePlan 创建计划，初始状态 ACTIVE
func (s *carePlanService) CreatePlan(ctx context.Context, req CreatePlanRequest) (*domain.Plan, error) {
	if err := checkPlanRange(req.StartDate, req.EndDate); err != nil {
		return nil, err
	}
	if s.elders != nil {
		ok, err := s.elders.ElderExists(ctx, req.ElderID)
		if err != nil {
			return nil, fmt.Errorf("failed to verify elder: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("elder %s: %w", req.ElderID, ErrNotFound)
		}
	}

	plan := &domain.Plan{
		ElderID:     req.ElderID,
		Title:       req.Title,
		Description: req.Description,
		Status:      domain.PlanStatusActive,
		StartDate:   domain.Date(req.StartDate),
		EndDate:     datePtr(req.EndDate),
		CreatorID:   req.CreatorID,
	}
	planID, err := s.plans.CreatePlan(ctx, plan)
	if err != nil {
		return nil, translate(err, "create plan")
	}
	return s.GetPlan(ctx, planID)
}

func (s *carePlanService) GetPlan(ctx context.Context, planID string) (*domain.Plan, error) {
	plan, err := s.plans.GetPlan(ctx, planID)
	if err != nil {
		return nil, translate(err, "get plan")
	}
	return plan, nil
}

// ListPlansByElder 查询长者计划，按 start_date 排序
func (s *carePlanService) ListPlansByElder(ctx context.Context, req ListPlansRequest) ([]*domain.Plan, error) {
	if req.Status != "" && !req.Status.Valid() {
		return nil, fmt.Errorf("plan status %q: %w", req.Status, ErrInvalidStatus)
	}
	order := "desc"
	if req.Order == "asc" {
		order = "asc"
	}
	plans, err := s.plans.ListPlansByElder(ctx, req.ElderID, repository.PlanFilters{Status: req.Status, Order: order})
	if err != nil {
		return nil, translate(err, "list plans")
	}
	return plans, nil
}

// UpdatePlan 部分更新计划；合并后的日期仍需满足 end_date > start_date
func (s *carePlanService) UpdatePlan(ctx context.Context, planID string, patch repository.PlanPatch) (*domain.Plan, error) {
	current, err := s.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if patch.StartDate != nil {
		d := domain.Date(*patch.StartDate)
		patch.StartDate = &d
	}
	if patch.EndDate.Value != nil {
		patch.EndDate.Value = datePtr(patch.EndDate.Value)
	}

	start := current.StartDate
	if patch.StartDate != nil {
		start = *patch.StartDate
	}
	if err := checkPlanRange(start, mergeEnd(current.EndDate, patch.EndDate)); err != nil {
		return nil, err
	}

	if err := s.plans.UpdatePlan(ctx, planID, patch); err != nil {
		return nil, translate(err, "update plan")
	}
	return s.GetPlan(ctx, planID)
}

// SetPlanStatus 直接设置计划状态；STOPPED 走完整的停止级联
func (s *carePlanService) SetPlanStatus(ctx context.Context, planID string, status domain.PlanStatus) (*domain.Plan, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("plan status %q: %w", status, ErrInvalidStatus)
	}
	if status == domain.PlanStatusStopped {
		if _, err := s.StopPlan(ctx, planID); err != nil {
			return nil, err
		}
		return s.GetPlan(ctx, planID)
	}
	if err := s.plans.SetPlanStatus(ctx, planID, status); err != nil {
		return nil, translate(err, "set plan status")
	}
	return s.GetPlan(ctx, planID)
}

// StopPlan 停止计划：计划 -> 全部项目 -> 全部 PENDING 任务，依次置为 STOPPED。
// 三步不在同一事务内，但每一步都可重复执行；中途失败后重试即可收敛。
func (s *carePlanService) StopPlan(ctx context.Context, planID string) (*StopPlanResult, error) {
	if err := s.plans.SetPlanStatus(ctx, planID, domain.PlanStatusStopped); err != nil {
		return nil, translate(err, "stop plan")
	}

	itemsStopped, err := s.items.SetStatusByPlan(ctx, planID, domain.ItemStatusStopped)
	if err != nil {
		return nil, translate(err, "stop plan items")
	}

	ids, err := s.tasks.ListIDsByPlan(ctx, planID, domain.TaskStatusPending)
	if err != nil {
		return nil, translate(err, "list pending tasks")
	}
	tasksStopped, err := s.tasks.BulkUpdateStatus(ctx, ids, domain.TaskStatusPending, domain.TaskStatusStopped)
	if err != nil {
		return nil, translate(err, "stop pending tasks")
	}

	s.logger.Info("Care plan stopped",
		zap.String("plan_id", planID),
		zap.Int64("items_stopped", itemsStopped),
		zap.Int64("tasks_stopped", tasksStopped),
	)
	s.publish(ctx, store.Event{Type: store.EventPlanStopped, PlanID: planID, Count: tasksStopped})

	return &StopPlanResult{PlanID: planID, ItemsStopped: itemsStopped, TasksStopped: tasksStopped}, nil
}

// ============================================
// 计划项目
// ============================================

// CreateItemRequest 创建项目请求；Detail 的类型必须与 ItemType 一致
type CreateItemRequest struct {
	ItemType    domain.ItemType
	Name        string
	Description string
	StartDate   time.Time
	EndDate     *time.Time
	Detail      domain.ItemDetail
}

// SetItemStatusResult 更新项目状态结果
type SetItemStatusResult struct {
	ItemID       string            `json:"item_id"`
	Status       domain.ItemStatus `json:"status"`
	TasksSkipped int64             `json:"tasks_skipped"`
}

// CreateItem 在计划下创建项目（项目与详情同一事务写入）
func (s *carePlanService) CreateItem(ctx context.Context, planID string, req CreateItemRequest) (*domain.PlanItem, error) {
	if _, err := s.GetPlan(ctx, planID); err != nil {
		return nil, err
	}
	item := &domain.PlanItem{
		PlanID:      planID,
		ItemType:    req.ItemType,
		Name:        req.Name,
		Description: req.Description,
		Status:      domain.ItemStatusActive,
		StartDate:   domain.Date(req.StartDate),
		EndDate:     datePtr(req.EndDate),
		Detail:      req.Detail,
	}
	if !item.DetailMatches() {
		return nil, fmt.Errorf("item_type %s: %w", req.ItemType, ErrDetailMismatch)
	}
	if err := checkRange(item.StartDate, item.EndDate); err != nil {
		return nil, err
	}

	itemID, err := s.items.CreateItem(ctx, item)
	if err != nil {
		return nil, translate(err, "create item")
	}
	return s.GetItem(ctx, itemID)
}

func (s *carePlanService) GetItem(ctx context.Context, itemID string) (*domain.PlanItem, error) {
	item, err := s.items.GetItem(ctx, itemID)
	if err != nil {
		return nil, translate(err, "get item")
	}
	return item, nil
}

func (s *carePlanService) ListItemsByPlan(ctx context.Context, planID string, status domain.ItemStatus) ([]*domain.PlanItem, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("item status %q: %w", status, ErrInvalidStatus)
	}
	items, err := s.items.ListItemsByPlan(ctx, planID, status)
	if err != nil {
		return nil, translate(err, "list items")
	}
	return items, nil
}

// UpdateItem 部分更新项目；替换详情时类型不可变
func (s *carePlanService) UpdateItem(ctx context.Context, itemID string, patch repository.ItemPatch) (*domain.PlanItem, error) {
	current, err := s.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if patch.Detail != nil && patch.Detail.Type() != current.ItemType {
		return nil, fmt.Errorf("item_type %s: %w", current.ItemType, ErrDetailMismatch)
	}
	if patch.StartDate != nil {
		d := domain.Date(*patch.StartDate)
		patch.StartDate = &d
	}
	if patch.EndDate.Value != nil {
		patch.EndDate.Value = datePtr(patch.EndDate.Value)
	}

	start := current.StartDate
	if patch.StartDate != nil {
		start = *patch.StartDate
	}
	if err := checkRange(start, mergeEnd(current.EndDate, patch.EndDate)); err != nil {
		return nil, err
	}

	if err := s.items.UpdateItem(ctx, itemID, patch); err != nil {
		return nil, translate(err, "update item")
	}
	return s.GetItem(ctx, itemID)
}

// SetItemStatus 更新项目状态；STOPPED 时该项目所有 PENDING 任务置为 SKIPPED
func (s *carePlanService) SetItemStatus(ctx context.Context, itemID string, status domain.ItemStatus) (*SetItemStatusResult, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("item status %q: %w", status, ErrInvalidStatus)
	}
	if err := s.items.SetItemStatus(ctx, itemID, status); err != nil {
		return nil, translate(err, "set item status")
	}

	result := &SetItemStatusResult{ItemID: itemID, Status: status}
	if status != domain.ItemStatusStopped {
		return result, nil
	}

	ids, err := s.tasks.ListIDsByItem(ctx, itemID, domain.TaskStatusPending)
	if err != nil {
		return nil, translate(err, "list pending tasks")
	}
	skipped, err := s.tasks.BulkUpdateStatus(ctx, ids, domain.TaskStatusPending, domain.TaskStatusSkipped)
	if err != nil {
		return nil, translate(err, "skip pending tasks")
	}
	result.TasksSkipped = skipped

	s.logger.Info("Care plan item stopped",
		zap.String("item_id", itemID),
		zap.Int64("tasks_skipped", skipped),
	)
	s.publish(ctx, store.Event{Type: store.EventItemStopped, ItemID: itemID, Count: skipped})
	return result, nil
}

// DeleteItem 删除项目（连同详情；规则与任务由外键级联）
func (s *carePlanService) DeleteItem(ctx context.Context, itemID string) error {
	if err := s.items.DeleteItem(ctx, itemID); err != nil {
		return translate(err, "delete item")
	}
	return nil
}

// ============================================
// 重复规则与任务生成
// ============================================

// CreateScheduleRequest 创建规则请求
type CreateScheduleRequest struct {
	ScheduleType domain.ScheduleType
	StartDate    time.Time
	EndDate      *time.Time
	TimesOfDay   []string
	Weekdays     []int
}

// CreateScheduleResult 创建规则结果
type CreateScheduleResult struct {
	Schedule     *domain.Schedule `json:"schedule"`
	TasksCreated int              `json:"tasks_created"`
}

// GenerateTasksRequest 按窗口生成任务请求
type GenerateTasksRequest struct {
	ScheduleID string
	From       time.Time
	To         time.Time
	Override   bool // true：先删除该规则窗口内的全部任务（不论状态）再生成
}

// validateSchedule 校验规则字段组合
func validateSchedule(typ domain.ScheduleType, times []string, weekdays []int) error {
	if !typ.Valid() {
		return fmt.Errorf("schedule_type %q: %w", typ, ErrInvalidSchedule)
	}
	if typ == domain.ScheduleTypeWeekly && len(weekdays) == 0 {
		return fmt.Errorf("weekly schedule requires weekdays: %w", ErrInvalidSchedule)
	}
	if typ != domain.ScheduleTypeWeekly && len(weekdays) > 0 {
		return fmt.Errorf("weekdays only apply to weekly schedules: %w", ErrInvalidSchedule)
	}
	for _, wd := range weekdays {
		if wd < 1 || wd > 7 {
			return fmt.Errorf("weekday %d out of 1..7: %w", wd, ErrInvalidSchedule)
		}
	}
	for _, t := range times {
		if _, err := time.Parse(domain.TimeOfDayLayout, t); err != nil || len(t) != len(domain.TimeOfDayLayout) {
			return fmt.Errorf("time of day %q: %w", t, ErrInvalidSchedule)
		}
	}
	return nil
}

// buildTasks 将种子转为待写入的 PENDING 任务
func buildTasks(itemID, scheduleID string, seeds []schedule.Seed) []*domain.TaskInstance {
	tasks := make([]*domain.TaskInstance, 0, len(seeds))
	for _, seed := range seeds {
		t := &domain.TaskInstance{
			ItemID:   itemID,
			TaskDate: seed.Date,
			Status:   domain.TaskStatusPending,
		}
		if scheduleID != "" {
			sid := scheduleID
			t.ScheduleID = &sid
		}
		if seed.Time != "" {
			tm := seed.Time
			t.TaskTime = &tm
		}
		tasks = append(tasks, t)
	}
	return tasks
}

// CreateSchedule 创建规则并立即生成 [start, end ?? start] 内的任务（同一事务）
func (s *carePlanService) CreateSchedule(ctx context.Context, itemID string, req CreateScheduleRequest) (*CreateScheduleResult, error) {
	if _, err := s.GetItem(ctx, itemID); err != nil {
		return nil, err
	}
	if err := validateSchedule(req.ScheduleType, req.TimesOfDay, req.Weekdays); err != nil {
		return nil, err
	}

	sc := &domain.Schedule{
		ItemID:       itemID,
		ScheduleType: req.ScheduleType,
		StartDate:    domain.Date(req.StartDate),
		EndDate:      datePtr(req.EndDate),
		TimesOfDay:   schedule.NormalizeTimes(req.TimesOfDay),
		Weekdays:     req.Weekdays,
	}
	if sc.TimesOfDay == nil {
		sc.TimesOfDay = []string{}
	}
	if sc.Weekdays == nil {
		sc.Weekdays = []int{}
	}

	rule := schedule.RuleFromSchedule(sc)
	from, to := schedule.InitialWindow(rule)
	seeds, err := schedule.Expand(rule, from, to)
	if err != nil {
		return nil, err
	}

	scheduleID, created, err := s.schedules.CreateScheduleWithTasks(ctx, sc, buildTasks(itemID, "", seeds))
	if err != nil {
		return nil, translate(err, "create schedule")
	}

	s.logger.Info("Care schedule created",
		zap.String("item_id", itemID),
		zap.String("schedule_id", scheduleID),
		zap.String("schedule_type", string(sc.ScheduleType)),
		zap.Int("tasks_created", created),
	)
	s.publish(ctx, store.Event{Type: store.EventTasksGenerated, ItemID: itemID, ScheduleID: scheduleID, Count: int64(created)})

	saved, err := s.schedules.GetSchedule(ctx, scheduleID)
	if err != nil {
		return nil, translate(err, "get schedule")
	}
	return &CreateScheduleResult{Schedule: saved, TasksCreated: created}, nil
}

func (s *carePlanService) ListSchedulesByItem(ctx context.Context, itemID string) ([]*domain.Schedule, error) {
	list, err := s.schedules.ListSchedulesByItem(ctx, itemID)
	if err != nil {
		return nil, translate(err, "list schedules")
	}
	return list, nil
}

// UpdateSchedule 部分更新规则；已生成的任务不会随之变化，需要时调用 GenerateTasks(override)
func (s *carePlanService) UpdateSchedule(ctx context.Context, scheduleID string, patch repository.SchedulePatch) (*domain.Schedule, error) {
	current, err := s.schedules.GetSchedule(ctx, scheduleID)
	if err != nil {
		return nil, translate(err, "get schedule")
	}

	typ := current.ScheduleType
	if patch.ScheduleType != nil {
		typ = *patch.ScheduleType
	}
	times := current.TimesOfDay
	if patch.TimesOfDay != nil {
		normalized := schedule.NormalizeTimes(*patch.TimesOfDay)
		if normalized == nil {
			normalized = []string{}
		}
		patch.TimesOfDay = &normalized
		times = normalized
	}
	weekdays := current.Weekdays
	if patch.Weekdays != nil {
		weekdays = *patch.Weekdays
	}
	if err := validateSchedule(typ, times, weekdays); err != nil {
		return nil, err
	}

	if patch.StartDate != nil {
		d := domain.Date(*patch.StartDate)
		patch.StartDate = &d
	}
	if patch.EndDate.Value != nil {
		patch.EndDate.Value = datePtr(patch.EndDate.Value)
	}
	start := current.StartDate
	if patch.StartDate != nil {
		start = *patch.StartDate
	}
	if err := checkRange(start, mergeEnd(current.EndDate, patch.EndDate)); err != nil {
		return nil, err
	}

	if err := s.schedules.UpdateSchedule(ctx, scheduleID, patch); err != nil {
		return nil, translate(err, "update schedule")
	}
	updated, err := s.schedules.GetSchedule(ctx, scheduleID)
	if err != nil {
		return nil, translate(err, "get schedule")
	}
	return updated, nil
}

// DeleteSchedule 删除规则；已生成的任务保留（schedule_id 置空）
func (s *carePlanService) DeleteSchedule(ctx context.Context, scheduleID string) error {
	if err := s.schedules.DeleteSchedule(ctx, scheduleID); err != nil {
		return translate(err, "delete schedule")
	}
	return nil
}

// GenerateTasks 在 [from, to] 内为规则生成任务，返回实际新增数。
// 非 override 时已存在的槽位跳过；override 时先删除窗口内该规则的全部任务。
func (s *carePlanService) GenerateTasks(ctx context.Context, req GenerateTasksRequest) (int, error) {
	sc, err := s.schedules.GetSchedule(ctx, req.ScheduleID)
	if err != nil {
		return 0, translate(err, "get schedule")
	}

	from, to := domain.Date(req.From), domain.Date(req.To)
	seeds, err := schedule.Expand(schedule.RuleFromSchedule(sc), from, to)
	if err != nil {
		return 0, err
	}

	created, err := s.tasks.GenerateForSchedule(ctx, sc.ScheduleID, from, to, buildTasks(sc.ItemID, sc.ScheduleID, seeds), req.Override)
	if err != nil {
		return 0, translate(err, "generate tasks")
	}

	s.logger.Info("Care tasks generated",
		zap.String("schedule_id", sc.ScheduleID),
		zap.String("from", domain.FormatDate(from)),
		zap.String("to", domain.FormatDate(to)),
		zap.Bool("override", req.Override),
		zap.Int("seeds", len(seeds)),
		zap.Int("created", created),
	)
	s.publish(ctx, store.Event{Type: store.EventTasksGenerated, ItemID: sc.ItemID, ScheduleID: sc.ScheduleID, Count: int64(created)})
	return created, nil
}

// ============================================
// 任务查询
// ============================================

func (s *carePlanService) ListTasksByItem(ctx context.Context, itemID string, filters repository.TaskFilters) ([]*domain.TaskInstance, error) {
	if filters.Status != "" && !filters.Status.Valid() {
		return nil, fmt.Errorf("task status %q: %w", filters.Status, ErrInvalidStatus)
	}
	if filters.From != nil && filters.To != nil && domain.Date(*filters.To).Before(domain.Date(*filters.From)) {
		return nil, ErrInvalidRange
	}
	tasks, err := s.tasks.ListTasksByItem(ctx, itemID, filters)
	if err != nil {
		return nil, translate(err, "list tasks")
	}
	return tasks, nil
}

func (s *carePlanService) GetTask(ctx context.Context, taskID string) (*domain.TaskInstance, error) {
	task, err := s.tasks.GetTask(ctx, taskID)
	if err != nil {
		return nil, translate(err, "get task")
	}
	return task, nil
}
