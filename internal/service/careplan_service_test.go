package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"wisefido-careplan/internal/domain"
	"wisefido-careplan/internal/repository"
	"wisefido-careplan/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingPublisher struct {
	events []store.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev store.Event) error {
	p.events = append(p.events, ev)
	return p.err
}

type fakeElders struct {
	known map[string]bool
	err   error
}

func (f *fakeElders) ElderExists(_ context.Context, elderID string) (bool, error) {
	return f.known[elderID], f.err
}

func day(s string) time.Time {
	d, err := domain.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func datep(s string) *time.Time {
	d := day(s)
	return &d
}

func setupCarePlanService(t *testing.T) (CarePlanService, *repository.MemoryCarePlanStore, *recordingPublisher) {
	t.Helper()
	mem := repository.NewMemoryCarePlanStore()
	pub := &recordingPublisher{}
	svc := NewCarePlanService(CarePlanRepos{Plans: mem, Items: mem, Schedules: mem, Tasks: mem}, pub, nil, zap.NewNop())
	return svc, mem, pub
}

func createTestPlan(t *testing.T, svc CarePlanService) *domain.Plan {
	t.Helper()
	plan, err := svc.CreatePlan(context.Background(), CreatePlanRequest{
		ElderID:   "elder-1",
		Title:     "术后康复",
		StartDate: day("2025-01-01"),
		EndDate:   datep("2025-03-31"),
	})
	require.NoError(t, err)
	return plan
}

func createTestItem(t *testing.T, svc CarePlanService, planID string) *domain.PlanItem {
	t.Helper()
	item, err := svc.CreateItem(context.Background(), planID, CreateItemRequest{
		ItemType:  domain.ItemTypeMedication,
		Name:      "降压药",
		StartDate: day("2025-01-01"),
		Detail:    &domain.MedicationDetail{DrugName: "Amlodipine", Dosage: "5mg", FrequencyType: "BID"},
	})
	require.NoError(t, err)
	return item
}

// ============================================
// 计划
// ============================================

func TestCreatePlan_ActiveWithoutSideEffects(t *testing.T) {
	svc, _, pub := setupCarePlanService(t)
	plan := createTestPlan(t, svc)

	assert.NotEmpty(t, plan.PlanID)
	assert.Equal(t, domain.PlanStatusActive, plan.Status)
	assert.Empty(t, pub.events)

	items, err := svc.ListItemsByPlan(context.Background(), plan.PlanID, "")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestCreatePlan_EndNotAfterStart(t *testing.T) {
	svc, _, _ := setupCarePlanService(t)
	_, err := svc.CreatePlan(context.Background(), CreatePlanRequest{
		ElderID: "e", Title: "t", StartDate: day("2025-01-10"), EndDate: datep("2025-01-10"),
	})
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestCreatePlan_UnknownElder(t *testing.T) {
	mem := repository.NewMemoryCarePlanStore()
	elders := &fakeElders{known: map[string]bool{"elder-1": true}}
	svc := NewCarePlanService(CarePlanRepos{Plans: mem, Items: mem, Schedules: mem, Tasks: mem}, nil, elders, zap.NewNop())

	_, err := svc.CreatePlan(context.Background(), CreatePlanRequest{ElderID: "ghost", Title: "t", StartDate: day("2025-01-01")})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.CreatePlan(context.Background(), CreatePlanRequest{ElderID: "elder-1", Title: "t", StartDate: day("2025-01-01")})
	assert.NoError(t, err)

	elders.err = errors.New("timeout")
	_, err = svc.CreatePlan(context.Background(), CreatePlanRequest{ElderID: "elder-1", Title: "t", StartDate: day("2025-01-01")})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestGetPlan_NotFound(t *testing.T) {
	svc, _, _ := setupCarePlanService(t)
	_, err := svc.GetPlan(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListPlansByElder_Order(t *testing.T) {
	svc, _, _ := setupCarePlanService(t)
	ctx := context.Background()
	for _, start := range []string{"2025-02-01", "2025-01-01", "2025-03-01"} {
		_, err := svc.CreatePlan(ctx, CreatePlanRequest{ElderID: "elder-1", Title: start, StartDate: day(start)})
		require.NoError(t, err)
	}
	_, err := svc.CreatePlan(ctx, CreatePlanRequest{ElderID: "elder-2", Title: "other", StartDate: day("2025-01-01")})
	require.NoError(t, err)

	plans, err := svc.ListPlansByElder(ctx, ListPlansRequest{ElderID: "elder-1"})
	require.NoError(t, err)
	require.Len(t, plans, 3)
	assert.Equal(t, "2025-03-01", plans[0].Title)

	plans, err = svc.ListPlansByElder(ctx, ListPlansRequest{ElderID: "elder-1", Order: "asc"})
	require.NoError(t, err)
	assert.Equal(t, "2025-01-01", plans[0].Title)

	_, err = svc.ListPlansByElder(ctx, ListPlansRequest{ElderID: "elder-1", Status: "BOGUS"})
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestUpdatePlan_PartialAndClear(t *testing.T) {
	svc, _, _ := setupCarePlanService(t)
	plan := createTestPlan(t, svc)
	ctx := context.Background()

	title := "新标题"
	updated, err := svc.UpdatePlan(ctx, plan.PlanID, repository.PlanPatch{Title: &title, EndDate: repository.Null[time.Time]()})
	require.NoError(t, err)
	assert.Equal(t, title, updated.Title)
	assert.Nil(t, updated.EndDate)
	assert.Equal(t, plan.StartDate, updated.StartDate)

	_, err = svc.UpdatePlan(ctx, plan.PlanID, repository.PlanPatch{EndDate: repository.Some(day("2024-12-01"))})
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, err = svc.UpdatePlan(ctx, "missing", repository.PlanPatch{Title: &title})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetPlanStatus(t *testing.T) {
	svc, _, _ := setupCarePlanService(t)
	plan := createTestPlan(t, svc)
	ctx := context.Background()

	updated, err := svc.SetPlanStatus(ctx, plan.PlanID, domain.PlanStatusPaused)
	require.NoError(t, err)
	assert.Equal(t, domain.PlanStatusPaused, updated.Status)

	_, err = svc.SetPlanStatus(ctx, plan.PlanID, "DONE")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestSetPlanStatus_StoppedCascades(t *testing.T) {
	svc, _, _ := setupCarePlanService(t)
	ctx := context.Background()
	plan := createTestPlan(t, svc)
	item := createTestItem(t, svc, plan.PlanID)
	_, err := svc.CreateSchedule(ctx, item.ItemID, CreateScheduleRequest{
		ScheduleType: domain.ScheduleTypeDaily, StartDate: day("2025-01-01"), EndDate: datep("2025-01-03"),
	})
	require.NoError(t, err)

	updated, err := svc.SetPlanStatus(ctx, plan.PlanID, domain.PlanStatusStopped)
	require.NoError(t, err)
	assert.Equal(t, domain.PlanStatusStopped, updated.Status)

	tasks, err := svc.ListTasksByItem(ctx, item.ItemID, repository.TaskFilters{Status: domain.TaskStatusStopped})
	require.NoError(t, err)
	assert.Len(t, tasks, 3)
}

// 计划 A 项目 3 个 PENDING，B 项目（已暂停）1 个 COMPLETED
func TestStopPlan_Example(t *testing.T) {
	svc, mem, pub := setupCarePlanService(t)
	ctx := context.Background()
	plan := createTestPlan(t, svc)
	itemA := createTestItem(t, svc, plan.PlanID)
	itemB, err := svc.CreateItem(ctx, plan.PlanID, CreateItemRequest{
		ItemType:  domain.ItemTypeRehab,
		Name:      "步行训练",
		StartDate: day("2025-01-01"),
		Detail:    &domain.RehabDetail{ExerciseName: "walk"},
	})
	require.NoError(t, err)

	created, err := mem.InsertTasks(ctx, []*domain.TaskInstance{
		{ItemID: itemA.ItemID, TaskDate: day("2025-01-01")},
		{ItemID: itemA.ItemID, TaskDate: day("2025-01-02")},
		{ItemID: itemA.ItemID, TaskDate: day("2025-01-03")},
	})
	require.NoError(t, err)
	require.Equal(t, 3, created)

	now := time.Now()
	completed := &domain.TaskInstance{ItemID: itemB.ItemID, TaskDate: day("2025-01-01"), Status: domain.TaskStatusCompleted, CompleteTime: &now}
	_, err = mem.InsertTasks(ctx, []*domain.TaskInstance{completed})
	require.NoError(t, err)
	_, err = svc.SetItemStatus(ctx, itemB.ItemID, domain.ItemStatusPaused)
	require.NoError(t, err)

	result, err := svc.StopPlan(ctx, plan.PlanID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.ItemsStopped)
	assert.Equal(t, int64(3), result.TasksStopped)

	assertStopped := func() {
		p, err := svc.GetPlan(ctx, plan.PlanID)
		require.NoError(t, err)
		assert.Equal(t, domain.PlanStatusStopped, p.Status)

		items, err := svc.ListItemsByPlan(ctx, plan.PlanID, "")
		require.NoError(t, err)
		for _, it := range items {
			assert.Equal(t, domain.ItemStatusStopped, it.Status)
		}

		tasksA, err := svc.ListTasksByItem(ctx, itemA.ItemID, repository.TaskFilters{})
		require.NoError(t, err)
		require.Len(t, tasksA, 3)
		for _, task := range tasksA {
			assert.Equal(t, domain.TaskStatusStopped, task.Status)
		}

		taskB, err := svc.GetTask(ctx, completed.TaskID)
		require.NoError(t, err)
		assert.Equal(t, domain.TaskStatusCompleted, taskB.Status)
		assert.NotNil(t, taskB.CompleteTime)
	}
	assertStopped()

	// 再执行一次结果不变
	again, err := svc.StopPlan(ctx, plan.PlanID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), again.TasksStopped)
	assertStopped()

	require.NotEmpty(t, pub.events)
	assert.Equal(t, store.EventPlanStopped, pub.events[len(pub.events)-1].Type)
}

func TestStopPlan_NotFound(t *testing.T) {
	svc, _, _ := setupCarePlanService(t)
	_, err := svc.StopPlan(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStopPlan_PublishFailureIgnored(t *testing.T) {
	svc, _, pub := setupCarePlanService(t)
	pub.err = errors.New("redis down")
	plan := createTestPlan(t, svc)

	_, err := svc.StopPlan(context.Background(), plan.PlanID)
	assert.NoError(t, err)
}

// ============================================
// 计划项目
// ============================================

func TestCreateItem_PlanMissing(t *testing.T) {
	svc, _, _ := setupCarePlanService(t)
	_, err := svc.CreateItem(context.Background(), "missing", CreateItemRequest{
		ItemType: domain.ItemTypeRehab,
		Detail:   &domain.RehabDetail{ExerciseName: "walk"},
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateItem_DetailMismatch(t *testing.T) {
	svc, _, _ := setupCarePlanService(t)
	plan := createTestPlan(t, svc)

	_, err := svc.CreateItem(context.Background(), plan.PlanID, CreateItemRequest{
		ItemType:  domain.ItemTypeMedication,
		Name:      "x",
		StartDate: day("2025-01-01"),
		Detail:    &domain.RehabDetail{ExerciseName: "walk"},
	})
	assert.ErrorIs(t, err, ErrDetailMismatch)

	_, err = svc.CreateItem(context.Background(), plan.PlanID, CreateItemRequest{
		ItemType:  domain.ItemTypeMedication,
		Name:      "x",
		StartDate: day("2025-01-01"),
	})
	assert.ErrorIs(t, err, ErrDetailMismatch)
}

func TestUpdateItem_DetailTypeIsFixed(t *testing.T) {
	svc, _, _ := setupCarePlanService(t)
	ctx := context.Background()
	item := createTestItem(t, svc, createTestPlan(t, svc).PlanID)

	_, err := svc.UpdateItem(ctx, item.ItemID, repository.ItemPatch{Detail: &domain.RehabDetail{ExerciseName: "walk"}})
	assert.ErrorIs(t, err, ErrDetailMismatch)

	name := "降压药（晚）"
	updated, err := svc.UpdateItem(ctx, item.ItemID, repository.ItemPatch{
		Name:   &name,
		Detail: &domain.MedicationDetail{DrugName: "Amlodipine", Dosage: "10mg", FrequencyType: "QD"},
	})
	require.NoError(t, err)
	assert.Equal(t, name, updated.Name)
	assert.Equal(t, "10mg", updated.Detail.(*domain.MedicationDetail).Dosage)
}

// 项目级停止把 PENDING 任务置为 SKIPPED，而不是 STOPPED
func TestSetItemStatus_StoppedSkipsPending(t *testing.T) {
	svc, _, pub := setupCarePlanService(t)
	ctx := context.Background()
	item := createTestItem(t, svc, createTestPlan(t, svc).PlanID)

	_, err := svc.CreateSchedule(ctx, item.ItemID, CreateScheduleRequest{
		ScheduleType: domain.ScheduleTypeDaily,
		StartDate:    day("2025-01-01"),
		EndDate:      datep("2025-01-02"),
		TimesOfDay:   []string{"08:00"},
	})
	require.NoError(t, err)

	result, err := svc.SetItemStatus(ctx, item.ItemID, domain.ItemStatusStopped)
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.TasksSkipped)

	tasks, err := svc.ListTasksByItem(ctx, item.ItemID, repository.TaskFilters{})
	require.NoError(t, err)
	for _, task := range tasks {
		assert.Equal(t, domain.TaskStatusSkipped, task.Status)
	}
	assert.Equal(t, store.EventItemStopped, pub.events[len(pub.events)-1].Type)
}

func TestSetItemStatus_PausedLeavesTasks(t *testing.T) {
	svc, _, _ := setupCarePlanService(t)
	ctx := context.Background()
	item := createTestItem(t, svc, createTestPlan(t, svc).PlanID)
	_, err := svc.CreateSchedule(ctx, item.ItemID, CreateScheduleRequest{ScheduleType: domain.ScheduleTypeOnce, StartDate: day("2025-01-01")})
	require.NoError(t, err)

	result, err := svc.SetItemStatus(ctx, item.ItemID, domain.ItemStatusPaused)
	require.NoError(t, err)
	assert.Equal(t, int64(0), result.TasksSkipped)

	tasks, err := svc.ListTasksByItem(ctx, item.ItemID, repository.TaskFilters{Status: domain.TaskStatusPending})
	require.NoError(t, err)
	assert.Len(t, tasks, 1)

	_, err = svc.SetItemStatus(ctx, "missing", domain.ItemStatusPaused)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteItem(t *testing.T) {
	svc, _, _ := setupCarePlanService(t)
	ctx := context.Background()
	item := createTestItem(t, svc, createTestPlan(t, svc).PlanID)

	require.NoError(t, svc.DeleteItem(ctx, item.ItemID))
	_, err := svc.GetItem(ctx, item.ItemID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, svc.DeleteItem(ctx, item.ItemID), ErrNotFound)
}

// ============================================
// 重复规则与任务生成
// ============================================

func TestCreateSchedule_WeeklyExample(t *testing.T) {
	svc, _, _ := setupCarePlanService(t)
	ctx := context.Background()
	item := createTestItem(t, svc, createTestPlan(t, svc).PlanID)

	result, err := svc.CreateSchedule(ctx, item.ItemID, CreateScheduleRequest{
		ScheduleType: domain.ScheduleTypeWeekly,
		StartDate:    day("2025-01-06"),
		EndDate:      datep("2025-01-12"),
		TimesOfDay:   []string{"20:00", "08:00"},
		Weekdays:     []int{1, 3, 5},
	})
	require.NoError(t, err)
	assert.Equal(t, 6, result.TasksCreated)
	assert.Equal(t, []string{"08:00", "20:00"}, result.Schedule.TimesOfDay)

	tasks, err := svc.ListTasksByItem(ctx, item.ItemID, repository.TaskFilters{})
	require.NoError(t, err)
	require.Len(t, tasks, 6)

	want := []string{"2025-01-06", "2025-01-06", "2025-01-08", "2025-01-08", "2025-01-10", "2025-01-10"}
	for i, task := range tasks {
		assert.Equal(t, want[i], domain.FormatDate(task.TaskDate))
		assert.Equal(t, domain.TaskStatusPending, task.Status)
		require.NotNil(t, task.ScheduleID)
		assert.Equal(t, result.Schedule.ScheduleID, *task.ScheduleID)
	}
	assert.Equal(t, "08:00", *tasks[0].TaskTime)
	assert.Equal(t, "20:00", *tasks[1].TaskTime)
}

func TestCreateSchedule_OpenEndedSeedsStartDay(t *testing.T) {
	svc, _, _ := setupCarePlanService(t)
	item := createTestItem(t, svc, createTestPlan(t, svc).PlanID)

	result, err := svc.CreateSchedule(context.Background(), item.ItemID, CreateScheduleRequest{
		ScheduleType: domain.ScheduleTypeDaily,
		StartDate:    day("2025-01-01"),
		TimesOfDay:   []string{"08:00", "12:00", "18:00"},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, result.TasksCreated)
}

func TestCreateSchedule_Validation(t *testing.T) {
	svc, _, _ := setupCarePlanService(t)
	ctx := context.Background()
	item := createTestItem(t, svc, createTestPlan(t, svc).PlanID)

	cases := []struct {
		name string
		req  CreateScheduleRequest
		want error
	}{
		{"weekly without weekdays", CreateScheduleRequest{ScheduleType: domain.ScheduleTypeWeekly, StartDate: day("2025-01-01")}, ErrInvalidSchedule},
		{"daily with weekdays", CreateScheduleRequest{ScheduleType: domain.ScheduleTypeDaily, StartDate: day("2025-01-01"), Weekdays: []int{1}}, ErrInvalidSchedule},
		{"weekday out of range", CreateScheduleRequest{ScheduleType: domain.ScheduleTypeWeekly, StartDate: day("2025-01-01"), Weekdays: []int{0}}, ErrInvalidSchedule},
		{"bad time", CreateScheduleRequest{ScheduleType: domain.ScheduleTypeDaily, StartDate: day("2025-01-01"), TimesOfDay: []string{"8:00"}}, ErrInvalidSchedule},
		{"unknown type", CreateScheduleRequest{ScheduleType: "MONTHLY", StartDate: day("2025-01-01")}, ErrInvalidSchedule},
		{"end before start", CreateScheduleRequest{ScheduleType: domain.ScheduleTypeDaily, StartDate: day("2025-01-05"), EndDate: datep("2025-01-01")}, ErrInvalidRange},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateSchedule(ctx, item.ItemID, tc.req)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	schedules, err := svc.ListSchedulesByItem(ctx, item.ItemID)
	require.NoError(t, err)
	assert.Empty(t, schedules)

	_, err = svc.CreateSchedule(ctx, "missing", CreateScheduleRequest{ScheduleType: domain.ScheduleTypeOnce, StartDate: day("2025-01-01")})
	assert.ErrorIs(t, err, ErrNotFound)
}

// createDailySchedule end 为 nil 时只生成 01-01 当天的任务
func createDailySchedule(t *testing.T, svc CarePlanService, itemID string, end *time.Time) *domain.Schedule {
	t.Helper()
	result, err := svc.CreateSchedule(context.Background(), itemID, CreateScheduleRequest{
		ScheduleType: domain.ScheduleTypeDaily,
		StartDate:    day("2025-01-01"),
		EndDate:      end,
		TimesOfDay:   []string{"08:00", "20:00"},
	})
	require.NoError(t, err)
	return result.Schedule
}

func taskSlots(t *testing.T, svc CarePlanService, itemID string) []string {
	t.Helper()
	tasks, err := svc.ListTasksByItem(context.Background(), itemID, repository.TaskFilters{})
	require.NoError(t, err)
	slots := make([]string, 0, len(tasks))
	for _, task := range tasks {
		slot := domain.FormatDate(task.TaskDate) + " " + string(task.Status)
		if task.TaskTime != nil {
			slot += " " + *task.TaskTime
		}
		slots = append(slots, slot)
	}
	return slots
}

func TestGenerateTasks_DailyCount(t *testing.T) {
	svc, _, _ := setupCarePlanService(t)
	ctx := context.Background()
	item := createTestItem(t, svc, createTestPlan(t, svc).PlanID)
	sc := createDailySchedule(t, svc, item.ItemID, datep("2025-01-31"))

	created, err := svc.GenerateTasks(ctx, GenerateTasksRequest{
		ScheduleID: sc.ScheduleID, From: day("2024-12-01"), To: day("2025-02-28"), Override: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 31*2, created)
	assert.Len(t, taskSlots(t, svc, item.ItemID), 62)
}

func TestGenerateTasks_AdditiveSkipsExisting(t *testing.T) {
	svc, _, _ := setupCarePlanService(t)
	ctx := context.Background()
	item := createTestItem(t, svc, createTestPlan(t, svc).PlanID)
	sc := createDailySchedule(t, svc, item.ItemID, nil)

	created, err := svc.GenerateTasks(ctx, GenerateTasksRequest{ScheduleID: sc.ScheduleID, From: day("2025-01-01"), To: day("2025-01-10")})
	require.NoError(t, err)
	assert.Equal(t, 18, created)

	created, err = svc.GenerateTasks(ctx, GenerateTasksRequest{ScheduleID: sc.ScheduleID, From: day("2025-01-05"), To: day("2025-01-15")})
	require.NoError(t, err)
	assert.Equal(t, 10, created)
	assert.Len(t, taskSlots(t, svc, item.ItemID), 30)
}

func TestGenerateTasks_OverrideIdempotent(t *testing.T) {
	svc, _, _ := setupCarePlanService(t)
	ctx := context.Background()
	item := createTestItem(t, svc, createTestPlan(t, svc).PlanID)
	sc := createDailySchedule(t, svc, item.ItemID, datep("2025-01-31"))

	req := GenerateTasksRequest{ScheduleID: sc.ScheduleID, From: day("2025-01-01"), To: day("2025-01-07"), Override: true}
	_, err := svc.GenerateTasks(ctx, req)
	require.NoError(t, err)
	first := taskSlots(t, svc, item.ItemID)

	_, err = svc.GenerateTasks(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, first, taskSlots(t, svc, item.ItemID))
}

func TestGenerateTasks_OverrideResetsCompleted(t *testing.T) {
	mem := repository.NewMemoryCarePlanStore()
	svc := NewCarePlanService(CarePlanRepos{Plans: mem, Items: mem, Schedules: mem, Tasks: mem}, nil, nil, zap.NewNop())
	tasksSvc := NewTaskService(mem, nil, zap.NewNop())
	ctx := context.Background()
	item := createTestItem(t, svc, createTestPlan(t, svc).PlanID)
	sc := createDailySchedule(t, svc, item.ItemID, nil)

	_, err := svc.GenerateTasks(ctx, GenerateTasksRequest{ScheduleID: sc.ScheduleID, From: day("2025-01-01"), To: day("2025-01-01")})
	require.NoError(t, err)
	tasks, err := svc.ListTasksByItem(ctx, item.ItemID, repository.TaskFilters{})
	require.NoError(t, err)
	_, err = tasksSvc.UpdateStatus(ctx, UpdateTaskStatusRequest{TaskID: tasks[0].TaskID, Status: domain.TaskStatusCompleted})
	require.NoError(t, err)

	_, err = svc.GenerateTasks(ctx, GenerateTasksRequest{ScheduleID: sc.ScheduleID, From: day("2025-01-01"), To: day("2025-01-01"), Override: true})
	require.NoError(t, err)

	pending, err := svc.ListTasksByItem(ctx, item.ItemID, repository.TaskFilters{Status: domain.TaskStatusPending})
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

func TestGenerateTasks_InvalidRangeDeletesNothing(t *testing.T) {
	svc, _, _ := setupCarePlanService(t)
	ctx := context.Background()
	item := createTestItem(t, svc, createTestPlan(t, svc).PlanID)
	sc := createDailySchedule(t, svc, item.ItemID, datep("2025-01-31"))
	before := taskSlots(t, svc, item.ItemID)

	_, err := svc.GenerateTasks(ctx, GenerateTasksRequest{ScheduleID: sc.ScheduleID, From: day("2025-01-10"), To: day("2025-01-01"), Override: true})
	assert.ErrorIs(t, err, ErrInvalidRange)
	assert.Equal(t, before, taskSlots(t, svc, item.ItemID))

	_, err = svc.GenerateTasks(ctx, GenerateTasksRequest{ScheduleID: "missing", From: day("2025-01-01"), To: day("2025-01-02")})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateSchedule_NoImplicitRegeneration(t *testing.T) {
	svc, _, _ := setupCarePlanService(t)
	ctx := context.Background()
	item := createTestItem(t, svc, createTestPlan(t, svc).PlanID)
	sc := createDailySchedule(t, svc, item.ItemID, datep("2025-01-31"))
	before := taskSlots(t, svc, item.ItemID)

	weekly := domain.ScheduleTypeWeekly
	weekdays := []int{2, 4}
	times := []string{"09:00", "09:00"}
	updated, err := svc.UpdateSchedule(ctx, sc.ScheduleID, repository.SchedulePatch{
		ScheduleType: &weekly,
		Weekdays:     &weekdays,
		TimesOfDay:   &times,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ScheduleTypeWeekly, updated.ScheduleType)
	assert.Equal(t, []string{"09:00"}, updated.TimesOfDay)
	assert.Equal(t, before, taskSlots(t, svc, item.ItemID))

	_, err = svc.UpdateSchedule(ctx, sc.ScheduleID, repository.SchedulePatch{Weekdays: &[]int{}})
	assert.ErrorIs(t, err, ErrInvalidSchedule)

	_, err = svc.UpdateSchedule(ctx, sc.ScheduleID, repository.SchedulePatch{EndDate: repository.Some(day("2024-01-01"))})
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestDeleteSchedule_KeepsTasks(t *testing.T) {
	svc, _, _ := setupCarePlanService(t)
	ctx := context.Background()
	item := createTestItem(t, svc, createTestPlan(t, svc).PlanID)
	sc := createDailySchedule(t, svc, item.ItemID, datep("2025-01-31"))

	require.NoError(t, svc.DeleteSchedule(ctx, sc.ScheduleID))
	assert.ErrorIs(t, svc.DeleteSchedule(ctx, sc.ScheduleID), ErrNotFound)

	tasks, err := svc.ListTasksByItem(ctx, item.ItemID, repository.TaskFilters{})
	require.NoError(t, err)
	assert.Len(t, tasks, 62)
	assert.Nil(t, tasks[0].ScheduleID)
}

func TestListTasksByItem_RangeAndStatus(t *testing.T) {
	svc, _, _ := setupCarePlanService(t)
	ctx := context.Background()
	item := createTestItem(t, svc, createTestPlan(t, svc).PlanID)
	createDailySchedule(t, svc, item.ItemID, datep("2025-01-31"))

	from, to := day("2025-01-10"), day("2025-01-11")
	tasks, err := svc.ListTasksByItem(ctx, item.ItemID, repository.TaskFilters{From: &from, To: &to})
	require.NoError(t, err)
	assert.Len(t, tasks, 4)

	_, err = svc.ListTasksByItem(ctx, item.ItemID, repository.TaskFilters{From: &to, To: &from})
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, err = svc.ListTasksByItem(ctx, item.ItemID, repository.TaskFilters{Status: "LATE"})
	assert.ErrorIs(t, err, ErrInvalidStatus)

	_, err = svc.GetTask(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

// interleavingTaskStore 在读取待执行任务ID之后、批量更新之前执行 between，模拟并发打卡
type interleavingTaskStore struct {
	*repository.MemoryCarePlanStore
	between func(ids []string)
}

func (s *interleavingTaskStore) ListIDsByPlan(ctx context.Context, planID string, status domain.TaskStatus) ([]string, error) {
	ids, err := s.MemoryCarePlanStore.ListIDsByPlan(ctx, planID, status)
	if err == nil && s.between != nil && len(ids) > 0 {
		s.between(ids)
	}
	return ids, err
}

func (s *interleavingTaskStore) ListIDsByItem(ctx context.Context, itemID string, status domain.TaskStatus) ([]string, error) {
	ids, err := s.MemoryCarePlanStore.ListIDsByItem(ctx, itemID, status)
	if err == nil && s.between != nil && len(ids) > 0 {
		s.between(ids)
	}
	return ids, err
}

func setupInterleavedCascade(t *testing.T) (CarePlanService, *interleavingTaskStore, *domain.PlanItem, string) {
	t.Helper()
	mem := repository.NewMemoryCarePlanStore()
	tasks := &interleavingTaskStore{MemoryCarePlanStore: mem}
	svc := NewCarePlanService(CarePlanRepos{Plans: mem, Items: mem, Schedules: mem, Tasks: tasks}, nil, nil, zap.NewNop())
	checkIns := NewTaskService(mem, nil, zap.NewNop())

	plan := createTestPlan(t, svc)
	item := createTestItem(t, svc, plan.PlanID)
	_, err := svc.CreateSchedule(context.Background(), item.ItemID, CreateScheduleRequest{
		ScheduleType: domain.ScheduleTypeDaily,
		StartDate:    day("2025-01-01"),
		EndDate:      datep("2025-01-03"),
		TimesOfDay:   []string{"08:00"},
	})
	require.NoError(t, err)

	var checkedIn string
	tasks.between = func(ids []string) {
		if checkedIn != "" {
			return
		}
		checkedIn = ids[0]
		_, err := checkIns.UpdateStatus(context.Background(), UpdateTaskStatusRequest{TaskID: ids[0], Status: domain.TaskStatusCompleted})
		require.NoError(t, err)
	}
	t.Cleanup(func() { require.NotEmpty(t, checkedIn) })
	return svc, tasks, item, plan.PlanID
}

func TestStopPlan_KeepsTaskCompletedDuringCascade(t *testing.T) {
	svc, tasks, item, planID := setupInterleavedCascade(t)
	ctx := context.Background()

	result, err := svc.StopPlan(ctx, planID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.TasksStopped)

	list, err := tasks.ListTasksByItem(ctx, item.ItemID, repository.TaskFilters{Status: domain.TaskStatusCompleted})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.NotNil(t, list[0].CompleteTime)

	stopped, err := tasks.ListTasksByItem(ctx, item.ItemID, repository.TaskFilters{Status: domain.TaskStatusStopped})
	require.NoError(t, err)
	assert.Len(t, stopped, 2)
}

func TestSetItemStatus_KeepsTaskCompletedDuringCascade(t *testing.T) {
	svc, tasks, item, _ := setupInterleavedCascade(t)
	ctx := context.Background()

	result, err := svc.SetItemStatus(ctx, item.ItemID, domain.ItemStatusStopped)
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.TasksSkipped)

	list, err := tasks.ListTasksByItem(ctx, item.ItemID, repository.TaskFilters{Status: domain.TaskStatusCompleted})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.NotNil(t, list[0].CompleteTime)
}

func TestGenerateTasks_OpenEndedWindowTooLarge(t *testing.T) {
	svc, mem, _ := setupCarePlanService(t)
	ctx := context.Background()
	item := createTestItem(t, svc, createTestPlan(t, svc).PlanID)
	sc := createDailySchedule(t, svc, item.ItemID, nil)

	_, err := svc.GenerateTasks(ctx, GenerateTasksRequest{ScheduleID: sc.ScheduleID, From: day("2025-01-01"), To: day("9999-12-31")})
	assert.ErrorIs(t, err, ErrInvalidRange)
	assert.Len(t, taskSlots(t, svc, item.ItemID), 2)

	ids, err := mem.ListIDsByItem(ctx, item.ItemID, domain.TaskStatusPending)
	require.NoError(t, err)
	assert.Len(t, ids, 2)

	created, err := svc.GenerateTasks(ctx, GenerateTasksRequest{ScheduleID: sc.ScheduleID, From: day("2025-01-01"), To: day("2025-12-31")})
	require.NoError(t, err)
	assert.Equal(t, 365*2-2, created)
}
