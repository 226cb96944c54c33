package repository

import (
	"context"
	"testing"
	"time"

	"wisefido-careplan/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedMemoryItem(t *testing.T, s *MemoryCarePlanStore) (planID, itemID string) {
	t.Helper()
	ctx := context.Background()
	planID, err := s.CreatePlan(ctx, &domain.Plan{ElderID: "elder-1", Title: "p", StartDate: day("2024-01-01")})
	require.NoError(t, err)
	itemID, err = s.CreateItem(ctx, &domain.PlanItem{
		PlanID:    planID,
		ItemType:  domain.ItemTypeRehab,
		Name:      "步行",
		StartDate: day("2024-01-01"),
		Detail:    &domain.RehabDetail{ExerciseName: "walk"},
	})
	require.NoError(t, err)
	return planID, itemID
}

func TestMemoryStore_CreateItemRequiresPlan(t *testing.T) {
	s := NewMemoryCarePlanStore()
	_, err := s.CreateItem(context.Background(), &domain.PlanItem{
		PlanID:   "missing",
		ItemType: domain.ItemTypeRehab,
		Detail:   &domain.RehabDetail{ExerciseName: "walk"},
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	s := NewMemoryCarePlanStore()
	_, itemID := seedMemoryItem(t, s)

	got, err := s.GetItem(context.Background(), itemID)
	require.NoError(t, err)
	got.Detail.(*domain.RehabDetail).ExerciseName = "changed"

	again, err := s.GetItem(context.Background(), itemID)
	require.NoError(t, err)
	assert.Equal(t, "walk", again.Detail.(*domain.RehabDetail).ExerciseName)
}

func TestMemoryStore_InsertSkipsExistingSlots(t *testing.T) {
	s := NewMemoryCarePlanStore()
	ctx := context.Background()
	_, itemID := seedMemoryItem(t, s)

	at := "08:00"
	newTasks := func() []*domain.TaskInstance {
		return []*domain.TaskInstance{
			{ItemID: itemID, TaskDate: day("2024-01-01"), TaskTime: &at},
			{ItemID: itemID, TaskDate: day("2024-01-02"), TaskTime: &at},
		}
	}
	scheduleID, created, err := s.CreateScheduleWithTasks(ctx, &domain.Schedule{
		ItemID: itemID, ScheduleType: domain.ScheduleTypeDaily, StartDate: day("2024-01-01"),
	}, newTasks())
	require.NoError(t, err)
	assert.Equal(t, 2, created)

	again := newTasks()
	for _, task := range again {
		task.ScheduleID = &scheduleID
	}
	created, err = s.InsertTasks(ctx, again)
	require.NoError(t, err)
	assert.Equal(t, 0, created)

	tasks, err := s.ListTasksByItem(ctx, itemID, TaskFilters{})
	require.NoError(t, err)
	assert.Len(t, tasks, 2)
}

func TestMemoryStore_GenerateOverrideReplacesWindow(t *testing.T) {
	s := NewMemoryCarePlanStore()
	ctx := context.Background()
	_, itemID := seedMemoryItem(t, s)

	scheduleID, _, err := s.CreateScheduleWithTasks(ctx, &domain.Schedule{
		ItemID: itemID, ScheduleType: domain.ScheduleTypeDaily, StartDate: day("2024-01-01"),
	}, []*domain.TaskInstance{
		{ItemID: itemID, TaskDate: day("2024-01-01")},
		{ItemID: itemID, TaskDate: day("2024-01-05")},
	})
	require.NoError(t, err)

	tasks, err := s.ListTasksByItem(ctx, itemID, TaskFilters{})
	require.NoError(t, err)
	completed := domain.TaskStatusCompleted
	require.NoError(t, s.UpdateTask(ctx, tasks[0].TaskID, TaskPatch{Status: &completed, CompleteTime: Some(time.Now())}))

	created, err := s.GenerateForSchedule(ctx, scheduleID, day("2024-01-01"), day("2024-01-02"),
		[]*domain.TaskInstance{{ItemID: itemID, ScheduleID: &scheduleID, TaskDate: day("2024-01-01")}}, true)
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	tasks, err = s.ListTasksByItem(ctx, itemID, TaskFilters{})
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, domain.TaskStatusPending, tasks[0].Status)
	assert.Nil(t, tasks[0].CompleteTime)
	assert.Equal(t, day("2024-01-05"), tasks[1].TaskDate)
}

func TestMemoryStore_DeleteScheduleKeepsTasks(t *testing.T) {
	s := NewMemoryCarePlanStore()
	ctx := context.Background()
	_, itemID := seedMemoryItem(t, s)

	scheduleID, _, err := s.CreateScheduleWithTasks(ctx, &domain.Schedule{
		ItemID: itemID, ScheduleType: domain.ScheduleTypeOnce, StartDate: day("2024-01-01"),
	}, []*domain.TaskInstance{{ItemID: itemID, TaskDate: day("2024-01-01")}})
	require.NoError(t, err)

	require.NoError(t, s.DeleteSchedule(ctx, scheduleID))
	assert.ErrorIs(t, s.DeleteSchedule(ctx, scheduleID), ErrNotFound)

	tasks, err := s.ListTasksByItem(ctx, itemID, TaskFilters{})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Nil(t, tasks[0].ScheduleID)
}

func TestMemoryStore_DeleteItemCascades(t *testing.T) {
	s := NewMemoryCarePlanStore()
	ctx := context.Background()
	_, itemID := seedMemoryItem(t, s)

	scheduleID, _, err := s.CreateScheduleWithTasks(ctx, &domain.Schedule{
		ItemID: itemID, ScheduleType: domain.ScheduleTypeOnce, StartDate: day("2024-01-01"),
	}, []*domain.TaskInstance{{ItemID: itemID, TaskDate: day("2024-01-01")}})
	require.NoError(t, err)

	require.NoError(t, s.DeleteItem(ctx, itemID))

	_, err = s.GetSchedule(ctx, scheduleID)
	assert.ErrorIs(t, err, ErrNotFound)
	tasks, err := s.ListTasksByItem(ctx, itemID, TaskFilters{})
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestMemoryStore_BulkUpdateMaintainsCompleteTime(t *testing.T) {
	s := NewMemoryCarePlanStore()
	ctx := context.Background()
	planID, itemID := seedMemoryItem(t, s)

	_, err := s.InsertTasks(ctx, []*domain.TaskInstance{
		{ItemID: itemID, TaskDate: day("2024-01-01")},
		{ItemID: itemID, TaskDate: day("2024-01-02")},
	})
	require.NoError(t, err)

	ids, err := s.ListIDsByPlan(ctx, planID, domain.TaskStatusPending)
	require.NoError(t, err)
	require.Len(t, ids, 2)

	n, err := s.BulkUpdateStatus(ctx, ids, domain.TaskStatusPending, domain.TaskStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	task, err := s.GetTask(ctx, ids[0])
	require.NoError(t, err)
	assert.NotNil(t, task.CompleteTime)

	_, err = s.BulkUpdateStatus(ctx, ids, domain.TaskStatusCompleted, domain.TaskStatusSkipped)
	require.NoError(t, err)
	task, err = s.GetTask(ctx, ids[0])
	require.NoError(t, err)
	assert.Nil(t, task.CompleteTime)

	ids, err = s.ListIDsByItem(ctx, itemID, domain.TaskStatusPending)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestMemoryStore_ListTasksUntimedFirst(t *testing.T) {
	s := NewMemoryCarePlanStore()
	ctx := context.Background()
	_, itemID := seedMemoryItem(t, s)

	at := "07:30"
	_, err := s.InsertTasks(ctx, []*domain.TaskInstance{
		{ItemID: itemID, TaskDate: day("2024-01-02"), TaskTime: &at},
		{ItemID: itemID, TaskDate: day("2024-01-02")},
		{ItemID: itemID, TaskDate: day("2024-01-01"), TaskTime: &at},
	})
	require.NoError(t, err)

	from := day("2024-01-02")
	tasks, err := s.ListTasksByItem(ctx, itemID, TaskFilters{From: &from})
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Nil(t, tasks[0].TaskTime)
	assert.Equal(t, "07:30", *tasks[1].TaskTime)
}

func TestMemoryStore_BulkUpdateOnlyFromStatus(t *testing.T) {
	s := NewMemoryCarePlanStore()
	ctx := context.Background()
	_, itemID := seedMemoryItem(t, s)

	_, err := s.InsertTasks(ctx, []*domain.TaskInstance{
		{ItemID: itemID, TaskDate: day("2024-01-01")},
		{ItemID: itemID, TaskDate: day("2024-01-02")},
	})
	require.NoError(t, err)
	ids, err := s.ListIDsByItem(ctx, itemID, domain.TaskStatusPending)
	require.NoError(t, err)
	require.Len(t, ids, 2)

	done := domain.TaskStatusCompleted
	require.NoError(t, s.UpdateTask(ctx, ids[0], TaskPatch{Status: &done, CompleteTime: Some(time.Now())}))

	n, err := s.BulkUpdateStatus(ctx, ids, domain.TaskStatusPending, domain.TaskStatusStopped)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	task, err := s.GetTask(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCompleted, task.Status)
	assert.NotNil(t, task.CompleteTime)
}
