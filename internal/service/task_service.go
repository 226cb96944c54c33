package service

import (
	"context"
	"fmt"
	"time"

	"wisefido-careplan/internal/domain"
	"wisefido-careplan/internal/repository"
	"wisefido-careplan/internal/store"

	"go.uber.org/zap"
)

// TaskService 单个任务的状态变更（打卡）
type TaskService interface {
	UpdateStatus(ctx context.Context, req UpdateTaskStatusRequest) (*domain.TaskInstance, error)
}

// UpdateTaskStatusRequest 更新任务状态请求
// Remark / ProofRef 为 nil 时保持原值
type UpdateTaskStatusRequest struct {
	TaskID   string
	Status   domain.TaskStatus
	Remark   *string
	ProofRef *string
}

type taskService struct {
	tasks  repository.TaskInstancesRepository
	events store.EventPublisher
	logger *zap.Logger
	now    func() time.Time
}

// NewTaskService 创建 TaskService 实例
func NewTaskService(tasks repository.TaskInstancesRepository, events store.EventPublisher, logger *zap.Logger) TaskService {
	if events == nil {
		events = store.NopEventPublisher{}
	}
	return &taskService{tasks: tasks, events: events, logger: logger, now: time.Now}
}

// UpdateStatus 设置任务状态。
// COMPLETED 记录 complete_time = now，其他状态清空 complete_time；不限制状态迁移路径。
func (s *taskService) UpdateStatus(ctx context.Context, req UpdateTaskStatusRequest) (*domain.TaskInstance, error) {
	if !req.Status.Valid() {
		return nil, fmt.Errorf("task status %q: %w", req.Status, ErrInvalidStatus)
	}

	patch := repository.TaskPatch{Status: &req.Status}
	if req.Status == domain.TaskStatusCompleted {
		patch.CompleteTime = repository.Some(s.now())
	} else {
		patch.CompleteTime = repository.Null[time.Time]()
	}
	if req.Remark != nil {
		patch.Remark = repository.Some(*req.Remark)
	}
	if req.ProofRef != nil {
		patch.ProofRef = repository.Some(*req.ProofRef)
	}

	if err := s.tasks.UpdateTask(ctx, req.TaskID, patch); err != nil {
		return nil, translate(err, "update task status")
	}

	task, err := s.tasks.GetTask(ctx, req.TaskID)
	if err != nil {
		return nil, translate(err, "get task")
	}

	s.logger.Debug("Care task status updated",
		zap.String("task_id", req.TaskID),
		zap.String("status", string(req.Status)),
	)
	if err := s.events.Publish(ctx, store.Event{
		Type:   store.EventTaskStatusChanged,
		ItemID: task.ItemID,
		TaskID: task.TaskID,
		Status: string(task.Status),
	}); err != nil {
		s.logger.Warn("Failed to publish task status event", zap.String("task_id", req.TaskID), zap.Error(err))
	}
	return task, nil
}
