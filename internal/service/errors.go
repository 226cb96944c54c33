package service

import (
	"errors"
	"fmt"

	"wisefido-careplan/internal/repository"
	"wisefido-careplan/internal/schedule"
)

var (
	// ErrNotFound 引用的计划/项目/规则/任务不存在
	ErrNotFound = errors.New("not found")
	// ErrInvalidRange 日期窗口结束早于开始（或计划 end_date 不晚于 start_date）
	ErrInvalidRange = schedule.ErrInvalidRange
	// ErrDetailMismatch 详情类型与 item_type 不一致
	ErrDetailMismatch = errors.New("item detail does not match item_type")
	// ErrInvalidSchedule 规则字段不合法（weekdays 仅 WEEKLY 且非空、时间格式 HH:mm）
	ErrInvalidSchedule = errors.New("invalid schedule")
	// ErrInvalidStatus 未知的状态值
	ErrInvalidStatus = errors.New("invalid status")
)

// translate 将 repository.ErrNotFound 转为 service.ErrNotFound，其余原样包装
func translate(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%s: %v: %w", op, err, ErrNotFound)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
