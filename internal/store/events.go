package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// EventType 生命周期事件类型
type EventType string

const (
	EventPlanStopped       EventType = "plan.stopped"
	EventItemStopped       EventType = "item.stopped"
	EventTasksGenerated    EventType = "tasks.generated"
	EventTaskStatusChanged EventType = "task.status_changed"
)

// Event 护理计划生命周期事件（外部统计、报表按 stream 消费）
type Event struct {
	Type       EventType `json:"type"`
	PlanID     string    `json:"plan_id,omitempty"`
	ItemID     string    `json:"item_id,omitempty"`
	ScheduleID string    `json:"schedule_id,omitempty"`
	TaskID     string    `json:"task_id,omitempty"`
	Status     string    `json:"status,omitempty"`
	Count      int64     `json:"count,omitempty"`
	At         time.Time `json:"at"`
}

// EventPublisher 事件发布
type EventPublisher interface {
	Publish(ctx context.Context, ev Event) error
}

// streamAdder *redis.Client 的 XADD 子集
type streamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// RedisEventPublisher 以 XADD 写入 Redis Streams
type RedisEventPublisher struct {
	c      streamAdder
	stream string
	maxLen int64
}

// NewRedisEventPublisher stream 近似裁剪到 maxLen 条（<=0 不裁剪）
func NewRedisEventPublisher(c *redis.Client, stream string, maxLen int64) *RedisEventPublisher {
	return &RedisEventPublisher{c: c, stream: stream, maxLen: maxLen}
}

func (p *RedisEventPublisher) Publish(ctx context.Context, ev Event) error {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"type":      string(ev.Type),
			"data":      string(data),
			"timestamp": fmt.Sprintf("%d", ev.At.Unix()),
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}

	if err := p.c.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to publish event to %s: %w", p.stream, err)
	}
	return nil
}

// NopEventPublisher Redis 未启用时使用
type NopEventPublisher struct{}

func (NopEventPublisher) Publish(context.Context, Event) error { return nil }
