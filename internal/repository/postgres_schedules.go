package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"wisefido-careplan/internal/domain"

	"github.com/lib/pq"
)

// PostgresSchedulesRepository 重复规则Repository实现
type PostgresSchedulesRepository struct {
	db *sql.DB
}

// NewPostgresSchedulesRepository 创建重复规则Repository
func NewPostgresSchedulesRepository(db *sql.DB) *PostgresSchedulesRepository {
	return &PostgresSchedulesRepository{db: db}
}

var _ SchedulesRepository = (*PostgresSchedulesRepository)(nil)

const scheduleColumns = `
	schedule_id::text,
	item_id::text,
	schedule_type,
	start_date,
	end_date,
	times_of_day,
	weekdays,
	created_at,
	updated_at`

func scanSchedule(row interface{ Scan(...any) error }) (*domain.Schedule, error) {
	var s domain.Schedule
	var endDate sql.NullTime
	var times pq.StringArray
	var weekdays pq.Int64Array
	if err := row.Scan(
		&s.ScheduleID,
		&s.ItemID,
		&s.ScheduleType,
		&s.StartDate,
		&endDate,
		&times,
		&weekdays,
		&s.CreatedAt,
		&s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	s.EndDate = nullTimePtr(endDate)
	s.TimesOfDay = []string(times)
	s.Weekdays = fromInt64s(weekdays)
	return &s, nil
}

func toInt64s(in []int) pq.Int64Array {
	out := make(pq.Int64Array, len(in))
	for i, v := range in {
		out[i] = int64(v)
	}
	return out
}

func fromInt64s(in pq.Int64Array) []int {
	out := make([]int, len(in))
	for i, v := range in {
		out[i] = int(v)
	}
	return out
}

// CreateScheduleWithTasks 写入规则与初始任务（一个事务）
func (r *PostgresSchedulesRepository) CreateScheduleWithTasks(ctx context.Context, schedule *domain.Schedule, tasks []*domain.TaskInstance) (string, int, error) {
	if err := checkID("item", schedule.ItemID); err != nil {
		return "", 0, err
	}
	if schedule == nil {
		return "", 0, fmt.Errorf("schedule is required")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var scheduleID string
	err = tx.QueryRowContext(ctx,
		`INSERT INTO care_schedules (
			item_id, schedule_type, start_date, end_date, times_of_day, weekdays
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING schedule_id::text`,
		schedule.ItemID, string(schedule.ScheduleType), schedule.StartDate, timeArg(schedule.EndDate),
		pq.StringArray(schedule.TimesOfDay), toInt64s(schedule.Weekdays),
	).Scan(&scheduleID)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create schedule: %w", err)
	}

	for _, t := range tasks {
		sid := scheduleID
		t.ScheduleID = &sid
	}
	created, err := insertTasks(ctx, tx, tasks)
	if err != nil {
		return "", 0, err
	}

	if err := tx.Commit(); err != nil {
		return "", 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	schedule.ScheduleID = scheduleID
	return scheduleID, created, nil
}

// GetSchedule 获取重复规则
func (r *PostgresSchedulesRepository) GetSchedule(ctx context.Context, scheduleID string) (*domain.Schedule, error) {
	if err := checkID("schedule", scheduleID); err != nil {
		return nil, err
	}
	s, err := scanSchedule(r.db.QueryRowContext(ctx,
		`SELECT `+scheduleColumns+` FROM care_schedules WHERE schedule_id = $1`, scheduleID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("schedule %s: %w", scheduleID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get schedule: %w", err)
	}
	return s, nil
}

// ListSchedulesByItem 查询项目的重复规则
func (r *PostgresSchedulesRepository) ListSchedulesByItem(ctx context.Context, itemID string) ([]*domain.Schedule, error) {
	if !validID(itemID) {
		return []*domain.Schedule{}, nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+scheduleColumns+` FROM care_schedules WHERE item_id = $1 ORDER BY start_date ASC, created_at ASC`,
		itemID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}
	defer rows.Close()

	schedules := []*domain.Schedule{}
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan schedule: %w", err)
		}
		schedules = append(schedules, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate schedules: %w", err)
	}
	return schedules, nil
}

// UpdateSchedule 部分更新重复规则（不会重新生成任务）
func (r *PostgresSchedulesRepository) UpdateSchedule(ctx context.Context, scheduleID string, patch SchedulePatch) error {
	if err := checkID("schedule", scheduleID); err != nil {
		return err
	}
	b := newUpdateBuilder(scheduleID)
	if patch.ScheduleType != nil {
		b.set("schedule_type", string(*patch.ScheduleType))
	}
	if patch.StartDate != nil {
		b.set("start_date", *patch.StartDate)
	}
	if patch.EndDate.Set {
		b.set("end_date", patch.EndDate.arg())
	}
	if patch.TimesOfDay != nil {
		b.set("times_of_day", pq.StringArray(*patch.TimesOfDay))
	}
	if patch.Weekdays != nil {
		b.set("weekdays", toInt64s(*patch.Weekdays))
	}

	result, err := r.db.ExecContext(ctx, `UPDATE care_schedules SET `+b.clause()+` WHERE schedule_id = $1`, b.args...)
	if err != nil {
		return fmt.Errorf("failed to update schedule: %w", err)
	}
	return expectOne(result, "schedule", scheduleID)
}

// DeleteSchedule 删除重复规则；已生成任务保留，schedule_id 由外键置空
func (r *PostgresSchedulesRepository) DeleteSchedule(ctx context.Context, scheduleID string) error {
	if err := checkID("schedule", scheduleID); err != nil {
		return err
	}
	result, err := r.db.ExecContext(ctx, `DELETE FROM care_schedules WHERE schedule_id = $1`, scheduleID)
	if err != nil {
		return fmt.Errorf("failed to delete schedule: %w", err)
	}
	return expectOne(result, "schedule", scheduleID)
}
