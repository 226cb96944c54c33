package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"wisefido-careplan/internal/domain"

	"github.com/lib/pq"
)

// insertBatchSize 每条 INSERT 的最大行数（6 个参数/行，远低于 65535 的参数上限）
const insertBatchSize = 500

// PostgresTaskInstancesRepository 任务实例Repository实现
// 唯一索引 uq_care_task_slot (item_id, schedule_id, task_date, COALESCE(task_time, ''))
type PostgresTaskInstancesRepository struct {
	db *sql.DB
}

// NewPostgresTaskInstancesRepository 创建任务实例Repository
func NewPostgresTaskInstancesRepository(db *sql.DB) *PostgresTaskInstancesRepository {
	return &PostgresTaskInstancesRepository{db: db}
}

var _ TaskInstancesRepository = (*PostgresTaskInstancesRepository)(nil)

const taskColumns = `
	task_id::text,
	item_id::text,
	schedule_id::text,
	task_date,
	task_time,
	status,
	complete_time,
	remark,
	proof_ref,
	created_at,
	updated_at`

func scanTask(row interface{ Scan(...any) error }) (*domain.TaskInstance, error) {
	var t domain.TaskInstance
	var scheduleID, taskTime, remark, proofRef sql.NullString
	var completeTime sql.NullTime
	if err := row.Scan(
		&t.TaskID,
		&t.ItemID,
		&scheduleID,
		&t.TaskDate,
		&taskTime,
		&t.Status,
		&completeTime,
		&remark,
		&proofRef,
		&t.CreatedAt,
		&t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	t.ScheduleID = nullStringPtr(scheduleID)
	t.TaskTime = nullStringPtr(taskTime)
	t.CompleteTime = nullTimePtr(completeTime)
	t.Remark = nullStringPtr(remark)
	t.ProofRef = nullStringPtr(proofRef)
	return &t, nil
}

// insertTasks 批量写入任务，冲突槽位跳过；返回实际写入行数
func insertTasks(ctx context.Context, q dbtx, tasks []*domain.TaskInstance) (int, error) {
	created := 0
	for start := 0; start < len(tasks); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(tasks) {
			end = len(tasks)
		}
		batch := tasks[start:end]

		values := make([]string, 0, len(batch))
		args := make([]any, 0, len(batch)*6)
		for i, t := range batch {
			status := t.Status
			if status == "" {
				status = domain.TaskStatusPending
			}
			n := i * 6
			values = append(values, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d)", n+1, n+2, n+3, n+4, n+5, n+6))
			args = append(args, t.ItemID, stringArg(t.ScheduleID), t.TaskDate, stringArg(t.TaskTime), string(status), timeArg(t.CompleteTime))
		}

		result, err := q.ExecContext(ctx,
			`INSERT INTO care_task_instances (item_id, schedule_id, task_date, task_time, status, complete_time)
			 VALUES `+strings.Join(values, ", ")+`
			 ON CONFLICT DO NOTHING`,
			args...,
		)
		if err != nil {
			return created, fmt.Errorf("failed to insert tasks: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return created, fmt.Errorf("failed to get rows affected: %w", err)
		}
		created += int(n)
	}
	return created, nil
}

func deleteBySchedule(ctx context.Context, q dbtx, scheduleID string, from, to time.Time) (int64, error) {
	result, err := q.ExecContext(ctx,
		`DELETE FROM care_task_instances
		 WHERE schedule_id = $1 AND task_date >= $2 AND task_date <= $3`,
		scheduleID, from, to,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete tasks by schedule: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// GetTask 获取任务实例
func (r *PostgresTaskInstancesRepository) GetTask(ctx context.Context, taskID string) (*domain.TaskInstance, error) {
	if err := checkID("task", taskID); err != nil {
		return nil, err
	}
	t, err := scanTask(r.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM care_task_instances WHERE task_id = $1`, taskID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("task %s: %w", taskID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return t, nil
}

// ListTasksByItem 查询项目的任务（按日期、时间排序）
func (r *PostgresTaskInstancesRepository) ListTasksByItem(ctx context.Context, itemID string, filters TaskFilters) ([]*domain.TaskInstance, error) {
	if !validID(itemID) {
		return []*domain.TaskInstance{}, nil
	}
	where := []string{"item_id = $1"}
	args := []any{itemID}
	if filters.From != nil {
		args = append(args, *filters.From)
		where = append(where, fmt.Sprintf("task_date >= $%d", len(args)))
	}
	if filters.To != nil {
		args = append(args, *filters.To)
		where = append(where, fmt.Sprintf("task_date <= $%d", len(args)))
	}
	if filters.Status != "" {
		args = append(args, string(filters.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM care_task_instances
		 WHERE `+strings.Join(where, " AND ")+`
		 ORDER BY task_date ASC, task_time ASC NULLS FIRST`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []*domain.TaskInstance{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tasks: %w", err)
	}
	return tasks, nil
}

// InsertTasks 批量写入任务（已存在的槽位跳过）
func (r *PostgresTaskInstancesRepository) InsertTasks(ctx context.Context, tasks []*domain.TaskInstance) (int, error) {
	return insertTasks(ctx, r.db, tasks)
}

// DeleteBySchedule 删除规则在 [from, to] 内的任务
func (r *PostgresTaskInstancesRepository) DeleteBySchedule(ctx context.Context, scheduleID string, from, to time.Time) (int64, error) {
	if !validID(scheduleID) {
		return 0, nil
	}
	return deleteBySchedule(ctx, r.db, scheduleID, from, to)
}

// GenerateForSchedule 规则级 advisory lock 保护下的（覆盖）生成
// 同一规则的并发生成串行执行，避免 delete-then-insert 交错
func (r *PostgresTaskInstancesRepository) GenerateForSchedule(ctx context.Context, scheduleID string, from, to time.Time, tasks []*domain.TaskInstance, override bool) (int, error) {
	if err := checkID("schedule", scheduleID); err != nil {
		return 0, err
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "care_schedule:"+scheduleID); err != nil {
		return 0, fmt.Errorf("failed to lock schedule: %w", err)
	}

	if override {
		if _, err := deleteBySchedule(ctx, tx, scheduleID, from, to); err != nil {
			return 0, err
		}
	}

	created, err := insertTasks(ctx, tx, tasks)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return created, nil
}

// UpdateTask 部分更新任务
func (r *PostgresTaskInstancesRepository) UpdateTask(ctx context.Context, taskID string, patch TaskPatch) error {
	if err := checkID("task", taskID); err != nil {
		return err
	}
	b := newUpdateBuilder(taskID)
	if patch.Status != nil {
		b.set("status", string(*patch.Status))
	}
	if patch.CompleteTime.Set {
		b.set("complete_time", patch.CompleteTime.arg())
	}
	if patch.Remark.Set {
		b.set("remark", patch.Remark.arg())
	}
	if patch.ProofRef.Set {
		b.set("proof_ref", patch.ProofRef.arg())
	}

	result, err := r.db.ExecContext(ctx, `UPDATE care_task_instances SET `+b.clause()+` WHERE task_id = $1`, b.args...)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	return expectOne(result, "task", taskID)
}

// BulkUpdateStatus 按ID批量更新状态，complete_time 随状态维护。
// status = from 作为条件，读取ID之后被单独改过状态的任务保持不变。
func (r *PostgresTaskInstancesRepository) BulkUpdateStatus(ctx context.Context, taskIDs []string, from, to domain.TaskStatus) (int64, error) {
	if len(taskIDs) == 0 {
		return 0, nil
	}
	result, err := r.db.ExecContext(ctx,
		`UPDATE care_task_instances
		 SET status = $2,
		     complete_time = CASE WHEN $2 = 'COMPLETED' THEN COALESCE(complete_time, NOW()) ELSE NULL END,
		     updated_at = NOW()
		 WHERE task_id = ANY($1::uuid[]) AND status = $3`,
		pq.Array(taskIDs), string(to), string(from),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to bulk update task status: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// ListIDsByPlan 查询计划下指定状态的任务ID
func (r *PostgresTaskInstancesRepository) ListIDsByPlan(ctx context.Context, planID string, status domain.TaskStatus) ([]string, error) {
	if !validID(planID) {
		return []string{}, nil
	}
	return r.listIDs(ctx,
		`SELECT t.task_id::text
		 FROM care_task_instances t
		 JOIN care_plan_items i ON i.item_id = t.item_id
		 WHERE i.plan_id = $1 AND t.status = $2
		 ORDER BY t.task_date, t.task_time`,
		planID, string(status),
	)
}

// ListIDsByItem 查询项目下指定状态的任务ID
func (r *PostgresTaskInstancesRepository) ListIDsByItem(ctx context.Context, itemID string, status domain.TaskStatus) ([]string, error) {
	if !validID(itemID) {
		return []string{}, nil
	}
	return r.listIDs(ctx,
		`SELECT task_id::text FROM care_task_instances
		 WHERE item_id = $1 AND status = $2
		 ORDER BY task_date, task_time`,
		itemID, string(status),
	)
}

func (r *PostgresTaskInstancesRepository) listIDs(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list task ids: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan task id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate task ids: %w", err)
	}
	return ids, nil
}
