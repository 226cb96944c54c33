package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"wisefido-careplan/internal/domain"
)

// PostgresPlansRepository 护理计划Repository实现
type PostgresPlansRepository struct {
	db *sql.DB
}

// NewPostgresPlansRepository 创建护理计划Repository
func NewPostgresPlansRepository(db *sql.DB) *PostgresPlansRepository {
	return &PostgresPlansRepository{db: db}
}

// 确保实现了接口
var _ PlansRepository = (*PostgresPlansRepository)(nil)

const planColumns = `
	plan_id::text,
	elder_id::text,
	title,
	description,
	status,
	start_date,
	end_date,
	creator_id::text,
	created_at,
	updated_at`

func scanPlan(row interface{ Scan(...any) error }) (*domain.Plan, error) {
	var p domain.Plan
	var description, creatorID sql.NullString
	var endDate sql.NullTime
	if err := row.Scan(
		&p.PlanID,
		&p.ElderID,
		&p.Title,
		&description,
		&p.Status,
		&p.StartDate,
		&endDate,
		&creatorID,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	p.Description = description.String
	p.CreatorID = creatorID.String
	p.EndDate = nullTimePtr(endDate)
	return &p, nil
}

// CreatePlan 创建护理计划
func (r *PostgresPlansRepository) CreatePlan(ctx context.Context, plan *domain.Plan) (string, error) {
	if plan == nil {
		return "", fmt.Errorf("plan is required")
	}
	if plan.Status == "" {
		plan.Status = domain.PlanStatusActive
	}

	query := `
		INSERT INTO care_plans (
			elder_id,
			title,
			description,
			status,
			start_date,
			end_date,
			creator_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING plan_id::text
	`

	var planID string
	err := r.db.QueryRowContext(ctx, query,
		plan.ElderID, plan.Title, emptyAsNull(plan.Description), string(plan.Status),
		plan.StartDate, timeArg(plan.EndDate), emptyAsNull(plan.CreatorID),
	).Scan(&planID)
	if err != nil {
		return "", fmt.Errorf("failed to create plan: %w", err)
	}
	plan.PlanID = planID
	return planID, nil
}

// GetPlan 获取护理计划
func (r *PostgresPlansRepository) GetPlan(ctx context.Context, planID string) (*domain.Plan, error) {
	if err := checkID("plan", planID); err != nil {
		return nil, err
	}
	query := `SELECT ` + planColumns + ` FROM care_plans WHERE plan_id = $1`
	plan, err := scanPlan(r.db.QueryRowContext(ctx, query, planID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("plan %s: %w", planID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	return plan, nil
}

// ListPlansByElder 查询长者的护理计划
func (r *PostgresPlansRepository) ListPlansByElder(ctx context.Context, elderID string, filters PlanFilters) ([]*domain.Plan, error) {
	if !validID(elderID) {
		return []*domain.Plan{}, nil
	}
	query := `SELECT ` + planColumns + ` FROM care_plans WHERE elder_id = $1`
	args := []any{elderID}
	if filters.Status != "" {
		args = append(args, string(filters.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filters.Order == "asc" {
		query += " ORDER BY start_date ASC, created_at ASC"
	} else {
		query += " ORDER BY start_date DESC, created_at DESC"
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	defer rows.Close()

	plans := []*domain.Plan{}
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		plans = append(plans, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate plans: %w", err)
	}
	return plans, nil
}

// UpdatePlan 部分更新护理计划
func (r *PostgresPlansRepository) UpdatePlan(ctx context.Context, planID string, patch PlanPatch) error {
	if err := checkID("plan", planID); err != nil {
		return err
	}
	b := newUpdateBuilder(planID)
	if patch.Title != nil {
		b.set("title", *patch.Title)
	}
	if patch.Description.Set {
		b.set("description", patch.Description.arg())
	}
	if patch.StartDate != nil {
		b.set("start_date", *patch.StartDate)
	}
	if patch.EndDate.Set {
		b.set("end_date", patch.EndDate.arg())
	}
	if b.empty() {
		_, err := r.GetPlan(ctx, planID)
		return err
	}

	result, err := r.db.ExecContext(ctx, `UPDATE care_plans SET `+b.clause()+` WHERE plan_id = $1`, b.args...)
	if err != nil {
		return fmt.Errorf("failed to update plan: %w", err)
	}
	return expectOne(result, "plan", planID)
}

// SetPlanStatus 更新计划状态
func (r *PostgresPlansRepository) SetPlanStatus(ctx context.Context, planID string, status domain.PlanStatus) error {
	if err := checkID("plan", planID); err != nil {
		return err
	}
	result, err := r.db.ExecContext(ctx,
		`UPDATE care_plans SET status = $2, updated_at = NOW() WHERE plan_id = $1`,
		planID, string(status),
	)
	if err != nil {
		return fmt.Errorf("failed to set plan status: %w", err)
	}
	return expectOne(result, "plan", planID)
}
