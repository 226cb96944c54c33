package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"wisefido-careplan/internal/domain"
)

// PostgresPlanItemsRepository 计划项目Repository实现
// 详情分表存储：medication_item_details / rehab_item_details（item_id 为主键）
type PostgresPlanItemsRepository struct {
	db *sql.DB
}

// NewPostgresPlanItemsRepository 创建计划项目Repository
func NewPostgresPlanItemsRepository(db *sql.DB) *PostgresPlanItemsRepository {
	return &PostgresPlanItemsRepository{db: db}
}

var _ PlanItemsRepository = (*PostgresPlanItemsRepository)(nil)

const itemSelect = `
	SELECT
		i.item_id::text,
		i.plan_id::text,
		i.item_type,
		i.name,
		i.description,
		i.status,
		i.start_date,
		i.end_date,
		i.created_at,
		i.updated_at,
		m.drug_name,
		m.dosage,
		m.frequency_type,
		m.instructions,
		x.exercise_name,
		x.exercise_type,
		x.guide_resource_url
	FROM care_plan_items i
	LEFT JOIN medication_item_details m ON m.item_id = i.item_id
	LEFT JOIN rehab_item_details x ON x.item_id = i.item_id`

func scanItem(row interface{ Scan(...any) error }) (*domain.PlanItem, error) {
	var it domain.PlanItem
	var description sql.NullString
	var endDate sql.NullTime
	var drugName, dosage, frequencyType, instructions sql.NullString
	var exerciseName, exerciseType, guideURL sql.NullString
	if err := row.Scan(
		&it.ItemID,
		&it.PlanID,
		&it.ItemType,
		&it.Name,
		&description,
		&it.Status,
		&it.StartDate,
		&endDate,
		&it.CreatedAt,
		&it.UpdatedAt,
		&drugName,
		&dosage,
		&frequencyType,
		&instructions,
		&exerciseName,
		&exerciseType,
		&guideURL,
	); err != nil {
		return nil, err
	}
	it.Description = description.String
	it.EndDate = nullTimePtr(endDate)

	switch it.ItemType {
	case domain.ItemTypeMedication:
		if drugName.Valid {
			it.Detail = &domain.MedicationDetail{
				DrugName:      drugName.String,
				Dosage:        dosage.String,
				FrequencyType: frequencyType.String,
				Instructions:  nullStringPtr(instructions),
			}
		}
	case domain.ItemTypeRehab:
		if exerciseName.Valid {
			it.Detail = &domain.RehabDetail{
				ExerciseName:     exerciseName.String,
				ExerciseType:     nullStringPtr(exerciseType),
				GuideResourceURL: nullStringPtr(guideURL),
			}
		}
	}
	return &it, nil
}

// writeDetail 写入（或覆盖）项目详情
func writeDetail(ctx context.Context, q dbtx, itemID string, detail domain.ItemDetail) error {
	switch d := detail.(type) {
	case *domain.MedicationDetail:
		_, err := q.ExecContext(ctx,
			`INSERT INTO medication_item_details (item_id, drug_name, dosage, frequency_type, instructions)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (item_id)
			 DO UPDATE SET drug_name = EXCLUDED.drug_name,
			               dosage = EXCLUDED.dosage,
			               frequency_type = EXCLUDED.frequency_type,
			               instructions = EXCLUDED.instructions`,
			itemID, d.DrugName, d.Dosage, d.FrequencyType, stringArg(d.Instructions),
		)
		if err != nil {
			return fmt.Errorf("failed to write medication detail: %w", err)
		}
	case *domain.RehabDetail:
		_, err := q.ExecContext(ctx,
			`INSERT INTO rehab_item_details (item_id, exercise_name, exercise_type, guide_resource_url)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (item_id)
			 DO UPDATE SET exercise_name = EXCLUDED.exercise_name,
			               exercise_type = EXCLUDED.exercise_type,
			               guide_resource_url = EXCLUDED.guide_resource_url`,
			itemID, d.ExerciseName, stringArg(d.ExerciseType), stringArg(d.GuideResourceURL),
		)
		if err != nil {
			return fmt.Errorf("failed to write rehab detail: %w", err)
		}
	default:
		return fmt.Errorf("unsupported item detail %T", detail)
	}
	return nil
}

// CreateItem 创建计划项目（项目 + 详情，一个事务）
func (r *PostgresPlanItemsRepository) CreateItem(ctx context.Context, item *domain.PlanItem) (string, error) {
	if item == nil {
		return "", fmt.Errorf("item is required")
	}
	if !item.DetailMatches() {
		return "", fmt.Errorf("item detail does not match item_type %s", item.ItemType)
	}
	if err := checkID("plan", item.PlanID); err != nil {
		return "", err
	}
	if item.Status == "" {
		item.Status = domain.ItemStatusActive
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var itemID string
	err = tx.QueryRowContext(ctx,
		`INSERT INTO care_plan_items (
			plan_id, item_type, name, description, status, start_date, end_date
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING item_id::text`,
		item.PlanID, string(item.ItemType), item.Name, emptyAsNull(item.Description),
		string(item.Status), item.StartDate, timeArg(item.EndDate),
	).Scan(&itemID)
	if err != nil {
		return "", fmt.Errorf("failed to create item: %w", err)
	}

	if err := writeDetail(ctx, tx, itemID, item.Detail); err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}
	item.ItemID = itemID
	return itemID, nil
}

// GetItem 获取计划项目（含详情）
func (r *PostgresPlanItemsRepository) GetItem(ctx context.Context, itemID string) (*domain.PlanItem, error) {
	if err := checkID("item", itemID); err != nil {
		return nil, err
	}
	item, err := scanItem(r.db.QueryRowContext(ctx, itemSelect+` WHERE i.item_id = $1`, itemID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("item %s: %w", itemID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return item, nil
}

// ListItemsByPlan 查询计划下的项目，status 为空不过滤
func (r *PostgresPlanItemsRepository) ListItemsByPlan(ctx context.Context, planID string, status domain.ItemStatus) ([]*domain.PlanItem, error) {
	if !validID(planID) {
		return []*domain.PlanItem{}, nil
	}
	query := itemSelect + ` WHERE i.plan_id = $1`
	args := []any{planID}
	if status != "" {
		query += ` AND i.status = $2`
		args = append(args, string(status))
	}
	query += ` ORDER BY i.start_date ASC, i.created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	items := []*domain.PlanItem{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate items: %w", err)
	}
	return items, nil
}

// UpdateItem 部分更新计划项目；详情替换与项目更新在同一事务
func (r *PostgresPlanItemsRepository) UpdateItem(ctx context.Context, itemID string, patch ItemPatch) error {
	if err := checkID("item", itemID); err != nil {
		return err
	}
	b := newUpdateBuilder(itemID)
	if patch.Name != nil {
		b.set("name", *patch.Name)
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

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// 即使没有普通字段也要 touch 一次，用于确认项目存在
	result, err := tx.ExecContext(ctx, `UPDATE care_plan_items SET `+b.clause()+` WHERE item_id = $1`, b.args...)
	if err != nil {
		return fmt.Errorf("failed to update item: %w", err)
	}
	if err := expectOne(result, "item", itemID); err != nil {
		return err
	}

	if patch.Detail != nil {
		if err := writeDetail(ctx, tx, itemID, patch.Detail); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// SetItemStatus 更新项目状态
func (r *PostgresPlanItemsRepository) SetItemStatus(ctx context.Context, itemID string, status domain.ItemStatus) error {
	if err := checkID("item", itemID); err != nil {
		return err
	}
	result, err := r.db.ExecContext(ctx,
		`UPDATE care_plan_items SET status = $2, updated_at = NOW() WHERE item_id = $1`,
		itemID, string(status),
	)
	if err != nil {
		return fmt.Errorf("failed to set item status: %w", err)
	}
	return expectOne(result, "item", itemID)
}

// SetStatusByPlan 批量更新计划下所有项目的状态
func (r *PostgresPlanItemsRepository) SetStatusByPlan(ctx context.Context, planID string, status domain.ItemStatus) (int64, error) {
	if !validID(planID) {
		return 0, nil
	}
	result, err := r.db.ExecContext(ctx,
		`UPDATE care_plan_items SET status = $2, updated_at = NOW() WHERE plan_id = $1`,
		planID, string(status),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to set item status by plan: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// DeleteItem 删除计划项目（详情 + 项目，一个事务）
func (r *PostgresPlanItemsRepository) DeleteItem(ctx context.Context, itemID string) error {
	if err := checkID("item", itemID); err != nil {
		return err
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM medication_item_details WHERE item_id = $1`, itemID); err != nil {
		return fmt.Errorf("failed to delete medication detail: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM rehab_item_details WHERE item_id = $1`, itemID); err != nil {
		return fmt.Errorf("failed to delete rehab detail: %w", err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM care_plan_items WHERE item_id = $1`, itemID)
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	if err := expectOne(result, "item", itemID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
