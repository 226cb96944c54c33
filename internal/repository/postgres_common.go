package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// dbtx *sql.DB 与 *sql.Tx 的公共部分，便于同一段 SQL 在事务内外复用
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// updateBuilder 构建 "SET a = $n, b = $m" 片段
type updateBuilder struct {
	sets []string
	args []any
}

func newUpdateBuilder(args ...any) *updateBuilder {
	return &updateBuilder{args: args}
}

func (b *updateBuilder) set(column string, value any) {
	b.args = append(b.args, value)
	b.sets = append(b.sets, fmt.Sprintf("%s = $%d", column, len(b.args)))
}

func (b *updateBuilder) empty() bool { return len(b.sets) == 0 }

func (b *updateBuilder) clause() string {
	return strings.Join(append(b.sets, "updated_at = NOW()"), ", ")
}

// validID 主键均为 UUID；非 UUID 的ID不可能命中任何行
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// checkID 非 UUID 的ID按不存在处理（否则 Postgres 报 22P02）
func checkID(what, id string) error {
	if !validID(id) {
		return fmt.Errorf("%s %s: %w", what, id, ErrNotFound)
	}
	return nil
}

// expectOne 检查影响行数，0 行视为不存在
func expectOne(result sql.Result, what, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", what, id, ErrNotFound)
	}
	return nil
}

func nullTimePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}

func nullStringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func timeArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func stringArg(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func emptyAsNull(s string) any {
	if s == "" {
		return nil
	}
	return s
}
