package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/ir"
	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/queryir"
)

// ErrNotFound is returned when a table does not exist.
var ErrNotFound = errors.New("not found")

// Tables lists user tables and views, sorted by name.
// SQLite's internal sqlite_* tables are excluded.
func (s *Store) Tables(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name FROM sqlite_master
		WHERE type IN ('table', 'view') AND substr(name, 1, 7) <> 'sqlite_'
		ORDER BY name COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	tables := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// Columns describes the columns of table in declaration order.
//
// Every introspected column is sortable and labelled by its name; the kind
// follows the declared type's affinity. Catalog overlays may refine these.
func (s *Store) Columns(ctx context.Context, table string) ([]queryir.ColumnDescriptor, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, type FROM pragma_table_info(?) ORDER BY cid`, table)
	if err != nil {
		return nil, fmt.Errorf("table info %q: %w", table, err)
	}
	defer rows.Close()

	var cols []queryir.ColumnDescriptor
	for rows.Next() {
		var name, declared string
		if err := rows.Scan(&name, &declared); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		cols = append(cols, queryir.ColumnDescriptor{
			Key:      name,
			Label:    name,
			Sortable: true,
			Kind:     queryir.ParseColumnKind(declared),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("table info %q: %w", table, err)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("table %q: %w", table, ErrNotFound)
	}
	return cols, nil
}

// ExplainPlan reports SQLite's query plan for text without running it.
func (s *Store) ExplainPlan(ctx context.Context, text string, args []any) ([]ir.PlanStep, error) {
	rows, err := s.db.QueryContext(ctx, "EXPLAIN QUERY PLAN "+text, args...)
	if err != nil {
		return nil, fmt.Errorf("explain: %w", err)
	}
	defer rows.Close()

	steps := []ir.PlanStep{}
	for rows.Next() {
		var step ir.PlanStep
		var notUsed int64
		if err := rows.Scan(&step.ID, &step.Parent, &notUsed, &step.Detail); err != nil {
			return nil, fmt.Errorf("scan plan step: %w", err)
		}
		steps = append(steps, step)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("explain: %w", err)
	}
	return steps, nil
}
