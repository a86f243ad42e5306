package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/ir"
	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/queryir"
)

// ExecuteRaw runs a read query and returns at most limit rows.
//
// Scanning stops once limit rows have been read, whatever the text itself
// asks for; limit <= 0 reads everything. Cancelling ctx interrupts the
// running statement.
//
// Returns an empty (non-nil) row slice when the query matches nothing.
func (s *Store) ExecuteRaw(ctx context.Context, text string, args []any, limit int) (*ir.ResultSet, error) {
	rows, err := s.db.QueryContext(ctx, text, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	return scanRows(rows, limit)
}

// FetchRows returns rows of table matching pred, capped at limit.
func (s *Store) FetchRows(ctx context.Context, table string, pred queryir.Predicate, limit int) (*ir.ResultSet, error) {
	text, args, err := s.compiler.Compile(table, pred, limit)
	if err != nil {
		return nil, err
	}
	return s.ExecuteRaw(ctx, text, args, limit)
}

// scanRows reads up to limit rows into ordered ir.Rows.
// Columns are shared by every row of the result.
func scanRows(rows *sql.Rows, limit int) (*ir.ResultSet, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	result := &ir.ResultSet{Columns: cols, Rows: []ir.Row{}}
	for rows.Next() {
		if limit > 0 && len(result.Rows) >= limit {
			break
		}

		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		vals := make([]ir.Value, len(cols))
		for i, v := range raw {
			vals[i] = ir.FromDriver(v)
		}
		result.Rows = append(result.Rows, ir.NewRow(cols, vals))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return result, nil
}
