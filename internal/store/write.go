package store

import (
	"context"
	"errors"
	"fmt"
)

// ErrReadOnly is returned by write operations on a read-only store.
var ErrReadOnly = errors.New("store is read-only")

// Seed runs a SQL script (one or more statements) in a single transaction.
//
// Seed is the only write path. It exists for loading fixture data into
// scratch databases; operator queries never reach it.
func (s *Store) Seed(ctx context.Context, script string) error {
	if s.readOnly {
		return fmt.Errorf("seed: %w", ErrReadOnly)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("seed: begin: %w", err)
	}
	if _, err := tx.ExecContext(ctx, script); err != nil {
		tx.Rollback()
		return fmt.Errorf("seed: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed: commit: %w", err)
	}
	return nil
}
