package testutil

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/ir"
)

// Rows builds a result set of n rows with columns id and name.
func Rows(n int) *ir.ResultSet {
	cols := []string{"id", "name"}
	rs := &ir.ResultSet{Columns: cols, Rows: make([]ir.Row, 0, n)}
	for i := 1; i <= n; i++ {
		rs.Rows = append(rs.Rows, ir.NewRow(cols, []ir.Value{
			ir.Integer(int64(i)),
			ir.Text(fmt.Sprintf("row %d", i)),
		}))
	}
	return rs
}

// CountingExecutor returns a fixed result and counts its calls.
// It ignores the limit, so callers can check that the cap is enforced
// above the store.
type CountingExecutor struct {
	Result *ir.ResultSet
	Err    error

	calls atomic.Int64
	mu    sync.Mutex
	texts []string
	args  [][]any
}

// ExecuteRaw records the call and returns Result or Err.
func (e *CountingExecutor) ExecuteRaw(ctx context.Context, text string, args []any, limit int) (*ir.ResultSet, error) {
	e.calls.Add(1)
	e.mu.Lock()
	e.texts = append(e.texts, text)
	e.args = append(e.args, args)
	e.mu.Unlock()

	if e.Err != nil {
		return nil, e.Err
	}
	if e.Result == nil {
		return &ir.ResultSet{Columns: []string{}, Rows: []ir.Row{}}, nil
	}
	return e.Result, nil
}

// Calls returns the number of ExecuteRaw calls.
func (e *CountingExecutor) Calls() int {
	return int(e.calls.Load())
}

// Texts returns the query texts received, in call order.
func (e *CountingExecutor) Texts() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.texts...)
}

// LastArgs returns the arguments of the latest call.
func (e *CountingExecutor) LastArgs() []any {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.args) == 0 {
		return nil
	}
	return e.args[len(e.args)-1]
}

// BlockingExecutor blocks every call until its context ends or Release is
// called. A released call returns Result.
type BlockingExecutor struct {
	Result *ir.ResultSet

	once    sync.Once
	release chan struct{}
	started chan struct{}
}

// NewBlockingExecutor creates an executor whose calls block.
func NewBlockingExecutor() *BlockingExecutor {
	return &BlockingExecutor{
		release: make(chan struct{}),
		started: make(chan struct{}, 64),
	}
}

// ExecuteRaw blocks until ctx is done or Release is called.
func (e *BlockingExecutor) ExecuteRaw(ctx context.Context, text string, args []any, limit int) (*ir.ResultSet, error) {
	select {
	case e.started <- struct{}{}:
	default:
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-e.release:
		if e.Result == nil {
			return Rows(0), nil
		}
		return e.Result, nil
	}
}

// Started is signalled once per call as it begins blocking.
func (e *BlockingExecutor) Started() <-chan struct{} {
	return e.started
}

// Release unblocks all current and future calls.
func (e *BlockingExecutor) Release() {
	e.once.Do(func() { close(e.release) })
}
