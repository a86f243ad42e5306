package harness

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/history"
	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/ir"
	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/session"
	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/store"
	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/testutil"
)

func sampleTrace() []TraceEvent {
	return []TraceEvent{
		{Step: 0, Action: ActionQuery, Input: "SELECT 1", Outcome: "success"},
		{Step: 1, Action: ActionQuery, Input: "DROP TABLE t", Outcome: "rejected", Reason: "not_read_only"},
		{Step: 2, Action: ActionView, Input: "page=2"},
		{Step: 3, Action: ActionQuery, Input: "DELETE FROM t", Outcome: "rejected", Reason: "not_read_only"},
	}
}

func entries(outcomes ...string) []history.Entry {
	out := make([]history.Entry, len(outcomes))
	for i, o := range outcomes {
		out[i] = history.Entry{ID: int64(i + 1), QueryText: "q" + string(rune('0'+i)), Outcome: o}
	}
	return out
}

func TestAssertTraceCount(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceCount(trace, Assertion{Type: AssertTraceCount, Action: ActionQuery, Count: 3}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Type: AssertTraceCount, Action: ActionQuery, Outcome: "rejected", Count: 2}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Type: AssertTraceCount, Action: ActionReplay, Count: 0}))

	err := assertTraceCount(trace, Assertion{Type: AssertTraceCount, Action: ActionQuery, Outcome: "failed", Count: 1})
	require.Error(t, err)

	var assertErr *AssertionError
	require.True(t, errors.As(err, &assertErr))
	assert.Equal(t, AssertTraceCount, assertErr.Type)
	assert.Equal(t, "1 occurrences of query (failed)", assertErr.Expected)
	assert.Equal(t, "0 occurrences", assertErr.Actual)
}

func TestAssertHistoryCount(t *testing.T) {
	assert.NoError(t, assertHistoryCount(entries("success", "rejected"), nil, Assertion{Count: 2}))

	err := assertHistoryCount(entries("success"), nil, Assertion{Count: 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Expected: 3 history entries")
	assert.Contains(t, err.Error(), "Actual: 1 entries")
}

func TestAssertHistoryOutcomes(t *testing.T) {
	got := entries("success", "rejected", "failed")

	assert.NoError(t, assertHistoryOutcomes(got, nil, Assertion{Outcomes: []string{"success", "rejected", "failed"}}))

	err := assertHistoryOutcomes(got, nil, Assertion{Outcomes: []string{"rejected", "success", "failed"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outcomes [success rejected failed]")
}

func TestAssertHistoryContains(t *testing.T) {
	got := []history.Entry{
		{ID: 1, QueryText: "SELECT 1", Outcome: "success"},
		{ID: 2, QueryText: "DROP TABLE t", Outcome: "rejected"},
	}

	assert.NoError(t, assertHistoryContains(got, nil, Assertion{Query: "DROP TABLE t"}))
	assert.NoError(t, assertHistoryContains(got, nil, Assertion{Query: "DROP TABLE t", Outcome: "rejected"}))

	err := assertHistoryContains(got, nil, Assertion{Query: "DROP TABLE t", Outcome: "success"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `history entry "DROP TABLE t" with outcome success`)
	assert.Contains(t, err.Error(), "not found in history")
}

func TestAssertionError_ErrorFormat(t *testing.T) {
	err := &AssertionError{
		Type:     AssertTraceCount,
		Expected: "2 occurrences of query",
		Actual:   "1 occurrences",
		Trace: []TraceEvent{
			{Step: 0, Action: ActionQuery, Input: "SELECT 1", Outcome: "success"},
			{Step: 1, Action: ActionClear},
		},
	}

	assert.Equal(t,
		"Assertion failed: trace_count\n"+
			"  Expected: 2 occurrences of query\n"+
			"  Actual: 1 occurrences\n"+
			"\nFull trace:\n"+
			"  [0] query SELECT 1 -> success\n"+
			"  [1] clear_history \n",
		err.Error())
}

func TestCheckExpect(t *testing.T) {
	rows := []ir.Row{
		ir.RowOf(ir.F{Column: "id", Value: ir.Integer(1)}, ir.F{Column: "budget", Value: ir.Real(1200.5)}),
		ir.RowOf(ir.F{Column: "id", Value: ir.Integer(2)}, ir.F{Column: "budget", Value: ir.Null{}}),
	}
	event := TraceEvent{Outcome: "success", RowCount: intPtr(2), Rows: rows}

	assert.NoError(t, checkExpect(event, ExpectClause{}))
	assert.NoError(t, checkExpect(event, ExpectClause{
		Outcome:  "success",
		RowCount: intPtr(2),
		Rows:     []map[string]any{{"budget": 1200.5}, {"id": 2, "budget": nil}},
	}))

	err := checkExpect(event, ExpectClause{Rows: []map[string]any{{"budget": nil}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `row 0: column "budget" = "1200.5", want <nil>`)

	err = checkExpect(TraceEvent{Outcome: "rejected", Reason: "not_read_only"}, ExpectClause{Outcome: "rejected", Reason: "unparseable"})
	require.Error(t, err)
	assert.Equal(t, `expected reason "unparseable", got "not_read_only"`, err.Error())

	err = checkExpect(TraceEvent{Outcome: "rejected"}, ExpectClause{RowCount: intPtr(0)})
	assert.NoError(t, err, "no rows traced counts as zero")
}

func TestValuesEqual(t *testing.T) {
	tests := []struct {
		name     string
		expected any
		actual   ir.Value
		want     bool
	}{
		{"text", "a", ir.Text("a"), true},
		{"text_mismatch", "a", ir.Text("b"), false},
		{"int_vs_integer", 3, ir.Integer(3), true},
		{"int_vs_real", 300, ir.Real(300), true},
		{"float_vs_real", 2.5, ir.Real(2.5), true},
		{"nil_vs_null", nil, ir.Null{}, true},
		{"nil_vs_value", nil, ir.Integer(0), false},
		{"value_vs_null", 0, ir.Null{}, false},
		{"text_vs_integer", "3", ir.Integer(3), false},
		{"bool_vs_integer", true, ir.Integer(1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, valuesEqual(tt.expected, tt.actual))
		})
	}
}

func TestBuildWhereClause_Empty(t *testing.T) {
	sql, args, err := buildWhereClause(nil)
	require.NoError(t, err)
	assert.Empty(t, sql)
	assert.Nil(t, args)
}

func TestBuildWhereClause_MultipleKeys_SortedDeterministic(t *testing.T) {
	sql, args, err := buildWhereClause(map[string]any{"status": "完了", "id": 2, "notes": nil})
	require.NoError(t, err)
	assert.Equal(t, "id = ? AND notes IS NULL AND status = ?", sql)
	assert.Equal(t, []any{int64(2), "完了"}, args)
}

func TestBuildWhereClause_NoInterpolation(t *testing.T) {
	sql, args, err := buildWhereClause(map[string]any{"name": "x'; DROP TABLE projects; --"})
	require.NoError(t, err)
	assert.Equal(t, "name = ?", sql)
	assert.Equal(t, []any{"x'; DROP TABLE projects; --"}, args)
}

func TestBuildWhereClause_InvalidColumnName(t *testing.T) {
	for _, col := range []string{"id; DROP", "1col", "a-b", ""} {
		_, _, err := buildWhereClause(map[string]any{col: 1})
		require.Error(t, err, "column %q", col)
		assert.Contains(t, err.Error(), "invalid column name")
	}
}

func TestFormatWhereClause(t *testing.T) {
	assert.Equal(t, "(no conditions)", formatWhereClause(nil))
	assert.Equal(t, "id=1 AND name=Alpha", formatWhereClause(map[string]any{"name": "Alpha", "id": 1}))
}

func openSeeded(t *testing.T) *store.Store {
	t.Helper()
	path := testutil.SeedDatabase(t, `
CREATE TABLE projects (id INTEGER PRIMARY KEY, name TEXT, status TEXT, budget REAL);
INSERT INTO projects VALUES (1, 'Alpha Plant', '進行中', 1200.5), (2, 'beta line', '完了', 300), (3, 'Gamma Yard', '進行中', NULL);
`)
	st, err := store.Open(path, store.Options{ReadOnly: true})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestAssertFinalState(t *testing.T) {
	st := openSeeded(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		assertion Assertion
		wantErr   string
	}{
		{
			name:      "row_found",
			assertion: Assertion{Table: "projects", Where: map[string]any{"id": 2}, Expect: map[string]any{"name": "beta line", "budget": 300}},
		},
		{
			name:      "null_where",
			assertion: Assertion{Table: "projects", Where: map[string]any{"budget": nil}, Expect: map[string]any{"id": 3}},
		},
		{
			name:      "unicode_where",
			assertion: Assertion{Table: "projects", Where: map[string]any{"status": "完了"}, Expect: map[string]any{"id": 2}},
		},
		{
			name:      "row_not_found",
			assertion: Assertion{Table: "projects", Where: map[string]any{"id": 9}, Expect: map[string]any{"name": "x"}},
			wantErr:   "row not found",
		},
		{
			name:      "ambiguous",
			assertion: Assertion{Table: "projects", Where: map[string]any{"status": "進行中"}, Expect: map[string]any{"id": 1}},
			wantErr:   "multiple rows matched",
		},
		{
			name:      "value_mismatch",
			assertion: Assertion{Table: "projects", Where: map[string]any{"id": 1}, Expect: map[string]any{"name": "Beta"}},
			wantErr:   `column "name" = "Alpha Plant", want Beta`,
		},
		{
			name:      "missing_column",
			assertion: Assertion{Table: "projects", Where: map[string]any{"id": 1}, Expect: map[string]any{"owner": "x"}},
			wantErr:   `column "owner" not present`,
		},
		{
			name:      "table_not_found",
			assertion: Assertion{Table: "missing", Expect: map[string]any{"id": 1}},
			wantErr:   "query error",
		},
		{
			name:      "invalid_table_name",
			assertion: Assertion{Table: "projects; DROP TABLE projects", Expect: map[string]any{"id": 1}},
			wantErr:   "invalid table name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.assertion.Type = AssertFinalState
			err := assertFinalState(ctx, st, tt.assertion)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEvaluateAssertions(t *testing.T) {
	st := openSeeded(t)
	sess := session.New(st, st, session.Config{
		IDs:       testutil.NewFixedIDGenerator(""),
		Sequencer: testutil.NewDeterministicClock(),
		Now:       testutil.NewSteppingTime(time.Time{}, time.Millisecond).Now,
	})
	defer sess.Close()

	ctx := context.Background()
	sess.RunQuery(ctx, "SELECT 1")
	sess.RunQuery(ctx, "DELETE FROM projects")

	result := NewResult()
	actx := &AssertionContext{Session: sess, Store: st, Ctx: ctx}

	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertHistoryCount, Count: 2},
		{Type: AssertHistoryOutcomes, Outcomes: []string{"success", "rejected"}},
		{Type: AssertHistoryContains, Query: "DELETE FROM projects", Outcome: "rejected"},
		{Type: AssertFinalState, Table: "projects", Where: map[string]any{"id": 1}, Expect: map[string]any{"name": "Alpha Plant"}},
		{Type: AssertTraceCount, Action: ActionQuery, Count: 0},
	}, actx)
	assert.Empty(t, errs)

	errs = EvaluateAssertions(result, []Assertion{
		{Type: AssertHistoryCount, Count: 5},
		{Type: "trace_order"},
	}, actx)
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "history_count")
	assert.Contains(t, errs[1], `unknown assertion type "trace_order"`)
}

func TestEvaluateAssertions_WithoutContext(t *testing.T) {
	errs := EvaluateAssertions(NewResult(), []Assertion{
		{Type: AssertHistoryCount, Count: 0},
		{Type: AssertFinalState, Table: "projects", Expect: map[string]any{"id": 1}},
		{Type: AssertTraceCount, Action: ActionQuery, Count: 0},
	}, nil)

	require.Len(t, errs, 2)
	assert.Equal(t, "assertion[0]: history_count requires a session", errs[0])
	assert.Equal(t, "assertion[1]: final_state requires database context", errs[1])
}
