package harness

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/history"
	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/ir"
	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/session"
	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/store"
)

// validIdentifier matches valid SQL identifiers (table/column names).
// Only allows alphanumeric and underscore, must start with letter or underscore.
var validIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s", event.Step, event.Action, event.Input)
			if event.Outcome != "" {
				fmt.Fprintf(&buf, " -> %s", event.Outcome)
			}
			buf.WriteByte('\n')
		}
	}

	return buf.String()
}

// checkExpect validates one traced step against its expect clause.
func checkExpect(event TraceEvent, expect ExpectClause) error {
	if expect.Outcome != "" && event.Outcome != expect.Outcome {
		return fmt.Errorf("expected outcome %q, got %q (%s)", expect.Outcome, event.Outcome, event.Reason)
	}
	if expect.Reason != "" && event.Reason != expect.Reason {
		return fmt.Errorf("expected reason %q, got %q", expect.Reason, event.Reason)
	}
	if expect.RowCount != nil {
		got := 0
		if event.RowCount != nil {
			got = *event.RowCount
		}
		if got != *expect.RowCount {
			return fmt.Errorf("expected %d rows, got %d", *expect.RowCount, got)
		}
	}
	if len(expect.Rows) > len(event.Rows) {
		return fmt.Errorf("expected at least %d rows, got %d", len(expect.Rows), len(event.Rows))
	}
	for i, want := range expect.Rows {
		if err := matchRow(event.Rows[i], want); err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
	}
	return nil
}

// matchRow checks the listed columns of want against row (subset match).
func matchRow(row ir.Row, want map[string]any) error {
	for _, key := range sortedKeys(want) {
		actual, ok := row.Lookup(key)
		if !ok {
			return fmt.Errorf("column %q not present in result columns: %v", key, row.Columns())
		}
		if !valuesEqual(want[key], actual) {
			return fmt.Errorf("column %q = %q, want %v", key, ir.String(actual), want[key])
		}
	}
	return nil
}

// valuesEqual compares a scenario literal with a fetched value.
// Numbers compare numerically, so 1200.5 matches REAL and 3 matches INTEGER.
func valuesEqual(expected any, actual ir.Value) bool {
	exp := ir.FromDriver(expected)
	if ir.IsNull(exp) || ir.IsNull(actual) {
		return ir.IsNull(exp) && ir.IsNull(actual)
	}
	return ir.Compare(exp, actual) == 0
}

// historyOldestFirst returns every history entry, oldest first.
func historyOldestFirst(sess *session.Session) []history.Entry {
	var entries []history.Entry
	for page := 0; ; page++ {
		p := sess.HistoryPage(page, 0)
		entries = append(entries, p.Entries...)
		if !p.HasNext {
			break
		}
	}
	slices.Reverse(entries)
	return entries
}

func assertHistoryCount(entries []history.Entry, trace []TraceEvent, assertion Assertion) error {
	if len(entries) != assertion.Count {
		return &AssertionError{
			Type:     AssertHistoryCount,
			Expected: fmt.Sprintf("%d history entries", assertion.Count),
			Actual:   fmt.Sprintf("%d entries", len(entries)),
			Trace:    trace,
		}
	}
	return nil
}

func assertHistoryOutcomes(entries []history.Entry, trace []TraceEvent, assertion Assertion) error {
	actual := make([]string, len(entries))
	for i, e := range entries {
		actual[i] = e.Outcome
	}
	if !slices.Equal(actual, assertion.Outcomes) {
		return &AssertionError{
			Type:     AssertHistoryOutcomes,
			Expected: fmt.Sprintf("outcomes %v", assertion.Outcomes),
			Actual:   fmt.Sprintf("outcomes %v", actual),
			Trace:    trace,
		}
	}
	return nil
}

func assertHistoryContains(entries []history.Entry, trace []TraceEvent, assertion Assertion) error {
	for _, e := range entries {
		if e.QueryText == assertion.Query && (assertion.Outcome == "" || e.Outcome == assertion.Outcome) {
			return nil
		}
	}

	expected := fmt.Sprintf("history entry %q", assertion.Query)
	if assertion.Outcome != "" {
		expected += " with outcome " + assertion.Outcome
	}
	return &AssertionError{
		Type:     AssertHistoryContains,
		Expected: expected,
		Actual:   "not found in history",
		Trace:    trace,
	}
}

// assertTraceCount checks how many steps of an action ran, optionally
// restricted to one outcome.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Action == assertion.Action && (assertion.Outcome == "" || event.Outcome == assertion.Outcome) {
			count++
		}
	}

	if count != assertion.Count {
		what := assertion.Action
		if assertion.Outcome != "" {
			what += " (" + assertion.Outcome + ")"
		}
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, what),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalState checks that the fixture row matching Where still holds
// the Expect values. It proves rejected statements left the data alone.
//
// Table and column names are validated against a whitelist pattern since
// identifiers can't be parameterized; values are always bound.
func assertFinalState(ctx context.Context, st *store.Store, assertion Assertion) error {
	if assertion.Table == "" {
		return fmt.Errorf("final_state assertion requires table name")
	}
	if !validIdentifier.MatchString(assertion.Table) {
		return fmt.Errorf("invalid table name %q: must match pattern %s", assertion.Table, validIdentifier.String())
	}

	whereSQL, whereArgs, err := buildWhereClause(assertion.Where)
	if err != nil {
		return err
	}

	query := fmt.Sprintf("SELECT * FROM %s", assertion.Table)
	if whereSQL != "" {
		query += " WHERE " + whereSQL
	}

	// Two rows are enough to detect an ambiguous assertion.
	rs, err := st.ExecuteRaw(ctx, query, whereArgs, 2)
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("query table %s", assertion.Table),
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}

	whereDesc := formatWhereClause(assertion.Where)
	switch len(rs.Rows) {
	case 0:
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("row in %s where %s", assertion.Table, whereDesc),
			Actual:   "row not found",
		}
	case 1:
	default:
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("exactly one row in %s where %s", assertion.Table, whereDesc),
			Actual:   "multiple rows matched (assertion is ambiguous)",
		}
	}

	if err := matchRow(rs.Rows[0], assertion.Expect); err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("row in %s where %s to match %v", assertion.Table, whereDesc, assertion.Expect),
			Actual:   err.Error(),
		}
	}
	return nil
}

// buildWhereClause constructs parameterized WHERE clause from assertion.Where.
// Returns SQL fragment, arguments slice, and error. Keys are sorted for determinism.
func buildWhereClause(where map[string]any) (string, []any, error) {
	if len(where) == 0 {
		return "", nil, nil
	}

	keys := sortedKeys(where)
	clauses := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys))

	for _, key := range keys {
		if !validIdentifier.MatchString(key) {
			return "", nil, fmt.Errorf("invalid column name %q in where clause: must match pattern %s", key, validIdentifier.String())
		}
		if where[key] == nil {
			clauses = append(clauses, fmt.Sprintf("%s IS NULL", key))
			continue
		}
		clauses = append(clauses, fmt.Sprintf("%s = ?", key))
		args = append(args, ir.ToParam(ir.FromDriver(where[key])))
	}

	return strings.Join(clauses, " AND "), args, nil
}

// formatWhereClause creates a human-readable description of WHERE conditions.
func formatWhereClause(where map[string]any) string {
	if len(where) == 0 {
		return "(no conditions)"
	}

	keys := sortedKeys(where)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, where[k]))
	}
	return strings.Join(parts, " AND ")
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// AssertionContext provides the session and fixture store to assertions.
type AssertionContext struct {
	Session *session.Session
	Store   *store.Store
	Ctx     context.Context
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// History and final_state assertions need actx.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	var entries []history.Entry
	if actx != nil && actx.Session != nil {
		entries = historyOldestFirst(actx.Session)
	}

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertHistoryCount, AssertHistoryOutcomes, AssertHistoryContains:
			if actx == nil || actx.Session == nil {
				err = fmt.Errorf("assertion[%d]: %s requires a session", i, assertion.Type)
				break
			}
			switch assertion.Type {
			case AssertHistoryCount:
				err = assertHistoryCount(entries, result.Trace, assertion)
			case AssertHistoryOutcomes:
				err = assertHistoryOutcomes(entries, result.Trace, assertion)
			default:
				err = assertHistoryContains(entries, result.Trace, assertion)
			}
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFinalState:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: final_state requires database context", i)
			} else {
				err = assertFinalState(actx.Ctx, actx.Store, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
