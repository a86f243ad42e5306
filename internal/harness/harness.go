package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/catalog"
	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/gateway"
	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/grid"
	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/history"
	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/session"
	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/store"
	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/testutil"
)

// Harness runs one scenario against one session.
type Harness struct {
	session *session.Session
	logger  *slog.Logger

	// grid is open over the latest successful result, if any.
	grid *grid.Grid
}

// Run executes a scenario and returns the result.
//
// Each scenario gets a fresh fixture database: the seed script is written to
// a scratch file which is then reopened read-only, the way operators open a
// data hub. Session ids, history ids and the clock are deterministic.
//
// Execution flow:
// 1. Seed the fixture database and open it read-only
// 2. Start a session over it
// 3. Execute flow steps with expect validation
// 4. Evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	dir, err := os.MkdirTemp("", "pmeql-scenario-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch directory: %w", err)
	}
	defer os.RemoveAll(dir)

	st, err := openFixture(ctx, scenario, filepath.Join(dir, "hub.db"))
	if err != nil {
		return nil, err
	}
	defer st.Close()

	var cat *catalog.Catalog
	if scenario.Catalog != "" {
		if cat, err = catalog.Load(scenario.Catalog); err != nil {
			return nil, fmt.Errorf("failed to load catalog: %w", err)
		}
	}

	var timeout time.Duration
	if scenario.Limits.Timeout != "" {
		if timeout, err = time.ParseDuration(scenario.Limits.Timeout); err != nil {
			return nil, fmt.Errorf("invalid timeout: %w", err)
		}
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
	sess := session.New(st, catalog.NewDescriber(st, cat), session.Config{
		MaxRows:      scenario.Limits.MaxRows,
		Timeout:      timeout,
		HistoryCap:   scenario.Limits.HistoryCap,
		GridPageSize: scenario.Limits.PageSize,
		IDs:          testutil.NewFixedIDGenerator(scenario.SessionID),
		Sequencer:    testutil.NewDeterministicClock(),
		Now:          testutil.NewSteppingTime(time.Time{}, time.Millisecond).Now,
		Logger:       logger,
	})
	defer sess.Close()

	h := &Harness{session: sess, logger: logger}

	result := NewResult()
	for i, step := range scenario.Flow {
		if err := h.executeStep(ctx, i, step, result); err != nil {
			result.AddError(err.Error())
		}
	}

	actx := &AssertionContext{Session: sess, Store: st, Ctx: ctx}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

// openFixture seeds path and reopens it read-only.
func openFixture(ctx context.Context, scenario *Scenario, path string) (*store.Store, error) {
	script := scenario.Seed
	if script == "" {
		data, err := os.ReadFile(scenario.SeedFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read seed file: %w", err)
		}
		script = string(data)
	}

	w, err := store.Open(path, store.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to create fixture database: %w", err)
	}
	err = w.Seed(ctx, script)
	if err == nil {
		// Leave WAL mode so the read-only handle sees a plain database file.
		_, err = w.ExecuteRaw(ctx, "PRAGMA journal_mode = DELETE", nil, 1)
	}
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, fmt.Errorf("failed to seed fixture database: %w", err)
	}

	st, err := store.Open(path, store.Options{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to reopen fixture database: %w", err)
	}
	return st, nil
}

// executeStep runs one flow step, traces it, and checks its expect clause.
// A returned error is a scenario failure; the flow continues.
func (h *Harness) executeStep(ctx context.Context, index int, step Step, result *Result) error {
	action, _ := step.action()
	event := TraceEvent{Step: index, Action: action}
	defer func() { result.AddTrace(event) }()

	switch action {
	case ActionQuery:
		event.Input = step.Query
		h.traceOutcome(ctx, &event, "", h.session.RunQuery(ctx, step.Query))

	case ActionSearch:
		event.Input = step.Search.String()
		out := h.session.Search(ctx, "", *step.Search)
		h.traceOutcome(ctx, &event, step.Search.Table, out)

	case ActionReplay:
		text, ok := h.session.ReplayHistoryEntry(step.Replay)
		if !ok {
			return fmt.Errorf("flow[%d]: no history entry %d to replay", index, step.Replay)
		}
		event.Input = text
		h.traceOutcome(ctx, &event, "", h.session.RunQuery(ctx, text))

	case ActionLint:
		event.Input = step.Lint
		report := h.session.Lint(step.Lint)
		event.Outcome = "invalid"
		if report.Valid {
			event.Outcome = "valid"
		}
		event.Reason = string(report.Classification)

	case ActionExplain:
		event.Input = step.Explain
		plan, err := h.session.Explain(ctx, step.Explain)
		if err != nil {
			var rej *gateway.RejectionError
			if errors.As(err, &rej) {
				event.Outcome = history.OutcomeRejected
				event.Reason = string(rej.Rejected.Reason)
				break
			}
			return fmt.Errorf("flow[%d]: explain: %w", index, err)
		}
		n := len(plan)
		event.Outcome = history.OutcomeSuccess
		event.RowCount = &n

	case ActionView:
		if h.grid == nil {
			return fmt.Errorf("flow[%d]: view needs a successful result first", index)
		}
		w, err := applyView(h.grid, *step.View)
		if err != nil {
			return fmt.Errorf("flow[%d]: view: %w", index, err)
		}
		event.Input = describeView(*step.View)
		event.Window = describeWindow(w)
		event.Rows = w.Rows
		n := len(w.Rows)
		event.RowCount = &n

	case ActionClear:
		h.session.ClearHistory()
	}

	h.logger.Info("step completed", "step", index, "action", action, "outcome", event.Outcome)

	if step.Expect != nil {
		if err := checkExpect(event, *step.Expect); err != nil {
			return fmt.Errorf("flow[%d]: %w", index, err)
		}
	}
	return nil
}

// traceOutcome fills event from an execution outcome and opens a grid over
// a successful result.
func (h *Harness) traceOutcome(ctx context.Context, event *TraceEvent, table string, out gateway.Outcome) {
	event.Outcome = string(out.Kind())
	if page := h.session.HistoryPage(0, 1); len(page.Entries) > 0 {
		event.HistoryID = page.Entries[0].ID
	}

	switch o := out.(type) {
	case gateway.Success:
		n := o.Result.RowCount
		event.RowCount = &n
		event.Rows = o.Result.Rows
		g, err := h.session.NewGrid(o.Result, h.session.GridColumns(ctx, table, o.Result))
		if err != nil {
			h.logger.Warn("grid unavailable", "error", err)
			return
		}
		h.grid = g
	case gateway.Rejected:
		event.Reason = string(o.Reason)
	case gateway.Failed:
		event.Reason = string(o.Reason)
	}
}

func applyView(g *grid.Grid, v ViewStep) (grid.Window, error) {
	if v.PageSize != 0 {
		if _, err := g.SetPageSize(v.PageSize); err != nil {
			return grid.Window{}, err
		}
	}
	g.SetTypedSort(v.TypedSort)
	if v.Sort != "" {
		dir := grid.Asc
		if v.Desc {
			dir = grid.Desc
		}
		g.SetSort(v.Sort, dir)
	}
	if v.Search != "" {
		g.SetSearchTerm(v.Search)
	}
	if v.Page > 0 {
		return g.SetPage(v.Page - 1), nil
	}
	return g.Current(), nil
}

func describeView(v ViewStep) string {
	desc := ""
	add := func(s string) {
		if desc != "" {
			desc += " "
		}
		desc += s
	}
	if v.PageSize != 0 {
		add(fmt.Sprintf("page_size=%d", v.PageSize))
	}
	if v.TypedSort {
		add("typed")
	}
	if v.Sort != "" {
		dir := grid.Asc
		if v.Desc {
			dir = grid.Desc
		}
		add(fmt.Sprintf("sort=%s:%s", v.Sort, dir))
	}
	if v.Search != "" {
		add(fmt.Sprintf("search=%q", v.Search))
	}
	if v.Page > 0 {
		add(fmt.Sprintf("page=%d", v.Page))
	}
	return desc
}

func describeWindow(w grid.Window) string {
	return fmt.Sprintf("%d-%d of %d (page %d/%d)", w.From, w.To, w.Total, w.Page+1, max(w.PageCount, 1))
}
