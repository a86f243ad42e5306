package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/history"
	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/ir"
	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/queryir"
	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/querysql"
)

// Default operational limits.
const (
	DefaultTimeout = 30 * time.Second
	DefaultMaxRows = 1000
)

// Executor is the store primitive the gateway drives. The timeout rides on
// ctx; limit caps the rows scanned.
type Executor interface {
	ExecuteRaw(ctx context.Context, text string, args []any, limit int) (*ir.ResultSet, error)
}

// Planner is implemented by executors that can explain a query plan.
type Planner interface {
	ExplainPlan(ctx context.Context, text string, args []any) ([]ir.PlanStep, error)
}

// Recorder receives exactly one entry per Execute call.
type Recorder interface {
	Record(entry history.Entry) history.Entry
}

// Options are per-call limits. Zero fields use the gateway's defaults.
type Options struct {
	Timeout time.Duration
	MaxRows int
}

// Gateway is the only path from a QueryRequest to the store.
//
// Every request is classified before execution; only read-only requests
// run, each with its own row cap and deadline. Each Execute call records
// one history entry whatever the outcome. Gateway holds no per-request
// state and is safe for concurrent use.
type Gateway struct {
	exec     Executor
	recorder Recorder
	compiler *querysql.SQLCompiler
	defaults Options
	now      func() time.Time
	logger   *slog.Logger
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithTimeout sets the default wall-clock limit per execution.
//
// Default: 30s (DefaultTimeout)
func WithTimeout(d time.Duration) GatewayOption {
	return func(g *Gateway) {
		if d > 0 {
			g.defaults.Timeout = d
		}
	}
}

// WithMaxRows sets the default row cap per execution.
//
// Default: 1000 rows (DefaultMaxRows)
func WithMaxRows(n int) GatewayOption {
	return func(g *Gateway) {
		if n > 0 {
			g.defaults.MaxRows = n
		}
	}
}

// WithNow replaces the wall clock used for timestamps and durations.
func WithNow(now func() time.Time) GatewayOption {
	return func(g *Gateway) {
		g.now = now
	}
}

// WithLogger sets the logger. The component attribute is added here.
func WithLogger(l *slog.Logger) GatewayOption {
	return func(g *Gateway) {
		g.logger = l.With("component", "gateway")
	}
}

// WithFoldFunc sets the SQL function compiled filters use for
// case-insensitive matching. Empty compiles plain LIKE.
func WithFoldFunc(name string) GatewayOption {
	return func(g *Gateway) {
		g.compiler.FoldFunc = name
	}
}

// New creates a Gateway over exec that records into rec.
func New(exec Executor, rec Recorder, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		exec:     exec,
		recorder: rec,
		compiler: querysql.NewSQLCompiler(),
		defaults: Options{Timeout: DefaultTimeout, MaxRows: DefaultMaxRows},
		now:      time.Now,
		logger:   slog.Default().With("component", "gateway"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Defaults returns the limits applied when a call passes zero Options.
func (g *Gateway) Defaults() Options {
	return g.defaults
}

// RunQuery executes raw text with the default limits.
func (g *Gateway) RunQuery(ctx context.Context, text string) Outcome {
	return g.Execute(ctx, RawRequest{Text: text}, Options{})
}

// Search executes a structured filter with the default limits.
func (g *Gateway) Search(ctx context.Context, spec queryir.FilterSpec, columns []queryir.ColumnDescriptor) Outcome {
	return g.Execute(ctx, FilterRequest{Spec: spec, Columns: columns}, Options{})
}

// prepared is a request ready for the store, or already resolved.
type prepared struct {
	text    string // sent to the store
	args    []any
	limit   int
	history string // recorded as the entry's query text
	class   Classification
	outcome Outcome // non-nil when the request never reaches the store
}

// Execute classifies req, runs it if read-only and returns its outcome.
//
// Rejections never touch the store. A read-only request runs under
// opts.Timeout and returns at most opts.MaxRows rows. Before returning,
// exactly one history entry is recorded for the attempt.
func (g *Gateway) Execute(ctx context.Context, req QueryRequest, opts Options) Outcome {
	opts = g.resolve(opts)
	started := g.now()

	p := g.prepare(req, opts)
	out := p.outcome
	elapsed := time.Duration(0)
	if out == nil {
		out, elapsed = g.run(ctx, p, opts.Timeout, started)
	}

	g.record(p.history, started, elapsed, out)

	g.logger.Info("query executed",
		"classification", p.class,
		"outcome", out.Kind(),
		"duration_ms", elapsed.Milliseconds(),
		"rows", rowCount(out),
	)
	return out
}

// Fail records and returns a StoreError for a request that could not be
// prepared by the caller (for example when column lookup failed).
func (g *Gateway) Fail(req QueryRequest, err error) Outcome {
	out := Failed{Reason: FailureStore, Detail: err.Error()}
	g.record(historyText(req), g.now(), 0, out)
	g.logger.Warn("query failed before execution", "error", err)
	return out
}

func (g *Gateway) resolve(opts Options) Options {
	if opts.Timeout <= 0 {
		opts.Timeout = g.defaults.Timeout
	}
	if opts.MaxRows <= 0 {
		opts.MaxRows = g.defaults.MaxRows
	}
	return opts
}

func (g *Gateway) prepare(req QueryRequest, opts Options) prepared {
	switch r := req.(type) {
	case RawRequest:
		st := classify(r.Text)
		p := prepared{history: r.Text, class: st.class, limit: opts.MaxRows}
		switch st.class {
		case Mutating:
			p.outcome = Rejected{Reason: ReasonNotReadOnly, Detail: st.detail}
		case Unparseable:
			p.outcome = Rejected{Reason: ReasonUnparseable, Detail: st.detail}
		default:
			p.text = enforceLimit(st, opts.MaxRows)
		}
		return p

	case FilterRequest:
		p := prepared{history: r.Spec.String(), class: ReadOnly}
		if err := queryir.Validate(r.Spec, r.Columns); err != nil {
			p.outcome = Rejected{Reason: ReasonInvalidFilter, Detail: err.Error()}
			return p
		}
		p.limit = opts.MaxRows
		if r.Spec.Limit > 0 && r.Spec.Limit < p.limit {
			p.limit = r.Spec.Limit
		}
		pred := queryir.Translate(r.Spec, r.Columns)
		text, args, err := g.compiler.Compile(r.Spec.Table, pred, p.limit)
		if err != nil {
			p.outcome = Rejected{Reason: ReasonInvalidFilter, Detail: err.Error()}
			return p
		}
		p.text, p.args = text, args
		p.history = querysql.Render(text, args)
		return p

	default:
		return prepared{
			class:   Unparseable,
			outcome: Rejected{Reason: ReasonUnparseable, Detail: fmt.Sprintf("unsupported request %T", req)},
		}
	}
}

type execResult struct {
	rs  *ir.ResultSet
	err error
}

// run executes p under its own deadline. The store call runs on its own
// goroutine; on deadline or cancellation the late result is discarded.
func (g *Gateway) run(ctx context.Context, p prepared, timeout time.Duration, start time.Time) (Outcome, time.Duration) {
	if err := ctx.Err(); err != nil {
		return g.failure(ctx, ctx, err, timeout), 0
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan execResult, 1) // buffered so an abandoned call never blocks
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- execResult{err: fmt.Errorf("store panic: %v", r)}
			}
		}()
		rs, err := g.exec.ExecuteRaw(runCtx, p.text, p.args, p.limit)
		done <- execResult{rs: rs, err: err}
	}()

	select {
	case res := <-done:
		elapsed := g.now().Sub(start)
		if res.err != nil {
			return g.failure(ctx, runCtx, res.err, timeout), elapsed
		}
		return Success{Result: g.result(res.rs, p, start, elapsed)}, elapsed
	case <-runCtx.Done():
		return g.failure(ctx, runCtx, runCtx.Err(), timeout), g.now().Sub(start)
	}
}

// failure maps an execution error. The caller's context wins over the
// gateway deadline; an expired caller deadline is still a timeout.
func (g *Gateway) failure(parent, runCtx context.Context, err error, timeout time.Duration) Failed {
	switch {
	case errors.Is(parent.Err(), context.DeadlineExceeded):
		return Failed{Reason: FailureTimeout, Detail: "query exceeded the caller's deadline"}
	case parent.Err() != nil:
		return Failed{Reason: FailureCancelled, Detail: parent.Err().Error()}
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		return Failed{Reason: FailureTimeout, Detail: fmt.Sprintf("query exceeded timeout of %s", timeout)}
	default:
		return Failed{Reason: FailureStore, Detail: err.Error()}
	}
}

func (g *Gateway) result(rs *ir.ResultSet, p prepared, at time.Time, elapsed time.Duration) *QueryResult {
	res := &QueryResult{
		Columns:       []string{},
		Rows:          []ir.Row{},
		ExecutionTime: elapsed,
		ExecutedAt:    at,
		Query:         p.text,
	}
	if rs != nil {
		if rs.Columns != nil {
			res.Columns = rs.Columns
		}
		if rs.Rows != nil {
			res.Rows = rs.Rows
		}
	}
	if len(res.Rows) > p.limit {
		res.Rows = res.Rows[:p.limit]
	}
	res.RowCount = len(res.Rows)
	return res
}

// record writes the attempt's entry. A panicking recorder is logged and
// never replaces the outcome.
func (g *Gateway) record(text string, at time.Time, elapsed time.Duration, out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("history record failed", "panic", r)
		}
	}()
	if g.recorder == nil {
		return
	}

	var entry history.Entry
	switch o := out.(type) {
	case Success:
		entry = history.Succeeded(text, at, elapsed, o.Result.RowCount)
	default:
		entry = history.Unsuccessful(text, at, elapsed, string(out.Kind()), out.Message())
	}
	g.recorder.Record(entry)
}

func historyText(req QueryRequest) string {
	switch r := req.(type) {
	case RawRequest:
		return r.Text
	case FilterRequest:
		return r.Spec.String()
	default:
		return ""
	}
}

func rowCount(out Outcome) int {
	if s, ok := out.(Success); ok {
		return s.Result.RowCount
	}
	return 0
}
