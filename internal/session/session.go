package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/gateway"
	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/grid"
	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/history"
	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/ir"
	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/queryir"
	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/store"
)

// Schema describes the tables a session can search.
type Schema interface {
	Tables(ctx context.Context) ([]string, error)
	Columns(ctx context.Context, table string) ([]queryir.ColumnDescriptor, error)
}

// Config sizes a session. Zero values take the package defaults.
type Config struct {
	MaxRows         int
	Timeout         time.Duration
	HistoryCap      int
	HistoryPageSize int
	GridPageSize    int

	IDs       IDGenerator       // default UUIDv7Generator
	Sequencer history.Sequencer // default history.NewClock()
	Now       func() time.Time  // default time.Now
	Logger    *slog.Logger      // default slog.Default()
}

// Session is one operator's exploration session.
//
// It owns a history store and the gateway that writes to it; nothing is
// shared between sessions. Close clears the history.
type Session struct {
	id           string
	createdAt    time.Time
	history      *history.Store
	gateway      *gateway.Gateway
	schema       Schema
	gridPageSize int
	logger       *slog.Logger
}

// New starts a session executing through exec and describing tables with schema.
func New(exec gateway.Executor, schema Schema, cfg Config) *Session {
	if cfg.IDs == nil {
		cfg.IDs = UUIDv7Generator{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.GridPageSize <= 0 {
		cfg.GridPageSize = grid.DefaultPageSize
	}

	id := cfg.IDs.Generate()
	logger := cfg.Logger.With("session", id)

	h := history.New(history.Config{
		Cap:       cfg.HistoryCap,
		PageSize:  cfg.HistoryPageSize,
		Sequencer: cfg.Sequencer,
	})
	g := gateway.New(exec, h,
		gateway.WithMaxRows(cfg.MaxRows),
		gateway.WithTimeout(cfg.Timeout),
		gateway.WithNow(cfg.Now),
		gateway.WithLogger(logger),
	)

	s := &Session{
		id:           id,
		createdAt:    cfg.Now(),
		history:      h,
		gateway:      g,
		schema:       schema,
		gridPageSize: cfg.GridPageSize,
		logger:       logger.With("component", "session"),
	}
	s.logger.Info("session started")
	return s
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// CreatedAt returns when the session started.
func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

// Limits returns the gateway's default limits for this session.
func (s *Session) Limits() gateway.Options {
	return s.gateway.Defaults()
}

// Search runs a structured search over table. The spec's own Table is
// replaced by table when table is non-empty.
//
// An unknown table is rejected as an invalid filter; any other schema
// lookup error is recorded as a store failure. Either way one history entry
// is written.
func (s *Session) Search(ctx context.Context, table string, spec queryir.FilterSpec) gateway.Outcome {
	if table != "" {
		spec.Table = table
	}

	var cols []queryir.ColumnDescriptor
	if spec.Table != "" {
		var err error
		cols, err = s.schema.Columns(ctx, spec.Table)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return s.gateway.Fail(gateway.FilterRequest{Spec: spec}, err)
		}
	}
	return s.gateway.Execute(ctx, gateway.FilterRequest{Spec: spec, Columns: cols}, gateway.Options{})
}

// RunQuery runs raw query text through the gateway.
func (s *Session) RunQuery(ctx context.Context, text string) gateway.Outcome {
	return s.gateway.RunQuery(ctx, text)
}

// Execute runs req with per-call limits.
func (s *Session) Execute(ctx context.Context, req gateway.QueryRequest, opts gateway.Options) gateway.Outcome {
	return s.gateway.Execute(ctx, req, opts)
}

// Lint checks query text without running or recording it.
func (s *Session) Lint(text string) gateway.LintReport {
	return gateway.Lint(text)
}

// Explain returns the plan of read-only text without running or recording it.
func (s *Session) Explain(ctx context.Context, text string) ([]ir.PlanStep, error) {
	return s.gateway.Explain(ctx, text)
}

// Tables lists the tables available for search.
func (s *Session) Tables(ctx context.Context) ([]string, error) {
	return s.schema.Tables(ctx)
}

// Columns describes table.
func (s *Session) Columns(ctx context.Context, table string) ([]queryir.ColumnDescriptor, error) {
	return s.schema.Columns(ctx, table)
}

// HistoryPage returns one page of history, newest first.
func (s *Session) HistoryPage(pageNumber, pageSize int) history.Page {
	return s.history.Page(pageNumber, pageSize)
}

// HistoryEntry returns the entry with id.
func (s *Session) HistoryEntry(id int64) (history.Entry, bool) {
	return s.history.Get(id)
}

// ReplayHistoryEntry returns the recorded text of entry id for
// re-submission. It does not execute anything.
func (s *Session) ReplayHistoryEntry(id int64) (string, bool) {
	return s.history.Replay(id)
}

// ClearHistory drops every history entry.
func (s *Session) ClearHistory() {
	s.history.Clear()
	s.logger.Info("history cleared")
}

// NewGrid opens a grid over a successful result. columns describes the
// result's columns; nil derives plain descriptors from the result itself.
// Each call returns an independent grid.
func (s *Session) NewGrid(res *gateway.QueryResult, columns []queryir.ColumnDescriptor) (*grid.Grid, error) {
	if res == nil {
		return nil, errors.New("no result")
	}
	if columns == nil {
		columns = queryir.DescribeColumns(res.Columns)
	}
	return grid.New(res.Rows, columns, s.gridPageSize)
}

// GridColumns describes the columns of a search result over table, using
// the table's descriptors where names match.
func (s *Session) GridColumns(ctx context.Context, table string, res *gateway.QueryResult) []queryir.ColumnDescriptor {
	described := queryir.DescribeColumns(res.Columns)
	if table == "" {
		return described
	}
	known, err := s.schema.Columns(ctx, table)
	if err != nil {
		return described
	}
	for i, c := range described {
		if d, ok := queryir.FindColumn(known, c.Key); ok {
			described[i] = d
		}
	}
	return described
}

// Close ends the session and clears its history.
func (s *Session) Close() {
	s.history.Invalidate()
	s.logger.Info("session closed")
}
