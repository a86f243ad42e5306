package gateway

import (
	"encoding/json"
	"time"

	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/history"
	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/ir"
	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/queryir"
)

// QueryRequest is either a structured FilterRequest or free-form RawRequest.
// Sealed: only this package's types implement it.
type QueryRequest interface {
	isQueryRequest()
}

// FilterRequest searches one table with a FilterSpec. Columns describe the
// table and drive validation and full-text expansion.
type FilterRequest struct {
	Spec    queryir.FilterSpec
	Columns []queryir.ColumnDescriptor
}

// RawRequest is operator-authored query text.
type RawRequest struct {
	Text string
}

func (FilterRequest) isQueryRequest() {}
func (RawRequest) isQueryRequest()    {}

// OutcomeKind tags an Outcome. Values match the history entry outcome tags.
type OutcomeKind string

const (
	KindSuccess  OutcomeKind = history.OutcomeSuccess
	KindRejected OutcomeKind = history.OutcomeRejected
	KindFailed   OutcomeKind = history.OutcomeFailed
)

// Outcome is the terminal state of one Execute call: Success, Rejected or
// Failed. Rejected requests never reached the store; Failed ones did.
type Outcome interface {
	Kind() OutcomeKind
	// Message is the one line shown to the operator.
	Message() string
}

// RejectionReason says why a request was refused before execution.
type RejectionReason string

const (
	ReasonNotReadOnly   RejectionReason = "not_read_only"
	ReasonUnparseable   RejectionReason = "unparseable"
	ReasonInvalidFilter RejectionReason = "invalid_filter"
)

// FailureKind says how an executing request failed.
type FailureKind string

const (
	FailureTimeout   FailureKind = "timeout"
	FailureStore     FailureKind = "store_error"
	FailureCancelled FailureKind = "cancellation_requested"
)

// Success carries the rows of a completed query.
type Success struct {
	Result *QueryResult
}

// Rejected is a request refused without store access.
type Rejected struct {
	Reason RejectionReason
	Detail string
}

// Failed is a request that reached the store and did not complete.
type Failed struct {
	Reason FailureKind
	Detail string
}

func (Success) Kind() OutcomeKind  { return KindSuccess }
func (Rejected) Kind() OutcomeKind { return KindRejected }
func (Failed) Kind() OutcomeKind   { return KindFailed }

func (s Success) Message() string {
	return history.Summary(s.Result.RowCount)
}

func (r Rejected) Message() string {
	if r.Detail == "" {
		return "rejected: " + string(r.Reason)
	}
	return "rejected (" + string(r.Reason) + "): " + r.Detail
}

func (f Failed) Message() string {
	if f.Detail == "" {
		return "failed: " + string(f.Reason)
	}
	return "failed (" + string(f.Reason) + "): " + f.Detail
}

// QueryResult is a successful result set. RowCount always equals len(Rows).
type QueryResult struct {
	Columns       []string
	Rows          []ir.Row
	RowCount      int
	ExecutionTime time.Duration
	ExecutedAt    time.Time
	// Query is the text sent to the store, after limit enforcement or
	// filter compilation.
	Query string
}

// MarshalJSON reports the execution time in milliseconds.
func (r *QueryResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Columns         []string  `json:"columns"`
		Rows            []ir.Row  `json:"rows"`
		RowCount        int       `json:"row_count"`
		ExecutionTimeMs int64     `json:"execution_time_ms"`
		ExecutedAt      time.Time `json:"executed_at"`
		Query           string    `json:"query"`
	}{
		Columns:         r.Columns,
		Rows:            r.Rows,
		RowCount:        r.RowCount,
		ExecutionTimeMs: r.ExecutionTime.Milliseconds(),
		ExecutedAt:      r.ExecutedAt,
		Query:           r.Query,
	})
}
