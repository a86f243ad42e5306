package harness

import (
	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/ir"
)

// Trace event actions, one per step kind.
const (
	ActionQuery   = "query"
	ActionSearch  = "search"
	ActionReplay  = "replay"
	ActionLint    = "lint"
	ActionExplain = "explain"
	ActionView    = "view"
	ActionClear   = "clear_history"
)

// TraceEvent records what one flow step did.
//
// Events carry no timestamps or durations so traces are identical across
// runs and can be compared against golden files.
type TraceEvent struct {
	Step   int    `json:"step"`
	Action string `json:"action"`

	// Input is the query text, rendered search, or view description.
	Input string `json:"input,omitempty"`

	// Outcome is success/rejected/failed for executions and valid/invalid
	// for lint. Reason is the rejection or failure code, or the lint
	// classification.
	Outcome string `json:"outcome,omitempty"`
	Reason  string `json:"reason,omitempty"`

	// HistoryID is the entry recorded by an execution step.
	HistoryID int64 `json:"history_id,omitempty"`

	RowCount *int     `json:"row_count,omitempty"`
	Window   string   `json:"window,omitempty"`
	Rows     []ir.Row `json:"rows,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace has one event per flow step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains expectation and assertion failures.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends an event.
func (r *Result) AddTrace(event TraceEvent) {
	r.Trace = append(r.Trace, event)
}
