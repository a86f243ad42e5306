package history

import (
	"fmt"
	"time"
)

// Outcome kinds as stored on entries.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// Entry records one execution attempt. Entries are immutable once recorded.
type Entry struct {
	ID              int64     `json:"id"`
	QueryText       string    `json:"query_text"`
	ExecutedAt      time.Time `json:"executed_at"`
	ExecutionTimeMs int64     `json:"execution_time_ms"`
	Success         bool      `json:"success"`
	ResultSummary   *string   `json:"result_summary,omitempty"`
	ErrorMessage    *string   `json:"error_message,omitempty"`

	// Outcome keeps rejections and failures apart on read-back;
	// both have Success == false.
	Outcome string `json:"outcome"`
}

// Succeeded builds the entry for a successful execution.
func Succeeded(text string, at time.Time, elapsed time.Duration, rowCount int) Entry {
	summary := Summary(rowCount)
	return Entry{
		QueryText:       text,
		ExecutedAt:      at,
		ExecutionTimeMs: elapsed.Milliseconds(),
		Success:         true,
		ResultSummary:   &summary,
		Outcome:         OutcomeSuccess,
	}
}

// Unsuccessful builds the entry for a rejected or failed attempt.
// outcome is OutcomeRejected or OutcomeFailed.
func Unsuccessful(text string, at time.Time, elapsed time.Duration, outcome, message string) Entry {
	return Entry{
		QueryText:       text,
		ExecutedAt:      at,
		ExecutionTimeMs: elapsed.Milliseconds(),
		Success:         false,
		ErrorMessage:    &message,
		Outcome:         outcome,
	}
}

// Summary formats the result summary of a successful execution.
func Summary(rowCount int) string {
	return fmt.Sprintf("%d rows", rowCount)
}
