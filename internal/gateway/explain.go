package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/ir"
)

// ErrNoPlanner is returned by Explain when the executor cannot explain plans.
var ErrNoPlanner = errors.New("executor does not support query plans")

// RejectionError is returned by Explain for text that Execute would reject.
type RejectionError struct {
	Rejected Rejected
}

func (e *RejectionError) Error() string {
	return e.Rejected.Message()
}

// Explain returns the store's query plan for read-only text without
// running it. Explain is not an execution and records no history.
func (g *Gateway) Explain(ctx context.Context, text string) ([]ir.PlanStep, error) {
	st := classify(text)
	switch st.class {
	case Mutating:
		return nil, &RejectionError{Rejected{Reason: ReasonNotReadOnly, Detail: st.detail}}
	case Unparseable:
		return nil, &RejectionError{Rejected{Reason: ReasonUnparseable, Detail: st.detail}}
	}
	if st.pragma {
		return nil, &RejectionError{Rejected{Reason: ReasonUnparseable, Detail: "PRAGMA statements have no query plan"}}
	}

	planner, ok := g.exec.(Planner)
	if !ok {
		return nil, ErrNoPlanner
	}

	ctx, cancel := context.WithTimeout(ctx, g.defaults.Timeout)
	defer cancel()

	steps, err := planner.ExplainPlan(ctx, trimStatement(st), nil)
	if err != nil {
		return nil, fmt.Errorf("explain: %w", err)
	}
	return steps, nil
}

// trimStatement drops trailing semicolons and comments.
func trimStatement(st statement) string {
	toks := significant(st.tokens)
	return st.text[:toks[len(toks)-1].end]
}
