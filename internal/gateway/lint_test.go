package gateway

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/testutil"
)

func TestLint(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		valid       bool
		warnings    int
		suggestions int
	}{
		{"clean with limit", "SELECT id FROM projects LIMIT 10", true, 0, 0},
		{"no limit", "SELECT id FROM projects", true, 0, 1},
		{"no from", "SELECT 1 LIMIT 1", true, 1, 0},
		{"comment", "SELECT id FROM projects -- hi\nLIMIT 1", true, 1, 0},
		{"union", "SELECT id FROM a UNION SELECT id FROM b LIMIT 1", true, 1, 0},
		{"union in string", "SELECT 'union' FROM a LIMIT 1", true, 0, 0},
		{"pragma", "PRAGMA table_info(projects)", true, 0, 0},
		{"mutating", "DELETE FROM projects", false, 0, 0},
		{"empty", "", false, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := Lint(tt.text)
			assert.Equal(t, tt.valid, report.Valid)
			assert.Len(t, report.Warnings, tt.warnings, "%v", report.Warnings)
			assert.Len(t, report.Suggestions, tt.suggestions, "%v", report.Suggestions)
			if !tt.valid {
				assert.Len(t, report.Errors, 1)
			} else {
				assert.Empty(t, report.Errors)
			}
		})
	}
}

func TestLint_DoesNotRecord(t *testing.T) {
	exec := &testutil.CountingExecutor{}
	_, h := newGateway(exec)

	Lint("SELECT * FROM projects")

	assert.Equal(t, 0, h.Len())
	assert.Equal(t, 0, exec.Calls())
}

func TestExplain(t *testing.T) {
	g, h := newGateway(createTestStore(t))

	steps, err := g.Explain(context.Background(), "SELECT * FROM projects WHERE id = 1;")
	require.NoError(t, err)
	require.NotEmpty(t, steps)
	assert.Contains(t, steps[0].Detail, "projects")
	assert.Equal(t, 0, h.Len())
}

func TestExplain_Rejected(t *testing.T) {
	g, _ := newGateway(createTestStore(t))

	_, err := g.Explain(context.Background(), "DROP TABLE projects")

	var rej *RejectionError
	require.True(t, errors.As(err, &rej))
	assert.Equal(t, ReasonNotReadOnly, rej.Rejected.Reason)
}

func TestExplain_NoPlanner(t *testing.T) {
	g, _ := newGateway(&testutil.CountingExecutor{})

	_, err := g.Explain(context.Background(), "SELECT 1")
	assert.ErrorIs(t, err, ErrNoPlanner)
}
