package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/gateway"
	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/grid"
	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/ir"
	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/queryir"
	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/testutil"
)

var idName = []queryir.ColumnDescriptor{
	{Key: "id", Label: "ID", Sortable: true, Kind: queryir.KindInteger},
	{Key: "name", Label: "Name", Sortable: true, Kind: queryir.KindText},
}

func twoRowSuccess() (gateway.Success, grid.Window) {
	rs := testutil.Rows(2)
	res := &gateway.QueryResult{
		Columns:       rs.Columns,
		Rows:          rs.Rows,
		RowCount:      2,
		ExecutionTime: 3 * time.Millisecond,
	}
	w := grid.Window{Rows: rs.Rows, PageSize: 20, PageCount: 1, Total: 2, From: 1, To: 2}
	return gateway.Success{Result: res}, w
}

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Success(map[string]string{"result": "success"}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Error("not_read_only", "rejected", []string{"DROP"}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "not_read_only", resp.Error.Code)
	assert.Equal(t, "rejected", resp.Error.Message)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_TextErrorGoesToErrWriter(t *testing.T) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: out, ErrWriter: errOut, Verbose: true}

	require.NoError(t, formatter.Error("timeout", "failed (timeout): too slow", "details"))

	assert.Empty(t, out.String())
	assert.Contains(t, errOut.String(), "Error [timeout]: failed (timeout): too slow")
	assert.Contains(t, errOut.String(), "Details: details")
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		wantLog bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "text", Writer: buf, Verbose: tt.verbose}

			formatter.VerboseLog("opening %s", "hub.db")

			if tt.wantLog {
				assert.Contains(t, buf.String(), "opening hub.db")
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}

func TestOutcome_SuccessText(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}
	success, window := twoRowSuccess()

	require.NoError(t, formatter.Outcome(success, idName, window))

	assert.Equal(t,
		"ID  Name\n"+
			"1   row 1\n"+
			"2   row 2\n"+
			"showing 1-2 of 2 (page 1/1) · 2 rows in 3ms\n",
		buf.String())
}

func TestOutcome_SuccessJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}
	success, window := twoRowSuccess()

	require.NoError(t, formatter.Outcome(success, idName, window))

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Result struct {
				RowCount        int   `json:"row_count"`
				ExecutionTimeMs int64 `json:"execution_time_ms"`
			} `json:"result"`
			Window struct {
				Total int              `json:"total"`
				Rows  []map[string]any `json:"rows"`
			} `json:"window"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 2, resp.Data.Result.RowCount)
	assert.Equal(t, int64(3), resp.Data.Result.ExecutionTimeMs)
	assert.Equal(t, 2, resp.Data.Window.Total)
	require.Len(t, resp.Data.Window.Rows, 2)
	assert.Equal(t, "row 1", resp.Data.Window.Rows[0]["name"])
}

func TestOutcome_RejectedAndFailedExitOne(t *testing.T) {
	tests := []struct {
		name     string
		outcome  gateway.Outcome
		wantCode string
	}{
		{"rejected", gateway.Rejected{Reason: gateway.ReasonNotReadOnly, Detail: "DROP is not allowed"}, "not_read_only"},
		{"failed", gateway.Failed{Reason: gateway.FailureTimeout, Detail: "query exceeded timeout of 1s"}, "timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "text", Writer: out, ErrWriter: errOut}

			err := formatter.Outcome(tt.outcome, nil, grid.Window{})
			require.Error(t, err)
			assert.Equal(t, ExitFailure, GetExitCode(err))
			assert.Empty(t, out.String())
			assert.Contains(t, errOut.String(), "Error ["+tt.wantCode+"]: "+tt.outcome.Message())

			// Already reported: Report stays quiet.
			errOut.Reset()
			formatter.Report(err)
			assert.Empty(t, errOut.String())
		})
	}
}

func TestReport_UnreportedError(t *testing.T) {
	errOut := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: &bytes.Buffer{}, ErrWriter: errOut}

	formatter.Report(WrapExitError(ExitCommandError, "failed to open database", errors.New("no such file")))

	assert.Equal(t, "Error [command_error]: failed to open database: no such file\n", errOut.String())
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad flag")))

	wrapped := WrapExitError(ExitCommandError, "outer", errors.New("inner"))
	assert.Equal(t, "outer: inner", wrapped.Error())
	assert.Equal(t, "inner", errors.Unwrap(wrapped).Error())
}

func TestWriteTable_NullsAndLineBreaks(t *testing.T) {
	buf := &bytes.Buffer{}
	rows := []ir.Row{
		ir.RowOf(ir.F{Column: "id", Value: ir.Integer(1)}, ir.F{Column: "name", Value: ir.Null{}}),
		ir.RowOf(ir.F{Column: "id", Value: ir.Integer(2)}, ir.F{Column: "name", Value: ir.Text("two\nlines")}),
	}

	require.NoError(t, writeTable(buf, idName, rows))

	assert.Equal(t, "ID  Name\n1   \n2   two lines\n", buf.String())
}

func TestWritePlan(t *testing.T) {
	buf := &bytes.Buffer{}
	writePlan(buf, []ir.PlanStep{
		{ID: 2, Parent: 0, Detail: "SCAN projects"},
		{ID: 5, Parent: 2, Detail: "USE TEMP B-TREE FOR ORDER BY"},
	})

	assert.Equal(t, "QUERY PLAN\n`--SCAN projects\n   `--USE TEMP B-TREE FOR ORDER BY\n", buf.String())
}
