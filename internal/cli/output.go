package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/gateway"
	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/grid"
	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/ir"
	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/queryir"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Query succeeded
	ExitFailure      = 1 // Query rejected or failed (outcome reported)
	ExitCommandError = 2 // Command error (bad flags, config, database not found, etc.)
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int    // ExitFailure or ExitCommandError
	Message string
	Err     error // optional

	// reported is set once the error has been written to the user.
	reported bool
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// nil is ExitSuccess; an error that is not an ExitError is ExitFailure.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // diagnostics; defaults to Writer
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"` // "ok" or "error"
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"` // rejection or failure reason, or "command_error"
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "ok", Data: data})
	}
	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

// Error outputs an error in the configured format.
// Text errors go to ErrWriter so stdout stays pipeable.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message, Details: details},
		})
	}

	w := f.GetErrWriter()
	fmt.Fprintf(w, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(w, "Details: %v\n", details)
	}
	return nil
}

// VerboseLog outputs a message only if verbose mode is enabled.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

// resultView is the JSON data of a successful query.
type resultView struct {
	Result *gateway.QueryResult `json:"result"`
	Window grid.Window          `json:"window"`
}

// Outcome reports out and returns the error that sets the exit code:
// nil for Success, ExitFailure for Rejected and Failed.
// window is only used for Success.
func (f *OutputFormatter) Outcome(out gateway.Outcome, columns []queryir.ColumnDescriptor, window grid.Window) error {
	switch o := out.(type) {
	case gateway.Success:
		if f.Format == "json" {
			return f.Success(resultView{Result: o.Result, Window: window})
		}
		if err := writeTable(f.Writer, columns, window.Rows); err != nil {
			return err
		}
		fmt.Fprintln(f.Writer, footer(o.Result, window))
		return nil
	case gateway.Rejected:
		f.Error(string(o.Reason), o.Message(), nil)
	case gateway.Failed:
		f.Error(string(o.Reason), o.Message(), nil)
	}
	return &ExitError{Code: ExitFailure, Message: out.Message(), reported: true}
}

// Report writes err unless it was already written.
func (f *OutputFormatter) Report(err error) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.reported {
		return
	}
	f.Error("command_error", err.Error(), nil)
}

// footer renders "showing 1-20 of 42 (page 1/3) · 42 rows in 3ms".
func footer(res *gateway.QueryResult, w grid.Window) string {
	pages := max(w.PageCount, 1)
	return fmt.Sprintf("showing %d-%d of %d (page %d/%d) · %d rows in %dms",
		w.From, w.To, w.Total, w.Page+1, pages, res.RowCount, res.ExecutionTime.Milliseconds())
}

// writeTable renders rows as aligned columns headed by the column labels.
func writeTable(w io.Writer, columns []queryir.ColumnDescriptor, rows []ir.Row) error {
	header := make([]string, len(columns))
	for i, c := range columns {
		header[i] = c.Label
		if header[i] == "" {
			header[i] = c.Key
		}
	}

	lines := make([][]string, len(rows))
	for r, row := range rows {
		lines[r] = make([]string, len(columns))
		for i, c := range columns {
			lines[r][i] = ir.String(row.Get(c.Key))
		}
	}
	return writeLines(w, header, lines)
}

// writeLines renders a header and lines of cells as aligned columns.
func writeLines(w io.Writer, header []string, lines [][]string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if header != nil {
		fmt.Fprintln(tw, strings.Join(header, "\t"))
	}
	for _, cells := range lines {
		for i := range cells {
			cells[i] = cellReplacer.Replace(cells[i])
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}

// cellReplacer keeps one value on one line.
var cellReplacer = strings.NewReplacer("\t", " ", "\n", " ", "\r", " ")
