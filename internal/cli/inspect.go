package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/gateway"
	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/ir"
)

// NewLintCommand creates the lint command.
//
// lint needs no database: it classifies text and reports advice without
// running or recording anything.
func NewLintCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "lint <sql>",
		Short: "Check query text without running it",
		Long: `Classify query text and report errors, warnings and suggestions.

Exits 1 when the text would be rejected by the gateway.`,
		Example: `  pmeql lint "SELECT * FROM projects"
  pmeql lint "DELETE FROM projects" --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			report := gateway.Lint(args[0])

			f := rootOpts.formatter(cmd)
			if f.Format == "json" {
				if err := f.Success(report); err != nil {
					return err
				}
			} else {
				writeLint(f.Writer, report)
			}

			if !report.Valid {
				return &ExitError{Code: ExitFailure, Message: strings.Join(report.Errors, "; "), reported: true}
			}
			return nil
		},
	}
}

func writeLint(w io.Writer, report gateway.LintReport) {
	status := "ok"
	if !report.Valid {
		status = "invalid"
	}
	fmt.Fprintf(w, "%s (%s)\n", status, report.Classification)
	for _, e := range report.Errors {
		fmt.Fprintf(w, "  error: %s\n", e)
	}
	for _, warn := range report.Warnings {
		fmt.Fprintf(w, "  warning: %s\n", warn)
	}
	for _, s := range report.Suggestions {
		fmt.Fprintf(w, "  suggestion: %s\n", s)
	}
}

// NewExplainCommand creates the explain command.
func NewExplainCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "explain <sql>",
		Short: "Show the query plan without running the query",
		Long: `Show SQLite's query plan for a read-only statement.

The statement is classified first; text the gateway would reject is never
sent to the database. Explain does not add a history entry.`,
		Example:       `  pmeql explain --db ./hub.db "SELECT * FROM projects WHERE status = '進行中'"`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openEnvironment(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			f := rootOpts.formatter(cmd)
			steps, err := env.session.Explain(commandContext(cmd), args[0])
			var rejected *gateway.RejectionError
			if errors.As(err, &rejected) {
				f.Error(string(rejected.Rejected.Reason), rejected.Error(), nil)
				return &ExitError{Code: ExitFailure, Message: rejected.Error(), Err: err, reported: true}
			}
			if err != nil {
				return WrapExitError(ExitFailure, "explain failed", err)
			}

			if f.Format == "json" {
				return f.Success(steps)
			}
			writePlan(f.Writer, steps)
			return nil
		},
	}
}

// writePlan prints plan steps as an indented tree.
func writePlan(w io.Writer, steps []ir.PlanStep) {
	depth := make(map[int64]int, len(steps))
	fmt.Fprintln(w, "QUERY PLAN")
	for _, s := range steps {
		d := 0
		if pd, ok := depth[s.Parent]; ok {
			d = pd + 1
		}
		depth[s.ID] = d
		fmt.Fprintf(w, "%s`--%s\n", strings.Repeat("   ", d), s.Detail)
	}
}
