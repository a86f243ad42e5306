package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/gateway"
	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/grid"
	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/session"
)

// ViewOptions selects the grid window printed for a successful result.
type ViewOptions struct {
	Filter    string
	Sort      string
	Desc      bool
	TypedSort bool
	Page      int // 1-based on the command line
	PageSize  int
}

func addViewFlags(cmd *cobra.Command, v *ViewOptions) {
	cmd.Flags().StringVar(&v.Filter, "filter", "", "only show rows containing this text (any column)")
	cmd.Flags().StringVar(&v.Sort, "sort", "", "sort the result by this column")
	cmd.Flags().BoolVar(&v.Desc, "desc", false, "sort descending")
	cmd.Flags().BoolVar(&v.TypedSort, "typed-sort", false, "sort numbers and dates by value instead of text")
	cmd.Flags().IntVar(&v.Page, "page", 1, "result page to show")
	cmd.Flags().IntVar(&v.PageSize, "page-size", 0, "rows per page (default from config)")
}

// apply moves g to the requested window.
func (v ViewOptions) apply(g *grid.Grid) (grid.Window, error) {
	if v.PageSize != 0 {
		if _, err := g.SetPageSize(v.PageSize); err != nil {
			return grid.Window{}, err
		}
	}
	g.SetTypedSort(v.TypedSort)
	if v.Sort != "" {
		dir := grid.Asc
		if v.Desc {
			dir = grid.Desc
		}
		g.SetSort(v.Sort, dir)
	}
	if v.Filter != "" {
		g.SetSearchTerm(v.Filter)
	}
	return g.SetPage(v.Page - 1), nil
}

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	View    ViewOptions
	MaxRows int
	Timeout time.Duration
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <sql>",
		Short: "Run a read-only SQL query",
		Long: `Run one read-only SQL statement through the safe query gateway.

Mutating statements are rejected without touching the database. The result
is capped at the configured row limit (or --max-rows, whichever is smaller)
and the query is cancelled after the configured timeout.

Examples:
  pmeql query --db ./hub.db "SELECT * FROM projects"
  pmeql query --db ./hub.db "SELECT * FROM projects" --sort name --desc --page 2
  pmeql query --db ./hub.db "SELECT * FROM projects" --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, cmd, args[0])
		},
	}

	cmd.Flags().IntVar(&opts.MaxRows, "max-rows", 0, "lower the row cap for this query")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "lower the timeout for this query")
	addViewFlags(cmd, &opts.View)

	return cmd
}

func runQuery(opts *QueryOptions, cmd *cobra.Command, text string) error {
	env, err := openEnvironment(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	ctx := commandContext(cmd)
	out := env.session.Execute(ctx, gateway.RawRequest{Text: text}, tighten(env.session, opts.MaxRows, opts.Timeout))
	return printOutcome(ctx, opts.formatter(cmd), env.session, out, "", opts.View)
}

// tighten lets flags lower, never raise, the session limits.
func tighten(sess *session.Session, maxRows int, timeout time.Duration) gateway.Options {
	limits := sess.Limits()
	var o gateway.Options
	if maxRows > 0 && maxRows < limits.MaxRows {
		o.MaxRows = maxRows
	}
	if timeout > 0 && timeout < limits.Timeout {
		o.Timeout = timeout
	}
	return o
}

// printOutcome prints out, showing a grid window of a successful result.
func printOutcome(ctx context.Context, f *OutputFormatter, sess *session.Session, out gateway.Outcome, table string, view ViewOptions) error {
	success, ok := out.(gateway.Success)
	if !ok {
		return f.Outcome(out, nil, grid.Window{})
	}

	cols := sess.GridColumns(ctx, table, success.Result)
	g, err := sess.NewGrid(success.Result, cols)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open result grid", err)
	}
	window, err := view.apply(g)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid view", err)
	}
	return f.Outcome(out, cols, window)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
