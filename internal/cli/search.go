package cli

import (
	"github.com/spf13/cobra"

	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/queryir"
)

// SearchOptions holds flags for the search command.
type SearchOptions struct {
	*RootOptions
	View ViewOptions

	Text     string
	Column   string
	Operator string
	Value    string
	From     string
	To       string
	Limit    int
}

// NewSearchCommand creates the search command.
func NewSearchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SearchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "search <table>",
		Short: "Run a structured search over a table",
		Long: `Search one table without writing SQL.

--text matches any text column (case-insensitive). --column with --op adds
one condition; operators are contains, equals, starts_with, ends_with,
greater_than, less_than, between (--from/--to), is_null and is_not_null.
Values are always bound as parameters.

Examples:
  pmeql search projects --column status --op equals --value 進行中
  pmeql search projects --text plant
  pmeql search projects --column budget --op between --from 100 --to 500 --limit 50`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(opts, cmd, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Text, "text", "", "full-text term matched against every text column")
	cmd.Flags().StringVar(&opts.Column, "column", "", "column for a single condition")
	cmd.Flags().StringVar(&opts.Operator, "op", string(queryir.OpContains), "condition operator")
	cmd.Flags().StringVar(&opts.Value, "value", "", "condition value")
	cmd.Flags().StringVar(&opts.From, "from", "", "lower bound for between (inclusive)")
	cmd.Flags().StringVar(&opts.To, "to", "", "upper bound for between (inclusive)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum rows (default: the row cap)")
	addViewFlags(cmd, &opts.View)

	return cmd
}

func runSearch(opts *SearchOptions, cmd *cobra.Command, table string) error {
	env, err := openEnvironment(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	ctx := commandContext(cmd)
	out := env.session.Search(ctx, table, opts.spec(cmd))
	return printOutcome(ctx, opts.formatter(cmd), env.session, out, table, opts.View)
}

// spec builds the FilterSpec from the flags that were actually given, so an
// empty --value stays distinct from no value at all.
func (o *SearchOptions) spec(cmd *cobra.Command) queryir.FilterSpec {
	flags := cmd.Flags()
	given := func(name, v string) *string {
		if !flags.Changed(name) {
			return nil
		}
		return &v
	}

	spec := queryir.FilterSpec{
		FullText:  given("text", o.Text),
		Column:    given("column", o.Column),
		Value:     given("value", o.Value),
		RangeFrom: given("from", o.From),
		RangeTo:   given("to", o.To),
		Limit:     o.Limit,
	}
	if spec.Column != nil {
		spec.Operator = queryir.Operator(o.Operator)
	}
	return spec
}
