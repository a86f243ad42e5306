package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/queryir"
	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/store"
)

// NewTablesCommand creates the tables command.
func NewTablesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List searchable tables",
		Example: `  pmeql tables --db ./hub.db
  pmeql tables --db ./hub.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openEnvironment(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			tables, err := env.session.Tables(commandContext(cmd))
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to list tables", err)
			}

			f := rootOpts.formatter(cmd)
			if f.Format == "json" {
				return f.Success(tables)
			}
			return f.Success(strings.Join(tables, "\n"))
		},
	}
}

// NewColumnsCommand creates the columns command.
func NewColumnsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "columns <table>",
		Short: "Describe the columns of a table",
		Long: `Describe the columns of a table: key, display label, kind and whether
the grid can sort on it. Catalog overlays (catalog_dir) are applied.`,
		Example:       `  pmeql columns projects --db ./hub.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openEnvironment(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			cols, err := env.session.Columns(commandContext(cmd), args[0])
			if errors.Is(err, store.ErrNotFound) {
				return WrapExitError(ExitFailure, fmt.Sprintf("unknown table %q", args[0]), err)
			}
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to describe table", err)
			}

			f := rootOpts.formatter(cmd)
			if f.Format == "json" {
				return f.Success(cols)
			}
			return writeColumns(f, cols)
		},
	}
}

func writeColumns(f *OutputFormatter, cols []queryir.ColumnDescriptor) error {
	lines := make([][]string, len(cols))
	for i, c := range cols {
		lines[i] = []string{c.Key, c.Label, string(c.Kind), strconv.FormatBool(c.Sortable)}
	}
	return writeLines(f.Writer, []string{"COLUMN", "LABEL", "KIND", "SORTABLE"}, lines)
}
