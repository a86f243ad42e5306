package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string // YAML config file (optional)
	EnvFile    string // .env file (optional, missing is fine)
	Database   string // overrides config database
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the pmeql CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "pmeql",
		Short: "pmeql - safe ad-hoc exploration of the PME data hub",
		Long: `Explore a SQLite data hub with structured searches and read-only SQL.

Every query passes the safe query gateway: mutating statements are rejected
before they reach the database, results are capped and timed out, and each
attempt is recorded in the session's query history.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output (debug logging)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to YAML config file")
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "path to .env file")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")

	cmd.AddCommand(NewQueryCommand(opts))
	cmd.AddCommand(NewSearchCommand(opts))
	cmd.AddCommand(NewTablesCommand(opts))
	cmd.AddCommand(NewColumnsCommand(opts))
	cmd.AddCommand(NewExplainCommand(opts))
	cmd.AddCommand(NewLintCommand(opts))
	cmd.AddCommand(NewShellCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewScenarioCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// Execute runs the CLI with args and returns the process exit code.
// Errors not already shown to the user are reported here; errors cobra
// raises itself (unknown flags, wrong arguments) are command errors.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}

	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		err = WrapExitError(ExitCommandError, "invalid command", err)
	}

	format, _ := cmd.PersistentFlags().GetString("format")
	if !isValidFormat(format) {
		format = "text"
	}
	f := &OutputFormatter{Format: format, Writer: stdout, ErrWriter: stderr}
	f.Report(err)
	return GetExitCode(err)
}
