package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/harness"
)

// ScenarioOptions holds flags for the scenario command.
type ScenarioOptions struct {
	*RootOptions
	GoldenDir string // compare traces against <dir>/<name>.golden
	Update    bool   // rewrite golden files instead of comparing
	Filter    string // glob on the scenario file name
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// ScenarioSummary holds the overall result of a scenario run.
type ScenarioSummary struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewScenarioCommand creates the scenario command.
func NewScenarioCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScenarioOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "scenario <file-or-dir>...",
		Short: "Run scripted exploration scenarios",
		Long: `Run YAML exploration scenarios against seeded fixture databases.

Each scenario seeds a fresh SQLite file, opens it read-only and drives one
session through queries, searches, history replay and grid views. Expect
clauses and assertions decide whether it passes. With --golden-dir the
trace is also compared byte for byte with <golden-dir>/<name>.golden.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  pmeql scenario ./scenarios
  pmeql scenario ./scenarios --filter "search_*"
  pmeql scenario ./scenarios --golden-dir ./golden --update`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(cmd, opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.GoldenDir, "golden-dir", "", "directory of golden trace files")
	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runScenarios(cmd *cobra.Command, opts *ScenarioOptions, args []string) error {
	if opts.Update && opts.GoldenDir == "" {
		return NewExitError(ExitCommandError, "--update requires --golden-dir")
	}

	var files []string
	for _, arg := range args {
		found, err := findScenarioFiles(arg, opts.Filter)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to find scenarios", err)
		}
		files = append(files, found...)
	}

	summary := ScenarioSummary{
		Scenarios: make([]ScenarioResult, 0, len(files)),
		Total:     len(files),
	}
	w := cmd.OutOrStdout()
	text := opts.Format != "json"

	for _, file := range files {
		res := runScenarioFile(cmd, opts, file)
		summary.Scenarios = append(summary.Scenarios, res)
		if res.Pass {
			summary.Passed++
		} else {
			summary.Failed++
		}

		if text {
			writeScenarioLine(w, res)
		}
	}

	if !text {
		return outputScenarioJSON(w, summary)
	}

	if summary.Total == 0 {
		fmt.Fprintln(w, "No scenarios found.")
		return nil
	}
	fmt.Fprintf(w, "\n%d passed, %d failed, %d total\n", summary.Passed, summary.Failed, summary.Total)
	if summary.Failed > 0 {
		msg := fmt.Sprintf("%d scenario(s) failed", summary.Failed)
		f := opts.formatter(cmd)
		f.Error("scenario_failed", msg, nil)
		return &ExitError{Code: ExitFailure, Message: msg, reported: true}
	}
	return nil
}

// findScenarioFiles returns path itself when it is a file, or every
// .yaml/.yml file below it when it is a directory.
func findScenarioFiles(path, filter string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := filepath.Ext(p)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			matched, err := filepath.Match(filter, strings.TrimSuffix(d.Name(), ext))
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}
		files = append(files, p)
		return nil
	})
	return files, err
}

func runScenarioFile(cmd *cobra.Command, opts *ScenarioOptions, file string) ScenarioResult {
	scenario, err := harness.LoadScenario(file)
	if err != nil {
		return ScenarioResult{
			Name:   filepath.Base(file),
			Errors: []string{fmt.Sprintf("failed to load scenario: %v", err)},
		}
	}

	result, err := harness.RunContext(cmd.Context(), scenario)
	if err != nil {
		return ScenarioResult{
			Name:   scenario.Name,
			Errors: []string{fmt.Sprintf("execution failed: %v", err)},
		}
	}

	res := ScenarioResult{Name: scenario.Name, Pass: result.Pass, Errors: result.Errors}
	if opts.GoldenDir == "" {
		return res
	}

	data, err := harness.TraceSnapshot{ScenarioName: scenario.Name, Trace: result.Trace}.Marshal()
	if err != nil {
		res.Pass = false
		res.Errors = append(res.Errors, fmt.Sprintf("failed to marshal trace: %v", err))
		return res
	}

	goldenPath := filepath.Join(opts.GoldenDir, scenario.Name+".golden")
	if opts.Update {
		if err := os.MkdirAll(opts.GoldenDir, 0755); err == nil {
			err = os.WriteFile(goldenPath, data, 0644)
		}
		if err != nil {
			res.Pass = false
			res.Errors = append(res.Errors, fmt.Sprintf("failed to update golden file: %v", err))
		}
		return res
	}

	golden, err := os.ReadFile(goldenPath)
	switch {
	case err != nil:
		res.Pass = false
		res.Errors = append(res.Errors, fmt.Sprintf("failed to read golden file: %v", err))
	case !bytes.Equal(golden, data):
		res.Pass = false
		res.Errors = append(res.Errors, "trace does not match golden file (run with --update to regenerate)")
	}
	return res
}

func writeScenarioLine(w io.Writer, res ScenarioResult) {
	if res.Pass {
		fmt.Fprintf(w, "✓ %s\n", res.Name)
		return
	}
	fmt.Fprintf(w, "✗ %s\n", res.Name)
	for _, e := range res.Errors {
		for _, line := range strings.Split(strings.TrimRight(e, "\n"), "\n") {
			fmt.Fprintf(w, "  %s\n", line)
		}
	}
}

func outputScenarioJSON(w io.Writer, summary ScenarioSummary) error {
	response := CLIResponse{Status: "ok", Data: summary}
	if summary.Failed > 0 {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "scenario_failed",
			Message: fmt.Sprintf("%d scenario(s) failed", summary.Failed),
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(response); err != nil {
		return err
	}

	if summary.Failed > 0 {
		return &ExitError{Code: ExitFailure, Message: response.Error.Message, reported: true}
	}
	return nil
}
