package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/gateway"
	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/grid"
	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/history"
	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/queryir"
	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/session"
)

const (
	prompt         = "pmeql> "
	continuePrompt = "  ...> "
)

const shellHelp = `SQL statements end with ";" and may span lines.

  \tables                           list tables
  \columns <table>                  describe a table
  \search <table> <column> <op> [value [to]]
                                    structured search (between takes two bounds)
  \find <table> <text>              full-text search over text columns
  \filter [text]                    filter the current result (no text clears)
  \sort <column>                    toggle sort on a column (asc, desc, none)
  \typed on|off                     typed sort for numbers and dates
  \page <n> | \next | \prev         move through the current result
  \pagesize <n>                     rows per page
  \history [page]                   list past queries, newest first
  \show <id>                        show one history entry
  \replay <id>                      run a past query again
  \clear                            clear the history
  \lint <sql>                       check text without running it
  \explain <sql>                    show the query plan
  \help                             this text
  \quit                             leave the shell`

// NewShellCommand creates the shell command.
func NewShellCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Start an interactive exploration session",
		Long: `Start an interactive session against the data hub.

Queries run through the same gateway as the query command. The session keeps
a query history (\history, \replay) and a grid over the last result that can
be filtered, sorted and paged without re-running the query. Ctrl-C while a
query runs cancels that query only.`,
		Example:       `  pmeql shell --db ./hub.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openEnvironment(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			sh := &shell{
				sess:        env.session,
				f:           rootOpts.formatter(cmd),
				interactive: isTerminal(cmd.InOrStdin()),
			}
			return sh.run(commandContext(cmd), cmd.InOrStdin())
		},
	}
}

// isTerminal reports whether r is an interactive terminal.
func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// shell is one interactive session. It is not safe for concurrent use.
type shell struct {
	sess        *session.Session
	f           *OutputFormatter
	interactive bool

	// Grid over the last successful result.
	last    *gateway.QueryResult
	grid    *grid.Grid
	columns []queryir.ColumnDescriptor
}

var errQuit = errors.New("quit")

func (s *shell) run(ctx context.Context, in io.Reader) error {
	if s.interactive {
		fmt.Fprintf(s.f.Writer, "pmeql shell (session %s). \\help lists commands.\n", s.sess.ID())
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)

	var pending strings.Builder
	for {
		if s.interactive {
			if pending.Len() == 0 {
				fmt.Fprint(s.f.Writer, prompt)
			} else {
				fmt.Fprint(s.f.Writer, continuePrompt)
			}
		}
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())

		if pending.Len() == 0 && strings.HasPrefix(line, `\`) {
			if err := s.meta(ctx, line); err != nil {
				if errors.Is(err, errQuit) {
					return nil
				}
				return err
			}
			continue
		}
		if line == "" {
			continue
		}

		if pending.Len() > 0 {
			pending.WriteByte('\n')
		}
		pending.WriteString(line)
		if strings.HasSuffix(line, ";") {
			s.execute(ctx, gateway.RawRequest{Text: pending.String()}, "")
			pending.Reset()
		}
	}
	if err := scanner.Err(); err != nil {
		return WrapExitError(ExitCommandError, "failed to read input", err)
	}
	// A statement left without ";" at end of input still runs.
	if pending.Len() > 0 {
		s.execute(ctx, gateway.RawRequest{Text: pending.String()}, "")
	}
	return nil
}

// execute runs req. Ctrl-C while it runs cancels the query, not the shell.
func (s *shell) execute(ctx context.Context, req gateway.QueryRequest, table string) {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	var out gateway.Outcome
	if fr, ok := req.(gateway.FilterRequest); ok {
		out = s.sess.Search(ctx, table, fr.Spec)
	} else {
		out = s.sess.Execute(ctx, req, gateway.Options{})
	}

	success, ok := out.(gateway.Success)
	if !ok {
		s.f.Outcome(out, nil, grid.Window{})
		return
	}

	s.columns = s.sess.GridColumns(ctx, table, success.Result)
	g, err := s.sess.NewGrid(success.Result, s.columns)
	if err != nil {
		s.f.Error("command_error", err.Error(), nil)
		return
	}
	s.last, s.grid = success.Result, g
	s.show(g.Current())
}

func (s *shell) show(w grid.Window) {
	s.f.Outcome(gateway.Success{Result: s.last}, s.columns, w)
}

func (s *shell) meta(ctx context.Context, line string) error {
	args := splitArgs(line)
	name, args := strings.TrimPrefix(args[0], `\`), args[1:]
	rest := strings.TrimSpace(strings.TrimPrefix(line, `\`+name))

	switch name {
	case "q", "quit", "exit":
		return errQuit
	case "help", "?":
		fmt.Fprintln(s.f.Writer, shellHelp)
	case "tables":
		tables, err := s.sess.Tables(ctx)
		if err != nil {
			return s.fail(err)
		}
		fmt.Fprintln(s.f.Writer, strings.Join(tables, "\n"))
	case "columns":
		if len(args) != 1 {
			return s.usage(`\columns <table>`)
		}
		cols, err := s.sess.Columns(ctx, args[0])
		if err != nil {
			return s.fail(err)
		}
		writeColumns(s.f, cols)
	case "search":
		spec, table, ok := searchSpec(args)
		if !ok {
			return s.usage(`\search <table> <column> <op> [value [to]]`)
		}
		s.execute(ctx, gateway.FilterRequest{Spec: spec}, table)
	case "find":
		if len(args) < 2 {
			return s.usage(`\find <table> <text>`)
		}
		term := strings.Join(args[1:], " ")
		s.execute(ctx, gateway.FilterRequest{Spec: queryir.FilterSpec{FullText: &term}}, args[0])
	case "filter", "sort", "typed", "page", "next", "prev", "pagesize":
		return s.gridCommand(name, args, rest)
	case "history":
		page := 1
		if len(args) == 1 {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return s.usage(`\history [page]`)
			}
			page = n
		}
		s.writeHistory(s.sess.HistoryPage(page-1, 0))
	case "show":
		id, ok := entryID(args)
		if !ok {
			return s.usage(`\show <id>`)
		}
		e, found := s.sess.HistoryEntry(id)
		if !found {
			return s.fail(fmt.Errorf("no history entry %d", id))
		}
		s.writeEntry(e)
	case "replay":
		id, ok := entryID(args)
		if !ok {
			return s.usage(`\replay <id>`)
		}
		text, found := s.sess.ReplayHistoryEntry(id)
		if !found {
			return s.fail(fmt.Errorf("no history entry %d", id))
		}
		fmt.Fprintln(s.f.GetErrWriter(), text)
		s.execute(ctx, gateway.RawRequest{Text: text}, "")
	case "clear":
		s.sess.ClearHistory()
		fmt.Fprintln(s.f.Writer, "history cleared")
	case "lint":
		writeLint(s.f.Writer, s.sess.Lint(rest))
	case "explain":
		steps, err := s.sess.Explain(ctx, rest)
		if err != nil {
			return s.fail(err)
		}
		writePlan(s.f.Writer, steps)
	default:
		return s.fail(fmt.Errorf("unknown command \\%s (\\help lists commands)", name))
	}
	return nil
}

func (s *shell) gridCommand(name string, args []string, rest string) error {
	if s.grid == nil {
		return s.fail(errors.New("no result yet; run a query first"))
	}

	var w grid.Window
	switch name {
	case "filter":
		w = s.grid.SetSearchTerm(rest)
	case "sort":
		if len(args) != 1 {
			return s.usage(`\sort <column>`)
		}
		w = s.grid.ToggleSort(args[0])
	case "typed":
		if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
			return s.usage(`\typed on|off`)
		}
		w = s.grid.SetTypedSort(args[0] == "on")
	case "page":
		n, err := intArg(args)
		if err != nil {
			return s.usage(`\page <n>`)
		}
		w = s.grid.SetPage(n - 1)
	case "next":
		w = s.grid.SetPage(s.grid.State().Page + 1)
	case "prev":
		w = s.grid.SetPage(s.grid.State().Page - 1)
	case "pagesize":
		n, err := intArg(args)
		if err != nil {
			return s.usage(`\pagesize <n>`)
		}
		w, err = s.grid.SetPageSize(n)
		if err != nil {
			return s.fail(err)
		}
	}
	s.show(w)
	return nil
}

func (s *shell) writeHistory(p history.Page) {
	if s.f.Format == "json" {
		s.f.Success(p)
		return
	}
	lines := make([][]string, len(p.Entries))
	for i, e := range p.Entries {
		lines[i] = []string{
			strconv.FormatInt(e.ID, 10),
			e.ExecutedAt.Local().Format("15:04:05"),
			strconv.FormatInt(e.ExecutionTimeMs, 10),
			e.Outcome,
			e.QueryText,
		}
	}
	writeLines(s.f.Writer, []string{"ID", "AT", "MS", "OUTCOME", "QUERY"}, lines)
	fmt.Fprintf(s.f.Writer, "page %d/%d (%d entries)\n", p.PageNumber+1, max(p.PageCount, 1), p.TotalCount)
}

func (s *shell) writeEntry(e history.Entry) {
	if s.f.Format == "json" {
		s.f.Success(e)
		return
	}
	detail := ""
	if e.ResultSummary != nil {
		detail = *e.ResultSummary
	}
	if e.ErrorMessage != nil {
		detail = *e.ErrorMessage
	}
	writeLines(s.f.Writer, nil, [][]string{
		{"id", strconv.FormatInt(e.ID, 10)},
		{"executed_at", e.ExecutedAt.Format("2006-01-02 15:04:05")},
		{"execution_time_ms", strconv.FormatInt(e.ExecutionTimeMs, 10)},
		{"outcome", e.Outcome},
		{"result", detail},
		{"query", e.QueryText},
	})
}

// fail reports err and keeps the shell running.
func (s *shell) fail(err error) error {
	s.f.Error("command_error", err.Error(), nil)
	return nil
}

func (s *shell) usage(text string) error {
	s.f.Error("usage", text, nil)
	return nil
}

// searchSpec parses "<table> <column> <op> [value [to]]".
// For between the two values are the bounds.
func searchSpec(args []string) (queryir.FilterSpec, string, bool) {
	if len(args) < 3 || len(args) > 5 {
		return queryir.FilterSpec{}, "", false
	}
	column := args[1]
	spec := queryir.FilterSpec{Column: &column, Operator: queryir.Operator(args[2])}
	values := args[3:]
	if spec.Operator == queryir.OpBetween {
		if len(values) > 0 {
			spec.RangeFrom = &values[0]
		}
		if len(values) > 1 {
			spec.RangeTo = &values[1]
		}
		return spec, args[0], true
	}
	if len(values) > 1 {
		return queryir.FilterSpec{}, "", false
	}
	if len(values) == 1 {
		spec.Value = &values[0]
	}
	return spec, args[0], true
}

func entryID(args []string) (int64, bool) {
	if len(args) != 1 {
		return 0, false
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	return id, err == nil
}

func intArg(args []string) (int, error) {
	if len(args) != 1 {
		return 0, errors.New("want one number")
	}
	return strconv.Atoi(args[0])
}

// splitArgs splits on whitespace; double quotes group words.
func splitArgs(line string) []string {
	var (
		args    []string
		cur     strings.Builder
		quoted  bool
		started bool
	)
	for _, r := range line {
		switch {
		case r == '"':
			quoted = !quoted
			started = true
		case !quoted && (r == ' ' || r == '\t'):
			if started {
				args = append(args, cur.String())
				cur.Reset()
				started = false
			}
		default:
			cur.WriteRune(r)
			started = true
		}
	}
	if started {
		args = append(args, cur.String())
	}
	return args
}
