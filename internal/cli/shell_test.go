package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/testutil"
)

// runShell feeds script to the shell command.
func runShell(t *testing.T, db, script string) cliResult {
	t.Helper()
	for _, k := range []string{"DATABASE", "CATALOG_DIR", "MAX_ROWS", "TIMEOUT", "WRITABLE", "HISTORY_PAGE_SIZE"} {
		t.Setenv("PMEQL_"+k, "")
	}
	t.Setenv("PMEQL_LOG_LEVEL", "error")

	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"shell", "--db", db, "--env-file", ""})
	cmd.SetIn(strings.NewReader(script))
	cmd.SetOut(out)
	cmd.SetErr(errOut)

	err := cmd.ExecuteContext(context.Background())
	return cliResult{stdout: out.String(), stderr: errOut.String(), code: GetExitCode(err)}
}

func TestShell_QueryAndGrid(t *testing.T) {
	db := testutil.SeedDatabase(t, hubSeed)

	res := runShell(t, db, strings.Join([]string{
		"SELECT id, name, status",
		"FROM projects ORDER BY id;",
		`\filter 進行中`,
		`\pagesize 1`,
		`\next`,
		`\quit`,
		"SELECT 'never reached';",
	}, "\n"))

	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.NotContains(t, res.stdout, "pmeql>", "no prompt without a terminal")
	assert.Contains(t, res.stdout, "showing 1-3 of 3 (page 1/1) · 3 rows in")
	assert.Contains(t, res.stdout, "showing 1-2 of 2 (page 1/1)")
	assert.Contains(t, res.stdout, "showing 1-1 of 2 (page 1/2)")
	assert.Contains(t, res.stdout, "showing 2-2 of 2 (page 2/2)")
	assert.NotContains(t, res.stdout, "never reached")
}

func TestShell_HistoryAndReplay(t *testing.T) {
	db := testutil.SeedDatabase(t, hubSeed)

	res := runShell(t, db, strings.Join([]string{
		"SELECT name FROM projects;",
		"DELETE FROM projects;",
		`\history`,
		`\replay 1`,
		`\show 2`,
		`\history`,
	}, "\n"))

	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stderr, "Error [not_read_only]")

	// Replay prints the recorded text and runs it as a new entry.
	assert.Contains(t, res.stderr, "SELECT name FROM projects;")
	assert.Contains(t, res.stdout, "page 1/1 (2 entries)")
	assert.Contains(t, res.stdout, "page 1/1 (3 entries)")

	// \show 2 is the rejected DELETE.
	assert.Contains(t, res.stdout, "rejected")
	assert.Contains(t, res.stdout, "DELETE FROM projects;")
}

func TestShell_SearchAndClear(t *testing.T) {
	db := testutil.SeedDatabase(t, hubSeed)

	res := runShell(t, db, strings.Join([]string{
		`\search projects status equals 完了`,
		`\find projects "alpha plant"`,
		`\clear`,
		`\history`,
	}, "\n"))

	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "beta line")
	assert.Contains(t, res.stdout, "Alpha Plant")
	assert.Contains(t, res.stdout, "history cleared")
	assert.Contains(t, res.stdout, "page 1/1 (0 entries)")
}

func TestShell_InspectCommands(t *testing.T) {
	db := testutil.SeedDatabase(t, hubSeed)

	res := runShell(t, db, strings.Join([]string{
		`\tables`,
		`\columns projects`,
		`\lint SELECT * FROM projects`,
		`\explain SELECT * FROM projects`,
		`\history`,
	}, "\n"))

	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "projects\n")
	assert.Contains(t, res.stdout, "COLUMN")
	assert.Contains(t, res.stdout, "ok (read_only)")
	assert.Contains(t, res.stdout, "QUERY PLAN")
	// Lint and explain are not executions.
	assert.Contains(t, res.stdout, "page 1/1 (0 entries)")
}

func TestShell_ErrorsKeepRunning(t *testing.T) {
	db := testutil.SeedDatabase(t, hubSeed)

	res := runShell(t, db, strings.Join([]string{
		`\sort name`,
		`\bogus`,
		`\replay 99`,
		`\search projects`,
		"SELECT 1 AS one",
	}, "\n"))

	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stderr, "no result yet")
	assert.Contains(t, res.stderr, `unknown command \bogus`)
	assert.Contains(t, res.stderr, "no history entry 99")
	assert.Contains(t, res.stderr, "Error [usage]")
	// A trailing statement without ";" runs at end of input.
	assert.Contains(t, res.stdout, "showing 1-1 of 1")
}

func TestSplitArgs(t *testing.T) {
	tests := []struct {
		line string
		want []string
	}{
		{`\search projects name equals x`, []string{`\search`, "projects", "name", "equals", "x"}},
		{`\find projects "Alpha Plant"`, []string{`\find`, "projects", "Alpha Plant"}},
		{`\search projects name equals ""`, []string{`\search`, "projects", "name", "equals", ""}},
		{"  \\page   2  ", []string{`\page`, "2"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, splitArgs(tt.line), tt.line)
	}
}

func TestSearchSpec(t *testing.T) {
	spec, table, ok := searchSpec([]string{"projects", "budget", "between", "100", "500"})
	require.True(t, ok)
	assert.Equal(t, "projects", table)
	assert.Equal(t, "100", *spec.RangeFrom)
	assert.Equal(t, "500", *spec.RangeTo)
	assert.Nil(t, spec.Value)

	spec, _, ok = searchSpec([]string{"projects", "notes", "is_null"})
	require.True(t, ok)
	assert.Nil(t, spec.Value)

	_, _, ok = searchSpec([]string{"projects", "name", "equals", "a", "b"})
	assert.False(t, ok)
	_, _, ok = searchSpec([]string{"projects"})
	assert.False(t, ok)
}
