package gateway

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/queryir"
)

func TestClassifyText(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Classification
	}{
		{"select", "SELECT * FROM projects", ReadOnly},
		{"lowercase select", "select id from projects", ReadOnly},
		{"leading comments", "  /* note */ -- line\n  SELECT 1", ReadOnly},
		{"trailing semicolons", "SELECT 1;;", ReadOnly},
		{"keyword in string", "SELECT 'DROP TABLE x' FROM projects", ReadOnly},
		{"keyword in quoted identifier", `SELECT "delete" FROM projects`, ReadOnly},
		{"keyword in comment", "SELECT 1 /* DELETE FROM t */", ReadOnly},
		{"semicolon in string", "SELECT 'a;b' FROM projects", ReadOnly},
		{"replace function", "SELECT replace(name, 'a', 'b') FROM projects", ReadOnly},
		{"pragma table_info", "PRAGMA table_info(projects)", ReadOnly},
		{"pragma schema qualified", "PRAGMA main.index_list('projects')", ReadOnly},
		{"non-reserved grant as identifier", "SELECT grant FROM funding", ReadOnly},
		{"non-reserved words as identifiers", "SELECT merge, upsert, truncate, revoke FROM funding", ReadOnly},

		{"drop", "DROP TABLE x;", Mutating},
		{"insert", "insert into projects values (1)", Mutating},
		{"update", "UPDATE projects SET name = 'x'", Mutating},
		{"delete", "DELETE FROM projects", Mutating},
		{"alter", "ALTER TABLE projects ADD COLUMN x", Mutating},
		{"create", "CREATE TABLE x (id)", Mutating},
		{"replace into", "REPLACE INTO projects VALUES (1)", Mutating},
		{"attach", "ATTACH DATABASE 'other.db' AS other", Mutating},
		{"vacuum", "VACUUM", Mutating},
		{"pragma assignment", "PRAGMA journal_mode = WAL", Mutating},
		{"pragma not allow-listed", "PRAGMA writable_schema", Mutating},
		{"delete inside select", "SELECT * FROM (DELETE FROM t RETURNING *)", Mutating},

		{"empty", "", Unparseable},
		{"whitespace", "  \n\t ", Unparseable},
		{"only comment", "-- nothing here", Unparseable},
		{"only semicolons", ";;", Unparseable},
		{"two selects", "SELECT 1; SELECT 2", Unparseable},
		{"select then drop", "SELECT 1; DROP TABLE projects", Unparseable},
		{"drop then select", "DROP TABLE projects; SELECT 1", Unparseable},
		{"cte with delete", "WITH d AS (DELETE FROM t RETURNING *) SELECT * FROM d", Unparseable},
		{"grant statement", "GRANT SELECT ON t TO bob", Unparseable},
		{"with", "WITH x AS (SELECT 1) SELECT * FROM x", Unparseable},
		{"explain", "EXPLAIN SELECT 1", Unparseable},
		{"values", "VALUES (1)", Unparseable},
		{"begin", "BEGIN", Unparseable},
		{"unterminated string", "SELECT 'open", Unparseable},
		{"unterminated identifier", `SELECT "open`, Unparseable},
		{"unterminated comment", "SELECT 1 /* open", Unparseable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, detail := ClassifyText(tt.text)
			assert.Equal(t, tt.want, got)
			if tt.want != ReadOnly {
				assert.NotEmpty(t, detail)
			}
		})
	}
}

// Any text whose first significant token is not SELECT or an allow-listed
// PRAGMA must never be ReadOnly.
func TestClassifyText_NeverReadOnlyWithoutSelect(t *testing.T) {
	leads := []string{
		"", "WITH", "EXPLAIN", "VALUES", "INSERT", "UPDATE", "DELETE", "DROP",
		"PRAGMA journal_mode", "ATTACH", "SELEC", "SELECTX", "'SELECT'", `"SELECT"`,
		"(SELECT", "x", "1", ";",
	}
	tails := []string{
		"", " 1", " * FROM projects", " SELECT 1", "; SELECT 1", " -- SELECT",
		" /* SELECT */", "\nSELECT * FROM t",
	}
	prefixes := []string{"", "  ", "\n", "-- c\n", "/* c */"}

	for _, prefix := range prefixes {
		for _, lead := range leads {
			for _, tail := range tails {
				text := prefix + lead + tail
				if strings.HasPrefix(strings.TrimSpace(lead+tail), "SELECT") {
					continue
				}
				got, _ := ClassifyText(text)
				assert.NotEqual(t, ReadOnly, got, "text %q", text)
			}
		}
	}
}

func TestClassify_Request(t *testing.T) {
	assert.Equal(t, ReadOnly, Classify(FilterRequest{Spec: queryir.FilterSpec{Table: "projects"}}))
	assert.Equal(t, Mutating, Classify(RawRequest{Text: "DROP TABLE x;"}))
	assert.Equal(t, ReadOnly, Classify(RawRequest{Text: "SELECT 1"}))
}

func TestEnforceLimit(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"appended", "SELECT * FROM t", "SELECT * FROM t LIMIT 5"},
		{"semicolon stripped", "SELECT * FROM t;", "SELECT * FROM t LIMIT 5"},
		{"trailing comment stripped", "SELECT * FROM t -- all", "SELECT * FROM t LIMIT 5"},
		{"explicit limit kept", "SELECT * FROM t LIMIT 3", "SELECT * FROM t LIMIT 3"},
		{"larger explicit limit kept", "SELECT * FROM t limit 50000", "SELECT * FROM t limit 50000"},
		{"subquery limit is not top level", "SELECT * FROM (SELECT * FROM t LIMIT 3)", "SELECT * FROM (SELECT * FROM t LIMIT 3) LIMIT 5"},
		{"limit in string", "SELECT 'LIMIT' FROM t", "SELECT 'LIMIT' FROM t LIMIT 5"},
		{"pragma untouched", "PRAGMA table_info(t)", "PRAGMA table_info(t)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := classify(tt.text)
			require.Equal(t, ReadOnly, st.class)
			assert.Equal(t, tt.want, enforceLimit(st, 5))
		})
	}
}

func TestTokenize_Offsets(t *testing.T) {
	toks, comments, err := tokenize("SELECT [a b], 'it''s' -- c\nFROM t")
	require.NoError(t, err)
	assert.Equal(t, 1, comments)

	texts := make([]string, len(toks))
	for i, tok := range toks {
		texts[i] = tok.text
	}
	assert.Equal(t, []string{"SELECT", "[a b]", ",", "'it''s'", "FROM", "t"}, texts)
	assert.Equal(t, tokQuoted, toks[1].kind)
	assert.Equal(t, tokString, toks[3].kind)
	assert.Equal(t, 7, toks[1].start)
}
