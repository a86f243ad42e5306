package querysql

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/ir"
	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/queryir"
)

// DefaultFoldFunc is the SQL function the store registers for
// Unicode-aware case folding (see ir.Fold).
const DefaultFoldFunc = "fold"

// SQLCompiler compiles predicate fragments to parameterized SQL for SQLite.
//
// CRITICAL: All values are parameterized (never interpolated).
// Identifiers are double-quoted with embedded quotes doubled.
type SQLCompiler struct {
	// FoldFunc wraps both sides of LIKE so matching is case-insensitive
	// beyond ASCII. Empty falls back to SQLite's built-in ASCII-only LIKE.
	FoldFunc string
}

// NewSQLCompiler creates a new SQLCompiler using DefaultFoldFunc.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{FoldFunc: DefaultFoldFunc}
}

// Compile builds a full read query over table filtered by p.
// Returns (sql, params, error). The row limit is bound as the last parameter.
//
//	SELECT * FROM "projects" WHERE "status" = ? LIMIT ?
func (c *SQLCompiler) Compile(table string, p queryir.Predicate, limit int) (string, []any, error) {
	if strings.TrimSpace(table) == "" {
		return "", nil, fmt.Errorf("cannot compile query without table")
	}
	if limit <= 0 {
		return "", nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	where, params, err := c.CompilePredicate(p)
	if err != nil {
		return "", nil, fmt.Errorf("compile filter: %w", err)
	}

	sql := fmt.Sprintf("SELECT * FROM %s WHERE %s LIMIT ?", QuoteIdent(table), where)
	params = append(params, int64(limit))

	return sql, params, nil
}

// CompilePredicate compiles a predicate to a WHERE clause fragment.
// A nil predicate is always true.
func (c *SQLCompiler) CompilePredicate(p queryir.Predicate) (string, []any, error) {
	if p == nil {
		return "1 = 1", nil, nil
	}

	switch pred := p.(type) {
	case queryir.Like:
		return c.compileLike(pred), []any{pred.Pattern}, nil
	case queryir.Compare:
		return fmt.Sprintf("%s %s ?", QuoteIdent(pred.Column), pred.Op), []any{ir.ToParam(pred.Value)}, nil
	case queryir.Range:
		return fmt.Sprintf("%s BETWEEN ? AND ?", QuoteIdent(pred.Column)),
			[]any{ir.ToParam(pred.From), ir.ToParam(pred.To)}, nil
	case queryir.Null:
		if pred.Negate {
			return QuoteIdent(pred.Column) + " IS NOT NULL", nil, nil
		}
		return QuoteIdent(pred.Column) + " IS NULL", nil, nil
	case queryir.And:
		if len(pred.Predicates) == 0 {
			return "1 = 1", nil, nil // vacuous truth
		}
		return c.compileJunction(pred.Predicates, " AND ")
	case queryir.Or:
		if len(pred.Predicates) == 0 {
			return "1 = 0", nil, nil
		}
		return c.compileJunction(pred.Predicates, " OR ")
	case queryir.False:
		return "1 = 0", nil, nil
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

// compileLike folds both operands when a fold function is configured.
// The pattern escape character is backslash (see queryir.EscapeLike).
func (c *SQLCompiler) compileLike(l queryir.Like) string {
	col := QuoteIdent(l.Column)
	if c.FoldFunc == "" {
		return fmt.Sprintf(`%s LIKE ? ESCAPE '\'`, col)
	}
	return fmt.Sprintf(`%s(%s) LIKE %s(?) ESCAPE '\'`, c.FoldFunc, col, c.FoldFunc)
}

// compileJunction parenthesizes multi-element junctions so nesting keeps its meaning.
func (c *SQLCompiler) compileJunction(preds []queryir.Predicate, sep string) (string, []any, error) {
	if len(preds) == 1 {
		return c.CompilePredicate(preds[0])
	}

	parts := make([]string, 0, len(preds))
	var params []any
	for _, p := range preds {
		sql, ps, err := c.CompilePredicate(p)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sql)
		params = append(params, ps...)
	}
	return "(" + strings.Join(parts, sep) + ")", params, nil
}

// QuoteIdent quotes an SQLite identifier.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Render substitutes params into sql as SQL literals.
//
// The result is for display and history replay only; execution always binds
// params. Placeholders inside quoted strings or identifiers are left alone.
func Render(sql string, params []any) string {
	var b strings.Builder
	next := 0
	var quote byte

	for i := 0; i < len(sql); i++ {
		ch := sql[i]
		switch {
		case quote != 0:
			if ch == quote {
				quote = 0
			}
			b.WriteByte(ch)
		case ch == '\'' || ch == '"':
			quote = ch
			b.WriteByte(ch)
		case ch == '?' && next < len(params):
			b.WriteString(Literal(params[next]))
			next++
		default:
			b.WriteByte(ch)
		}
	}
	return b.String()
}

// Literal renders a parameter value as an SQLite literal.
func Literal(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + strings.ReplaceAll(val, "'", "''") + "'"
	case int64:
		return strconv.FormatInt(val, 10)
	case int:
		return strconv.Itoa(val)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case bool:
		if val {
			return "1"
		}
		return "0"
	case []byte:
		return "X'" + strings.ToUpper(hex.EncodeToString(val)) + "'"
	case time.Time:
		return Literal(ir.String(ir.Date(val)))
	default:
		return Literal(fmt.Sprint(val))
	}
}
