package queryir

import (
	"strconv"
	"strings"

	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/ir"
)

// Translate maps a validated FilterSpec to a predicate fragment.
//
// Translate is pure and total for specs that passed Validate:
//
//	contains      → Like %v%
//	equals        → Compare =
//	starts_with   → Like v%
//	ends_with     → Like %v
//	greater_than  → Compare >
//	less_than     → Compare <
//	between       → Range (inclusive); one bound only → Compare >= or <=
//	is_null       → Null
//	is_not_null   → Null{Negate}
//
// Full-text search is an Or of contains over every TEXT column. When both a
// full-text term and a column condition are present they are joined with And.
// A spec with neither yields an empty And (all rows).
func Translate(spec FilterSpec, columns []ColumnDescriptor) Predicate {
	var parts []Predicate

	if present(spec.FullText) {
		parts = append(parts, fullText(*spec.FullText, columns))
	}

	if present(spec.Column) {
		col, ok := FindColumn(columns, *spec.Column)
		if !ok {
			col = ColumnDescriptor{Key: *spec.Column, Kind: KindUnknown}
		}
		parts = append(parts, columnPredicate(spec, col))
	}

	switch len(parts) {
	case 0:
		return And{}
	case 1:
		return parts[0]
	default:
		return And{Predicates: parts}
	}
}

// fullText builds the disjunction of contains over TEXT columns.
// A table without TEXT columns cannot match a full-text term.
func fullText(term string, columns []ColumnDescriptor) Predicate {
	pattern := "%" + EscapeLike(term) + "%"
	var ors []Predicate
	for _, c := range columns {
		if c.Kind == KindText {
			ors = append(ors, Like{Column: c.Key, Pattern: pattern})
		}
	}
	if len(ors) == 0 {
		return False{}
	}
	return Or{Predicates: ors}
}

func columnPredicate(spec FilterSpec, col ColumnDescriptor) Predicate {
	value := ""
	if spec.Value != nil {
		value = *spec.Value
	}

	switch spec.Operator {
	case OpContains:
		return Like{Column: col.Key, Pattern: "%" + EscapeLike(value) + "%"}
	case OpStartsWith:
		return Like{Column: col.Key, Pattern: EscapeLike(value) + "%"}
	case OpEndsWith:
		return Like{Column: col.Key, Pattern: "%" + EscapeLike(value)}
	case OpEquals:
		return Compare{Column: col.Key, Op: CmpEq, Value: Literal(col.Kind, value)}
	case OpGreaterThan:
		return Compare{Column: col.Key, Op: CmpGt, Value: Literal(col.Kind, value)}
	case OpLessThan:
		return Compare{Column: col.Key, Op: CmpLt, Value: Literal(col.Kind, value)}
	case OpBetween:
		return between(spec, col)
	case OpIsNull:
		return Null{Column: col.Key}
	case OpIsNotNull:
		return Null{Column: col.Key, Negate: true}
	default:
		return False{}
	}
}

// between degrades to a single-sided inclusive comparison when one bound is missing.
func between(spec FilterSpec, col ColumnDescriptor) Predicate {
	from, hasFrom := lowerBound(spec)
	hasTo := present(spec.RangeTo)

	switch {
	case hasFrom && hasTo:
		return Range{Column: col.Key, From: Literal(col.Kind, from), To: Literal(col.Kind, *spec.RangeTo)}
	case hasFrom:
		return Compare{Column: col.Key, Op: CmpGe, Value: Literal(col.Kind, from)}
	case hasTo:
		return Compare{Column: col.Key, Op: CmpLe, Value: Literal(col.Kind, *spec.RangeTo)}
	default:
		return And{}
	}
}

// Literal types a user-supplied string by column kind.
// Text that does not parse as the kind stays Text.
func Literal(kind ColumnKind, s string) ir.Value {
	switch kind {
	case KindInteger:
		if n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			return ir.Integer(n)
		}
	case KindReal:
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return ir.Real(f)
		}
	}
	return ir.Text(s)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// EscapeLike escapes LIKE metacharacters so s matches literally.
// The escape character is backslash.
func EscapeLike(s string) string {
	return likeEscaper.Replace(s)
}
