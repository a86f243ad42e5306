package queryir

import (
	"fmt"
	"strings"

	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/ir"
)

// ColumnKind classifies a column for operator applicability and rendering.
type ColumnKind string

const (
	KindText    ColumnKind = "TEXT"
	KindInteger ColumnKind = "INTEGER"
	KindReal    ColumnKind = "REAL"
	KindDate    ColumnKind = "DATE"
	KindUnknown ColumnKind = "UNKNOWN"
)

// IsOrdered reports whether ordering operators (greater_than, less_than,
// between) are meaningful for the kind.
func (k ColumnKind) IsOrdered() bool {
	switch k {
	case KindInteger, KindReal, KindDate:
		return true
	default:
		return false
	}
}

// ParseColumnKind maps a declared SQLite column type to a ColumnKind.
//
// Follows SQLite's type affinity rules (section 3.1 of the datatype docs),
// with DATE/TIME declarations split out of NUMERIC since they are stored as
// text but compare chronologically.
func ParseColumnKind(declared string) ColumnKind {
	d := strings.ToUpper(strings.TrimSpace(declared))
	switch {
	case d == "":
		return KindUnknown
	case strings.Contains(d, "DATE"), strings.Contains(d, "TIME"):
		return KindDate
	case strings.Contains(d, "INT"):
		return KindInteger
	case strings.Contains(d, "CHAR"), strings.Contains(d, "CLOB"), strings.Contains(d, "TEXT"):
		return KindText
	case strings.Contains(d, "REAL"), strings.Contains(d, "FLOA"), strings.Contains(d, "DOUB"),
		strings.Contains(d, "NUMERIC"), strings.Contains(d, "DECIMAL"):
		return KindReal
	default:
		return KindUnknown
	}
}

// LookupColumnKind parses a kind name as written in catalogs ("TEXT", "date", ...).
// Returns false for names that are not one of the known kinds.
func LookupColumnKind(name string) (ColumnKind, bool) {
	switch k := ColumnKind(strings.ToUpper(strings.TrimSpace(name))); k {
	case KindText, KindInteger, KindReal, KindDate, KindUnknown:
		return k, true
	default:
		return "", false
	}
}

// ColumnDescriptor describes one column of a table as supplied by the data source.
// Descriptors are immutable for the duration of a session.
type ColumnDescriptor struct {
	Key      string     `json:"key"`
	Label    string     `json:"label"`
	Sortable bool       `json:"sortable"`
	Kind     ColumnKind `json:"kind"`
}

// FindColumn returns the descriptor with the given key.
func FindColumn(columns []ColumnDescriptor, key string) (ColumnDescriptor, bool) {
	for _, c := range columns {
		if c.Key == key {
			return c, true
		}
	}
	return ColumnDescriptor{}, false
}

// DescribeColumns derives descriptors for a column list with no catalog
// information: every column is sortable, labelled by its key, of unknown kind.
func DescribeColumns(keys []string) []ColumnDescriptor {
	cols := make([]ColumnDescriptor, len(keys))
	for i, k := range keys {
		cols[i] = ColumnDescriptor{Key: k, Label: k, Sortable: true, Kind: KindUnknown}
	}
	return cols
}

// Operator is a structured search operator.
type Operator string

const (
	OpContains    Operator = "contains"
	OpEquals      Operator = "equals"
	OpStartsWith  Operator = "starts_with"
	OpEndsWith    Operator = "ends_with"
	OpGreaterThan Operator = "greater_than"
	OpLessThan    Operator = "less_than"
	OpBetween     Operator = "between"
	OpIsNull      Operator = "is_null"
	OpIsNotNull   Operator = "is_not_null"
)

// Operators lists every valid operator in display order.
var Operators = []Operator{
	OpContains, OpEquals, OpStartsWith, OpEndsWith,
	OpGreaterThan, OpLessThan, OpBetween, OpIsNull, OpIsNotNull,
}

// Valid reports whether o is one of the known operators.
func (o Operator) Valid() bool {
	for _, op := range Operators {
		if o == op {
			return true
		}
	}
	return false
}

// RequiresValue reports whether the operator needs a comparison value.
func (o Operator) RequiresValue() bool {
	return o != OpIsNull && o != OpIsNotNull
}

// IsOrdering reports whether the operator needs an ordered column kind.
func (o Operator) IsOrdering() bool {
	return o == OpGreaterThan || o == OpLessThan || o == OpBetween
}

// MaxFilterLimit bounds FilterSpec.Limit.
const MaxFilterLimit = 1000

// FilterSpec is one structured search submission.
// It is constructed fresh per submission and never persisted.
type FilterSpec struct {
	Table     string   `json:"table" yaml:"table"`
	FullText  *string  `json:"full_text,omitempty" yaml:"full_text,omitempty"`
	Column    *string  `json:"column,omitempty" yaml:"column,omitempty"`
	Operator  Operator `json:"operator,omitempty" yaml:"operator,omitempty"`
	Value     *string  `json:"value,omitempty" yaml:"value,omitempty"`
	RangeFrom *string  `json:"range_from,omitempty" yaml:"range_from,omitempty"`
	RangeTo   *string  `json:"range_to,omitempty" yaml:"range_to,omitempty"`
	// Limit caps the result size; 0 defers to the gateway's row cap.
	Limit int `json:"limit,omitempty" yaml:"limit,omitempty"`
}

// String renders the spec for history display when it never reached translation.
func (s FilterSpec) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "search %s", s.Table)
	if s.FullText != nil {
		fmt.Fprintf(&b, " text=%q", *s.FullText)
	}
	if s.Column != nil {
		fmt.Fprintf(&b, " %s %s", *s.Column, s.Operator)
		if s.Value != nil {
			fmt.Fprintf(&b, " %q", *s.Value)
		}
		if s.RangeFrom != nil || s.RangeTo != nil {
			fmt.Fprintf(&b, " [%s..%s]", deref(s.RangeFrom), deref(s.RangeTo))
		}
	}
	if s.Limit > 0 {
		fmt.Fprintf(&b, " limit=%d", s.Limit)
	}
	return b.String()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// present reports whether an optional string was supplied with content.
func present(s *string) bool {
	return s != nil && *s != ""
}

// Predicate is a parameterized filter fragment.
//
// This is a sealed interface - only types in this package implement it.
// Literals are carried as ir.Value and are never rendered into query text
// by this package; backends bind them as parameters.
//
// Predicate types:
//   - Like: case-insensitive pattern match
//   - Compare: column <op> literal
//   - Range: inclusive column BETWEEN literal AND literal
//   - Null: IS NULL / IS NOT NULL
//   - And / Or: conjunction / disjunction
//   - False: matches nothing
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// Like matches Column against Pattern case-insensitively.
//
// Pattern uses LIKE syntax: % matches any run, _ any single character, and
// backslash escapes the next character. User text embedded in a pattern is
// escaped by Translate, so only the anchoring wildcards are live.
type Like struct {
	Column  string
	Pattern string
}

func (Like) predicateNode() {}

// CompareOp is a binary comparison operator.
type CompareOp string

const (
	CmpEq CompareOp = "="
	CmpGt CompareOp = ">"
	CmpLt CompareOp = "<"
	CmpGe CompareOp = ">="
	CmpLe CompareOp = "<="
)

// Compare represents Column <Op> Value.
type Compare struct {
	Column string
	Op     CompareOp
	Value  ir.Value
}

func (Compare) predicateNode() {}

// Range represents From <= Column <= To.
type Range struct {
	Column string
	From   ir.Value
	To     ir.Value
}

func (Range) predicateNode() {}

// Null represents Column IS NULL, or IS NOT NULL when Negate is set.
type Null struct {
	Column string
	Negate bool
}

func (Null) predicateNode() {}

// And is a conjunction. An empty And is always true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Or is a disjunction. An empty Or is always false.
type Or struct {
	Predicates []Predicate
}

func (Or) predicateNode() {}

// False matches no rows.
type False struct{}

func (False) predicateNode() {}
