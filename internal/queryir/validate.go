package queryir

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrorCode identifies the validation failure category.
type ErrorCode string

const (
	// CodeMissingValue indicates the operator needs a value and none was supplied.
	CodeMissingValue ErrorCode = "MISSING_VALUE"

	// CodeUnknownColumn indicates the column is not among the table's descriptors.
	CodeUnknownColumn ErrorCode = "UNKNOWN_COLUMN"

	// CodeTypeMismatch indicates an ordering operator on a non-ordered column
	// kind, or a literal that cannot be read as the column's kind.
	CodeTypeMismatch ErrorCode = "TYPE_MISMATCH"

	// CodeInvalidOperator indicates an operator outside the known set.
	CodeInvalidOperator ErrorCode = "INVALID_OPERATOR"

	// CodeInvalidLimit indicates a limit outside [0, MaxFilterLimit].
	CodeInvalidLimit ErrorCode = "INVALID_LIMIT"

	// CodeMissingTable indicates an empty table name.
	CodeMissingTable ErrorCode = "MISSING_TABLE"

	// CodeUnknownTable indicates the table has no known columns.
	CodeUnknownTable ErrorCode = "UNKNOWN_TABLE"
)

// ValidationError describes why a FilterSpec cannot be translated.
// It is always raised before any store contact.
type ValidationError struct {
	Code    ErrorCode
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsValidationError returns true if err is or wraps a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// HasCode returns true if err is a ValidationError with the given code.
func HasCode(err error, code ErrorCode) bool {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Code == code
	}
	return false
}

func invalid(code ErrorCode, field, format string, args ...any) *ValidationError {
	return &ValidationError{Code: code, Field: field, Message: fmt.Sprintf(format, args...)}
}

// Validate checks a FilterSpec against the table's column descriptors.
//
// Checks run in this order:
//  1. Table is named and has columns
//  2. Limit is within [0, MaxFilterLimit]
//  3. Operator is known (when a column condition is present)
//  4. A value is supplied when the operator requires one
//  5. The column exists
//  6. Ordering operators target an ordered kind, with literals of that kind
//
// Validate is a pure function with no side effects.
func Validate(spec FilterSpec, columns []ColumnDescriptor) error {
	if strings.TrimSpace(spec.Table) == "" {
		return invalid(CodeMissingTable, "table", "table name is required")
	}
	if len(columns) == 0 {
		return invalid(CodeUnknownTable, "table", "table %q has no known columns", spec.Table)
	}
	if spec.Limit < 0 || spec.Limit > MaxFilterLimit {
		return invalid(CodeInvalidLimit, "limit", "limit must be between 0 (the default cap) and %d, got %d", MaxFilterLimit, spec.Limit)
	}

	if !present(spec.Column) {
		if spec.Operator != "" && !spec.Operator.Valid() {
			return invalid(CodeInvalidOperator, "operator", "unknown operator %q", spec.Operator)
		}
		return nil
	}

	if !spec.Operator.Valid() {
		return invalid(CodeInvalidOperator, "operator", "unknown operator %q", spec.Operator)
	}

	if spec.Operator.RequiresValue() && !hasValue(spec) {
		return invalid(CodeMissingValue, "value", "operator %s requires a value", spec.Operator)
	}

	col, ok := FindColumn(columns, *spec.Column)
	if !ok {
		return invalid(CodeUnknownColumn, "column", "column %q does not exist in %s", *spec.Column, spec.Table)
	}

	if spec.Operator.IsOrdering() {
		if !col.Kind.IsOrdered() {
			return invalid(CodeTypeMismatch, "operator",
				"operator %s needs a numeric or date column, %s is %s", spec.Operator, col.Key, col.Kind)
		}
		for _, lit := range orderingLiterals(spec) {
			if !literalFits(col.Kind, lit) {
				return invalid(CodeTypeMismatch, "value", "%q is not a valid %s value for %s", lit, col.Kind, col.Key)
			}
		}
	}

	return nil
}

// hasValue reports whether the spec carries the value its operator needs.
// between is satisfied by either bound (or Value standing in for the lower one).
func hasValue(spec FilterSpec) bool {
	if spec.Operator == OpBetween {
		return present(spec.RangeFrom) || present(spec.RangeTo) || present(spec.Value)
	}
	return present(spec.Value)
}

func orderingLiterals(spec FilterSpec) []string {
	var lits []string
	if spec.Operator == OpBetween {
		if from, ok := lowerBound(spec); ok {
			lits = append(lits, from)
		}
		if present(spec.RangeTo) {
			lits = append(lits, *spec.RangeTo)
		}
		return lits
	}
	if present(spec.Value) {
		lits = append(lits, *spec.Value)
	}
	return lits
}

// lowerBound returns RangeFrom, falling back to Value.
func lowerBound(spec FilterSpec) (string, bool) {
	if present(spec.RangeFrom) {
		return *spec.RangeFrom, true
	}
	if present(spec.Value) {
		return *spec.Value, true
	}
	return "", false
}

func literalFits(kind ColumnKind, lit string) bool {
	s := strings.TrimSpace(lit)
	switch kind {
	case KindInteger:
		_, err := strconv.ParseInt(s, 10, 64)
		return err == nil
	case KindReal:
		_, err := strconv.ParseFloat(s, 64)
		return err == nil
	default:
		return true
	}
}
