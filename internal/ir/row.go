package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Row is an ordered mapping from column name to Value.
//
// The column set is only known per table at runtime, so rows are not fixed
// records. Column order is the order the data source reported.
// A Row is never mutated after construction; grid operations reorder rows,
// never their contents.
type Row struct {
	columns []string
	values  []Value
}

// NewRow creates a Row from parallel column and value slices.
// Missing trailing values are filled with Null.
func NewRow(columns []string, values []Value) Row {
	vals := make([]Value, len(columns))
	for i := range columns {
		if i < len(values) && values[i] != nil {
			vals[i] = values[i]
		} else {
			vals[i] = Null{}
		}
	}
	return Row{columns: columns, values: vals}
}

// F is a column/value pair for ergonomic row construction.
type F struct {
	Column string
	Value  Value
}

// RowOf builds a Row from pairs, preserving their order.
// Example: RowOf(F{"status", Text("進行中")}, F{"id", Integer(1)})
func RowOf(fields ...F) Row {
	cols := make([]string, len(fields))
	vals := make([]Value, len(fields))
	for i, f := range fields {
		cols[i] = f.Column
		vals[i] = f.Value
	}
	return NewRow(cols, vals)
}

// Len returns the number of fields.
func (r Row) Len() int {
	return len(r.columns)
}

// Columns returns the column names in order.
func (r Row) Columns() []string {
	return r.columns
}

// Values returns the values in column order.
func (r Row) Values() []Value {
	return r.values
}

// Get returns the value for column, or Null when the row has no such column.
func (r Row) Get(column string) Value {
	v, _ := r.Lookup(column)
	return v
}

// Lookup returns the value for column and whether the column exists.
func (r Row) Lookup(column string) (Value, bool) {
	for i, c := range r.columns {
		if c == column {
			return r.values[i], true
		}
	}
	return Null{}, false
}

// MarshalJSON emits the row as a JSON object in column order.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range r.columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(c)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(r.values[i])
		if err != nil {
			return nil, fmt.Errorf("row column %q: %w", c, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ResultSet is a block of rows sharing one ordered column list.
type ResultSet struct {
	Columns []string
	Rows    []Row
}

// PlanStep is one line of a query plan as reported by the data source.
type PlanStep struct {
	ID     int64  `json:"id"`
	Parent int64  `json:"parent"`
	Detail string `json:"detail"`
}
