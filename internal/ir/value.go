package ir

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Value is a sealed interface representing one cell of a dynamically shaped row.
// Only Null, Text, Integer, Real, and Date implement this.
type Value interface {
	irValue() // Sealed - only these types implement it
}

// Null represents a SQL NULL.
// Using an explicit type ensures all Values satisfy the sealed interface.
type Null struct{}

func (Null) irValue() {}

// MarshalJSON implements json.Marshaler for Null.
func (Null) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// Text represents a string value.
type Text string

func (Text) irValue() {}

// Integer represents a 64-bit integer value.
type Integer int64

func (Integer) irValue() {}

// Real represents a floating point value.
// Real values never take part in identity or hashing, only display and sort.
type Real float64

func (Real) irValue() {}

// MarshalJSON implements json.Marshaler for Real.
// NaN and infinities have no JSON form and are emitted as strings.
func (r Real) MarshalJSON() ([]byte, error) {
	f := float64(r)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return json.Marshal(String(r))
	}
	return json.Marshal(f)
}

// Date represents a date or timestamp value.
type Date time.Time

func (Date) irValue() {}

// Time returns the underlying time.Time.
func (d Date) Time() time.Time {
	return time.Time(d)
}

// MarshalJSON implements json.Marshaler for Date using its text form.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(String(d))
}

// Date layouts used for the text form.
const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02 15:04:05"

	DateTimeOffsetLayout = "2006-01-02 15:04:05-07:00"
)

// String returns the text form of a value.
//
// This is the representation the grid searches and sorts on:
//   - Null renders as the empty string
//   - Integer and Real render in their shortest decimal form
//   - Date renders in its own location: YYYY-MM-DD when it has no clock
//     component, otherwise YYYY-MM-DD HH:MM:SS, followed by the offset
//     when it is not UTC
func String(v Value) string {
	switch val := v.(type) {
	case nil, Null:
		return ""
	case Text:
		return string(val)
	case Integer:
		return strconv.FormatInt(int64(val), 10)
	case Real:
		return strconv.FormatFloat(float64(val), 'g', -1, 64)
	case Date:
		t := time.Time(val)
		if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
			return t.Format(DateLayout)
		}
		if _, offset := t.Zone(); offset != 0 {
			return t.Format(DateTimeOffsetLayout)
		}
		return t.Format(DateTimeLayout)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// IsNull reports whether v is a SQL NULL.
func IsNull(v Value) bool {
	switch v.(type) {
	case nil, Null:
		return true
	default:
		return false
	}
}

// FromDriver converts a value scanned by database/sql into a Value.
// Byte slices become Text; booleans become Integer 0/1 the way SQLite stores them.
func FromDriver(v any) Value {
	switch val := v.(type) {
	case nil:
		return Null{}
	case string:
		return Text(val)
	case []byte:
		return Text(string(val))
	case int64:
		return Integer(val)
	case int:
		return Integer(int64(val))
	case int32:
		return Integer(int64(val))
	case float64:
		return Real(val)
	case float32:
		return Real(float64(val))
	case bool:
		if val {
			return Integer(1)
		}
		return Integer(0)
	case time.Time:
		return Date(val)
	case Value:
		return val
	default:
		return Text(fmt.Sprintf("%v", val))
	}
}

// ToParam converts a Value to a Go native type for use as a SQL parameter.
func ToParam(v Value) any {
	switch val := v.(type) {
	case nil, Null:
		return nil
	case Text:
		return string(val)
	case Integer:
		return int64(val)
	case Real:
		return float64(val)
	case Date:
		return String(val)
	default:
		return String(v)
	}
}

// Compare orders two values with typed semantics.
//
// Nulls sort first, then numbers (Integer and Real compared numerically),
// then dates, then text. Values of different classes order by class.
// Returns -1, 0 or 1.
func Compare(a, b Value) int {
	ca, cb := class(a), class(b)
	if ca != cb {
		return cmpInt(ca, cb)
	}
	switch ca {
	case classNull:
		return 0
	case classNumber:
		fa, fb := number(a), number(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	case classDate:
		return time.Time(a.(Date)).Compare(time.Time(b.(Date)))
	default:
		return compareText(String(a), String(b))
	}
}

const (
	classNull = iota
	classNumber
	classDate
	classText
)

func class(v Value) int {
	switch v.(type) {
	case nil, Null:
		return classNull
	case Integer, Real:
		return classNumber
	case Date:
		return classDate
	default:
		return classText
	}
}

func number(v Value) float64 {
	switch val := v.(type) {
	case Integer:
		return float64(val)
	case Real:
		return float64(val)
	}
	return 0
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareText(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
