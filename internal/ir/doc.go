// Package ir defines the value model shared by the exploration subsystem.
//
// Rows returned by an ad-hoc query have no fixed shape: the column set is only
// known once the data source answers. Every cell is therefore carried as a
// Value, a sealed tagged variant:
//
//	Null | Text | Integer | Real | Date
//
// and a Row is an ordered column → Value mapping.
//
// # Text form
//
// String(v) is the single text rendering used everywhere a value is shown,
// searched, or sorted lexicographically. Fold(s) produces the Unicode
// case-insensitive form used for substring matching.
//
// # Sealed interfaces
//
// Value uses the marker method pattern, so type switches over Null, Text,
// Integer, Real and Date are exhaustive:
//
//	switch v := value.(type) {
//	case ir.Null:
//	case ir.Text:
//	case ir.Integer:
//	case ir.Real:
//	case ir.Date:
//	}
package ir
