// Package queryir provides the structured search model and its predicate
// intermediate representation (IR).
//
// A FilterSpec is what an operator builds in the search form: a table, an
// optional full-text term, and an optional column condition. Validate checks it
// against the table's ColumnDescriptors; Translate turns it into a Predicate
// fragment.
//
//	[FilterSpec] → Validate → Translate → [Predicate] → querysql → SQL + args
//
// # Parameterized literals
//
// Predicates carry user literals as ir.Value and never as query text. The SQL
// backend binds each one as a parameter, so a value such as
//
//	'; DROP TABLE t; --
//
// is compared, not executed. LIKE metacharacters in user text are escaped
// before they are placed into a pattern.
//
// # Sealed interfaces
//
// Predicate is sealed using the marker method pattern so backends can switch
// exhaustively over Like, Compare, Range, Null, And, Or and False.
//
// # Open range bounds
//
// between with only one bound degrades to an inclusive single-sided
// comparison (>= or <=). This is an assumption to confirm against real usage.
package queryir
