// Package gateway is the single path by which exploration queries reach the
// store.
//
// Every QueryRequest is classified before execution:
//
//   - FilterRequest: validated, translated to a queryir.Predicate and
//     compiled to parameterized SQL. ReadOnly by construction.
//   - RawRequest: lexed (strings, quoted identifiers and comments are
//     opaque) and classified ReadOnly, Mutating or Unparseable. Only a
//     single SELECT or an informational PRAGMA is ReadOnly.
//
// Read-only requests run with a row cap (LIMIT appended when absent, and
// the store stops scanning at the cap) and a per-call deadline. A request
// whose deadline passes returns Failed(timeout) at once; the store call is
// interrupted through its context and any late result is dropped.
//
// Every Execute call records exactly one history entry, whether the
// request was rejected, failed or succeeded.
package gateway
