// Package store provides the SQLite data source that exploration queries run against.
//
// The store is a thin collaborator: it executes text it is handed, with bound
// arguments and a row cap, and it introspects the schema. Deciding what text
// is safe to run is the gateway's job, not the store's.
//
//   - ExecuteRaw: run a read query, stop scanning at the row cap
//   - FetchRows: compile a queryir.Predicate over a table and run it
//   - Tables / Columns: sqlite_master and pragma_table_info introspection
//   - ExplainPlan: EXPLAIN QUERY PLAN rows
//   - Seed: load fixture scripts into writable scratch databases
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes (writable stores)
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//   - mode=ro + query_only: read-only stores refuse writes at the source
//
// # fold()
//
// Every connection opened through DriverName has a deterministic fold(x)
// SQL function installed. It applies NFC normalization and Unicode case
// folding (ir.Fold), so LIKE comparisons compiled by querysql are
// case-insensitive beyond ASCII.
package store
