// Package harness runs scripted exploration sessions against fixture data.
//
// A scenario seeds a SQLite database, opens it read-only, and drives one
// session through queries, structured searches, history replay and grid
// operations. Each step can carry an expect clause; assertions then check
// the session's history and the fixture data.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	seed_file: ../seed/hub.sql        # or an inline seed: script
//	catalog: path/to/catalog          # optional CUE catalog directory
//	limits: {max_rows: 2, timeout: 5s, history_cap: 3, page_size: 20}
//	flow:
//	  - query: "SELECT id FROM projects"
//	    expect: {outcome: success, row_count: 2, rows: [{id: 1}]}
//	  - search: {table: projects, column: status, operator: equals, value: 完了}
//	  - view: {sort: name, desc: true, page_size: 1, page: 2}
//	  - replay: 1
//	  - lint: "DELETE FROM projects"
//	    expect: {outcome: invalid, reason: mutating}
//	  - explain: "SELECT * FROM projects"
//	  - clear_history: true
//	assertions:
//	  - type: history_outcomes
//	    outcomes: [success, rejected]
//	  - type: final_state
//	    table: projects
//	    where: {id: 1}
//	    expect: {name: Alpha Plant}
//
// # Assertion Types
//
//   - history_count: the history holds exactly count entries
//   - history_outcomes: entry outcomes, oldest first
//   - history_contains: an entry with the query text (and outcome) exists
//   - trace_count: a step action ran count times (optionally with an outcome)
//   - final_state: a fixture row still holds the expected values
//
// # Deterministic Testing
//
// Session ids are fixed, history ids come from testutil.DeterministicClock
// and the wall clock is a testutil.SteppingTime. Trace events carry no
// timings, so a scenario's trace is identical across runs and can be
// compared against testdata/golden with RunWithGolden.
package harness
