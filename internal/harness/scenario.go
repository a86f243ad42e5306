package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/history"
	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/queryir"
)

// Scenario is a scripted exploration session.
// A scenario seeds a fixture database, runs a flow of queries, searches
// and grid operations through one session, and asserts on the resulting
// history and data.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Seed is the SQL script that builds the fixture database.
	Seed string `yaml:"seed,omitempty"`

	// SeedFile is a SQL script path, relative to the scenario file.
	// Used when Seed is empty.
	SeedFile string `yaml:"seed_file,omitempty"`

	// Catalog is an optional CUE catalog directory, relative to the
	// scenario file, refining column labels and kinds.
	Catalog string `yaml:"catalog,omitempty"`

	// Limits override the session defaults.
	Limits Limits `yaml:"limits,omitempty"`

	// Flow is the ordered list of operator actions.
	Flow []Step `yaml:"flow"`

	// Assertions validate history and data after the flow.
	Assertions []Assertion `yaml:"assertions"`

	// SessionID fixes the session id. Defaults to "test-session-default".
	SessionID string `yaml:"session_id,omitempty"`
}

// Limits are per-scenario session limits. Zero values keep the defaults.
type Limits struct {
	MaxRows    int    `yaml:"max_rows,omitempty"`
	Timeout    string `yaml:"timeout,omitempty"`
	HistoryCap int    `yaml:"history_cap,omitempty"`
	PageSize   int    `yaml:"page_size,omitempty"`
}

// Step is one operator action. Exactly one of the action fields is set.
type Step struct {
	Query        string              `yaml:"query,omitempty"`
	Search       *queryir.FilterSpec `yaml:"search,omitempty"`
	Replay       int64               `yaml:"replay,omitempty"`
	Lint         string              `yaml:"lint,omitempty"`
	Explain      string              `yaml:"explain,omitempty"`
	View         *ViewStep           `yaml:"view,omitempty"`
	ClearHistory bool                `yaml:"clear_history,omitempty"`

	// Expect validates the step. If nil, the step is not checked.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ViewStep changes the grid over the latest successful result.
// Fields apply in order: page size, typed sort, sort, search term, page.
type ViewStep struct {
	PageSize  int    `yaml:"page_size,omitempty"`
	TypedSort bool   `yaml:"typed_sort,omitempty"`
	Sort      string `yaml:"sort,omitempty"`
	Desc      bool   `yaml:"desc,omitempty"`
	Search    string `yaml:"search,omitempty"`
	Page      int    `yaml:"page,omitempty"` // 1-based
}

// ExpectClause specifies the expected result of a step.
type ExpectClause struct {
	// Outcome is success, rejected or failed; valid or invalid for lint.
	// Ignored for view steps.
	Outcome string `yaml:"outcome,omitempty"`

	// Reason is the rejection or failure code, or the lint classification.
	Reason string `yaml:"reason,omitempty"`

	// RowCount is the number of rows returned, or visible for a view.
	RowCount *int `yaml:"row_count,omitempty"`

	// Rows are matched in order against the leading rows.
	// Subset match: only the listed columns are compared.
	Rows []map[string]any `yaml:"rows,omitempty"`
}

// Assertion validates history or data after the flow.
type Assertion struct {
	// Type selects the check:
	// - "history_count": history holds exactly Count entries
	// - "history_outcomes": entry outcomes, oldest first, equal Outcomes
	// - "history_contains": an entry with Query (and Outcome, if set) exists
	// - "trace_count": Count events with Action (and Outcome, if set)
	// - "final_state": Table row matching Where has the Expect values
	Type string `yaml:"type"`

	Count    int      `yaml:"count,omitempty"`
	Outcomes []string `yaml:"outcomes,omitempty"`
	Query    string   `yaml:"query,omitempty"`
	Outcome  string   `yaml:"outcome,omitempty"`
	Action   string   `yaml:"action,omitempty"`

	// Table, Where and Expect are used by final_state.
	Table  string         `yaml:"table,omitempty"`
	Where  map[string]any `yaml:"where,omitempty"`
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertHistoryCount    = "history_count"
	AssertHistoryOutcomes = "history_outcomes"
	AssertHistoryContains = "history_contains"
	AssertTraceCount      = "trace_count"
	AssertFinalState      = "final_state"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// Seed and catalog paths are resolved relative to the file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	base := filepath.Dir(path)
	if scenario.SeedFile != "" && !filepath.IsAbs(scenario.SeedFile) {
		scenario.SeedFile = filepath.Join(base, scenario.SeedFile)
	}
	if scenario.Catalog != "" && !filepath.IsAbs(scenario.Catalog) {
		scenario.Catalog = filepath.Join(base, scenario.Catalog)
	}

	if err := validatePaths(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return scenario, nil
}

// ParseScenario decodes scenario YAML and validates it.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Seed == "" && s.SeedFile == "" {
		return fmt.Errorf("seed or seed_file is required")
	}
	if s.Seed != "" && s.SeedFile != "" {
		return fmt.Errorf("seed and seed_file are mutually exclusive")
	}

	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	if s.Limits.Timeout != "" {
		if d, err := time.ParseDuration(s.Limits.Timeout); err != nil || d <= 0 {
			return fmt.Errorf("limits.timeout: invalid duration %q", s.Limits.Timeout)
		}
	}
	if s.Limits.MaxRows < 0 || s.Limits.HistoryCap < 0 || s.Limits.PageSize < 0 {
		return fmt.Errorf("limits must be non-negative")
	}

	for i := range s.Flow {
		if err := validateStep(i, &s.Flow[i]); err != nil {
			return err
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}

	return nil
}

func validatePaths(s *Scenario) error {
	if s.SeedFile != "" {
		if _, err := os.Stat(s.SeedFile); os.IsNotExist(err) {
			return fmt.Errorf("seed file not found: %s", s.SeedFile)
		}
	}
	if s.Catalog != "" {
		if _, err := os.Stat(s.Catalog); os.IsNotExist(err) {
			return fmt.Errorf("catalog directory not found: %s", s.Catalog)
		}
	}
	return nil
}

// action returns the step's action name and how many action fields are set.
func (s *Step) action() (string, int) {
	var name string
	n := 0
	set := func(ok bool, a string) {
		if ok {
			name = a
			n++
		}
	}
	set(s.Query != "", ActionQuery)
	set(s.Search != nil, ActionSearch)
	set(s.Replay != 0, ActionReplay)
	set(s.Lint != "", ActionLint)
	set(s.Explain != "", ActionExplain)
	set(s.View != nil, ActionView)
	set(s.ClearHistory, ActionClear)
	return name, n
}

func validateStep(index int, s *Step) error {
	action, n := s.action()
	if n != 1 {
		return fmt.Errorf("flow[%d]: exactly one action is required, found %d", index, n)
	}

	switch action {
	case ActionSearch:
		if s.Search.Table == "" {
			return fmt.Errorf("flow[%d]: search.table is required", index)
		}
	case ActionReplay:
		if s.Replay < 0 {
			return fmt.Errorf("flow[%d]: replay id must be positive", index)
		}
	case ActionView:
		if s.View.PageSize < 0 || s.View.Page < 0 {
			return fmt.Errorf("flow[%d]: view page and page_size must be non-negative", index)
		}
	}

	if s.Expect == nil {
		return nil
	}
	switch action {
	case ActionClear, ActionExplain:
		return fmt.Errorf("flow[%d]: %s takes no expect clause", index, action)
	case ActionLint:
		if s.Expect.Outcome != "valid" && s.Expect.Outcome != "invalid" {
			return fmt.Errorf("flow[%d].expect: lint outcome must be valid or invalid", index)
		}
	case ActionView:
		if s.Expect.Outcome != "" || s.Expect.Reason != "" {
			return fmt.Errorf("flow[%d].expect: view checks rows only", index)
		}
	default:
		if !validOutcome(s.Expect.Outcome) {
			return fmt.Errorf("flow[%d].expect: outcome must be success, rejected or failed", index)
		}
	}
	return nil
}

func validOutcome(o string) bool {
	switch o {
	case history.OutcomeSuccess, history.OutcomeRejected, history.OutcomeFailed:
		return true
	}
	return false
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertHistoryCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for history_count", index)
		}
	case AssertHistoryOutcomes:
		for _, o := range a.Outcomes {
			if !validOutcome(o) {
				return fmt.Errorf("assertions[%d]: unknown outcome %q", index, o)
			}
		}
	case AssertHistoryContains:
		if a.Query == "" {
			return fmt.Errorf("assertions[%d]: query is required for history_contains", index)
		}
		if a.Outcome != "" && !validOutcome(a.Outcome) {
			return fmt.Errorf("assertions[%d]: unknown outcome %q", index, a.Outcome)
		}
	case AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
