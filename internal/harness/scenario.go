package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance scenario.
// A scenario migrates a schema into a fresh database, runs a sequence of
// builder and validation steps with expected outcomes, and asserts on the
// statement trace and the final table contents.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Schema lists migration scripts, applied in order before the steps.
	Schema []string `yaml:"schema"`

	// Steps are executed in order against the migrated database.
	Steps []Step `yaml:"steps"`

	// Assertions validate the trace and final state after all steps.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one builder or validation call.
type Step struct {
	// Op is one of the Op constants.
	Op string `yaml:"op"`

	// Table is the builder's table. For validate steps it is the default
	// table of unique and exists rules.
	Table string `yaml:"table,omitempty"`

	// ID addresses the row for update, delete and find.
	ID any `yaml:"id,omitempty"`

	// Data is the record for create, update and validate.
	Data map[string]any `yaml:"data,omitempty"`

	// Rules maps fields to rule specs for create, update and validate.
	Rules map[string]string `yaml:"rules,omitempty"`

	// Query configures the builder before the terminal call.
	Query *QuerySpec `yaml:"query,omitempty"`

	// Expect is the expected outcome. Without it the step must not fail.
	Expect *Expect `yaml:"expect,omitempty"`
}

// QuerySpec mirrors the builder chain methods.
type QuerySpec struct {
	Select  []string    `yaml:"select,omitempty"`
	Where   []Condition `yaml:"where,omitempty"`
	Joins   []Join      `yaml:"joins,omitempty"`
	GroupBy string      `yaml:"group_by,omitempty"`
	OrderBy string      `yaml:"order_by,omitempty"`
	Limit   *int        `yaml:"limit,omitempty"`
	Offset  *int        `yaml:"offset,omitempty"`
}

// Condition is one where call.
type Condition struct {
	Column string `yaml:"column"`
	Op     string `yaml:"op"`
	Value  any    `yaml:"value"`
}

// Join is one join call. An empty Type is an inner join.
type Join struct {
	Type  string `yaml:"type,omitempty"`
	Table string `yaml:"table"`
	On    string `yaml:"on"`
}

// Expect specifies the expected outcome of a step. Only the fields that
// are set are checked.
type Expect struct {
	// Error is the expected error class (see the Err constants). When set,
	// no other field is checked.
	Error string `yaml:"error,omitempty"`

	// Success and RowsAffected check a write result.
	Success      *bool  `yaml:"success,omitempty"`
	RowsAffected *int64 `yaml:"rows_affected,omitempty"`

	// Valid checks a validate result.
	Valid *bool `yaml:"valid,omitempty"`

	// Errors must equal the validation errors of a write or validate step.
	Errors map[string]map[string]string `yaml:"errors,omitempty"`

	// Count checks a count result.
	Count *int64 `yaml:"count,omitempty"`

	// Rows checks get and all: same length, each row a subset match.
	Rows []map[string]any `yaml:"rows,omitempty"`

	// Row checks find, first and last as a subset match.
	Row map[string]any `yaml:"row,omitempty"`
}

// Step operations.
const (
	OpCreate   = "create"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpFind     = "find"
	OpFirst    = "first"
	OpLast     = "last"
	OpCount    = "count"
	OpGet      = "get"
	OpAll      = "all"
	OpValidate = "validate"
)

// Error classes for Expect.Error.
const (
	ErrNotFound          = "not_found"
	ErrInvalidOperator   = "invalid_operator"
	ErrInvalidArgument   = "invalid_argument"
	ErrInvalidIdentifier = "invalid_identifier"
	ErrInvalidRuleSpec   = "invalid_rule_spec"
	ErrStatement         = "statement"
)

// Assertion validates the trace or the final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": some statement contains SQL (optionally from step op Op)
	// - "trace_order": statements containing each of Statements appear in order
	// - "trace_count": exactly Count statements contain SQL
	// - "final_state": exactly one row of Table matches Where and has Expect
	// - "row_count": Table has Count rows matching Where
	Type string `yaml:"type"`

	// Op restricts trace assertions to statements issued by steps with this op.
	Op string `yaml:"op,omitempty"`

	// SQL is a substring of the statement text (trace_contains, trace_count).
	SQL string `yaml:"sql,omitempty"`

	// Statements are SQL substrings in expected order (trace_order).
	Statements []string `yaml:"statements,omitempty"`

	// Table is queried by final_state and row_count.
	Table string `yaml:"table,omitempty"`

	// Where filters rows by column equality (final_state, row_count).
	Where map[string]any `yaml:"where,omitempty"`

	// Expect contains expected field values (final_state, subset match).
	Expect map[string]any `yaml:"expect,omitempty"`

	// Count is the expected number (trace_count, row_count).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
	AssertRowCount      = "row_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "step:" vs "steps:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := Validate(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// Validate checks that required fields are present and consistent.
func Validate(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Schema) == 0 {
		return fmt.Errorf("schema list is required and must be non-empty")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i := range s.Steps {
		if err := validateStep(i, &s.Steps[i]); err != nil {
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

// validateStep checks the fields each op needs.
func validateStep(index int, st *Step) error {
	switch st.Op {
	case OpCreate, OpUpdate:
		if len(st.Data) == 0 && (st.Expect == nil || st.Expect.Error == "") {
			return fmt.Errorf("steps[%d]: data is required for %s", index, st.Op)
		}
	case OpValidate:
		if len(st.Rules) == 0 {
			return fmt.Errorf("steps[%d]: rules are required for validate", index)
		}
	case OpDelete, OpFind, OpFirst, OpLast, OpCount, OpGet, OpAll:
	case "":
		return fmt.Errorf("steps[%d]: op is required", index)
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", index, st.Op)
	}

	if st.Op != OpValidate && st.Table == "" {
		return fmt.Errorf("steps[%d]: table is required for %s", index, st.Op)
	}

	switch st.Op {
	case OpUpdate, OpDelete, OpFind:
		if st.ID == nil {
			return fmt.Errorf("steps[%d]: id is required for %s", index, st.Op)
		}
	}

	if st.Expect != nil {
		switch st.Expect.Error {
		case "", ErrNotFound, ErrInvalidOperator, ErrInvalidArgument,
			ErrInvalidIdentifier, ErrInvalidRuleSpec, ErrStatement:
		default:
			return fmt.Errorf("steps[%d].expect: unknown error class %q", index, st.Expect.Error)
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.SQL == "" {
			return fmt.Errorf("assertions[%d]: sql is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Statements) == 0 {
			return fmt.Errorf("assertions[%d]: statements list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.SQL == "" {
			return fmt.Errorf("assertions[%d]: sql is required for trace_count", index)
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
	case AssertRowCount:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for row_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for row_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
