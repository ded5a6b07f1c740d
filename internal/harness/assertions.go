package harness

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/PseudoDevs/IamJohnDevORM/internal/builder"
	"github.com/PseudoDevs/IamJohnDevORM/internal/queryir"
	"github.com/PseudoDevs/IamJohnDevORM/internal/store"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] step %d %s: %s %v\n", ev.Seq, ev.Step, ev.Op, ev.SQL, ev.Params)
		}
	}

	return buf.String()
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns one message per failed assertion. st answers final_state and
// row_count; its statements are not traced.
func EvaluateAssertions(ctx context.Context, result *Result, assertions []Assertion, st *store.Store) []string {
	var errs []string

	for i, a := range assertions {
		var err error

		switch a.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertFinalState, AssertRowCount:
			if st == nil {
				err = fmt.Errorf("assertion[%d]: %s requires a database", i, a.Type)
			} else if a.Type == AssertFinalState {
				err = assertFinalState(ctx, st, a)
			} else {
				err = assertRowCount(ctx, st, a)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}

		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	return errs
}

// statements returns the trace events visible to a, honoring its op filter.
func statements(trace []TraceEvent, a Assertion) []TraceEvent {
	if a.Op == "" {
		return trace
	}
	var out []TraceEvent
	for _, ev := range trace {
		if ev.Op == a.Op {
			out = append(out, ev)
		}
	}
	return out
}

func assertTraceContains(trace []TraceEvent, a Assertion) error {
	for _, ev := range statements(trace, a) {
		if strings.Contains(ev.SQL, a.SQL) {
			return nil
		}
	}

	expected := fmt.Sprintf("statement containing %q", a.SQL)
	if a.Op != "" {
		expected += " from " + a.Op
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: expected,
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder compares first occurrences. Statements need not be
// consecutive.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	events := statements(trace, a)
	positions := make([]int, len(a.Statements))

	for i, want := range a.Statements {
		for j, ev := range events {
			if strings.Contains(ev.SQL, want) {
				positions[i] = j + 1
				break
			}
		}
		if positions[i] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all statements present: %q", a.Statements),
				Actual:   fmt.Sprintf("missing statement: %q", want),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(positions); i++ {
		if positions[i-1] >= positions[i] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("statements in order: %q", a.Statements),
				Actual: fmt.Sprintf("%q (pos %d) should be before %q (pos %d)",
					a.Statements[i-1], positions[i-1], a.Statements[i], positions[i]),
				Trace: trace,
			}
		}
	}

	return nil
}

func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, ev := range statements(trace, a) {
		if strings.Contains(ev.SQL, a.SQL) {
			count++
		}
	}

	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d statements containing %q", a.Count, a.SQL),
			Actual:   fmt.Sprintf("%d statements", count),
			Trace:    trace,
		}
	}
	return nil
}

// filtered returns a builder over table with one equality per where key,
// in sorted key order. Identifiers go through the builder's sanitizer.
func filtered(st *store.Store, table string, where map[string]any) *builder.Builder {
	b := builder.New(st, table)
	for _, k := range sortedKeys(where) {
		b.Where(k, "=", where[k])
	}
	return b
}

// assertFinalState requires exactly one matching row, then checks the
// expected fields with subset semantics.
func assertFinalState(ctx context.Context, st *store.Store, a Assertion) error {
	rows, err := filtered(st, a.Table, a.Where).Get(ctx)
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("query table %s", a.Table),
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}

	switch len(rows) {
	case 0:
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("row in %s where %s", a.Table, formatWhere(a.Where)),
			Actual:   "row not found",
		}
	case 1:
	default:
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("exactly one row in %s where %s", a.Table, formatWhere(a.Where)),
			Actual:   fmt.Sprintf("%d rows matched (assertion is ambiguous)", len(rows)),
		}
	}

	row := rows[0]
	for _, key := range sortedKeys(a.Expect) {
		want := a.Expect[key]
		got, ok := row[key]
		if !ok {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q to exist", key),
				Actual:   fmt.Sprintf("field %q not present in row %v", key, row),
			}
		}
		if !valuesEqual(want, got) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q = %v (type %T)", key, want, want),
				Actual:   fmt.Sprintf("field %q = %v (type %T)", key, got, got),
			}
		}
	}

	return nil
}

func assertRowCount(ctx context.Context, st *store.Store, a Assertion) error {
	n, err := filtered(st, a.Table, a.Where).Count(ctx)
	if err != nil {
		return &AssertionError{
			Type:     AssertRowCount,
			Expected: fmt.Sprintf("count table %s", a.Table),
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}
	if n != int64(a.Count) {
		return &AssertionError{
			Type:     AssertRowCount,
			Expected: fmt.Sprintf("%d rows in %s where %s", a.Count, a.Table, formatWhere(a.Where)),
			Actual:   fmt.Sprintf("%d rows", n),
		}
	}
	return nil
}

func formatWhere(where map[string]any) string {
	if len(where) == 0 {
		return "(no conditions)"
	}
	keys := sortedKeys(where)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, where[k]))
	}
	return strings.Join(parts, " AND ")
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// matchRow reports whether row has every field of want with an equal value.
// Extra columns in row are ignored.
func matchRow(row queryir.Row, want map[string]any) bool {
	if row == nil {
		return len(want) == 0
	}
	for key, w := range want {
		got, ok := row[key]
		if !ok || !valuesEqual(w, got) {
			return false
		}
	}
	return true
}

// valuesEqual compares an expected value from YAML with a value read back
// from the database. Numbers compare by value across integer and float
// types; SQLite stores booleans as integers.
func valuesEqual(expected, actual any) bool {
	if expected == nil || actual == nil {
		return expected == nil && actual == nil
	}

	if e, ok := expected.(bool); ok {
		switch a := actual.(type) {
		case bool:
			return e == a
		case int64:
			return e == (a != 0)
		}
		return false
	}

	if e, ok := toFloat(expected); ok {
		if a, ok := toFloat(actual); ok {
			return e == a
		}
		return false
	}

	return reflect.DeepEqual(expected, actual)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
