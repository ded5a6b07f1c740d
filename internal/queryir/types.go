package queryir

import "reflect"

// Row is a single result row keyed by column name.
type Row map[string]any

// Operator is a comparison operator permitted in a where condition.
type Operator string

const (
	OpEqual        Operator = "="
	OpNotEqual     Operator = "!="
	OpLess         Operator = "<"
	OpGreater      Operator = ">"
	OpLessEqual    Operator = "<="
	OpGreaterEqual Operator = ">="
	OpLike         Operator = "LIKE"
	OpIn           Operator = "IN"
)

// WhereCondition is one predicate of a WHERE clause.
//
// Value is a scalar for every operator except IN, where it is the expanded
// sequence of values. A condition contributes exactly one placeholder per
// scalar value.
type WhereCondition struct {
	Column   string
	Operator Operator
	Value    any
	Values   []any
}

// NewCondition builds a WhereCondition after sanitizing the column and
// checking the operator against the allow-list.
//
// IN requires a non-empty sequence (a scalar is treated as a one-element
// sequence). Every other operator requires a scalar.
func NewCondition(column, operator string, value any) (WhereCondition, error) {
	op, err := NormalizeOperator(operator)
	if err != nil {
		return WhereCondition{}, err
	}

	col, err := SanitizeReference(column)
	if err != nil {
		return WhereCondition{}, err
	}

	seq, isSeq := asSequence(value)
	if op == OpIn {
		if !isSeq {
			seq = []any{value}
		}
		if len(seq) == 0 {
			return WhereCondition{}, NewArgumentError(column, "IN requires at least one value")
		}
		return WhereCondition{Column: col, Operator: op, Values: seq}, nil
	}

	if isSeq {
		return WhereCondition{}, NewArgumentError(column, "operator %s does not accept a sequence value", op)
	}
	return WhereCondition{Column: col, Operator: op, Value: value}, nil
}

// Params returns the bind values of the condition in placeholder order.
func (c WhereCondition) Params() []any {
	if c.Operator == OpIn {
		out := make([]any, len(c.Values))
		copy(out, c.Values)
		return out
	}
	return []any{c.Value}
}

// Placeholders returns how many placeholders the condition compiles to.
func (c WhereCondition) Placeholders() int {
	if c.Operator == OpIn {
		return len(c.Values)
	}
	return 1
}

// ConditionSet is an ordered collection of where conditions.
// Conditions are ANDed in insertion order.
type ConditionSet struct {
	conditions []WhereCondition
}

// Add appends a condition.
func (s *ConditionSet) Add(c WhereCondition) {
	s.conditions = append(s.conditions, c)
}

// Len returns the number of conditions.
func (s ConditionSet) Len() int {
	return len(s.conditions)
}

// All returns a copy of the conditions in insertion order.
func (s ConditionSet) All() []WhereCondition {
	out := make([]WhereCondition, len(s.conditions))
	copy(out, s.conditions)
	return out
}

// Params returns the bind values of every condition, left to right.
func (s ConditionSet) Params() []any {
	var params []any
	for _, c := range s.conditions {
		params = append(params, c.Params()...)
	}
	return params
}

// Clone returns an independent copy of the set.
func (s ConditionSet) Clone() ConditionSet {
	return ConditionSet{conditions: s.All()}
}

// JoinType is the kind of a join clause.
type JoinType string

const (
	JoinInner JoinType = "INNER"
	JoinLeft  JoinType = "LEFT"
	JoinRight JoinType = "RIGHT"
)

// JoinClause joins another table on a single column comparison.
//
// Example: JoinClause{Type: JoinLeft, Table: "posts", Left: "users.id",
// Operator: "=", Right: "posts.user_id"} compiles to
// "LEFT JOIN posts ON users.id = posts.user_id".
type JoinClause struct {
	Type     JoinType
	Table    string
	Left     string
	Operator Operator
	Right    string
}

// Direction is an ORDER BY direction.
type Direction string

const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

// OrderClause is the single ORDER BY column of a query.
// A zero OrderClause means no ordering.
type OrderClause struct {
	Column    string
	Direction Direction
}

// IsZero reports whether no ordering was requested.
func (o OrderClause) IsZero() bool {
	return o.Column == ""
}

// State is the clause state accumulated by a builder.
//
// GroupBy, OrderBy, Limit and Offset are last-call-wins. Columns,
// Conditions and Joins accumulate.
type State struct {
	Table      string
	Columns    []string
	Conditions ConditionSet
	Joins      []JoinClause
	GroupBy    string
	OrderBy    OrderClause
	Limit      *uint64
	Offset     *uint64
}

// NewState returns an empty state for table.
func NewState(table string) State {
	return State{Table: table}
}

// Projection returns the projected columns, or ["*"] when none were selected.
func (s State) Projection() []string {
	if len(s.Columns) == 0 {
		return []string{"*"}
	}
	out := make([]string, len(s.Columns))
	copy(out, s.Columns)
	return out
}

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	clone := s
	clone.Columns = append([]string(nil), s.Columns...)
	clone.Conditions = s.Conditions.Clone()
	clone.Joins = append([]JoinClause(nil), s.Joins...)
	if s.Limit != nil {
		n := *s.Limit
		clone.Limit = &n
	}
	if s.Offset != nil {
		n := *s.Offset
		clone.Offset = &n
	}
	return clone
}

// asSequence expands slices and arrays into []any. Byte slices are scalars
// (they bind as BLOBs).
func asSequence(v any) ([]any, bool) {
	if v == nil {
		return nil, false
	}
	if seq, ok := v.([]any); ok {
		return append([]any(nil), seq...), true
	}
	if _, ok := v.([]byte); ok {
		return nil, false
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
