package querysql

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/PseudoDevs/IamJohnDevORM/internal/queryir"
)

// KeyColumn is the surrogate key every table is assumed to have.
//
// Find, Last, Update and Delete address rows through it, and Last assumes
// it increases monotonically with insertion order. Tables without an "id"
// column cannot use those operations.
const KeyColumn = "id"

// Statement is a compiled SQL statement with its positional bind values.
type Statement struct {
	SQL    string
	Params []any
}

// Args returns a copy of the bind values so the statement stays immutable.
func (s Statement) Args() []any {
	out := make([]any, len(s.Params))
	copy(out, s.Params)
	return out
}

// LimitMode selects how LIMIT and OFFSET are emitted.
type LimitMode int

const (
	// LimitBound binds limit and offset as parameters.
	LimitBound LimitMode = iota

	// LimitInline embeds limit and offset as integer literals.
	LimitInline
)

// SQLCompiler compiles builder state to parameterized SQL.
//
// All values are parameterized with "?" placeholders; only sanitized
// identifiers and validated integers are ever written into the SQL text.
// Drivers with other placeholder styles rebind at execution time.
type SQLCompiler struct{}

// NewSQLCompiler creates a new SQLCompiler.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{}
}

// CompileSelect compiles the full select of s.
func (c *SQLCompiler) CompileSelect(s queryir.State, mode LimitMode) (Statement, error) {
	if err := requireTable(s.Table); err != nil {
		return Statement{}, err
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(s.Projection(), ", "))
	b.WriteString(" FROM ")
	b.WriteString(s.Table)

	params := c.writeFilter(&b, s)

	if s.GroupBy != "" {
		b.WriteString(" GROUP BY ")
		b.WriteString(s.GroupBy)
	}

	if !s.OrderBy.IsZero() {
		b.WriteString(" ORDER BY ")
		b.WriteString(s.OrderBy.Column)
		if s.OrderBy.Direction == queryir.Desc {
			b.WriteString(" DESC")
		}
	}

	limitParams, err := c.writeLimit(&b, s, mode)
	if err != nil {
		return Statement{}, err
	}
	params = append(params, limitParams...)

	return Statement{SQL: b.String(), Params: params}, nil
}

// CompileCount compiles a COUNT(*) of s. Columns and ordering are ignored;
// conditions, joins and grouping are honored. With grouping the statement
// counts groups.
//
// The count is returned in a single row under the "aggregate" column.
func (c *SQLCompiler) CompileCount(s queryir.State) (Statement, error) {
	if err := requireTable(s.Table); err != nil {
		return Statement{}, err
	}

	var inner strings.Builder
	if s.GroupBy != "" {
		inner.WriteString("SELECT 1 FROM ")
	} else {
		inner.WriteString("SELECT COUNT(*) AS aggregate FROM ")
	}
	inner.WriteString(s.Table)
	params := c.writeFilter(&inner, s)

	if s.GroupBy == "" {
		return Statement{SQL: inner.String(), Params: params}, nil
	}

	inner.WriteString(" GROUP BY ")
	inner.WriteString(s.GroupBy)
	sql := fmt.Sprintf("SELECT COUNT(*) AS aggregate FROM (%s) AS grouped", inner.String())
	return Statement{SQL: sql, Params: params}, nil
}

// CompileFirst compiles the first row of table in storage order.
func (c *SQLCompiler) CompileFirst(table string) (Statement, error) {
	if err := requireTable(table); err != nil {
		return Statement{}, err
	}
	return Statement{SQL: fmt.Sprintf("SELECT * FROM %s LIMIT 1", table)}, nil
}

// CompileLast compiles the row of table with the highest KeyColumn.
func (c *SQLCompiler) CompileLast(table string) (Statement, error) {
	if err := requireTable(table); err != nil {
		return Statement{}, err
	}
	return Statement{SQL: fmt.Sprintf("SELECT * FROM %s ORDER BY %s DESC LIMIT 1", table, KeyColumn)}, nil
}

// CompileFind compiles a lookup of one row by KeyColumn.
func (c *SQLCompiler) CompileFind(table string, id any) (Statement, error) {
	if err := requireTable(table); err != nil {
		return Statement{}, err
	}
	return Statement{
		SQL:    fmt.Sprintf("SELECT * FROM %s WHERE %s = ? LIMIT 1", table, KeyColumn),
		Params: []any{id},
	}, nil
}

// CompileInsert compiles an INSERT with one placeholder per field of data.
// Columns appear in sorted order.
func (c *SQLCompiler) CompileInsert(table string, data map[string]any) (Statement, error) {
	if err := requireTable(table); err != nil {
		return Statement{}, err
	}
	cols, params, err := sortedFields(data)
	if err != nil {
		return Statement{}, err
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table,
		strings.Join(cols, ", "),
		placeholders)

	return Statement{SQL: sql, Params: params}, nil
}

// CompileUpdate compiles an UPDATE of every field of data on the row whose
// KeyColumn equals id. The statement is derived from the shape of data on
// every call; two calls with different field sets never share SQL.
func (c *SQLCompiler) CompileUpdate(table string, id any, data map[string]any) (Statement, error) {
	if err := requireTable(table); err != nil {
		return Statement{}, err
	}
	cols, params, err := sortedFields(data)
	if err != nil {
		return Statement{}, err
	}

	sets := make([]string, len(cols))
	for i, col := range cols {
		sets[i] = col + " = ?"
	}
	sql := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?",
		table,
		strings.Join(sets, ", "),
		KeyColumn)

	return Statement{SQL: sql, Params: append(params, id)}, nil
}

// CompileDelete compiles a DELETE of the row whose KeyColumn equals id.
func (c *SQLCompiler) CompileDelete(table string, id any) (Statement, error) {
	if err := requireTable(table); err != nil {
		return Statement{}, err
	}
	return Statement{
		SQL:    fmt.Sprintf("DELETE FROM %s WHERE %s = ?", table, KeyColumn),
		Params: []any{id},
	}, nil
}

// writeFilter writes the JOIN and WHERE clauses of s and returns the
// condition parameters in placeholder order.
func (c *SQLCompiler) writeFilter(b *strings.Builder, s queryir.State) []any {
	for _, j := range s.Joins {
		fmt.Fprintf(b, " %s JOIN %s ON %s %s %s", j.Type, j.Table, j.Left, j.Operator, j.Right)
	}

	if s.Conditions.Len() == 0 {
		return nil
	}

	conds := s.Conditions.All()
	parts := make([]string, len(conds))
	var params []any
	for i, cond := range conds {
		parts[i] = compileCondition(cond)
		params = append(params, cond.Params()...)
	}

	b.WriteString(" WHERE ")
	b.WriteString(strings.Join(parts, " AND "))
	return params
}

// writeLimit writes LIMIT and OFFSET. A zero limit counts as no limit. An
// offset without a limit is rejected because neither SQLite nor MySQL accept
// a bare OFFSET.
func (c *SQLCompiler) writeLimit(b *strings.Builder, s queryir.State, mode LimitMode) ([]any, error) {
	if s.Limit == nil || *s.Limit == 0 {
		if s.Offset != nil {
			return nil, queryir.NewArgumentError("offset", "offset requires a limit")
		}
		return nil, nil
	}

	var params []any
	if mode == LimitInline {
		b.WriteString(" LIMIT ")
		b.WriteString(strconv.FormatUint(*s.Limit, 10))
		if s.Offset != nil {
			b.WriteString(" OFFSET ")
			b.WriteString(strconv.FormatUint(*s.Offset, 10))
		}
		return nil, nil
	}

	b.WriteString(" LIMIT ?")
	params = append(params, *s.Limit)
	if s.Offset != nil {
		b.WriteString(" OFFSET ?")
		params = append(params, *s.Offset)
	}
	return params, nil
}

// compileCondition compiles one condition to "col op ?" or "col IN (?, ?)".
// Values are never interpolated.
func compileCondition(cond queryir.WhereCondition) string {
	if cond.Operator == queryir.OpIn {
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", cond.Placeholders()), ", ")
		return fmt.Sprintf("%s IN (%s)", cond.Column, placeholders)
	}
	return fmt.Sprintf("%s %s ?", cond.Column, cond.Operator)
}

// sortedFields sanitizes the keys of data and returns them in sorted order
// together with their values.
func sortedFields(data map[string]any) ([]string, []any, error) {
	if len(data) == 0 {
		return nil, nil, queryir.NewArgumentError("data", "data must contain at least one field")
	}

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	cols := make([]string, len(keys))
	params := make([]any, len(keys))
	seen := make(map[string]string, len(keys))
	for i, k := range keys {
		col, err := queryir.SanitizeReference(k)
		if err != nil {
			return nil, nil, err
		}
		if prev, dup := seen[col]; dup {
			return nil, nil, queryir.NewArgumentError(k, "field collides with %q after sanitization", prev)
		}
		seen[col] = k
		cols[i] = col
		params[i] = data[k]
	}
	return cols, params, nil
}

func requireTable(table string) error {
	if table == "" {
		return queryir.NewIdentifierError(table, "no table specified")
	}
	return nil
}
