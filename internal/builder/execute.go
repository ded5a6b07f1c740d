package builder

import (
	"context"
	"fmt"
	"strconv"

	"github.com/PseudoDevs/IamJohnDevORM/internal/queryir"
	"github.com/PseudoDevs/IamJohnDevORM/internal/querysql"
	"github.com/PseudoDevs/IamJohnDevORM/internal/validation"
)

// WriteResult is the outcome of Create, Update and Delete.
//
// Success is false with Errors set when validation rejected the input; the
// store was not touched. Store failures are returned as a StatementError,
// never as a WriteResult.
type WriteResult struct {
	Success      bool              `json:"success"`
	RowsAffected int64             `json:"rows_affected"`
	Errors       validation.Errors `json:"errors,omitempty"`
}

// Get runs the query with limit and offset bound as parameters.
func (b *Builder) Get(ctx context.Context) ([]queryir.Row, error) {
	stmt, err := b.ToSQL()
	if err != nil {
		return nil, err
	}
	return b.query(ctx, "get", stmt)
}

// All runs the query with limit and offset written as integer literals.
// Prefer Get when the limit comes from untrusted input.
func (b *Builder) All(ctx context.Context) ([]queryir.Row, error) {
	stmt, err := b.ToInlineSQL()
	if err != nil {
		return nil, err
	}
	return b.query(ctx, "all", stmt)
}

// First returns the first row of the table. Accumulated clauses are
// ignored.
func (b *Builder) First(ctx context.Context) (queryir.Row, error) {
	if b.err != nil {
		return nil, b.err
	}
	stmt, err := b.compiler.CompileFirst(b.state.Table)
	if err != nil {
		return nil, err
	}
	return b.queryOne(ctx, "first", stmt)
}

// Last returns the row with the highest id. Accumulated clauses are
// ignored. The table must have a monotonically increasing "id" column.
func (b *Builder) Last(ctx context.Context) (queryir.Row, error) {
	if b.err != nil {
		return nil, b.err
	}
	stmt, err := b.compiler.CompileLast(b.state.Table)
	if err != nil {
		return nil, err
	}
	return b.queryOne(ctx, "last", stmt)
}

// Find returns the row whose id equals id.
func (b *Builder) Find(ctx context.Context, id any) (queryir.Row, error) {
	if b.err != nil {
		return nil, b.err
	}
	stmt, err := b.compiler.CompileFind(b.state.Table, id)
	if err != nil {
		return nil, err
	}
	return b.queryOne(ctx, "find", stmt)
}

// Count returns the number of matching rows, or of groups when grouped.
func (b *Builder) Count(ctx context.Context) (int64, error) {
	stmt, err := b.ToCountSQL()
	if err != nil {
		return 0, err
	}
	rows, err := b.query(ctx, "count", stmt)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	n, err := toInt64(rows[0]["aggregate"])
	if err != nil {
		return 0, &StatementError{Op: "count", Table: b.state.Table, SQL: stmt.SQL, Err: err}
	}
	return n, nil
}

// Create inserts data as one row after validating it against rules.
// Empty rules skip validation.
func (b *Builder) Create(ctx context.Context, data map[string]any, rules validation.Rules) (WriteResult, error) {
	if err := b.checkWrite(data); err != nil {
		return WriteResult{}, err
	}
	if res, ok, err := b.validate(ctx, data, rules); err != nil || !ok {
		return res, err
	}

	stmt, err := b.compiler.CompileInsert(b.state.Table, data)
	if err != nil {
		return WriteResult{}, err
	}
	n, err := b.exec(ctx, "create", stmt)
	if err != nil {
		return WriteResult{}, err
	}
	return WriteResult{Success: n > 0, RowsAffected: n}, nil
}

// Update sets every field of data on the row whose id equals id after
// validating data against rules. The statement is compiled from the
// shape of data on each call.
func (b *Builder) Update(ctx context.Context, id any, data map[string]any, rules validation.Rules) (WriteResult, error) {
	if err := b.checkWrite(data); err != nil {
		return WriteResult{}, err
	}
	if res, ok, err := b.validate(ctx, data, rules); err != nil || !ok {
		return res, err
	}

	stmt, err := b.compiler.CompileUpdate(b.state.Table, id, data)
	if err != nil {
		return WriteResult{}, err
	}
	n, err := b.exec(ctx, "update", stmt)
	if err != nil {
		return WriteResult{}, err
	}
	return WriteResult{Success: n > 0, RowsAffected: n}, nil
}

// Delete removes the row whose id equals id.
func (b *Builder) Delete(ctx context.Context, id any) (WriteResult, error) {
	if b.err != nil {
		return WriteResult{}, b.err
	}
	stmt, err := b.compiler.CompileDelete(b.state.Table, id)
	if err != nil {
		return WriteResult{}, err
	}
	n, err := b.exec(ctx, "delete", stmt)
	if err != nil {
		return WriteResult{}, err
	}
	return WriteResult{Success: n > 0, RowsAffected: n}, nil
}

// checkWrite rejects empty data and disallowed columns before anything is
// validated or compiled.
func (b *Builder) checkWrite(data map[string]any) error {
	if b.err != nil {
		return b.err
	}
	if len(data) == 0 {
		return queryir.NewArgumentError("data", "data must contain at least one field")
	}
	for k := range data {
		col, err := queryir.SanitizeReference(k)
		if err != nil {
			return err
		}
		if err := b.checkAllowed(col); err != nil {
			return err
		}
	}
	return nil
}

// validate runs the engine when rules are given. ok is false when the
// write must not proceed.
func (b *Builder) validate(ctx context.Context, data map[string]any, rules validation.Rules) (WriteResult, bool, error) {
	if len(rules) == 0 {
		return WriteResult{}, true, nil
	}

	engine := b.validator
	if !engine.HasLookup() {
		engine = engine.With(validation.WithLookup(b.lookup))
	}

	res, err := engine.Validate(ctx, data, rules)
	if err != nil {
		return WriteResult{}, false, fmt.Errorf("validate %s: %w", b.state.Table, err)
	}
	if !res.Valid {
		b.logger.Debug("write rejected by validation",
			"table", b.state.Table,
			"failed_fields", len(res.Errors))
		return WriteResult{Success: false, Errors: res.Errors}, false, nil
	}
	return WriteResult{}, true, nil
}

// lookup answers unique and exists with a COUNT(*) through the gateway.
// An empty table means the builder's table.
func (b *Builder) lookup(ctx context.Context, table, column string, value any) (bool, error) {
	if table == "" {
		table = b.state.Table
	}
	tbl, err := queryir.SanitizeReference(table)
	if err != nil {
		return false, err
	}
	cond, err := queryir.NewCondition(column, string(queryir.OpEqual), value)
	if err != nil {
		return false, err
	}

	s := queryir.NewState(tbl)
	s.Conditions.Add(cond)
	stmt, err := b.compiler.CompileCount(s)
	if err != nil {
		return false, err
	}

	rows, err := b.query(ctx, "lookup", stmt)
	if err != nil {
		return false, err
	}
	if len(rows) == 0 {
		return false, nil
	}
	n, err := toInt64(rows[0]["aggregate"])
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (b *Builder) query(ctx context.Context, op string, stmt querysql.Statement) ([]queryir.Row, error) {
	b.logStatement(op, stmt)
	rows, err := b.gw.Query(ctx, stmt.SQL, stmt.Args())
	if err != nil {
		return nil, &StatementError{Op: op, Table: b.state.Table, SQL: stmt.SQL, Err: err}
	}
	return rows, nil
}

func (b *Builder) queryOne(ctx context.Context, op string, stmt querysql.Statement) (queryir.Row, error) {
	rows, err := b.query(ctx, op, stmt)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNoRows
	}
	return rows[0], nil
}

func (b *Builder) exec(ctx context.Context, op string, stmt querysql.Statement) (int64, error) {
	b.logStatement(op, stmt)
	n, err := b.gw.Exec(ctx, stmt.SQL, stmt.Args())
	if err != nil {
		return 0, &StatementError{Op: op, Table: b.state.Table, SQL: stmt.SQL, Err: err}
	}
	return n, nil
}

// logStatement never logs bind values.
func (b *Builder) logStatement(op string, stmt querysql.Statement) {
	b.logger.Debug("executing statement",
		"op", op,
		"table", b.state.Table,
		"sql", stmt.SQL,
		"params", len(stmt.Params))
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case uint64:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case string:
		return strconv.ParseInt(n, 10, 64)
	case []byte:
		return strconv.ParseInt(string(n), 10, 64)
	default:
		return 0, fmt.Errorf("unexpected aggregate type %T", v)
	}
}
