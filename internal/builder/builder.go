package builder

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/PseudoDevs/IamJohnDevORM/internal/queryir"
	"github.com/PseudoDevs/IamJohnDevORM/internal/querysql"
	"github.com/PseudoDevs/IamJohnDevORM/internal/validation"
)

// Gateway executes compiled statements against a store.
//
// Params are positional and match the "?" placeholders of sql left to
// right. The gateway owns the connection; the builder never opens or
// closes it.
type Gateway interface {
	// Query runs a statement that returns rows.
	Query(ctx context.Context, sql string, params []any) ([]queryir.Row, error)

	// Exec runs a statement that modifies rows and returns the number of
	// rows affected.
	Exec(ctx context.Context, sql string, params []any) (int64, error)
}

// Builder accumulates clause state for one table and compiles it on a
// terminal call.
//
// Chain methods mutate the builder and return it. The first structural
// error (bad operator, bad identifier, negative limit) is kept and
// returned by the next terminal call; later chain calls are ignored.
//
// A Builder carries state between calls and has no locking. Use one
// Builder per logical query and per goroutine.
type Builder struct {
	gw        Gateway
	compiler  *querysql.SQLCompiler
	validator *validation.Engine
	logger    *slog.Logger
	allowed   map[string]bool

	state queryir.State
	err   error
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger statements are logged to at Debug.
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) {
		b.logger = l
	}
}

// WithValidator sets the engine Create and Update validate with. Without
// a lookup of its own, the engine is given one backed by the gateway.
func WithValidator(e *validation.Engine) Option {
	return func(b *Builder) {
		b.validator = e
	}
}

// WithAllowedColumns restricts every column the builder writes into SQL to
// the given set. A qualified reference ("users.id") is allowed when either
// the full reference or its last segment is in the set. "*" is always
// allowed in a projection.
func WithAllowedColumns(columns ...string) Option {
	return func(b *Builder) {
		b.allowed = make(map[string]bool, len(columns))
		for _, c := range columns {
			b.allowed[c] = true
		}
	}
}

// New creates a builder for table.
func New(gw Gateway, table string, opts ...Option) *Builder {
	b := &Builder{
		gw:        gw,
		compiler:  querysql.NewSQLCompiler(),
		validator: validation.New(),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(b)
	}

	clean, err := queryir.SanitizeReference(table)
	if err != nil {
		b.err = err
	}
	b.state = queryir.NewState(clean)
	return b
}

// Table returns the sanitized table name.
func (b *Builder) Table() string {
	return b.state.Table
}

// Err returns the first structural error recorded by a chain call.
func (b *Builder) Err() error {
	return b.err
}

// State returns a copy of the accumulated clause state.
func (b *Builder) State() queryir.State {
	return b.state.Clone()
}

// Select adds projected columns. Characters outside [A-Za-z0-9_*] are
// stripped.
func (b *Builder) Select(columns ...string) *Builder {
	if b.err != nil {
		return b
	}
	for _, c := range columns {
		col, err := queryir.SanitizeColumn(c)
		if err == nil && col != "*" {
			err = b.checkAllowed(col)
		}
		if err != nil {
			b.err = err
			return b
		}
		b.state.Columns = append(b.state.Columns, col)
	}
	return b
}

// Where appends a condition. Conditions are ANDed in call order.
func (b *Builder) Where(column, operator string, value any) *Builder {
	if b.err != nil {
		return b
	}
	cond, err := queryir.NewCondition(column, operator, value)
	if err == nil {
		err = b.checkAllowed(cond.Column)
	}
	if err != nil {
		b.err = err
		return b
	}
	b.state.Conditions.Add(cond)
	return b
}

// Join appends an INNER JOIN on condition, written "left op right".
func (b *Builder) Join(table, condition string) *Builder {
	return b.join(table, condition, queryir.JoinInner)
}

// LeftJoin appends a LEFT JOIN.
func (b *Builder) LeftJoin(table, condition string) *Builder {
	return b.join(table, condition, queryir.JoinLeft)
}

// RightJoin appends a RIGHT JOIN.
func (b *Builder) RightJoin(table, condition string) *Builder {
	return b.join(table, condition, queryir.JoinRight)
}

// JoinType appends a join of the given kind: INNER, LEFT or RIGHT, in any
// case. An empty kind is INNER.
func (b *Builder) JoinType(kind, table, condition string) *Builder {
	if b.err != nil {
		return b
	}
	jt, err := queryir.ParseJoinType(kind)
	if err != nil {
		b.err = err
		return b
	}
	return b.join(table, condition, jt)
}

func (b *Builder) join(table, condition string, kind queryir.JoinType) *Builder {
	if b.err != nil {
		return b
	}
	j, err := queryir.ParseJoin(table, condition, string(kind))
	if err == nil {
		err = b.checkAllowed(j.Left)
	}
	if err == nil {
		err = b.checkAllowed(j.Right)
	}
	if err != nil {
		b.err = err
		return b
	}
	b.state.Joins = append(b.state.Joins, j)
	return b
}

// GroupBy sets the grouping column. The last call wins.
func (b *Builder) GroupBy(column string) *Builder {
	if b.err != nil {
		return b
	}
	col, err := queryir.SanitizeReference(column)
	if err == nil {
		err = b.checkAllowed(col)
	}
	if err != nil {
		b.err = err
		return b
	}
	b.state.GroupBy = col
	return b
}

// OrderBy sets the ordering, "column" or "column ASC|DESC". The last call
// wins.
func (b *Builder) OrderBy(spec string) *Builder {
	if b.err != nil {
		return b
	}
	order, err := queryir.ParseOrder(spec)
	if err == nil {
		err = b.checkAllowed(order.Column)
	}
	if err != nil {
		b.err = err
		return b
	}
	b.state.OrderBy = order
	return b
}

// Limit sets the row limit. Zero means no limit and clears an earlier
// call. The last call wins.
func (b *Builder) Limit(n int) *Builder {
	if b.err != nil {
		return b
	}
	bound, err := queryir.Bound("limit", n)
	if err != nil {
		b.err = err
		return b
	}
	if *bound == 0 {
		bound = nil
	}
	b.state.Limit = bound
	return b
}

// Offset sets the row offset. It requires a limit. The last call wins.
func (b *Builder) Offset(n int) *Builder {
	if b.err != nil {
		return b
	}
	bound, err := queryir.Bound("offset", n)
	if err != nil {
		b.err = err
		return b
	}
	b.state.Offset = bound
	return b
}

// ToSQL compiles the select with limit and offset bound as parameters.
// It does not mutate the builder; calling it twice yields equal statements.
func (b *Builder) ToSQL() (querysql.Statement, error) {
	if b.err != nil {
		return querysql.Statement{}, b.err
	}
	return b.compiler.CompileSelect(b.state, querysql.LimitBound)
}

// ToInlineSQL compiles the select with limit and offset as literals.
func (b *Builder) ToInlineSQL() (querysql.Statement, error) {
	if b.err != nil {
		return querysql.Statement{}, b.err
	}
	return b.compiler.CompileSelect(b.state, querysql.LimitInline)
}

// ToCountSQL compiles the COUNT(*) form of the query.
func (b *Builder) ToCountSQL() (querysql.Statement, error) {
	if b.err != nil {
		return querysql.Statement{}, b.err
	}
	return b.compiler.CompileCount(b.state)
}

func (b *Builder) checkAllowed(ref string) error {
	if b.allowed == nil || b.allowed[ref] {
		return nil
	}
	if i := strings.LastIndexByte(ref, '.'); i >= 0 && b.allowed[ref[i+1:]] {
		return nil
	}
	return queryir.NewIdentifierError(ref, "column is not in the allowed set")
}
