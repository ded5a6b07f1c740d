package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"

	"github.com/PseudoDevs/IamJohnDevORM/internal/builder"
	"github.com/PseudoDevs/IamJohnDevORM/internal/queryir"
	"github.com/PseudoDevs/IamJohnDevORM/internal/store"
	"github.com/PseudoDevs/IamJohnDevORM/internal/validation"
)

// Harness is the scenario execution engine.
type Harness struct {
	store  *store.Store
	tracer *tracer
	logger *slog.Logger
}

// Option configures Run.
type Option func(*Harness)

// WithLogger sets the logger. The default discards output.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) {
		h.logger = l
	}
}

// Run executes a scenario and returns the result.
//
// Execution flow:
// 1. Open a fresh in-memory database and apply the schema
// 2. Execute steps, checking each expect clause
// 3. Evaluate assertions against the trace and the final state
//
// A returned error means the scenario could not run at all. Failed
// expectations and assertions are reported through Result.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	h := &Harness{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(h)
	}

	st, err := store.Open(ctx, store.Config{Driver: store.DriverSQLite, DSN: ":memory:", Logger: h.logger})
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	if _, err := st.Migrate(ctx, scenario.Schema); err != nil {
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	result := NewResult()
	h.store = st
	h.tracer = &tracer{inner: st, result: result}

	for i, step := range scenario.Steps {
		h.executeStep(ctx, i, step, result)
	}

	for _, errMsg := range EvaluateAssertions(ctx, result, scenario.Assertions, h.store) {
		result.AddError(errMsg)
	}

	h.logger.Debug("scenario finished",
		"scenario", scenario.Name,
		"statements", len(result.Trace),
		"pass", result.Pass,
	)
	return result, nil
}

// outcome holds whichever result a step's terminal call produced.
type outcome struct {
	write *builder.WriteResult
	valid *validation.Result
	rows  []queryir.Row
	row   queryir.Row
	count *int64
}

// executeStep runs one step and records any expectation that did not hold.
func (h *Harness) executeStep(ctx context.Context, i int, step Step, result *Result) {
	h.tracer.begin(i, step.Op)

	out, err := h.perform(ctx, step)
	for _, msg := range checkExpect(step.Expect, out, err) {
		result.AddError(fmt.Sprintf("step %d (%s %s): %s", i, step.Op, step.Table, msg))
	}

	h.logger.Debug("step completed",
		"step", i,
		"op", step.Op,
		"table", step.Table,
		"error", err,
	)
}

func (h *Harness) perform(ctx context.Context, step Step) (outcome, error) {
	if step.Op == OpValidate {
		res, err := h.validator(step.Table).Validate(ctx, step.Data, validation.Rules(step.Rules))
		return outcome{valid: &res}, err
	}

	b := h.builder(step)
	switch step.Op {
	case OpCreate:
		res, err := b.Create(ctx, step.Data, validation.Rules(step.Rules))
		return outcome{write: &res}, err
	case OpUpdate:
		res, err := b.Update(ctx, step.ID, step.Data, validation.Rules(step.Rules))
		return outcome{write: &res}, err
	case OpDelete:
		res, err := b.Delete(ctx, step.ID)
		return outcome{write: &res}, err
	case OpFind:
		row, err := b.Find(ctx, step.ID)
		return outcome{row: row}, err
	case OpFirst:
		row, err := b.First(ctx)
		return outcome{row: row}, err
	case OpLast:
		row, err := b.Last(ctx)
		return outcome{row: row}, err
	case OpCount:
		n, err := b.Count(ctx)
		return outcome{count: &n}, err
	case OpGet:
		rows, err := b.Get(ctx)
		return outcome{rows: rows}, err
	case OpAll:
		rows, err := b.All(ctx)
		return outcome{rows: rows}, err
	default:
		return outcome{}, fmt.Errorf("unknown op %q", step.Op)
	}
}

// builder returns a traced builder for the step with its query applied.
// Chain errors surface at the terminal call.
func (h *Harness) builder(step Step) *builder.Builder {
	b := builder.New(h.tracer, step.Table, builder.WithLogger(h.logger))
	q := step.Query
	if q == nil {
		return b
	}

	if len(q.Select) > 0 {
		b.Select(q.Select...)
	}
	for _, c := range q.Where {
		b.Where(c.Column, c.Op, c.Value)
	}
	for _, j := range q.Joins {
		b.JoinType(j.Type, j.Table, j.On)
	}
	if q.GroupBy != "" {
		b.GroupBy(q.GroupBy)
	}
	if q.OrderBy != "" {
		b.OrderBy(q.OrderBy)
	}
	if q.Limit != nil {
		b.Limit(*q.Limit)
	}
	if q.Offset != nil {
		b.Offset(*q.Offset)
	}
	return b
}

// validator returns an engine whose store-backed rules count through the
// traced gateway. table is the default for rules without a table param.
func (h *Harness) validator(table string) *validation.Engine {
	return validation.New(
		validation.WithLogger(h.logger),
		validation.WithLookup(func(ctx context.Context, tbl, column string, value any) (bool, error) {
			if tbl == "" {
				tbl = table
			}
			n, err := builder.New(h.tracer, tbl).Where(column, "=", value).Count(ctx)
			return n > 0, err
		}),
	)
}

// checkExpect compares an outcome against expect and returns one message
// per mismatch.
func checkExpect(expect *Expect, out outcome, err error) []string {
	if expect == nil {
		if err != nil {
			return []string{fmt.Sprintf("unexpected error: %v", err)}
		}
		return nil
	}

	if expect.Error != "" {
		if err == nil {
			return []string{fmt.Sprintf("expected %s error, got none", expect.Error)}
		}
		if class := ErrorClass(err); class != expect.Error {
			return []string{fmt.Sprintf("expected %s error, got %s: %v", expect.Error, class, err)}
		}
		return nil
	}
	if err != nil {
		return []string{fmt.Sprintf("unexpected error: %v", err)}
	}

	var msgs []string
	mismatch := func(what string, want, got any) {
		msgs = append(msgs, fmt.Sprintf("%s: expected %v, got %v", what, want, got))
	}

	if expect.Success != nil {
		if out.write == nil {
			msgs = append(msgs, "success is only reported by writes")
		} else if out.write.Success != *expect.Success {
			mismatch("success", *expect.Success, out.write.Success)
		}
	}
	if expect.RowsAffected != nil {
		if out.write == nil {
			msgs = append(msgs, "rows_affected is only reported by writes")
		} else if out.write.RowsAffected != *expect.RowsAffected {
			mismatch("rows_affected", *expect.RowsAffected, out.write.RowsAffected)
		}
	}
	if expect.Valid != nil {
		if out.valid == nil {
			msgs = append(msgs, "valid is only reported by validate")
		} else if out.valid.Valid != *expect.Valid {
			mismatch("valid", *expect.Valid, out.valid.Valid)
		}
	}
	if expect.Errors != nil {
		var got validation.Errors
		switch {
		case out.write != nil:
			got = out.write.Errors
		case out.valid != nil:
			got = out.valid.Errors
		}
		want := validation.Errors(expect.Errors)
		if (len(want) > 0 || len(got) > 0) && !reflect.DeepEqual(want, got) {
			mismatch("errors", want, got)
		}
	}
	if expect.Count != nil {
		if out.count == nil {
			msgs = append(msgs, "count is only reported by count")
		} else if *out.count != *expect.Count {
			mismatch("count", *expect.Count, *out.count)
		}
	}
	if expect.Rows != nil {
		if len(out.rows) != len(expect.Rows) {
			mismatch("row count", len(expect.Rows), len(out.rows))
		} else {
			for i, want := range expect.Rows {
				if !matchRow(out.rows[i], want) {
					mismatch(fmt.Sprintf("rows[%d]", i), want, out.rows[i])
				}
			}
		}
	}
	if expect.Row != nil && !matchRow(out.row, expect.Row) {
		mismatch("row", expect.Row, out.row)
	}

	return msgs
}

// ErrorClass names the class of a builder or validation error, matching
// the Err constants. Unclassified errors are "error".
func ErrorClass(err error) string {
	switch {
	case errors.Is(err, builder.ErrNoRows):
		return ErrNotFound
	case queryir.IsInvalidOperator(err):
		return ErrInvalidOperator
	case queryir.IsInvalidArgument(err):
		return ErrInvalidArgument
	case queryir.IsInvalidIdentifier(err):
		return ErrInvalidIdentifier
	case validation.IsInvalidRuleSpec(err):
		return ErrInvalidRuleSpec
	case builder.IsStatementError(err):
		return ErrStatement
	default:
		return "error"
	}
}

// tracer is a builder.Gateway that records every statement before
// forwarding it.
type tracer struct {
	inner  builder.Gateway
	result *Result
	seq    int64
	step   int
	op     string
}

func (t *tracer) begin(step int, op string) {
	t.step = step
	t.op = op
}

func (t *tracer) record(kind, sql string, params []any) {
	t.seq++
	var p []any
	if len(params) > 0 {
		p = make([]any, len(params))
		copy(p, params)
	}
	t.result.addTrace(TraceEvent{
		Seq:    t.seq,
		Step:   t.step,
		Op:     t.op,
		Kind:   kind,
		SQL:    sql,
		Params: p,
	})
}

// Query implements builder.Gateway.
func (t *tracer) Query(ctx context.Context, sql string, params []any) ([]queryir.Row, error) {
	t.record("query", sql, params)
	return t.inner.Query(ctx, sql, params)
}

// Exec implements builder.Gateway.
func (t *tracer) Exec(ctx context.Context, sql string, params []any) (int64, error) {
	t.record("exec", sql, params)
	return t.inner.Exec(ctx, sql, params)
}
