package validation

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
)

// Errors maps field name to rule name to the formatted failure message.
type Errors map[string]map[string]string

// Result is the outcome of one Validate call.
type Result struct {
	Valid  bool   `json:"valid"`
	Errors Errors `json:"errors,omitempty"`
}

func (e Errors) add(field, rule, message string) {
	if e[field] == nil {
		e[field] = make(map[string]string)
	}
	e[field][rule] = message
}

// Engine validates records against per-field rule specs.
//
// An Engine holds no per-call state; one Engine may serve concurrent
// Validate calls as long as its capabilities do.
type Engine struct {
	registry *Registry
	lookup   LookupFunc
	files    FileAccessor
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithRegistry replaces the process-wide registry.
func WithRegistry(r *Registry) Option {
	return func(e *Engine) {
		e.registry = r
	}
}

// WithLookup injects the store capability used by unique and exists.
func WithLookup(fn LookupFunc) Option {
	return func(e *Engine) {
		e.lookup = fn
	}
}

// WithFiles injects the uploaded-file capability used by the file rules.
func WithFiles(files FileAccessor) Option {
	return func(e *Engine) {
		e.files = files
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		registry: Default(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// With returns a copy of e with opts applied on top.
func (e *Engine) With(opts ...Option) *Engine {
	cp := *e
	for _, opt := range opts {
		opt(&cp)
	}
	return &cp
}

// HasLookup reports whether a store capability is configured.
func (e *Engine) HasLookup() bool {
	return e.lookup != nil
}

type fieldPlan struct {
	field string
	specs []RuleSpec
}

// Validate checks data against rules.
//
// Rule failures are reported in the Result and never as an error. The
// returned error is non-nil only for a RuleSpecError or a failing
// capability, in which case the Result is zero.
//
// Every spec is parsed before any rule runs, so a malformed spec on one
// field never leaves another field half-evaluated.
func (e *Engine) Validate(ctx context.Context, data map[string]any, rules Rules) (Result, error) {
	plans, err := e.plan(rules)
	if err != nil {
		return Result{}, err
	}

	lookup := memoize(e.lookup)
	errs := make(Errors)

	for _, p := range plans {
		value, present := data[p.field]
		if !present {
			errs.add(p.field, RuleRequired, e.requiredMessage(p.field))
			continue
		}

		for _, rs := range p.specs {
			rule, ok := e.registry.Lookup(rs.Name)
			if !ok {
				errs.add(p.field, rs.Name, "Unsupported validation rule: "+rs.Name)
				continue
			}

			passed, err := rule.Evaluate(ctx, Input{
				Field:  p.field,
				Value:  value,
				Params: rs.Params,
				Record: data,
				Lookup: lookup,
				Files:  e.files,
			})
			if err != nil {
				return Result{}, err
			}
			if passed {
				continue
			}

			errs.add(p.field, rs.Name, formatMessage(rule.Message, p.field, rs.Params))
			if foldName(rule.Name) == foldName(RuleRequired) {
				break
			}
		}
	}

	e.logger.Debug("validated record",
		"fields", len(plans),
		"failed_fields", len(errs))

	if len(errs) == 0 {
		return Result{Valid: true}, nil
	}
	return Result{Valid: false, Errors: errs}, nil
}

// plan parses every field's spec in sorted field order and checks the
// parameters of known rules.
func (e *Engine) plan(rules Rules) ([]fieldPlan, error) {
	fields := make([]string, 0, len(rules))
	for field := range rules {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	plans := make([]fieldPlan, 0, len(fields))
	for _, field := range fields {
		specs, err := ParseRuleSpec(field, rules[field])
		if err != nil {
			return nil, err
		}
		for _, rs := range specs {
			rule, ok := e.registry.Lookup(rs.Name)
			if !ok {
				continue
			}
			if len(rs.Params) < rule.MinParams {
				return nil, missingParam(field, rs.Name, rule.MinParams, len(rs.Params))
			}
			if rule.CheckParams != nil {
				if err := rule.CheckParams(rs.Params); err != nil {
					return nil, &RuleSpecError{Code: ErrCodeInvalidParam, Field: field, Rule: rs.Name, Message: err.Error()}
				}
			}
		}
		plans = append(plans, fieldPlan{field: field, specs: specs})
	}
	return plans, nil
}

func (e *Engine) requiredMessage(field string) string {
	template := "The :field field is required"
	if rule, ok := e.registry.Lookup(RuleRequired); ok {
		template = rule.Message
	}
	return formatMessage(template, field, nil)
}

func formatMessage(template, field string, params []string) string {
	msg := strings.ReplaceAll(template, ":field", field)
	if len(params) > 0 {
		msg = strings.ReplaceAll(msg, ":param", params[0])
	}
	return msg
}

// Validate runs data through a fresh default Engine.
func Validate(ctx context.Context, data map[string]any, rules Rules) (Result, error) {
	return New().Validate(ctx, data, rules)
}

// String renders the result on one line, fields and rules in sorted order.
func (r Result) String() string {
	if r.Valid {
		return "valid"
	}
	var b strings.Builder
	b.WriteString("invalid:")
	for _, field := range sortedKeys(r.Errors) {
		for _, rule := range sortedKeys(r.Errors[field]) {
			fmt.Fprintf(&b, " %s.%s", field, rule)
		}
	}
	return b.String()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
