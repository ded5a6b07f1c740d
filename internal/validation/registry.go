package validation

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/text/cases"
)

// RuleFunc evaluates one rule against one field.
//
// It returns false for a business-rule failure and a non-nil error only for
// structural problems (a RuleSpecError) or a failing capability such as a
// store lookup. Errors abort the validation call; false never does.
type RuleFunc func(ctx context.Context, in Input) (bool, error)

// Input is everything a rule may look at.
type Input struct {
	// Field is the field name being validated.
	Field string

	// Value is the field's value from the record.
	Value any

	// Params are the rule parameters from the rule spec, e.g. ["3"] for "min:3".
	Params []string

	// Record is the whole record being validated.
	Record map[string]any

	// Lookup answers store-backed rules. Nil when the engine has none.
	Lookup LookupFunc

	// Files answers file-metadata rules. Nil when the engine has none.
	Files FileAccessor
}

// Rule is a registry entry.
type Rule struct {
	// Name is the rule name as written in specs. Lookup is case-insensitive.
	Name string

	// Evaluate is the predicate.
	Evaluate RuleFunc

	// Message is the failure template. ":field" is replaced by the field
	// name and ":param" by the first parameter.
	Message string

	// MinParams is the number of parameters the rule cannot run without.
	MinParams int

	// CheckParams, when set, rejects parameters the rule cannot interpret.
	// It runs once per rule spec before any rule is evaluated, so a bad
	// parameter fails the call even when the rule itself would be skipped.
	CheckParams func(params []string) error
}

// Registry maps rule names to rules.
//
// Registries are populated at startup and read during validation; Register
// and Lookup are safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	rules map[string]Rule
}

// NewEmptyRegistry returns a registry without any rules.
func NewEmptyRegistry() *Registry {
	return &Registry{rules: make(map[string]Rule)}
}

// NewRegistry returns a registry holding every built-in rule.
func NewRegistry() *Registry {
	r := NewEmptyRegistry()
	for _, rule := range builtinRules() {
		if err := r.Register(rule); err != nil {
			panic(fmt.Sprintf("validation: registering built-in rule: %v", err))
		}
	}
	return r
}

var defaultRegistry = sync.OnceValue(NewRegistry)

// Default returns the process-wide registry used by engines created without
// WithRegistry.
func Default() *Registry {
	return defaultRegistry()
}

// Register adds a rule to the process-wide registry. Host applications call
// it during startup, before the first validation.
func Register(rule Rule) error {
	return Default().Register(rule)
}

// Register adds rule. Names are unique after case folding.
func (r *Registry) Register(rule Rule) error {
	if rule.Name == "" {
		return fmt.Errorf("register rule: empty name")
	}
	if rule.Evaluate == nil {
		return fmt.Errorf("register rule %q: nil evaluate function", rule.Name)
	}
	if rule.Message == "" {
		return fmt.Errorf("register rule %q: empty message template", rule.Name)
	}

	key := foldName(rule.Name)

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.rules[key]; ok {
		return fmt.Errorf("register rule %q: conflicts with registered rule %q", rule.Name, existing.Name)
	}
	r.rules[key] = rule
	return nil
}

// Lookup finds a rule by name, ignoring case.
func (r *Registry) Lookup(name string) (Rule, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rule, ok := r.rules[foldName(name)]
	return rule, ok
}

// Names returns the registered rule names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.rules))
	for _, rule := range r.rules {
		names = append(names, rule.Name)
	}
	sort.Strings(names)
	return names
}

// foldName case-folds a rule name. Casers are stateful, so one is created
// per call.
func foldName(name string) string {
	return cases.Fold().String(name)
}
