package validation

import (
	"errors"
	"fmt"
)

// ErrNoLookup is returned when a unique or exists rule runs on an engine
// that was built without a LookupFunc.
var ErrNoLookup = errors.New("validation: no lookup function configured for store-backed rule")

// RuleSpecErrorCode categorizes structural rule-spec errors.
type RuleSpecErrorCode string

const (
	// ErrCodeMalformedSpec indicates rule-spec syntax that cannot be parsed.
	ErrCodeMalformedSpec RuleSpecErrorCode = "MALFORMED_RULE_SPEC"

	// ErrCodeMissingParam indicates a rule that requires a parameter did not receive one.
	ErrCodeMissingParam RuleSpecErrorCode = "MISSING_RULE_PARAM"

	// ErrCodeInvalidParam indicates a parameter the rule cannot interpret.
	ErrCodeInvalidParam RuleSpecErrorCode = "INVALID_RULE_PARAM"
)

// RuleSpecError is a structural error in a rule specification. Unlike a
// failing rule it aborts the whole validation call.
type RuleSpecError struct {
	Code    RuleSpecErrorCode
	Field   string
	Rule    string
	Message string
}

// Error implements the error interface.
func (e *RuleSpecError) Error() string {
	switch {
	case e.Field != "" && e.Rule != "":
		return fmt.Sprintf("%s: %s (field=%s, rule=%s)", e.Code, e.Message, e.Field, e.Rule)
	case e.Field != "":
		return fmt.Sprintf("%s: %s (field=%s)", e.Code, e.Message, e.Field)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// IsInvalidRuleSpec reports whether err is a RuleSpecError of any code.
func IsInvalidRuleSpec(err error) bool {
	var rse *RuleSpecError
	return errors.As(err, &rse)
}

func malformed(field, format string, args ...any) *RuleSpecError {
	return &RuleSpecError{
		Code:    ErrCodeMalformedSpec,
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	}
}

func missingParam(field, rule string, want, got int) *RuleSpecError {
	return &RuleSpecError{
		Code:    ErrCodeMissingParam,
		Field:   field,
		Rule:    rule,
		Message: fmt.Sprintf("rule requires %d parameter(s), got %d", want, got),
	}
}

func invalidParam(in Input, rule, format string, args ...any) *RuleSpecError {
	return &RuleSpecError{
		Code:    ErrCodeInvalidParam,
		Field:   in.Field,
		Rule:    rule,
		Message: fmt.Sprintf(format, args...),
	}
}
