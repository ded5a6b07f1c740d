package queryir

import (
	"errors"
	"fmt"
)

// BuildErrorCode categorizes structural errors raised while building a query.
type BuildErrorCode string

const (
	// ErrCodeInvalidOperator indicates an operator outside the allow-list.
	ErrCodeInvalidOperator BuildErrorCode = "INVALID_OPERATOR"

	// ErrCodeInvalidArgument indicates a malformed limit, offset, data map,
	// ordering or condition value.
	ErrCodeInvalidArgument BuildErrorCode = "INVALID_ARGUMENT"

	// ErrCodeInvalidIdentifier indicates a table or column name that is empty
	// after sanitization or outside the configured allow-list.
	ErrCodeInvalidIdentifier BuildErrorCode = "INVALID_IDENTIFIER"
)

// BuildError is a structural error: the caller asked for a query that cannot
// be expressed. It is never produced for data the store rejects.
type BuildError struct {
	// Code identifies the error category.
	Code BuildErrorCode

	// Message is a human-readable description.
	Message string

	// Subject is the offending operator, identifier or argument, if any.
	Subject string
}

// Error implements the error interface.
func (e *BuildError) Error() string {
	if e.Subject != "" {
		return fmt.Sprintf("%s: %s (%q)", e.Code, e.Message, e.Subject)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewOperatorError creates a BuildError for an operator outside the allow-list.
func NewOperatorError(op string) *BuildError {
	return &BuildError{
		Code:    ErrCodeInvalidOperator,
		Message: "operator not in allow-list",
		Subject: op,
	}
}

// NewArgumentError creates a BuildError for a malformed argument.
func NewArgumentError(subject, format string, args ...any) *BuildError {
	return &BuildError{
		Code:    ErrCodeInvalidArgument,
		Message: fmt.Sprintf(format, args...),
		Subject: subject,
	}
}

// NewIdentifierError creates a BuildError for an unusable identifier.
func NewIdentifierError(identifier, reason string) *BuildError {
	return &BuildError{
		Code:    ErrCodeInvalidIdentifier,
		Message: reason,
		Subject: identifier,
	}
}

// IsInvalidOperator reports whether err is an INVALID_OPERATOR BuildError.
func IsInvalidOperator(err error) bool {
	return hasCode(err, ErrCodeInvalidOperator)
}

// IsInvalidArgument reports whether err is an INVALID_ARGUMENT BuildError.
func IsInvalidArgument(err error) bool {
	return hasCode(err, ErrCodeInvalidArgument)
}

// IsInvalidIdentifier reports whether err is an INVALID_IDENTIFIER BuildError.
func IsInvalidIdentifier(err error) bool {
	return hasCode(err, ErrCodeInvalidIdentifier)
}

func hasCode(err error, code BuildErrorCode) bool {
	var be *BuildError
	if errors.As(err, &be) {
		return be.Code == code
	}
	return false
}
