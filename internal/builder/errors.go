package builder

import (
	"errors"
	"fmt"
)

// ErrNoRows is returned by First, Last and Find when no row matches.
var ErrNoRows = errors.New("builder: no rows in result set")

// StatementError reports a statement the gateway could not execute.
//
// It is distinct from a validation failure: Create and Update return a
// WriteResult with Errors for invalid input and a StatementError only when
// the store itself failed.
type StatementError struct {
	// Op is the builder operation, e.g. "get" or "update".
	Op string

	// Table is the builder's table.
	Table string

	// SQL is the compiled statement text. Bind values are never included.
	SQL string

	// Err is the gateway error.
	Err error
}

// Error implements the error interface.
func (e *StatementError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Table, e.Err)
}

// Unwrap returns the gateway error.
func (e *StatementError) Unwrap() error {
	return e.Err
}

// IsStatementError reports whether err is a StatementError.
func IsStatementError(err error) bool {
	var se *StatementError
	return errors.As(err, &se)
}
