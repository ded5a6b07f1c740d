package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PseudoDevs/IamJohnDevORM/internal/builder"
	"github.com/PseudoDevs/IamJohnDevORM/internal/queryir"
	"github.com/PseudoDevs/IamJohnDevORM/internal/validation"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Success(CountOutput{Count: 3})
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, map[string]any{"count": float64(3)}, resp.Data)
	assert.Nil(t, resp.Error)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Error(ErrCodeInvalidQuery, "invalid operator", nil)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E006", resp.Error.Code)
	assert.Equal(t, "invalid operator", resp.Error.Message)
	assert.Nil(t, resp.Error.Details)
}

func TestOutputFormatter_JSONErrorWithDetails(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	details := validation.Errors{"email": {"email": "The email field must be a valid email address"}}
	err := formatter.Error(ErrCodeValidationFailed, "record failed validation", details)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	require.NotNil(t, resp.Error)
	assert.Equal(t, map[string]any{
		"email": map[string]any{"email": "The email field must be a valid email address"},
	}, resp.Error.Details)
}

func TestOutputFormatter_TextSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "text",
		Writer: buf,
	}

	err := formatter.Success(StatementOutput{SQL: "SELECT * FROM users", Params: []any{}})
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM users\n-- params: []\n", buf.String())
}

func TestOutputFormatter_TextError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "text",
		Writer: buf,
	}

	err := formatter.Error(ErrCodeConfig, "no database", map[string]string{"hint": "--db"})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "[E003]: no database")
	assert.NotContains(t, buf.String(), "Details", "details are only printed when verbose")

	buf.Reset()
	formatter.Verbose = true
	require.NoError(t, formatter.Error(ErrCodeConfig, "no database", map[string]string{"hint": "--db"}))
	assert.Contains(t, buf.String(), "Details: map[hint:--db]")
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:    "json",
		Writer:    out,
		ErrWriter: errOut,
	}

	formatter.VerboseLog("hidden %d", 1)
	assert.Empty(t, errOut.String())

	formatter.Verbose = true
	formatter.VerboseLog("shown %d", 2)
	assert.Equal(t, "shown 2\n", errOut.String())
	assert.Empty(t, out.String(), "verbose output must not corrupt JSON on stdout")
}

func TestOutputFormatter_GetErrWriterFallsBack(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Writer: buf}
	assert.Same(t, buf, formatter.GetErrWriter())
}

func TestOutputFormatter_Mark(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	formatter.Mark(true, "Record valid")
	formatter.Mark(false, "email (email): bad")

	assert.Contains(t, buf.String(), "✓ Record valid")
	assert.Contains(t, buf.String(), "✗ email (email): bad")
}

func TestOutputFormatter_Fail(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	cause := queryir.NewOperatorError("LIKE")
	err := formatter.Fail(ExitCommandError, "invalid query", cause)

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, ExitCommandError, exitErr.Code)
	assert.Equal(t, ErrCodeInvalidQuery, exitErr.Message)
	assert.ErrorIs(t, err, cause)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInvalidQuery, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "invalid query: ")
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"load error", &LoadError{Code: ErrCodeLoadFailed, Path: "a.cue", Message: "bad"}, ErrCodeLoadFailed},
		{"no rows", fmt.Errorf("find: %w", builder.ErrNoRows), ErrCodeNotFound},
		{"statement", &builder.StatementError{Op: "create", Table: "users", Err: errors.New("UNIQUE constraint failed")}, ErrCodeStatement},
		{"operator", queryir.NewOperatorError("~"), ErrCodeInvalidQuery},
		{"argument", queryir.NewArgumentError("limit", "must be >= 0"), ErrCodeInvalidQuery},
		{"identifier", queryir.NewIdentifierError("", "no table specified"), ErrCodeInvalidQuery},
		{"rule spec", fmt.Errorf("validate users: %w", &validation.RuleSpecError{Code: validation.ErrCodeMissingParam, Field: "name", Rule: "min"}), ErrCodeRuleSpec},
		{"unknown", errors.New("boom"), ErrCodeGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errorCode(tt.err))
		})
	}
}

func TestExitError(t *testing.T) {
	t.Run("message only", func(t *testing.T) {
		err := NewExitError(ExitFailure, "no rows affected")
		assert.Equal(t, "no rows affected", err.Error())
		assert.Nil(t, errors.Unwrap(err))
	})

	t.Run("wrapped", func(t *testing.T) {
		cause := errors.New("disk full")
		err := WrapExitError(ExitCommandError, ErrCodeStatement, cause)
		assert.Equal(t, "E007: disk full", err.Error())
		assert.ErrorIs(t, err, cause)
	})
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitFailure, GetExitCode(NewExitError(ExitFailure, "x")))
	assert.Equal(t, ExitCommandError, GetExitCode(fmt.Errorf("outer: %w", NewExitError(ExitCommandError, "x"))))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
}
