package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedUsers inserts three users through the create command.
func seedUsers(t *testing.T, db string) {
	t.Helper()
	dir := t.TempDir()
	records := []string{
		`{"name": "Ada", "email": "ada@example.com", "age": 36}`,
		`{"name": "Grace", "email": "grace@example.com", "age": 45}`,
		`{"name": "Linus", "email": "linus@example.com", "age": 21}`,
	}
	for _, rec := range records {
		_, err := executeCLI(t, "create", "users", "--db", db, "--data", writeFile(t, dir, "rec.json", rec))
		require.NoError(t, err)
	}
}

func TestQueryRows(t *testing.T) {
	db := newTestDB(t)
	seedUsers(t, db)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{
			name: "filtered and ordered",
			args: []string{"--select", "name,age", "--where", "age > 30", "--order", "age DESC"},
			want: "age=45 name=Grace\nage=36 name=Ada\n",
		},
		{
			name: "in list",
			args: []string{"--select", "name", "--where", "name IN Ada,Linus", "--order", "name"},
			want: "name=Ada\nname=Linus\n",
		},
		{
			name: "bound limit and offset",
			args: []string{"--select", "name", "--order", "id", "--limit", "1", "--offset", "1"},
			want: "name=Grace\n",
		},
		{
			name: "inline limit",
			args: []string{"--select", "name", "--order", "id", "--limit", "2", "--inline"},
			want: "name=Ada\nname=Grace\n",
		},
		{
			name: "no match",
			args: []string{"--where", "age > 100"},
			want: "(no rows)\n",
		},
		{
			name: "count",
			args: []string{"--count", "--where", "age >= 36"},
			want: "2\n",
		},
		{
			name: "first",
			args: []string{"--first"},
			want: "age=36 email=ada@example.com id=1 name=Ada\n",
		},
		{
			name: "last",
			args: []string{"--last"},
			want: "age=21 email=linus@example.com id=3 name=Linus\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := executeCLI(t, append([]string{"query", "users", "--db", db}, tt.args...)...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestQueryJSON(t *testing.T) {
	db := newTestDB(t)
	seedUsers(t, db)

	out, err := executeCLI(t, "query", "users", "--db", db, "--format", "json", "--select", "id,name", "--where", "id = 2")
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   RowsOutput `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data.Rows, 1)
	assert.Equal(t, "Grace", resp.Data.Rows[0]["name"])
	assert.Equal(t, float64(2), resp.Data.Rows[0]["id"])
}

func TestQueryEmptyTableJSON(t *testing.T) {
	db := newTestDB(t)

	out, err := executeCLI(t, "query", "teams", "--db", db, "--format", "json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ok","data":{"rows":[]}}`, out)
}

func TestQueryStatementError(t *testing.T) {
	db := newTestDB(t)

	out, err := executeCLI(t, "query", "missing_table", "--db", db, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeStatement, resp.Error.Code)
}

func TestFind(t *testing.T) {
	db := newTestDB(t)
	seedUsers(t, db)

	t.Run("found", func(t *testing.T) {
		out, err := executeCLI(t, "find", "users", "2", "--db", db)
		require.NoError(t, err)
		assert.Equal(t, "age=45 email=grace@example.com id=2 name=Grace\n", out)
	})

	t.Run("not found", func(t *testing.T) {
		out, err := executeCLI(t, "find", "users", "99", "--db", db, "--format", "json")
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))

		var resp CLIResponse
		require.NoError(t, json.Unmarshal([]byte(out), &resp))
		require.NotNil(t, resp.Error)
		assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
	})
}

func TestFirstAndLastOnEmptyTable(t *testing.T) {
	db := newTestDB(t)

	for _, mode := range []string{"--first", "--last"} {
		t.Run(mode, func(t *testing.T) {
			_, err := executeCLI(t, "query", "teams", "--db", db, mode)
			require.Error(t, err)
			assert.Equal(t, ExitFailure, GetExitCode(err))
		})
	}
}

func TestDelete(t *testing.T) {
	db := newTestDB(t)
	seedUsers(t, db)

	out, err := executeCLI(t, "delete", "users", "1", "--db", db)
	require.NoError(t, err)
	assert.Equal(t, "deleted 1 row(s)\n", out)

	out, err = executeCLI(t, "query", "users", "--db", db, "--count")
	require.NoError(t, err)
	assert.Equal(t, "2\n", out)

	t.Run("nothing deleted", func(t *testing.T) {
		out, err := executeCLI(t, "delete", "users", "1", "--db", db, "--format", "json")
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))
		assert.JSONEq(t, `{"status":"ok","data":{"success":false,"rows_affected":0}}`, out)
	})
}
