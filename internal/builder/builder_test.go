package builder

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PseudoDevs/IamJohnDevORM/internal/queryir"
	"github.com/PseudoDevs/IamJohnDevORM/internal/testutil"
	"github.com/PseudoDevs/IamJohnDevORM/internal/validation"
)

func TestBuilder_WherePlaceholdersInCallOrder(t *testing.T) {
	gw := testutil.NewRecordingGateway()
	b := New(gw, "users").
		Where("age", ">=", 18).
		Where("role", "in", []string{"admin", "staff"}).
		Where("name", "LIKE", "A%")

	stmt, err := b.ToSQL()
	require.NoError(t, err)

	assert.Equal(t, "SELECT * FROM users WHERE age >= ? AND role IN (?, ?) AND name LIKE ?", stmt.SQL)
	assert.Equal(t, []any{18, "admin", "staff", "A%"}, stmt.Params)
	assert.Equal(t, 4, strings.Count(stmt.SQL, "?"))

	again, err := b.ToSQL()
	require.NoError(t, err)
	assert.Equal(t, stmt, again)
}

func TestBuilder_LastCallWins(t *testing.T) {
	stmt, err := New(nil, "users").
		GroupBy("role").GroupBy("team").
		OrderBy("name").OrderBy("id DESC").
		Limit(5).Limit(10).
		Offset(1).Offset(20).
		ToSQL()
	require.NoError(t, err)

	assert.Equal(t, "SELECT * FROM users GROUP BY team ORDER BY id DESC LIMIT ? OFFSET ?", stmt.SQL)
	assert.Equal(t, []any{uint64(10), uint64(20)}, stmt.Params)
}

func TestBuilder_ZeroLimitMeansNoLimit(t *testing.T) {
	stmt, err := New(nil, "users").Limit(0).ToSQL()
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM users", stmt.SQL)
	assert.Empty(t, stmt.Params)

	stmt, err = New(nil, "users").Limit(5).Limit(0).ToInlineSQL()
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM users", stmt.SQL)

	_, err = New(nil, "users").Limit(0).Offset(5).ToSQL()
	require.Error(t, err)
	assert.True(t, queryir.IsInvalidArgument(err))
}

func TestBuilder_InlineLimit(t *testing.T) {
	stmt, err := New(nil, "users").Select("id", "na-me").Limit(3).ToInlineSQL()
	require.NoError(t, err)

	assert.Equal(t, "SELECT id, name FROM users LIMIT 3", stmt.SQL)
	assert.Empty(t, stmt.Params)
}

func TestBuilder_Joins(t *testing.T) {
	stmt, err := New(nil, "users").
		Select("id").
		Join("teams", "users.team_id = teams.id").
		LeftJoin("posts", "posts.user_id = users.id").
		JoinType("right", "orgs", "orgs.id = teams.org_id").
		ToSQL()
	require.NoError(t, err)

	assert.Equal(t, "SELECT id FROM users"+
		" INNER JOIN teams ON users.team_id = teams.id"+
		" LEFT JOIN posts ON posts.user_id = users.id"+
		" RIGHT JOIN orgs ON orgs.id = teams.org_id", stmt.SQL)
}

func TestBuilder_StructuralErrors(t *testing.T) {
	tests := []struct {
		name  string
		build func() *Builder
		is    func(error) bool
	}{
		{"bad operator", func() *Builder { return New(nil, "t").Where("a", "<>", 1) }, queryir.IsInvalidOperator},
		{"negative limit", func() *Builder { return New(nil, "t").Limit(-1) }, queryir.IsInvalidArgument},
		{"negative offset", func() *Builder { return New(nil, "t").Offset(-5) }, queryir.IsInvalidArgument},
		{"offset without limit", func() *Builder { return New(nil, "t").Offset(5) }, queryir.IsInvalidArgument},
		{"empty IN", func() *Builder { return New(nil, "t").Where("a", "IN", []int{}) }, queryir.IsInvalidArgument},
		{"sequence with =", func() *Builder { return New(nil, "t").Where("a", "=", []int{1}) }, queryir.IsInvalidArgument},
		{"bad join type", func() *Builder { return New(nil, "t").JoinType("OUTER", "u", "t.id = u.id") }, queryir.IsInvalidArgument},
		{"bad order", func() *Builder { return New(nil, "t").OrderBy("name sideways") }, queryir.IsInvalidArgument},
		{"empty table", func() *Builder { return New(nil, "!!") }, queryir.IsInvalidIdentifier},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.build().ToSQL()
			require.Error(t, err)
			assert.True(t, tt.is(err), "unexpected error %v", err)
		})
	}
}

func TestBuilder_FirstErrorSticks(t *testing.T) {
	b := New(nil, "t").Where("a", "bogus", 1).Limit(-1)
	assert.True(t, queryir.IsInvalidOperator(b.Err()))
}

func TestBuilder_AllowedColumns(t *testing.T) {
	b := New(nil, "users", WithAllowedColumns("id", "name"))

	_, err := b.Select("*", "name").Where("id", "=", 1).ToSQL()
	require.NoError(t, err)

	err = New(nil, "users", WithAllowedColumns("id")).Where("password", "=", "x").Err()
	assert.True(t, queryir.IsInvalidIdentifier(err))

	gw := testutil.NewRecordingGateway()
	_, err = New(gw, "users", WithAllowedColumns("id")).Create(context.Background(), map[string]any{"admin": true}, nil)
	assert.True(t, queryir.IsInvalidIdentifier(err))
	assert.Empty(t, gw.Calls())
}

func TestBuilder_Get(t *testing.T) {
	gw := testutil.NewRecordingGateway()
	gw.QueryRows["SELECT * FROM users WHERE id = ? LIMIT ?"] = []queryir.Row{{"id": int64(1)}}

	rows, err := New(gw, "users").Where("id", "=", 1).Limit(1).Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []queryir.Row{{"id": int64(1)}}, rows)
	assert.Equal(t, []any{1, uint64(1)}, gw.Calls()[0].Params)
}

func TestBuilder_FirstAndLastIgnoreClauses(t *testing.T) {
	gw := testutil.NewRecordingGateway()
	gw.QueryRows["SELECT * FROM users LIMIT 1"] = []queryir.Row{{"id": int64(1)}}
	gw.QueryRows["SELECT * FROM users ORDER BY id DESC LIMIT 1"] = []queryir.Row{{"id": int64(9)}}

	b := New(gw, "users").Where("name", "=", "x").OrderBy("name").Limit(3)

	first, err := b.First(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), first["id"])

	last, err := b.Last(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(9), last["id"])

	for _, c := range gw.Calls() {
		assert.Empty(t, c.Params)
	}
}

func TestBuilder_FindNoRows(t *testing.T) {
	gw := testutil.NewRecordingGateway()

	_, err := New(gw, "users").Find(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNoRows)
	assert.Equal(t, []any{42}, gw.Calls()[0].Params)
}

func TestBuilder_Count(t *testing.T) {
	gw := testutil.NewRecordingGateway()
	gw.QueryRows["SELECT COUNT(*) AS aggregate FROM users WHERE age > ?"] = []queryir.Row{{"aggregate": int64(7)}}

	n, err := New(gw, "users").Select("name").OrderBy("name").Where("age", ">", 30).Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
}

func TestBuilder_CreateValidationFailureTouchesNothing(t *testing.T) {
	gw := testutil.NewRecordingGateway()

	res, err := New(gw, "users").Create(context.Background(),
		map[string]any{"email": "nope"},
		validation.Rules{"email": "required|email"})
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Equal(t, "The email field must be a valid email address", res.Errors["email"]["email"])
	assert.Empty(t, gw.Calls())
}

func TestBuilder_Create(t *testing.T) {
	gw := testutil.NewRecordingGateway()

	res, err := New(gw, "users").Create(context.Background(),
		map[string]any{"name": "Ada", "email": "ada@example.com"},
		validation.Rules{"email": "email"})
	require.NoError(t, err)
	assert.Equal(t, WriteResult{Success: true, RowsAffected: 1}, res)

	calls := gw.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "INSERT INTO users (email, name) VALUES (?, ?)", calls[0].SQL)
	assert.Equal(t, []any{"ada@example.com", "Ada"}, calls[0].Params)
}

func TestBuilder_CreateUniqueUsesGateway(t *testing.T) {
	gw := testutil.NewRecordingGateway()
	gw.QueryRows["SELECT COUNT(*) AS aggregate FROM users WHERE email = ?"] = []queryir.Row{{"aggregate": int64(1)}}

	res, err := New(gw, "users").Create(context.Background(),
		map[string]any{"email": "ada@example.com"},
		validation.Rules{"email": "unique"})
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Contains(t, res.Errors["email"], "unique")
	require.Len(t, gw.Calls(), 1)
	assert.Equal(t, "query", gw.Calls()[0].Kind)
}

func TestBuilder_StatementErrorIsNotValidationFailure(t *testing.T) {
	gw := testutil.NewRecordingGateway()
	gw.Err = errors.New("UNIQUE constraint failed: users.email")

	res, err := New(gw, "users").Create(context.Background(), map[string]any{"email": "a@b.co"}, nil)
	require.Error(t, err)
	assert.True(t, IsStatementError(err))
	assert.Equal(t, WriteResult{}, res)

	var se *StatementError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "create", se.Op)
	assert.Equal(t, "INSERT INTO users (email) VALUES (?)", se.SQL)
}

func TestBuilder_UpdateEmptyData(t *testing.T) {
	gw := testutil.NewRecordingGateway()

	_, err := New(gw, "users").Update(context.Background(), 1, map[string]any{}, validation.Rules{"name": "required"})
	assert.True(t, queryir.IsInvalidArgument(err))
	assert.Empty(t, gw.Calls())

	_, err = New(gw, "users").Create(context.Background(), nil, nil)
	assert.True(t, queryir.IsInvalidArgument(err))
}

func TestBuilder_UpdateRecompilesPerShape(t *testing.T) {
	gw := testutil.NewRecordingGateway()
	b := New(gw, "users")

	_, err := b.Update(context.Background(), 1, map[string]any{"name": "Ada"}, nil)
	require.NoError(t, err)
	res, err := b.Update(context.Background(), 2, map[string]any{"name": "Bob", "email": "bob@example.com"}, nil)
	require.NoError(t, err)
	assert.Equal(t, WriteResult{Success: true, RowsAffected: 1}, res)

	calls := gw.Calls()
	assert.Equal(t, "UPDATE users SET name = ? WHERE id = ?", calls[0].SQL)
	assert.Equal(t, []any{"Ada", 1}, calls[0].Params)
	assert.Equal(t, "UPDATE users SET email = ?, name = ? WHERE id = ?", calls[1].SQL)
	assert.Equal(t, []any{"bob@example.com", "Bob", 2}, calls[1].Params)
}

func TestBuilder_Delete(t *testing.T) {
	gw := testutil.NewRecordingGateway()
	gw.Affected = 0

	res, err := New(gw, "users").Delete(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, WriteResult{Success: false, RowsAffected: 0}, res)
	assert.Equal(t, "DELETE FROM users WHERE id = ?", gw.Calls()[0].SQL)
}

func TestBuilder_RuleSpecErrorAbortsWrite(t *testing.T) {
	gw := testutil.NewRecordingGateway()

	_, err := New(gw, "users").Create(context.Background(),
		map[string]any{"name": "Ada"},
		validation.Rules{"name": "min"})
	assert.True(t, validation.IsInvalidRuleSpec(err))
	assert.Empty(t, gw.Calls())
}

func TestBuilder_LogsStatementsWithoutValues(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	gw := testutil.NewRecordingGateway()

	_, err := New(gw, "users", WithLogger(logger)).Where("email", "=", "secret@example.com").Get(context.Background())
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "op=get")
	assert.Contains(t, out, "params=1")
	assert.NotContains(t, out, "secret@example.com")
}
