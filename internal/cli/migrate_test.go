package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PseudoDevs/IamJohnDevORM/internal/config"
)

const usersSchema = `CREATE TABLE users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	email TEXT NOT NULL UNIQUE,
	age INTEGER
);`

const teamsSchema = `CREATE TABLE teams (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL
);`

// clearEnv unsets the connection variables for the duration of the test.
// Env files loaded by a command are undone by the same cleanup.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{config.EnvDriver, config.EnvDSN, config.EnvMaxOpenConns} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

// newTestDB migrates a fresh SQLite database with the users and teams
// tables and returns its path.
func newTestDB(t *testing.T) string {
	t.Helper()
	clearEnv(t)

	dir := t.TempDir()
	db := filepath.Join(dir, "app.db")
	users := writeFile(t, dir, "001_users.sql", usersSchema)
	teams := writeFile(t, dir, "002_teams.sql", teamsSchema)

	_, err := executeCLI(t, "migrate", "--db", db, users, teams)
	require.NoError(t, err)
	return db
}

func TestMigrate(t *testing.T) {
	db := newTestDB(t)
	dir := filepath.Dir(db)

	t.Run("rerun is a no-op", func(t *testing.T) {
		out, err := executeCLI(t, "migrate", "--db", db,
			filepath.Join(dir, "001_users.sql"),
			filepath.Join(dir, "002_teams.sql"))
		require.NoError(t, err)
		assert.Equal(t, "schema at version 2 (2 script(s))\n", out)
	})

	t.Run("appends new scripts", func(t *testing.T) {
		posts := writeFile(t, dir, "003_posts.sql", "CREATE TABLE posts (id INTEGER PRIMARY KEY, title TEXT);")
		out, err := executeCLI(t, "migrate", "--db", db, "--format", "json",
			filepath.Join(dir, "001_users.sql"),
			filepath.Join(dir, "002_teams.sql"),
			posts)
		require.NoError(t, err)

		var resp struct {
			Status string        `json:"status"`
			Data   MigrateOutput `json:"data"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &resp))
		assert.Equal(t, "ok", resp.Status)
		assert.Equal(t, MigrateOutput{Version: 3, Scripts: 3}, resp.Data)
	})

	t.Run("failing script", func(t *testing.T) {
		bad := writeFile(t, dir, "bad.sql", "CREATE TABLE users (id INTEGER);")
		_, err := executeCLI(t, "migrate", "--db", filepath.Join(t.TempDir(), "other.db"), bad, bad)
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
	})

	t.Run("missing script", func(t *testing.T) {
		_, err := executeCLI(t, "migrate", "--db", db, filepath.Join(dir, "nope.sql"))
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Contains(t, err.Error(), ErrCodeNotFound)
	})
}

func TestSessionRequiresDatabase(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())

	out, err := executeCLI(t, "query", "users")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "[E003]")
}

func TestSessionReadsEnvFile(t *testing.T) {
	db := newTestDB(t)
	dir := t.TempDir()
	env := writeFile(t, dir, "test.env", "IJDORM_DRIVER=sqlite3\nIJDORM_DSN="+db+"\n")

	out, err := executeCLI(t, "query", "users", "--count", "--env-file", env)
	require.NoError(t, err)
	assert.Equal(t, "0\n", out)
}

func TestSessionRejectsUnknownDriver(t *testing.T) {
	db := newTestDB(t)

	out, err := executeCLI(t, "query", "users", "--db", db, "--driver", "mysql")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "[E004]")
}

func TestParseID(t *testing.T) {
	assert.Equal(t, int64(42), parseID("42"))
	assert.Equal(t, "4f2a-b", parseID("4f2a-b"))
}
