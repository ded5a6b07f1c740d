package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const signupRules = `{
	"username": "required|alphaNumeric|min:3|max:20",
	"email": "required|email",
	"password": "required|strongPassword",
	"password_confirmation": "required|match:password"
}`

func TestValidateValidRecord(t *testing.T) {
	dir := t.TempDir()
	rules := writeFile(t, dir, "signup.json", signupRules)
	data := writeFile(t, dir, "signup.yaml", `
username: ada99
email: ada@example.com
password: Secr3tPass
password_confirmation: Secr3tPass
`)

	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--data", data, "--rules", rules})

	err := cmd.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "✓ Record valid")
}

func TestValidateValidRecordJSON(t *testing.T) {
	dir := t.TempDir()
	rules := writeFile(t, dir, "rules.yaml", "name: required|min:2\n")
	data := writeFile(t, dir, "rec.json", `{"name": "Ada"}`)

	out, err := executeCLI(t, "validate", "--data", data, "--rules", rules, "--format", "json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ok","data":{"valid":true}}`, out)
}

func TestValidateInvalidRecord(t *testing.T) {
	dir := t.TempDir()
	rules := writeFile(t, dir, "signup.json", signupRules)
	data := writeFile(t, dir, "signup.cue", `
username: "a!"
password: "weak"
password_confirmation: "other"
`)

	out, err := executeCLI(t, "validate", "--data", data, "--rules", rules)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	// Fields and rules print in sorted order.
	lines := []string{
		"email (required): The email field is required",
		"password (strongPassword): The password field must be at least 8 characters long",
		"password_confirmation (match): The password_confirmation field must match the password field",
		"username (alphaNumeric): The username field must contain only letters and numbers",
		"username (min): The username field must be at least 3 characters long",
	}
	last := -1
	for _, line := range lines {
		idx := bytes.Index([]byte(out), []byte(line))
		require.GreaterOrEqual(t, idx, 0, "missing %q in:\n%s", line, out)
		assert.Greater(t, idx, last, "%q out of order", line)
		last = idx
	}
}

func TestValidateInvalidRecordJSON(t *testing.T) {
	dir := t.TempDir()
	rules := writeFile(t, dir, "rules.json", `{"site": "required|url", "ip": "ip"}`)
	data := writeFile(t, dir, "rec.json", `{"site": "example", "ip": "10.0.0.1"}`)

	out, err := executeCLI(t, "validate", "--data", data, "--rules", rules, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.JSONEq(t, `{
		"status": "error",
		"error": {
			"code": "E009",
			"message": "record failed validation",
			"details": {"site": {"url": "The site field must be a URL"}}
		}
	}`, out)
}

func TestValidateUnsupportedRule(t *testing.T) {
	dir := t.TempDir()
	rules := writeFile(t, dir, "rules.yaml", "name: required|shiny\n")
	data := writeFile(t, dir, "rec.yaml", "name: Ada\n")

	out, err := executeCLI(t, "validate", "--data", data, "--rules", rules)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "name (shiny): Unsupported validation rule: shiny")
}

func TestValidateLoadErrors(t *testing.T) {
	dir := t.TempDir()
	rules := writeFile(t, dir, "rules.yaml", "name: required\n")

	out, err := executeCLI(t, "validate", "--data", dir+"/missing.yaml", "--rules", rules)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "[E005]")

	_, err = executeCLI(t, "validate", "--rules", rules)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one of the flags in the group [data form] is required")

	data := writeFile(t, dir, "rec.yaml", "name: Ada\n")
	body := writeFile(t, dir, "body.txt", "name=Ada")
	_, err = executeCLI(t, "validate", "--data", data, "--form", body, "--rules", rules)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "none of the others can be")

	out, err = executeCLI(t, "validate", "--form", dir+"/missing.txt", "--rules", rules)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "[E005]")
}

const profileRules = `
name: required|alpha
age: integer
avatar: required|image|filesize:1024
cv: filetype:pdf
`

func TestValidateForm(t *testing.T) {
	dir := t.TempDir()
	rules := writeFile(t, dir, "profile.yaml", profileRules)
	avatar := writeFile(t, dir, "me.png", "png bytes")
	cv := writeFile(t, dir, "cv.pdf", "%PDF")

	t.Run("valid body and uploads", func(t *testing.T) {
		body := writeFile(t, dir, "ok.txt", "name=Ada&age=36\n")
		out, err := executeCLI(t, "validate", "--form", body, "--rules", rules,
			"--files", "avatar="+avatar+",cv="+cv)
		require.NoError(t, err)
		assert.Contains(t, out, "✓ Record valid")
	})

	t.Run("form values are strings", func(t *testing.T) {
		body := writeFile(t, dir, "bad.txt", "name=Ada99&age=3.5")
		out, err := executeCLI(t, "validate", "--form", body, "--rules", rules,
			"--files", "avatar="+avatar+",cv="+cv, "--format", "json")
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))
		assert.JSONEq(t, `{
			"status": "error",
			"error": {
				"code": "E009",
				"message": "record failed validation",
				"details": {
					"name": {"alpha": "The name field must contain only letters"},
					"age": {"integer": "The age field must be an integer"}
				}
			}
		}`, out)
	})

	t.Run("missing upload", func(t *testing.T) {
		body := writeFile(t, dir, "noavatar.txt", "name=Ada")
		out, err := executeCLI(t, "validate", "--form", body, "--rules", rules)
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))
		assert.Contains(t, out, "avatar (required): The avatar field is required")
	})

	t.Run("wrong upload type", func(t *testing.T) {
		body := writeFile(t, dir, "cv.txt", "name=Ada")
		out, err := executeCLI(t, "validate", "--form", body, "--rules", rules,
			"--files", "avatar="+cv+",cv="+avatar)
		require.Error(t, err)
		assert.Contains(t, out, "avatar (image): The avatar field must be an image")
		assert.Contains(t, out, "cv (filetype): The cv field must be one of the following types: pdf")
	})
}

func TestValidateFormLogsOldInput(t *testing.T) {
	dir := t.TempDir()
	rules := writeFile(t, dir, "rules.yaml", "name: alpha\n")
	body := writeFile(t, dir, "body.txt", "name=%3Cb%3E")

	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "text", Verbose: true})
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs([]string{"--form", body, "--rules", rules})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, stdout.String(), "name (alpha)")
	assert.Contains(t, stderr.String(), "old name=&lt;b&gt;")
}

func TestValidateDataWithFiles(t *testing.T) {
	dir := t.TempDir()
	rules := writeFile(t, dir, "rules.yaml", "age: integer\nphoto: image\n")
	data := writeFile(t, dir, "rec.json", `{"age": 3}`)
	photo := writeFile(t, dir, "p.gif", "GIF89a")

	out, err := executeCLI(t, "validate", "--data", data, "--rules", rules, "--files", "photo="+photo)
	require.NoError(t, err)
	assert.Contains(t, out, "Record valid")
}

func TestValidateStoreRules(t *testing.T) {
	db := newTestDB(t)
	seedUsers(t, db)
	dir := t.TempDir()
	rules := writeFile(t, dir, "rules.yaml", "email: required|unique:users\nowner: exists:users,name\n")

	t.Run("without a database", func(t *testing.T) {
		data := writeFile(t, dir, "rec.yaml", "email: new@example.com\nowner: Ada\n")
		out, err := executeCLI(t, "validate", "--data", data, "--rules", rules)
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Contains(t, out, "validation aborted")
	})

	t.Run("passes", func(t *testing.T) {
		data := writeFile(t, dir, "ok.yaml", "email: new@example.com\nowner: Ada\n")
		out, err := executeCLI(t, "validate", "--db", db, "--data", data, "--rules", rules)
		require.NoError(t, err)
		assert.Contains(t, out, "Record valid")
	})

	t.Run("fails", func(t *testing.T) {
		data := writeFile(t, dir, "bad.yaml", "email: ada@example.com\nowner: Nobody\n")
		out, err := executeCLI(t, "validate", "--db", db, "--data", data, "--rules", rules)
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))
		assert.Contains(t, out, "email (unique): The email field must be unique")
		assert.Contains(t, out, "owner (exists): The owner field must exist in the database")
	})

	t.Run("lookup needs a table", func(t *testing.T) {
		noTable := writeFile(t, dir, "notable.yaml", "email: unique\n")
		data := writeFile(t, dir, "rec2.yaml", "email: new@example.com\n")
		_, err := executeCLI(t, "validate", "--db", db, "--data", data, "--rules", noTable)
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
	})
}

func TestPrintValidationErrors(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "text", Writer: buf}

	printValidationErrors(f, map[string]map[string]string{
		"b": {"z": "bz", "a": "ba"},
		"a": {"m": "am"},
	})

	assert.Equal(t, "✗ a (m): am\n✗ b (a): ba\n✗ b (z): bz\n", buf.String())
}

func TestValidateResultJSONShape(t *testing.T) {
	var resp CLIResponse
	out, err := executeCLI(t, "validate",
		"--data", writeFile(t, t.TempDir(), "r.json", `{"n": "1"}`),
		"--rules", writeFile(t, t.TempDir(), "s.json", `{"n": "numeric"}`),
		"--format", "json")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, map[string]any{"valid": true}, resp.Data)
}
