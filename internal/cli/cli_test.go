package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `tables: {
	Post: {
		fields: {
			id:    {type: "integer", auto: true}
			title: {type: "text"}
		}
	}
}
`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeWorkspace(t *testing.T) (configPath string) {
	t.Helper()
	dir := t.TempDir()

	schemaPath := filepath.Join(dir, "schema.cue")
	require.NoError(t, os.WriteFile(schemaPath, []byte(testSchema), 0o644))

	configPath = filepath.Join(dir, "ebb.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("database: app.db\nschema: schema.cue\n"), 0o644))
	return configPath
}

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()
	schemaPath := filepath.Join(dir, "schema.cue")
	require.NoError(t, os.WriteFile(schemaPath, []byte(testSchema), 0o644))

	out, err := run(t, "validate", schemaPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Post: 2 fields, 0 relations")
	assert.Contains(t, out, "schema OK")
}

func TestValidateCommandBadSchema(t *testing.T) {
	dir := t.TempDir()
	schemaPath := filepath.Join(dir, "bad.cue")
	require.NoError(t, os.WriteFile(schemaPath, []byte(`tables: {}`), 0o644))

	_, err := run(t, "validate", schemaPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one table")
}

func TestExecAndQueryCommands(t *testing.T) {
	configPath := writeWorkspace(t)

	_, err := run(t, "exec", "--config", configPath, "--unsafe",
		"CREATE TABLE Post (id INTEGER PRIMARY KEY, title TEXT)")
	require.NoError(t, err)

	_, err = run(t, "exec", "--config", configPath, "--unsafe",
		"INSERT INTO Post (id, title) VALUES (1, 'hello')")
	require.NoError(t, err)

	// The sniffer blocks mutating statements without --unsafe.
	_, err = run(t, "exec", "--config", configPath, "DELETE FROM Post")
	require.Error(t, err)

	out, err := run(t, "query", "--config", configPath, "--table", "Post", "--op", "findUnique",
		`{"where": {"id": 1}}`)
	require.NoError(t, err)
	assert.Contains(t, out, "title: hello")

	out, err = run(t, "query", "--config", configPath, "--table", "Post", "--format", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"title": "hello"`)
}

func TestQueryCommandUnknownOp(t *testing.T) {
	configPath := writeWorkspace(t)
	_, err := run(t, "query", "--config", configPath, "--table", "Post", "--op", "explode")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown operation")
}

func TestRootCommandRejectsBadFormat(t *testing.T) {
	_, err := run(t, "--format", "xml", "validate", "nope.cue")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ebb.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database: data/app.db\nschema: schema.cue\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "data/app.db"), cfg.Database)
	assert.Equal(t, filepath.Join(dir, "schema.cue"), cfg.Schema)

	require.NoError(t, os.WriteFile(path, []byte("schema: schema.cue\n"), 0o644))
	_, err = LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database is required")
}
