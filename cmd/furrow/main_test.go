package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "furrow.yaml")
	content := "store:\n  backend: sqlite\n  dsn: file:" + filepath.Join(dir, "cli.db") + "\nlog:\n  level: error\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func decode[T any](t *testing.T, s string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(s), &v))
	return v
}

func TestProductWorkflow(t *testing.T) {
	cfgFile := writeConfig(t)

	out, err := run(t, "--config", cfgFile, "migrate")
	require.NoError(t, err)
	assert.EqualValues(t, 1, decode[map[string]any](t, out)["version"])

	out, err = run(t, "--config", cfgFile, "product", "add", "--sku", "HOSE-1", "--name", "Garden Hose", "--price", "1999", "--user", "ana")
	require.NoError(t, err)
	assert.EqualValues(t, 1, decode[map[string]int64](t, out)["id"])

	out, err = run(t, "--config", cfgFile, "product", "update", "1", "--price", "2499", "--user", "bo")
	require.NoError(t, err)
	assert.Equal(t, 1, decode[map[string]int](t, out)["changes"])

	out, err = run(t, "--config", cfgFile, "product", "get", "1")
	require.NoError(t, err)
	p := decode[map[string]any](t, out)
	assert.EqualValues(t, 2499, p["price_cents"])
	assert.Equal(t, "ana", p["created_by"])
	assert.Equal(t, "bo", p["updated_by"])

	out, err = run(t, "--config", cfgFile, "product", "list", "--size", "5")
	require.NoError(t, err)
	page := decode[map[string]any](t, out)
	assert.EqualValues(t, 1, page["totalRecords"])

	_, err = run(t, "--config", cfgFile, "product", "disable", "1")
	require.NoError(t, err)

	out, err = run(t, "--config", cfgFile, "product", "count", "--active")
	require.NoError(t, err)
	assert.EqualValues(t, 0, decode[map[string]int64](t, out)["count"])

	_, err = run(t, "--config", cfgFile, "product", "delete", "1")
	require.NoError(t, err)

	_, err = run(t, "--config", cfgFile, "product", "get", "1")
	assert.ErrorContains(t, err, "not found")
}

func TestConfigShowAndVersion(t *testing.T) {
	cfgFile := writeConfig(t)

	out, err := run(t, "--config", cfgFile, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "backend: sqlite")

	out, err = run(t, "--config", cfgFile, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "furrow version")
}

func TestBadArguments(t *testing.T) {
	cfgFile := writeConfig(t)

	_, err := run(t, "--config", cfgFile, "product", "get", "abc")
	assert.ErrorContains(t, err, "invalid product id")

	_, err = run(t, "--config", cfgFile, "--output", "xml", "version")
	assert.ErrorContains(t, err, "unknown output format")
	output = "json"
}
