package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCLI(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HYPERLEARN_DATABASE_PATH", filepath.Join(dir, "cli.db"))
	t.Setenv("HYPERLEARN_LOG_LEVEL", "error")
	t.Setenv("HYPERLEARN_EDITOR_AUTORUN", "false")
}

func execute(t *testing.T, input string, args ...string) (string, error) {
	t.Helper()
	runFile, runPreview, showJSON, displayName, watchFile = "", false, false, "", ""
	stdin = strings.NewReader(input)
	t.Cleanup(func() { stdin = os.Stdin })

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCLIFlow(t *testing.T) {
	setupCLI(t)

	_, err := execute(t, "", "whoami")
	require.Error(t, err, "nobody is signed in yet")

	out, err := execute(t, "pw\n", "register", "ada@example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "Welcome, ada@example.com")

	out, err = execute(t, "", "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "<ada@example.com>")

	out, err = execute(t, "", "tutorials", "css")
	require.NoError(t, err)
	assert.Contains(t, out, "css-card")
	assert.NotContains(t, out, "js-hello")

	_, err = execute(t, "", "notes", "js-hello", "remember the return")
	require.NoError(t, err)
	out, err = execute(t, "", "notes", "js-hello")
	require.NoError(t, err)
	assert.Equal(t, "remember the return\n", out)

	out, err = execute(t, "", "progress", "js-hello", "done=true")
	require.NoError(t, err)
	assert.Equal(t, "done=true\nnotes=remember the return\n", out)

	require.NoError(t, os.WriteFile("doc.html", []byte(`<script>function f(){return 2}; console.log(f()); console.warn("ok")</script>`), 0o644))
	out, err = execute(t, "", "run", "--file", "doc.html")
	require.NoError(t, err)
	assert.Equal(t, "2\n[warn] ok\n", out)

	out, err = execute(t, "", "run", "js-hello", "--preview")
	require.NoError(t, err)
	assert.Contains(t, out, `<div id="app">undefined</div>`)

	_, err = execute(t, "", "logout")
	require.NoError(t, err)
	_, err = execute(t, "", "tutorials")
	assert.Error(t, err)

	out, err = execute(t, "pw\n", "login", "ada@example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed in as ada@example.com")
}

func TestCatalogImport(t *testing.T) {
	setupCLI(t)

	_, err := execute(t, "pw\n", "register", "ada@example.com")
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(filepath.Join("tutorials", "go"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join("tutorials", "go", "basics.yaml"), []byte(`
id: go-basics
title: Go Basics
tags: [go]
starterCode: "<script>console.log('hi')</script>"
`), 0o644))

	out, err := execute(t, "", "catalog", "import", "tutorials/**/*.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 1 tutorials.")

	out, err = execute(t, "", "tutorials")
	require.NoError(t, err)
	assert.Contains(t, out, "go-basics")
	assert.NotContains(t, out, "css-card")
}

func TestParseFields(t *testing.T) {
	fields, err := parseFields([]string{"done=true", "score=3", "label=plain text"})
	require.NoError(t, err)
	assert.Equal(t, true, fields["done"])
	assert.Equal(t, float64(3), fields["score"])
	assert.Equal(t, "plain text", fields["label"])

	_, err = parseFields([]string{"missing"})
	assert.Error(t, err)
}
