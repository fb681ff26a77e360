package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:7070", cfg.Server.Addr)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, "hyperlearn_", cfg.Storage.Namespace)
	assert.Equal(t, "sha256", cfg.Auth.Hash)
	assert.Equal(t, 10*time.Second, cfg.Runner.Timeout)
	assert.Equal(t, 1000, cfg.Runner.MaxLines)
	assert.Equal(t, 300*time.Millisecond, cfg.Editor.Debounce)
	assert.True(t, cfg.Editor.Autorun)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	path := filepath.Join(dir, "hyperlearn.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
storage:
  driver: memory
runner:
  timeout: 2s
  maxlines: 50
editor:
  autorun: false
`), 0o644))
	t.Setenv("HYPERLEARN_AUTH_HASH", "bcrypt")
	t.Setenv("HYPERLEARN_RUNNER_MAXLINES", "75")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, 2*time.Second, cfg.Runner.Timeout)
	assert.Equal(t, 75, cfg.Runner.MaxLines, "environment overrides the file")
	assert.Equal(t, "bcrypt", cfg.Auth.Hash)
	assert.False(t, cfg.Editor.Autorun)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("# comment\nHYPERLEARN_SERVER_ADDR=\"127.0.0.1:9999\"\n"), 0o644))
	t.Cleanup(func() { _ = os.Unsetenv("HYPERLEARN_SERVER_ADDR") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9999", cfg.Server.Addr)
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HYPERLEARN_STORAGE_DRIVER", "s3")

	_, err := Load("")
	assert.ErrorContains(t, err, "storage.driver")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
