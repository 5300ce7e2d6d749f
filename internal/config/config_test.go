package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate keeps Load away from the developer's real config files.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Chdir(dir)
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "file", c.Store.Backend)
	assert.Equal(t, 25, c.Engine.MaxSteps)
	assert.Equal(t, 5, c.Engine.PreviewRows)
	assert.Equal(t, 3, c.Anthropic.MaxAttempts)
	assert.Equal(t, 8080, c.Server.Port)
	assert.Empty(t, c.Anthropic.APIKey)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "tabula.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine:\n  max_steps: 7\n  workspace_echo: true\nstore:\n  backend: memory\n"), 0o644))

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7, c.Engine.MaxSteps)
	assert.True(t, c.Engine.WorkspaceEcho)
	assert.Equal(t, "memory", c.Store.Backend)

	t.Setenv("TABULA_ENGINE_MAX_STEPS", "3")
	c, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, c.Engine.MaxSteps)
}

func TestLoad_APIKeyFromStandardVariable(t *testing.T) {
	isolate(t)
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sk-test", c.Anthropic.APIKey)
}

func TestLoad_Errors(t *testing.T) {
	dir := isolate(t)

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	t.Setenv("TABULA_STORE_BACKEND", "postgres")
	_, err = Load("")
	assert.ErrorContains(t, err, "unknown store backend")
}

func TestSave_OmitsAPIKey(t *testing.T) {
	dir := isolate(t)
	t.Setenv("ANTHROPIC_API_KEY", "sk-secret")
	c, err := Load("")
	require.NoError(t, err)
	c.Engine.MaxSteps = 12

	path := filepath.Join(dir, "nested", "tabula.yaml")
	require.NoError(t, Save(c, path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "sk-secret")

	t.Setenv("ANTHROPIC_API_KEY", "")
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 12, loaded.Engine.MaxSteps)
	assert.Equal(t, "sk-secret", c.Anthropic.APIKey, "the caller's config is untouched")
}
