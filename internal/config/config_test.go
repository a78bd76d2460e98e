package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bamsammich/winstick/internal/config"
)

func writeConfig(t *testing.T, content string) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	configDir := filepath.Join(dir, "winstick")
	require.NoError(t, os.MkdirAll(configDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.toml"), []byte(content), 0o644))
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Nil(t, cfg.Defaults.Scheme)
	assert.Nil(t, cfg.Defaults.SplitSizeMB)
	assert.Nil(t, cfg.Theme.Done)
}

func TestLoad_FullConfig(t *testing.T) {
	writeConfig(t, `
[defaults]
scheme = "mbr"
name = "WIN11"
split_size_mb = 3000
log_dir = "/var/tmp"
keep_logs = true

[theme]
done = "#00ff00"
failed = "#ff0000"
`)

	cfg, err := config.Load()
	require.NoError(t, err)

	require.NotNil(t, cfg.Defaults.Scheme)
	assert.Equal(t, "mbr", *cfg.Defaults.Scheme)

	require.NotNil(t, cfg.Defaults.Name)
	assert.Equal(t, "WIN11", *cfg.Defaults.Name)

	require.NotNil(t, cfg.Defaults.SplitSizeMB)
	assert.Equal(t, 3000, *cfg.Defaults.SplitSizeMB)

	require.NotNil(t, cfg.Defaults.LogDir)
	assert.Equal(t, "/var/tmp", *cfg.Defaults.LogDir)

	require.NotNil(t, cfg.Defaults.KeepLogs)
	assert.True(t, *cfg.Defaults.KeepLogs)

	require.NotNil(t, cfg.Theme.Done)
	assert.Equal(t, "#00ff00", *cfg.Theme.Done)
	assert.Nil(t, cfg.Theme.Spinner)
}

func TestLoad_PartialConfig(t *testing.T) {
	writeConfig(t, `
[defaults]
split_size_mb = 2000
`)

	cfg, err := config.Load()
	require.NoError(t, err)
	require.NotNil(t, cfg.Defaults.SplitSizeMB)
	assert.Equal(t, 2000, *cfg.Defaults.SplitSizeMB)
	assert.Nil(t, cfg.Defaults.Scheme)
	assert.Nil(t, cfg.Defaults.KeepLogs)
}

func TestLoad_InvalidTOML(t *testing.T) {
	writeConfig(t, "[defaults\nscheme = ")

	_, err := config.Load()
	assert.Error(t, err)
}

func TestPath_FallsBackToHome(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "")
	home := t.TempDir()
	t.Setenv("HOME", home)

	assert.Equal(t, filepath.Join(home, ".config", "winstick", "config.toml"), config.Path())
}
