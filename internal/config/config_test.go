package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiftsec/eventshift/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "mappings.json", cfg.MappingsPath)
	assert.Equal(t, "templates", cfg.TemplatesDir)
	assert.Equal(t, "us-east-1", cfg.Region)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.False(t, cfg.Engine.EnforceOCSF)
	assert.Equal(t, 256, cfg.Engine.JSONPathCacheSize)
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
mappings_path: /etc/eventshift/mappings.json
templates_dir: /etc/eventshift/templates
account_id: "999999999999"
log:
  level: debug
engine:
  enforce_ocsf: true
  jsonpath_cache_size: 64
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/etc/eventshift/mappings.json", cfg.MappingsPath)
	assert.Equal(t, "/etc/eventshift/templates", cfg.TemplatesDir)
	assert.Equal(t, "999999999999", cfg.AccountID)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Engine.EnforceOCSF)
	assert.Equal(t, 64, cfg.Engine.JSONPathCacheSize)
	assert.Equal(t, "us-east-1", cfg.Region, "unset keys keep defaults")
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("EVENTSHIFT_REGION", "eu-west-1")
	t.Setenv("EVENTSHIFT_LOG_LEVEL", "warn")

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "eu-west-1", cfg.Region)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_MissingFileErrors(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
