package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "data/data.json", cfg.Store.FilePath)
	assert.Empty(t, cfg.Store.DatabaseURL)
	assert.Equal(t, 12*time.Hour, cfg.Auth.SessionTTL)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoad_MissingFileIsFine(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.NoError(t, err)
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9000
log:
  level: debug
store:
  database_url: postgres://localhost/board
auth:
  admin_pin: "4242"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "postgres://localhost/board", cfg.Store.DatabaseURL)
	assert.Equal(t, "4242", cfg.Auth.AdminPIN)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9000\n"), 0o644))

	t.Setenv("BOARD_SERVER__PORT", "9100")
	t.Setenv("BOARD_AUTH__ADMIN_PIN", "1111")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "1111", cfg.Auth.AdminPIN)
}

func TestLoad_RejectsBadPort(t *testing.T) {
	t.Setenv("BOARD_SERVER__PORT", "99999")

	_, err := Load("")
	assert.Error(t, err)
}
