package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibkr-relay/internal/config"
)

const sampleConfig = `
server:
  host: 0.0.0.0
  port: 8080
  mode: debug

database:
  host: localhost
  port: 5432
  user: relay
  password: relay
  dbname: relay
  sslmode: disable

redis:
  host: localhost
  port: 6379
  password: ""
  db: 0

gateway:
  mode: live
  rest_url: http://localhost:5000
  ws_url: ws://localhost:5000/stream
  timeout_seconds: 10

auth:
  jwt_secret: test-jwt-secret
  expire_hours: 24
  dashboard_secret: test-dashboard-secret
  webhook_secret: test-webhook-secret

dashboard:
  refresh_seconds: 60

log:
  dir: ""
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFromFile(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "live", cfg.Gateway.Mode)
	assert.Equal(t, "ws://localhost:5000/stream", cfg.Gateway.WSURL)
	assert.Equal(t, 10, cfg.Gateway.TimeoutSeconds)
	assert.Equal(t, "test-jwt-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, "test-webhook-secret", cfg.Auth.WebhookSecret)
	assert.Equal(t, 60, cfg.Dashboard.RefreshSeconds)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("GATEWAY_MODE", "sim")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("JWT_SECRET", "env-jwt-secret")
	t.Setenv("WEBHOOK_SECRET", "env-webhook-secret")

	cfg, err := config.Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "sim", cfg.Gateway.Mode)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "env-jwt-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, "env-webhook-secret", cfg.Auth.WebhookSecret)

	// Untouched values keep their file settings.
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
}

func TestEnvOverrideIgnoresBadPort(t *testing.T) {
	t.Setenv("SERVER_PORT", "not-a-port")

	cfg, err := config.Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadBadYAML(t *testing.T) {
	_, err := config.Load(writeConfig(t, "server: [not a map"))
	assert.Error(t, err)
}

func TestDatabaseDSN(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	dsn := cfg.Database.DSN()
	assert.Equal(t,
		"host=localhost port=5432 user=relay password=relay dbname=relay sslmode=disable",
		dsn)
}
