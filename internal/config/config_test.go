package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_ExpandsEnvAndAppliesDefaults(t *testing.T) {
	t.Setenv("MYCINE_JWT_SECRET", "s3cret")
	path := writeConfig(t, `
auth:
  jwt_secret: ${MYCINE_JWT_SECRET}
server:
  port: 9090
kafka:
  enabled: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.True(t, cfg.Kafka.Enabled)
	assert.Equal(t, "mycine-activity", cfg.Kafka.Topic)
	assert.Equal(t, 10, cfg.Leaderboard.DefaultLimit)
	assert.Equal(t, 10, cfg.Limits.ReviewsPerMinute)
	assert.Equal(t, "production", cfg.Log.Mode)
}

func TestLoad_RequiresSecret(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 8080\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_RejectsBadLimits(t *testing.T) {
	path := writeConfig(t, `
auth:
  jwt_secret: x
leaderboard:
  default_limit: 500
  max_limit: 50
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestPostgresConnectionString(t *testing.T) {
	c := PostgresConfig{User: "u", Password: "p", Host: "db", Port: 5432, Database: "mycine"}
	assert.Equal(t, "postgres://u:p@db:5432/mycine?sslmode=disable", c.ConnectionString())
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.True(t, cfg.Sync.Enabled)
	assert.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
}
