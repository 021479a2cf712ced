package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
app:
  environment: staging
server:
  http_port: 8181
ledger:
  timeout: 3s
tracking:
  prefix: Test
`), 0o600))

	t.Setenv("XPOSE_DATABASE_HOST", "db.internal")
	t.Setenv("XPOSE_JWT_SECRET", "s3cret")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "staging", cfg.App.Environment)
	assert.Equal(t, 8181, cfg.Server.HTTPPort)
	assert.Equal(t, 3*time.Second, cfg.Ledger.Timeout)
	assert.Equal(t, "Test", cfg.Tracking.Prefix)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "s3cret", cfg.JWT.Secret)

	// untouched defaults
	assert.Equal(t, 9090, cfg.Server.GRPCPort)
	assert.Equal(t, 20000, cfg.Assignment.RadiusMeters)
	assert.Equal(t, 10, cfg.Tracking.MaxAttempts)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
