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

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", writeConfig(t, "server:\n  port: \"9090\"\n"))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 5*time.Minute, cfg.Redis.TTL)
	assert.Equal(t, 0, cfg.Pagination.MaxLimit)
	assert.Empty(t, cfg.Redis.Addr)
	assert.Equal(t, ActivityConfig{QueueSize: 1024, Workers: 2}, cfg.Activity)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_FILE", writeConfig(t, "database:\n  driver: sqlite\n  dsn: file.db\n"))
	t.Setenv("BLOG_PAGINATION_MAX_LIMIT", "50")
	t.Setenv("BLOG_AUTH_JWT_SECRET", "s3cret")
	t.Setenv("DATABASE_URL", "override.db")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "override.db", cfg.Database.DSN)
	assert.Equal(t, 50, cfg.Pagination.MaxLimit)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
}

func TestLoad_RejectsUnknownDriver(t *testing.T) {
	t.Setenv("CONFIG_FILE", writeConfig(t, "database:\n  driver: mongo\n"))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")
}

func TestValidate_NegativeLimit(t *testing.T) {
	cfg := &Config{
		Database:   DatabaseConfig{Driver: "sqlite", DSN: ":memory:"},
		Pagination: PaginationConfig{MaxLimit: -1},
	}
	assert.Error(t, cfg.Validate())
}
