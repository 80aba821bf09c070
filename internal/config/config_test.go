package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "advisor_guard.db", cfg.DSN())
	assert.Equal(t, "database", cfg.Metrics.Provider)
	assert.Equal(t, 10, cfg.Metrics.TimeoutSecs)
	assert.Equal(t, 180, cfg.Model.TimeoutSecs)
	assert.Equal(t, 5, cfg.Audit.TimeoutSecs)
	assert.Equal(t, 300, cfg.Settings.TTLSecs)
	assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Greater(t, cfg.Server.WriteTimeoutSecs, cfg.Model.TimeoutSecs)

	opts := cfg.DBOptions()
	assert.Equal(t, "sqlite", opts.Driver)
	assert.True(t, opts.Migrate)
	assert.Equal(t, 25, opts.MaxOpenConns)
	assert.Equal(t, 30*time.Minute, opts.ConnMaxLifetime)
}

func TestLoadFromYAML(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(`
server:
  port: 9090
database:
  driver: mysql
  host: db.internal
  user: guard
  password: pw
  name: perf
model:
  provider: anthropic
  name: claude-sonnet-4-5-20250929
metrics:
  provider: http
  base_url: https://reports.internal
auth:
  api_keys:
    u-1: key-one
`), 0o600))

	cfg, err := Load(p)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "guard:pw@tcp(db.internal:3306)/perf?parseTime=true&charset=utf8mb4&loc=UTC", cfg.DSN())
	assert.Equal(t, "anthropic", cfg.Model.Provider)
	assert.Equal(t, "https://reports.internal", cfg.Metrics.BaseURL)
	assert.Equal(t, map[string]string{"u-1": "key-one"}, cfg.Auth.APIKeys)
}

func TestLoadEnvOverride(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte("database:\n  driver: postgres\n"), 0o600))
	t.Setenv("GUARD_MODEL_API_KEY", "sk-test")
	t.Setenv("GUARD_DATABASE_NAME", "guard")

	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "sk-test", cfg.Model.APIKey)
	assert.Equal(t, "host=localhost port=5432 user= password= dbname=guard sslmode=disable", cfg.DSN())
}

func TestLoadRejectsInvalid(t *testing.T) {
	for name, body := range map[string]string{
		"driver":   "database:\n  driver: oracle\n",
		"http url": "metrics:\n  provider: http\n",
		"model":    "model:\n  provider: llama\n",
	} {
		t.Run(name, func(t *testing.T) {
			p := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
			_, err := Load(p)
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.True(t, zap.L().Core().Enabled(-1))
	assert.Error(t, InitLogger(LogConfig{Level: "loud"}))
	zap.ReplaceGlobals(zap.NewNop())
}
