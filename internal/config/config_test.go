package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	chdirTemp(t)
	t.Setenv(configPathEnv, "")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, ":8080", cfg.Server.Addr())
	assert.Equal(t, BackendMemory, cfg.Storage.Backend)
	assert.Equal(t, 60*time.Second, cfg.Ingest.DuplicateWindow())
	assert.False(t, cfg.Ingest.PreferDaylight)
	assert.True(t, cfg.Ingest.OnStartup)
	assert.Equal(t, "UTC", cfg.Reports.DefaultTimezone)
	assert.Equal(t, 366, cfg.Reports.MaxRangeDays)
}

func TestLoad_Precedence(t *testing.T) {
	dir := chdirTemp(t)

	yamlPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
server:
  port: 9000
  read_timeout: 5s
log:
  level: debug
ingest:
  source: gs://bucket/tx.csv
  duplicate_window_seconds: 30
  prefer_daylight: true
reports:
  default_timezone: America/New_York
`), 0o600))

	// .env does not override variables already present in the environment.
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("DUPLICATE_WINDOW_SECONDS=45\nMAX_RANGE_DAYS=90\n"), 0o600))
	t.Setenv(dupWindowEnv, "20")
	t.Setenv(portEnv, "")
	require.NoError(t, os.Unsetenv(maxRangeEnv))
	t.Cleanup(func() { os.Unsetenv(maxRangeEnv) })

	cfg, err := Load(yamlPath)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "gs://bucket/tx.csv", cfg.Ingest.Source)
	assert.Equal(t, 20, cfg.Ingest.DuplicateWindowSeconds)
	assert.True(t, cfg.Ingest.PreferDaylight)
	assert.Equal(t, "America/New_York", cfg.Reports.DefaultTimezone)
	assert.Equal(t, 90, cfg.Reports.MaxRangeDays)
}

func TestLoad_Errors(t *testing.T) {
	chdirTemp(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	t.Setenv(portEnv, "eighty")
	_, err = Load("")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "sqlite" }, true},
		{"postgres without dsn", func(c *Config) { c.Storage.Backend = BackendPostgres }, true},
		{"postgres with dsn", func(c *Config) {
			c.Storage.Backend = BackendPostgres
			c.Storage.PostgresDSN = "postgres://localhost/analytics"
		}, false},
		{"bigquery without project", func(c *Config) { c.Storage.Backend = BackendBigQuery }, true},
		{"bigquery with project", func(c *Config) {
			c.Storage.Backend = BackendBigQuery
			c.Storage.BigQueryProject = "my-project"
		}, false},
		{"zero window", func(c *Config) { c.Ingest.DuplicateWindowSeconds = 0 }, true},
		{"negative retries", func(c *Config) { c.Ingest.MaxRetries = -1 }, true},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, true},
		{"unknown timezone", func(c *Config) { c.Reports.DefaultTimezone = "Mars/Base" }, true},
		{"named timezone", func(c *Config) { c.Reports.DefaultTimezone = "Europe/Berlin" }, false},
		{"unlimited range", func(c *Config) { c.Reports.MaxRangeDays = 0 }, false},
		{"negative range", func(c *Config) { c.Reports.MaxRangeDays = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
				return
			}
			assert.NoError(t, err)
		})
	}
}
