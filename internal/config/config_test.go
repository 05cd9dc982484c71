package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/fairplate-analytics/internal/analysis"
	apperrors "github.com/ZanzyTHEbar/fairplate-analytics/internal/errors"
)

// inTempDir runs the test from an empty directory so no stray config.yaml or .env is picked up
func inTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	inTempDir(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "Asia/Kuala_Lumpur", cfg.Scheduler.Timezone)
	assert.Equal(t, "daily@02:00", cfg.Scheduler.Fairness)
	assert.Equal(t, "daily@03:00", cfg.Scheduler.Quality)
	assert.Equal(t, "every 15m", cfg.Scheduler.Unsuspend)
	assert.Equal(t, 7, cfg.Reports.WindowDays)
	assert.Equal(t, 1000, cfg.Reports.WindowLimit)
	assert.Equal(t, 5*time.Minute, cfg.Reports.CacheTTL)
	assert.Equal(t, 365, cfg.Maintenance.RetentionDays)
	assert.Equal(t, 12, cfg.Security.TriggerLimitPerHour)
	assert.Equal(t, analysis.DefaultQualityConfig(), cfg.Quality)
	assert.Equal(t, analysis.DefaultFairnessConfig(), cfg.Fairness)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Kuala_Lumpur", loc.String())
}

func TestLoad_EnvOverrides(t *testing.T) {
	inTempDir(t)
	t.Setenv("PORT", "9090")
	t.Setenv("SCHEDULE_QUALITY", "every 2h")
	t.Setenv("VENDOR_SIZE_PROXY", "items")
	t.Setenv("REPORT_CACHE_TTL", "90s")
	t.Setenv("CORS_ORIGINS", "https://admin.example.my, https://ops.example.my")
	t.Setenv("UNRELATED_VARIABLE", "ignored")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "every 2h", cfg.Scheduler.Quality)
	assert.Equal(t, analysis.ProxyItems, cfg.Fairness.VendorSizeProxy)
	assert.Equal(t, 90*time.Second, cfg.Reports.CacheTTL)
	assert.Equal(t, []string{"https://admin.example.my", "https://ops.example.my"}, cfg.Server.CORSOrigins)
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := inTempDir(t)
	path := filepath.Join(dir, "custom.yaml")
	yaml := `
database:
  driver: postgres
  dsn: postgres://fairplate@localhost/fairplate
fairness:
  small_vendor_threshold: 250
quality:
  stale_after_days: 14
  critical_stale_days: 60
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "postgres://fairplate@localhost/fairplate", cfg.Database.DSN)
	assert.Equal(t, 250, cfg.Fairness.SmallVendorThreshold)
	assert.Equal(t, 14.0, cfg.Quality.StaleAfterDays)
	// untouched keys keep their defaults
	assert.Equal(t, 10, cfg.Quality.MinItems)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(c *Config)
		category apperrors.ErrorCategory
	}{
		{name: "unknown driver", mutate: func(c *Config) { c.Database.Driver = "mysql" }, category: apperrors.CategoryValidation},
		{name: "bad port", mutate: func(c *Config) { c.Server.Port = 0 }, category: apperrors.CategoryValidation},
		{name: "bad proxy", mutate: func(c *Config) { c.Fairness.VendorSizeProxy = "revenue" }, category: apperrors.CategoryValidation},
		{name: "critical before stale", mutate: func(c *Config) { c.Quality.CriticalStaleDays = 10 }, category: apperrors.CategoryValidation},
		{name: "negative max issues", mutate: func(c *Config) { c.Quality.MaxIssues = -1 }, category: apperrors.CategoryValidation},
		{name: "zero id list cap", mutate: func(c *Config) { c.Quality.MaxIDsPerList = 0 }, category: apperrors.CategoryValidation},
		{name: "complete percent above 100", mutate: func(c *Config) { c.Quality.CompleteMenuPercent = 120 }, category: apperrors.CategoryValidation},
		{name: "critical percent above complete", mutate: func(c *Config) { c.Quality.CriticalMenuPercent = 80 }, category: apperrors.CategoryValidation},
		{name: "badger sink without path", mutate: func(c *Config) { c.Reports.Sink = "badger"; c.Reports.ArchivePath = "" }, category: apperrors.CategoryValidation},
		{name: "unknown timezone", mutate: func(c *Config) { c.Scheduler.Timezone = "Mars/Olympus" }, category: apperrors.CategoryConfiguration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Equal(t, tt.category, apperrors.CategoryOf(err))
		})
	}

	t.Run("defaults are valid", func(t *testing.T) {
		assert.NoError(t, defaultConfig().Validate())
	})
}
