package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/ZanzyTHEbar/fairplate-analytics/internal/analysis"
)

// DefaultConfigPaths lists the files searched, first match wins
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/fairplate/config.yaml",
}

// ConfigPathEnvVar overrides the config file path
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			Mode:            "release",
			RequestTimeout:  30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			CORSOrigins:     []string{"*"},
		},
		Database: DatabaseConfig{
			Driver:          "sqlite",
			DSN:             "fairplate.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: time.Hour,
		},
		Redis: RedisConfig{
			Enabled: false,
			Addr:    "localhost:6379",
		},
		Reports: ReportsConfig{
			Sink:               "sql",
			ArchivePath:        "data/reports",
			QualityCollection:  "data_quality",
			FairnessCollection: "fairness_metrics",
			WindowDays:         7,
			WindowLimit:        1000,
			CacheTTL:           5 * time.Minute,
			HistoryLimit:       30,
		},
		Scheduler: SchedulerConfig{
			Enabled:       true,
			Timezone:      "Asia/Kuala_Lumpur",
			Fairness:      "daily@02:00",
			Quality:       "daily@03:00",
			Unsuspend:     "every 15m",
			Unban:         "every 15m",
			Announcements: "every 1m",
			CatalogSync:   "every 6h",
			Retention:     "daily@04:00",
			RetryAttempts: 3,
			RetryDelay:    2 * time.Second,
			RunTimeout:    10 * time.Minute,
		},
		Quality:  analysis.DefaultQualityConfig(),
		Fairness: analysis.DefaultFairnessConfig(),
		Maintenance: MaintenanceConfig{
			RetentionDays: 365,
			SyncBatchSize: 500,
		},
		Notify: NotifyConfig{
			Enabled:         true,
			ChannelPrefix:   "fairplate:topic:",
			BreakerFailures: 5,
			BreakerTimeout:  30 * time.Second,
		},
		Security: SecurityConfig{
			TriggerLimitPerHour: 12,
			APILimitPerMinute:   120,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load layers struct defaults, an optional YAML file and environment variables,
// then validates the result. A .env file in the working directory is read first.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

var sliceConfigPaths = []string{
	"server.cors_origins",
}

// processSliceFields splits comma separated env values into lists
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

var envMappings = map[string]string{
	"port":                    "server.port",
	"http_host":               "server.host",
	"gin_mode":                "server.mode",
	"request_timeout":         "server.request_timeout",
	"cors_origins":            "server.cors_origins",
	"database_driver":         "database.driver",
	"database_url":            "database.dsn",
	"database_max_open_conns": "database.max_open_conns",

	"redis_enabled":  "redis.enabled",
	"redis_addr":     "redis.addr",
	"redis_password": "redis.password",
	"redis_db":       "redis.db",

	"report_sink":          "reports.sink",
	"report_archive_path":  "reports.archive_path",
	"report_cache_ttl":     "reports.cache_ttl",
	"fairness_window_days": "reports.window_days",

	"scheduler_enabled":      "scheduler.enabled",
	"scheduler_timezone":     "scheduler.timezone",
	"schedule_fairness":      "scheduler.fairness",
	"schedule_quality":       "scheduler.quality",
	"schedule_unsuspend":     "scheduler.unsuspend",
	"schedule_unban":         "scheduler.unban",
	"schedule_announcements": "scheduler.announcements",
	"schedule_catalog_sync":  "scheduler.catalog_sync",
	"schedule_retention":     "scheduler.retention",

	"scheduler_retry_attempts": "scheduler.retry_attempts",

	"vendor_size_proxy":      "fairness.vendor_size_proxy",
	"small_vendor_threshold": "fairness.small_vendor_threshold",

	"retention_days": "maintenance.retention_days",

	"notify_enabled":        "notify.enabled",
	"notify_channel_prefix": "notify.channel_prefix",

	"jwt_secret":             "security.jwt_secret",
	"trigger_limit_per_hour": "security.trigger_limit_per_hour",
	"enable_hsts":            "security.enable_hsts",

	"log_level":  "logging.level",
	"log_format": "logging.format",
}

// envTransformFunc maps known environment variables onto config keys and drops the rest
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}

// Default returns the built-in configuration without reading files or environment
func Default() *Config {
	return defaultConfig()
}
