package config

import (
	"time"
	_ "time/tzdata"

	"github.com/ZanzyTHEbar/fairplate-analytics/internal/analysis"
)

// Config is the complete runtime configuration
type Config struct {
	Server      ServerConfig            `koanf:"server"`
	Database    DatabaseConfig          `koanf:"database"`
	Redis       RedisConfig             `koanf:"redis"`
	Reports     ReportsConfig           `koanf:"reports"`
	Scheduler   SchedulerConfig         `koanf:"scheduler"`
	Quality     analysis.QualityConfig  `koanf:"quality"`
	Fairness    analysis.FairnessConfig `koanf:"fairness"`
	Maintenance MaintenanceConfig       `koanf:"maintenance"`
	Notify      NotifyConfig            `koanf:"notify"`
	Security    SecurityConfig          `koanf:"security"`
	Logging     LoggingConfig           `koanf:"logging"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"gt=0,lte=65535"`
	Mode            string        `koanf:"mode" validate:"oneof=debug release test"`
	RequestTimeout  time.Duration `koanf:"request_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

type DatabaseConfig struct {
	Driver          string        `koanf:"driver" validate:"oneof=sqlite postgres"`
	DSN             string        `koanf:"dsn" validate:"required"`
	MaxOpenConns    int           `koanf:"max_open_conns" validate:"gt=0"`
	MaxIdleConns    int           `koanf:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

type RedisConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Addr     string `koanf:"addr" validate:"required_if=Enabled true"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db" validate:"gte=0"`
}

// ReportsConfig controls where reports are written and how the fairness window is read
type ReportsConfig struct {
	// Sink is "sql" for the document store or "badger" for the local archive
	Sink               string        `koanf:"sink" validate:"oneof=sql badger"`
	ArchivePath        string        `koanf:"archive_path" validate:"required_if=Sink badger"`
	QualityCollection  string        `koanf:"quality_collection" validate:"required"`
	FairnessCollection string        `koanf:"fairness_collection" validate:"required"`
	WindowDays         int           `koanf:"window_days" validate:"gt=0"`
	WindowLimit        int           `koanf:"window_limit" validate:"gt=0"`
	CacheTTL           time.Duration `koanf:"cache_ttl"`
	HistoryLimit       int           `koanf:"history_limit" validate:"gt=0"`
}

// SchedulerConfig holds one schedule expression per job: "daily@HH:MM" or "every <duration>"
type SchedulerConfig struct {
	Enabled       bool          `koanf:"enabled"`
	Timezone      string        `koanf:"timezone" validate:"required"`
	Fairness      string        `koanf:"fairness" validate:"required"`
	Quality       string        `koanf:"quality" validate:"required"`
	Unsuspend     string        `koanf:"unsuspend" validate:"required"`
	Unban         string        `koanf:"unban" validate:"required"`
	Announcements string        `koanf:"announcements" validate:"required"`
	CatalogSync   string        `koanf:"catalog_sync" validate:"required"`
	Retention     string        `koanf:"retention" validate:"required"`
	RetryAttempts int           `koanf:"retry_attempts" validate:"gte=1"`
	RetryDelay    time.Duration `koanf:"retry_delay" validate:"gt=0"`
	RunTimeout    time.Duration `koanf:"run_timeout" validate:"gt=0"`
}

type MaintenanceConfig struct {
	RetentionDays int `koanf:"retention_days" validate:"gt=0"`
	SyncBatchSize int `koanf:"sync_batch_size" validate:"gt=0,lte=500"`
}

type NotifyConfig struct {
	Enabled         bool          `koanf:"enabled"`
	ChannelPrefix   string        `koanf:"channel_prefix"`
	BreakerFailures uint32        `koanf:"breaker_failures" validate:"gt=0"`
	BreakerTimeout  time.Duration `koanf:"breaker_timeout" validate:"gt=0"`
}

type SecurityConfig struct {
	// JWTSecret enables admin authentication on trigger routes when set
	JWTSecret           string `koanf:"jwt_secret"`
	TriggerLimitPerHour int    `koanf:"trigger_limit_per_hour" validate:"gt=0"`
	APILimitPerMinute   int    `koanf:"api_limit_per_minute" validate:"gt=0"`
	EnableHSTS          bool   `koanf:"enable_hsts"`
}

type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json text"`
}

// Location resolves the scheduler timezone
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Scheduler.Timezone)
}
