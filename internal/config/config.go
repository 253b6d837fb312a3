package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"fxstreaks/internal/logging"
)

// Source modes.
const (
	ModeQuery = "query"
	ModeLocal = "local"
)

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Secret providers.
const (
	SecretsNone    = "none"
	SecretsManager = "secretsmanager"
	SecretsFile    = "file"
)

// Artifact backends.
const (
	ArtifactBackendS3 = "s3"
	ArtifactBackendFS = "fs"
)

const (
	defaultSecretName     = "fxstreaks-db"
	defaultArtifactPrefix = "reports"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	AWS       AWSConfig       `mapstructure:"aws"`
	Secrets   SecretsConfig   `mapstructure:"secrets"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Source    SourceConfig    `mapstructure:"source"`
	Artifacts ArtifactsConfig `mapstructure:"artifacts"`
	Report    ReportConfig    `mapstructure:"report"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Environment string `mapstructure:"environment"`
}

// AWSConfig is shared by the S3 and Secrets Manager clients.
type AWSConfig struct {
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"`
}

// SecretsConfig selects where database credentials come from.
type SecretsConfig struct {
	Provider string `mapstructure:"provider" validate:"oneof=none secretsmanager file"`
	Name     string `mapstructure:"name"`
	Path     string `mapstructure:"path"`
}

// DatabaseConfig encapsulates connectivity to the rate store.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver" validate:"oneof=postgres sqlite"`
	DSN             string        `mapstructure:"dsn"`
	SQLitePath      string        `mapstructure:"sqlite_path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"gte=0"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	QueryTimeout    time.Duration `mapstructure:"query_timeout" validate:"gte=0"`
}

// SourceConfig chooses where the streak computation runs.
type SourceConfig struct {
	Mode string `mapstructure:"mode" validate:"oneof=query local"`
}

// ArtifactsConfig describes the report store.
type ArtifactsConfig struct {
	Backend      string `mapstructure:"backend" validate:"oneof=s3 fs"`
	Bucket       string `mapstructure:"bucket"`
	Prefix       string `mapstructure:"prefix"`
	Dir          string `mapstructure:"dir"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
}

// ReportConfig tunes the ranking.
type ReportConfig struct {
	TopN     int    `mapstructure:"top_n" validate:"gte=1"`
	Timezone string `mapstructure:"timezone"`
}

// SchedulerConfig governs the daily cadence of the run command.
type SchedulerConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	Offset          time.Duration `mapstructure:"offset" validate:"gte=0"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
}

// MetricsConfig controls Prometheus pushgateway delivery.
type MetricsConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	PushgatewayURL string `mapstructure:"pushgateway_url"`
	Job            string `mapstructure:"job"`
}

// AlertingConfig defines report announcements.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes the Telegram channel.
type TelegramConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	BotToken string        `mapstructure:"bot_token"`
	ChatID   string        `mapstructure:"chat_id"`
	APIBase  string        `mapstructure:"api_base"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	ChartWidth  int `mapstructure:"chart_width" validate:"gte=320"`
	ChartHeight int `mapstructure:"chart_height" validate:"gte=240"`
}

var validate = validator.New()

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FXSTREAKS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "fxstreaks")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	v.SetDefault("aws.region", "")
	v.SetDefault("aws.endpoint", "")

	v.SetDefault("secrets.provider", SecretsNone)
	v.SetDefault("secrets.name", defaultSecretName)
	v.SetDefault("secrets.path", "")

	v.SetDefault("database.driver", DriverPostgres)
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.sqlite_path", "fxstreaks.db")
	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("database.max_idle_conns", 0)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.query_timeout", "0s")

	v.SetDefault("source.mode", ModeQuery)

	v.SetDefault("artifacts.backend", ArtifactBackendFS)
	v.SetDefault("artifacts.bucket", "")
	v.SetDefault("artifacts.prefix", defaultArtifactPrefix)
	v.SetDefault("artifacts.dir", "artifacts")
	v.SetDefault("artifacts.use_path_style", false)

	v.SetDefault("report.top_n", 10)
	v.SetDefault("report.timezone", "UTC")

	v.SetDefault("scheduler.interval", "24h")
	v.SetDefault("scheduler.offset", "30m")
	v.SetDefault("scheduler.advisory_lock_key", int64(0))
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.pushgateway_url", "")
	v.SetDefault("metrics.job", "fxstreaks")

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.bot_token", "")
	v.SetDefault("alerting.telegram.chat_id", "")
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")
	v.SetDefault("alerting.telegram.timeout", "10s")

	v.SetDefault("export.chart_width", 1280)
	v.SetDefault("export.chart_height", 720)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs sanity checks on the configuration values.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Scheduler.Offset >= c.Scheduler.Interval {
		return fmt.Errorf("scheduler.offset must be shorter than scheduler.interval")
	}
	if _, err := time.LoadLocation(c.Report.Timezone); err != nil {
		return fmt.Errorf("report.timezone: %w", err)
	}

	switch c.Artifacts.Backend {
	case ArtifactBackendS3:
		if c.Artifacts.Bucket == "" {
			return fmt.Errorf("artifacts.bucket is required for the s3 backend")
		}
	case ArtifactBackendFS:
		if c.Artifacts.Dir == "" {
			return fmt.Errorf("artifacts.dir is required for the fs backend")
		}
	}

	switch c.Secrets.Provider {
	case SecretsManager:
		if c.Secrets.Name == "" {
			return fmt.Errorf("secrets.name is required for the secretsmanager provider")
		}
	case SecretsFile:
		if c.Secrets.Path == "" {
			return fmt.Errorf("secrets.path is required for the file provider")
		}
	}
	if c.Database.Driver == DriverSQLite && c.Database.SQLitePath == "" {
		return fmt.Errorf("database.sqlite_path is required for the sqlite driver")
	}

	if c.Metrics.Enabled && c.Metrics.PushgatewayURL == "" {
		return fmt.Errorf("metrics.pushgateway_url is required when metrics are enabled")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token is required")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id is required")
		}
	}
	return nil
}

// Location resolves the report timezone. Validate guarantees it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Report.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ReportDate returns the calendar date a run at now reports on.
func (c *Config) ReportDate(now time.Time) time.Time {
	local := now.In(c.Location())
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}
