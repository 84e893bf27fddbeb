// Package config loads the bot configuration: built-in defaults, then an
// optional YAML file, then environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Discord        DiscordConfig        `yaml:"discord"`
	Database       DatabaseConfig       `yaml:"database"`
	Bolt           BoltConfig           `yaml:"bolt"`
	Redis          RedisConfig          `yaml:"redis"`
	Metrics        MetricsConfig        `yaml:"metrics"`
	Tracing        TracingConfig        `yaml:"tracing"`
	Log            LogConfig            `yaml:"log"`
	Reconciliation ReconciliationConfig `yaml:"reconciliation"`
	TempBan        TempBanConfig        `yaml:"tempban"`
}

type DiscordConfig struct {
	Token string `yaml:"token"`
	AppID string `yaml:"app_id"`
	// DevGuildID registers commands in a single guild instead of globally.
	DevGuildID string `yaml:"dev_guild_id"`
}

type DatabaseConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type BoltConfig struct {
	Path string `yaml:"path"`
}

// RedisConfig enables cross-process audit log dedupe. An empty Addr falls
// back to the bolt store.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type MetricsConfig struct {
	Addr            string        `yaml:"addr"`
	CollectInterval time.Duration `yaml:"collect_interval"`
}

type TracingConfig struct {
	Enabled bool `yaml:"enabled"`

	// Endpoint is the OTLP/HTTP collector, host:port.
	Endpoint    string  `yaml:"endpoint"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type ReconciliationConfig struct {
	// PendingMatchWindow is how old a pending case may be and still be
	// matched to its audit log entry. It is a tolerance, not a guarantee.
	PendingMatchWindow time.Duration `yaml:"pending_match_window"`
	DedupeTTL          time.Duration `yaml:"dedupe_ttl"`
}

type TempBanConfig struct {
	CheckInterval time.Duration `yaml:"check_interval"`
}

func Default() Config {
	return Config{
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "warden.db",
		},
		Bolt: BoltConfig{Path: "warden-settings.db"},
		Metrics: MetricsConfig{
			Addr:            ":9100",
			CollectInterval: 30 * time.Second,
		},
		Tracing: TracingConfig{
			Endpoint:    "localhost:4318",
			SampleRatio: 1,
		},
		Log: LogConfig{Level: "info"},
		Reconciliation: ReconciliationConfig{
			PendingMatchWindow: time.Minute,
			DedupeTTL:          10 * time.Minute,
		},
		TempBan: TempBanConfig{CheckInterval: time.Minute},
	}
}

// Error is a configuration value that failed validation.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return "config error in " + e.Field + ": " + e.Message
}

// Load reads path (a missing file is not an error) and applies environment
// overrides on top.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFromYAML(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromArgs loads a .env file if present, parses --config from args and
// loads the configuration.
func FromArgs(args []string) (Config, error) {
	// A missing .env is the normal case in production.
	_ = godotenv.Load()

	flags := pflag.NewFlagSet("warden", pflag.ContinueOnError)
	path := flags.StringP("config", "c", os.Getenv("WARDEN_CONFIG"), "path to the YAML config file")
	if err := flags.Parse(args); err != nil {
		return Config{}, err
	}
	return Load(*path)
}

func loadFromYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("unmarshal config yaml: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) error {
	overrideString("DISCORD_TOKEN", &cfg.Discord.Token)
	overrideString("DISCORD_APP_ID", &cfg.Discord.AppID)
	overrideString("DISCORD_DEV_GUILD_ID", &cfg.Discord.DevGuildID)

	overrideString("DATABASE_DRIVER", &cfg.Database.Driver)
	overrideString("DATABASE_DSN", &cfg.Database.DSN)
	overrideString("BOLT_PATH", &cfg.Bolt.Path)

	overrideString("REDIS_ADDR", &cfg.Redis.Addr)
	overrideString("REDIS_PASSWORD", &cfg.Redis.Password)
	if err := overrideInt("REDIS_DB", &cfg.Redis.DB); err != nil {
		return err
	}

	overrideString("METRICS_ADDR", &cfg.Metrics.Addr)
	if err := overrideBool("TRACING_ENABLED", &cfg.Tracing.Enabled); err != nil {
		return err
	}
	overrideString("OTEL_EXPORTER_OTLP_ENDPOINT", &cfg.Tracing.Endpoint)
	if err := overrideFloat("TRACING_SAMPLE_RATIO", &cfg.Tracing.SampleRatio); err != nil {
		return err
	}

	overrideString("LOG_LEVEL", &cfg.Log.Level)
	overrideString("LOG_FORMAT", &cfg.Log.Format)

	if err := overrideDuration("PENDING_MATCH_WINDOW", &cfg.Reconciliation.PendingMatchWindow); err != nil {
		return err
	}
	if err := overrideDuration("DEDUPE_TTL", &cfg.Reconciliation.DedupeTTL); err != nil {
		return err
	}
	if err := overrideDuration("TEMPBAN_CHECK_INTERVAL", &cfg.TempBan.CheckInterval); err != nil {
		return err
	}
	return nil
}

// Validate checks the values the process cannot start without.
func (c Config) Validate() error {
	if c.Discord.Token == "" {
		return &Error{Field: "discord.token", Message: "is required"}
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return &Error{Field: "database.driver", Message: fmt.Sprintf("unknown driver %q, use sqlite or postgres", c.Database.Driver)}
	}
	if c.Database.DSN == "" {
		return &Error{Field: "database.dsn", Message: "is required"}
	}
	if c.Reconciliation.PendingMatchWindow <= 0 {
		return &Error{Field: "reconciliation.pending_match_window", Message: "must be positive"}
	}
	if c.TempBan.CheckInterval <= 0 {
		return &Error{Field: "tempban.check_interval", Message: "must be positive"}
	}
	if c.Tracing.Enabled && (c.Tracing.SampleRatio <= 0 || c.Tracing.SampleRatio > 1) {
		return &Error{Field: "tracing.sample_ratio", Message: "must be in (0, 1]"}
	}
	return nil
}

func overrideString(key string, target *string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

func overrideDuration(key string, target *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("parse %s duration: %w", key, err)
	}
	*target = d
	return nil
}

func overrideInt(key string, target *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("parse %s int: %w", key, err)
	}
	*target = n
	return nil
}

func overrideBool(key string, target *bool) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("parse %s bool: %w", key, err)
	}
	*target = b
	return nil
}

func overrideFloat(key string, target *float64) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("parse %s float: %w", key, err)
	}
	*target = f
	return nil
}
