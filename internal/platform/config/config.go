package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	EnvPrefix  = "PERFREVIEW_"
	EnvFileVar = "PERFREVIEW_CONFIG"

	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
	StoreMongo    = "mongo"
)

type Config struct {
	LogLevel    string `koanf:"log_level"`
	Addr        string `koanf:"addr"`
	Environment string `koanf:"environment"`

	StoreDriver   string `koanf:"store_driver"`
	DatabaseURL   string `koanf:"database_url"`
	SQLitePath    string `koanf:"sqlite_path"`
	MongoURI      string `koanf:"mongo_uri"`
	MongoDatabase string `koanf:"mongo_database"`
	MigrationsDir string `koanf:"migrations_dir"`
	RunMigrations bool   `koanf:"run_migrations"`

	MaxBodyBytes       int64 `koanf:"max_body_bytes"`
	// RateLimitPerMinute throttles submissions per client; 0 disables it.
	RateLimitPerMinute int   `koanf:"rate_limit_per_minute"`
	// TrustProxyHeaders keys the rate limit on X-Producer-ID and X-Forwarded-For.
	// Enable it only behind a proxy that sets or strips both headers.
	TrustProxyHeaders  bool  `koanf:"trust_proxy_headers"`

	// Review message intake.
	QueueCapacity        int           `koanf:"queue_capacity"`
	QueueWorkers         int           `koanf:"queue_workers"`
	QueueMaxAttempts     int           `koanf:"queue_max_attempts"`
	QueueRedeliveryDelay time.Duration `koanf:"queue_redelivery_delay"`
	DedupeSize           int           `koanf:"dedupe_size"`

	MetricsEnabled  bool          `koanf:"metrics_enabled"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// New returns the defaults every other layer overrides.
func New() Config {
	return Config{
		LogLevel:             "info",
		Addr:                 ":8080",
		Environment:          "development",
		StoreDriver:          StoreMemory,
		SQLitePath:           "perfreview.db",
		MongoDatabase:        "perfreview",
		MigrationsDir:        "migrations",
		RunMigrations:        true,
		MaxBodyBytes:         1048576,
		RateLimitPerMinute:   600,
		QueueCapacity:        1024,
		QueueWorkers:         4,
		QueueMaxAttempts:     5,
		QueueRedeliveryDelay: time.Second,
		DedupeSize:           100_000,
		MetricsEnabled:       true,
		ShutdownTimeout:      10 * time.Second,
	}
}

// Load layers defaults, the YAML file named by PERFREVIEW_CONFIG and PERFREVIEW_*
// environment variables, lowest precedence first. The result is validated.
func Load(_ context.Context) (Config, error) {
	k := koanf.New(".")

	if path := os.Getenv(EnvFileVar); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("%w: %s: %v", ErrLoadConfig, path, err)
		}
	}

	// PERFREVIEW_QUEUE_WORKERS -> queue_workers; keys stay flat.
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}
	// The file path variable shares the prefix and is not a setting.
	k.Delete("config")

	cfg := New()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return invalid("addr must not be empty")
	}
	switch c.StoreDriver {
	case StoreMemory:
	case StorePostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return invalid("database_url is required for the postgres store")
		}
	case StoreSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return invalid("sqlite_path is required for the sqlite store")
		}
	case StoreMongo:
		if strings.TrimSpace(c.MongoURI) == "" {
			return invalid("mongo_uri is required for the mongo store")
		}
		if strings.TrimSpace(c.MongoDatabase) == "" {
			return invalid("mongo_database is required for the mongo store")
		}
	default:
		return invalid(fmt.Sprintf("unknown store_driver %q", c.StoreDriver))
	}
	if c.MaxBodyBytes < 1024 {
		return invalid("max_body_bytes must be at least 1024")
	}
	if c.RateLimitPerMinute < 0 {
		return invalid("rate_limit_per_minute must not be negative")
	}
	if c.QueueCapacity <= 0 {
		return invalid("queue_capacity must be positive")
	}
	if c.QueueWorkers <= 0 {
		return invalid("queue_workers must be positive")
	}
	if c.QueueMaxAttempts <= 0 {
		return invalid("queue_max_attempts must be positive")
	}
	if c.QueueRedeliveryDelay < 0 {
		return invalid("queue_redelivery_delay must not be negative")
	}
	if c.DedupeSize <= 0 {
		return invalid("dedupe_size must be positive")
	}
	if c.ShutdownTimeout <= 0 {
		return invalid("shutdown_timeout must be positive")
	}
	return nil
}

func invalid(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, reason)
}
