// Package config loads runtime settings from the environment, optionally
// layered over a TOML file named by CONFIG_FILE.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Store drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string         `toml:"env"`
	Port      int            `toml:"port"`
	LogLevel  string         `toml:"log_level"`
	Store     StoreConfig    `toml:"store"`
	Redis     RedisConfig    `toml:"redis"`
	Minio     MinioConfig    `toml:"minio"`
	Snapshots SnapshotConfig `toml:"snapshots"`
	Telegram  TelegramConfig `toml:"telegram"`
	Tree      TreeConfig     `toml:"tree"`
}

type StoreConfig struct {
	Driver      string `toml:"driver"`
	DatabaseURL string `toml:"database_url"`
	SQLitePath  string `toml:"sqlite_path"`
}

// RedisConfig enables the forest cache when Addr is set and TTL is positive
type RedisConfig struct {
	Addr     string        `toml:"addr"`
	Password string        `toml:"password"`
	DB       int           `toml:"db"`
	TTL      time.Duration `toml:"ttl"`
}

// MinioConfig enables export archiving when Endpoint is set
type MinioConfig struct {
	Endpoint  string `toml:"endpoint"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	UseSSL    bool   `toml:"use_ssl"`
	Bucket    string `toml:"bucket"`
}

// SnapshotConfig keeps every snapshot when Retain is 0
type SnapshotConfig struct {
	Interval  time.Duration `toml:"interval"`
	URLExpiry time.Duration `toml:"url_expiry"`
	Retain    int           `toml:"retain"`
}

type TelegramConfig struct {
	Token       string `toml:"token"`
	Debug       bool   `toml:"debug"`
	PollTimeout int    `toml:"poll_timeout"`
}

type TreeConfig struct {
	MaxNodes int `toml:"max_nodes"`
}

// Default returns the settings used when nothing is configured
func Default() *Config {
	return &Config{
		Env:      EnvDevelopment,
		Port:     8080,
		LogLevel: "info",
		Store: StoreConfig{
			Driver:     DriverSQLite,
			SQLitePath: "categorybot.db",
		},
		Redis: RedisConfig{
			TTL: 10 * time.Minute,
		},
		Minio: MinioConfig{
			Bucket: "category-exports",
		},
		Snapshots: SnapshotConfig{
			URLExpiry: 24 * time.Hour,
			Retain:    30,
		},
		Telegram: TelegramConfig{
			PollTimeout: 60,
		},
		Tree: TreeConfig{
			MaxNodes: 10000,
		},
	}
}

// Load builds the configuration: defaults, then the CONFIG_FILE overlay if
// set, then environment variables. The result is validated.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := LoadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile decodes a TOML file over cfg. Keys absent from the file keep
// their current values.
func LoadFile(filename string, cfg *Config) error {
	meta, err := toml.DecodeFile(filename, cfg)
	if err != nil {
		return fmt.Errorf("failed to load config file: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, key := range undecoded {
			keys[i] = key.String()
		}
		return fmt.Errorf("unknown keys in config file %s: %s", filename, strings.Join(keys, ", "))
	}
	return nil
}

type lookupFunc func(key string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s %q: %w", key, v, err))
				return
			}
			*dst = n
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s %q: %w", key, v, err))
				return
			}
			*dst = b
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s %q: %w", key, v, err))
				return
			}
			*dst = d
		}
	}

	str("APP_ENV", &c.Env)
	integer("PORT", &c.Port)
	str("LOG_LEVEL", &c.LogLevel)

	str("STORE_DRIVER", &c.Store.Driver)
	str("DATABASE_URL", &c.Store.DatabaseURL)
	str("SQLITE_PATH", &c.Store.SQLitePath)

	str("REDIS_ADDR", &c.Redis.Addr)
	str("REDIS_PASSWORD", &c.Redis.Password)
	integer("REDIS_DB", &c.Redis.DB)
	duration("CACHE_TTL", &c.Redis.TTL)

	str("MINIO_ENDPOINT", &c.Minio.Endpoint)
	str("MINIO_ACCESS_KEY", &c.Minio.AccessKey)
	str("MINIO_SECRET_KEY", &c.Minio.SecretKey)
	boolean("MINIO_USE_SSL", &c.Minio.UseSSL)
	str("EXPORT_BUCKET", &c.Minio.Bucket)

	duration("SNAPSHOT_INTERVAL", &c.Snapshots.Interval)
	duration("SNAPSHOT_URL_EXPIRY", &c.Snapshots.URLExpiry)
	integer("SNAPSHOT_RETAIN", &c.Snapshots.Retain)

	str("TELEGRAM_BOT_TOKEN", &c.Telegram.Token)
	boolean("TELEGRAM_DEBUG", &c.Telegram.Debug)
	integer("TELEGRAM_POLL_TIMEOUT", &c.Telegram.PollTimeout)

	integer("MAX_TREE_NODES", &c.Tree.MaxNodes)

	return errors.Join(errs...)
}

// Validate reports every inconsistent setting at once
func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Driver {
	case DriverPostgres:
		if c.Store.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres store"))
		}
	case DriverSQLite:
		if c.Store.SQLitePath == "" {
			errs = append(errs, errors.New("SQLITE_PATH is required for the sqlite store"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q (want postgres, sqlite or memory)", c.Store.Driver))
	}

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d is out of range", c.Port))
	}
	if c.Env == EnvProduction && c.Telegram.Token == "" {
		errs = append(errs, errors.New("TELEGRAM_BOT_TOKEN is required in production"))
	}
	if c.Telegram.PollTimeout < 0 {
		errs = append(errs, errors.New("TELEGRAM_POLL_TIMEOUT cannot be negative"))
	}
	if c.Tree.MaxNodes <= 0 {
		errs = append(errs, errors.New("MAX_TREE_NODES must be positive"))
	}
	if c.Redis.TTL < 0 || c.Snapshots.Interval < 0 {
		errs = append(errs, errors.New("CACHE_TTL and SNAPSHOT_INTERVAL cannot be negative"))
	}
	if c.Snapshots.Retain < 0 {
		errs = append(errs, errors.New("SNAPSHOT_RETAIN cannot be negative"))
	}
	if c.Minio.Endpoint != "" && c.Minio.Bucket == "" {
		errs = append(errs, errors.New("EXPORT_BUCKET is required when MINIO_ENDPOINT is set"))
	}

	return errors.Join(errs...)
}

// CacheEnabled reports whether the forest cache is in use. A zero CACHE_TTL
// disables it, since entries without expiry could outlive a lost invalidation.
func (c *Config) CacheEnabled() bool {
	return c.Redis.Addr != "" && c.Redis.TTL > 0
}

// IsProduction reports whether APP_ENV is production
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// Addr is the HTTP listen address
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
