package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable Load reads so the host environment does
// not leak into a test
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CONFIG_FILE", "APP_ENV", "PORT", "LOG_LEVEL", "STORE_DRIVER", "DATABASE_URL", "SQLITE_PATH",
		"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "CACHE_TTL",
		"MINIO_ENDPOINT", "MINIO_ACCESS_KEY", "MINIO_SECRET_KEY", "MINIO_USE_SSL", "EXPORT_BUCKET",
		"SNAPSHOT_INTERVAL", "SNAPSHOT_URL_EXPIRY", "SNAPSHOT_RETAIN",
		"TELEGRAM_BOT_TOKEN", "TELEGRAM_DEBUG", "TELEGRAM_POLL_TIMEOUT", "MAX_TREE_NODES",
	} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, 10000, cfg.Tree.MaxNodes)
	assert.Equal(t, 30, cfg.Snapshots.Retain)
	assert.False(t, cfg.CacheEnabled())
}

func TestLoad_Environment(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("PORT", "9090")
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://bot@localhost/categories")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("CACHE_TTL", "30s")
	t.Setenv("MINIO_ENDPOINT", "localhost:9000")
	t.Setenv("MINIO_USE_SSL", "true")
	t.Setenv("SNAPSHOT_INTERVAL", "1h")
	t.Setenv("SNAPSHOT_RETAIN", "5")
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_DEBUG", "1")
	t.Setenv("MAX_TREE_NODES", "500")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, DriverPostgres, cfg.Store.Driver)
	assert.Equal(t, "postgres://bot@localhost/categories", cfg.Store.DatabaseURL)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, 30*time.Second, cfg.Redis.TTL)
	assert.True(t, cfg.CacheEnabled())
	assert.Equal(t, 5, cfg.Snapshots.Retain)
	assert.True(t, cfg.Minio.UseSSL)
	assert.Equal(t, "category-exports", cfg.Minio.Bucket)
	assert.Equal(t, time.Hour, cfg.Snapshots.Interval)
	assert.True(t, cfg.Telegram.Debug)
	assert.Equal(t, 500, cfg.Tree.MaxNodes)
}

func TestLoad_FileOverlayedByEnvironment(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "categorybot.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
port = 7000
log_level = "debug"

[store]
driver = "memory"

[redis]
addr = "cache:6379"
ttl = "2m"

[snapshots]
interval = "15m"

[telegram]
poll_timeout = 30
`), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "7001")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7001, cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, DriverMemory, cfg.Store.Driver)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr)
	assert.Equal(t, 2*time.Minute, cfg.Redis.TTL)
	assert.Equal(t, 15*time.Minute, cfg.Snapshots.Interval)
	assert.Equal(t, 30, cfg.Telegram.PollTimeout)
	assert.Equal(t, "categorybot.db", cfg.Store.SQLitePath)
}

func TestCacheEnabled_ZeroTTLDisablesCache(t *testing.T) {
	clearEnv(t)
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("CACHE_TTL", "0")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Zero(t, cfg.Redis.TTL)
	assert.False(t, cfg.CacheEnabled())
}

func TestLoadFile_Errors(t *testing.T) {
	dir := t.TempDir()

	err := LoadFile(filepath.Join(dir, "missing.toml"), Default())
	assert.ErrorContains(t, err, "failed to load config file")

	unknown := filepath.Join(dir, "unknown.toml")
	require.NoError(t, os.WriteFile(unknown, []byte("[store]\ndriverr = \"memory\"\n"), 0o600))
	err = LoadFile(unknown, Default())
	assert.ErrorContains(t, err, "store.driverr")
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{name: "unknown driver", env: map[string]string{"STORE_DRIVER": "mongo"}, wantErr: `unknown STORE_DRIVER "mongo"`},
		{name: "postgres without url", env: map[string]string{"STORE_DRIVER": "postgres"}, wantErr: "DATABASE_URL is required"},
		{name: "production without token", env: map[string]string{"APP_ENV": "production"}, wantErr: "TELEGRAM_BOT_TOKEN is required in production"},
		{name: "bad port", env: map[string]string{"PORT": "eighty"}, wantErr: `invalid PORT "eighty"`},
		{name: "port out of range", env: map[string]string{"PORT": "70000"}, wantErr: "PORT 70000 is out of range"},
		{name: "bad duration", env: map[string]string{"CACHE_TTL": "soon"}, wantErr: `invalid CACHE_TTL "soon"`},
		{name: "bad bool", env: map[string]string{"MINIO_USE_SSL": "maybe"}, wantErr: `invalid MINIO_USE_SSL "maybe"`},
		{name: "negative retention", env: map[string]string{"SNAPSHOT_RETAIN": "-1"}, wantErr: "SNAPSHOT_RETAIN cannot be negative"},
		{name: "zero node limit", env: map[string]string{"MAX_TREE_NODES": "0"}, wantErr: "MAX_TREE_NODES must be positive"},
		{name: "bucket required", env: map[string]string{"MINIO_ENDPOINT": "s3:9000", "EXPORT_BUCKET": ""}, wantErr: "EXPORT_BUCKET is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
