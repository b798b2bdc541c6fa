package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("CONFIG_FILE", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, EnvDevelopment, cfg.AppEnv)
	assert.Equal(t, 10, cfg.TopProducts)
	assert.Equal(t, 5*time.Minute, cfg.ProductCacheTTL)
	assert.Equal(t, "disable", cfg.Database.SSLMode)
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level: debug
top_products: 5
product_cache_ttl: 1m
database:
  host: db.internal
  name: backoffice
redis:
  addr: cache.internal:6379
`), 0o600))

	t.Setenv("APP_ENV", "staging")
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("DB_NAME", "override")
	t.Setenv("TOP_PRODUCTS", "3")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "override", cfg.Database.Name)
	assert.Equal(t, 3, cfg.TopProducts)
	assert.Equal(t, time.Minute, cfg.ProductCacheTTL)
	assert.Equal(t, "cache.internal:6379", cfg.Redis.Addr)
	assert.Contains(t, cfg.Database.DSN(), "dbname=override")
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("APP_ENV", "staging")
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("TOP_PRODUCTS", "zero")

	_, err := Load()
	assert.Error(t, err)

	t.Setenv("TOP_PRODUCTS", "0")
	_, err = Load()
	assert.Error(t, err)
}

func TestDSNPrefersURL(t *testing.T) {
	c := DatabaseConfig{Host: "h", URL: "postgres://u:p@h/db?sslmode=disable"}
	assert.Equal(t, "postgres://u:p@h/db?sslmode=disable", c.DSN())
}
