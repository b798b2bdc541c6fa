package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
	// URL, when set, wins over the individual fields.
	URL string `yaml:"url"`
}

// DSN returns the lib/pq connection string.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Config is the service configuration after defaults, file and environment.
type Config struct {
	AppEnv          string         `yaml:"app_env"`
	LogLevel        string         `yaml:"log_level"`
	Database        DatabaseConfig `yaml:"database"`
	Redis           RedisConfig    `yaml:"redis"`
	ProductCacheTTL time.Duration  `yaml:"product_cache_ttl"`
	TopProducts     int            `yaml:"top_products"`
	TracingEnabled  bool           `yaml:"tracing_enabled"`
	ImportBucket    string         `yaml:"import_bucket"`
	MigrateOnStart  bool           `yaml:"migrate_on_start"`
}

func defaults() Config {
	return Config{
		AppEnv:   EnvDevelopment,
		LogLevel: "info",
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    "5432",
			SSLMode: "disable",
		},
		ProductCacheTTL: 5 * time.Minute,
		TopProducts:     10,
		MigrateOnStart:  true,
	}
}

// Load builds the configuration from defaults, an optional YAML file named by
// CONFIG_FILE, and finally environment variables.
func Load() (Config, error) {
	cfg := defaults()
	cfg.AppEnv = LoadEnv()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) loadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.Database.Host, "DB_HOST")
	setString(&c.Database.Port, "DB_PORT")
	setString(&c.Database.User, "DB_USER")
	setString(&c.Database.Password, "DB_PASSWORD")
	setString(&c.Database.Name, "DB_NAME")
	setString(&c.Database.SSLMode, "DB_SSLMODE")
	setString(&c.Database.URL, "DATABASE_URL")
	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.Redis.Password, "REDIS_PASSWORD")
	setString(&c.ImportBucket, "IMPORT_BUCKET")

	if v := os.Getenv("REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("REDIS_DB: %w", err)
		}
		c.Redis.DB = n
	}
	if v := os.Getenv("PRODUCT_CACHE_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("PRODUCT_CACHE_TTL: %w", err)
		}
		c.ProductCacheTTL = ttl
	}
	if v := os.Getenv("TOP_PRODUCTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("TOP_PRODUCTS: %w", err)
		}
		c.TopProducts = n
	}
	if v := os.Getenv("TRACING_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("TRACING_ENABLED: %w", err)
		}
		c.TracingEnabled = b
	}
	if v := os.Getenv("MIGRATE_ON_START"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("MIGRATE_ON_START: %w", err)
		}
		c.MigrateOnStart = b
	}
	return nil
}

// Validate rejects configurations the services cannot start with.
func (c Config) Validate() error {
	if c.TopProducts <= 0 {
		return fmt.Errorf("top_products must be positive, got %d", c.TopProducts)
	}
	if c.ProductCacheTTL < 0 {
		return fmt.Errorf("product_cache_ttl must not be negative")
	}
	return nil
}

func (c Config) IsLocal() bool {
	return c.AppEnv == EnvLocal
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
