// Package config loads the service settings from defaults, an optional YAML
// file and RALPH_ prefixed environment variables.
package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// DefaultJWTSecret is the placeholder secret rejected in production
const DefaultJWTSecret = "your-secret-key-change-in-production"

var ErrConfig = errors.New("configuration error")

type Config struct {
	Environment string          `mapstructure:"environment"`
	HTTP        HTTPConfig      `mapstructure:"http"`
	Storage     StorageConfig   `mapstructure:"storage"`
	JWT         JWTConfig       `mapstructure:"jwt"`
	Log         LogConfig       `mapstructure:"log"`
	Metrics     MetricsConfig   `mapstructure:"metrics"`
	Docs        DocsConfig      `mapstructure:"docs"`
	RateLimit   RateLimitConfig `mapstructure:"ratelimit"`
	ConfigPath  PathConfig      `mapstructure:"config_path"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
	// BaseURL prefixes the `url` members of responses; derived from the
	// request when empty
	BaseURL string `mapstructure:"base_url"`
}

type StorageConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type JWTConfig struct {
	Secret   string        `mapstructure:"secret"`
	Issuer   string        `mapstructure:"issuer"`
	Audience string        `mapstructure:"audience"`
	Expiry   time.Duration `mapstructure:"expiry"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type DocsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type RateLimitConfig struct {
	RedisAddr       string `mapstructure:"redis_addr"`
	RedisPassword   string `mapstructure:"redis_password"`
	RedisDB         int    `mapstructure:"redis_db"`
	WritesPerMinute int    `mapstructure:"writes_per_minute"`
}

type PathConfig struct {
	Separator string `mapstructure:"separator"`
}

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

var defaults = map[string]any{
	"environment":                 "development",
	"http.addr":                   ":8080",
	"http.base_url":               "",
	"storage.driver":              DriverPostgres,
	"storage.dsn":                 "",
	"jwt.secret":                  DefaultJWTSecret,
	"jwt.issuer":                  "ralph-api",
	"jwt.audience":                "ralph-api",
	"jwt.expiry":                  24 * time.Hour,
	"log.level":                   "info",
	"log.format":                  "json",
	"log.file":                    "",
	"log.max_size_mb":             100,
	"log.max_backups":             5,
	"log.max_age_days":            30,
	"metrics.enabled":             true,
	"docs.enabled":                false,
	"ratelimit.redis_addr":        "",
	"ratelimit.redis_password":    "",
	"ratelimit.redis_db":          0,
	"ratelimit.writes_per_minute": 120,
	"config_path.separator":       ".",
}

// Load reads the configuration. path is an optional YAML file; environment
// variables such as RALPH_JWT_SECRET override it.
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetConfigType("yaml")
	v.SetEnvPrefix("RALPH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(ErrConfig, "read config: "+err.Error())
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(ErrConfig, "decode config: "+err.Error())
	}
	return cfg, nil
}

// LoadAndValidate loads and validates configuration
func LoadAndValidate(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return errors.Wrap(ErrConfig, "jwt secret is required")
	}
	if len(c.JWT.Secret) < 32 {
		return errors.Wrap(ErrConfig, "jwt secret must be at least 32 characters long")
	}
	if c.Environment == "production" && c.JWT.Secret == DefaultJWTSecret {
		return errors.Wrap(ErrConfig, "jwt secret must be changed in production")
	}
	if c.JWT.Issuer == "" {
		return errors.Wrap(ErrConfig, "jwt issuer is required")
	}
	if c.JWT.Audience == "" {
		return errors.Wrap(ErrConfig, "jwt audience is required")
	}
	if c.JWT.Expiry <= 0 {
		return errors.Wrap(ErrConfig, "jwt expiry must be positive")
	}
	if c.JWT.Expiry < time.Minute {
		return errors.Wrap(ErrConfig, "jwt expiry must be at least 1 minute")
	}
	if c.JWT.Expiry > 30*24*time.Hour {
		return errors.Wrap(ErrConfig, "jwt expiry must not exceed 30 days")
	}
	switch c.Storage.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Storage.DSN == "" {
			return errors.Wrap(ErrConfig, "storage dsn is required for the postgres driver")
		}
	default:
		return errors.Wrapf(ErrConfig, "unknown storage driver %q", c.Storage.Driver)
	}
	if c.ConfigPath.Separator == "" {
		return errors.Wrap(ErrConfig, "configuration path separator is required")
	}
	return nil
}
