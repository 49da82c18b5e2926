package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Storage:    StorageConfig{Driver: DriverMemory},
		JWT:        JWTConfig{Secret: "valid-secret-that-is-long-enough-for-testing", Issuer: "test-issuer", Audience: "test-audience", Expiry: time.Hour},
		ConfigPath: PathConfig{Separator: "."},
	}
}

func TestLoad(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	if cfg.JWT.Secret != DefaultJWTSecret {
		t.Errorf("Expected default jwt secret, got %s", cfg.JWT.Secret)
	}
	if cfg.JWT.Issuer != "ralph-api" {
		t.Errorf("Expected default issuer, got %s", cfg.JWT.Issuer)
	}
	if cfg.JWT.Expiry != 24*time.Hour {
		t.Errorf("Expected default expiry, got %v", cfg.JWT.Expiry)
	}
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, DriverPostgres, cfg.Storage.Driver)
	assert.Equal(t, ".", cfg.ConfigPath.Separator)
	assert.Equal(t, 120, cfg.RateLimit.WritesPerMinute)
}

func TestLoadWithEnvironment(t *testing.T) {
	t.Setenv("RALPH_JWT_SECRET", "test-secret-key")
	t.Setenv("RALPH_JWT_ISSUER", "test-issuer")
	t.Setenv("RALPH_JWT_EXPIRY", "2h")
	t.Setenv("RALPH_STORAGE_DRIVER", "memory")
	t.Setenv("RALPH_CONFIG_PATH_SEPARATOR", "/")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "test-secret-key", cfg.JWT.Secret)
	assert.Equal(t, "test-issuer", cfg.JWT.Issuer)
	assert.Equal(t, 2*time.Hour, cfg.JWT.Expiry)
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, "/", cfg.ConfigPath.Separator)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ralph.yaml")
	body := `
http:
  addr: ":9090"
storage:
  driver: memory
log:
  level: debug
  format: text
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	t.Setenv("RALPH_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, "warn", cfg.Log.Level, "environment overrides the file")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, ErrConfig)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(c *Config)
		expectError bool
	}{
		{name: "valid config", mutate: func(c *Config) {}},
		{name: "empty secret", mutate: func(c *Config) { c.JWT.Secret = "" }, expectError: true},
		{name: "secret too short", mutate: func(c *Config) { c.JWT.Secret = "short" }, expectError: true},
		{name: "empty issuer", mutate: func(c *Config) { c.JWT.Issuer = "" }, expectError: true},
		{name: "empty audience", mutate: func(c *Config) { c.JWT.Audience = "" }, expectError: true},
		{name: "negative expiry", mutate: func(c *Config) { c.JWT.Expiry = -time.Hour }, expectError: true},
		{name: "zero expiry", mutate: func(c *Config) { c.JWT.Expiry = 0 }, expectError: true},
		{name: "expiry too short", mutate: func(c *Config) { c.JWT.Expiry = 30 * time.Second }, expectError: true},
		{name: "expiry too long", mutate: func(c *Config) { c.JWT.Expiry = 31 * 24 * time.Hour }, expectError: true},
		{name: "unknown driver", mutate: func(c *Config) { c.Storage.Driver = "sqlite" }, expectError: true},
		{name: "postgres without dsn", mutate: func(c *Config) { c.Storage.Driver = DriverPostgres }, expectError: true},
		{
			name: "postgres with dsn",
			mutate: func(c *Config) {
				c.Storage.Driver = DriverPostgres
				c.Storage.DSN = "postgres://localhost/ralph"
			},
		},
		{name: "empty separator", mutate: func(c *Config) { c.ConfigPath.Separator = "" }, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.expectError {
				t.Errorf("Validate() error = %v, expectError %v", err, tt.expectError)
			}
		})
	}
}

func TestLoadAndValidate(t *testing.T) {
	t.Setenv("RALPH_JWT_SECRET", "test-secret-key-that-is-long-enough-for-testing")
	t.Setenv("RALPH_STORAGE_DRIVER", "memory")

	cfg, err := LoadAndValidate("")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	t.Setenv("RALPH_JWT_SECRET", "short")
	_, err = LoadAndValidate("")
	assert.Error(t, err, "LoadAndValidate() should fail with invalid config")
}

func TestProductionSecretValidation(t *testing.T) {
	cfg := validConfig()
	cfg.Environment = "production"
	cfg.JWT.Secret = DefaultJWTSecret
	assert.Error(t, cfg.Validate(), "production validation should fail with default secret")

	cfg.JWT.Secret = "proper-production-secret-that-is-long-enough"
	assert.NoError(t, cfg.Validate())
}
