package appconfig

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/halftrip/cachepurge"
)

// AdapterPolicy bounds one adapter.
type AdapterPolicy struct {
	Timeout time.Duration `yaml:"timeout"`
	Retries int           `yaml:"retries"`
}

// OfflineDB configures the SQLite offline cache.
type OfflineDB struct {
	Enabled       bool   `yaml:"enabled"`
	Path          string `yaml:"path"`
	AdapterPolicy `yaml:",inline"`
}

// KeyValue configures the Redis key-value store. An empty Prefix defaults to the
// device's client id.
type KeyValue struct {
	Enabled       bool   `yaml:"enabled"`
	Addr          string `yaml:"addr"`
	Prefix        string `yaml:"prefix"`
	AdapterPolicy `yaml:",inline"`
}

// ResponseCache configures the in-memory response cache.
type ResponseCache struct {
	Enabled bool          `yaml:"enabled"`
	Size    int           `yaml:"size"`
	TTL     time.Duration `yaml:"ttl"`
}

// HTTP configures the API server.
type HTTP struct {
	Addr         string `yaml:"addr"`
	CookieSecure bool   `yaml:"cookieSecure"`
}

// Auth configures the authentication provider.
type Auth struct {
	DatabaseDSN string `yaml:"databaseDSN"`
	JWTSecret   string `yaml:"jwtSecret"`
}

// Config is the application configuration.
type Config struct {
	LogLevel      string                   `yaml:"logLevel"`
	Purge         cachepurge.Config        `yaml:"purge"`
	Backoff       cachepurge.BackoffConfig `yaml:"backoff"`
	AuditSize     int                      `yaml:"auditSize"`
	OfflineDB     OfflineDB                `yaml:"offlineDB"`
	KeyValue      KeyValue                 `yaml:"keyValue"`
	ResponseCache ResponseCache            `yaml:"responseCache"`
	HTTP          HTTP                     `yaml:"http"`
	Auth          Auth                     `yaml:"auth"`
}

// Default returns a configuration with every store enabled.
func Default() Config {
	return Config{
		LogLevel:  "info",
		Purge:     cachepurge.DefaultConfig(),
		Backoff:   cachepurge.DefaultBackoff(),
		AuditSize: 256,
		OfflineDB: OfflineDB{Enabled: true, Path: "halftrip-offline.db"},
		KeyValue: KeyValue{
			Enabled:       true,
			Addr:          "127.0.0.1:6379",
			AdapterPolicy: AdapterPolicy{Timeout: 2 * time.Second, Retries: 2},
		},
		ResponseCache: ResponseCache{Enabled: true, Size: 512, TTL: 10 * time.Minute},
		HTTP:          HTTP{Addr: ":8080"},
	}
}

// Load reads defaults, then the YAML file at path (if any), then the dotenv file (if any),
// then HALFTRIP_* environment overrides, and validates the result.
func Load(path, envFile string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func applyEnv(cfg *Config) error {
	str := map[string]*string{
		"HALFTRIP_LOG_LEVEL":       &cfg.LogLevel,
		"HALFTRIP_OFFLINE_DB_PATH": &cfg.OfflineDB.Path,
		"HALFTRIP_REDIS_ADDR":      &cfg.KeyValue.Addr,
		"HALFTRIP_REDIS_PREFIX":    &cfg.KeyValue.Prefix,
		"HALFTRIP_HTTP_ADDR":       &cfg.HTTP.Addr,
		"HALFTRIP_DATABASE_DSN":    &cfg.Auth.DatabaseDSN,
		"HALFTRIP_JWT_SECRET":      &cfg.Auth.JWTSecret,
	}
	for key, dst := range str {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	if v := os.Getenv("HALFTRIP_PURGE_MODE"); v != "" {
		cfg.Purge.Mode = cachepurge.Mode(v)
	}
	if v := os.Getenv("HALFTRIP_PURGE_MAX_PARALLEL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("HALFTRIP_PURGE_MAX_PARALLEL: %w", err)
		}
		cfg.Purge.MaxParallel = n
	}
	return nil
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if err := c.Purge.Validate(); err != nil {
		return err
	}
	if err := c.Backoff.Validate(); err != nil {
		return err
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown logLevel %q", c.LogLevel)
	}
	if c.AuditSize < 0 {
		return fmt.Errorf("auditSize must be >= 0")
	}
	if c.OfflineDB.Enabled && c.OfflineDB.Path == "" {
		return fmt.Errorf("offlineDB.path required when enabled")
	}
	if c.KeyValue.Enabled && c.KeyValue.Addr == "" {
		return fmt.Errorf("keyValue.addr required when enabled")
	}
	for name, p := range map[string]AdapterPolicy{"offlineDB": c.OfflineDB.AdapterPolicy, "keyValue": c.KeyValue.AdapterPolicy} {
		if p.Timeout < 0 || p.Retries < 0 {
			return fmt.Errorf("%s: timeout and retries must be >= 0", name)
		}
	}
	if c.ResponseCache.Enabled && (c.ResponseCache.Size < 0 || c.ResponseCache.TTL < 0) {
		return fmt.Errorf("responseCache: size and ttl must be >= 0")
	}
	return nil
}
