// Package config holds every setting the server reads at startup. Values come
// from the process environment, optionally seeded from a .env file.
package config

import (
	"os"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// Config is the only place configuration values are held; nothing else reads
// the environment directly.
type Config struct {
	AppEnv string `env:"APP_ENV,default=development"`

	HTTPListenAddr      string        `env:"HTTP_LISTEN_ADDR,default=:8080"`
	HTTPReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT,default=15s"`
	HTTPWriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT,default=15s"`
	HTTPShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT,default=10s"`

	LogLevel string `env:"LOG_LEVEL,default=info"`

	StorageBackend        string        `env:"STORAGE_BACKEND,default=badger"`
	StorageConnectTimeout time.Duration `env:"STORAGE_CONNECT_TIMEOUT,default=10s"`

	BadgerPath     string `env:"BADGER_PATH,default=./data"`
	BadgerInMemory bool   `env:"BADGER_IN_MEMORY,default=false"`

	SQLDriver string `env:"SQL_DRIVER,default=sqlite"`
	SQLDSN    string `env:"SQL_DSN,default=paylog.db"`
	SQLDebug  bool   `env:"SQL_DEBUG,default=false"`

	CacheBackend string        `env:"CACHE_BACKEND,default=memory"`
	CacheTTL     time.Duration `env:"CACHE_TTL,default=5m"`

	RedisAddr      string `env:"REDIS_ADDR,default=localhost:6379"`
	RedisPassword  string `env:"REDIS_PASSWORD"`
	RedisDB        int    `env:"REDIS_DB,default=0"`
	RedisKeyPrefix string `env:"REDIS_KEY_PREFIX,default=paylog:"`

	AuthMode        string `env:"AUTH_MODE,default=jwt"`
	AuthJWTSecret   string `env:"AUTH_JWT_SECRET"`
	AuthJWTIssuer   string `env:"AUTH_JWT_ISSUER"`
	AuthJWTAudience string `env:"AUTH_JWT_AUDIENCE"`
	AuthUserInfoURL string `env:"AUTH_USERINFO_URL"`

	MetricsEnabled bool   `env:"METRICS_ENABLED,default=true"`
	MetricsPath    string `env:"METRICS_PATH,default=/metrics"`

	InvoiceCurrency string `env:"INVOICE_CURRENCY,default=INR"`
	InvoiceIssuer   string `env:"INVOICE_ISSUER,default=PayLog"`
}

// Load reads path into the environment (when non-empty) and then maps the
// environment onto a validated Config. Variables already set win over the file.
func Load(path string) (*Config, error) {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return nil, errors.Wrapf(err, "failed to load configuration file %s", path)
		}
	}
	es, err := env.EnvironToEnvSet(os.Environ())
	if err != nil {
		return nil, errors.Wrap(err, "failed to read environment")
	}
	return FromEnvSet(es)
}

// FromEnvSet maps es onto a validated Config
func FromEnvSet(es env.EnvSet) (*Config, error) {
	c := &Config{}
	if err := env.Unmarshal(es, c); err != nil {
		return nil, errors.Wrap(err, "failed to map env variables to configuration")
	}
	c.normalize()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) normalize() {
	c.StorageBackend = strings.ToLower(strings.TrimSpace(c.StorageBackend))
	c.SQLDriver = strings.ToLower(strings.TrimSpace(c.SQLDriver))
	c.CacheBackend = strings.ToLower(strings.TrimSpace(c.CacheBackend))
	c.AuthMode = strings.ToLower(strings.TrimSpace(c.AuthMode))
}

// Validate checks enumerations and the values each mode requires
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case "badger":
		if !c.BadgerInMemory && c.BadgerPath == "" {
			return errors.New("BADGER_PATH is required unless BADGER_IN_MEMORY is set")
		}
	case "sql":
		if c.SQLDriver != "sqlite" && c.SQLDriver != "postgres" {
			return errors.Errorf("SQL_DRIVER must be sqlite or postgres, got %q", c.SQLDriver)
		}
		if c.SQLDSN == "" {
			return errors.New("SQL_DSN is required for the sql backend")
		}
	default:
		return errors.Errorf("STORAGE_BACKEND must be badger or sql, got %q", c.StorageBackend)
	}

	switch c.CacheBackend {
	case "memory", "none":
	case "redis":
		if c.RedisAddr == "" {
			return errors.New("REDIS_ADDR is required for the redis cache")
		}
	default:
		return errors.Errorf("CACHE_BACKEND must be memory, redis or none, got %q", c.CacheBackend)
	}

	switch c.AuthMode {
	case "jwt":
		if c.AuthJWTSecret == "" {
			return errors.New("AUTH_JWT_SECRET is required when AUTH_MODE is jwt")
		}
	case "userinfo":
		if c.AuthUserInfoURL == "" {
			return errors.New("AUTH_USERINFO_URL is required when AUTH_MODE is userinfo")
		}
	default:
		return errors.Errorf("AUTH_MODE must be jwt or userinfo, got %q", c.AuthMode)
	}

	if c.StorageConnectTimeout <= 0 {
		return errors.New("STORAGE_CONNECT_TIMEOUT must be positive")
	}
	if c.MetricsEnabled && !strings.HasPrefix(c.MetricsPath, "/") {
		return errors.Errorf("METRICS_PATH must start with '/', got %q", c.MetricsPath)
	}

	return nil
}

// EnvPathFromArgs returns the value of a --env=<file> argument, or "" when
// none is given
func EnvPathFromArgs(args []string) string {
	for _, arg := range args {
		if path, ok := strings.CutPrefix(arg, "--env="); ok {
			return path
		}
	}
	return ""
}
