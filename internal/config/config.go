// Package config loads service configuration from environment variables,
// an optional YAML file and command-line flags, in increasing precedence.
package config

import (
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
	"golang.org/x/crypto/bcrypt"
)

// Storage and session backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config is the resolved service configuration.
type Config struct {
	Addr      string `koanf:"addr"`
	LogFormat string `koanf:"log_format"`
	LogLevel  string `koanf:"log_level"`

	Storage     string `koanf:"storage"`
	DatabaseURL string `koanf:"database_url"`

	SessionBackend     string        `koanf:"session_backend"`
	RedisURL           string        `koanf:"redis_url"`
	CookieName         string        `koanf:"cookie_name"`
	SecureCookie       bool          `koanf:"secure_cookie"`
	SessionLifetime    time.Duration `koanf:"session_lifetime"`
	SessionIdleTimeout time.Duration `koanf:"session_idle_timeout"`

	BcryptCost int `koanf:"bcrypt_cost"`

	SSOIssuer       string `koanf:"sso_issuer"`
	SSOClientID     string `koanf:"sso_client_id"`
	SSOClientSecret string `koanf:"sso_client_secret"`
	SSORedirectURL  string `koanf:"sso_redirect_url"`
}

// SSOEnabled reports whether OpenID Connect login is configured.
func (c *Config) SSOEnabled() bool {
	return c.SSOIssuer != "" && c.SSOClientID != ""
}

// RegisterFlags adds the configuration flags to fs. Flag defaults come from
// the environment so unset flags still honour ADDR, DATABASE_URL and friends.
func RegisterFlags(fs *pflag.FlagSet) {
	dbURL := os.Getenv("DATABASE_URL")
	storage := BackendMemory
	if dbURL != "" {
		storage = BackendPostgres
	}

	fs.String("addr", env("ADDR", ":8080"), "listen address")
	fs.String("log-format", env("LOG_FORMAT", "json"), "log format: json or text")
	fs.String("log-level", env("LOG_LEVEL", "info"), "minimum log level")

	fs.String("storage", env("STORAGE_BACKEND", storage), "user and task store: memory or postgres")
	fs.String("database-url", dbURL, "PostgreSQL connection string")

	fs.String("session-backend", env("SESSION_BACKEND", storage), "session store: memory, postgres or redis")
	fs.String("redis-url", env("REDIS_URL", "redis://localhost:6379/0"), "Redis URL for the redis session backend")
	fs.String("cookie-name", env("SESSION_COOKIE", "todolist_session"), "session cookie name")
	fs.Bool("secure-cookie", envBool("SECURE_COOKIE", false), "mark the session cookie Secure")
	fs.Duration("session-lifetime", envDuration("SESSION_LIFETIME", 24*time.Hour), "absolute session lifetime")
	fs.Duration("session-idle-timeout", envDuration("SESSION_IDLE_TIMEOUT", 2*time.Hour), "idle session timeout")

	fs.Int("bcrypt-cost", envInt("BCRYPT_COST", bcrypt.DefaultCost), "bcrypt work factor")

	fs.String("sso-issuer", os.Getenv("OIDC_ISSUER"), "OpenID Connect issuer URL")
	fs.String("sso-client-id", os.Getenv("OIDC_CLIENT_ID"), "OpenID Connect client id")
	fs.String("sso-client-secret", os.Getenv("OIDC_CLIENT_SECRET"), "OpenID Connect client secret")
	fs.String("sso-redirect-url", os.Getenv("OIDC_REDIRECT_URL"), "OpenID Connect redirect URL")
}

// Load resolves the configuration. Values from the YAML file at path (if
// any) override flag defaults; flags set on the command line override both.
func Load(fs *pflag.FlagSet, path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_INVALID").With("path", path).Wrapf(err, "read config file")
		}
	}

	flagKey := func(f *pflag.Flag) (string, interface{}) {
		return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(fs, f)
	}
	if err := k.Load(posflag.ProviderWithFlag(fs, ".", k, flagKey), nil); err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrapf(err, "read flags")
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrapf(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks backend names, the bcrypt cost and session durations.
func (c *Config) Validate() error {
	fail := func(field, format string, args ...any) error {
		return oops.Code("CONFIG_INVALID").With("field", field).Errorf(format, args...)
	}

	if !slices.Contains([]string{BackendMemory, BackendPostgres}, c.Storage) {
		return fail("storage", "unknown storage backend %q", c.Storage)
	}
	if !slices.Contains([]string{BackendMemory, BackendPostgres, BackendRedis}, c.SessionBackend) {
		return fail("session_backend", "unknown session backend %q", c.SessionBackend)
	}
	if (c.Storage == BackendPostgres || c.SessionBackend == BackendPostgres) && c.DatabaseURL == "" {
		return fail("database_url", "database_url is required for the postgres backend")
	}
	if c.SessionBackend == BackendPostgres && c.Storage != BackendPostgres {
		return fail("session_backend", "postgres sessions require postgres storage")
	}
	if c.SessionBackend == BackendRedis && c.RedisURL == "" {
		return fail("redis_url", "redis_url is required for the redis session backend")
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return fail("bcrypt_cost", "bcrypt cost %d outside [%d, %d]", c.BcryptCost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	if c.SessionLifetime <= 0 || c.SessionIdleTimeout <= 0 {
		return fail("session_lifetime", "session durations must be positive")
	}
	if c.CookieName == "" {
		return fail("cookie_name", "cookie name is required")
	}
	if c.SSOIssuer != "" && (c.SSOClientID == "" || c.SSORedirectURL == "") {
		return fail("sso_client_id", "sso requires client id and redirect url")
	}
	return nil
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return fallback
}
