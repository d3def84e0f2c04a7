// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"collabhub/backend/internal/lockout"
	"collabhub/backend/internal/ratelimit"
	"collabhub/backend/internal/security"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP API listens on (e.g. :8081).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// GRPCAddr is the address the gRPC server (health) listens on (e.g. :8080).
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	// JWTSecret is the inline HS512 signing secret. Takes precedence over JWTSecretFile.
	JWTSecret string `mapstructure:"JWT_SECRET"`
	// JWTSecretFile is a path to a file holding the signing secret.
	JWTSecretFile string `mapstructure:"JWT_SECRET_FILE"`
	// JWTIssuer is the iss claim (e.g. "collabhub-auth").
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAccessTTL is the access token lifetime (e.g. "15m").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`
	// JWTRefreshTTL is the refresh token lifetime and session lifetime (e.g. "168h").
	JWTRefreshTTL string `mapstructure:"JWT_REFRESH_TTL"`
	// JWTSecondFactorTTL is the lifetime of the temporary token issued before the second factor.
	JWTSecondFactorTTL string `mapstructure:"JWT_SECOND_FACTOR_TTL"`
	// BcryptCost is the bcrypt cost factor (4 to 31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	// LoginMaxFailedAttempts is the number of consecutive failures that locks an account.
	LoginMaxFailedAttempts int `mapstructure:"LOGIN_MAX_FAILED_ATTEMPTS"`
	// LoginLockDuration is how long a locked account stays locked (e.g. "15m").
	LoginLockDuration string `mapstructure:"LOGIN_LOCK_DURATION"`

	RateLimit2FAMax          int    `mapstructure:"RATE_LIMIT_2FA_MAX"`
	RateLimit2FAWindow       string `mapstructure:"RATE_LIMIT_2FA_WINDOW"`
	RateLimitResendMax       int    `mapstructure:"RATE_LIMIT_RESEND_MAX"`
	RateLimitResendWindow    string `mapstructure:"RATE_LIMIT_RESEND_WINDOW"`
	RateLimitEvictionHorizon string `mapstructure:"RATE_LIMIT_EVICTION_HORIZON"`

	// CleanupInterval is how often the worker purges sessions, challenges and login attempts.
	CleanupInterval string `mapstructure:"CLEANUP_INTERVAL"`
	// LoginAttemptRetention is how long login attempts are kept (e.g. "720h").
	LoginAttemptRetention string `mapstructure:"LOGIN_ATTEMPT_RETENTION"`

	// NotifyWebhookURL is the mail service webhook for second-factor codes and verification links.
	NotifyWebhookURL    string `mapstructure:"NOTIFY_WEBHOOK_URL"`
	NotifyWebhookAPIKey string `mapstructure:"NOTIFY_WEBHOOK_API_KEY"`
	// DevOutboxEnabled keeps notifications in memory and serves them from GET /dev/outbox.
	// Must not be true when Env is production.
	DevOutboxEnabled bool `mapstructure:"DEV_OUTBOX_ENABLED"`

	// LogLevel is the zerolog level name (debug, info, warn, error).
	LogLevel string `mapstructure:"LOG_LEVEL"`
	// LogPretty switches to human-readable console output.
	LogPretty bool `mapstructure:"LOG_PRETTY"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`

	// OTLPEndpoint is the OTLP gRPC collector; empty disables export.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPInsecure bool   `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	ServiceName  string `mapstructure:"OTEL_SERVICE_NAME"`

	// TelemetryKafkaBrokers is a comma-separated list of Kafka broker addresses (e.g. "localhost:9092").
	// When set, security events are also published to TelemetryKafkaTopic.
	TelemetryKafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	TelemetryKafkaTopic   string `mapstructure:"TELEMETRY_KAFKA_TOPIC"`

	// JWTSecretBytes is the resolved signing secret. Set by Load.
	JWTSecretBytes []byte `mapstructure:"-"`
}

// defaults are applied with SetDefault so AutomaticEnv also binds every key for Unmarshal.
var defaults = map[string]any{
	"HTTP_ADDR":                   ":8081",
	"GRPC_ADDR":                   ":8080",
	"DATABASE_URL":                "",
	"JWT_SECRET":                  "",
	"JWT_SECRET_FILE":             "",
	"JWT_ISSUER":                  "collabhub-auth",
	"JWT_ACCESS_TTL":              "15m",
	"JWT_REFRESH_TTL":             "168h", // 7d
	"JWT_SECOND_FACTOR_TTL":       "5m",
	"BCRYPT_COST":                 12,
	"LOGIN_MAX_FAILED_ATTEMPTS":   lockout.DefaultMaxFailedAttempts,
	"LOGIN_LOCK_DURATION":         "15m",
	"RATE_LIMIT_2FA_MAX":          5,
	"RATE_LIMIT_2FA_WINDOW":       "5m",
	"RATE_LIMIT_RESEND_MAX":       3,
	"RATE_LIMIT_RESEND_WINDOW":    "15m",
	"RATE_LIMIT_EVICTION_HORIZON": "2h",
	"CLEANUP_INTERVAL":            "1h",
	"LOGIN_ATTEMPT_RETENTION":     "720h", // 30d
	"NOTIFY_WEBHOOK_URL":          "",
	"NOTIFY_WEBHOOK_API_KEY":      "",
	"DEV_OUTBOX_ENABLED":          false,
	"LOG_LEVEL":                   "info",
	"LOG_PRETTY":                  false,
	"APP_ENV":                     "",
	"OTEL_EXPORTER_OTLP_ENDPOINT": "",
	"OTEL_EXPORTER_OTLP_INSECURE": false,
	"OTEL_SERVICE_NAME":           "collabhub-backend",
	"KAFKA_BROKERS":               "",
	"TELEMETRY_KAFKA_TOPIC":       "collabhub-security-events",
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. A missing or short signing
// secret is an error; callers treat every Load error as fatal.
func Load() (*Config, error) {
	cfg, err := read()
	if err != nil {
		return nil, err
	}
	secret, err := security.LoadSecret(cfg.JWTSecret, cfg.JWTSecretFile)
	if err != nil {
		return nil, fmt.Errorf("config: JWT_SECRET: %w", err)
	}
	cfg.JWTSecretBytes = secret
	return cfg, nil
}

// LoadWorker is Load for processes that never sign or verify tokens; no signing secret is required.
func LoadWorker() (*Config, error) {
	return read()
}

func read() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.HTTPAddr == "" {
		return errors.New("config: HTTP_ADDR must be set")
	}
	if c.GRPCAddr == "" {
		return errors.New("config: GRPC_ADDR must be set")
	}
	if c.DevOutboxEnabled && c.IsProduction() {
		return errors.New("config: DEV_OUTBOX_ENABLED must not be true when APP_ENV=production")
	}
	if c.BcryptCost == 0 {
		c.BcryptCost = 12
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	if c.LoginMaxFailedAttempts < 1 {
		return errors.New("config: LOGIN_MAX_FAILED_ATTEMPTS must be at least 1")
	}
	if c.RateLimit2FAMax < 1 || c.RateLimitResendMax < 1 {
		return errors.New("config: rate limit maximums must be at least 1")
	}
	for key, s := range map[string]string{
		"JWT_ACCESS_TTL":              c.JWTAccessTTL,
		"JWT_REFRESH_TTL":             c.JWTRefreshTTL,
		"JWT_SECOND_FACTOR_TTL":       c.JWTSecondFactorTTL,
		"LOGIN_LOCK_DURATION":         c.LoginLockDuration,
		"RATE_LIMIT_2FA_WINDOW":       c.RateLimit2FAWindow,
		"RATE_LIMIT_RESEND_WINDOW":    c.RateLimitResendWindow,
		"RATE_LIMIT_EVICTION_HORIZON": c.RateLimitEvictionHorizon,
		"CLEANUP_INTERVAL":            c.CleanupInterval,
		"LOGIN_ATTEMPT_RETENTION":     c.LoginAttemptRetention,
	} {
		if d, err := time.ParseDuration(s); err != nil || d <= 0 {
			return fmt.Errorf("config: %s must be a positive duration, got %q", key, s)
		}
	}
	return nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

func duration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// AccessTTL parses JWTAccessTTL as a time.Duration. Returns 15m if unset or invalid.
func (c *Config) AccessTTL() time.Duration { return duration(c.JWTAccessTTL, 15*time.Minute) }

// RefreshTTL parses JWTRefreshTTL as a time.Duration. Returns 168h if unset or invalid.
func (c *Config) RefreshTTL() time.Duration { return duration(c.JWTRefreshTTL, 168*time.Hour) }

// SecondFactorTTL returns the second-factor token lifetime; 5m if unset or invalid.
func (c *Config) SecondFactorTTL() time.Duration {
	return duration(c.JWTSecondFactorTTL, security.DefaultSecondFactorTTL)
}

// CleanupEvery returns the cleanup runner interval; 1h if unset or invalid.
func (c *Config) CleanupEvery() time.Duration { return duration(c.CleanupInterval, time.Hour) }

// AttemptRetention returns the login attempt retention window; 30 days if unset or invalid.
func (c *Config) AttemptRetention() time.Duration {
	return duration(c.LoginAttemptRetention, 30*24*time.Hour)
}

// LockoutPolicy returns the account lock policy.
func (c *Config) LockoutPolicy() lockout.Policy {
	return lockout.Policy{
		MaxFailedAttempts: c.LoginMaxFailedAttempts,
		LockDuration:      duration(c.LoginLockDuration, lockout.DefaultLockDuration),
	}
}

// RateLimitConfig returns the limiter rules for every guarded action.
func (c *Config) RateLimitConfig() ratelimit.Config {
	return ratelimit.Config{
		Rules: map[string]ratelimit.Rule{
			ratelimit.ActionSecondFactor: {
				MaxAttempts: c.RateLimit2FAMax,
				Window:      duration(c.RateLimit2FAWindow, 5*time.Minute),
			},
			ratelimit.ActionVerificationEmail: {
				MaxAttempts: c.RateLimitResendMax,
				Window:      duration(c.RateLimitResendWindow, 15*time.Minute),
			},
		},
		EvictionHorizon: duration(c.RateLimitEvictionHorizon, ratelimit.DefaultEvictionHorizon),
	}
}

// TelemetryKafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if Kafka publishing is enabled (non-empty list) and to create the producer.
func (c *Config) TelemetryKafkaBrokersList() []string {
	if c == nil || c.TelemetryKafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.TelemetryKafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
