package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"collabhub/backend/internal/ratelimit"
	"collabhub/backend/internal/security"
)

var testSecret = strings.Repeat("k", security.MinSecretBytes)

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()
	os.Setenv("JWT_SECRET", testSecret)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":8081" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":8081")
	}
	if cfg.GRPCAddr != ":8080" {
		t.Errorf("GRPCAddr = %q, want %q", cfg.GRPCAddr, ":8080")
	}
	if cfg.JWTIssuer != "collabhub-auth" {
		t.Errorf("JWTIssuer = %q, want %q", cfg.JWTIssuer, "collabhub-auth")
	}
	if cfg.AccessTTL() != 15*time.Minute {
		t.Errorf("AccessTTL() = %v, want 15m", cfg.AccessTTL())
	}
	if cfg.RefreshTTL() != 168*time.Hour {
		t.Errorf("RefreshTTL() = %v, want 168h", cfg.RefreshTTL())
	}
	if cfg.SecondFactorTTL() != security.DefaultSecondFactorTTL {
		t.Errorf("SecondFactorTTL() = %v", cfg.SecondFactorTTL())
	}
	if cfg.BcryptCost != 12 {
		t.Errorf("BcryptCost = %d, want 12", cfg.BcryptCost)
	}
	p := cfg.LockoutPolicy()
	if p.MaxFailedAttempts != 5 || p.LockDuration != 15*time.Minute {
		t.Errorf("LockoutPolicy() = %+v, want 5 attempts / 15m", p)
	}
	if cfg.DevOutboxEnabled {
		t.Error("DevOutboxEnabled should default to false")
	}
	if string(cfg.JWTSecretBytes) != testSecret {
		t.Error("JWTSecretBytes not resolved from JWT_SECRET")
	}
	if got := cfg.TelemetryKafkaBrokersList(); got != nil {
		t.Errorf("TelemetryKafkaBrokersList() = %v, want nil", got)
	}
}

func TestLoad_EnvVarOverride(t *testing.T) {
	os.Clearenv()
	os.Setenv("JWT_SECRET", testSecret)
	os.Setenv("GRPC_ADDR", ":9090")
	os.Setenv("JWT_ISSUER", "custom-issuer")
	os.Setenv("BCRYPT_COST", "14")
	os.Setenv("LOGIN_MAX_FAILED_ATTEMPTS", "3")
	os.Setenv("LOGIN_LOCK_DURATION", "1h")
	os.Setenv("RATE_LIMIT_2FA_MAX", "2")
	os.Setenv("RATE_LIMIT_2FA_WINDOW", "30s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.GRPCAddr != ":9090" {
		t.Errorf("GRPCAddr = %q, want %q", cfg.GRPCAddr, ":9090")
	}
	if cfg.JWTIssuer != "custom-issuer" {
		t.Errorf("JWTIssuer = %q", cfg.JWTIssuer)
	}
	if cfg.BcryptCost != 14 {
		t.Errorf("BcryptCost = %d, want 14", cfg.BcryptCost)
	}
	p := cfg.LockoutPolicy()
	if p.MaxFailedAttempts != 3 || p.LockDuration != time.Hour {
		t.Errorf("LockoutPolicy() = %+v", p)
	}
	rule := cfg.RateLimitConfig().Rules[ratelimit.ActionSecondFactor]
	if rule.MaxAttempts != 2 || rule.Window != 30*time.Second {
		t.Errorf("second factor rule = %+v", rule)
	}
}

func TestLoad_SecretRequired(t *testing.T) {
	os.Clearenv()
	_, err := Load()
	if err == nil {
		t.Fatal("Load without JWT_SECRET should fail")
	}

	os.Setenv("JWT_SECRET", "too-short")
	_, err = Load()
	if !errors.Is(err, security.ErrSecretTooShort) {
		t.Errorf("Load with short secret: err = %v, want ErrSecretTooShort", err)
	}
}

func TestLoad_SecretFile(t *testing.T) {
	os.Clearenv()
	path := filepath.Join(t.TempDir(), "jwt.key")
	if err := os.WriteFile(path, []byte(testSecret+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	os.Setenv("JWT_SECRET_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(cfg.JWTSecretBytes) != testSecret {
		t.Errorf("secret from file = %q", cfg.JWTSecretBytes)
	}
}

func TestLoadWorker_NoSecret(t *testing.T) {
	os.Clearenv()
	cfg, err := LoadWorker()
	if err != nil {
		t.Fatalf("LoadWorker: %v", err)
	}
	if cfg.CleanupEvery() != time.Hour {
		t.Errorf("CleanupEvery() = %v, want 1h", cfg.CleanupEvery())
	}
	if cfg.AttemptRetention() != 720*time.Hour {
		t.Errorf("AttemptRetention() = %v, want 720h", cfg.AttemptRetention())
	}
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bcrypt too low", map[string]string{"BCRYPT_COST": "3"}},
		{"bcrypt too high", map[string]string{"BCRYPT_COST": "32"}},
		{"zero lock threshold", map[string]string{"LOGIN_MAX_FAILED_ATTEMPTS": "-1"}},
		{"bad duration", map[string]string{"JWT_ACCESS_TTL": "soon"}},
		{"negative window", map[string]string{"RATE_LIMIT_RESEND_WINDOW": "-5m"}},
		{"dev outbox in production", map[string]string{"DEV_OUTBOX_ENABLED": "true", "APP_ENV": "production"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			os.Setenv("JWT_SECRET", testSecret)
			for k, v := range tt.env {
				os.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Error("Load should fail")
			}
		})
	}
}

func TestConfig_TelemetryKafkaBrokersList(t *testing.T) {
	cfg := &Config{TelemetryKafkaBrokers: " a:9092, ,b:9092 "}
	got := cfg.TelemetryKafkaBrokersList()
	if len(got) != 2 || got[0] != "a:9092" || got[1] != "b:9092" {
		t.Errorf("TelemetryKafkaBrokersList() = %v", got)
	}
	var nilCfg *Config
	if nilCfg.TelemetryKafkaBrokersList() != nil {
		t.Error("nil config should return nil")
	}
}

func TestConfig_DurationFallback(t *testing.T) {
	cfg := &Config{JWTAccessTTL: "garbage", JWTRefreshTTL: ""}
	if cfg.AccessTTL() != 15*time.Minute {
		t.Errorf("AccessTTL() = %v, want fallback 15m", cfg.AccessTTL())
	}
	if cfg.RefreshTTL() != 168*time.Hour {
		t.Errorf("RefreshTTL() = %v, want fallback 168h", cfg.RefreshTTL())
	}
}
