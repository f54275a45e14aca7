package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, k := range []string{"HTTP_ADDR", "STORE_BACKEND", "TAX_RATE", "CURRENCY_DIGITS", "CORS_ORIGINS", "SESSION_TTL_HOURS"} {
		t.Setenv(k, "")
	}

	cfg := FromEnv()
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("expected default addr, got %q", cfg.HTTPAddr)
	}
	if cfg.StoreBackend != BackendMemory {
		t.Fatalf("expected memory backend, got %q", cfg.StoreBackend)
	}
	if !cfg.TaxRate.Equal(decimal.RequireFromString("0.05")) {
		t.Fatalf("expected default tax rate 0.05, got %s", cfg.TaxRate)
	}
	if cfg.CurrencyDigits != 2 {
		t.Fatalf("expected 2 currency digits, got %d", cfg.CurrencyDigits)
	}
	if cfg.SessionTTL != 72*time.Hour {
		t.Fatalf("expected 72h session ttl, got %s", cfg.SessionTTL)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "Redis")
	t.Setenv("TAX_RATE", "0.0825")
	t.Setenv("CURRENCY_DIGITS", "0")
	t.Setenv("CORS_ORIGINS", "https://cakes.example, https://admin.cakes.example ,")
	t.Setenv("SHUTDOWN_TIMEOUT_SECONDS", "3")
	t.Setenv("LOG_DEVELOPMENT", "true")

	cfg := FromEnv()
	if cfg.StoreBackend != BackendRedis {
		t.Fatalf("expected redis backend, got %q", cfg.StoreBackend)
	}
	if !cfg.TaxRate.Equal(decimal.RequireFromString("0.0825")) {
		t.Fatalf("unexpected tax rate %s", cfg.TaxRate)
	}
	if cfg.CurrencyDigits != 0 {
		t.Fatalf("expected 0 currency digits, got %d", cfg.CurrencyDigits)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://admin.cakes.example" {
		t.Fatalf("unexpected origins %v", cfg.CORSOrigins)
	}
	if cfg.ShutdownTimeout != 3*time.Second {
		t.Fatalf("unexpected shutdown timeout %s", cfg.ShutdownTimeout)
	}
	if !cfg.LogDevelopment {
		t.Fatalf("expected development logging")
	}
}

func TestFromEnvIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("TAX_RATE", "five percent")
	t.Setenv("SESSION_TTL_HOURS", "soon")

	cfg := FromEnv()
	if !cfg.TaxRate.Equal(decimal.RequireFromString("0.05")) {
		t.Fatalf("expected fallback tax rate, got %s", cfg.TaxRate)
	}
	if cfg.SessionTTL != 72*time.Hour {
		t.Fatalf("expected fallback ttl, got %s", cfg.SessionTTL)
	}
}

func TestValidate(t *testing.T) {
	cfg := FromEnv()
	cfg.StoreBackend = "sqlite"
	cfg.TaxRate = decimal.RequireFromString("-0.1")
	cfg.SessionTTL = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"STORE_BACKEND", "TAX_RATE", "SESSION_TTL_HOURS"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %q", want, err.Error())
		}
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("CART_KEY_PREFIX=bakery\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("CART_KEY_PREFIX", "")
	os.Unsetenv("CART_KEY_PREFIX")

	cfg := Load(path)
	if cfg.CartKeyPrefix != "bakery" {
		t.Fatalf("expected prefix from env file, got %q", cfg.CartKeyPrefix)
	}
}
