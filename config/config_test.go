package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.HTTPAddr != ":3000" {
		t.Errorf("HTTPAddr = %q, want :3000", cfg.HTTPAddr)
	}
	if cfg.DB.Driver != "sqlite" {
		t.Errorf("DB.Driver = %q, want sqlite", cfg.DB.Driver)
	}
	if dsn := cfg.DB.SQLiteDSN("tasks"); dsn != filepath.Join("data", "tasks.db") {
		t.Errorf("SQLiteDSN() = %q", dsn)
	}
	if cfg.Payment.Timeout != 10*time.Second {
		t.Errorf("Payment.Timeout = %v, want 10s", cfg.Payment.Timeout)
	}
	if cfg.Payment.Currency != "USD" {
		t.Errorf("Payment.Currency = %q, want USD", cfg.Payment.Currency)
	}
	if len(cfg.Categories) != 4 || cfg.Categories[0] != "Web Development" {
		t.Errorf("Categories = %v", cfg.Categories)
	}
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":8080")
	t.Setenv("PAYMENT_GATEWAY_URL", "https://pay.example.com/")
	t.Setenv("PAYMENT_TIMEOUT", "3s")
	t.Setenv("PAYMENT_CURRENCY", "eur")
	t.Setenv("LIFECYCLE_MAX_ATTEMPTS", "9")
	t.Setenv("TASK_CATEGORIES", "Design, Writing ,")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want :8080", cfg.HTTPAddr)
	}
	if cfg.Payment.GatewayURL != "https://pay.example.com" {
		t.Errorf("GatewayURL = %q, trailing slash should be trimmed", cfg.Payment.GatewayURL)
	}
	if cfg.Payment.Timeout != 3*time.Second {
		t.Errorf("Payment.Timeout = %v, want 3s", cfg.Payment.Timeout)
	}
	if cfg.Payment.Currency != "EUR" {
		t.Errorf("Payment.Currency = %q, want EUR", cfg.Payment.Currency)
	}
	if cfg.Lifecycle.MaxAttempts != 9 {
		t.Errorf("Lifecycle.MaxAttempts = %d, want 9", cfg.Lifecycle.MaxAttempts)
	}
	if len(cfg.Categories) != 2 || cfg.Categories[1] != "Writing" {
		t.Errorf("Categories = %q", cfg.Categories)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quicktask.yaml")
	content := []byte(`
db:
  driver: memory
task:
  categories:
    - Web Development
    - Tech Support
bid:
  rate_limit: 5
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DB.Driver != "memory" {
		t.Errorf("DB.Driver = %q, want memory", cfg.DB.Driver)
	}
	if cfg.BidRateLimit != 5 {
		t.Errorf("BidRateLimit = %d, want 5", cfg.BidRateLimit)
	}
	if len(cfg.Categories) != 2 || cfg.Categories[1] != "Tech Support" {
		t.Errorf("Categories = %v", cfg.Categories)
	}
	if dsn := cfg.DB.SQLiteDSN("identity"); dsn != "file:identity?mode=memory&cache=shared" {
		t.Errorf("SQLiteDSN() = %q", dsn)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"postgres without url", func(c *Config) { c.DB.Driver = "postgres" }, true},
		{"postgres with url", func(c *Config) { c.DB.Driver = "postgres"; c.DB.URL = "postgres://x" }, false},
		{"unknown driver", func(c *Config) { c.DB.Driver = "mongo" }, true},
		{"empty secret", func(c *Config) { c.JWT.SecretKey = "" }, true},
		{"zero payment timeout", func(c *Config) { c.Payment.Timeout = 0 }, true},
		{"zero attempts", func(c *Config) { c.Lifecycle.MaxAttempts = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("")
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
