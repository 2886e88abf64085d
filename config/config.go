// Package config loads service settings from defaults, an optional YAML file
// and the environment.
//
// Every key can be set through the environment by upper-casing it and
// replacing dots with underscores: payment.gateway_url -> PAYMENT_GATEWAY_URL.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	domain "github.com/khalidAdell/quick-task/domain/task"
)

// Config holds all runtime settings.
type Config struct {
	HTTPAddr        string
	ShutdownTimeout time.Duration

	DB    DBConfig
	Redis RedisConfig

	NATSURL string

	JWT       JWTConfig
	Payment   PaymentConfig
	Lifecycle LifecycleConfig

	BidRateLimit int
	Categories   []string
}

// DBConfig locates the module databases. Driver selects the task store;
// identity, notification and payment data always live in sqlite files under Dir
// (or in shared-cache memory databases when Driver is memory).
type DBConfig struct {
	Driver string // sqlite, postgres or memory
	Dir    string
	URL    string
}

// SQLiteDSN returns the sqlite DSN for the named module database.
func (c DBConfig) SQLiteDSN(name string) string {
	if c.Driver == "memory" {
		return fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	}
	return filepath.Join(c.Dir, name+".db")
}

// RedisConfig configures the snapshot cache and the shared rate limiter.
// An empty Addr disables both.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	CacheTTL time.Duration
}

// JWTConfig holds token settings.
type JWTConfig struct {
	SecretKey  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Issuer     string
}

// PaymentConfig configures the payment gateway client.
// An empty GatewayURL selects the sandbox gateway.
type PaymentConfig struct {
	GatewayURL string
	Token      string
	Timeout    time.Duration
	Currency   string
}

// LifecycleConfig bounds the optimistic-concurrency retry loop.
type LifecycleConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":3000")
	v.SetDefault("shutdown.timeout", 30*time.Second)

	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.dir", "data")
	v.SetDefault("database.url", "")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("cache.ttl", 5*time.Minute)

	v.SetDefault("nats.url", "")

	v.SetDefault("jwt.secret_key", "change-me-in-production")
	v.SetDefault("jwt.access_ttl", 15*time.Minute)
	v.SetDefault("jwt.refresh_ttl", 7*24*time.Hour)
	v.SetDefault("jwt.issuer", "quick-task")

	v.SetDefault("payment.gateway_url", "")
	v.SetDefault("payment.gateway_token", "")
	v.SetDefault("payment.timeout", 10*time.Second)
	v.SetDefault("payment.currency", "USD")

	v.SetDefault("lifecycle.max_attempts", 5)
	v.SetDefault("lifecycle.initial_delay", 20*time.Millisecond)
	v.SetDefault("lifecycle.max_delay", 500*time.Millisecond)

	v.SetDefault("bid.rate_limit", 30)
	v.SetDefault("task.categories", strings.Join(domain.DefaultCategories, ","))
}

// Load reads configuration. configFile may be empty.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	cfg := &Config{
		HTTPAddr:        v.GetString("http.addr"),
		ShutdownTimeout: v.GetDuration("shutdown.timeout"),
		DB: DBConfig{
			Driver: strings.ToLower(v.GetString("db.driver")),
			Dir:    v.GetString("db.dir"),
			URL:    v.GetString("database.url"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			CacheTTL: v.GetDuration("cache.ttl"),
		},
		NATSURL: v.GetString("nats.url"),
		JWT: JWTConfig{
			SecretKey:  v.GetString("jwt.secret_key"),
			AccessTTL:  v.GetDuration("jwt.access_ttl"),
			RefreshTTL: v.GetDuration("jwt.refresh_ttl"),
			Issuer:     v.GetString("jwt.issuer"),
		},
		Payment: PaymentConfig{
			GatewayURL: strings.TrimRight(v.GetString("payment.gateway_url"), "/"),
			Token:      v.GetString("payment.gateway_token"),
			Timeout:    v.GetDuration("payment.timeout"),
			Currency:   strings.ToUpper(v.GetString("payment.currency")),
		},
		Lifecycle: LifecycleConfig{
			MaxAttempts:  v.GetInt("lifecycle.max_attempts"),
			InitialDelay: v.GetDuration("lifecycle.initial_delay"),
			MaxDelay:     v.GetDuration("lifecycle.max_delay"),
		},
		BidRateLimit: v.GetInt("bid.rate_limit"),
		Categories:   splitList(v.Get("task.categories")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	switch c.DB.Driver {
	case "sqlite", "memory":
	case "postgres":
		if c.DB.URL == "" {
			return fmt.Errorf("database.url is required when db.driver is postgres")
		}
	default:
		return fmt.Errorf("unknown db.driver %q", c.DB.Driver)
	}
	if c.JWT.SecretKey == "" {
		return fmt.Errorf("jwt.secret_key must not be empty")
	}
	if c.Payment.Timeout <= 0 {
		return fmt.Errorf("payment.timeout must be positive")
	}
	if c.Payment.Currency == "" {
		return fmt.Errorf("payment.currency must not be empty")
	}
	if c.Lifecycle.MaxAttempts < 1 {
		return fmt.Errorf("lifecycle.max_attempts must be at least 1")
	}
	return nil
}

// splitList accepts either a YAML list or a comma separated string.
func splitList(raw any) []string {
	var items []string
	switch val := raw.(type) {
	case string:
		items = strings.Split(val, ",")
	case []string:
		items = val
	case []any:
		for _, item := range val {
			items = append(items, fmt.Sprint(item))
		}
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
