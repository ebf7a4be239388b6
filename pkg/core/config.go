package core

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the main application configuration.
type Config struct {
	// Server holds HTTP server configuration for the webhook gateway.
	Server struct {
		Port           int   `yaml:"port"`
		ReadTimeoutMS  int64 `yaml:"read_timeout_ms"`
		WriteTimeoutMS int64 `yaml:"write_timeout_ms"`
		IdleTimeoutMS  int64 `yaml:"idle_timeout_ms"`
		ReadHeaderMS   int64 `yaml:"read_header_timeout_ms"`
		MaxBodyBytes   int64 `yaml:"max_body_bytes"`
		DebugEvents    bool  `yaml:"debug_events"`
	} `yaml:"server"`
	// Senders contains configuration for each external webhook sender.
	Senders SendersConfig `yaml:"senders"`
	// Queue holds configuration for the priority job queue.
	Queue QueueConfig `yaml:"queue"`
	// Cache holds configuration for the event cache.
	Cache CacheConfig `yaml:"cache"`
	// Storage holds configuration for the relational store.
	Storage StorageConfig `yaml:"storage"`
	// Worker holds configuration for the job processor.
	Worker WorkerConfig `yaml:"worker"`
	// Accounting holds business parameters used by job handlers.
	Accounting AccountingConfig `yaml:"accounting"`
}

// SenderConfig holds the shared-secret material for a single sender.
type SenderConfig struct {
	Secret      string `yaml:"secret"`
	VerifyToken string `yaml:"verify_token"`
}

// SendersConfig groups per-sender webhook secrets.
type SendersConfig struct {
	Stripe  SenderConfig `yaml:"stripe"`
	Shopify SenderConfig `yaml:"shopify"`
	Paypal  SenderConfig `yaml:"paypal"`
	Meta    SenderConfig `yaml:"meta"`
}

// QueueConfig holds configuration for the priority queue backend.
type QueueConfig struct {
	// Driver selects the lane backend: "redis" or "memory".
	Driver string `yaml:"driver"`
	// Name is the queue name used in backend keys (queue:<name>:high, ...).
	Name        string      `yaml:"name"`
	Redis       RedisConfig `yaml:"redis"`
	DedupeTTLMS int64       `yaml:"dedupe_ttl_ms"`
}

// RedisConfig holds connection settings for the redis backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// CacheConfig holds TTLs for the event cache, per category.
type CacheConfig struct {
	ReportTTLMS    int64 `yaml:"report_ttl_ms"`
	BalanceTTLMS   int64 `yaml:"balance_ttl_ms"`
	MarketingTTLMS int64 `yaml:"marketing_ttl_ms"`
}

// StorageConfig holds configuration for the SQL datastore.
type StorageConfig struct {
	Driver      string     `yaml:"driver"`
	DSN         string     `yaml:"dsn"`
	AutoMigrate bool       `yaml:"auto_migrate"`
	Pool        PoolConfig `yaml:"pool"`
}

// PoolConfig controls database connection pooling.
type PoolConfig struct {
	MaxOpenConns      int   `yaml:"max_open_conns"`
	MaxIdleConns      int   `yaml:"max_idle_conns"`
	ConnMaxLifetimeMS int64 `yaml:"conn_max_lifetime_ms"`
	ConnMaxIdleTimeMS int64 `yaml:"conn_max_idle_time_ms"`
}

// WorkerConfig holds configuration for the job processor and retry manager.
type WorkerConfig struct {
	PollIntervalMS  int64 `yaml:"poll_interval_ms"`
	ErrorBackoffMS  int64 `yaml:"error_backoff_ms"`
	RetryIntervalMS int64 `yaml:"retry_interval_ms"`
	RetryLimit      int   `yaml:"retry_limit"`
	// MaxAttempts bounds retries of failed jobs; 0 keeps retrying forever.
	MaxAttempts int `yaml:"max_attempts"`
}

// AccountingConfig holds business parameters used by job handlers.
type AccountingConfig struct {
	CommissionRateBps int    `yaml:"commission_rate_bps"`
	Currency          string `yaml:"currency"`
}

// LoadConfig loads the application configuration from a YAML file. Secrets
// may reference environment variables with ${VAR}; defaults are applied
// after unmarshal and the result is validated.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return cfg, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyDefaults fills zero-valued fields with operational defaults.
func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeoutMS == 0 {
		c.Server.ReadTimeoutMS = 10000
	}
	if c.Server.WriteTimeoutMS == 0 {
		c.Server.WriteTimeoutMS = 15000
	}
	if c.Server.IdleTimeoutMS == 0 {
		c.Server.IdleTimeoutMS = 60000
	}
	if c.Server.ReadHeaderMS == 0 {
		c.Server.ReadHeaderMS = 5000
	}
	if c.Server.MaxBodyBytes == 0 {
		c.Server.MaxBodyBytes = 1 << 20
	}
	if c.Queue.Driver == "" {
		c.Queue.Driver = "redis"
	}
	if c.Queue.Name == "" {
		c.Queue.Name = "accounting"
	}
	if c.Queue.Redis.Addr == "" {
		c.Queue.Redis.Addr = "localhost:6379"
	}
	if c.Queue.DedupeTTLMS == 0 {
		c.Queue.DedupeTTLMS = 24 * 60 * 60 * 1000
	}
	if c.Cache.ReportTTLMS == 0 {
		c.Cache.ReportTTLMS = 300000
	}
	if c.Cache.BalanceTTLMS == 0 {
		c.Cache.BalanceTTLMS = 180000
	}
	if c.Cache.MarketingTTLMS == 0 {
		c.Cache.MarketingTTLMS = 600000
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "postgres"
	}
	if c.Worker.PollIntervalMS == 0 {
		c.Worker.PollIntervalMS = 5000
	}
	if c.Worker.ErrorBackoffMS == 0 {
		c.Worker.ErrorBackoffMS = 10000
	}
	if c.Worker.RetryIntervalMS == 0 {
		c.Worker.RetryIntervalMS = 60000
	}
	if c.Worker.RetryLimit == 0 {
		c.Worker.RetryLimit = 10
	}
	if c.Accounting.CommissionRateBps == 0 {
		c.Accounting.CommissionRateBps = 250
	}
	if c.Accounting.Currency == "" {
		c.Accounting.Currency = "USD"
	}
}

// Validate rejects configurations that cannot be started.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Queue.Driver) {
	case "redis", "memory":
	default:
		return fmt.Errorf("unsupported queue driver: %s", c.Queue.Driver)
	}
	switch strings.ToLower(c.Storage.Driver) {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported storage driver: %s", c.Storage.Driver)
	}
	if c.Storage.DSN == "" {
		return fmt.Errorf("storage dsn is required")
	}
	if c.Worker.MaxAttempts < 0 {
		return fmt.Errorf("worker max_attempts must not be negative")
	}
	return nil
}
