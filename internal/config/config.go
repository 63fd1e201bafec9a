// Package config defines the gateway's configuration, loaded from a YAML
// file with sensitive fields overridable via GATEWAY_* environment
// variables, following the polymarket-mm bot's config package.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the top-level gateway configuration.
type Config struct {
	Brokers      []BrokerConfig     `mapstructure:"brokers"`
	Auth         AuthConfig         `mapstructure:"auth"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	Streaming    StreamingConfig    `mapstructure:"streaming"`
	Logging      LoggingConfig      `mapstructure:"logging"`
	Metrics      MetricsConfig      `mapstructure:"metrics"`
	MasterContract MasterContractConfig `mapstructure:"master_contract"`
}

// BrokerConfig is one entry in the adapter registry.
type BrokerConfig struct {
	ID           string   `mapstructure:"id"`
	Kind         string   `mapstructure:"kind"` // "saxoeu" | "usequity" | "inequity"
	BaseURL      string   `mapstructure:"base_url"`
	WSURL        string   `mapstructure:"ws_url"`
	ClientID     string   `mapstructure:"client_id"`
	ClientSecret string   `mapstructure:"client_secret"`
	APIKey       string   `mapstructure:"api_key"`
	APISecret    string   `mapstructure:"api_secret"`
	RedirectURI  string   `mapstructure:"redirect_uri"`
	AuthURL      string   `mapstructure:"auth_url"`
	TokenURL     string   `mapstructure:"token_url"`
	Enabled      bool     `mapstructure:"enabled"`
	RateLimit    RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig mirrors a broker's published rate limit.
type RateLimitConfig struct {
	OrdersPerSecond float64 `mapstructure:"orders_per_second"`
	QuotesPerSecond float64 `mapstructure:"quotes_per_second"`
}

// AuthConfig tunes the Auth Manager's background refresher.
type AuthConfig struct {
	RefreshLead        time.Duration `mapstructure:"refresh_lead"`
	MaxConsecutiveFail int           `mapstructure:"max_consecutive_fail"`
	FailureBackoff     time.Duration `mapstructure:"failure_backoff"`
	MaintenanceCron    string        `mapstructure:"maintenance_cron"`
}

// OrchestratorConfig tunes fan-out behavior.
type OrchestratorConfig struct {
	FanOutDeadline time.Duration `mapstructure:"fan_out_deadline"`
}

// StreamingConfig tunes the aggregator.
type StreamingConfig struct {
	StalledAfter time.Duration `mapstructure:"stalled_after"`
}

// LoggingConfig picks the log sink format.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "text" | "json"
}

// MetricsConfig controls the Prometheus exporter.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// MasterContractConfig selects and tunes the master-contract cache backend.
type MasterContractConfig struct {
	Backend  string `mapstructure:"backend"` // "sqlite" | "s3"
	SQLite   SQLiteCacheConfig `mapstructure:"sqlite"`
	S3       S3CacheConfig     `mapstructure:"s3"`
}

// SQLiteCacheConfig configures the local snapshot cache.
type SQLiteCacheConfig struct {
	Path string `mapstructure:"path"`
}

// S3CacheConfig configures the S3-refreshed snapshot loader.
type S3CacheConfig struct {
	Bucket string `mapstructure:"bucket"`
	Key    string `mapstructure:"key"`
	Region string `mapstructure:"region"`
}

// Load reads config from a YAML file with GATEWAY_* env var overrides.
// DotenvPath, if non-empty, is loaded into the process environment first.
func Load(path, dotenvPath string) (*Config, error) {
	if dotenvPath != "" {
		if err := godotenv.Load(dotenvPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: load dotenv: %w", err)
		}
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("GATEWAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	for i := range cfg.Brokers {
		b := &cfg.Brokers[i]
		if key := os.Getenv(fmt.Sprintf("GATEWAY_BROKER_%s_CLIENT_SECRET", strings.ToUpper(b.ID))); key != "" {
			b.ClientSecret = key
		}
		if key := os.Getenv(fmt.Sprintf("GATEWAY_BROKER_%s_API_SECRET", strings.ToUpper(b.ID))); key != "" {
			b.APISecret = key
		}
	}

	return &cfg, nil
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	if len(c.Brokers) == 0 {
		return fmt.Errorf("config: at least one broker must be configured")
	}
	seen := make(map[string]bool, len(c.Brokers))
	for _, b := range c.Brokers {
		if b.ID == "" {
			return fmt.Errorf("config: broker id is required")
		}
		if seen[b.ID] {
			return fmt.Errorf("config: duplicate broker id %q", b.ID)
		}
		seen[b.ID] = true
		switch b.Kind {
		case "saxoeu", "usequity", "inequity":
		default:
			return fmt.Errorf("config: broker %q has unknown kind %q", b.ID, b.Kind)
		}
	}
	if c.Auth.RefreshLead <= 0 {
		c.Auth.RefreshLead = 5 * time.Minute
	}
	if c.Auth.MaxConsecutiveFail <= 0 {
		c.Auth.MaxConsecutiveFail = 3
	}
	if c.Auth.FailureBackoff <= 0 {
		c.Auth.FailureBackoff = 30 * time.Second
	}
	if c.Orchestrator.FanOutDeadline <= 0 {
		c.Orchestrator.FanOutDeadline = 5 * time.Second
	}
	if c.Streaming.StalledAfter <= 0 {
		c.Streaming.StalledAfter = 10 * time.Second
	}
	return nil
}
