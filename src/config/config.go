package config

import (
	"fmt"
	"os"

	"market-gateway/src/models"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// Secrets are never written to the YAML file; they come from the
// environment (or a .env next to the binary) with the GATEWAY prefix.
type Secrets struct {
	AuthToken   string `envconfig:"AUTH_TOKEN"`
	CloudAPIKey string `envconfig:"CLOUD_API_KEY"`
	PostgresDSN string `envconfig:"POSTGRES_DSN"`
}

// -----------------------------------------------------------------------------

// NewConfig creates a new MConfig instance from YAML file
func NewConfig(configPath string) (*Config, error) {
	// 1. Best effort .env load, then read the YAML file content
	_ = godotenv.Load()

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
	}

	// 2. Unmarshal data into the models struct
	var modelConfig models.MConfig
	if err := yaml.Unmarshal(data, &modelConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
	}

	config := &Config{MConfig: &modelConfig}
	config.applyDefaults()

	// 3. Overlay environment secrets
	var secrets Secrets
	if err := envconfig.Process("GATEWAY", &secrets); err != nil {
		return nil, fmt.Errorf("failed to read environment overrides: %w", err)
	}
	config.applySecrets(secrets)

	// 4. Validate the loaded configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

// applyDefaults fills the tunables the YAML may omit.
func (c *Config) applyDefaults() {
	if c.Gateway.ClientBuffer <= 0 {
		c.Gateway.ClientBuffer = 256
	}
	if c.Gateway.HeartbeatSeconds <= 0 {
		c.Gateway.HeartbeatSeconds = 30
	}
	if c.Gateway.MaxRequestTimeoutMs <= 0 {
		c.Gateway.MaxRequestTimeoutMs = 30000
	}

	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = 10
	}
	if c.RateLimit.RefillPerSec <= 0 {
		c.RateLimit.RefillPerSec = 5
	}
	if c.RateLimit.FailureThreshold <= 0 {
		c.RateLimit.FailureThreshold = 5
	}
	if c.RateLimit.CooldownSeconds <= 0 {
		c.RateLimit.CooldownSeconds = 30
	}

	if c.Cache.SweepSeconds <= 0 {
		c.Cache.SweepSeconds = 60
	}
	ttl := &c.Cache.TTLSeconds
	if ttl.MarketData <= 0 {
		ttl.MarketData = 5
	}
	if ttl.Technical <= 0 {
		ttl.Technical = 60
	}
	if ttl.Pattern <= 0 {
		ttl.Pattern = 300
	}
	if ttl.Sentiment <= 0 {
		ttl.Sentiment = 900
	}
	if ttl.Insight <= 0 {
		ttl.Insight = 300
	}

	if c.Analysis.DefaultTimeoutMs <= 0 {
		c.Analysis.DefaultTimeoutMs = 10000
	}
	if c.Analysis.LocalTimeoutMs <= 0 {
		c.Analysis.LocalTimeoutMs = 2000
	}
	if c.Reasoning.CloudTimeoutMs <= 0 {
		c.Reasoning.CloudTimeoutMs = 8000
	}

	if c.Storage.RetentionDays <= 0 {
		c.Storage.RetentionDays = 7
	}
}

// -----------------------------------------------------------------------------

// applySecrets overlays environment-sourced credentials onto the config.
func (c *Config) applySecrets(s Secrets) {
	if s.AuthToken != "" {
		c.Auth.Tokens = append(c.Auth.Tokens, models.MTokenConfig{
			Token:     s.AuthToken,
			Principal: "operator",
		})
	}
	if s.CloudAPIKey != "" {
		c.Reasoning.CloudAPIKey = s.CloudAPIKey
	}
	if s.PostgresDSN != "" {
		c.Storage.DBConnectionString = s.PostgresDSN
	}
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("application name cannot be empty")
	}

	// Validate Server configuration
	if c.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Port <= 1024 || c.Port > 65535 {
		return fmt.Errorf("invalid server port number: %d (must be between 1025 and 65535)", c.Port)
	}

	// Validate Auth configuration
	if c.Auth.Enabled && len(c.Auth.Tokens) == 0 {
		return fmt.Errorf("auth is enabled but no tokens are configured (yaml or GATEWAY_AUTH_TOKEN)")
	}
	for i, tok := range c.Auth.Tokens {
		if tok.Token == "" || tok.Principal == "" {
			return fmt.Errorf("auth token %d must have both token and principal", i)
		}
	}

	// Validate Storage configuration
	if c.Storage.DBType == "" {
		return fmt.Errorf("database type cannot be empty")
	}
	if c.Storage.DBType == "sqlite" && c.Storage.DBPath == "" {
		return fmt.Errorf("database path cannot be empty for sqlite")
	}
	if c.Storage.DBType == "postgres" && c.Storage.DBConnectionString == "" {
		return fmt.Errorf("connection string cannot be empty for postgres")
	}

	// Validate Network configuration
	if c.Network.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be greater than 0")
	}
	if c.Network.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.Network.ConcurrentRequests <= 0 {
		return fmt.Errorf("concurrent requests must be greater than 0")
	}

	// Validate Feed configuration
	if len(c.Feeds.Sources) == 0 {
		return fmt.Errorf("at least one feed source must be configured")
	}
	for i, src := range c.Feeds.Sources {
		if src.Name == "" {
			return fmt.Errorf("feed source %d must have a name", i)
		}
		if src.Type != "sim" && src.Type != "http" {
			return fmt.Errorf("feed source '%s' has unsupported type %q", src.Name, src.Type)
		}
		if src.Type == "http" && src.URL == "" {
			return fmt.Errorf("feed source '%s' must have a url", src.Name)
		}
		if len(src.Symbols) == 0 {
			return fmt.Errorf("feed source '%s' must have at least one symbol", src.Name)
		}
		if len(src.Timeframes) == 0 {
			return fmt.Errorf("feed source '%s' must have at least one timeframe", src.Name)
		}
		for _, tf := range src.Timeframes {
			if !models.IsValidTimeframe(tf) {
				return fmt.Errorf("feed source '%s' has invalid timeframe %q", src.Name, tf)
			}
		}
	}

	return nil
}

// -----------------------------------------------------------------------------

// Save persists the current configuration to the specified YAML file path
func (c *Config) Save(configPath string) error {
	// 1. Marshal the struct to YAML
	data, err := yaml.Marshal(c.MConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	// 2. Write to file (0644 permissions)
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config to file '%s': %w", configPath, err)
	}

	return nil
}
