// Package config loads and validates mission-center configuration.
//
// DESIGN: A single yaml file configures the server, ledger, estimator,
// and upstream probes. Secrets (the Anthropic key) come from the
// environment, never from the yaml file, so configs can be committed.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Ledger   LedgerConfig   `yaml:"ledger"`
	Logs     LogsConfig     `yaml:"logs"`
	OpenClaw OpenClawConfig `yaml:"openclaw"`
	Billing  BillingConfig  `yaml:"billing"`
	History  HistoryConfig  `yaml:"history"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// LedgerConfig holds usage ledger settings.
type LedgerConfig struct {
	Path          string  `yaml:"path"`
	MonthlyBudget float64 `yaml:"monthly_budget"` // USD. Advisory only.
}

// LogsConfig holds log-window estimator settings.
type LogsConfig struct {
	// Paths to the gateway logs scanned by the estimator. Missing files
	// are skipped; if none exist the estimator reports unavailable.
	Paths       []string `yaml:"paths"`
	MinBudget5h int      `yaml:"min_budget_5h"`
}

// OpenClawConfig locates the local OpenClaw installation.
type OpenClawConfig struct {
	ConfigPath string `yaml:"config_path"` // openclaw.json
}

// BillingConfig holds upstream billing probe settings.
type BillingConfig struct {
	// APIKeyEnv names the environment variable holding the Anthropic key.
	APIKeyEnv string        `yaml:"api_key_env"`
	Timeout   time.Duration `yaml:"timeout"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`
}

// HistoryConfig holds webhook delivery history settings.
type HistoryConfig struct {
	Path      string `yaml:"path"`
	Retention int    `yaml:"retention"`
}

// Default returns a config populated with defaults. Log and openclaw.json
// paths default to the invoking user's ~/.openclaw.
func Default() *Config {
	home, _ := os.UserHomeDir()
	openclawDir := filepath.Join(home, ".openclaw")
	return &Config{
		Server: ServerConfig{
			Port:         DefaultServerPort,
			ReadTimeout:  DefaultServerReadTimeout,
			WriteTimeout: DefaultServerWriteTimeout,
		},
		Ledger: LedgerConfig{
			Path:          DefaultLedgerPath,
			MonthlyBudget: DefaultMonthlyBudgetUSD,
		},
		Logs: LogsConfig{
			Paths: []string{
				filepath.Join(openclawDir, "logs", "gateway.log"),
				filepath.Join(openclawDir, "logs", "gateway.err.log"),
			},
			MinBudget5h: ConservativeMinBudget5h,
		},
		OpenClaw: OpenClawConfig{
			ConfigPath: filepath.Join(openclawDir, "openclaw.json"),
		},
		Billing: BillingConfig{
			APIKeyEnv: "ANTHROPIC_API_KEY",
			Timeout:   DefaultProbeTimeout,
			CacheTTL:  DefaultProbeCacheTTL,
		},
		History: HistoryConfig{
			Path:      DefaultHistoryPath,
			Retention: HistoryRetention,
		},
	}
}

// Load reads a yaml config file over the defaults. An empty path returns
// the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 1-65535, got %d", c.Server.Port)
	}
	if c.Ledger.Path == "" {
		return fmt.Errorf("ledger.path must not be empty")
	}
	if c.Ledger.MonthlyBudget < 0 {
		return fmt.Errorf("ledger.monthly_budget must be >= 0, got %f", c.Ledger.MonthlyBudget)
	}
	if c.Logs.MinBudget5h < 0 {
		return fmt.Errorf("logs.min_budget_5h must be >= 0, got %d", c.Logs.MinBudget5h)
	}
	if c.History.Retention <= 0 {
		return fmt.Errorf("history.retention must be > 0, got %d", c.History.Retention)
	}
	return nil
}

// AnthropicKey resolves the Anthropic API key from the environment.
func (c *Config) AnthropicKey() string {
	env := c.Billing.APIKeyEnv
	if env == "" {
		env = "ANTHROPIC_API_KEY"
	}
	return os.Getenv(env)
}
