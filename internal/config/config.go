// Package config handles configuration loading and management for Foreman.
// It supports XDG config paths, project-level overrides, and environment
// variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/foremanhq/foreman/pkg/models"
)

// Config holds all configuration for Foreman.
type Config struct {
	Reasoning ReasoningConfig `mapstructure:"reasoning"`
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Tiers     TiersConfig     `mapstructure:"tiers"`
	Workspace WorkspaceConfig `mapstructure:"workspace"`
}

// ReasoningConfig selects and bounds the strategy resolver's provider.
type ReasoningConfig struct {
	// Provider is the reasoning backend: "anthropic" or "openai".
	Provider string `mapstructure:"provider"`
	// Model overrides the provider's default model.
	Model string `mapstructure:"model"`
	// Timeout bounds one resolution call.
	Timeout time.Duration `mapstructure:"timeout"`
	// RateLimit caps reasoning calls per RateWindow. Zero disables.
	RateLimit int `mapstructure:"rate_limit"`
	// RateWindow is the sliding window for RateLimit.
	RateWindow time.Duration `mapstructure:"rate_window"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey     string `mapstructure:"api_key"`
	UseBedrock bool   `mapstructure:"use_bedrock"`
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
}

// OpenAIConfig holds OpenAI-compatible API settings.
type OpenAIConfig struct {
	APIKey string `mapstructure:"api_key"`
	// BaseURL points at a compatible endpoint, e.g. OpenRouter.
	BaseURL string `mapstructure:"base_url"`
}

// EngineConfig holds orchestrator settings.
type EngineConfig struct {
	// MaxConcurrentTasks is the worker pool size.
	MaxConcurrentTasks int `mapstructure:"max_concurrent_tasks"`
	// RetrySideEffects permits retrying side-effecting-unknown
	// capabilities. Off by default; turning it on is the operator's
	// explicit acknowledgment that effects may repeat.
	RetrySideEffects bool `mapstructure:"retry_side_effects"`
	// RetryBaseDelay is the first inter-retry delay.
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay"`
	// RetryMaxDelay caps the growing inter-retry delay.
	RetryMaxDelay time.Duration `mapstructure:"retry_max_delay"`
}

// TierConfig holds the retry and timeout budget of one complexity tier.
type TierConfig struct {
	// MaxRetries is how many retries a failed step gets.
	MaxRetries int `mapstructure:"max_retries"`
	// StepTimeout bounds one step attempt.
	StepTimeout time.Duration `mapstructure:"step_timeout"`
}

// TiersConfig holds the budgets for all complexity tiers.
type TiersConfig struct {
	Low    TierConfig `mapstructure:"low"`
	Medium TierConfig `mapstructure:"medium"`
	High   TierConfig `mapstructure:"high"`
}

// Get returns the tier config for the given complexity.
func (t *TiersConfig) Get(c models.Complexity) TierConfig {
	switch c {
	case models.ComplexityLow:
		return t.Low
	case models.ComplexityHigh:
		return t.High
	default:
		return t.Medium
	}
}

// WorkspaceConfig holds filesystem locations.
type WorkspaceConfig struct {
	// Dir is the root the builtin tools operate in.
	Dir string `mapstructure:"dir"`
	// DataDir holds the database, lock, logs, and signals directory.
	DataDir string `mapstructure:"data_dir"`
}

// Load loads configuration from XDG paths, project overrides, and
// environment variables. Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY, OPENAI_API_KEY, FOREMAN_*)
// 2. Project config (.foreman.yaml in current directory or a parent)
// 3. User config (~/.config/foreman/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.AutomaticEnv()

	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("openai.api_key", "OPENAI_API_KEY")
	v.BindEnv("reasoning.provider", "FOREMAN_PROVIDER")
	v.BindEnv("reasoning.model", "FOREMAN_MODEL")
	v.BindEnv("workspace.data_dir", "FOREMAN_DATA_DIR")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)
	cfg.OpenAI.APIKey = expandEnv(cfg.OpenAI.APIKey)

	return cfg, nil
}

// LoadFromPath loads configuration from a specific file.
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)
	cfg.OpenAI.APIKey = expandEnv(cfg.OpenAI.APIKey)

	return cfg, nil
}

// Save writes the current configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath := filepath.Join(userConfigDir, "config.yaml")

	v := viper.New()
	v.SetConfigFile(configPath)

	v.Set("reasoning.provider", cfg.Reasoning.Provider)
	v.Set("reasoning.model", cfg.Reasoning.Model)
	v.Set("reasoning.timeout", cfg.Reasoning.Timeout.String())
	v.Set("reasoning.rate_limit", cfg.Reasoning.RateLimit)
	v.Set("reasoning.rate_window", cfg.Reasoning.RateWindow.String())
	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.use_bedrock", cfg.Anthropic.UseBedrock)
	v.Set("anthropic.aws_region", cfg.Anthropic.AWSRegion)
	v.Set("anthropic.aws_profile", cfg.Anthropic.AWSProfile)
	v.Set("openai.api_key", cfg.OpenAI.APIKey)
	v.Set("openai.base_url", cfg.OpenAI.BaseURL)
	v.Set("engine.max_concurrent_tasks", cfg.Engine.MaxConcurrentTasks)
	v.Set("engine.retry_side_effects", cfg.Engine.RetrySideEffects)
	v.Set("engine.retry_base_delay", cfg.Engine.RetryBaseDelay.String())
	v.Set("engine.retry_max_delay", cfg.Engine.RetryMaxDelay.String())
	v.Set("tiers.low.max_retries", cfg.Tiers.Low.MaxRetries)
	v.Set("tiers.low.step_timeout", cfg.Tiers.Low.StepTimeout.String())
	v.Set("tiers.medium.max_retries", cfg.Tiers.Medium.MaxRetries)
	v.Set("tiers.medium.step_timeout", cfg.Tiers.Medium.StepTimeout.String())
	v.Set("tiers.high.max_retries", cfg.Tiers.High.MaxRetries)
	v.Set("tiers.high.step_timeout", cfg.Tiers.High.StepTimeout.String())
	v.Set("workspace.dir", cfg.Workspace.Dir)
	v.Set("workspace.data_dir", cfg.Workspace.DataDir)

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if
// it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("reasoning.provider", "anthropic")
	v.SetDefault("reasoning.model", "")
	v.SetDefault("reasoning.timeout", "30s")
	v.SetDefault("reasoning.rate_limit", 10)
	v.SetDefault("reasoning.rate_window", "60s")

	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.use_bedrock", false)
	v.SetDefault("anthropic.aws_region", "")
	v.SetDefault("anthropic.aws_profile", "")

	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "")

	v.SetDefault("engine.max_concurrent_tasks", 4)
	v.SetDefault("engine.retry_side_effects", false)
	v.SetDefault("engine.retry_base_delay", "1s")
	v.SetDefault("engine.retry_max_delay", "30s")

	v.SetDefault("tiers.low.max_retries", 1)
	v.SetDefault("tiers.low.step_timeout", "30s")
	v.SetDefault("tiers.medium.max_retries", 2)
	v.SetDefault("tiers.medium.step_timeout", "60s")
	v.SetDefault("tiers.high.max_retries", 3)
	v.SetDefault("tiers.high.step_timeout", "120s")

	v.SetDefault("workspace.dir", ".")
	v.SetDefault("workspace.data_dir", ".foreman")
}

// getUserConfigDir returns the XDG config directory for Foreman.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "foreman")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "foreman")
	}
	return filepath.Join(home, ".config", "foreman")
}

// findProjectConfig searches for .foreman.yaml in the current directory
// and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".foreman.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Reasoning: ReasoningConfig{
			Provider:   "anthropic",
			Timeout:    30 * time.Second,
			RateLimit:  10,
			RateWindow: 60 * time.Second,
		},
		Engine: EngineConfig{
			MaxConcurrentTasks: 4,
			RetrySideEffects:   false,
			RetryBaseDelay:     time.Second,
			RetryMaxDelay:      30 * time.Second,
		},
		Tiers: TiersConfig{
			Low:    TierConfig{MaxRetries: 1, StepTimeout: 30 * time.Second},
			Medium: TierConfig{MaxRetries: 2, StepTimeout: 60 * time.Second},
			High:   TierConfig{MaxRetries: 3, StepTimeout: 120 * time.Second},
		},
		Workspace: WorkspaceConfig{
			Dir:     ".",
			DataDir: ".foreman",
		},
	}
}
