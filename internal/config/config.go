// Package config handles configuration loading for the crew CLI. It supports
// XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for a crew run.
type Config struct {
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Crew      CrewConfig      `mapstructure:"crew"`
	// RolesFile points to an optional YAML role catalog overlay.
	RolesFile string `mapstructure:"roles_file"`
}

// AnthropicConfig holds API settings.
type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
	// UseBedrock routes requests through AWS Bedrock instead of the
	// Anthropic API.
	UseBedrock bool   `mapstructure:"use_bedrock"`
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
}

// CrewConfig holds scheduling and budget settings.
type CrewConfig struct {
	// MaxParallel is the worker instance cap per role.
	MaxParallel int `mapstructure:"max_parallel"`
	// TokenBudget is the global token ceiling. Zero means unlimited.
	TokenBudget int64 `mapstructure:"token_budget"`
	// PerAgentBudget is the per-agent base ceiling before role multipliers.
	PerAgentBudget int64 `mapstructure:"per_agent_budget"`
	// AutoReview toggles the review cycle for coder tasks.
	AutoReview bool `mapstructure:"auto_review"`
	// MaxRework is how many reviewer rejections a task may accumulate.
	MaxRework int `mapstructure:"max_rework"`
	// MessageTimeout bounds each coordinator mailbox wait.
	MessageTimeout time.Duration `mapstructure:"message_timeout"`
	// TaskTimeout is the per-task wall-clock limit. Zero disables it.
	TaskTimeout time.Duration `mapstructure:"task_timeout"`
	// WarningThresholds are per-agent spend percentages, ascending.
	WarningThresholds []int `mapstructure:"warning_thresholds"`
}

// Load loads configuration with the following precedence (highest first):
// environment variables (ANTHROPIC_API_KEY), project config (.crew.yaml in
// the current directory or a parent), user config (~/.config/crew/config.yaml),
// built-in defaults.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
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
	v.BindEnv("anthropic.model", "CREW_MODEL")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file (for testing).
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
	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)
	return cfg, nil
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the project config file path if one exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "claude-sonnet-4-20250514")
	v.SetDefault("anthropic.use_bedrock", false)

	v.SetDefault("crew.max_parallel", 2)
	v.SetDefault("crew.token_budget", 200000)
	v.SetDefault("crew.per_agent_budget", 200000)
	v.SetDefault("crew.auto_review", true)
	v.SetDefault("crew.max_rework", 2)
	v.SetDefault("crew.message_timeout", "60s")
	v.SetDefault("crew.task_timeout", "300s")
	v.SetDefault("crew.warning_thresholds", []int{50, 80, 95})

	v.SetDefault("roles_file", "")
}

// getUserConfigDir returns the XDG config directory for crew.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "crew")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "crew")
	}
	return filepath.Join(home, ".config", "crew")
}

// findProjectConfig searches for .crew.yaml in the current directory and
// its parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		configPath := filepath.Join(cwd, ".crew.yaml")
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

// Default returns a Config with built-in default values.
func Default() *Config {
	return &Config{
		Anthropic: AnthropicConfig{
			Model: "claude-sonnet-4-20250514",
		},
		Crew: CrewConfig{
			MaxParallel:       2,
			TokenBudget:       200000,
			PerAgentBudget:    200000,
			AutoReview:        true,
			MaxRework:         2,
			MessageTimeout:    60 * time.Second,
			TaskTimeout:       300 * time.Second,
			WarningThresholds: []int{50, 80, 95},
		},
	}
}
