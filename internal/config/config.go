// Package config handles configuration loading and management for stagehand.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for stagehand.
type Config struct {
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Executor  ExecutorConfig  `mapstructure:"executor"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	// APIKey is the Anthropic API key. ${VAR} references are expanded.
	APIKey string `mapstructure:"api_key"`
	// Model is the default model for agents without an override.
	Model string `mapstructure:"model"`
	// UseBedrock routes calls through AWS Bedrock instead of the direct API.
	UseBedrock bool `mapstructure:"use_bedrock"`
	// AWSRegion is the Bedrock region.
	AWSRegion string `mapstructure:"aws_region"`
	// AWSProfile is the optional AWS shared config profile.
	AWSProfile string `mapstructure:"aws_profile"`
}

// ExecutorConfig holds graph execution settings.
type ExecutorConfig struct {
	// MaxConcurrency bounds how many graph nodes run at once.
	MaxConcurrency int `mapstructure:"max_concurrency"`
	// NodeTimeout is the per-node deadline; zero disables it.
	NodeTimeout time.Duration `mapstructure:"node_timeout"`
	// GraphTimeout is the whole-run deadline; zero disables it.
	GraphTimeout time.Duration `mapstructure:"graph_timeout"`
	// OptimizeDelegation enables the prompt-length delegation heuristic.
	OptimizeDelegation bool `mapstructure:"optimize_delegation"`
}

// SchedulerConfig holds daemon settings.
type SchedulerConfig struct {
	// CheckInterval is how often the daemon looks for due items.
	CheckInterval time.Duration `mapstructure:"check_interval"`
	// MaxConcurrentJobs bounds how many scheduled items run at once.
	MaxConcurrentJobs int `mapstructure:"max_concurrent_jobs"`
	// SpoolDir is where dropped YAML schedule files are ingested from.
	// Empty disables the spool watcher.
	SpoolDir string `mapstructure:"spool_dir"`
	// StopGrace is how long Stop waits for in-flight jobs.
	StopGrace time.Duration `mapstructure:"stop_grace"`
}

// StorageConfig holds persistence settings.
type StorageConfig struct {
	// Path is the SQLite database path. Empty uses the XDG default.
	Path string `mapstructure:"path"`
}

// LoggingConfig holds debug log settings.
type LoggingConfig struct {
	// Path is the debug log file. Empty disables file logging.
	Path string `mapstructure:"path"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY, STAGEHAND_*)
// 2. Project config (.stagehand.yaml in current directory or parent)
// 3. User config (~/.config/stagehand/config.yaml)
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

	// Load project config if present
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

	// Environment variable overrides
	v.AutomaticEnv()
	v.SetEnvPrefix("STAGEHAND")

	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("anthropic.aws_region", "AWS_REGION")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Expand ${VAR} references
	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
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

// Save writes the current configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath := filepath.Join(userConfigDir, "config.yaml")

	v := viper.New()
	v.SetConfigFile(configPath)

	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.model", cfg.Anthropic.Model)
	v.Set("anthropic.use_bedrock", cfg.Anthropic.UseBedrock)
	v.Set("anthropic.aws_region", cfg.Anthropic.AWSRegion)
	v.Set("anthropic.aws_profile", cfg.Anthropic.AWSProfile)
	v.Set("executor.max_concurrency", cfg.Executor.MaxConcurrency)
	v.Set("executor.node_timeout", cfg.Executor.NodeTimeout.String())
	v.Set("executor.graph_timeout", cfg.Executor.GraphTimeout.String())
	v.Set("executor.optimize_delegation", cfg.Executor.OptimizeDelegation)
	v.Set("scheduler.check_interval", cfg.Scheduler.CheckInterval.String())
	v.Set("scheduler.max_concurrent_jobs", cfg.Scheduler.MaxConcurrentJobs)
	v.Set("scheduler.spool_dir", cfg.Scheduler.SpoolDir)
	v.Set("scheduler.stop_grace", cfg.Scheduler.StopGrace.String())
	v.Set("storage.path", cfg.Storage.Path)
	v.Set("logging.path", cfg.Logging.Path)

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "")
	v.SetDefault("anthropic.use_bedrock", false)
	v.SetDefault("anthropic.aws_region", "")
	v.SetDefault("anthropic.aws_profile", "")

	v.SetDefault("executor.max_concurrency", 3)
	v.SetDefault("executor.node_timeout", "10m")
	v.SetDefault("executor.graph_timeout", "0s")
	v.SetDefault("executor.optimize_delegation", false)

	v.SetDefault("scheduler.check_interval", "30s")
	v.SetDefault("scheduler.max_concurrent_jobs", 5)
	v.SetDefault("scheduler.spool_dir", "")
	v.SetDefault("scheduler.stop_grace", "30s")

	v.SetDefault("storage.path", "")
	v.SetDefault("logging.path", "")
}

// getUserConfigDir returns the XDG config directory for stagehand.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "stagehand")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "stagehand")
	}
	return filepath.Join(home, ".config", "stagehand")
}

// findProjectConfig searches for .stagehand.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".stagehand.yaml")
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

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Executor: ExecutorConfig{
			MaxConcurrency: 3,
			NodeTimeout:    10 * time.Minute,
		},
		Scheduler: SchedulerConfig{
			CheckInterval:     30 * time.Second,
			MaxConcurrentJobs: 5,
			StopGrace:         30 * time.Second,
		},
	}
}
