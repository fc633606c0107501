// Package config handles configuration loading and management for researchmind.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ShayCichocki/researchmind/internal/agent"
	"github.com/ShayCichocki/researchmind/internal/manager"
	"github.com/ShayCichocki/researchmind/internal/orchestrator/policy"
	"github.com/ShayCichocki/researchmind/internal/registry"
	"github.com/ShayCichocki/researchmind/pkg/models"
)

const (
	appName           = "researchmind"
	projectConfigName = ".researchmind.yaml"
	envPrefix         = "RESEARCHMIND"
)

// Config holds all configuration for researchmind.
type Config struct {
	Orchestrator OrchestratorConfig             `mapstructure:"orchestrator"`
	Registry     RegistryConfig                 `mapstructure:"registry"`
	Agents       []models.AgentDescriptor       `mapstructure:"agents"`
	Pipelines    map[string][]models.Capability `mapstructure:"pipelines"`
	Anthropic    AnthropicConfig                `mapstructure:"anthropic"`
	State        StateConfig                    `mapstructure:"state"`
	Server       ServerConfig                   `mapstructure:"server"`
	Metrics      MetricsConfig                  `mapstructure:"metrics"`
	Health       HealthConfig                   `mapstructure:"health"`
	Log          LogConfig                      `mapstructure:"log"`
}

// OrchestratorConfig holds routing and execution thresholds.
type OrchestratorConfig struct {
	TaskTimeout       time.Duration `mapstructure:"task_timeout"`
	StageTimeout      time.Duration `mapstructure:"stage_timeout"`
	PlanDeadline      time.Duration `mapstructure:"plan_deadline"`
	MaxRetries        int           `mapstructure:"max_retries"`
	FailureThreshold  int           `mapstructure:"failure_threshold"`
	OutcomeLogSize    int           `mapstructure:"outcome_log_size"`
	DefaultComplexity string        `mapstructure:"default_complexity"`
	UrgentParallel    bool          `mapstructure:"urgent_parallel"`
	InferComplexity   bool          `mapstructure:"infer_complexity"`
	EventBuffer       int           `mapstructure:"event_buffer"`
	RetainRuns        int           `mapstructure:"retain_runs"`
	MaxConcurrentRuns int           `mapstructure:"max_concurrent_runs"`
}

// RegistryConfig selects where agent descriptors come from.
type RegistryConfig struct {
	// Catalog is an optional YAML catalog file of agents and pipelines.
	Catalog string `mapstructure:"catalog"`
	// IncludeDefaults keeps the bundled research agents and pipelines.
	IncludeDefaults bool `mapstructure:"include_defaults"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey     string `mapstructure:"api_key"`
	Model      string `mapstructure:"model"`
	MaxTokens  int64  `mapstructure:"max_tokens"`
	UseBedrock bool   `mapstructure:"bedrock"`
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
	BaseURL    string `mapstructure:"base_url"`
}

// StateConfig holds run history settings.
type StateConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Path is the SQLite database file. Empty means the XDG data directory.
	Path string `mapstructure:"path"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// HealthConfig holds agent health settings.
type HealthConfig struct {
	// SignalsDir is watched for reset-<agent> and offline-<agent> files.
	SignalsDir string `mapstructure:"signals_dir"`
	// CheckInterval is how often Error agents are pinged. Zero disables checks.
	CheckInterval time.Duration `mapstructure:"check_interval"`
}

// LogConfig holds debug log settings.
type LogConfig struct {
	// Path is the debug log file. Empty disables debug logging.
	Path string `mapstructure:"path"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY, RESEARCHMIND_*)
// 2. Project config (.researchmind.yaml in current directory or parent)
// 3. User config (~/.config/researchmind/config.yaml)
// 4. Built-in defaults
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
		if err := projectViper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading project config %s: %w", projectConfig, err)
		}
		if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
	}

	return decode(v)
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)
	cfg.Registry.Catalog = expandEnv(cfg.Registry.Catalog)
	cfg.State.Path = expandEnv(cfg.State.Path)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the current configuration to the user config file.
// Agents and pipelines are left to catalog files.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(filepath.Join(userConfigDir, "config.yaml"))

	o := cfg.Orchestrator
	v.Set("orchestrator.task_timeout", o.TaskTimeout.String())
	v.Set("orchestrator.stage_timeout", o.StageTimeout.String())
	v.Set("orchestrator.plan_deadline", o.PlanDeadline.String())
	v.Set("orchestrator.max_retries", o.MaxRetries)
	v.Set("orchestrator.failure_threshold", o.FailureThreshold)
	v.Set("orchestrator.outcome_log_size", o.OutcomeLogSize)
	v.Set("orchestrator.default_complexity", o.DefaultComplexity)
	v.Set("orchestrator.urgent_parallel", o.UrgentParallel)
	v.Set("orchestrator.infer_complexity", o.InferComplexity)
	v.Set("orchestrator.event_buffer", o.EventBuffer)
	v.Set("orchestrator.retain_runs", o.RetainRuns)
	v.Set("orchestrator.max_concurrent_runs", o.MaxConcurrentRuns)
	v.Set("registry.catalog", cfg.Registry.Catalog)
	v.Set("registry.include_defaults", cfg.Registry.IncludeDefaults)
	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.model", cfg.Anthropic.Model)
	v.Set("anthropic.max_tokens", cfg.Anthropic.MaxTokens)
	v.Set("anthropic.bedrock", cfg.Anthropic.UseBedrock)
	v.Set("anthropic.aws_region", cfg.Anthropic.AWSRegion)
	v.Set("anthropic.aws_profile", cfg.Anthropic.AWSProfile)
	v.Set("anthropic.base_url", cfg.Anthropic.BaseURL)
	v.Set("state.enabled", cfg.State.Enabled)
	v.Set("state.path", cfg.State.Path)
	v.Set("server.addr", cfg.Server.Addr)
	v.Set("metrics.enabled", cfg.Metrics.Enabled)
	v.Set("health.signals_dir", cfg.Health.SignalsDir)
	v.Set("health.check_interval", cfg.Health.CheckInterval.String())
	v.Set("log.path", cfg.Log.Path)

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// DefaultStatePath returns the run history database path under the XDG data directory.
func DefaultStatePath() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, appName, "history.db")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "."+appName, "history.db")
	}
	return filepath.Join(home, ".local", "share", appName, "history.db")
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("orchestrator.task_timeout", d.Orchestrator.TaskTimeout.String())
	v.SetDefault("orchestrator.stage_timeout", d.Orchestrator.StageTimeout.String())
	v.SetDefault("orchestrator.plan_deadline", d.Orchestrator.PlanDeadline.String())
	v.SetDefault("orchestrator.max_retries", d.Orchestrator.MaxRetries)
	v.SetDefault("orchestrator.failure_threshold", d.Orchestrator.FailureThreshold)
	v.SetDefault("orchestrator.outcome_log_size", d.Orchestrator.OutcomeLogSize)
	v.SetDefault("orchestrator.default_complexity", d.Orchestrator.DefaultComplexity)
	v.SetDefault("orchestrator.urgent_parallel", d.Orchestrator.UrgentParallel)
	v.SetDefault("orchestrator.infer_complexity", d.Orchestrator.InferComplexity)
	v.SetDefault("orchestrator.event_buffer", d.Orchestrator.EventBuffer)
	v.SetDefault("orchestrator.retain_runs", d.Orchestrator.RetainRuns)
	v.SetDefault("orchestrator.max_concurrent_runs", d.Orchestrator.MaxConcurrentRuns)

	v.SetDefault("registry.catalog", "")
	v.SetDefault("registry.include_defaults", true)

	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", d.Anthropic.Model)
	v.SetDefault("anthropic.max_tokens", d.Anthropic.MaxTokens)
	v.SetDefault("anthropic.bedrock", false)
	v.SetDefault("anthropic.aws_region", "")
	v.SetDefault("anthropic.aws_profile", "")
	v.SetDefault("anthropic.base_url", "")

	v.SetDefault("state.enabled", true)
	v.SetDefault("state.path", "")
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("health.signals_dir", "")
	v.SetDefault("health.check_interval", d.Health.CheckInterval.String())
	v.SetDefault("log.path", "")
}

// getUserConfigDir returns the XDG config directory for researchmind.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, appName)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", appName)
	}
	return filepath.Join(home, ".config", appName)
}

// findProjectConfig searches for .researchmind.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, projectConfigName)
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
	p := policy.Default()
	return &Config{
		Orchestrator: OrchestratorConfig{
			TaskTimeout:       p.Execution.TaskTimeout,
			StageTimeout:      p.Execution.StageTimeout,
			PlanDeadline:      p.Execution.PlanDeadline,
			MaxRetries:        p.Execution.MaxRetries,
			FailureThreshold:  p.Agents.FailureThreshold,
			OutcomeLogSize:    p.Agents.OutcomeLogSize,
			DefaultComplexity: string(p.Routing.DefaultComplexity),
			UrgentParallel:    p.Routing.UrgentParallel,
			InferComplexity:   p.Routing.InferComplexity,
			EventBuffer:       p.Events.BufferSize,
			RetainRuns:        p.Runs.Retain,
			MaxConcurrentRuns: p.Runs.MaxConcurrent,
		},
		Registry: RegistryConfig{IncludeDefaults: true},
		Anthropic: AnthropicConfig{
			Model:     "claude-sonnet-4-5",
			MaxTokens: 4096,
		},
		State:   StateConfig{Enabled: true},
		Server:  ServerConfig{Addr: "127.0.0.1:8420"},
		Metrics: MetricsConfig{Enabled: true},
		Health:  HealthConfig{CheckInterval: 30 * time.Second},
	}
}

// Validate checks that values are within acceptable ranges, resetting
// out-of-range thresholds to their defaults. It fails only on values that
// cannot be defaulted.
func (c *Config) Validate() error {
	d := Default()
	o := &c.Orchestrator
	if o.TaskTimeout <= 0 {
		o.TaskTimeout = d.Orchestrator.TaskTimeout
	}
	if o.StageTimeout <= 0 {
		o.StageTimeout = d.Orchestrator.StageTimeout
	}
	if o.PlanDeadline <= 0 {
		o.PlanDeadline = d.Orchestrator.PlanDeadline
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = d.Orchestrator.MaxRetries
	}
	if o.FailureThreshold < 1 {
		o.FailureThreshold = d.Orchestrator.FailureThreshold
	}
	if o.OutcomeLogSize < 1 {
		o.OutcomeLogSize = d.Orchestrator.OutcomeLogSize
	}
	if o.EventBuffer < 1 {
		o.EventBuffer = d.Orchestrator.EventBuffer
	}
	if o.RetainRuns < 1 {
		o.RetainRuns = d.Orchestrator.RetainRuns
	}
	if o.MaxConcurrentRuns < 1 {
		o.MaxConcurrentRuns = d.Orchestrator.MaxConcurrentRuns
	}
	if o.DefaultComplexity == "" {
		o.DefaultComplexity = d.Orchestrator.DefaultComplexity
	}
	if !models.Complexity(o.DefaultComplexity).Valid() {
		return fmt.Errorf("orchestrator.default_complexity: invalid value %q", o.DefaultComplexity)
	}
	if c.Anthropic.MaxTokens < 1 {
		c.Anthropic.MaxTokens = d.Anthropic.MaxTokens
	}
	if c.Health.CheckInterval < 0 {
		c.Health.CheckInterval = 0
	}
	if c.Server.Addr == "" {
		c.Server.Addr = d.Server.Addr
	}
	return nil
}

// Policy returns the orchestrator policy described by the configuration.
func (c *Config) Policy() *policy.Config {
	p := policy.Default()
	p.Execution = policy.ExecutionPolicy{
		TaskTimeout:  c.Orchestrator.TaskTimeout,
		StageTimeout: c.Orchestrator.StageTimeout,
		PlanDeadline: c.Orchestrator.PlanDeadline,
		MaxRetries:   c.Orchestrator.MaxRetries,
	}
	p.Routing = policy.RoutingPolicy{
		DefaultComplexity: models.Complexity(c.Orchestrator.DefaultComplexity),
		UrgentParallel:    c.Orchestrator.UrgentParallel,
		InferComplexity:   c.Orchestrator.InferComplexity,
	}
	p.Agents = policy.AgentPolicy{
		FailureThreshold: c.Orchestrator.FailureThreshold,
		OutcomeLogSize:   c.Orchestrator.OutcomeLogSize,
	}
	p.Events.BufferSize = c.Orchestrator.EventBuffer
	p.Runs.Retain = c.Orchestrator.RetainRuns
	p.Runs.MaxConcurrent = c.Orchestrator.MaxConcurrentRuns
	_ = p.Validate()
	return p
}

// ManagerConfig returns the agent manager settings.
func (c *Config) ManagerConfig() manager.Config {
	return manager.Config{
		FailureThreshold: c.Orchestrator.FailureThreshold,
		OutcomeLogSize:   c.Orchestrator.OutcomeLogSize,
	}
}

// AnthropicDeps returns the settings for anthropic transports.
func (c *Config) AnthropicDeps() agent.AnthropicConfig {
	return agent.AnthropicConfig{
		APIKey:     c.Anthropic.APIKey,
		Model:      c.Anthropic.Model,
		MaxTokens:  c.Anthropic.MaxTokens,
		UseBedrock: c.Anthropic.UseBedrock,
		AWSRegion:  c.Anthropic.AWSRegion,
		AWSProfile: c.Anthropic.AWSProfile,
		BaseURL:    c.Anthropic.BaseURL,
	}
}

// Catalog assembles the agent catalog: the bundled defaults (if enabled),
// then the catalog file, then agents and pipelines declared inline.
func (c *Config) Catalog() (registry.Catalog, error) {
	var cat registry.Catalog
	if c.Registry.IncludeDefaults {
		cat = registry.DefaultCatalog()
	}
	if c.Registry.Catalog != "" {
		file, err := registry.LoadCatalog(c.Registry.Catalog)
		if err != nil {
			return registry.Catalog{}, err
		}
		cat = cat.Merge(file)
	}
	return cat.Merge(registry.Catalog{Agents: c.Agents, Pipelines: c.Pipelines}), nil
}

// BuildRegistry validates the assembled catalog.
func (c *Config) BuildRegistry() (*registry.Registry, error) {
	cat, err := c.Catalog()
	if err != nil {
		return nil, err
	}
	return cat.Build()
}

// StatePath returns the history database path, defaulted when empty.
func (c *Config) StatePath() string {
	if c.State.Path != "" {
		return c.State.Path
	}
	return DefaultStatePath()
}

// SignalsDir returns the health signal directory, defaulting to a signals
// directory next to the default history database.
func (c *Config) SignalsDir() string {
	if c.Health.SignalsDir != "" {
		return expandEnv(c.Health.SignalsDir)
	}
	return filepath.Join(filepath.Dir(DefaultStatePath()), "signals")
}
