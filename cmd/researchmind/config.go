package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/researchmind/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify researchmind configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/researchmind/config.yaml
Project-specific overrides can be placed in .researchmind.yaml`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		switch len(args) {
		case 0:
			for _, key := range configKeys {
				value, _ := getConfigValue(cfg, key)
				fmt.Printf("%s: %s\n", key, value)
			}
			fmt.Printf("\nuser config: %s\n", config.GetUserConfigPath())
			if p := config.GetProjectConfigPath(); p != "" {
				fmt.Printf("project config: %s\n", p)
			}
			return nil
		case 1:
			value, err := getConfigValue(cfg, args[0])
			if err != nil {
				return err
			}
			fmt.Println(value)
			return nil
		default:
			if err := setConfigValue(cfg, args[0], args[1]); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := config.Save(cfg); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			fmt.Printf("Set %s = %s\n", args[0], args[1])
			return nil
		}
	},
}

// configKeys lists the keys config shows, in display order.
var configKeys = []string{
	"anthropic.api_key",
	"anthropic.model",
	"anthropic.bedrock",
	"orchestrator.task_timeout",
	"orchestrator.stage_timeout",
	"orchestrator.plan_deadline",
	"orchestrator.max_retries",
	"orchestrator.failure_threshold",
	"orchestrator.default_complexity",
	"orchestrator.urgent_parallel",
	"orchestrator.infer_complexity",
	"orchestrator.max_concurrent_runs",
	"registry.catalog",
	"registry.include_defaults",
	"state.enabled",
	"state.path",
	"server.addr",
	"metrics.enabled",
	"health.signals_dir",
	"health.check_interval",
	"log.path",
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	o := cfg.Orchestrator
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		source := config.GetAPIKeySource(cfg)
		switch source {
		case config.KeySourceNone:
			return "(not set)", nil
		case config.KeySourceBedrock:
			return "(using AWS Bedrock credentials)", nil
		}
		key, _ := config.GetAPIKey(cfg)
		return fmt.Sprintf("%s (%s)", config.MaskAPIKey(key), source), nil
	case "anthropic.model":
		return cfg.Anthropic.Model, nil
	case "anthropic.bedrock":
		return strconv.FormatBool(cfg.Anthropic.UseBedrock), nil
	case "orchestrator.task_timeout":
		return o.TaskTimeout.String(), nil
	case "orchestrator.stage_timeout":
		return o.StageTimeout.String(), nil
	case "orchestrator.plan_deadline":
		return o.PlanDeadline.String(), nil
	case "orchestrator.max_retries":
		return strconv.Itoa(o.MaxRetries), nil
	case "orchestrator.failure_threshold":
		return strconv.Itoa(o.FailureThreshold), nil
	case "orchestrator.default_complexity":
		return o.DefaultComplexity, nil
	case "orchestrator.urgent_parallel":
		return strconv.FormatBool(o.UrgentParallel), nil
	case "orchestrator.infer_complexity":
		return strconv.FormatBool(o.InferComplexity), nil
	case "orchestrator.max_concurrent_runs":
		return strconv.Itoa(o.MaxConcurrentRuns), nil
	case "registry.catalog":
		return orUnset(cfg.Registry.Catalog), nil
	case "registry.include_defaults":
		return strconv.FormatBool(cfg.Registry.IncludeDefaults), nil
	case "state.enabled":
		return strconv.FormatBool(cfg.State.Enabled), nil
	case "state.path":
		return cfg.StatePath(), nil
	case "server.addr":
		return cfg.Server.Addr, nil
	case "metrics.enabled":
		return strconv.FormatBool(cfg.Metrics.Enabled), nil
	case "health.signals_dir":
		return cfg.SignalsDir(), nil
	case "health.check_interval":
		return cfg.Health.CheckInterval.String(), nil
	case "log.path":
		return orUnset(cfg.Log.Path), nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.Config, key, value string) error {
	o := &cfg.Orchestrator
	var err error
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		if err := config.ValidateAPIKey(value); err != nil {
			return err
		}
		cfg.Anthropic.APIKey = value
	case "anthropic.model":
		cfg.Anthropic.Model = value
	case "anthropic.bedrock":
		cfg.Anthropic.UseBedrock, err = parseBool(key, value)
	case "orchestrator.task_timeout":
		o.TaskTimeout, err = parseDuration(key, value)
	case "orchestrator.stage_timeout":
		o.StageTimeout, err = parseDuration(key, value)
	case "orchestrator.plan_deadline":
		o.PlanDeadline, err = parseDuration(key, value)
	case "orchestrator.max_retries":
		o.MaxRetries, err = parseInt(key, value)
	case "orchestrator.failure_threshold":
		o.FailureThreshold, err = parseInt(key, value)
	case "orchestrator.default_complexity":
		o.DefaultComplexity = value
	case "orchestrator.urgent_parallel":
		o.UrgentParallel, err = parseBool(key, value)
	case "orchestrator.infer_complexity":
		o.InferComplexity, err = parseBool(key, value)
	case "orchestrator.max_concurrent_runs":
		o.MaxConcurrentRuns, err = parseInt(key, value)
	case "registry.catalog":
		cfg.Registry.Catalog = value
	case "registry.include_defaults":
		cfg.Registry.IncludeDefaults, err = parseBool(key, value)
	case "state.enabled":
		cfg.State.Enabled, err = parseBool(key, value)
	case "state.path":
		cfg.State.Path = value
	case "server.addr":
		cfg.Server.Addr = value
	case "metrics.enabled":
		cfg.Metrics.Enabled, err = parseBool(key, value)
	case "health.signals_dir":
		cfg.Health.SignalsDir = value
	case "health.check_interval":
		cfg.Health.CheckInterval, err = parseDuration(key, value)
	case "log.path":
		cfg.Log.Path = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return err
}

func parseBool(key, value string) (bool, error) {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid boolean for %s: %w", key, err)
	}
	return b, nil
}

func parseDuration(key, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %w", key, err)
	}
	return d, nil
}

func parseInt(key, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return n, nil
}

func orUnset(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}
