package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ShayCichocki/researchmind/pkg/models"
)

// ErrNoAPIKey is returned when an anthropic agent is configured without a key.
var ErrNoAPIKey = errors.New("no Anthropic API key configured")

// GetAPIKey returns the Anthropic API key, preferring ANTHROPIC_API_KEY
// over the config file.
func GetAPIKey(cfg *Config) (string, error) {
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		return key, nil
	}
	if key := configKey(cfg); key != "" {
		return key, nil
	}
	return "", ErrNoAPIKey
}

func configKey(cfg *Config) string {
	if cfg == nil || cfg.Anthropic.APIKey == "" {
		return ""
	}
	key := os.ExpandEnv(cfg.Anthropic.APIKey)
	if strings.HasPrefix(key, "${") {
		return ""
	}
	return key
}

// ValidateAPIKey checks the key format. It does not call the API.
func ValidateAPIKey(key string) error {
	if key == "" {
		return ErrNoAPIKey
	}
	if !strings.HasPrefix(key, "sk-ant-") {
		return errors.New("invalid API key format: expected 'sk-ant-' prefix")
	}
	if len(key) < 20 {
		return errors.New("invalid API key format: key too short")
	}
	return nil
}

// MaskAPIKey returns the key with everything but its prefix and last four
// characters hidden.
func MaskAPIKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	if len(key) <= 15 {
		return "***"
	}
	return key[:7] + "..." + key[len(key)-4:]
}

// KeySource represents where Anthropic credentials come from.
type KeySource string

const (
	KeySourceEnv     KeySource = "environment"
	KeySourceConfig  KeySource = "config_file"
	KeySourceBedrock KeySource = "aws_bedrock"
	KeySourceNone    KeySource = "none"
)

// GetAPIKeySource returns where Anthropic credentials are sourced from.
func GetAPIKeySource(cfg *Config) KeySource {
	switch {
	case cfg != nil && cfg.Anthropic.UseBedrock:
		return KeySourceBedrock
	case os.Getenv("ANTHROPIC_API_KEY") != "":
		return KeySourceEnv
	case configKey(cfg) != "":
		return KeySourceConfig
	default:
		return KeySourceNone
	}
}

// CheckCredentials fails when an agent of the catalog uses the anthropic
// transport but no credentials are available. Bedrock relies on the AWS
// credential chain and is not checked here.
func CheckCredentials(cfg *Config, agents []models.AgentDescriptor) error {
	var needs []string
	for _, a := range agents {
		if a.Transport.Kind == models.TransportAnthropic {
			needs = append(needs, a.ID)
		}
	}
	if len(needs) == 0 || GetAPIKeySource(cfg) != KeySourceNone {
		return nil
	}
	return fmt.Errorf("%w: required by %s", ErrNoAPIKey, strings.Join(needs, ", "))
}
