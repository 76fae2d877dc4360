package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigPath is used when --config is not provided.
	DefaultConfigPath = "config.yml"

	defaultPort             = 2442
	defaultEnv              = "development"
	defaultMinTextLength    = 10
	defaultExcerptMaxLength = 200
	defaultGenerationTO     = 60
	defaultSpeechTO         = 120
	defaultSpeechModel      = "gpt-4o-mini-tts"
	defaultPrice            = "0.004"
	defaultSpeechSurcharge  = "0.015"
)

// Load reads and validates the YAML config file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := &AppConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) applyDefaults() {
	if c.Port == 0 {
		c.Port = defaultPort
	}
	if strings.TrimSpace(c.Env) == "" {
		c.Env = defaultEnv
	}
	if c.Limits.MinTextLength <= 0 {
		c.Limits.MinTextLength = defaultMinTextLength
	}
	if c.Limits.ExcerptMaxLength <= 0 {
		c.Limits.ExcerptMaxLength = defaultExcerptMaxLength
	}
	if c.AI.GenerationTimeoutSeconds <= 0 {
		c.AI.GenerationTimeoutSeconds = defaultGenerationTO
	}
	if c.AI.SpeechTimeoutSeconds <= 0 {
		c.AI.SpeechTimeoutSeconds = defaultSpeechTO
	}
	if strings.TrimSpace(c.AI.Speech.Model) == "" {
		c.AI.Speech.Model = defaultSpeechModel
	}
	if strings.TrimSpace(c.Pricing.Default) == "" {
		c.Pricing.Default = defaultPrice
	}
	if strings.TrimSpace(c.Pricing.SpeechSurcharge) == "" {
		c.Pricing.SpeechSurcharge = defaultSpeechSurcharge
	}
	if c.Pricing.Actions == nil {
		c.Pricing.Actions = map[string]string{}
	}
}

func (c *AppConfig) validate() error {
	if strings.TrimSpace(c.DSN) == "" {
		return fmt.Errorf("config: dsn is required")
	}
	enabled := 0
	for _, p := range c.AI.Providers {
		if p.Enabled {
			enabled++
		}
	}
	if enabled == 0 {
		return fmt.Errorf("config: at least one enabled ai provider is required")
	}
	return nil
}

// IsDev reports whether the app runs in development mode.
func (c *AppConfig) IsDev() bool {
	return strings.EqualFold(strings.TrimSpace(c.Env), "development")
}

// GenerationTimeout bounds one text/structured provider call.
func (c *AIConfig) GenerationTimeout() time.Duration {
	return time.Duration(c.GenerationTimeoutSeconds) * time.Second
}

// SpeechTimeout bounds one speech-synthesis call.
func (c *AIConfig) SpeechTimeout() time.Duration {
	return time.Duration(c.SpeechTimeoutSeconds) * time.Second
}
