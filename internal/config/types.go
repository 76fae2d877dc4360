package config

// AppConfig holds runtime startup configuration loaded from YAML.
type AppConfig struct {
	Port           int           `yaml:"port"`
	DSN            string        `yaml:"dsn"` // MySQL DSN
	RedisURL       string        `yaml:"redis_url"`
	Env            string        `yaml:"env"` // "development" | "production"
	AllowedOrigins []string      `yaml:"allowed_origins"`
	JWTSecret      string        `yaml:"jwt_secret"`
	AI             AIConfig      `yaml:"ai"`
	Pricing        PricingConfig `yaml:"pricing"`
	Limits         LimitsConfig  `yaml:"limits"`
}

// AIConfig configures generation providers and speech synthesis.
type AIConfig struct {
	Providers                []AIProvider `yaml:"providers"`
	Speech                   SpeechConfig `yaml:"speech"`
	GenerationTimeoutSeconds int          `yaml:"generation_timeout_seconds"`
	SpeechTimeoutSeconds     int          `yaml:"speech_timeout_seconds"`
}

// AIProvider describes one generation backend.
type AIProvider struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	Type         string `yaml:"type"` // OpenAI | OpenAI-Compatible | Anthropic
	APIKey       string `yaml:"api_key"`
	Endpoint     string `yaml:"endpoint,omitempty"`
	DefaultModel string `yaml:"default_model"`
	Enabled      bool   `yaml:"enabled"`
}

// SpeechConfig configures the speech-synthesis backend. An empty APIKey
// disables synthesis entirely; audio requests then degrade to script-only.
type SpeechConfig struct {
	APIKey   string `yaml:"api_key"`
	Endpoint string `yaml:"endpoint,omitempty"`
	Model    string `yaml:"model"`
}

// PricingConfig is the per-action pricing table. Values are decimal strings
// parsed once at startup; the table is injected, never read from globals.
type PricingConfig struct {
	Default         string            `yaml:"default"`
	Actions         map[string]string `yaml:"actions"`
	SpeechSurcharge string            `yaml:"speech_surcharge"`
}

// LimitsConfig bounds request inputs and stored excerpts.
type LimitsConfig struct {
	MinTextLength    int `yaml:"min_text_length"`
	ExcerptMaxLength int `yaml:"excerpt_max_length"`
}
