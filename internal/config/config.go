// Package config loads talkback configuration from a YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Provider kinds accepted in the providers section.
const (
	KindOpenAI     = "openai"
	KindGemini     = "gemini"
	KindElevenLabs = "elevenlabs"
	KindMock       = "mock"
)

// Config is the root configuration document.
type Config struct {
	Server    Server    `yaml:"server"`
	Pipeline  Pipeline  `yaml:"pipeline"`
	Providers Providers `yaml:"providers"`
	Log       Log       `yaml:"log"`
}

// Server configures the HTTP transport.
type Server struct {
	Addr           string        `yaml:"addr"`
	MaxUploadBytes int           `yaml:"max_upload_bytes"`
	RateLimit      RateLimit     `yaml:"rate_limit"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	CORSOrigins    string        `yaml:"cors_origins"`
}

// RateLimit is a sliding window ceiling per request source.
type RateLimit struct {
	Max    int           `yaml:"max"`
	Window time.Duration `yaml:"window"`
}

// Pipeline configures the turn orchestrator.
type Pipeline struct {
	DefaultVoice string        `yaml:"default_voice"` // empty picks the synthesis provider's default
	SystemPrompt string        `yaml:"system_prompt"`
	HistoryLimit int           `yaml:"history_limit"`
	Timeouts     Timeouts      `yaml:"timeouts"`
	Retry        Retry         `yaml:"retry"`
	SpoolDir     string        `yaml:"spool_dir"`
	SessionTTL   time.Duration `yaml:"session_ttl"`
}

// Timeouts bound each provider call.
type Timeouts struct {
	Transcription time.Duration `yaml:"transcription"`
	Completion    time.Duration `yaml:"completion"`
	Synthesis     time.Duration `yaml:"synthesis"`
}

// Retry applies to the transcription and synthesis stages only.
type Retry struct {
	MaxAttempts int           `yaml:"max_attempts"`
	Backoff     time.Duration `yaml:"backoff"`
}

// Providers selects and configures the three external providers.
type Providers struct {
	Transcription Provider `yaml:"transcription"`
	Completion    Provider `yaml:"completion"`
	Synthesis     Provider `yaml:"synthesis"`
}

// Provider describes one provider adapter. An empty Model uses the
// adapter's default.
type Provider struct {
	Kind     string `yaml:"kind"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"`
	Language string `yaml:"language"`
}

// Log configures internal/log.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: Server{
			Addr:           ":8080",
			MaxUploadBytes: 10 << 20,
			RateLimit: RateLimit{
				Max:    20,
				Window: time.Minute,
			},
			ReadTimeout:  60 * time.Second,
			WriteTimeout: 120 * time.Second,
			CORSOrigins:  "*",
		},
		Pipeline: Pipeline{
			SystemPrompt: "You are a friendly voice assistant. Keep replies short and conversational, since they will be spoken aloud.",
			Timeouts: Timeouts{
				Transcription: 30 * time.Second,
				Completion:    45 * time.Second,
				Synthesis:     30 * time.Second,
			},
			Retry: Retry{
				MaxAttempts: 1,
				Backoff:     250 * time.Millisecond,
			},
		},
		Providers: Providers{
			Transcription: Provider{Kind: KindOpenAI},
			Completion:    Provider{Kind: KindOpenAI},
			Synthesis:     Provider{Kind: KindOpenAI},
		},
		Log: Log{
			Level: "info",
		},
	}
}

// Load reads the YAML file at path (if non-empty) over the defaults and then
// applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.ApplyEnv(os.Getenv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables.
// Keys left empty in the environment keep their configured values.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("TALKBACK_ADDR"); v != "" {
		c.Server.Addr = v
	} else if v := getenv("PORT"); v != "" {
		c.Server.Addr = ":" + v
	}
	if v := getenv("TALKBACK_MAX_UPLOAD_BYTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Server.MaxUploadBytes = n
		}
	}
	if v := getenv("TALKBACK_DEFAULT_VOICE"); v != "" {
		c.Pipeline.DefaultVoice = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}

	openaiKey := getenv("OPENAI_API_KEY")
	geminiKey := getenv("GEMINI_API_KEY")
	if geminiKey == "" {
		geminiKey = getenv("GOOGLE_API_KEY")
	}
	elevenKey := getenv("ELEVENLABS_API_KEY")

	for _, p := range []*Provider{&c.Providers.Transcription, &c.Providers.Completion, &c.Providers.Synthesis} {
		if p.APIKey != "" {
			continue
		}
		switch p.Kind {
		case KindOpenAI:
			p.APIKey = openaiKey
		case KindGemini:
			p.APIKey = geminiKey
		case KindElevenLabs:
			p.APIKey = elevenKey
		}
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Server.MaxUploadBytes <= 0 {
		errs = append(errs, fmt.Errorf("server.max_upload_bytes must be positive, got %d", c.Server.MaxUploadBytes))
	}
	if c.Server.RateLimit.Max < 0 {
		errs = append(errs, fmt.Errorf("server.rate_limit.max must not be negative, got %d", c.Server.RateLimit.Max))
	}
	if c.Server.RateLimit.Max > 0 && c.Server.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("server.rate_limit.window must be positive when max is set"))
	}
	if c.Pipeline.Retry.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("pipeline.retry.max_attempts must be at least 1, got %d", c.Pipeline.Retry.MaxAttempts))
	}
	if c.Pipeline.HistoryLimit < 0 {
		errs = append(errs, fmt.Errorf("pipeline.history_limit must not be negative, got %d", c.Pipeline.HistoryLimit))
	}

	for _, check := range []struct {
		name    string
		timeout time.Duration
	}{
		{"transcription", c.Pipeline.Timeouts.Transcription},
		{"completion", c.Pipeline.Timeouts.Completion},
		{"synthesis", c.Pipeline.Timeouts.Synthesis},
	} {
		if check.timeout <= 0 {
			errs = append(errs, fmt.Errorf("pipeline.timeouts.%s must be positive", check.name))
		}
	}

	errs = append(errs,
		validateProvider("transcription", c.Providers.Transcription, KindOpenAI, KindMock),
		validateProvider("completion", c.Providers.Completion, KindOpenAI, KindGemini, KindMock),
		validateProvider("synthesis", c.Providers.Synthesis, KindOpenAI, KindElevenLabs, KindMock),
	)

	return errors.Join(errs...)
}

func validateProvider(stage string, p Provider, kinds ...string) error {
	known := false
	for _, k := range kinds {
		if p.Kind == k {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("providers.%s.kind %q not supported (want one of %v)", stage, p.Kind, kinds)
	}
	if p.Kind != KindMock && p.APIKey == "" {
		return fmt.Errorf("providers.%s: api key required for %s", stage, p.Kind)
	}
	return nil
}
