package tts

import (
	"log/slog"
	"net/http"
	"time"
)

// Config is shared by the synthesis adapters. Each constructor seeds its
// own model and voice before applying options, so DefaultConfig leaves
// both empty.
type Config struct {
	APIKey  string
	BaseURL string

	VoiceID       string // used when Synthesize is called without a voice
	ModelID       string
	VoiceSettings VoiceSettings
	OutputFormat  Encoding

	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

type Option func(*Config)

func WithAPIKey(key string) Option  { return func(c *Config) { c.APIKey = key } }
func WithBaseURL(u string) Option   { return func(c *Config) { c.BaseURL = u } }
func WithVoice(id string) Option    { return func(c *Config) { c.VoiceID = id } }
func WithModel(model string) Option { return func(c *Config) { c.ModelID = model } }

// WithOutputFormat selects the encoding requested from ElevenLabs. The
// OpenAI adapter always asks for MP3.
func WithOutputFormat(f Encoding) Option { return func(c *Config) { c.OutputFormat = f } }

func WithVoiceSettings(s VoiceSettings) Option { return func(c *Config) { c.VoiceSettings = s } }

// WithTimeout bounds a single request when no HTTP client is supplied.
func WithTimeout(d time.Duration) Option { return func(c *Config) { c.Timeout = d } }

func WithHTTPClient(hc *http.Client) Option { return func(c *Config) { c.HTTPClient = hc } }
func WithLogger(l *slog.Logger) Option      { return func(c *Config) { c.Logger = l } }

func DefaultConfig() *Config {
	return &Config{
		OutputFormat:  EncodingMP3,
		VoiceSettings: DefaultVoiceSettings(),
		Timeout:       30 * time.Second,
		Logger:        slog.Default(),
	}
}

func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate requires an API key, and a default voice when needVoice is set.
func (c *Config) Validate(needVoice bool) error {
	switch {
	case c.APIKey == "":
		return ErrNoAPIKey
	case needVoice && c.VoiceID == "":
		return ErrNoVoiceID
	}
	return nil
}
