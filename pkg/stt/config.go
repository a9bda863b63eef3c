package stt

import (
	"log/slog"
	"net/http"
	"time"
)

// Config configures the OpenAI transcription adapter. BaseURL may point at
// any server that speaks the /audio/transcriptions API.
type Config struct {
	APIKey   string
	BaseURL  string
	Model    string
	Language string // ISO-639-1 hint; empty lets the model detect it

	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

type Option func(*Config)

func WithAPIKey(key string) Option          { return func(c *Config) { c.APIKey = key } }
func WithBaseURL(u string) Option           { return func(c *Config) { c.BaseURL = u } }
func WithModel(model string) Option         { return func(c *Config) { c.Model = model } }
func WithLanguage(lang string) Option       { return func(c *Config) { c.Language = lang } }
func WithTimeout(d time.Duration) Option    { return func(c *Config) { c.Timeout = d } }
func WithHTTPClient(hc *http.Client) Option { return func(c *Config) { c.HTTPClient = hc } }
func WithLogger(l *slog.Logger) Option      { return func(c *Config) { c.Logger = l } }

// DefaultConfig uses whisper-1 with a timeout sized for clips of a minute
// or so.
func DefaultConfig() *Config {
	return &Config{Model: ModelWhisper1, Timeout: 30 * time.Second, Logger: slog.Default()}
}

func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrNoAPIKey
	}
	return nil
}
