package inference

import (
	"log/slog"
	"net/http"
	"time"
)

// Config is shared by the completion adapters. MaxTokens stays small
// because replies are spoken aloud.
type Config struct {
	APIKey     string
	BaseURL    string // any OpenAI-compatible endpoint, e.g. a local Ollama
	HTTPClient *http.Client
	Timeout    time.Duration

	Model       string
	MaxTokens   int
	Temperature float64

	Logger *slog.Logger
}

type Option func(*Config)

func WithAPIKey(key string) Option          { return func(c *Config) { c.APIKey = key } }
func WithBaseURL(u string) Option           { return func(c *Config) { c.BaseURL = u } }
func WithHTTPClient(hc *http.Client) Option { return func(c *Config) { c.HTTPClient = hc } }
func WithTimeout(d time.Duration) Option    { return func(c *Config) { c.Timeout = d } }
func WithModel(model string) Option         { return func(c *Config) { c.Model = model } }
func WithMaxTokens(n int) Option            { return func(c *Config) { c.MaxTokens = n } }
func WithTemperature(t float64) Option      { return func(c *Config) { c.Temperature = t } }
func WithLogger(l *slog.Logger) Option      { return func(c *Config) { c.Logger = l } }

func DefaultConfig() *Config {
	return &Config{
		Model:       ModelGPT4oMini,
		MaxTokens:   512,
		Temperature: 0.7,
		Timeout:     45 * time.Second,
		Logger:      slog.Default(),
	}
}

func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

func (c *Config) Validate() error {
	switch {
	case c.APIKey == "":
		return ErrNoAPIKey
	case c.Model == "":
		return ErrNoModel
	}
	return nil
}
