package voice

import (
	"errors"
	"fmt"
	"time"

	"github.com/ayusha001100/talkback/pkg/tts"
)

// Config holds the tunable parameters of a turn.
type Config struct {
	// Upload limits
	MaxAudioBytes int // Largest clip accepted (default: 10 MiB)

	// Voice selection
	DefaultVoice string        // Used when a request names no voice
	Voices       tts.Catalogue // Voices a request may name

	// Completion
	SystemPrompt string  // Prepended to every completion, never stored
	HistoryLimit int     // Most recent turns sent to the model (0 = all)
	MaxTokens    int     // Zero uses the provider default
	Temperature  float64 // Zero uses the provider default

	// Per-call deadlines
	TranscriptionTimeout time.Duration
	CompletionTimeout    time.Duration
	SynthesisTimeout     time.Duration

	// Retries apply to transcription and synthesis only.
	MaxAttempts int
	Backoff     time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxAudioBytes: 10 << 20,

		DefaultVoice: tts.VoiceAlloy,
		Voices:       tts.Voices("openai"),

		TranscriptionTimeout: 30 * time.Second,
		CompletionTimeout:    45 * time.Second,
		SynthesisTimeout:     30 * time.Second,

		MaxAttempts: 1,
		Backoff:     250 * time.Millisecond,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.MaxAudioBytes <= 0 {
		return errors.New("voice: max audio bytes must be positive")
	}
	if c.TranscriptionTimeout <= 0 || c.CompletionTimeout <= 0 || c.SynthesisTimeout <= 0 {
		return errors.New("voice: stage timeouts must be positive")
	}
	if c.MaxAttempts < 1 {
		return errors.New("voice: max attempts must be at least 1")
	}
	if c.HistoryLimit < 0 {
		return errors.New("voice: history limit must not be negative")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return errors.New("voice: temperature must be between 0 and 2")
	}
	if !c.Voices.Accepts(c.DefaultVoice) {
		return fmt.Errorf("voice: default voice %q not offered by %s", c.DefaultVoice, c.Voices.Kind)
	}
	return nil
}

// WithSystemPrompt returns a copy with the system prompt set.
func (c Config) WithSystemPrompt(prompt string) Config {
	c.SystemPrompt = prompt
	return c
}

// WithVoices returns a copy offering the given catalogue. An empty
// defaultVoice uses the catalogue's own default.
func (c Config) WithVoices(catalogue tts.Catalogue, defaultVoice string) Config {
	c.Voices = catalogue
	c.DefaultVoice = defaultVoice
	if c.DefaultVoice == "" {
		c.DefaultVoice = catalogue.Default
	}
	return c
}

// WithTimeouts returns a copy with per-stage deadlines.
func (c Config) WithTimeouts(transcription, completion, synthesis time.Duration) Config {
	c.TranscriptionTimeout = transcription
	c.CompletionTimeout = completion
	c.SynthesisTimeout = synthesis
	return c
}

// WithRetry returns a copy with the retry policy set.
func (c Config) WithRetry(attempts int, backoff time.Duration) Config {
	c.MaxAttempts = attempts
	c.Backoff = backoff
	return c
}

// WithMaxAudioBytes returns a copy with the upload limit set.
func (c Config) WithMaxAudioBytes(n int) Config {
	c.MaxAudioBytes = n
	return c
}

// WithHistoryLimit returns a copy sending at most n turns to the model.
func (c Config) WithHistoryLimit(n int) Config {
	c.HistoryLimit = n
	return c
}
