package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/ayusha001100/talkback/internal/httpc"
)

const providerOpenAI = "openai"

// OpenAI voice options
const (
	VoiceAlloy   = "alloy"   // Neutral voice
	VoiceAsh     = "ash"     // Warm male voice
	VoiceCoral   = "coral"   // Bright female voice
	VoiceEcho    = "echo"    // Male voice
	VoiceFable   = "fable"   // British accent
	VoiceOnyx    = "onyx"    // Deep male voice
	VoiceNova    = "nova"    // Female voice
	VoiceSage    = "sage"    // Calm voice
	VoiceShimmer = "shimmer" // Soft female voice
)

// OpenAI model options
const (
	ModelTTS1        = "tts-1"           // Standard quality, faster
	ModelTTS1HD      = "tts-1-hd"        // Higher quality, slower
	ModelGPT4oMiniTT = "gpt-4o-mini-tts" // Steerable, newest
)

// OpenAI implements Provider for OpenAI TTS.
type OpenAI struct {
	config *Config
	client openai.Client
	http   *http.Client
	logger *slog.Logger
}

// NewOpenAI creates a new OpenAI TTS provider.
func NewOpenAI(opts ...Option) (*OpenAI, error) {
	cfg := DefaultConfig()
	cfg.ModelID = ModelTTS1
	cfg.VoiceID = VoiceAlloy
	cfg.Apply(opts...)

	if err := cfg.Validate(false); err != nil {
		return nil, err
	}
	if cfg.VoiceID == "" {
		cfg.VoiceID = VoiceAlloy
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = httpc.NewClient(cfg.Timeout)
	}

	clientOpts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAI{
		config: cfg,
		client: openai.NewClient(clientOpts...),
		http:   httpClient,
		logger: cfg.Logger.With("component", "tts.openai"),
	}, nil
}

// Synthesize converts text to MP3 audio in one of the built-in voices.
func (o *OpenAI) Synthesize(ctx context.Context, text, voice string) (*AudioResult, error) {
	if text == "" {
		return nil, WrapError(providerOpenAI, ErrEmptyText)
	}
	if voice == "" {
		voice = o.config.VoiceID
	}
	if !Voices(providerOpenAI).Accepts(voice) {
		return nil, WrapError(providerOpenAI, fmt.Errorf("%w: %q", ErrUnknownVoice, voice))
	}

	start := time.Now()

	resp, err := o.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Input:          text,
		Model:          openai.SpeechModel(o.config.ModelID),
		Voice:          openai.AudioSpeechNewParamsVoice(voice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatMP3,
	})
	if err != nil {
		return nil, o.convertError(err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, WrapError(providerOpenAI, fmt.Errorf("read response: %w", err))
	}

	latency := time.Since(start).Milliseconds()

	o.logger.Debug("synthesized audio",
		"chars", len(text),
		"bytes", len(audio),
		"latency_ms", latency,
		"voice", voice,
	)

	return &AudioResult{
		Audio: audio,
		Format: AudioFormat{
			Encoding:   EncodingMP3,
			SampleRate: 24000,
			Channels:   1,
		},
		Voice:     voice,
		CharCount: len(text),
		LatencyMs: latency,
	}, nil
}

// Health checks API connectivity by fetching the configured model.
func (o *OpenAI) Health(ctx context.Context) error {
	if _, err := o.client.Models.Get(ctx, o.config.ModelID); err != nil {
		return o.convertError(err)
	}
	return nil
}

// Close releases resources held by the provider.
func (o *OpenAI) Close() error {
	o.http.CloseIdleConnections()
	return nil
}

func (o *OpenAI) convertError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &APIError{
			StatusCode: apiErr.StatusCode,
			Message:    apiErr.Message,
			Code:       apiErr.Code,
			Provider:   providerOpenAI,
		}
	}
	return WrapError(providerOpenAI, fmt.Errorf("speech: %w", err))
}

// Verify OpenAI implements Provider at compile time.
var _ Provider = (*OpenAI)(nil)
