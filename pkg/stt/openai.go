package stt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/ayusha001100/talkback/internal/httpc"
)

const providerOpenAI = "openai"

// OpenAI transcription models.
const (
	ModelWhisper1            = "whisper-1"
	ModelGPT4oTranscribe     = "gpt-4o-transcribe"
	ModelGPT4oMiniTranscribe = "gpt-4o-mini-transcribe"
)

// OpenAI implements Provider using the OpenAI audio transcription endpoint.
type OpenAI struct {
	config *Config
	client openai.Client
	http   *http.Client
	logger *slog.Logger
}

// NewOpenAI creates a new OpenAI transcription provider.
func NewOpenAI(opts ...Option) (*OpenAI, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = httpc.NewClient(cfg.Timeout)
	}

	// Retries belong to the caller.
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
		logger: cfg.Logger.With("component", "stt.openai"),
	}, nil
}

// Transcribe uploads the clip and returns the recognized text.
func (o *OpenAI) Transcribe(ctx context.Context, audio []byte, mimeHint string) (*Transcript, error) {
	if len(audio) == 0 {
		return nil, WrapError(providerOpenAI, ErrEmptyAudio)
	}

	start := time.Now()
	contentType := NormalizeMIME(mimeHint)

	params := openai.AudioTranscriptionNewParams{
		File:  openai.File(bytes.NewReader(audio), Filename(contentType), contentType),
		Model: openai.AudioModel(o.config.Model),
	}
	if o.config.Language != "" {
		params.Language = openai.String(o.config.Language)
	}

	resp, err := o.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return nil, o.convertError(err)
	}

	latency := time.Since(start).Milliseconds()

	o.logger.Debug("transcribed audio",
		"bytes", len(audio),
		"mime", contentType,
		"chars", len(resp.Text),
		"latency_ms", latency,
	)

	return &Transcript{
		Text:      resp.Text,
		Language:  o.config.Language,
		LatencyMs: latency,
	}, nil
}

// Close releases resources.
func (o *OpenAI) Close() error {
	o.http.CloseIdleConnections()
	return nil
}

// Model returns the configured model.
func (o *OpenAI) Model() string {
	return o.config.Model
}

// convertError normalizes SDK errors to APIError, leaving context errors intact.
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
	return WrapError(providerOpenAI, fmt.Errorf("transcribe: %w", err))
}

// Verify OpenAI implements Provider at compile time.
var _ Provider = (*OpenAI)(nil)
