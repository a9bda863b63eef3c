package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/ayusha001100/talkback/internal/httpc"
)

const (
	elevenLabsBaseURL  = "https://api.elevenlabs.io/v1"
	providerElevenLabs = "elevenlabs"

	// maxErrorBody bounds how much of a failed response is read.
	maxErrorBody = 64 << 10
)

// ElevenLabs model IDs, fastest first.
const (
	ModelFlashV2_5      = "eleven_flash_v2_5"
	ModelTurboV2_5      = "eleven_turbo_v2_5"
	ModelMultilingualV2 = "eleven_multilingual_v2"
)

// ElevenLabs synthesizes through the text-to-speech REST endpoint. Voices
// may be preset names from voices.go or raw voice IDs.
type ElevenLabs struct {
	cfg    *Config
	hc     *http.Client
	base   string
	logger *slog.Logger
}

func NewElevenLabs(opts ...Option) (*ElevenLabs, error) {
	cfg := DefaultConfig()
	cfg.ModelID = ModelTurboV2_5
	cfg.VoiceID = DefaultElevenLabsVoice
	cfg.Apply(opts...)
	if err := cfg.Validate(true); err != nil {
		return nil, err
	}

	e := &ElevenLabs{
		cfg:    cfg,
		hc:     cfg.HTTPClient,
		base:   cfg.BaseURL,
		logger: cfg.Logger.With("component", "tts.elevenlabs"),
	}
	if e.hc == nil {
		e.hc = httpc.NewClient(cfg.Timeout)
	}
	if e.base == "" {
		e.base = elevenLabsBaseURL
	}
	return e, nil
}

type speechRequest struct {
	Text     string `json:"text"`
	ModelID  string `json:"model_id"`
	Settings struct {
		Stability       float64 `json:"stability"`
		SimilarityBoost float64 `json:"similarity_boost"`
		Style           float64 `json:"style"`
		SpeakerBoost    bool    `json:"use_speaker_boost"`
	} `json:"voice_settings"`
}

// Synthesize buffers the whole reply. An empty voice uses Config.VoiceID.
func (e *ElevenLabs) Synthesize(ctx context.Context, text, voice string) (*AudioResult, error) {
	if text == "" {
		return nil, WrapError(providerElevenLabs, ErrEmptyText)
	}
	if voice == "" {
		voice = e.cfg.VoiceID
	}

	body := speechRequest{Text: text, ModelID: e.cfg.ModelID}
	s := e.cfg.VoiceSettings
	body.Settings.Stability = s.Stability
	body.Settings.SimilarityBoost = s.SimilarityBoost
	body.Settings.Style = s.Style
	body.Settings.SpeakerBoost = s.SpeakerBoost
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, WrapError(providerElevenLabs, err)
	}

	format := e.cfg.OutputFormat
	endpoint := e.base + "/text-to-speech/" + url.PathEscape(ResolveElevenLabsVoice(voice)) +
		"?output_format=" + url.QueryEscape(string(format))

	start := time.Now()
	audio, err := e.call(ctx, http.MethodPost, endpoint, payload, format.MIME())
	if err != nil {
		return nil, err
	}
	latency := time.Since(start)

	e.logger.Debug("synthesized",
		"voice", voice,
		"model", e.cfg.ModelID,
		"chars", len(text),
		"bytes", len(audio),
		"latency_ms", latency.Milliseconds(),
	)

	result := &AudioResult{
		Audio:     audio,
		Format:    AudioFormat{Encoding: format, SampleRate: format.SampleRate(), Channels: 1, BitDepth: 16},
		Voice:     voice,
		CharCount: len(text),
		LatencyMs: latency.Milliseconds(),
	}
	if format.MIME() == "audio/pcm" {
		result.Duration = time.Duration(len(audio)/2) * time.Second / time.Duration(format.SampleRate())
	}
	return result, nil
}

// Health fetches the account, which fails fast on a bad key.
func (e *ElevenLabs) Health(ctx context.Context) error {
	_, err := e.call(ctx, http.MethodGet, e.base+"/user", nil, "application/json")
	return err
}

func (e *ElevenLabs) Close() error {
	e.hc.CloseIdleConnections()
	return nil
}

// call performs one request and returns the body of a 200 answer.
func (e *ElevenLabs) call(ctx context.Context, method, endpoint string, payload []byte, accept string) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, WrapError(providerElevenLabs, err)
	}
	req.Header.Set("xi-api-key", e.cfg.APIKey)
	req.Header.Set("Accept", accept)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.hc.Do(req)
	if err != nil {
		return nil, WrapError(providerElevenLabs, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, elevenLabsError(resp.StatusCode, raw)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, WrapError(providerElevenLabs, fmt.Errorf("read body: %w", err))
	}
	return data, nil
}

// elevenLabsError decodes {"detail": ...}, where detail is either an
// object with status and message or a bare string.
func elevenLabsError(status int, raw []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Message: string(raw), Provider: providerElevenLabs}

	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if json.Unmarshal(raw, &envelope) != nil || len(envelope.Detail) == 0 {
		return apiErr
	}
	var detail struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	var plain string
	switch {
	case json.Unmarshal(envelope.Detail, &detail) == nil && detail.Message != "":
		apiErr.Message, apiErr.Code = detail.Message, detail.Status
	case json.Unmarshal(envelope.Detail, &plain) == nil && plain != "":
		apiErr.Message = plain
	}
	return apiErr
}

var _ Provider = (*ElevenLabs)(nil)
