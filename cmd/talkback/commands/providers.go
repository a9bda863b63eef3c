package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ayusha001100/talkback/internal/config"
	"github.com/ayusha001100/talkback/pkg/inference"
	"github.com/ayusha001100/talkback/pkg/stt"
	"github.com/ayusha001100/talkback/pkg/tts"
	"github.com/ayusha001100/talkback/pkg/voice"
)

// providers holds the three adapters selected by configuration.
type providers struct {
	transcriber stt.Provider
	completer   inference.Provider
	synthesizer tts.Provider
	voices      tts.Catalogue
}

func (p *providers) Close() error {
	var errs []error
	if p.transcriber != nil {
		errs = append(errs, p.transcriber.Close())
	}
	if p.completer != nil {
		errs = append(errs, p.completer.Close())
	}
	if p.synthesizer != nil {
		errs = append(errs, p.synthesizer.Close())
	}
	return errors.Join(errs...)
}

// newProviders builds the adapters named in cfg.Providers.
func newProviders(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*providers, error) {
	if logger == nil {
		logger = slog.Default()
	}
	p := &providers{}

	var err error
	if p.transcriber, err = newTranscriber(cfg.Providers.Transcription, cfg.Pipeline.Timeouts.Transcription, logger); err != nil {
		return nil, fmt.Errorf("transcription provider: %w", err)
	}
	if p.completer, err = newCompleter(ctx, cfg.Providers.Completion, cfg.Pipeline.Timeouts.Completion, logger); err != nil {
		p.Close()
		return nil, fmt.Errorf("completion provider: %w", err)
	}
	if p.synthesizer, err = newSynthesizer(cfg.Providers.Synthesis, cfg.Pipeline.Timeouts.Synthesis, logger); err != nil {
		p.Close()
		return nil, fmt.Errorf("synthesis provider: %w", err)
	}
	p.voices = tts.Voices(cfg.Providers.Synthesis.Kind)
	return p, nil
}

// Each adapter's HTTP client shares its stage deadline so the two never
// disagree about when a call has timed out.
func newTranscriber(pc config.Provider, timeout time.Duration, logger *slog.Logger) (stt.Provider, error) {
	switch pc.Kind {
	case config.KindMock:
		return stt.NewMock("hello there"), nil
	case config.KindOpenAI:
		opts := []stt.Option{stt.WithAPIKey(pc.APIKey), stt.WithLogger(logger)}
		if timeout > 0 {
			opts = append(opts, stt.WithTimeout(timeout))
		}
		if pc.Model != "" {
			opts = append(opts, stt.WithModel(pc.Model))
		}
		if pc.BaseURL != "" {
			opts = append(opts, stt.WithBaseURL(pc.BaseURL))
		}
		if pc.Language != "" {
			opts = append(opts, stt.WithLanguage(pc.Language))
		}
		t, err := stt.NewOpenAI(opts...)
		if err != nil {
			return nil, err
		}
		return t, nil
	default:
		return nil, fmt.Errorf("unsupported kind %q", pc.Kind)
	}
}

func newCompleter(ctx context.Context, pc config.Provider, timeout time.Duration, logger *slog.Logger) (inference.Provider, error) {
	opts := []inference.Option{inference.WithAPIKey(pc.APIKey), inference.WithLogger(logger)}
	if timeout > 0 {
		opts = append(opts, inference.WithTimeout(timeout))
	}
	if pc.Model != "" {
		opts = append(opts, inference.WithModel(pc.Model))
	}
	if pc.BaseURL != "" {
		opts = append(opts, inference.WithBaseURL(pc.BaseURL))
	}

	switch pc.Kind {
	case config.KindMock:
		return inference.NewEcho(), nil
	case config.KindOpenAI:
		c, err := inference.NewOpenAI(opts...)
		if err != nil {
			return nil, err
		}
		return c, nil
	case config.KindGemini:
		c, err := inference.NewGemini(ctx, opts...)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unsupported kind %q", pc.Kind)
	}
}

func newSynthesizer(pc config.Provider, timeout time.Duration, logger *slog.Logger) (tts.Provider, error) {
	opts := []tts.Option{tts.WithAPIKey(pc.APIKey), tts.WithLogger(logger)}
	if timeout > 0 {
		opts = append(opts, tts.WithTimeout(timeout))
	}
	if pc.Model != "" {
		opts = append(opts, tts.WithModel(pc.Model))
	}
	if pc.BaseURL != "" {
		opts = append(opts, tts.WithBaseURL(pc.BaseURL))
	}

	switch pc.Kind {
	case config.KindMock:
		return tts.NewMock(), nil
	case config.KindOpenAI:
		s, err := tts.NewOpenAI(opts...)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.KindElevenLabs:
		s, err := tts.NewElevenLabs(opts...)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported kind %q", pc.Kind)
	}
}

// pipelineConfig maps the pipeline section onto the orchestrator config.
func pipelineConfig(cfg *config.Config, voices tts.Catalogue) voice.Config {
	p := cfg.Pipeline
	vc := voice.DefaultConfig().
		WithVoices(voices, p.DefaultVoice).
		WithTimeouts(p.Timeouts.Transcription, p.Timeouts.Completion, p.Timeouts.Synthesis).
		WithRetry(p.Retry.MaxAttempts, p.Retry.Backoff).
		WithMaxAudioBytes(cfg.Server.MaxUploadBytes).
		WithHistoryLimit(p.HistoryLimit)
	if p.SystemPrompt != "" {
		vc = vc.WithSystemPrompt(p.SystemPrompt)
	}
	return vc
}
