package audioio

import (
	"errors"
	"fmt"
	"log/slog"
)

// NewSource creates an audio source for cfg.Backend.
// BackendAuto uses an installed recorder and falls back to the mock.
func NewSource(cfg Config, logger *slog.Logger) (Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Backend {
	case BackendMock:
		return NewMockSource(cfg, logger), nil
	case BackendCommand:
		return NewCommandSource(cfg, logger)
	case BackendAuto, "":
		src, err := NewCommandSource(cfg, logger)
		if errors.Is(err, ErrDeviceUnavailable) {
			logger.Warn("no recorder found, capturing silence", "tried", "arecord, rec")
			return NewMockSource(cfg, logger), nil
		}
		return src, err
	default:
		return nil, fmt.Errorf("unsupported backend: %s", cfg.Backend)
	}
}

// NewPlayer creates a player for cfg.Backend.
// BackendAuto uses an installed player and falls back to the silent mock.
func NewPlayer(cfg Config, logger *slog.Logger) (Player, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Backend {
	case BackendMock:
		return NewMockPlayer(), nil
	case BackendCommand:
		return NewCommandPlayer(logger)
	case BackendAuto, "":
		p, err := NewCommandPlayer(logger)
		if errors.Is(err, ErrPlayerUnavailable) {
			logger.Warn("no audio player found, replies will not be spoken")
			return NewMockPlayer(), nil
		}
		return p, err
	default:
		return nil, fmt.Errorf("unsupported backend: %s", cfg.Backend)
	}
}
