package stt

import (
	"errors"
	"fmt"
)

var (
	ErrNoAPIKey            = errors.New("stt: API key required")
	ErrEmptyAudio          = errors.New("stt: audio is empty")
	ErrProviderUnavailable = errors.New("stt: provider unavailable")
)

// APIError is a non-2xx answer from a transcription backend. Code carries
// the backend's machine-readable reason, such as invalid_file for audio it
// could not decode.
type APIError struct {
	StatusCode int
	Message    string
	Code       string
	Provider   string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("stt [%s]: status %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("stt [%s]: status %d %s: %s", e.Provider, e.StatusCode, e.Code, e.Message)
}

// IsRetryable is true for 429 and 5xx. A 4xx means the clip itself was
// rejected and sending it again will not help.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

type wrapped struct {
	provider string
	err      error
}

func (w *wrapped) Error() string { return fmt.Sprintf("stt [%s]: %v", w.provider, w.err) }
func (w *wrapped) Unwrap() error { return w.err }

// WrapError tags err with the backend name. It returns nil for a nil err.
func WrapError(provider string, err error) error {
	if err == nil {
		return nil
	}
	return &wrapped{provider: provider, err: err}
}

// IsRetryable reports whether err carries a retryable APIError.
func IsRetryable(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.IsRetryable()
}
