package tts

import (
	"errors"
	"net/http"
	"strconv"
)

var (
	ErrNoAPIKey  = errors.New("tts: API key required")
	ErrNoVoiceID = errors.New("tts: voice ID required")
	ErrEmptyText = errors.New("tts: text is empty")

	// ErrUnknownVoice rejects a name outside a provider's fixed catalogue
	// before any request is made.
	ErrUnknownVoice = errors.New("tts: unknown voice")

	ErrProviderUnavailable = errors.New("tts: no providers available")
)

// APIError is a non-2xx answer from a synthesis backend.
type APIError struct {
	StatusCode int
	Message    string
	Code       string
	Provider   string
}

func (e *APIError) Error() string {
	s := "tts [" + e.Provider + "]: status " + strconv.Itoa(e.StatusCode)
	if e.Code != "" {
		s += " " + e.Code
	}
	return s + ": " + e.Message
}

func (e *APIError) IsRateLimited() bool { return e.StatusCode == http.StatusTooManyRequests }

// IsVoiceNotFound reports a voice the backend does not know. ElevenLabs
// answers 404 with a voice_not_found code for unknown IDs.
func (e *APIError) IsVoiceNotFound() bool {
	return e.StatusCode == http.StatusNotFound || e.Code == "voice_not_found"
}

// IsRetryable is true for throttling and 5xx answers.
func (e *APIError) IsRetryable() bool {
	return e.IsRateLimited() || e.StatusCode >= http.StatusInternalServerError
}

type providerError struct {
	provider string
	err      error
}

func (e *providerError) Error() string { return "tts [" + e.provider + "]: " + e.err.Error() }
func (e *providerError) Unwrap() error { return e.err }

// WrapError tags err with the backend name. It returns nil for a nil err.
func WrapError(provider string, err error) error {
	if err == nil {
		return nil
	}
	return &providerError{provider: provider, err: err}
}

// IsRetryable reports whether err carries a retryable APIError.
func IsRetryable(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.IsRetryable()
}
