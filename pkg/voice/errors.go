package voice

import (
	"errors"
	"fmt"

	"github.com/ayusha001100/talkback/pkg/inference"
	"github.com/ayusha001100/talkback/pkg/stt"
	"github.com/ayusha001100/talkback/pkg/tts"
)

// Stage names where a run failed.
type Stage string

const (
	StageRequest       Stage = "request"
	StageValidation    Stage = "validation"
	StageSession       Stage = "session"
	StageTranscription Stage = "transcription"
	StageCompletion    Stage = "completion"
	StageSynthesis     Stage = "synthesis"
)

// Common errors returned by RunTurn.
var (
	ErrMissingSession   = errors.New("voice: session id required")
	ErrUnknownVoice     = errors.New("voice: unknown voice")
	ErrEmptyPayload     = errors.New("voice: audio is empty")
	ErrOversizedPayload = errors.New("voice: audio exceeds size limit")
	ErrSessionBusy      = errors.New("voice: session has a turn in progress")
	ErrProviderTimeout  = errors.New("voice: provider timed out")
	ErrNoSpeech         = errors.New("voice: no speech recognized")
)

// Error is a failed run.
type Error struct {
	Stage     Stage
	SessionID string
	RunID     string

	// Transcript and AssistantText are set when completion succeeded but
	// synthesis failed. Both turns are already in the session history.
	Transcript    string
	AssistantText string

	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("voice: %s failed for session %q: %v", e.Stage, e.SessionID, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Timeout reports whether the stage ran out of time.
func (e *Error) Timeout() bool {
	return errors.Is(e.Err, ErrProviderTimeout)
}

// Retryable reports whether resending the same request may succeed.
// A busy session is not retryable: the caller should wait for the current
// reply instead.
func (e *Error) Retryable() bool {
	switch e.Stage {
	case StageTranscription, StageCompletion, StageSynthesis:
		return retryable(e.Err)
	default:
		return false
	}
}

// StageOf returns the failing stage of err, or "" if err is not a run error.
func StageOf(err error) Stage {
	var verr *Error
	if errors.As(err, &verr) {
		return verr.Stage
	}
	return ""
}

func retryable(err error) bool {
	return errors.Is(err, ErrProviderTimeout) ||
		stt.IsRetryable(err) ||
		inference.IsRetryable(err) ||
		tts.IsRetryable(err)
}
