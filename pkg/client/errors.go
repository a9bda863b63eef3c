package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/ayusha001100/talkback/pkg/protocol"
)

// Error is a non-200 answer from the server.
type Error struct {
	// Status is the HTTP status code.
	Status int

	// Stage is where the run stopped, e.g. "synthesis" or "rate_limit".
	Stage string

	Message   string
	SessionID string
	RunID     string

	// Transcript and AssistantText are set when a reply was produced but
	// could not be spoken. The server has already stored both turns.
	Transcript    string
	AssistantText string

	Retryable bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("talkback: %s failed (%d): %s", e.Stage, e.Status, e.Message)
	}
	return fmt.Sprintf("talkback: request failed (%d): %s", e.Status, e.Message)
}

// IsSessionBusy reports whether another turn for the session was in flight.
func (e *Error) IsSessionBusy() bool {
	return e.Status == http.StatusConflict
}

// IsRateLimited reports whether the upload was throttled.
func (e *Error) IsRateLimited() bool {
	return e.Status == http.StatusTooManyRequests
}

// HasText reports whether the assistant reply is available as text only.
func (e *Error) HasText() bool {
	return e.AssistantText != ""
}

func parseError(status int, body []byte) error {
	e := &Error{Status: status}

	var resp protocol.ErrorResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		e.Message = string(body)
		return e
	}
	e.Stage = resp.Stage
	e.Message = resp.Message
	e.SessionID = resp.SessionID
	e.RunID = resp.RunID
	e.Transcript = resp.Transcript
	e.AssistantText = resp.AssistantText
	e.Retryable = resp.Retryable
	return e
}

// AsError extracts a server error from err.
func AsError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
