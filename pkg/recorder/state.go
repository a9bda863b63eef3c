// Package recorder drives one push-to-talk cycle on the client: capture a
// clip, upload it, play the spoken reply.
package recorder

import "errors"

// Kind is the phase a recorder is in.
type Kind int

const (
	// Idle waits for the user to start recording.
	Idle Kind = iota
	// Listening captures microphone audio.
	Listening
	// Processing uploads the clip and waits for the reply.
	Processing
	// Speaking plays the reply.
	Speaking
	// Failed reports why the last cycle ended early. It is left for Idle
	// right after observers have seen it.
	Failed
)

// String returns a human-readable phase name.
func (k Kind) String() string {
	switch k {
	case Idle:
		return "idle"
	case Listening:
		return "listening"
	case Processing:
		return "processing"
	case Speaking:
		return "speaking"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// State is the recorder phase plus the failure reason when Kind is Failed.
type State struct {
	Kind   Kind
	Reason error
}

// String returns the phase, with the reason for failures.
func (s State) String() string {
	if s.Kind == Failed && s.Reason != nil {
		return "failed: " + s.Reason.Error()
	}
	return s.Kind.String()
}

// ControlEnabled reports whether the capture control accepts input.
func (s State) ControlEnabled() bool {
	return s.Kind != Processing && s.Kind != Speaking
}

var (
	// ErrPermissionDenied is returned when the microphone cannot be opened.
	ErrPermissionDenied = errors.New("recorder: microphone permission denied")

	// ErrControlDisabled is returned for Start or Stop while a reply is
	// being fetched or played.
	ErrControlDisabled = errors.New("recorder: busy with a reply")

	// ErrNoAudio is returned when a recording captured nothing.
	ErrNoAudio = errors.New("recorder: nothing was recorded")
)
