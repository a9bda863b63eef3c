package audioio

import "errors"

var (
	// ErrPermissionDenied is returned when the OS refuses microphone access.
	ErrPermissionDenied = errors.New("audioio: microphone permission denied")

	// ErrDeviceUnavailable is returned when no capture backend can be found.
	ErrDeviceUnavailable = errors.New("audioio: no capture device available")

	// ErrPlayerUnavailable is returned when no playback command can be found.
	ErrPlayerUnavailable = errors.New("audioio: no audio player available")

	// ErrClosed is returned when using a closed source.
	ErrClosed = errors.New("audioio: closed")
)
