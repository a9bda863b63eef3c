// Package audioio records clips from the microphone and plays replies for
// the talk client.
//
// The command backend drives an external recorder (arecord, sox rec) over
// a pipe and hands replies to a player (ffplay, afplay, mpv, paplay). The
// mock backend synthesizes a tone and discards playback, for tests and
// machines without audio. Capture is PCM16 little-endian; Clip.WAV
// packages a recording for upload.
package audioio

import (
	"errors"
	"fmt"
	"time"
)

type Backend string

const (
	BackendAuto    Backend = "auto" // command if a recorder is on PATH, else mock
	BackendCommand Backend = "command"
	BackendMock    Backend = "mock"
)

// Config describes capture. Playback takes its format from the reply.
type Config struct {
	Backend    Backend
	SampleRate int
	Channels   int

	// Chunk is how much audio each read from the recorder carries. It
	// bounds how much is lost when recording stops.
	Chunk time.Duration

	Device string // arecord -D

	// Command replaces the recorder command line. It must write raw PCM16
	// at SampleRate and Channels to stdout.
	Command string
}

// DefaultConfig captures 16 kHz mono, the rate transcription models expect.
func DefaultConfig() Config {
	return Config{Backend: BackendAuto, SampleRate: 16000, Channels: 1, Chunk: 50 * time.Millisecond}
}

func (c *Config) Validate() error {
	var errs []error
	if c.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("sample rate %d is not positive", c.SampleRate))
	}
	if c.Channels != 1 && c.Channels != 2 {
		errs = append(errs, fmt.Errorf("channels must be 1 or 2, got %d", c.Channels))
	}
	if c.Chunk <= 0 {
		errs = append(errs, fmt.Errorf("chunk %v is not positive", c.Chunk))
	}
	return errors.Join(errs...)
}

// chunkFrames is the number of frames in one Chunk.
func (c *Config) chunkFrames() int {
	return int(float64(c.SampleRate) * c.Chunk.Seconds())
}

// chunkBytes is the size of one Chunk of PCM16.
func (c *Config) chunkBytes() int {
	return c.chunkFrames() * c.Channels * 2
}
