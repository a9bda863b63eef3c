package audioio

import (
	"context"
	"errors"
	"io"
	"time"
)

// AudioChunk represents a chunk of audio data.
type AudioChunk struct {
	// Samples contains interleaved PCM16 samples.
	Samples []int16

	SampleRate int
	Channels   int
}

// Bytes returns the chunk as little-endian PCM16.
func (c *AudioChunk) Bytes() []byte {
	return SamplesToBytes(c.Samples)
}

// FromBytes populates the chunk from raw PCM16 bytes.
func (c *AudioChunk) FromBytes(data []byte, sampleRate, channels int) {
	c.SampleRate = sampleRate
	c.Channels = channels
	c.Samples = BytesToSamples(data)
}

// Duration returns the playback duration of this chunk.
func (c *AudioChunk) Duration() time.Duration {
	return frames(len(c.Samples), c.SampleRate, c.Channels)
}

// Source captures audio from a microphone or other input device.
type Source interface {
	// Start begins audio capture.
	// Returns ErrPermissionDenied if the OS refuses microphone access.
	Start(ctx context.Context) error

	// Stop halts audio capture and releases the device.
	// It is safe to call Stop multiple times.
	Stop() error

	// Read returns the next audio chunk, blocking if necessary.
	// Chunks captured before Stop are still delivered; after them Read
	// returns io.EOF.
	Read(ctx context.Context) (AudioChunk, error)

	// Config returns the current audio configuration.
	Config() Config

	// Name returns the backend name (e.g., "arecord", "mock").
	Name() string

	io.Closer
}

// SourceStats contains statistics about the audio source.
type SourceStats struct {
	ChunksRead  int64  `json:"chunks_read"`
	SamplesRead int64  `json:"samples_read"`
	Overruns    int64  `json:"overruns"`
	Running     bool   `json:"running"`
	Backend     string `json:"backend"`
}

// SourceWithStats extends Source with statistics.
type SourceWithStats interface {
	Source
	Stats() SourceStats
}

// Clip is a complete captured recording.
type Clip struct {
	Samples    []int16
	SampleRate int
	Channels   int
}

// Duration returns the clip length.
func (c Clip) Duration() time.Duration {
	return frames(len(c.Samples), c.SampleRate, c.Channels)
}

// Empty reports whether the clip holds no audio.
func (c Clip) Empty() bool {
	return len(c.Samples) == 0
}

// Mono returns the clip downmixed to mono and resampled to rate.
func (c Clip) Mono(rate int) Clip {
	samples := c.Samples
	if c.Channels == 2 {
		samples = StereoToMono(samples)
	}
	return Clip{
		Samples:    Resample(samples, c.SampleRate, rate),
		SampleRate: rate,
		Channels:   1,
	}
}

// WAV encodes the clip as a RIFF/WAVE file.
func (c Clip) WAV() []byte {
	return EncodeWAV(c.Samples, c.SampleRate, c.Channels)
}

// Collect reads from src until it reports io.EOF and returns everything
// captured. The source must already be started; call Stop on it to end the
// recording. Context cancellation returns what was collected so far with the
// context error.
func Collect(ctx context.Context, src Source) (Clip, error) {
	cfg := src.Config()
	clip := Clip{SampleRate: cfg.SampleRate, Channels: cfg.Channels}

	for {
		chunk, err := src.Read(ctx)
		if errors.Is(err, io.EOF) {
			return clip, nil
		}
		if err != nil {
			return clip, err
		}
		clip.Samples = append(clip.Samples, chunk.Samples...)
		if chunk.SampleRate > 0 {
			clip.SampleRate = chunk.SampleRate
			clip.Channels = chunk.Channels
		}
	}
}

func frames(samples, rate, channels int) time.Duration {
	if rate == 0 || channels == 0 {
		return 0
	}
	n := samples / channels
	return time.Duration(n) * time.Second / time.Duration(rate)
}
