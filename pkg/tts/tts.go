// Package tts speaks assistant replies. The voice is chosen per call, so a
// single provider instance serves every session; an empty voice means the
// provider's configured default. Voices lists what each provider accepts.
package tts

import (
	"context"
	"time"
)

type Provider interface {
	Synthesize(ctx context.Context, text, voice string) (*AudioResult, error)
	Health(ctx context.Context) error
	Close() error
}

// AudioResult is one synthesized reply, fully buffered.
type AudioResult struct {
	Audio  []byte
	Format AudioFormat
	Voice  string // the voice actually used, after defaulting

	// Duration is only known for PCM and WAV output; zero otherwise.
	Duration  time.Duration
	CharCount int
	LatencyMs int64
}

type AudioFormat struct {
	Encoding   Encoding
	SampleRate int
	Channels   int
	BitDepth   int
}

func (f AudioFormat) MIME() string { return f.Encoding.MIME() }

// Encoding names follow the ElevenLabs output_format values.
type Encoding string

const (
	EncodingPCM16 Encoding = "pcm_16000"
	EncodingPCM22 Encoding = "pcm_22050"
	EncodingPCM24 Encoding = "pcm_24000"
	EncodingPCM44 Encoding = "pcm_44100"
	EncodingMP3   Encoding = "mp3_44100_128"
	EncodingOpus  Encoding = "opus"
	EncodingWAV   Encoding = "wav"
)

var encodings = map[Encoding]struct {
	mime string
	rate int
}{
	EncodingPCM16: {"audio/pcm", 16000},
	EncodingPCM22: {"audio/pcm", 22050},
	EncodingPCM24: {"audio/pcm", 24000},
	EncodingPCM44: {"audio/pcm", 44100},
	EncodingMP3:   {"audio/mpeg", 44100},
	EncodingOpus:  {"audio/opus", 48000},
	EncodingWAV:   {"audio/wav", 24000},
}

// MIME is the content type the server returns for audio in e.
func (e Encoding) MIME() string {
	if info, ok := encodings[e]; ok {
		return info.mime
	}
	return "application/octet-stream"
}

// SampleRate is the nominal rate for e, 24 kHz when unknown.
func (e Encoding) SampleRate() int {
	if info, ok := encodings[e]; ok {
		return info.rate
	}
	return 24000
}

// VoiceSettings tunes ElevenLabs voices; OpenAI ignores it. Stability,
// SimilarityBoost and Style range over [0, 1].
type VoiceSettings struct {
	Stability       float64
	SimilarityBoost float64
	Style           float64
	SpeakerBoost    bool
}

// DefaultVoiceSettings favours a steady conversational read.
func DefaultVoiceSettings() VoiceSettings {
	return VoiceSettings{Stability: 0.5, SimilarityBoost: 0.75, SpeakerBoost: true}
}
