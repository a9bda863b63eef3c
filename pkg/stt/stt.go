// Package stt provides a unified interface for speech-to-text providers.
//
// A Provider turns one complete audio clip into text. Adapters make exactly one
// outbound request per call and never retry; callers decide whether a failure
// is worth another attempt by inspecting APIError.IsRetryable.
//
// Example usage:
//
//	provider, _ := stt.NewOpenAI(
//	    stt.WithAPIKey(os.Getenv("OPENAI_API_KEY")),
//	)
//	defer provider.Close()
//
//	transcript, _ := provider.Transcribe(ctx, wav, "audio/wav")
//	fmt.Println(transcript.Text)
package stt

import (
	"context"
	"mime"
	"strings"
)

// Provider defines the speech-to-text provider interface.
type Provider interface {
	// Transcribe converts a complete audio clip to text.
	// mimeHint is the clip's content type as declared by the uploader and may be empty.
	Transcribe(ctx context.Context, audio []byte, mimeHint string) (*Transcript, error)

	// Close releases any resources held by the provider.
	Close() error
}

// Transcript is the result of a transcription.
type Transcript struct {
	// Text is the recognized speech. It may be empty for silent clips.
	Text string

	// Language is the detected or requested language, if reported.
	Language string

	// LatencyMs is the provider round trip in milliseconds.
	LatencyMs int64
}

// Empty reports whether no speech was recognized.
func (t *Transcript) Empty() bool {
	return t == nil || strings.TrimSpace(t.Text) == ""
}

// audioExtensions maps upload content types to the file extension transcription
// APIs use to sniff the container.
var audioExtensions = map[string]string{
	"audio/webm":     "webm",
	"video/webm":     "webm",
	"audio/wav":      "wav",
	"audio/wave":     "wav",
	"audio/x-wav":    "wav",
	"audio/vnd.wave": "wav",
	"audio/mpeg":     "mp3",
	"audio/mp3":      "mp3",
	"audio/mp4":      "m4a",
	"audio/m4a":      "m4a",
	"audio/x-m4a":    "m4a",
	"audio/ogg":      "ogg",
	"audio/opus":     "ogg",
	"audio/flac":     "flac",
	"audio/x-flac":   "flac",
}

// DefaultMIME is assumed when the uploader declares no usable content type.
const DefaultMIME = "audio/webm"

// Filename returns a synthetic upload filename for a content type,
// ignoring parameters such as codecs.
func Filename(mimeHint string) string {
	return "audio." + extension(mimeHint)
}

// NormalizeMIME strips parameters and falls back to DefaultMIME for unknown types.
func NormalizeMIME(mimeHint string) string {
	mt, _, err := mime.ParseMediaType(mimeHint)
	if err != nil {
		return DefaultMIME
	}
	if _, ok := audioExtensions[mt]; !ok {
		return DefaultMIME
	}
	return mt
}

func extension(mimeHint string) string {
	return audioExtensions[NormalizeMIME(mimeHint)]
}
