// Package protocol defines the JSON bodies exchanged over the talkback HTTP
// API. It is shared by the server (pkg/web) and the client (pkg/client) and
// carries no transport dependencies.
package protocol

import "github.com/ayusha001100/talkback/pkg/session"

// Stages reported by the transport itself, alongside voice.Stage values.
const (
	StageRateLimit = "rate_limit"
	StageServer    = "server"
)

// TurnResponse is the body of a successful turn.
type TurnResponse struct {
	SessionID      string `json:"session_id"`
	RunID          string `json:"run_id"`
	Transcript     string `json:"transcript"`
	AssistantText  string `json:"assistant_text"`
	AssistantAudio string `json:"assistant_audio"` // base64
	AudioFormat    string `json:"audio_format"`
	Voice          string `json:"voice"`
	LatencyMs      int64  `json:"latency_ms"`
}

// ErrorResponse is the body of every failed request. Transcript and
// AssistantText are only set when synthesis failed after a reply was
// produced.
type ErrorResponse struct {
	Stage         string `json:"stage"`
	Message       string `json:"message"`
	Retryable     bool   `json:"retryable"`
	SessionID     string `json:"session_id,omitempty"`
	RunID         string `json:"run_id,omitempty"`
	Transcript    string `json:"transcript,omitempty"`
	AssistantText string `json:"assistant_text,omitempty"`
}

// ClearRequest is the body of POST /api/voice/clear.
type ClearRequest struct {
	SessionID string `json:"session_id"`
}

// HistoryResponse is the body of GET /api/sessions/:id/history.
type HistoryResponse struct {
	SessionID string         `json:"session_id"`
	Turns     []session.Turn `json:"turns"`
}

// VoicesResponse is the body of GET /api/voices.
type VoicesResponse struct {
	Kind    string   `json:"kind"`
	Default string   `json:"default"`
	Voices  []string `json:"voices"`
	Open    bool     `json:"open"`
}
