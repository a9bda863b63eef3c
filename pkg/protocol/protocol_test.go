package protocol

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestErrorResponseOmitsEmptyReply(t *testing.T) {
	tests := []struct {
		name    string
		resp    ErrorResponse
		want    []string
		notWant []string
	}{
		{
			name:    "busy session",
			resp:    ErrorResponse{Stage: "session", Message: "busy", SessionID: "s"},
			want:    []string{`"stage":"session"`, `"retryable":false`, `"session_id":"s"`},
			notWant: []string{"transcript", "assistant_text", "run_id"},
		},
		{
			name: "text only reply",
			resp: ErrorResponse{Stage: "synthesis", Message: "tts down", RunID: "r", Transcript: "hi", AssistantText: "hello"},
			want: []string{`"transcript":"hi"`, `"assistant_text":"hello"`, `"run_id":"r"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.resp)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			body := string(data)
			for _, w := range tt.want {
				if !strings.Contains(body, w) {
					t.Errorf("expected %s in %s", w, body)
				}
			}
			for _, w := range tt.notWant {
				if strings.Contains(body, w) {
					t.Errorf("did not expect %s in %s", w, body)
				}
			}
		})
	}
}
