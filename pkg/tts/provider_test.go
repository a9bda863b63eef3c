package tts_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ayusha001100/talkback/pkg/tts"
)

func TestOpenAISynthesize(t *testing.T) {
	var (
		gotBody  map[string]any
		requests int
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if !strings.HasSuffix(r.URL.Path, "/audio/speech") {
			http.NotFound(w, r)
			return
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "audio/mpeg")
		io.WriteString(w, "ID3mp3bytes")
	}))
	defer srv.Close()

	p, err := tts.NewOpenAI(
		tts.WithAPIKey("sk-test"),
		tts.WithBaseURL(srv.URL+"/v1/"),
		tts.WithHTTPClient(srv.Client()),
	)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer p.Close()

	result, err := p.Synthesize(context.Background(), "Hi there", tts.VoiceEcho)
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}

	if string(result.Audio) != "ID3mp3bytes" {
		t.Errorf("unexpected audio %q", result.Audio)
	}
	if result.Format.MIME() != "audio/mpeg" {
		t.Errorf("expected audio/mpeg, got %s", result.Format.MIME())
	}
	if gotBody["voice"] != "echo" || gotBody["input"] != "Hi there" || gotBody["model"] != tts.ModelTTS1 {
		t.Errorf("unexpected request body %v", gotBody)
	}
	if gotBody["response_format"] != "mp3" {
		t.Errorf("expected mp3 response format, got %v", gotBody["response_format"])
	}
	if requests != 1 {
		t.Errorf("expected one request, got %d", requests)
	}
}

func TestOpenAISynthesizeDefaultsAndErrors(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		io.WriteString(w, `{"error":{"message":"overloaded","type":"server_error"}}`)
	}))
	defer srv.Close()

	p, err := tts.NewOpenAI(
		tts.WithAPIKey("sk-test"),
		tts.WithBaseURL(srv.URL+"/v1/"),
		tts.WithHTTPClient(srv.Client()),
	)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	t.Run("unknown voice rejected locally", func(t *testing.T) {
		_, err := p.Synthesize(context.Background(), "hello", "robot")
		if !errors.Is(err, tts.ErrUnknownVoice) {
			t.Errorf("expected ErrUnknownVoice, got %v", err)
		}
		if requests != 0 {
			t.Errorf("no request expected, got %d", requests)
		}
	})

	t.Run("server error is not retried", func(t *testing.T) {
		_, err := p.Synthesize(context.Background(), "hello", "")
		var apiErr *tts.APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("expected APIError, got %v", err)
		}
		if apiErr.StatusCode != http.StatusServiceUnavailable || !tts.IsRetryable(err) {
			t.Errorf("unexpected error %+v", apiErr)
		}
		if requests != 1 {
			t.Errorf("expected one request, got %d", requests)
		}
	})
}

func TestElevenLabsSynthesize(t *testing.T) {
	var (
		gotPath   string
		gotFormat string
		gotKey    string
		gotBody   map[string]any
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotFormat = r.URL.Query().Get("output_format")
		gotKey = r.Header.Get("xi-api-key")
		json.NewDecoder(r.Body).Decode(&gotBody)
		if strings.HasSuffix(gotPath, "/missing") {
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `{"detail":{"status":"voice_not_found","message":"A voice with that ID does not exist"}}`)
			return
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		io.WriteString(w, "mp3")
	}))
	defer srv.Close()

	p, err := tts.NewElevenLabs(
		tts.WithAPIKey("xi-test"),
		tts.WithBaseURL(srv.URL),
		tts.WithHTTPClient(srv.Client()),
	)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	t.Run("preset resolves to id", func(t *testing.T) {
		result, err := p.Synthesize(context.Background(), "Hello", "rachel")
		if err != nil {
			t.Fatalf("synthesize: %v", err)
		}
		if gotPath != "/text-to-speech/21m00Tcm4TlvDq8ikWAM" {
			t.Errorf("unexpected path %s", gotPath)
		}
		if gotFormat != string(tts.EncodingMP3) {
			t.Errorf("unexpected output format %s", gotFormat)
		}
		if gotKey != "xi-test" {
			t.Errorf("missing api key header")
		}
		if gotBody["text"] != "Hello" || gotBody["model_id"] != tts.ModelTurboV2_5 {
			t.Errorf("unexpected body %v", gotBody)
		}
		if result.Voice != "rachel" || string(result.Audio) != "mp3" {
			t.Errorf("unexpected result %+v", result)
		}
	})

	t.Run("default voice", func(t *testing.T) {
		if _, err := p.Synthesize(context.Background(), "Hello", ""); err != nil {
			t.Fatalf("synthesize: %v", err)
		}
		if gotPath != "/text-to-speech/XB0fDUnXU5powFXDhCwa" {
			t.Errorf("expected charlotte, got %s", gotPath)
		}
	})

	t.Run("detail message parsed", func(t *testing.T) {
		_, err := p.Synthesize(context.Background(), "Hello", "missing")
		var apiErr *tts.APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("expected APIError, got %v", err)
		}
		if !apiErr.IsVoiceNotFound() || apiErr.Code != "voice_not_found" {
			t.Errorf("unexpected error %+v", apiErr)
		}
		if apiErr.Message != "A voice with that ID does not exist" {
			t.Errorf("unexpected message %q", apiErr.Message)
		}
	})
}
