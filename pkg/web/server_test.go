package web

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusha001100/talkback/pkg/hub"
	"github.com/ayusha001100/talkback/pkg/inference"
	"github.com/ayusha001100/talkback/pkg/protocol"
	"github.com/ayusha001100/talkback/pkg/session"
	"github.com/ayusha001100/talkback/pkg/stt"
	"github.com/ayusha001100/talkback/pkg/tts"
	"github.com/ayusha001100/talkback/pkg/voice"
)

type testServer struct {
	*Server
	store *session.Store
	stt   *stt.Mock
	llm   *inference.Mock
	tts   *tts.Mock
	hub   *hub.Hub
}

func newTestServer(t *testing.T, cfg Config, vcfg voice.Config) *testServer {
	t.Helper()

	ts := &testServer{
		store: session.NewStore(),
		stt:   stt.NewMock("what's the weather"),
		llm:   inference.NewMock("Sunny all day."),
		tts:   tts.NewMock(),
	}

	orch, err := voice.New(vcfg, ts.store, ts.stt, ts.llm, ts.tts)
	if err != nil {
		t.Fatalf("orchestrator: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	ts.hub = hub.New("events", nil)
	go ts.hub.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-ts.hub.Done()
	})

	ts.Server = NewServer(cfg, orch, ts.hub, nil)
	return ts
}

func defaultServer(t *testing.T) *testServer {
	return newTestServer(t, DefaultConfig(), voice.DefaultConfig())
}

func (ts *testServer) providerCalls() int {
	return len(ts.stt.Calls()) + len(ts.llm.Calls()) + len(ts.tts.Calls())
}

func (ts *testServer) do(t *testing.T, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := ts.App().Test(req, -1)
	if err != nil {
		t.Fatalf("request %s %s: %v", req.Method, req.URL, err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	return resp, body
}

func rawTurn(query string, audio []byte) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/voice/turn"+query, bytes.NewReader(audio))
	req.Header.Set("Content-Type", "audio/webm")
	return req
}

func decodeError(t *testing.T, body []byte) protocol.ErrorResponse {
	t.Helper()
	var e protocol.ErrorResponse
	if err := json.Unmarshal(body, &e); err != nil {
		t.Fatalf("decode error body %q: %v", body, err)
	}
	return e
}

func TestTurnRawBody(t *testing.T) {
	ts := defaultServer(t)

	resp, body := ts.do(t, rawTurn("?session_id=s1&voice_id=nova", []byte("webm-bytes")))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}

	var out protocol.TurnResponse
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.SessionID != "s1" || out.Transcript != "what's the weather" || out.AssistantText != "Sunny all day." {
		t.Errorf("unexpected response %+v", out)
	}
	audio, err := base64.StdEncoding.DecodeString(out.AssistantAudio)
	if err != nil || len(audio) == 0 {
		t.Errorf("assistant_audio should be base64 audio: %v", err)
	}
	if out.AudioFormat != "audio/wav" || out.Voice != "nova" {
		t.Errorf("unexpected format/voice %s/%s", out.AudioFormat, out.Voice)
	}

	call := ts.stt.Calls()[0]
	if call.MIME != "audio/webm" || call.Bytes != len("webm-bytes") {
		t.Errorf("unexpected transcribe call %+v", call)
	}
}

func TestTurnMultipart(t *testing.T) {
	ts := defaultServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("session_id", "form-session")
	mw.WriteField("voice_id", "echo")
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="audio"; filename="clip.wav"`)
	h.Set("Content-Type", "audio/wav")
	part, _ := mw.CreatePart(h)
	part.Write([]byte("RIFF-clip"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/voice/turn", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, body := ts.do(t, req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}

	var out protocol.TurnResponse
	json.Unmarshal(body, &out)
	if out.SessionID != "form-session" || out.Voice != "echo" {
		t.Errorf("form fields not used: %+v", out)
	}
	call := ts.stt.Calls()[0]
	if call.MIME != "audio/wav" || call.Bytes != len("RIFF-clip") {
		t.Errorf("unexpected transcribe call %+v", call)
	}
}

func TestTurnHeaders(t *testing.T) {
	ts := defaultServer(t)

	req := rawTurn("", []byte("clip"))
	req.Header.Set("X-Session-ID", "hdr")
	req.Header.Set("X-Voice-ID", "onyx")

	resp, body := ts.do(t, req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
	if got := ts.store.Snapshot("hdr"); len(got) != 2 {
		t.Errorf("expected turn pair under header session, got %+v", got)
	}
	if ts.tts.LastCall().Voice != "onyx" {
		t.Errorf("voice header ignored")
	}
}

func TestTurnRejections(t *testing.T) {
	tests := []struct {
		name   string
		req    func() *http.Request
		status int
		stage  string
	}{
		{
			name:   "body over server limit",
			req:    func() *http.Request { return rawTurn("?session_id=s", make([]byte, 1024+multipartOverhead+1)) },
			status: http.StatusRequestEntityTooLarge,
			stage:  "validation",
		},
		{
			name:   "audio over pipeline limit",
			req:    func() *http.Request { return rawTurn("?session_id=s", make([]byte, 1025)) },
			status: http.StatusRequestEntityTooLarge,
			stage:  "validation",
		},
		{
			name:   "empty audio",
			req:    func() *http.Request { return rawTurn("?session_id=s", nil) },
			status: http.StatusBadRequest,
			stage:  "validation",
		},
		{
			name:   "missing session",
			req:    func() *http.Request { return rawTurn("", []byte("clip")) },
			status: http.StatusBadRequest,
			stage:  "request",
		},
		{
			name:   "unknown voice",
			req:    func() *http.Request { return rawTurn("?session_id=s&voice_id=robot", []byte("clip")) },
			status: http.StatusBadRequest,
			stage:  "request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.MaxUploadBytes = 1024
			ts := newTestServer(t, cfg, voice.DefaultConfig().WithMaxAudioBytes(1024))

			resp, body := ts.do(t, tt.req())
			if resp.StatusCode != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, resp.StatusCode, body)
			}
			if e := decodeError(t, body); e.Stage != tt.stage || e.Retryable {
				t.Errorf("unexpected error body %+v", e)
			}
			if n := ts.providerCalls(); n != 0 {
				t.Errorf("providers called %d times", n)
			}
		})
	}
}

func TestRateLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimitMax = 2
	cfg.RateLimitWindow = time.Minute
	ts := newTestServer(t, cfg, voice.DefaultConfig())

	for i := 0; i < 2; i++ {
		resp, body := ts.do(t, rawTurn("?session_id=s", []byte("clip")))
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d: %s", i, resp.StatusCode, body)
		}
	}

	calls := ts.providerCalls()
	resp, body := ts.do(t, rawTurn("?session_id=s", []byte("clip")))
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp.StatusCode)
	}
	e := decodeError(t, body)
	if e.Stage != "rate_limit" || !e.Retryable || e.SessionID != "s" {
		t.Errorf("unexpected error body %+v", e)
	}
	if ts.providerCalls() != calls {
		t.Error("rate limited request reached providers")
	}

	// Other routes are not limited.
	resp, _ = ts.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health should not be rate limited, got %d", resp.StatusCode)
	}
}

func TestSessionBusy(t *testing.T) {
	ts := defaultServer(t)

	entered := make(chan struct{})
	unblock := make(chan struct{})
	ts.stt.TranscribeFunc = func(ctx context.Context, audio []byte, mime string) (*stt.Transcript, error) {
		close(entered)
		<-unblock
		return &stt.Transcript{Text: "first"}, nil
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		resp, err := ts.App().Test(rawTurn("?session_id=s", []byte("clip")), -1)
		if err != nil {
			t.Errorf("first request: %v", err)
			return
		}
		if resp.StatusCode != http.StatusOK {
			t.Errorf("first request: expected 200, got %d", resp.StatusCode)
		}
	}()
	<-entered

	resp, body := ts.do(t, rawTurn("?session_id=s", []byte("clip")))
	close(unblock)
	wg.Wait()

	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", resp.StatusCode, body)
	}
	if e := decodeError(t, body); e.Stage != "session" || e.Retryable {
		t.Errorf("unexpected error body %+v", e)
	}
}

func TestStageFailures(t *testing.T) {
	t.Run("synthesis failure carries text", func(t *testing.T) {
		ts := defaultServer(t)
		ts.tts.SynthesizeFunc = func(ctx context.Context, text, voice string) (*tts.AudioResult, error) {
			return nil, &tts.APIError{StatusCode: 401, Message: "bad key", Provider: "mock"}
		}

		resp, body := ts.do(t, rawTurn("?session_id=s", []byte("clip")))
		if resp.StatusCode != http.StatusBadGateway {
			t.Fatalf("expected 502, got %d", resp.StatusCode)
		}
		e := decodeError(t, body)
		if e.Stage != "synthesis" || e.AssistantText != "Sunny all day." || e.SessionID != "s" {
			t.Errorf("unexpected error body %+v", e)
		}
		if e.Transcript != "what's the weather" {
			t.Errorf("expected transcript in error body, got %q", e.Transcript)
		}
		if len(ts.store.Snapshot("s")) != 2 {
			t.Error("both turns should be kept")
		}
	})

	t.Run("transcription failure", func(t *testing.T) {
		ts := defaultServer(t)
		ts.stt.TranscribeFunc = func(ctx context.Context, audio []byte, mime string) (*stt.Transcript, error) {
			return nil, &stt.APIError{StatusCode: 503, Provider: "mock"}
		}

		resp, body := ts.do(t, rawTurn("?session_id=s", []byte("clip")))
		if resp.StatusCode != http.StatusBadGateway {
			t.Fatalf("expected 502, got %d", resp.StatusCode)
		}
		if e := decodeError(t, body); e.Stage != "transcription" || !e.Retryable || e.AssistantText != "" {
			t.Errorf("unexpected error body %+v", e)
		}
	})

	t.Run("completion timeout", func(t *testing.T) {
		ts := newTestServer(t, DefaultConfig(),
			voice.DefaultConfig().WithTimeouts(time.Second, 20*time.Millisecond, time.Second))
		ts.llm.ChatFunc = func(ctx context.Context, req *inference.ChatRequest) (*inference.ChatResponse, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}

		resp, body := ts.do(t, rawTurn("?session_id=s", []byte("clip")))
		if resp.StatusCode != http.StatusGatewayTimeout {
			t.Fatalf("expected 504, got %d", resp.StatusCode)
		}
		if e := decodeError(t, body); e.Stage != "completion" || !e.Retryable {
			t.Errorf("unexpected error body %+v", e)
		}
	})
}

func TestClear(t *testing.T) {
	ts := defaultServer(t)
	ts.do(t, rawTurn("?session_id=s", []byte("clip")))

	tests := []struct {
		name string
		body string
	}{
		{"existing session", `{"session_id":"s"}`},
		{"again", `{"session_id":"s"}`},
		{"unknown session", `{"session_id":"nope"}`},
		{"malformed body", `{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/voice/clear", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")

			resp, body := ts.do(t, req)
			if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"success":true`) {
				t.Errorf("expected success, got %d %s", resp.StatusCode, body)
			}
		})
	}

	if got := ts.store.Snapshot("s"); len(got) != 0 {
		t.Errorf("history not cleared: %+v", got)
	}
}

func TestHealth(t *testing.T) {
	ts := defaultServer(t)

	resp, body := ts.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var out struct {
		Status    string `json:"status"`
		Timestamp string `json:"timestamp"`
	}
	json.Unmarshal(body, &out)
	if out.Status != "ok" {
		t.Errorf("unexpected status %q", out.Status)
	}
	if _, err := time.Parse(time.RFC3339, out.Timestamp); err != nil {
		t.Errorf("timestamp not RFC 3339: %q", out.Timestamp)
	}
	if ts.providerCalls() != 0 {
		t.Error("health must not contact providers")
	}
}

func TestHistoryVoicesMetrics(t *testing.T) {
	ts := defaultServer(t)
	ts.do(t, rawTurn("?session_id=s", []byte("clip")))

	t.Run("history", func(t *testing.T) {
		_, body := ts.do(t, httptest.NewRequest(http.MethodGet, "/api/sessions/s/history", nil))
		var out protocol.HistoryResponse
		json.Unmarshal(body, &out)
		if out.SessionID != "s" || len(out.Turns) != 2 || out.Turns[0].Role != session.RoleUser {
			t.Errorf("unexpected history %+v", out)
		}
	})

	t.Run("unknown session history is empty", func(t *testing.T) {
		_, body := ts.do(t, httptest.NewRequest(http.MethodGet, "/api/sessions/none/history", nil))
		if !strings.Contains(string(body), `"turns":[]`) {
			t.Errorf("expected empty turns, got %s", body)
		}
	})

	t.Run("voices", func(t *testing.T) {
		_, body := ts.do(t, httptest.NewRequest(http.MethodGet, "/api/voices", nil))
		var out protocol.VoicesResponse
		json.Unmarshal(body, &out)
		if out.Default != tts.VoiceAlloy || len(out.Voices) == 0 || out.Open {
			t.Errorf("unexpected voices %+v", out)
		}
	})

	t.Run("metrics", func(t *testing.T) {
		_, body := ts.do(t, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		for _, want := range []string{"talkback_runs_completed 1", "talkback_sessions 1", "talkback_turns 2"} {
			if !strings.Contains(string(body), want) {
				t.Errorf("metrics missing %q", want)
			}
		}
	})
}

func TestEventFeed(t *testing.T) {
	ts := defaultServer(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go ts.App().Listener(ln)
	t.Cleanup(func() { ts.Shutdown(context.Background()) })

	addr := ln.Addr().String()
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws/sessions/live", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for ts.hub.ClientCount("live") != 1 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	resp, err := http.Post("http://"+addr+"/api/voice/turn?session_id=live", "audio/webm", strings.NewReader("clip"))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()

	var types []voice.EventType
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var e voice.Event
		if err := conn.ReadJSON(&e); err != nil {
			t.Fatalf("read event after %v: %v", types, err)
		}
		if e.SessionID != "live" {
			t.Errorf("foreign event %+v", e)
		}
		types = append(types, e.Type)
		if e.Type == voice.EventRunCompleted {
			break
		}
	}

	if types[0] != voice.EventRunStarted {
		t.Errorf("expected run_started first, got %v", types)
	}
	appended := 0
	for _, typ := range types {
		if typ == voice.EventTurnAppended {
			appended++
		}
	}
	if appended != 2 {
		t.Errorf("expected 2 turn_appended events, got %v", types)
	}
}

func TestWebSocketRequiresUpgrade(t *testing.T) {
	ts := defaultServer(t)
	resp, _ := ts.do(t, httptest.NewRequest(http.MethodGet, "/ws/sessions/s", nil))
	if resp.StatusCode != http.StatusUpgradeRequired {
		t.Errorf("expected 426, got %d", resp.StatusCode)
	}
}
