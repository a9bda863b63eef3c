// Package client talks to a talkback server over HTTP and WebSocket.
package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusha001100/talkback/internal/httpc"
	"github.com/ayusha001100/talkback/pkg/protocol"
	"github.com/ayusha001100/talkback/pkg/session"
	"github.com/ayusha001100/talkback/pkg/voice"
)

// DefaultTimeout bounds a whole turn round trip, which includes three
// provider calls on the server.
const DefaultTimeout = 2 * time.Minute

// Client is a talkback API client.
type Client struct {
	baseURL   string
	http      *http.Client
	multipart bool
	logger    *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithMultipart uploads clips as multipart forms instead of raw bodies.
func WithMultipart(enabled bool) Option {
	return func(cl *Client) { cl.multipart = enabled }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(cl *Client) { cl.logger = logger }
}

// New creates a client for the server at baseURL, e.g. http://localhost:8080.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = httpc.NewClient(DefaultTimeout)
	}
	c.logger = c.logger.With("component", "client")
	return c
}

// Turn is one recorded clip to send.
type Turn struct {
	SessionID string
	Voice     string
	Audio     []byte
	MIME      string
}

// Reply is the server's answer to a turn, with audio decoded.
type Reply struct {
	SessionID     string
	RunID         string
	Transcript    string
	AssistantText string
	Audio         []byte
	AudioMIME     string
	Voice         string
	Latency       time.Duration
}

// SendTurn uploads a clip and waits for the spoken reply.
func (c *Client) SendTurn(ctx context.Context, turn Turn) (*Reply, error) {
	body, contentType, err := c.encodeTurn(turn)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("session_id", turn.SessionID)
	if turn.Voice != "" {
		q.Set("voice_id", turn.Voice)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/voice/turn?"+q.Encode(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	var out protocol.TurnResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}

	audio, err := base64.StdEncoding.DecodeString(out.AssistantAudio)
	if err != nil {
		return nil, fmt.Errorf("decode assistant audio: %w", err)
	}

	c.logger.Debug("turn complete", "session_id", out.SessionID, "run_id", out.RunID, "latency_ms", out.LatencyMs)

	return &Reply{
		SessionID:     out.SessionID,
		RunID:         out.RunID,
		Transcript:    out.Transcript,
		AssistantText: out.AssistantText,
		Audio:         audio,
		AudioMIME:     out.AudioFormat,
		Voice:         out.Voice,
		Latency:       time.Duration(out.LatencyMs) * time.Millisecond,
	}, nil
}

func (c *Client) encodeTurn(turn Turn) (io.Reader, string, error) {
	mime := turn.MIME
	if mime == "" {
		mime = "application/octet-stream"
	}
	if !c.multipart {
		return bytes.NewReader(turn.Audio), mime, nil
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="audio"; filename="clip"`)
	h.Set("Content-Type", mime)
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("create audio part: %w", err)
	}
	if _, err := part.Write(turn.Audio); err != nil {
		return nil, "", fmt.Errorf("write audio part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("close form: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}

// Clear empties a session's history on the server.
func (c *Client) Clear(ctx context.Context, sessionID string) error {
	data, err := json.Marshal(protocol.ClearRequest{SessionID: sessionID})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/voice/clear", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, nil)
}

// History returns the turns the server holds for a session.
func (c *Client) History(ctx context.Context, sessionID string) ([]session.Turn, error) {
	var out protocol.HistoryResponse
	if err := c.get(ctx, "/api/sessions/"+url.PathEscape(sessionID)+"/history", &out); err != nil {
		return nil, err
	}
	return out.Turns, nil
}

// Voices lists the voices the server accepts.
func (c *Client) Voices(ctx context.Context) (*protocol.VoicesResponse, error) {
	var out protocol.VoicesResponse
	if err := c.get(ctx, "/api/voices", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health checks the server is up.
func (c *Client) Health(ctx context.Context) error {
	return c.get(ctx, "/health", nil)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return parseError(resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Events streams run events for a session until ctx is cancelled or the
// connection drops. The channel is closed when the stream ends.
func (c *Client) Events(ctx context.Context, sessionID string) (<-chan voice.Event, error) {
	u, err := url.Parse(c.baseURL + "/ws/sessions/" + url.PathEscape(sessionID))
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial events: %w", err)
	}

	events := make(chan voice.Event, 16)
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		conn.Close()
	}()
	go func() {
		defer close(events)
		defer close(done)
		for {
			var e voice.Event
			if err := conn.ReadJSON(&e); err != nil {
				if ctx.Err() == nil {
					c.logger.Debug("event stream ended", "session_id", sessionID, "error", err)
				}
				return
			}
			select {
			case events <- e:
			case <-ctx.Done():
				return
			}
		}
	}()
	return events, nil
}
