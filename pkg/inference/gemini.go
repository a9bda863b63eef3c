package inference

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/ayusha001100/talkback/internal/httpc"
)

const providerGemini = "gemini"

// ModelGemini20Flash is the default Gemini model.
const ModelGemini20Flash = "gemini-2.0-flash"

// Gemini implements Provider for Google's Gemini API through the genai SDK.
// System messages become the request's system instruction and assistant turns
// are sent with the "model" role.
type Gemini struct {
	config *Config
	client *genai.Client
	logger *slog.Logger
}

// NewGemini creates a Gemini provider.
func NewGemini(ctx context.Context, opts ...Option) (*Gemini, error) {
	cfg := DefaultConfig()
	cfg.Model = ModelGemini20Flash
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, WrapError(providerGemini, err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = httpc.NewClient(cfg.Timeout)
	}

	clientCfg := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = cfg.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, WrapError(providerGemini, fmt.Errorf("create client: %w", err))
	}

	return &Gemini{
		config: cfg,
		client: client,
		logger: cfg.Logger.With("component", "inference.gemini"),
	}, nil
}

// Chat generates a chat completion using Gemini.
func (g *Gemini) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	start := time.Now()

	model := req.Model
	if model == "" {
		model = g.config.Model
	}

	system, turns := splitSystem(req.Messages)
	contents := make([]*genai.Content, 0, len(turns))
	for _, m := range turns {
		role := "user"
		if m.Role == RoleAssistant {
			role = "model"
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: m.Content}},
		})
	}

	genCfg := &genai.GenerateContentConfig{}
	if len(system) > 0 {
		parts := make([]*genai.Part, 0, len(system))
		for _, s := range system {
			parts = append(parts, &genai.Part{Text: s})
		}
		genCfg.SystemInstruction = &genai.Content{Parts: parts}
	}
	if n := firstNonZero(req.MaxTokens, g.config.MaxTokens); n > 0 {
		genCfg.MaxOutputTokens = int32(n)
	}
	if t := req.Temperature; t > 0 {
		genCfg.Temperature = genai.Ptr(float32(t))
	} else if g.config.Temperature > 0 {
		genCfg.Temperature = genai.Ptr(float32(g.config.Temperature))
	}

	resp, err := g.client.Models.GenerateContent(ctx, model, contents, genCfg)
	if err != nil {
		return nil, WrapError(providerGemini, fmt.Errorf("generate content: %w", err))
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, WrapError(providerGemini, ErrEmptyResponse)
	}

	candidate := resp.Candidates[0]
	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil && part.Text != "" {
			sb.WriteString(part.Text)
		}
	}
	content := strings.TrimSpace(sb.String())
	if content == "" {
		return nil, WrapError(providerGemini, ErrEmptyResponse)
	}

	var usage Usage
	if resp.UsageMetadata != nil {
		usage = Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}

	latency := time.Since(start)
	g.logger.Debug("chat completed",
		"model", model,
		"messages", len(req.Messages),
		"latency_ms", latency.Milliseconds(),
	)

	return &ChatResponse{
		Message:      NewAssistantMessage(content),
		FinishReason: string(candidate.FinishReason),
		Usage:        usage,
		Model:        model,
		Latency:      latency,
	}, nil
}

// Health checks that the configured model is visible to the API key.
func (g *Gemini) Health(ctx context.Context) error {
	if _, err := g.client.Models.Get(ctx, g.config.Model, nil); err != nil {
		return WrapError(providerGemini, fmt.Errorf("health check: %w", err))
	}
	return nil
}

// Close releases resources.
func (g *Gemini) Close() error {
	return nil
}

// Model returns the default model.
func (g *Gemini) Model() string {
	return g.config.Model
}

// Verify Gemini implements Provider at compile time.
var _ Provider = (*Gemini)(nil)
