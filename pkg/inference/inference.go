// Package inference turns a conversation window into the assistant's next
// line. Adapters keep no conversation state: the orchestrator owns the
// session history and sends the trimmed window, system prompt first, on
// every call.
package inference

import (
	"context"
	"time"
)

// Provider is implemented by the OpenAI and Gemini adapters and by Mock.
type Provider interface {
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
	Health(ctx context.Context) error
	Close() error
}

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role
	Content string
}

func NewSystemMessage(s string) Message    { return Message{Role: RoleSystem, Content: s} }
func NewUserMessage(s string) Message      { return Message{Role: RoleUser, Content: s} }
func NewAssistantMessage(s string) Message { return Message{Role: RoleAssistant, Content: s} }

// ChatRequest carries one completion call. Zero Model, MaxTokens and
// Temperature fall back to the adapter's Config.
type ChatRequest struct {
	Messages    []Message
	Model       string
	MaxTokens   int
	Temperature float64
}

type ChatResponse struct {
	Message      Message
	FinishReason string
	Usage        Usage
	Model        string
	Latency      time.Duration
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// splitSystem pulls system lines out of msgs for backends that take
// instructions separately from the turns.
func splitSystem(msgs []Message) (system []string, rest []Message) {
	rest = make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == RoleSystem {
			system = append(system, m.Content)
		} else {
			rest = append(rest, m)
		}
	}
	return system, rest
}
