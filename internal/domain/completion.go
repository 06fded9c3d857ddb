package domain

import "context"

// Role of a chat message.
type Role string

// Chat roles understood by the completion provider.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Completer is the chat completion contract between layers.
type Completer interface {
	Complete(ctx context.Context, messages []Message) (CompletionResult, error)
	DescribeImage(ctx context.Context, prompt, imageURL string) (CompletionResult, error)
}

// HealthChecker verifies provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// CompletionResult carries the reply text and token usage.
type CompletionResult struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}
