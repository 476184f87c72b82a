package llm

import "context"

// Client interface for LLM operations
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (*Message, error)
}

// Message represents a chat message
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is one chat completion call. The model is fixed by the client.
type CompletionRequest struct {
	Messages    []Message
	User        string
	MaxTokens   int
	Temperature float32
}
