package llm

import (
	"context"
	"net/http"

	apperror "chat-relay/internal/error"

	"github.com/sashabaranov/go-openai"
)

// DefaultBaseURL is the OpenAI REST endpoint; any OpenAI compatible provider can be used instead
const DefaultBaseURL = "https://api.openai.com/v1"

// OpenAIClient handles communication with an OpenAI compatible chat completions API
type OpenAIClient struct {
	client     *openai.Client
	httpClient *http.Client
	model      string
}

// NewOpenAIClient creates a new client for model. Calls are bounded only by the context passed
// to Complete.
func NewOpenAIClient(apiKey, baseURL, model string) *OpenAIClient {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	httpClient := &http.Client{}
	config.HTTPClient = httpClient

	return &OpenAIClient{
		client:     openai.NewClientWithConfig(config),
		httpClient: httpClient,
		model:      model,
	}
}

// Complete performs a non-streaming chat completion and returns the first choice
func (c *OpenAIClient) Complete(ctx context.Context, req CompletionRequest) (*Message, error) {
	messages := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, msg := range req.Messages {
		messages[i] = openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		User:        req.User,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return nil, classifyError(ctx, err)
	}

	if len(resp.Choices) == 0 {
		return nil, apperror.NewMalformedResponseError("no response content in API response", apperror.ErrEmptyCompletion)
	}

	choice := resp.Choices[0].Message
	role := choice.Role
	if role == "" {
		role = openai.ChatMessageRoleAssistant
	}

	return &Message{
		Role:    role,
		Content: choice.Content,
	}, nil
}
