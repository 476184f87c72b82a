package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apperror "chat-relay/internal/error"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *OpenAIClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOpenAIClient("test-key", srv.URL+"/v1", "gpt-3.5-turbo")
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestOpenAIClient_Complete(t *testing.T) {
	var got struct {
		Model       string    `json:"model"`
		Messages    []Message `json:"messages"`
		User        string    `json:"user"`
		MaxTokens   int       `json:"max_tokens"`
		Temperature float32   `json:"temperature"`
	}

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		writeJSON(w, http.StatusOK, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"model": "gpt-3.5-turbo",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "Noot noot"}, "finish_reason": "stop"}]
		}`)
	})

	reply, err := client.Complete(context.Background(), CompletionRequest{
		Messages: []Message{
			{Role: "system", Content: "You are a penguin."},
			{Role: "user", Content: "alice: hi"},
		},
		User:        "42",
		MaxTokens:   512,
		Temperature: 1.2,
	})
	require.NoError(t, err)

	assert.Equal(t, &Message{Role: "assistant", Content: "Noot noot"}, reply)
	assert.Equal(t, "gpt-3.5-turbo", got.Model)
	assert.Equal(t, "42", got.User)
	assert.Equal(t, 512, got.MaxTokens)
	assert.InDelta(t, 1.2, got.Temperature, 0.0001)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "alice: hi", got.Messages[1].Content)
}

func TestOpenAIClient_CompleteErrors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantType    apperror.ErrorType
		wantMessage string
	}{
		{
			name:        "structured error payload",
			status:      http.StatusBadRequest,
			body:        `{"error": {"message": "This model's maximum context length is 4097 tokens", "type": "invalid_request_error"}}`,
			wantType:    apperror.ErrorTypeUpstream,
			wantMessage: "This model's maximum context length is 4097 tokens",
		},
		{
			name:        "rate limited",
			status:      http.StatusTooManyRequests,
			body:        `{"error": {"message": "Rate limit reached", "type": "requests"}}`,
			wantType:    apperror.ErrorTypeRateLimit,
			wantMessage: "Rate limit reached",
		},
		{
			name:        "unparseable error payload",
			status:      http.StatusBadGateway,
			body:        `<html>bad gateway</html>`,
			wantType:    apperror.ErrorTypeUpstream,
			wantMessage: "completion service returned HTTP 502",
		},
		{
			name:     "malformed success body",
			status:   http.StatusOK,
			body:     `{"choices": [`,
			wantType: apperror.ErrorTypeMalformedResponse,
		},
		{
			name:     "no choices",
			status:   http.StatusOK,
			body:     `{"id": "chatcmpl-2", "choices": []}`,
			wantType: apperror.ErrorTypeMalformedResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			})

			_, err := client.Complete(context.Background(), CompletionRequest{
				Messages: []Message{{Role: "user", Content: "hi"}},
			})
			require.Error(t, err)

			var appErr *apperror.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, tt.wantType, appErr.Type)
			if tt.wantMessage != "" {
				assert.Equal(t, tt.wantMessage, appErr.Message)
			}
		})
	}
}

func TestOpenAIClient_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseURL := srv.URL + "/v1"
	srv.Close()

	client := NewOpenAIClient("test-key", baseURL, "gpt-3.5-turbo")
	_, err := client.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})

	require.Error(t, err)
	assert.Equal(t, apperror.ErrorTypeTransport, apperror.TypeOf(err))
}

func TestOpenAIClient_HonorsDeadline(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Complete(ctx, CompletionRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})

	require.Error(t, err)
	assert.Equal(t, apperror.ErrorTypeTimeout, apperror.TypeOf(err))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestNewOpenAIClient_LeavesTimeoutToContext(t *testing.T) {
	client := NewOpenAIClient("test-key", "", "gpt-3.5-turbo")

	// A transport level timeout would silently cap REQUEST_TIMEOUT.
	assert.Zero(t, client.httpClient.Timeout)
}

func TestOpenAIClient_OutlivesShortCallWithLongDeadline(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		writeJSON(w, http.StatusOK, `{"choices":[{"message":{"role":"assistant","content":"late"}}]}`)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	msg, err := client.Complete(ctx, CompletionRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "late", msg.Content)
}
