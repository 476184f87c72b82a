package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	apperror "chat-relay/internal/error"

	"github.com/sashabaranov/go-openai"
)

// classifyError maps a go-openai error onto the application error kinds. Structured error
// payloads keep their message so it can be shown to the user; everything else is reported
// by category.
func classifyError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperror.NewTimeoutError("completion request timed out", err)
	}
	if errors.Is(err, context.Canceled) {
		return apperror.NewTransportError("completion request cancelled", err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			return apperror.NewRateLimitError(apiErr.Message, err)
		}
		return apperror.NewUpstreamError(apiErr.Message, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		msg := fmt.Sprintf("completion service returned HTTP %d", reqErr.HTTPStatusCode)
		if reqErr.HTTPStatusCode == http.StatusTooManyRequests {
			return apperror.NewRateLimitError(msg, err)
		}
		return apperror.NewUpstreamError(msg, err)
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return apperror.NewTransportError("failed to send request", err)
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) ||
		errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return apperror.NewMalformedResponseError("failed to decode response", err)
	}

	return apperror.NewTransportError("failed to send request", err)
}
