package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"chat-relay/internal/chat"
	apperror "chat-relay/internal/error"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// MessageResponse is returned by the HTTP gateway once a message has been handled
type MessageResponse struct {
	Responded bool     `json:"responded"`
	Reply     string   `json:"reply,omitempty"`
	Notices   []string `json:"notices,omitempty"`
}

// MessageErrorResponse carries the notices the service posted before it failed
type MessageErrorResponse struct {
	apperror.ErrorResponse
	Notices []string `json:"notices,omitempty"`
}

// bufferedResponder collects the service output of a single request
type bufferedResponder struct {
	mu       sync.Mutex
	response MessageResponse
}

func (b *bufferedResponder) Reply(_ context.Context, _ chat.MessageEvent, text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.response.Responded = true
	b.response.Reply = text
	return nil
}

func (b *bufferedResponder) Notify(_ context.Context, _ string, text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.response.Notices = append(b.response.Notices, text)
	return nil
}

func (b *bufferedResponder) notices() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.response.Notices...)
}

func (b *bufferedResponder) Typing(context.Context, string) error {
	return nil
}

// ----------------------------------------------------------------------------------------------------------------
// MessageHandler feeds one chat message into the service and answers with its reply, if any
func (h *Handler) MessageHandler(w http.ResponseWriter, r *http.Request) {
	var evt chat.MessageEvent
	if err := json.NewDecoder(r.Body).Decode(&evt); err != nil {
		h.logger.Error("Failed to decode request", zap.Error(err))
		h.sendErrorResponse(w, apperror.NewValidationError("Invalid JSON in request body", err))
		return
	}
	evt.ChannelID = mux.Vars(r)["channelID"]
	if evt.ChannelName == "" {
		evt.ChannelName = evt.ChannelID
	}

	out := &bufferedResponder{}
	if err := h.chatService.HandleMessage(r.Context(), evt, out); err != nil {
		h.writeJSON(w, apperror.GetHTTPStatusCode(err), MessageErrorResponse{
			ErrorResponse: apperror.NewErrorResponse(err),
			Notices:       out.notices(),
		})
		return
	}

	h.writeJSON(w, http.StatusOK, out.response)
}
