package service

import (
	"context"

	"chat-relay/internal/chat"
)

// ChatService defines the interface for relaying chat messages to the completion API
type ChatService interface {
	ShouldRespond(evt chat.MessageEvent) bool
	HandleMessage(ctx context.Context, evt chat.MessageEvent, out chat.Responder) error
}
