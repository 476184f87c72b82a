// Package chat defines the contract between chat platform adapters and the conversation
// service: the inbound message event and the outbound delivery interface.
package chat

import (
	"context"
	"strings"

	apperror "chat-relay/internal/error"
)

// MessageEvent is a new message posted by an end user, already filtered so that bot and
// system authors never reach the service.
type MessageEvent struct {
	ID              string   `json:"id"`
	Text            string   `json:"text"`
	AuthorID        string   `json:"author_id"`
	AuthorName      string   `json:"author_name"`
	ChannelID       string   `json:"channel_id"`
	ChannelName     string   `json:"channel_name"`
	ReplyToAuthorID string   `json:"reply_to_author_id,omitempty"`
	MentionedIDs    []string `json:"mentioned_ids,omitempty"`
}

// Validate checks the fields the service relies on
func (e *MessageEvent) Validate() error {
	if strings.TrimSpace(e.ChannelID) == "" {
		return apperror.NewValidationError("channel_id is required", apperror.ErrMissingChannel)
	}
	if strings.TrimSpace(e.AuthorID) == "" {
		return apperror.NewValidationError("author_id is required", apperror.ErrMissingAuthor)
	}
	if strings.TrimSpace(e.Text) == "" {
		return apperror.NewValidationError("text cannot be empty", apperror.ErrEmptyText)
	}
	return nil
}

// Speaker returns the name the author is shown as in the conversation history
func (e *MessageEvent) Speaker() string {
	if name := strings.TrimSpace(e.AuthorName); name != "" {
		return name
	}
	return e.AuthorID
}

// Mentions reports whether id is among the mentioned identities
func (e *MessageEvent) Mentions(id string) bool {
	for _, m := range e.MentionedIDs {
		if m == id {
			return true
		}
	}
	return false
}

// Responder delivers output back to the conversation an event came from
type Responder interface {
	// Reply answers the originating message.
	Reply(ctx context.Context, evt MessageEvent, text string) error
	// Notify posts a short notice, e.g. an error, to the channel.
	Notify(ctx context.Context, channelID, text string) error
	// Typing signals that a reply is being generated.
	Typing(ctx context.Context, channelID string) error
}
