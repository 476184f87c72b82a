package service

import (
	"strings"

	"chat-relay/internal/chat"
)

// ------------------------------------------------------------------------------------------------------
// ShouldRespond decides whether the relay answers evt. Rules are checked in order:
// replies to the bot and mentions of the bot are always answered; chatty channels answer
// everything except meta messages; anything else is ignored.
func (s *chatService) ShouldRespond(evt chat.MessageEvent) bool {
	botID := s.settings.BotID

	if evt.ReplyToAuthorID != "" && evt.ReplyToAuthorID == botID {
		return true
	}

	if evt.Mentions(botID) {
		return true
	}

	if ch, ok := s.prompts.Channel(evt.ChannelName); ok && ch.Chatty {
		return !isMetaMessage(evt.Text, s.settings.MetaPrefix)
	}

	return false
}

// ------------------------------------------------------------------------------------------------------
func isMetaMessage(text, prefix string) bool {
	if prefix == "" || len(text) < len(prefix) {
		return false
	}
	return strings.EqualFold(text[:len(prefix)], prefix)
}
