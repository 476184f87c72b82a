package service

import (
	"strings"

	"chat-relay/internal/storage"
	"chat-relay/internal/tokenizer"
)

// ChannelConfig holds the per-channel behaviour, matched by channel name ignoring case
type ChannelConfig struct {
	Name          string
	SystemPrompts []string
	Chatty        bool
}

// Prompts is the static system instruction set: core prompts for every channel plus
// optional channel specific ones.
type Prompts struct {
	Core     []string
	Channels []ChannelConfig
}

// ------------------------------------------------------------------------------------------------------
// Channel looks up the configuration for channelName
func (p Prompts) Channel(channelName string) (ChannelConfig, bool) {
	for _, ch := range p.Channels {
		if strings.EqualFold(ch.Name, channelName) {
			return ch, true
		}
	}
	return ChannelConfig{}, false
}

// ------------------------------------------------------------------------------------------------------
// SystemMessages builds the prompt prefix for a channel: one system message with the core
// prompts, followed by one with the channel prompts when the channel has any.
func (p Prompts) SystemMessages(channelName string) []storage.Message {
	messages := []storage.Message{
		{Role: storage.RoleSystem, Content: strings.Join(p.Core, " ")},
	}

	if ch, ok := p.Channel(channelName); ok && len(ch.SystemPrompts) > 0 {
		messages = append(messages, storage.Message{
			Role:    storage.RoleSystem,
			Content: strings.Join(ch.SystemPrompts, " "),
		})
	}

	return messages
}

// ------------------------------------------------------------------------------------------------------
// SystemTokens returns the token cost of the system messages of channelName
func (p Prompts) SystemTokens(counter tokenizer.Counter, channelName string) (int, error) {
	messages := p.SystemMessages(channelName)
	texts := make([]string, len(messages))
	for i, msg := range messages {
		texts[i] = msg.Content
	}
	return tokenizer.CountAll(counter, texts...)
}
