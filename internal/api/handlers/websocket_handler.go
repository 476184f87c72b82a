package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"chat-relay/internal/chat"
	apperror "chat-relay/internal/error"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Frame is a server to client WebSocket message
type Frame struct {
	Type      string `json:"type"`
	ChannelID string `json:"channel_id"`
	ReplyTo   string `json:"reply_to,omitempty"`
	Text      string `json:"text,omitempty"`
}

const (
	FrameReply  = "reply"
	FrameNotice = "notice"
	FrameTyping = "typing"
	FrameError  = "error"
)

// wsResponder writes service output to a shared connection
type wsResponder struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *wsResponder) write(frame Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(frame)
}

func (s *wsResponder) Reply(_ context.Context, evt chat.MessageEvent, text string) error {
	return s.write(Frame{Type: FrameReply, ChannelID: evt.ChannelID, ReplyTo: evt.ID, Text: text})
}

func (s *wsResponder) Notify(_ context.Context, channelID, text string) error {
	return s.write(Frame{Type: FrameNotice, ChannelID: channelID, Text: text})
}

func (s *wsResponder) Typing(_ context.Context, channelID string) error {
	return s.write(Frame{Type: FrameTyping, ChannelID: channelID})
}

// ------------------------------------------------------------------------------------------------------
// WebSocketHandler accepts a stream of message events on one connection. Events are handled
// concurrently; the service still serializes events that share a channel.
func (h *Handler) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	out := &wsResponder{conn: conn}

	// In-flight round trips end with the connection or with the server. Server shutdown
	// closes the connection, which ends the read loop.
	ctx, cancel := context.WithCancel(r.Context())
	context.AfterFunc(ctx, func() { conn.Close() })

	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn("Failed to read WebSocket message", zap.Error(err))
			}
			return
		}

		var evt chat.MessageEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			h.logger.Error("Failed to decode WebSocket message", zap.Error(err))
			if writeErr := out.write(Frame{Type: FrameError, Text: "invalid JSON in message"}); writeErr != nil {
				return
			}
			continue
		}

		wg.Add(1)
		go func(evt chat.MessageEvent) {
			defer wg.Done()

			err := h.chatService.HandleMessage(ctx, evt, out)
			if apperror.TypeOf(err) != apperror.ErrorTypeValidation {
				// Processing failures were already reported as a notice.
				return
			}
			if writeErr := out.write(Frame{Type: FrameError, ChannelID: evt.ChannelID, Text: apperror.UserNotice(err)}); writeErr != nil {
				h.logger.Error("Failed to write error frame", zap.Error(writeErr))
			}
		}(evt)
	}
}
