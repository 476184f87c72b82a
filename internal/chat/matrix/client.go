// Package matrix connects the relay to Matrix rooms: inbound room messages become chat events
// and the service output is posted back as replies, notices and typing notifications.
package matrix

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"chat-relay/internal/chat"

	"go.uber.org/zap"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

const (
	typingTimeout       = 30 * time.Second
	defaultDrainTimeout = 30 * time.Second
)

// Config holds Matrix client configuration
type Config struct {
	Homeserver  string
	UserID      string
	AccessToken string
	// Rooms limits the relay to these room ids and joins them on start. Empty means every
	// joined room.
	Rooms []string
	// DrainTimeout is how long handlers may keep running once the sync loop stops before
	// their context is cancelled.
	DrainTimeout time.Duration
}

// Handler processes chat events
type Handler interface {
	HandleMessage(ctx context.Context, evt chat.MessageEvent, out chat.Responder) error
}

// Client wraps the Matrix client
type Client struct {
	client  *mautrix.Client
	config  Config
	handler Handler
	logger  *zap.Logger
	rooms   map[id.RoomID]bool

	startedAt time.Time
	inflight  sync.WaitGroup

	// handlerCtx outlives a single sync so replies are still posted while Run drains.
	handlerCtx     context.Context
	cancelHandlers context.CancelFunc

	mu        sync.Mutex
	roomNames map[id.RoomID]string
}

// New creates a new Matrix client
func New(config Config, handler Handler, logger *zap.Logger) (*Client, error) {
	client, err := mautrix.NewClient(config.Homeserver, id.UserID(config.UserID), config.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Matrix client: %w", err)
	}

	rooms := make(map[id.RoomID]bool, len(config.Rooms))
	for _, r := range config.Rooms {
		rooms[id.RoomID(r)] = true
	}

	if config.DrainTimeout <= 0 {
		config.DrainTimeout = defaultDrainTimeout
	}

	handlerCtx, cancelHandlers := context.WithCancel(context.Background())

	return &Client{
		client:         client,
		config:         config,
		handler:        handler,
		logger:         logger,
		rooms:          rooms,
		handlerCtx:     handlerCtx,
		cancelHandlers: cancelHandlers,
		roomNames:      make(map[id.RoomID]string),
	}, nil
}

// ------------------------------------------------------------------------------------------------------
// Run joins the configured rooms and syncs until ctx is cancelled. Handlers still running at
// that point get DrainTimeout to finish before they are cancelled.
func (c *Client) Run(ctx context.Context) error {
	syncer, ok := c.client.Syncer.(*mautrix.DefaultSyncer)
	if !ok {
		return fmt.Errorf("unexpected Matrix syncer %T", c.client.Syncer)
	}
	syncer.OnEventType(event.EventMessage, c.handleMessage)
	defer c.cancelHandlers()

	for roomID := range c.rooms {
		if err := c.joinRoom(ctx, roomID); err != nil {
			return fmt.Errorf("failed to join room %s: %w", roomID, err)
		}
	}

	c.startedAt = time.Now()
	c.logger.Info("Matrix sync starting",
		zap.String("user_id", c.config.UserID),
		zap.Int("rooms", len(c.rooms)),
	)

	const (
		backoffMin = 2 * time.Second
		backoffMax = 5 * time.Minute
	)
	backoff := backoffMin
	for {
		err := c.client.SyncWithContext(ctx)
		if ctx.Err() != nil {
			break
		}
		c.logger.Error("Matrix sync stopped; reconnecting",
			zap.Error(err),
			zap.Duration("backoff", backoff),
		)

		select {
		case <-ctx.Done():
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, backoffMax)
	}

	c.drain(c.config.DrainTimeout)
	return nil
}

// drain waits for running handlers, cancelling them once grace has passed
func (c *Client) drain(grace time.Duration) {
	done := make(chan struct{})
	go func() {
		c.inflight.Wait()
		close(done)
	}()

	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-done:
		return
	case <-timer.C:
	}

	c.logger.Warn("Cancelling unfinished Matrix handlers", zap.Duration("grace", grace))
	c.cancelHandlers()
	<-done
}

// ------------------------------------------------------------------------------------------------------
func (c *Client) handleMessage(ctx context.Context, evt *event.Event) {
	// Ignore our own messages
	if evt.Sender == id.UserID(c.config.UserID) {
		return
	}

	// Skip history replayed by the initial sync
	if time.UnixMilli(evt.Timestamp).Before(c.startedAt) {
		return
	}

	if len(c.rooms) > 0 && !c.rooms[evt.RoomID] {
		return
	}

	// Notices are what bots send; only plain text from people is relayed.
	content := evt.Content.AsMessage()
	if content == nil || content.MsgType != event.MsgText {
		return
	}

	msg := toMessageEvent(evt, content, c.replyAuthor(ctx, evt.RoomID, content), c.roomName(ctx, evt.RoomID), c.displayName(ctx, evt.Sender))

	// The sync loop must not block on completions; ordering per room is kept by the service.
	// Handlers run on handlerCtx since ctx ends with the sync that delivered the event.
	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		if err := c.handler.HandleMessage(c.handlerCtx, msg, c); err != nil {
			c.logger.Debug("Matrix message not answered",
				zap.String("event_id", evt.ID.String()),
				zap.Error(err),
			)
		}
	}()
}

// toMessageEvent converts a Matrix room message into a chat event
func toMessageEvent(evt *event.Event, content *event.MessageEventContent, replyAuthor id.UserID, roomName, displayName string) chat.MessageEvent {
	msg := chat.MessageEvent{
		ID:              evt.ID.String(),
		Text:            strings.TrimSpace(stripReplyFallback(content.Body)),
		AuthorID:        evt.Sender.String(),
		AuthorName:      displayName,
		ChannelID:       evt.RoomID.String(),
		ChannelName:     roomName,
		ReplyToAuthorID: replyAuthor.String(),
	}

	if content.Mentions != nil {
		for _, u := range content.Mentions.UserIDs {
			msg.MentionedIDs = append(msg.MentionedIDs, u.String())
		}
	}

	return msg
}

// stripReplyFallback removes the quoted "> " block clients prepend to reply bodies
func stripReplyFallback(body string) string {
	if !strings.HasPrefix(body, "> ") {
		return body
	}

	lines := strings.Split(body, "\n")
	i := 0
	for i < len(lines) && strings.HasPrefix(lines[i], ">") {
		i++
	}
	if i < len(lines) && lines[i] == "" {
		i++
	}
	return strings.Join(lines[i:], "\n")
}

// ------------------------------------------------------------------------------------------------------
func (c *Client) replyAuthor(ctx context.Context, roomID id.RoomID, content *event.MessageEventContent) id.UserID {
	replyTo := content.RelatesTo.GetReplyTo()
	if replyTo == "" {
		return ""
	}

	parent, err := c.client.GetEvent(ctx, roomID, replyTo)
	if err != nil {
		c.logger.Warn("Failed to fetch replied-to event",
			zap.String("event_id", replyTo.String()),
			zap.Error(err),
		)
		return ""
	}
	return parent.Sender
}

// ------------------------------------------------------------------------------------------------------
// roomName returns the room's display name, falling back to its id. Names are cached for the
// lifetime of the client.
func (c *Client) roomName(ctx context.Context, roomID id.RoomID) string {
	c.mu.Lock()
	name, ok := c.roomNames[roomID]
	c.mu.Unlock()
	if ok {
		return name
	}

	var content event.RoomNameEventContent
	if err := c.client.StateEvent(ctx, roomID, event.StateRoomName, "", &content); err != nil || content.Name == "" {
		name = roomID.String()
	} else {
		name = content.Name
	}

	c.mu.Lock()
	c.roomNames[roomID] = name
	c.mu.Unlock()
	return name
}

// ------------------------------------------------------------------------------------------------------
func (c *Client) displayName(ctx context.Context, userID id.UserID) string {
	profile, err := c.client.GetProfile(ctx, userID)
	if err == nil && profile.DisplayName != "" {
		return profile.DisplayName
	}

	if localpart, _, err := userID.Parse(); err == nil {
		return localpart
	}
	return userID.String()
}

// ------------------------------------------------------------------------------------------------------
func (c *Client) joinRoom(ctx context.Context, roomID id.RoomID) error {
	_, err := c.client.JoinRoomByID(ctx, roomID)
	if err != nil {
		// M_FORBIDDEN is returned when the bot is already a member
		if errors.Is(err, mautrix.MForbidden) {
			c.logger.Warn("Already a member or access denied, continuing", zap.String("room", roomID.String()))
			return nil
		}
		return err
	}
	return nil
}

// Reply answers evt in its room as a Matrix reply
func (c *Client) Reply(ctx context.Context, evt chat.MessageEvent, text string) error {
	content := event.MessageEventContent{
		MsgType: event.MsgText,
		Body:    text,
		RelatesTo: &event.RelatesTo{
			InReplyTo: &event.InReplyTo{
				EventID: id.EventID(evt.ID),
			},
		},
	}

	_, err := c.client.SendMessageEvent(ctx, id.RoomID(evt.ChannelID), event.EventMessage, &content)
	if err != nil {
		return fmt.Errorf("failed to send reply: %w", err)
	}
	return nil
}

// Notify sends a notice message, which other bots ignore
func (c *Client) Notify(ctx context.Context, channelID, text string) error {
	content := event.MessageEventContent{
		MsgType: event.MsgNotice,
		Body:    text,
	}

	_, err := c.client.SendMessageEvent(ctx, id.RoomID(channelID), event.EventMessage, &content)
	if err != nil {
		return fmt.Errorf("failed to send notice: %w", err)
	}
	return nil
}

// Typing sets the typing indicator until the next message or the timeout
func (c *Client) Typing(ctx context.Context, channelID string) error {
	_, err := c.client.UserTyping(ctx, id.RoomID(channelID), true, typingTimeout)
	if err != nil {
		return fmt.Errorf("failed to set typing: %w", err)
	}
	return nil
}
