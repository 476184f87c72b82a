package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"chat-relay/internal/chat"
	apperror "chat-relay/internal/error"
	"chat-relay/internal/llm"
	"chat-relay/internal/metrics"
	"chat-relay/internal/storage"
	"chat-relay/internal/tokenizer"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// ChannelCacheNamespace discriminates chat platform conversation queues from other keys in
	// the same store.
	ChannelCacheNamespace = "ChannelConversationCache"
	// GatewayCacheNamespace holds queues of channels created through the HTTP gateway, whose
	// channel ids are chosen by the caller.
	GatewayCacheNamespace = "GatewayConversationCache"
)

// ConversationQueue is the per-channel rolling context window
type ConversationQueue = storage.BoundedQueue[storage.Message]

// Settings are the fixed completion parameters of the relay
type Settings struct {
	// BotID is the chat platform identity of the relay, used for reply and mention checks.
	BotID string
	// ContextLimit is the model's total context window in tokens.
	ContextLimit      int
	MaxGenerateTokens int
	Temperature       float32
	// MetaPrefix marks messages chatty channels should not answer. Matched ignoring case.
	MetaPrefix     string
	RequestTimeout time.Duration
	// CacheNamespace prefixes conversation keys. Empty means ChannelCacheNamespace.
	CacheNamespace string
}

// chatService handles chat business logic
type chatService struct {
	cache     storage.CacheStore[*ConversationQueue]
	llmClient llm.Client
	counter   tokenizer.Counter
	prompts   Prompts
	settings  Settings
	locks     *ChannelLocks
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// NewChatService creates a new chat service with injected dependencies
func NewChatService(
	cache storage.CacheStore[*ConversationQueue],
	llmClient llm.Client,
	counter tokenizer.Counter,
	prompts Prompts,
	settings Settings,
	locks *ChannelLocks,
	logger *zap.Logger,
	m *metrics.Metrics,
) ChatService {
	return &chatService{
		cache:     cache,
		llmClient: llmClient,
		counter:   counter,
		prompts:   prompts,
		settings:  settings,
		locks:     locks,
		logger:    logger,
		metrics:   m,
	}
}

// ChannelCacheKey returns the cache key of a channel's conversation queue
func ChannelCacheKey(channelID string) string {
	return storage.NamespacedKey(ChannelCacheNamespace, channelID)
}

func (s *chatService) cacheKey(channelID string) string {
	if s.settings.CacheNamespace == "" {
		return ChannelCacheKey(channelID)
	}
	return storage.NamespacedKey(s.settings.CacheNamespace, channelID)
}

// HandleMessage answers evt when the filter accepts it. Failures are logged and reported to
// the channel before being returned; they never leave partial history behind.
func (s *chatService) HandleMessage(ctx context.Context, evt chat.MessageEvent, out chat.Responder) error {
	if err := evt.Validate(); err != nil {
		s.metrics.MessagesTotal.WithLabelValues("invalid").Inc()
		return err
	}

	if !s.ShouldRespond(evt) {
		s.metrics.MessagesTotal.WithLabelValues("ignored").Inc()
		return nil
	}
	s.metrics.MessagesTotal.WithLabelValues("answered").Inc()

	logger := s.logger.With(
		zap.String("request_id", uuid.NewString()),
		zap.String("channel_id", evt.ChannelID),
		zap.String("channel", evt.ChannelName),
		zap.String("author_id", evt.AuthorID),
	)

	if err := out.Typing(ctx, evt.ChannelID); err != nil {
		logger.Debug("Failed to send typing indicator", zap.Error(err))
	}

	key := s.cacheKey(evt.ChannelID)

	err := s.locks.WithLock(key, func() error {
		reply, err := s.roundTrip(ctx, key, evt, logger)
		if err != nil {
			return err
		}

		// History is already committed; a failed delivery only loses this one reply.
		if err := out.Reply(ctx, evt, reply); err != nil {
			logger.Error("Failed to deliver reply", zap.Error(err))
		}
		return nil
	})
	if err != nil {
		logger.Error("Chat processing failed",
			zap.String("error_type", string(apperror.TypeOf(err))),
			zap.Error(err),
		)

		notice := fmt.Sprintf("*Error: %s*", apperror.UserNotice(err))
		if notifyErr := out.Notify(ctx, evt.ChannelID, notice); notifyErr != nil {
			logger.Error("Failed to send error notice", zap.Error(notifyErr))
		}
		return err
	}

	return nil
}

// roundTrip runs one completion against a private copy of the channel queue and stores the
// copy only when the reply made it back.
func (s *chatService) roundTrip(ctx context.Context, key string, evt chat.MessageEvent, logger *zap.Logger) (string, error) {
	systemMessages := s.prompts.SystemMessages(evt.ChannelName)

	queue, err := s.resolveQueue(key, evt.ChannelName)
	if err != nil {
		return "", err
	}

	userMessage := storage.Message{
		Role:    storage.RoleUser,
		Content: fmt.Sprintf("%s: %s", evt.Speaker(), evt.Text),
	}
	if err := s.enqueue(queue, userMessage); err != nil {
		return "", err
	}

	llmMessages := make([]llm.Message, 0, len(systemMessages)+queue.Len())
	for _, msg := range append(systemMessages, queue.GetAll()...) {
		llmMessages = append(llmMessages, llm.Message{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}

	callCtx := ctx
	if s.settings.RequestTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.settings.RequestTimeout)
		defer cancel()
	}

	start := time.Now()
	response, err := s.llmClient.Complete(callCtx, llm.CompletionRequest{
		Messages:    llmMessages,
		User:        evt.AuthorID,
		MaxTokens:   s.settings.MaxGenerateTokens,
		Temperature: s.settings.Temperature,
	})
	s.metrics.CompletionDuration.Observe(time.Since(start).Seconds())
	if err == nil && strings.TrimSpace(response.Content) == "" {
		err = apperror.NewMalformedResponseError("completion returned empty content", apperror.ErrEmptyCompletion)
	}
	if err != nil {
		s.metrics.CompletionsTotal.WithLabelValues(string(apperror.TypeOf(err))).Inc()
		return "", err
	}

	assistantMessage := storage.Message{
		Role:    storage.RoleAssistant,
		Content: response.Content,
	}
	if err := s.enqueue(queue, assistantMessage); err != nil {
		return "", err
	}

	s.cache.Set(key, queue)

	s.metrics.CompletionsTotal.WithLabelValues("ok").Inc()
	s.metrics.ContextTokens.Observe(float64(queue.TotalCost()))
	logger.Info("Reply generated",
		zap.Int("context_messages", queue.Len()),
		zap.Int("context_tokens", queue.TotalCost()),
		zap.Int("context_budget", queue.Budget()),
		zap.Duration("duration", time.Since(start)),
	)

	return response.Content, nil
}

// resolveQueue returns a copy of the cached queue for key, or a new queue sized to what the
// channel's system messages leave of the context window. A cached queue keeps the budget it
// was created with even if the prompts changed since.
func (s *chatService) resolveQueue(key, channelName string) (*ConversationQueue, error) {
	if cached, ok := s.cache.Get(key); ok {
		return cached.Clone(), nil
	}

	systemCost, err := s.prompts.SystemTokens(s.counter, channelName)
	if err != nil {
		return nil, apperror.NewInternalError("failed to count system prompt tokens", err)
	}

	return storage.NewBoundedQueue[storage.Message](s.settings.ContextLimit - systemCost)
}

func (s *chatService) enqueue(queue *ConversationQueue, msg storage.Message) error {
	cost, err := s.counter.Count(msg.Content)
	if err != nil {
		return apperror.NewInternalError("failed to count message tokens", err)
	}
	queue.Enqueue(msg, cost)
	return nil
}
