package config

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"chat-relay/internal/api"
	"chat-relay/internal/api/handlers"
	"chat-relay/internal/chat/matrix"
	"chat-relay/internal/llm"
	"chat-relay/internal/logging"
	"chat-relay/internal/metrics"
	"chat-relay/internal/service"
	"chat-relay/internal/storage"
	"chat-relay/internal/tokenizer"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// ------------------------------------------------------------------------------------------------------
func (c *Config) NewLogger() (*zap.Logger, error) {
	if err := logging.Init(c.LogLevel); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logging.Logger, nil
}

// ------------------------------------------------------------------------------------------------------
// NewTokenStore connects the optional Redis token count memo. A nil store means counts are
// computed locally every time.
func (c *Config) NewTokenStore(ctx context.Context, logger *zap.Logger) storage.TokenCountStore {
	if c.RedisAddr == "" {
		return nil
	}

	redisStore, err := storage.NewRedisStore(ctx, c.RedisAddr, c.RedisPassword)
	if err != nil {
		logger.Warn("Failed to connect to Redis, continuing without token count cache",
			zap.Error(err),
		)
		return nil
	}
	logger.Info("Connected to Redis", zap.String("redis_addr", c.RedisAddr))
	return redisStore
}

// ------------------------------------------------------------------------------------------------------
func (c *Config) NewTokenCounter(store storage.TokenCountStore, logger *zap.Logger) (tokenizer.Counter, error) {
	tk, err := tokenizer.NewTiktoken(c.TokenEncoding)
	if err != nil {
		return nil, err
	}

	if store == nil {
		return tk, nil
	}
	return tokenizer.NewCached(tk, store, tk.Encoding(), c.TokenCountTTL, logger), nil
}

// ------------------------------------------------------------------------------------------------------
func (c *Config) NewConversationCache(m *metrics.Metrics, reg prometheus.Registerer) (*storage.ExpiringCache[*service.ConversationQueue], error) {
	cache, err := storage.NewExpiringCache[*service.ConversationQueue](c.CacheCapacity, c.CacheAbsoluteTTL, c.CacheSlidingTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation cache: %w", err)
	}

	cache.SetObserver(m)
	m.RegisterCacheSize(reg, cache.Len)
	return cache, nil
}

// ------------------------------------------------------------------------------------------------------
func (c *Config) NewLLMClient() llm.Client {
	return llm.NewOpenAIClient(c.OpenAIAPIKey, c.OpenAIBaseURL, c.Model)
}

// ------------------------------------------------------------------------------------------------------
// NewChatService builds a service whose conversations live under namespace in the shared cache
func (c *Config) NewChatService(
	namespace string,
	cache storage.CacheStore[*service.ConversationQueue],
	llmClient llm.Client,
	counter tokenizer.Counter,
	locks *service.ChannelLocks,
	m *metrics.Metrics,
	logger *zap.Logger,
) service.ChatService {
	settings := c.Settings()
	settings.CacheNamespace = namespace
	return service.NewChatService(cache, llmClient, counter, c.Prompts, settings, locks, logger, m)
}

// ------------------------------------------------------------------------------------------------------
func (c *Config) NewMatrixClient(handler matrix.Handler, logger *zap.Logger) (*matrix.Client, error) {
	return matrix.New(matrix.Config{
		Homeserver:  c.MatrixHomeserver,
		UserID:      c.MatrixUserID,
		AccessToken: c.MatrixAccessToken,
		Rooms:       c.MatrixRooms,
		// A completion already in flight gets its full request budget.
		DrainTimeout: c.RequestTimeout,
	}, handler, logger.Named("matrix"))
}

// ------------------------------------------------------------------------------------------------------
func (c *Config) NewHandler(chatService service.ChatService, logger *zap.Logger) *handlers.Handler {
	return handlers.NewHandler(chatService, logger)
}

// ------------------------------------------------------------------------------------------------------
func (c *Config) NewRouter(handler *handlers.Handler, m *metrics.Metrics, gatherer prometheus.Gatherer, logger *zap.Logger) *mux.Router {
	if !c.GatewayEnabled() {
		logger.Warn("GATEWAY_TOKEN is not set, HTTP and WebSocket gateway disabled")
	}
	return api.SetupRouter(handler, m, gatherer, c.GatewayToken, logger)
}

// ------------------------------------------------------------------------------------------------------
// NewHTTPServer derives every request context from baseCtx, so cancelling it reaches in-flight
// completions and open WebSocket streams.
func (c *Config) NewHTTPServer(baseCtx context.Context, router *mux.Router) *http.Server {
	return &http.Server{
		Addr:        ":" + c.Port,
		Handler:     router,
		BaseContext: func(net.Listener) context.Context { return baseCtx },
		ReadTimeout: 15 * time.Second,
		// Completions can take up to RequestTimeout before the reply is written.
		WriteTimeout: c.RequestTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
