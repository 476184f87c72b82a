package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"chat-relay/internal/config"
	"chat-relay/internal/logging"
	"chat-relay/internal/metrics"
	"chat-relay/internal/service"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	janitorInterval = time.Minute
	lockIdleTimeout = time.Hour
)

// NewServeCmd creates the serve command
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP gateway and, when configured, the Matrix adapter",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

// ------------------------------------------------------------------------------------------------------
func runServe(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := cfg.NewLogger()
	if err != nil {
		return err
	}
	defer logging.Sync()

	logger.Info("Starting chat relay",
		zap.String("port", cfg.Port),
		zap.String("model", cfg.Model),
		zap.Int("context_limit", cfg.ContextLimit),
		zap.Bool("matrix", cfg.MatrixEnabled()),
	)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	tokenStore := cfg.NewTokenStore(ctx, logger)
	if tokenStore != nil {
		defer tokenStore.Close()
	}

	counter, err := cfg.NewTokenCounter(tokenStore, logger)
	if err != nil {
		return err
	}

	cache, err := cfg.NewConversationCache(m, reg)
	if err != nil {
		return err
	}

	// Both front ends share the cache, the locks and the completion client; their channel
	// ids live in separate namespaces so gateway callers cannot reach platform rooms.
	locks := service.NewChannelLocks()
	llmClient := cfg.NewLLMClient()
	chatService := cfg.NewChatService(service.ChannelCacheNamespace, cache, llmClient, counter, locks, m, logger)
	gatewayService := cfg.NewChatService(service.GatewayCacheNamespace, cache, llmClient, counter, locks, m, logger)

	// Cancelled once the server has drained so streams and stragglers stop their completions.
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()

	handler := cfg.NewHandler(gatewayService, logger)
	router := cfg.NewRouter(handler, m, reg, logger)
	srv := cfg.NewHTTPServer(baseCtx, router)

	go func() {
		ticker := time.NewTicker(janitorInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				purged := cache.PurgeExpired()
				released := locks.Cleanup(lockIdleTimeout)
				if purged > 0 || released > 0 {
					logger.Debug("Janitor pass",
						zap.Int("expired_conversations", purged),
						zap.Int("released_locks", released),
					)
				}
			}
		}
	}()

	// Stays nil without Matrix, so waitForShutdown only watches ctx.
	var matrixDone chan error
	if cfg.MatrixEnabled() {
		matrixClient, err := cfg.NewMatrixClient(chatService, logger)
		if err != nil {
			return err
		}
		matrixDone = make(chan error, 1)
		go func() {
			matrixDone <- matrixClient.Run(ctx)
		}()
	}

	// Start server in goroutine
	go func() {
		logger.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", zap.Error(err))
			stop()
		}
	}()

	runErr := waitForShutdown(ctx, matrixDone, logger)
	stop()
	logger.Info("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout+10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	cancelBase()

	if runErr == nil && matrixDone != nil {
		if err := <-matrixDone; err != nil {
			logger.Error("Matrix adapter failed", zap.Error(err))
		}
	}

	logger.Info("Server stopped")
	return runErr
}

// ------------------------------------------------------------------------------------------------------
// waitForShutdown blocks until ctx is done or the Matrix adapter stops on its own. The adapter
// only returns early on a setup failure, which takes the whole process down.
func waitForShutdown(ctx context.Context, matrixDone <-chan error, logger *zap.Logger) error {
	select {
	case <-ctx.Done():
		return nil
	case err := <-matrixDone:
		if err == nil {
			if ctx.Err() != nil {
				return nil
			}
			err = errors.New("stopped unexpectedly")
		}
		logger.Error("Matrix adapter failed", zap.Error(err))
		return fmt.Errorf("matrix adapter: %w", err)
	}
}
