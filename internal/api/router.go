package api

import (
	"net/http"

	"chat-relay/internal/api/handlers"
	"chat-relay/internal/metrics"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// SetupRouter configures HTTP routes. The gateway routes require gatewayToken and are left out
// entirely when it is empty.
func SetupRouter(handler *handlers.Handler, m *metrics.Metrics, gatherer prometheus.Gatherer, gatewayToken string, logger *zap.Logger) *mux.Router {
	router := mux.NewRouter()

	// Apply logging middleware
	router.Use(func(next http.Handler) http.Handler {
		return LoggingMiddleware(logger, m, next)
	})

	// Health check
	router.HandleFunc("/health", handler.HealthHandler).Methods("GET")

	// Chat gateway
	if gatewayToken != "" {
		gateway := router.NewRoute().Subrouter()
		gateway.Use(AuthMiddleware(gatewayToken, logger))
		gateway.HandleFunc("/channels/{channelID}/messages", handler.MessageHandler).Methods("POST")
		gateway.HandleFunc("/ws", handler.WebSocketHandler).Methods("GET")
	}

	// Metrics endpoint
	router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods("GET")

	return router
}
