package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for the relay
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	MessagesTotal       *prometheus.CounterVec
	CompletionsTotal    *prometheus.CounterVec
	CompletionDuration  prometheus.Histogram
	ContextTokens       prometheus.Histogram
	CacheEventsTotal    *prometheus.CounterVec
}

// ------------------------------------------------------------------------------------------------------
// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		MessagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_messages_total",
				Help: "Inbound chat messages by handling decision",
			},
			[]string{"decision"},
		),
		CompletionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_completions_total",
				Help: "Completion round trips by outcome",
			},
			[]string{"outcome"},
		),
		CompletionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "relay_completion_duration_seconds",
				Help:    "Completion call latency in seconds",
				Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32, 64},
			},
		),
		ContextTokens: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "relay_context_tokens",
				Help:    "Conversation tokens retained per channel after a committed round trip",
				Buckets: prometheus.ExponentialBuckets(64, 2, 8),
			},
		),
		CacheEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_conversation_cache_events_total",
				Help: "Conversation cache hits, misses, expirations and capacity evictions",
			},
			[]string{"event"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.MessagesTotal,
		m.CompletionsTotal,
		m.CompletionDuration,
		m.ContextTokens,
		m.CacheEventsTotal,
	)

	return m
}

// ------------------------------------------------------------------------------------------------------
// RegisterCacheSize exposes the number of live conversation cache entries via size
func (m *Metrics) RegisterCacheSize(reg prometheus.Registerer, size func() int) {
	reg.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "relay_conversation_cache_entries",
			Help: "Conversation queues currently held in the cache",
		},
		func() float64 { return float64(size()) },
	))
}

// The methods below satisfy storage.CacheObserver.

func (m *Metrics) CacheHit()     { m.CacheEventsTotal.WithLabelValues("hit").Inc() }
func (m *Metrics) CacheMiss()    { m.CacheEventsTotal.WithLabelValues("miss").Inc() }
func (m *Metrics) CacheExpired() { m.CacheEventsTotal.WithLabelValues("expired").Inc() }
func (m *Metrics) CacheEvicted() { m.CacheEventsTotal.WithLabelValues("evicted").Inc() }
