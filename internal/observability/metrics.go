package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Query outcomes used as the "outcome" label.
const (
	OutcomeOK              = "ok"
	OutcomeInvalidArgument = "invalid_argument"
	OutcomeNotFound        = "session_not_found"
	OutcomeProviderError   = "provider_error"
	OutcomeCanceled        = "canceled"
)

var (
	// HTTP metrics
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tutor_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tutor_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Tutoring metrics
	sessionsCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tutor_sessions_created_total",
			Help: "Total number of tutoring sessions created",
		},
	)

	queriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tutor_queries_total",
			Help: "Total number of processed queries by outcome",
		},
		[]string{"outcome"},
	)

	providerCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tutor_provider_call_duration_seconds",
			Help:    "Completion provider call duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"provider", "status"},
	)

	conversationLength = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tutor_conversation_messages",
			Help:    "Number of messages sent to the provider per query",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
	)

	initOnce sync.Once
)

// InitMetrics registers the collectors with the default registry.
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			httpRequestsTotal,
			httpRequestDuration,
			sessionsCreatedTotal,
			queriesTotal,
			providerCallDuration,
			conversationLength,
		)
	})
}

// MetricsHandler returns an HTTP handler for Prometheus metrics
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

func RecordHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func RecordSessionCreated() {
	sessionsCreatedTotal.Inc()
}

func RecordQuery(outcome string) {
	queriesTotal.WithLabelValues(outcome).Inc()
}

func RecordProviderCall(provider, status string, duration time.Duration) {
	providerCallDuration.WithLabelValues(provider, status).Observe(duration.Seconds())
}

func RecordConversationLength(n int) {
	conversationLength.Observe(float64(n))
}
