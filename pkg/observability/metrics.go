// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the llmrouter gateway.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// LLMBuckets defines histogram buckets suited for LLM inference latencies,
// ranging from 100ms to 120s.
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

var (
	// RequestsTotal counts all HTTP requests by method, status class, and route.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llmrouter_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "status", "route"},
	)

	// RequestDuration records HTTP request duration in seconds by method and route.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llmrouter_request_duration_seconds",
			Help:    "Request duration",
			Buckets: LLMBuckets,
		},
		[]string{"method", "route"},
	)

	// StreamingConnections tracks the number of active SSE streaming connections.
	StreamingConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "llmrouter_streaming_connections_active",
			Help: "Active streaming connections",
		},
	)

	// ProviderRequestsTotal counts chat calls dispatched to backend hosts.
	ProviderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llmrouter_provider_requests_total",
			Help: "Provider requests",
		},
		[]string{"host", "model", "status"},
	)

	// ProviderLatency records the time until a backend host answered a chat call.
	// For streams this is the time to the response headers.
	ProviderLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llmrouter_provider_latency_seconds",
			Help:    "Provider latency",
			Buckets: LLMBuckets,
		},
		[]string{"host", "model"},
	)

	// ProviderTokensTotal counts tokens reported by backends, by direction (input/output).
	ProviderTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llmrouter_provider_tokens_total",
			Help: "Token count",
		},
		[]string{"host", "model", "direction"},
	)

	// HostListFailuresTotal counts hosts that failed during aggregated model listing.
	HostListFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llmrouter_host_list_failures_total",
			Help: "Model listing failures per host",
		},
		[]string{"host"},
	)

	// StreamChunksTotal counts streaming chunks delivered to clients.
	StreamChunksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llmrouter_stream_chunks_total",
			Help: "Streaming chunks delivered",
		},
		[]string{"host"},
	)

	// StreamErrorsTotal counts mid-stream failures by host and kind
	// (read, decode, backend).
	StreamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llmrouter_stream_errors_total",
			Help: "Mid-stream failures",
		},
		[]string{"host", "kind"},
	)

	// AuthRejectedTotal counts requests rejected by the authenticator chain.
	AuthRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llmrouter_auth_rejected_total",
			Help: "Authentication rejections",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		StreamingConnections,
		ProviderRequestsTotal,
		ProviderLatency,
		ProviderTokensTotal,
		HostListFailuresTotal,
		StreamChunksTotal,
		StreamErrorsTotal,
		AuthRejectedTotal,
	)
}

// Handler returns the Prometheus scrape handler for the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
