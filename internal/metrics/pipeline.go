package metrics

import "github.com/prometheus/client_golang/prometheus"

// Retrieval pipeline Prometheus metrics.
var (
	SearchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medfaq",
			Name:      "searches_total",
			Help:      "Total searches by execution path",
		},
		[]string{"path"}, // "vector" / "fallback"
	)

	DowngradesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "medfaq",
			Name:      "orchestrator_downgrades_total",
			Help:      "Sticky downgrades from vector to fallback mode",
		},
	)

	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medfaq",
			Name:      "embedding_requests_total",
			Help:      "Total number of embedding requests",
		},
		[]string{"model", "status"},
	)

	EmbeddingRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "medfaq",
			Name:      "embedding_request_duration_seconds",
			Help:      "Embedding request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"model"},
	)

	SynthesisTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medfaq",
			Name:      "synthesis_total",
			Help:      "Answer synthesis outcomes",
		},
		[]string{"mode"}, // "generative" / "deterministic" / "verbatim" / "disclaimer"
	)

	RateLimitedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "medfaq",
			Name:      "rate_limited_requests_total",
			Help:      "Requests denied by the rate limiter",
		},
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers pipeline metrics. Must be called once from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(SearchesTotal)
	prometheus.MustRegister(DowngradesTotal)
	prometheus.MustRegister(EmbeddingRequestsTotal)
	prometheus.MustRegister(EmbeddingRequestDuration)
	prometheus.MustRegister(SynthesisTotal)
	prometheus.MustRegister(RateLimitedTotal)
	pipelineMetricsRegistered = true
}
