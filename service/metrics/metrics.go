package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// Following the explicit dependency injection pattern, this struct
// is passed to all components that need to record metrics.
type Metrics struct {
	// Trade provider metrics
	providerRequestsTotal   *prometheus.CounterVec
	providerRequestDuration *prometheus.HistogramVec
	providerRateLimitHits   *prometheus.CounterVec
	providerRetries         *prometheus.CounterVec

	// Solana RPC metrics
	rpcCallsTotal   *prometheus.CounterVec
	rpcCallDuration *prometheus.HistogramVec
	rpcRetries      *prometheus.CounterVec
	rpcPagesPerWalk *prometheus.HistogramVec

	// Analysis pipeline metrics
	stageDuration    *prometheus.HistogramVec
	buyersExtracted  *prometheus.HistogramVec
	analysesTotal    *prometheus.CounterVec
	activityDuration *prometheus.HistogramVec

	// Storage and messaging metrics
	reportsWrittenTotal   *prometheus.CounterVec
	natsMessagesPublished *prometheus.CounterVec
	natsPublishDuration   *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		providerRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "provider_requests_total",
				Help: "Total number of trade provider HTTP requests by endpoint and status",
			},
			[]string{"endpoint", "status"},
		),
		providerRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "provider_request_duration_seconds",
				Help:    "Duration of trade provider HTTP requests in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"endpoint"},
		),
		providerRateLimitHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "provider_rate_limit_hits_total",
				Help: "Total number of trade provider rate limit hits (429 responses)",
			},
			[]string{"endpoint"},
		),
		providerRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "provider_retries_total",
				Help: "Total number of trade provider retry attempts by reason",
			},
			[]string{"endpoint", "reason"},
		),

		rpcCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_calls_total",
				Help: "Total number of Solana RPC calls by method and status",
			},
			[]string{"method", "status"},
		),
		rpcCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solana_rpc_call_duration_seconds",
				Help:    "Duration of Solana RPC calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method"},
		),
		rpcRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_retries_total",
				Help: "Total number of Solana RPC retry attempts",
			},
			[]string{"method", "reason"},
		),
		rpcPagesPerWalk: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solana_rpc_signature_pages_per_walk",
				Help:    "Number of signature pages walked per wallet history lookup",
				Buckets: []float64{1, 2, 5, 10, 20, 50},
			},
			[]string{"outcome"},
		),

		stageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "analysis_stage_duration_seconds",
				Help:    "Wall-clock duration of each analysis pipeline stage",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
			},
			[]string{"stage"},
		),
		buyersExtracted: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "analysis_buyers_extracted",
				Help:    "Number of distinct early buyers extracted per analysis",
				Buckets: []float64{1, 5, 10, 25, 50, 100, 250},
			},
			[]string{"token"},
		),
		analysesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analyses_total",
				Help: "Total number of token analyses by outcome",
			},
			[]string{"outcome"},
		),
		activityDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "workflow_activity_duration_seconds",
				Help:    "Duration of Temporal activity executions",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 600},
			},
			[]string{"activity"},
		),

		reportsWrittenTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reports_written_total",
				Help: "Total number of analysis reports persisted",
			},
			[]string{"status"},
		),
		natsMessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nats_messages_published_total",
				Help: "Total number of report events published to NATS",
			},
			[]string{"status"},
		),
		natsPublishDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nats_publish_duration_seconds",
				Help:    "Duration of NATS publish operations",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
			[]string{"subject"},
		),
	}
}

// RecordProviderRequest records a trade provider HTTP request.
func (m *Metrics) RecordProviderRequest(endpoint, status string, durationSeconds float64) {
	m.providerRequestsTotal.WithLabelValues(endpoint, status).Inc()
	m.providerRequestDuration.WithLabelValues(endpoint).Observe(durationSeconds)
}

// RecordRateLimitHit records a 429 response from the trade provider.
func (m *Metrics) RecordRateLimitHit(endpoint string) {
	m.providerRateLimitHits.WithLabelValues(endpoint).Inc()
}

// RecordProviderRetry records a retry attempt against the trade provider.
func (m *Metrics) RecordProviderRetry(endpoint, reason string) {
	m.providerRetries.WithLabelValues(endpoint, reason).Inc()
}

// RecordRPCCall records a Solana RPC call.
func (m *Metrics) RecordRPCCall(method, status string, durationSeconds float64) {
	m.rpcCallsTotal.WithLabelValues(method, status).Inc()
	m.rpcCallDuration.WithLabelValues(method).Observe(durationSeconds)
}

// RecordRPCRetry records a Solana RPC retry attempt.
func (m *Metrics) RecordRPCRetry(method, reason string) {
	m.rpcRetries.WithLabelValues(method, reason).Inc()
}

// RecordSignaturePages records how many signature pages a wallet history
// walk visited before finding the earliest activity.
func (m *Metrics) RecordSignaturePages(outcome string, pages float64) {
	m.rpcPagesPerWalk.WithLabelValues(outcome).Observe(pages)
}

// RecordStageDuration records the wall-clock duration of a pipeline stage.
func (m *Metrics) RecordStageDuration(stage string, durationSeconds float64) {
	m.stageDuration.WithLabelValues(stage).Observe(durationSeconds)
}

// RecordBuyersExtracted records the size of the extracted buyer set.
func (m *Metrics) RecordBuyersExtracted(token string, count float64) {
	m.buyersExtracted.WithLabelValues(token).Observe(count)
}

// RecordAnalysis records a completed (or failed) token analysis.
func (m *Metrics) RecordAnalysis(outcome string) {
	m.analysesTotal.WithLabelValues(outcome).Inc()
}

// RecordActivityDuration records the duration of a Temporal activity.
func (m *Metrics) RecordActivityDuration(activity string, durationSeconds float64) {
	m.activityDuration.WithLabelValues(activity).Observe(durationSeconds)
}

// RecordReportWritten records a report persistence attempt.
func (m *Metrics) RecordReportWritten(status string) {
	m.reportsWrittenTotal.WithLabelValues(status).Inc()
}

// RecordNATSPublish records a publish to NATS.
func (m *Metrics) RecordNATSPublish(status, subject string, durationSeconds float64) {
	m.natsMessagesPublished.WithLabelValues(status).Inc()
	m.natsPublishDuration.WithLabelValues(subject).Observe(durationSeconds)
}
