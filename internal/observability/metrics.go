// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Verdict metrics
	VerdictsComputed     *prometheus.CounterVec
	VerdictDuration      prometheus.Histogram
	ThresholdResolutions *prometheus.CounterVec
	MonteCarloIterations prometheus.Histogram

	// Chain metrics
	EventsAppended      *prometheus.CounterVec
	AppendConflicts     prometheus.Counter
	ChainsVerified      *prometheus.CounterVec
	CheckpointsCut      prometheus.Counter
	ChainVerifyDuration prometheus.Histogram

	// HTTP metrics
	HTTPRequests       *prometheus.CounterVec
	HTTPRequestLatency *prometheus.HistogramVec
	RateLimited        prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "strategy_verdict_lab"
	}

	return &Metrics{
		VerdictsComputed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "verdict",
			Name:      "computed_total",
			Help:      "Total number of verdicts computed by outcome",
		}, []string{"verdict"}),
		VerdictDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "verdict",
			Name:      "duration_seconds",
			Help:      "Time to compute one verdict end to end",
			Buckets:   prometheus.DefBuckets,
		}),
		ThresholdResolutions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "verdict",
			Name:      "threshold_resolutions_total",
			Help:      "Total number of threshold resolutions by source",
		}, []string{"source"}),
		MonteCarloIterations: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "verdict",
			Name:      "monte_carlo_iterations",
			Help:      "Monte Carlo iterations actually run per verdict",
			Buckets:   []float64{100, 250, 500, 1000, 2500, 5000, 10000},
		}),

		EventsAppended: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "events_appended_total",
			Help:      "Total number of track-record events appended by type",
		}, []string{"event_type"}),
		AppendConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "append_conflicts_total",
			Help:      "Total number of appends rejected on a stale head",
		}),
		ChainsVerified: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "verifications_total",
			Help:      "Total number of chain verifications by result",
		}, []string{"result"}),
		CheckpointsCut: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "checkpoints_cut_total",
			Help:      "Total number of checkpoints cut",
		}),
		ChainVerifyDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "verify_duration_seconds",
			Help:      "Time to walk and verify one chain",
			Buckets:   prometheus.DefBuckets,
		}),

		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by route and status",
		}, []string{"route", "status"}),
		HTTPRequestLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		RateLimited: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Total number of requests rejected by the rate limiter",
		}),

		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_duration_seconds",
			Help:      "Database query latency by database and operation",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordVerdict increments the per-outcome verdict counter.
func RecordVerdict(verdict string, seconds float64) {
	DefaultMetrics.VerdictsComputed.WithLabelValues(verdict).Inc()
	DefaultMetrics.VerdictDuration.Observe(seconds)
}

// RecordThresholdResolution counts one resolution by source.
func RecordThresholdResolution(source string) {
	DefaultMetrics.ThresholdResolutions.WithLabelValues(source).Inc()
}

// RecordMonteCarloIterations observes the iterations a verdict actually ran.
func RecordMonteCarloIterations(n int) {
	DefaultMetrics.MonteCarloIterations.Observe(float64(n))
}

// RecordEventAppended counts a successful chain append.
func RecordEventAppended(eventType string) {
	DefaultMetrics.EventsAppended.WithLabelValues(eventType).Inc()
}

// RecordAppendConflict counts an append rejected on a stale head.
func RecordAppendConflict() {
	DefaultMetrics.AppendConflicts.Inc()
}

// RecordChainVerification counts one verification by result.
func RecordChainVerification(valid bool, seconds float64) {
	result := "valid"
	if !valid {
		result = "invalid"
	}
	DefaultMetrics.ChainsVerified.WithLabelValues(result).Inc()
	DefaultMetrics.ChainVerifyDuration.Observe(seconds)
}

// RecordCheckpointCut counts newly cut checkpoints.
func RecordCheckpointCut(n int) {
	DefaultMetrics.CheckpointsCut.Add(float64(n))
}

// RecordHTTPRequest counts one request and observes its latency.
func RecordHTTPRequest(route, status string, seconds float64) {
	DefaultMetrics.HTTPRequests.WithLabelValues(route, status).Inc()
	DefaultMetrics.HTTPRequestLatency.WithLabelValues(route).Observe(seconds)
}

// RecordRateLimited counts a 429 rejection.
func RecordRateLimited() {
	DefaultMetrics.RateLimited.Inc()
}

// RecordDBQuery observes a query and counts its error, if any.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
