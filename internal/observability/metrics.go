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
	// Run metrics
	RunsTotal       *prometheus.CounterVec
	RunDuration     *prometheus.HistogramVec
	StepsSimulated  prometheus.Counter
	TradesClosed    prometheus.Counter
	IntentsRejected prometheus.Counter

	// Data metrics
	CandlesLoaded     prometheus.Counter
	SeriesValidated   prometheus.Counter
	IntegrityFailures *prometheus.CounterVec

	// Optimization metrics
	TrialsCompleted *prometheus.CounterVec
	TrialDuration   prometheus.Histogram

	// Verification metrics
	VerificationsTotal *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "backtest_lab"
	}

	return &Metrics{
		RunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "runs_total",
			Help:      "Total number of backtest runs by status",
		}, []string{"status"}),
		RunDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "run_duration_seconds",
			Help:      "Backtest run duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		}, []string{"status"}),
		StepsSimulated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "steps_simulated_total",
			Help:      "Total number of base-resolution steps simulated",
		}),
		TradesClosed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "trades_closed_total",
			Help:      "Total number of closed trades across all runs",
		}),
		IntentsRejected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "order_intents_rejected_total",
			Help:      "Total number of malformed order intents dropped",
		}),

		CandlesLoaded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "data",
			Name:      "candles_loaded_total",
			Help:      "Total number of base candles loaded",
		}),
		SeriesValidated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "data",
			Name:      "series_validated_total",
			Help:      "Total number of candle series that passed validation",
		}),
		IntegrityFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "data",
			Name:      "integrity_failures_total",
			Help:      "Total number of candle series integrity failures by kind",
		}, []string{"kind"}),

		TrialsCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "optimize",
			Name:      "trials_completed_total",
			Help:      "Total number of optimization trials by status",
		}, []string{"status"}),
		TrialDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "optimize",
			Name:      "trial_duration_seconds",
			Help:      "Optimization trial duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
		}),

		VerificationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "verify",
			Name:      "verifications_total",
			Help:      "Total number of determinism verifications by outcome",
		}, []string{"outcome"}),

		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
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

// RecordRun records one finished (or aborted) run.
func RecordRun(status string, durationSeconds float64) {
	DefaultMetrics.RunsTotal.WithLabelValues(status).Inc()
	DefaultMetrics.RunDuration.WithLabelValues(status).Observe(durationSeconds)
}

// RecordSteps adds to the simulated-step counter.
func RecordSteps(n int) {
	DefaultMetrics.StepsSimulated.Add(float64(n))
}

// RecordTrades adds to the closed-trade counter.
func RecordTrades(n int) {
	DefaultMetrics.TradesClosed.Add(float64(n))
}

// RecordIntentRejected increments the rejected-intent counter.
func RecordIntentRejected() {
	DefaultMetrics.IntentsRejected.Inc()
}

// RecordCandlesLoaded adds to the loaded-candle counter.
func RecordCandlesLoaded(n int) {
	DefaultMetrics.CandlesLoaded.Add(float64(n))
}

// RecordSeriesValidated increments the validated-series counter.
func RecordSeriesValidated() {
	DefaultMetrics.SeriesValidated.Inc()
}

// RecordIntegrityFailure records a series integrity failure by kind.
func RecordIntegrityFailure(kind string) {
	DefaultMetrics.IntegrityFailures.WithLabelValues(kind).Inc()
}

// RecordTrial records a completed optimization trial.
func RecordTrial(status string, durationSeconds float64) {
	DefaultMetrics.TrialsCompleted.WithLabelValues(status).Inc()
	DefaultMetrics.TrialDuration.Observe(durationSeconds)
}

// RecordVerification records a determinism verification outcome.
func RecordVerification(outcome string) {
	DefaultMetrics.VerificationsTotal.WithLabelValues(outcome).Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
