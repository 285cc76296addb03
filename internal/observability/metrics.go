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
	// Backtest metrics
	RunsTotal           *prometheus.CounterVec
	RunDuration         *prometheus.HistogramVec
	CandidatesEvaluated prometheus.Counter
	TradesExecuted      *prometheus.CounterVec
	RebalancesTotal     prometheus.Counter

	// Ingest metrics
	InstrumentsIngested prometheus.Counter
	BarsIngested        prometheus.Counter
	IngestErrors        *prometheus.CounterVec

	// Feed metrics
	QuotesReceived prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "equity_backtest_lab"
	}

	return &Metrics{
		RunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "runs_total",
			Help:      "Total number of backtest runs by strategy and status",
		}, []string{"strategy", "status"}),
		RunDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of backtest runs",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"strategy"}),
		CandidatesEvaluated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "candidates_evaluated_total",
			Help:      "Total number of instrument evaluations across rebalances",
		}),
		TradesExecuted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "trades_executed_total",
			Help:      "Total number of simulated trades by action",
		}, []string{"action"}),
		RebalancesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "rebalances_total",
			Help:      "Total number of rebalance events simulated",
		}),

		InstrumentsIngested: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "instruments_ingested_total",
			Help:      "Total number of instruments loaded into storage",
		}),
		BarsIngested: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "bars_ingested_total",
			Help:      "Total number of price bars loaded into storage",
		}),
		IngestErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "errors_total",
			Help:      "Total number of ingest errors by stage",
		}, []string{"stage"}),

		QuotesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "quotes_received_total",
			Help:      "Total number of live quotes received",
		}),

		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_duration_seconds",
			Help:      "Database query latency by backend and operation",
			Buckets:   prometheus.DefBuckets,
		}, []string{"backend", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors by backend and operation",
		}, []string{"backend", "operation"}),
	}
}

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordRun records one completed backtest run.
func RecordRun(strategy, status string, durationSeconds float64) {
	DefaultMetrics.RunsTotal.WithLabelValues(strategy, status).Inc()
	DefaultMetrics.RunDuration.WithLabelValues(strategy).Observe(durationSeconds)
}

// RecordRebalance records one simulated rebalance event.
func RecordRebalance() {
	DefaultMetrics.RebalancesTotal.Inc()
}

// RecordCandidates records instrument evaluations performed during one
// selection pass.
func RecordCandidates(evaluated int) {
	DefaultMetrics.CandidatesEvaluated.Add(float64(evaluated))
}

// RecordTrade records one simulated trade.
func RecordTrade(action string) {
	DefaultMetrics.TradesExecuted.WithLabelValues(action).Inc()
}

// RecordIngest records instruments and bars loaded into storage.
func RecordIngest(instruments, bars int) {
	DefaultMetrics.InstrumentsIngested.Add(float64(instruments))
	DefaultMetrics.BarsIngested.Add(float64(bars))
}

// RecordIngestError records one ingest failure.
func RecordIngestError(stage string) {
	DefaultMetrics.IngestErrors.WithLabelValues(stage).Inc()
}

// RecordQuote records one live quote received from the feed.
func RecordQuote() {
	DefaultMetrics.QuotesReceived.Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(backend, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(backend, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(backend, operation).Inc()
	}
}
