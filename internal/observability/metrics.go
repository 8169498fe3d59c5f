package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "risk_etl"

// Metrics holds the Prometheus counters and histograms for jobs, fetches, and the store.
type Metrics struct {
	JobRuns     *prometheus.CounterVec   // labels: job, status={success,partial_success,error}
	JobDuration *prometheus.HistogramVec // labels: job

	FetchAttempts *prometheus.CounterVec // labels: source, outcome={success,retryable,client_error,circuit_open}
	ParseSkips    *prometheus.CounterVec // labels: source

	RecordsUpserted *prometheus.CounterVec // labels: table

	AlertsGenerated    *prometheus.CounterVec // labels: level
	AlertPublishErrors prometheus.Counter

	OrchestratorSteps *prometheus.CounterVec // labels: step, status
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.JobRuns,
		m.JobDuration,
		m.FetchAttempts,
		m.ParseSkips,
		m.RecordsUpserted,
		m.AlertsGenerated,
		m.AlertPublishErrors,
		m.OrchestratorSteps,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		JobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_runs_total",
			Help:      "Job runs by job and final status.",
		}, []string{"job", "status"}),
		JobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Wall-clock duration of a job run.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"job"}),
		FetchAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_attempts_total",
			Help:      "External API request attempts by source and outcome.",
		}, []string{"source", "outcome"}),
		ParseSkips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parse_skipped_entries_total",
			Help:      "Payload entries skipped as unparseable or out of scope.",
		}, []string{"source"}),
		RecordsUpserted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_upserted_total",
			Help:      "Records written to the fact store by table.",
		}, []string{"table"}),
		AlertsGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_generated_total",
			Help:      "Combined alerts upserted by severity level.",
		}, []string{"level"}),
		AlertPublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alert_publish_errors_total",
			Help:      "Alerts that could not be published to Kafka.",
		}),
		OrchestratorSteps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orchestrator_steps_total",
			Help:      "Orchestrator step outcomes by step and status.",
		}, []string{"step", "status"}),
	}
}
