package jobmetrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for background jobs.
type Metrics struct {
	runs      *prometheus.CounterVec
	failures  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	drift     prometheus.Counter
	repaired  prometheus.Counter
	lastDrift prometheus.Gauge
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the job metrics against the provided registerer. When the
// registerer is nil the default Prometheus registerer is used.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

// Tracker provides lifecycle instrumentation helpers for a single job run.
type Tracker struct {
	metrics *Metrics
	job     string
	start   time.Time
}

// Track spawns a tracker for the given job name.
func (m *Metrics) Track(job string) *Tracker {
	if m == nil {
		return &Tracker{job: job, start: time.Now()}
	}
	return &Tracker{metrics: m, job: job, start: time.Now()}
}

// End finalises the tracker, recording duration, success/failure counts and
// returning the provided error untouched.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil || t.job == "" {
		return err
	}
	status := "success"
	if err != nil {
		status = "failure"
		t.metrics.failures.WithLabelValues(t.job).Inc()
	}
	t.metrics.runs.WithLabelValues(t.job, status).Inc()
	t.metrics.duration.WithLabelValues(t.job).Observe(time.Since(t.start).Seconds())
	return err
}

// RecordIntegrity stores the outcome of one balance integrity sweep.
func (m *Metrics) RecordIntegrity(drifted, repaired int) {
	if m == nil {
		return
	}
	m.lastDrift.Set(float64(drifted))
	if drifted > 0 {
		m.drift.Add(float64(drifted))
	}
	if repaired > 0 {
		m.repaired.Add(float64(repaired))
	}
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crediventas_jobs_total",
		Help: "Total job executions partitioned by job name and status.",
	}, []string{"job", "status"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crediventas_jobs_failures_total",
		Help: "Total failures observed for background jobs.",
	}, []string{"job"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "crediventas_job_duration_seconds",
		Help:    "Duration in seconds of background job executions.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	drift := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "crediventas_balance_drift_total",
		Help: "Customers found with a pending balance that does not match their sales and payments.",
	})
	repaired := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "crediventas_balance_repairs_total",
		Help: "Customer balances rewritten by the integrity job.",
	})
	lastDrift := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "crediventas_balance_drift_customers",
		Help: "Drifted customers found by the most recent integrity sweep.",
	})
	registerer.MustRegister(runs, failures, duration, drift, repaired, lastDrift)
	return &Metrics{runs: runs, failures: failures, duration: duration, drift: drift, repaired: repaired, lastDrift: lastDrift}
}
