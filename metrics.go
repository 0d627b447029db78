package capturex

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for workers and pipeline stages.
// A nil *Metrics records nothing.
type Metrics struct {
	jobs          *prometheus.CounterVec
	jobDuration   *prometheus.HistogramVec
	stageDuration *prometheus.HistogramVec
	retries       *prometheus.CounterVec
	malformed     prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg when non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		jobs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "capturex_jobs_total",
				Help: "Total number of jobs finished, by terminal status",
			},
			[]string{"status"},
		),
		jobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "capturex_job_duration_seconds",
				Help:    "Time from pop to terminal status write",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
			},
			[]string{"status"},
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "capturex_stage_duration_seconds",
				Help:    "Duration of each pipeline stage including retries",
				Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"stage", "result"},
		),
		retries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "capturex_retries_total",
				Help: "Total number of retried remote calls",
			},
			[]string{"stage"},
		),
		malformed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "capturex_malformed_messages_total",
				Help: "Queue messages dropped because they could not be decoded",
			},
		),
	}
	if reg != nil {
		reg.MustRegister(m.jobs, m.jobDuration, m.stageDuration, m.retries, m.malformed)
	}
	return m
}

// ObserveJob records a finished job.
func (m *Metrics) ObserveJob(status Status, d time.Duration) {
	if m == nil {
		return
	}
	m.jobs.WithLabelValues(string(status)).Inc()
	m.jobDuration.WithLabelValues(string(status)).Observe(d.Seconds())
}

// ObserveStage records one pipeline stage.
func (m *Metrics) ObserveStage(stage string, d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.stageDuration.WithLabelValues(stage, result).Observe(d.Seconds())
}

// IncRetry counts one retry of a stage's remote call.
func (m *Metrics) IncRetry(stage string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(stage).Inc()
}

func (m *Metrics) incMalformed() {
	if m == nil {
		return
	}
	m.malformed.Inc()
}
