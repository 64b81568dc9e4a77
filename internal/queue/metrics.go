package queue

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	statusCompleted = "completed"
	statusFailed    = "failed"
	statusExhausted = "exhausted"
	statusStalled   = "stalled"
	statusEnqueued  = "enqueued"
)

// Metrics counts job outcomes per queue and job name. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	jobs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chat",
			Subsystem: "queue",
			Name:      "jobs_total",
			Help:      "Jobs by queue, job name and outcome.",
		}, []string{"queue", "job", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "chat",
			Subsystem: "queue",
			Name:      "job_duration_seconds",
			Help:      "Handler run time per attempt.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"queue", "job"}),
	}
	if reg != nil {
		reg.MustRegister(m.jobs, m.duration)
	}
	return m
}

func (m *Metrics) inc(queue, job, status string) {
	if m == nil {
		return
	}
	m.jobs.WithLabelValues(queue, job, status).Inc()
}

func (m *Metrics) observe(queue, job string, d time.Duration) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(queue, job).Observe(d.Seconds())
}
