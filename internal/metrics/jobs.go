package metrics

import "github.com/prometheus/client_golang/prometheus"

// Batch job metrics.
var (
	JobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Batch jobs that reached a terminal status",
		},
		[]string{"status"},
	)

	JobQuestionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_questions_total",
			Help:      "Batch questions processed, by outcome",
		},
		[]string{"outcome"}, // answered / failed
	)

	JobsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_active",
			Help:      "Batch jobs currently running",
		},
	)

	JobDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Wall time of a batch job",
			Buckets:   prometheus.ExponentialBuckets(5, 2, 10),
		},
	)

	JanitorDeletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "janitor_jobs_total",
			Help:      "Jobs touched by the janitor",
		},
		[]string{"action"}, // deleted / abandoned
	)
)

var jobMetricsRegistered bool

// RegisterJobMetrics registers batch job metrics. Must be called once from main.
func RegisterJobMetrics() {
	if jobMetricsRegistered {
		return
	}
	prometheus.MustRegister(JobsTotal)
	prometheus.MustRegister(JobQuestionsTotal)
	prometheus.MustRegister(JobsActive)
	prometheus.MustRegister(JobDuration)
	prometheus.MustRegister(JanitorDeletedTotal)
	jobMetricsRegistered = true
}
