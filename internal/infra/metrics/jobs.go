package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(analysisJobsTotal, analysisJobAttempts, jobDurationMs) }

var analysisJobsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "analysis_jobs_total",
		Help: "Analysis jobs finished, labeled by terminal status.",
	},
	[]string{"status"}, // 'completed', 'failed'
)

var analysisJobAttempts = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "analysis_job_attempts",
		Help:    "Attempts consumed per finished analysis job.",
		Buckets: []float64{1, 2, 3, 4},
	},
)

var jobDurationMs = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "analysis_job_duration_ms",
		Help:    "Wall time per finished analysis job in milliseconds.",
		Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 15000, 60000},
	},
)

func ObserveJob(status string, attempts int, durationMs int64) {
	analysisJobsTotal.WithLabelValues(norm(status)).Inc()
	analysisJobAttempts.Observe(float64(attempts))
	jobDurationMs.Observe(float64(durationMs))
}
