package monitoring

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal counts API requests by route and status
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fairplate_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fairplate_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// JobRunsTotal counts job runs by job name, trigger and outcome
	JobRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fairplate_job_runs_total",
			Help: "Total number of job runs",
		},
		[]string{"job", "trigger", "outcome"},
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fairplate_job_duration_seconds",
			Help:    "Job run duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"job"},
	)

	// Report gauges reflect the most recent successful run

	QualityScore = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fairplate_quality_overall_score",
		Help: "Overall data quality score of the latest report",
	})

	QualityCriticalIssues = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fairplate_quality_critical_issues",
		Help: "Critical issues listed in the latest quality report",
	})

	FairnessDiversity = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fairplate_fairness_diversity_score",
		Help: "Normalized cuisine entropy of the latest fairness report",
	})

	FairnessNDCG = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fairplate_fairness_ndcg_score",
		Help: "Ranking quality of the latest fairness window",
	})

	FairnessBiasAlerts = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fairplate_fairness_bias_alerts",
			Help: "Bias alerts in the latest fairness report by type",
		},
		[]string{"type"},
	)

	MaintenanceAffected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fairplate_maintenance_affected_total",
			Help: "Entities changed by maintenance jobs",
		},
		[]string{"job"},
	)

	CacheRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fairplate_report_cache_requests_total",
			Help: "Report cache lookups by result",
		},
		[]string{"result"},
	)

	RateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fairplate_rate_limit_rejections_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"scope", "backend"},
	)

	// CircuitBreakerState is 0 closed, 1 half-open, 2 open
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fairplate_circuit_breaker_state",
			Help: "Circuit breaker state by name",
		},
		[]string{"name"},
	)
)

// RecordJob records the outcome and latency of one job run
func RecordJob(job, trigger string, duration time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	JobRunsTotal.WithLabelValues(job, trigger, outcome).Inc()
	JobDuration.WithLabelValues(job).Observe(duration.Seconds())
}

// RecordSkippedJob counts a run that found nothing to analyse
func RecordSkippedJob(job, trigger string) {
	JobRunsTotal.WithLabelValues(job, trigger, "skipped").Inc()
}

// RecordRequest records one served HTTP request
func RecordRequest(method, route string, status int, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
