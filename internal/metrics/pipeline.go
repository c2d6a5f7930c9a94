package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobOutcomeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "resumate",
			Subsystem: "pipeline",
			Name:      "jobs_total",
			Help:      "解析作业按结局统计的总数。",
		},
		[]string{"outcome"},
	)

	jobDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "resumate",
			Subsystem: "pipeline",
			Name:      "job_duration_seconds",
			Help:      "解析作业端到端耗时分布（秒）。",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		},
	)
)

// 作业结局标签。
const (
	OutcomeSucceeded = "succeeded"
	OutcomeDegraded  = "degraded"
	OutcomeFailed    = "failed"
)

// ObserveJob 记录一次解析作业的结局与耗时。
func ObserveJob(outcome string, duration time.Duration) {
	jobOutcomeTotal.WithLabelValues(outcome).Inc()
	jobDuration.Observe(duration.Seconds())
}
