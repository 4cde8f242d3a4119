// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assessment_submissions_total",
			Help: "Total number of assessment submissions by outcome",
		},
		[]string{"outcome"},
	)

	DispatchCompleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_completed_total",
			Help: "Total number of queue items dispatched successfully",
		},
	)

	DispatchSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_skipped_total",
			Help: "Total number of duplicate invocations suppressed by the idempotency guard",
		},
	)

	DispatchFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_failed_total",
			Help: "Total number of failed dispatch invocations by stage",
		},
		[]string{"stage"},
	)

	DispatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "dispatch_duration_seconds",
			Help: "Duration of dispatch invocations in seconds",
		},
	)

	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dispatch_queue_depth",
			Help: "Number of creation events waiting in the trigger queue",
		},
	)

	ManualSendsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "manual_sends_total",
			Help: "Total number of manual sends by outcome",
		},
		[]string{"outcome"},
	)
)
