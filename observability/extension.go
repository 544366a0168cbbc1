// Package observability provides a metrics extension that exports job,
// mint, and cron lifecycle counters to Prometheus. Register it with the
// engine to get pipeline health metrics without touching handler code.
package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/HungLV46/reservoir-indexer/ext"
	"github.com/HungLV46/reservoir-indexer/id"
	"github.com/HungLV46/reservoir-indexer/job"
	"github.com/HungLV46/reservoir-indexer/mints"
)

// Compile-time checks: the extension must satisfy each hook it exports
// metrics for.
var (
	_ ext.Extension      = (*MetricsExtension)(nil)
	_ ext.JobEnqueued    = (*MetricsExtension)(nil)
	_ ext.JobCompleted   = (*MetricsExtension)(nil)
	_ ext.JobFailed      = (*MetricsExtension)(nil)
	_ ext.JobRetrying    = (*MetricsExtension)(nil)
	_ ext.JobRescheduled = (*MetricsExtension)(nil)
	_ ext.JobDLQ         = (*MetricsExtension)(nil)
	_ ext.MintDetected   = (*MetricsExtension)(nil)
	_ ext.CronFired      = (*MetricsExtension)(nil)
)

// MetricsExtension exports lifecycle counters and a job duration histogram.
type MetricsExtension struct {
	jobsEnqueued     *prometheus.CounterVec
	jobsCompleted    *prometheus.CounterVec
	jobsFailed       *prometheus.CounterVec
	jobsRetried      *prometheus.CounterVec
	jobsRescheduled  *prometheus.CounterVec
	jobsDeadLettered *prometheus.CounterVec
	jobDuration      *prometheus.HistogramVec
	mintsDetected    prometheus.Counter
	cronFires        prometheus.Counter
}

// NewMetricsExtension builds the extension, registering its collectors
// with reg. A nil reg falls back to the default registerer.
func NewMetricsExtension(reg prometheus.Registerer) *MetricsExtension {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &MetricsExtension{
		jobsEnqueued: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "indexer",
			Subsystem: "jobs",
			Name:      "enqueued_total",
			Help:      "Jobs accepted for execution.",
		}, []string{"queue"}),
		jobsCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "indexer",
			Subsystem: "jobs",
			Name:      "completed_total",
			Help:      "Jobs that finished successfully.",
		}, []string{"queue"}),
		jobsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "indexer",
			Subsystem: "jobs",
			Name:      "failed_total",
			Help:      "Jobs that failed terminally.",
		}, []string{"queue"}),
		jobsRetried: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "indexer",
			Subsystem: "jobs",
			Name:      "retried_total",
			Help:      "Retry attempts scheduled after failures.",
		}, []string{"queue"}),
		jobsRescheduled: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "indexer",
			Subsystem: "jobs",
			Name:      "rescheduled_total",
			Help:      "Throttle-driven reschedules (retry counter unchanged).",
		}, []string{"queue"}),
		jobsDeadLettered: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "indexer",
			Subsystem: "jobs",
			Name:      "dead_lettered_total",
			Help:      "Jobs moved to the dead letter queue.",
		}, []string{"queue"}),
		jobDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "indexer",
			Subsystem: "jobs",
			Name:      "duration_seconds",
			Help:      "Job execution duration.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"queue"}),
		mintsDetected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "indexer",
			Subsystem: "mints",
			Name:      "detected_total",
			Help:      "Mint configurations produced by calldata detection.",
		}),
		cronFires: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "indexer",
			Subsystem: "cron",
			Name:      "fired_total",
			Help:      "Cron entries that fired and enqueued a job.",
		}),
	}
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnJobEnqueued implements ext.JobEnqueued.
func (m *MetricsExtension) OnJobEnqueued(_ context.Context, j *job.Job) error {
	m.jobsEnqueued.WithLabelValues(j.Queue).Inc()
	return nil
}

// OnJobCompleted implements ext.JobCompleted.
func (m *MetricsExtension) OnJobCompleted(_ context.Context, j *job.Job, elapsed time.Duration) error {
	m.jobsCompleted.WithLabelValues(j.Queue).Inc()
	m.jobDuration.WithLabelValues(j.Queue).Observe(elapsed.Seconds())
	return nil
}

// OnJobFailed implements ext.JobFailed.
func (m *MetricsExtension) OnJobFailed(_ context.Context, j *job.Job, _ error) error {
	m.jobsFailed.WithLabelValues(j.Queue).Inc()
	return nil
}

// OnJobRetrying implements ext.JobRetrying.
func (m *MetricsExtension) OnJobRetrying(_ context.Context, j *job.Job, _ int, _ time.Time) error {
	m.jobsRetried.WithLabelValues(j.Queue).Inc()
	return nil
}

// OnJobRescheduled implements ext.JobRescheduled.
func (m *MetricsExtension) OnJobRescheduled(_ context.Context, j *job.Job, _ time.Duration) error {
	m.jobsRescheduled.WithLabelValues(j.Queue).Inc()
	return nil
}

// OnJobDLQ implements ext.JobDLQ.
func (m *MetricsExtension) OnJobDLQ(_ context.Context, j *job.Job, _ error) error {
	m.jobsDeadLettered.WithLabelValues(j.Queue).Inc()
	return nil
}

// OnMintDetected implements ext.MintDetected.
func (m *MetricsExtension) OnMintDetected(_ context.Context, _ *mints.CollectionMint) error {
	m.mintsDetected.Inc()
	return nil
}

// OnCronFired implements ext.CronFired.
func (m *MetricsExtension) OnCronFired(_ context.Context, _ string, _ id.JobID) error {
	m.cronFires.Inc()
	return nil
}
