// Package metrics exposes Prometheus metrics and OTLP tracing for the
// townfeed pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/harborlight/townfeed/internal/support/logger"
)

// Recorder records pipeline metrics against a private registry.
type Recorder struct {
	registry *prometheus.Registry

	jobDurationSeconds *prometheus.HistogramVec
	jobStatusCounter   *prometheus.CounterVec

	snapshotBytes    prometheus.Histogram
	parsedItems      *prometheus.CounterVec
	rebuildDays      *prometheus.CounterVec
	fetchAttempts    *prometheus.CounterVec
	feedCacheCounter *prometheus.CounterVec
}

// NewRecorder creates a Recorder with Go runtime and process collectors
// registered alongside the pipeline metrics.
func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()

	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Recorder{
		registry: registry,
		jobDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "townfeed_job_duration_seconds",
			Help:    "Duration of scrape and backfill job executions.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job_name", "status"}),
		jobStatusCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "townfeed_job_status_total",
			Help: "Total job executions by status.",
		}, []string{"job_name", "status"}),
		snapshotBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "townfeed_snapshot_bytes",
			Help:    "Size of fetched daily snapshots.",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
		}),
		parsedItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "townfeed_parsed_items_total",
			Help: "Total item records parsed, by month.",
		}, []string{"month"}),
		rebuildDays: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "townfeed_rebuild_days_total",
			Help: "Total snapshot days contributing to partition rebuilds, by month.",
		}, []string{"month"}),
		fetchAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "townfeed_fetch_attempts_total",
			Help: "Upstream fetch attempts by outcome.",
		}, []string{"outcome"}),
		feedCacheCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "townfeed_feed_cache_total",
			Help: "Feed cache lookups by outcome.",
		}, []string{"outcome"}),
	}

	registry.MustRegister(r.jobDurationSeconds)
	registry.MustRegister(r.jobStatusCounter)
	registry.MustRegister(r.snapshotBytes)
	registry.MustRegister(r.parsedItems)
	registry.MustRegister(r.rebuildDays)
	registry.MustRegister(r.fetchAttempts)
	registry.MustRegister(r.feedCacheCounter)

	return r
}

// GetRegistry returns the Prometheus registry for the metrics endpoint.
func (r *Recorder) GetRegistry() *prometheus.Registry {
	return r.registry
}

// RecordJobStart counts a job entering execution.
func (r *Recorder) RecordJobStart(jobName string) {
	r.jobStatusCounter.WithLabelValues(jobName, "STARTED").Inc()
	logger.Debugf("Metrics: job '%s' started.", jobName)
}

// RecordJobEnd records a job's outcome and duration.
func (r *Recorder) RecordJobEnd(jobName, status string, duration time.Duration) {
	r.jobStatusCounter.WithLabelValues(jobName, status).Inc()
	r.jobDurationSeconds.WithLabelValues(jobName, status).Observe(duration.Seconds())
	logger.Debugf("Metrics: job '%s' ended with %s after %.3fs.", jobName, status, duration.Seconds())
}

// RecordSnapshotSize observes the size of a fetched snapshot.
func (r *Recorder) RecordSnapshotSize(bytes int) {
	r.snapshotBytes.Observe(float64(bytes))
}

// RecordRebuild counts the parsed items and contributing days of one
// partition rebuild.
func (r *Recorder) RecordRebuild(month string, itemCount, daysCount int) {
	r.parsedItems.WithLabelValues(month).Add(float64(itemCount))
	r.rebuildDays.WithLabelValues(month).Add(float64(daysCount))
}

// RecordFetchAttempt counts one upstream fetch attempt.
func (r *Recorder) RecordFetchAttempt(outcome string) {
	r.fetchAttempts.WithLabelValues(outcome).Inc()
}

// RecordFeedCache counts one feed cache lookup ("hit" or "miss").
func (r *Recorder) RecordFeedCache(outcome string) {
	r.feedCacheCounter.WithLabelValues(outcome).Inc()
}
