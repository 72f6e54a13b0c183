// File path: internal/common/telemetry/telemetry.go
package telemetry

import (
	"expvar"
	"sync"
	"time"
)

var (
	initOnce sync.Once

	jobsSubmitted *expvar.Int
	jobsCompleted *expvar.Int
	jobsFailed    *expvar.Int
	jobsRetried   *expvar.Int

	queueDepth *expvar.Int

	diffTotal     *expvar.Int
	diffLatencyMS *expvar.Int

	enrichTotal  *expvar.Int
	enrichFailed *expvar.Int
)

func ensureInit() {
	initOnce.Do(func() {
		jobsSubmitted = expvar.NewInt("docverge_jobs_submitted_total")
		jobsCompleted = expvar.NewInt("docverge_jobs_completed_total")
		jobsFailed = expvar.NewInt("docverge_jobs_failed_total")
		jobsRetried = expvar.NewInt("docverge_job_retries_total")

		queueDepth = expvar.NewInt("docverge_queue_depth")

		diffTotal = expvar.NewInt("docverge_diff_total")
		diffLatencyMS = expvar.NewInt("docverge_diff_latency_ms")

		enrichTotal = expvar.NewInt("docverge_enrich_calls_total")
		enrichFailed = expvar.NewInt("docverge_enrich_failures_total")
	})
}

// RecordSubmitted notes a newly accepted comparison job.
func RecordSubmitted() {
	ensureInit()
	jobsSubmitted.Add(1)
}

// RecordCompleted notes a job reaching the completed state.
func RecordCompleted() {
	ensureInit()
	jobsCompleted.Add(1)
}

// RecordFailed notes a job reaching the failed state.
func RecordFailed() {
	ensureInit()
	jobsFailed.Add(1)
}

// RecordRetry notes a retried processing attempt.
func RecordRetry() {
	ensureInit()
	jobsRetried.Add(1)
}

// SetQueueDepth publishes the current depth of the work queue.
func SetQueueDepth(depth int) {
	ensureInit()
	queueDepth.Set(int64(depth))
}

// ObserveDiff records one engine invocation and its latency.
func ObserveDiff(elapsed time.Duration) {
	ensureInit()
	diffTotal.Add(1)
	diffLatencyMS.Add(elapsed.Milliseconds())
}

// ObserveEnrichment records one enrichment call and whether it failed.
func ObserveEnrichment(failed bool) {
	ensureInit()
	enrichTotal.Add(1)
	if failed {
		enrichFailed.Add(1)
	}
}
