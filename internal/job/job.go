// File path: internal/job/job.go
package job

import (
	"errors"
	"fmt"
	"time"

	"docverge/internal/diff"
	"docverge/internal/document"
)

// Status is the lifecycle state of a comparison job. Pending moves to
// Processing when a worker dequeues the job; Processing ends in Completed or
// Failed. Terminal jobs never transition again, they are only evicted.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// FailureKind classifies why a job failed.
type FailureKind string

const (
	FailureValidation    FailureKind = "validation"
	FailureNormalization FailureKind = "normalization"
	FailureEngine        FailureKind = "engine"
	FailureTimeout       FailureKind = "timeout"
	FailureCancelled     FailureKind = "cancelled"
)

// ErrNotFound is returned for unknown job identifiers.
var ErrNotFound = errors.New("job not found")

// ErrValidation wraps input problems rejected synchronously at submission.
var ErrValidation = errors.New("invalid submission")

// ErrTooLarge marks submissions over the configured size cap. It matches
// ErrValidation too, so generic validation handling still applies.
var ErrTooLarge = fmt.Errorf("%w: document too large", ErrValidation)

// Options carries the per-job settings accepted at submission.
type Options struct {
	UseEnrichment    bool   `json:"use_enrichment"`
	EnrichmentPrompt string `json:"enrichment_prompt,omitempty"`
	ContextLines     int    `json:"context_lines,omitempty"`
	ExtractTables    bool   `json:"extract_tables"`
}

// Result is the full payload of a completed comparison.
type Result struct {
	Summary    diff.Summary        `json:"summary"`
	Records    []diff.ChangeRecord `json:"records"`
	SourceMeta document.Metadata   `json:"source_meta"`
	TargetMeta document.Metadata   `json:"target_meta"`
}

// Job is the mutable lifecycle object for one comparison request. During
// Processing it is written by exactly one worker; everyone else reads
// snapshots from the Store.
type Job struct {
	ID          string      `json:"job_id"`
	Status      Status      `json:"status"`
	Progress    int         `json:"progress"`
	Step        string      `json:"current_step,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	StartedAt   *time.Time  `json:"started_at,omitempty"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
	RetryCount  int         `json:"retry_count"`
	Options     Options     `json:"options"`
	Result      *Result     `json:"result,omitempty"`
	Error       string      `json:"error,omitempty"`
	FailureKind FailureKind `json:"failure_kind,omitempty"`
}

// Advance raises progress to pct and updates the step label. Progress never
// regresses: lower values only refresh the label.
func (j *Job) Advance(pct int, step string) {
	if pct > 100 {
		pct = 100
	}
	if pct > j.Progress {
		j.Progress = pct
	}
	if step != "" {
		j.Step = step
	}
}

// Clone returns a deep copy safe to hand to concurrent readers.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	clone := *j
	if j.StartedAt != nil {
		started := *j.StartedAt
		clone.StartedAt = &started
	}
	if j.CompletedAt != nil {
		completed := *j.CompletedAt
		clone.CompletedAt = &completed
	}
	if j.Result != nil {
		result := *j.Result
		if len(j.Result.Records) > 0 {
			result.Records = make([]diff.ChangeRecord, len(j.Result.Records))
			copy(result.Records, j.Result.Records)
			for i, rec := range result.Records {
				if rec.Enrichment != nil {
					enrichment := *rec.Enrichment
					result.Records[i].Enrichment = &enrichment
				}
			}
		}
		clone.Result = &result
	}
	return &clone
}
