// File path: internal/orchestrator/orchestrator.go
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"docverge/internal/catalog"
	"docverge/internal/common"
	"docverge/internal/common/telemetry"
	"docverge/internal/diff"
	"docverge/internal/document"
	"docverge/internal/enrich"
	"docverge/internal/job"
)

var (
	// ErrQueueFull is returned by Submit when the bounded work queue is
	// saturated. The submission creates no job.
	ErrQueueFull = errors.New("comparison queue is full")

	// ErrStillProcessing is returned by Result while the job has not reached
	// a terminal state.
	ErrStillProcessing = errors.New("job still processing")

	// ErrNotCancelable is returned by Cancel for jobs already in a terminal
	// state.
	ErrNotCancelable = errors.New("job already finished")

	errEngine = errors.New("engine failure")
)

// JobFailure is the recorded error of a failed job as surfaced on the result
// query.
type JobFailure struct {
	Kind    job.FailureKind
	Message string
}

func (e *JobFailure) Error() string {
	return fmt.Sprintf("job failed (%s): %s", e.Kind, e.Message)
}

// Payload is one raw document submitted for comparison.
type Payload struct {
	Name string
	Data []byte
}

type workItem struct {
	jobID  string
	source Payload
	target Payload
	opts   job.Options
}

// Orchestrator owns the job state machine: it validates submissions, feeds a
// bounded worker pool from a FIFO queue, applies the retry policy, and stores
// terminal results. Each job is processed by exactly one worker.
type Orchestrator struct {
	cfg       Config
	converter document.Converter
	provider  enrich.Provider
	store     *job.Store
	history   *catalog.Store

	queue  chan workItem
	cancel context.CancelFunc
	ctx    context.Context
	wg     sync.WaitGroup

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// New starts the worker pool and the TTL sweeper. The enrichment provider and
// the history catalog may both be nil; the pipeline runs without them.
func New(ctx context.Context, cfg Config, converter document.Converter, provider enrich.Provider, history *catalog.Store) (*Orchestrator, error) {
	cfg = applyDefaults(cfg)
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("orchestrator config: %w", err)
	}
	if converter == nil {
		return nil, errors.New("converter required")
	}
	runCtx, cancel := context.WithCancel(ctx)
	o := &Orchestrator{
		cfg:       cfg,
		converter: converter,
		provider:  provider,
		store:     job.NewStore(cfg.JobTTL),
		history:   history,
		queue:     make(chan workItem, cfg.QueueSize),
		cancel:    cancel,
		ctx:       runCtx,
		cancels:   make(map[string]context.CancelFunc),
	}
	logger := common.Logger()
	logger.Info("orchestrator: starting workers", "workers", cfg.Workers, "queue_size", cfg.QueueSize)
	for i := 0; i < cfg.Workers; i++ {
		o.wg.Add(1)
		go o.worker(i)
	}
	go o.store.RunSweeper(runCtx, cfg.SweepInterval)
	return o, nil
}

// Close stops the workers and the sweeper. In-flight jobs finish their
// current attempt before the pool drains.
func (o *Orchestrator) Close() {
	o.cancel()
	o.wg.Wait()
}

// Submit validates the two payloads, registers a Pending job, and enqueues
// the work. Validation problems surface synchronously as job.ErrValidation
// without creating a job.
func (o *Orchestrator) Submit(source, target Payload, opts job.Options) (string, error) {
	if err := o.validatePayload("source", source); err != nil {
		return "", err
	}
	if err := o.validatePayload("target", target); err != nil {
		return "", err
	}
	if opts.ContextLines <= 0 {
		opts.ContextLines = o.cfg.ContextLines
	}
	id := uuid.NewString()
	now := time.Now().UTC()
	o.store.Put(&job.Job{
		ID:        id,
		Status:    job.StatusPending,
		Step:      "Queued",
		CreatedAt: now,
		Options:   opts,
	})
	item := workItem{jobID: id, source: source, target: target, opts: opts}
	select {
	case o.queue <- item:
	default:
		o.store.Delete(id)
		return "", ErrQueueFull
	}
	telemetry.RecordSubmitted()
	telemetry.SetQueueDepth(len(o.queue))
	common.Logger().Info("orchestrator: job submitted", "job", id, "source", source.Name, "target", target.Name, "enrichment", opts.UseEnrichment)
	return id, nil
}

func (o *Orchestrator) validatePayload(side string, p Payload) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: %s document name required", job.ErrValidation, side)
	}
	if len(p.Data) == 0 {
		return fmt.Errorf("%w: %s document is empty", job.ErrValidation, side)
	}
	if len(p.Data) > o.cfg.MaxFileSizeBytes() {
		return fmt.Errorf("%s document exceeds %dMB limit: %w", side, o.cfg.MaxFileSizeMB, job.ErrTooLarge)
	}
	return nil
}

// Status returns a snapshot of the job, or job.ErrNotFound.
func (o *Orchestrator) Status(id string) (*job.Job, error) {
	snapshot, ok := o.store.Get(id)
	if !ok {
		return nil, job.ErrNotFound
	}
	return snapshot, nil
}

// Result returns the full comparison result once the job completes. While the
// job is Pending or Processing it returns ErrStillProcessing; for a Failed job
// it returns the recorded JobFailure.
func (o *Orchestrator) Result(id string) (*job.Result, error) {
	snapshot, ok := o.store.Get(id)
	if !ok {
		return nil, job.ErrNotFound
	}
	switch snapshot.Status {
	case job.StatusCompleted:
		return snapshot.Result, nil
	case job.StatusFailed:
		return nil, &JobFailure{Kind: snapshot.FailureKind, Message: snapshot.Error}
	default:
		return nil, ErrStillProcessing
	}
}

// Cancel stops a Pending or Processing job. Queued jobs are failed in place;
// running jobs have their context cancelled and the owning worker records the
// failure. Terminal jobs return ErrNotCancelable.
func (o *Orchestrator) Cancel(id string) error {
	o.mu.Lock()
	jobCancel, running := o.cancels[id]
	o.mu.Unlock()
	if running {
		jobCancel()
		common.Logger().Info("orchestrator: job cancellation requested", "job", id)
		return nil
	}

	completed := time.Now().UTC()
	var terminal, cancelled bool
	ok := o.store.Update(id, func(j *job.Job) {
		if j.Status.Terminal() {
			terminal = true
			return
		}
		j.Status = job.StatusFailed
		j.FailureKind = job.FailureCancelled
		j.Error = "cancelled by request"
		j.CompletedAt = &completed
		j.Step = "Cancelled"
		cancelled = true
	})
	if !ok {
		return job.ErrNotFound
	}
	if terminal {
		return ErrNotCancelable
	}
	if cancelled {
		telemetry.RecordFailed()
		common.Logger().Info("orchestrator: queued job cancelled", "job", id)
		o.recordHistory(id)
	}
	return nil
}

func (o *Orchestrator) registerCancel(id string, fn context.CancelFunc) {
	o.mu.Lock()
	o.cancels[id] = fn
	o.mu.Unlock()
}

func (o *Orchestrator) unregisterCancel(id string, fn context.CancelFunc) {
	o.mu.Lock()
	delete(o.cancels, id)
	o.mu.Unlock()
	fn()
}

func (o *Orchestrator) cancelCause() error {
	if o.ctx.Err() != nil {
		return errors.New("cancelled: service shutting down")
	}
	return errors.New("cancelled by request")
}

// Health describes the orchestrator's live capacity.
type Health struct {
	Workers       int `json:"workers"`
	QueueDepth    int `json:"queue_depth"`
	QueueCapacity int `json:"queue_capacity"`
	JobsResident  int `json:"jobs_resident"`
}

// Health reports queue depth and worker availability. Read-only.
func (o *Orchestrator) Health() Health {
	return Health{
		Workers:       o.cfg.Workers,
		QueueDepth:    len(o.queue),
		QueueCapacity: cap(o.queue),
		JobsResident:  o.store.Len(),
	}
}

func (o *Orchestrator) worker(id int) {
	defer o.wg.Done()
	logger := common.Logger()
	for {
		select {
		case <-o.ctx.Done():
			return
		case item := <-o.queue:
			telemetry.SetQueueDepth(len(o.queue))
			logger.Debug("orchestrator: worker picked up job", "worker", id, "job", item.jobID)
			o.process(item)
		}
	}
}

func (o *Orchestrator) process(item workItem) {
	started := time.Now().UTC()
	var alreadyDone bool
	if ok := o.store.Update(item.jobID, func(j *job.Job) {
		if j.Status.Terminal() {
			alreadyDone = true
			return
		}
		j.Status = job.StatusProcessing
		j.StartedAt = &started
		j.Advance(5, "Normalizing source document")
	}); !ok || alreadyDone {
		// Evicted, deleted, or cancelled between enqueue and dequeue.
		return
	}

	jobCtx, jobCancel := context.WithCancel(o.ctx)
	o.registerCancel(item.jobID, jobCancel)
	defer o.unregisterCancel(item.jobID, jobCancel)

	ctx, cancel := context.WithTimeout(jobCtx, o.cfg.JobDeadline)
	defer cancel()

	logger := common.Logger()
	for attempt := 0; ; attempt++ {
		result, err := o.runAttempt(ctx, item)
		if err == nil {
			o.complete(item.jobID, result)
			return
		}
		switch {
		case deadlineExceeded(ctx, err):
			o.fail(item.jobID, job.FailureTimeout, fmt.Errorf("processing deadline exceeded: %w", err))
			return
		case ctx.Err() != nil && errors.Is(err, context.Canceled):
			o.fail(item.jobID, job.FailureCancelled, o.cancelCause())
			return
		case errors.Is(err, errEngine):
			o.fail(item.jobID, job.FailureEngine, err)
			return
		case errors.Is(err, document.ErrMalformed):
			o.fail(item.jobID, job.FailureNormalization, err)
			return
		}
		if attempt >= o.cfg.MaxRetries {
			o.fail(item.jobID, job.FailureNormalization, fmt.Errorf("retries exhausted after %d attempts: %w", attempt+1, err))
			return
		}
		backoff := o.cfg.RetryBackoff << attempt
		logger.Warn("orchestrator: transient failure, retrying", "job", item.jobID, "attempt", attempt+1, "backoff", backoff, "error", err)
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				o.fail(item.jobID, job.FailureTimeout, fmt.Errorf("processing deadline exceeded: %w", ctx.Err()))
			} else {
				o.fail(item.jobID, job.FailureCancelled, o.cancelCause())
			}
			return
		case <-time.After(backoff):
		}
		telemetry.RecordRetry()
		o.store.Update(item.jobID, func(j *job.Job) {
			j.RetryCount++
			j.Advance(j.Progress, fmt.Sprintf("Retrying after transient failure (attempt %d)", attempt+2))
		})
	}
}

func (o *Orchestrator) runAttempt(ctx context.Context, item workItem) (*job.Result, error) {
	convertOpts := document.ConvertOptions{ExtractTables: item.opts.ExtractTables}

	source, err := o.convert(ctx, item.source, convertOpts)
	if err != nil {
		return nil, fmt.Errorf("normalize source: %w", err)
	}
	o.advance(item.jobID, 25, "Normalizing target document")

	target, err := o.convert(ctx, item.target, convertOpts)
	if err != nil {
		return nil, fmt.Errorf("normalize target: %w", err)
	}
	o.advance(item.jobID, 45, "Computing differences")

	summary, records, err := o.compare(source, target, diff.Options{ContextLines: item.opts.ContextLines})
	if err != nil {
		return nil, err
	}

	if item.opts.UseEnrichment && o.provider != nil {
		o.advance(item.jobID, 70, "Annotating changes")
		o.enrichRecords(ctx, item.jobID, records, item.opts.EnrichmentPrompt)
	} else {
		o.advance(item.jobID, 70, "Finalizing result")
	}
	o.advance(item.jobID, 95, "Finalizing result")

	return &job.Result{
		Summary:    summary,
		Records:    records,
		SourceMeta: source.Meta,
		TargetMeta: target.Meta,
	}, nil
}

func (o *Orchestrator) convert(ctx context.Context, p Payload, opts document.ConvertOptions) (*document.NormalizedText, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.cfg.CallTimeout)
	defer cancel()
	return o.converter.Convert(callCtx, p.Name, p.Data, opts)
}

// compare shields the pipeline from engine bugs: the engine is pure and must
// not fail on valid normalized text, so a panic here is reported as a fatal
// engine failure rather than taking the worker down.
func (o *Orchestrator) compare(source, target *document.NormalizedText, opts diff.Options) (summary diff.Summary, records []diff.ChangeRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errEngine, r)
		}
	}()
	start := time.Now()
	summary, records = diff.Compare(source, target, opts)
	telemetry.ObserveDiff(time.Since(start))
	return summary, records, nil
}

// enrichRecords annotates each record independently. Provider errors mark the
// record's enrichment absent and are logged; they never fail the job. When
// the job deadline expires mid-phase the remaining records stay unannotated.
func (o *Orchestrator) enrichRecords(ctx context.Context, jobID string, records []diff.ChangeRecord, prompt string) {
	logger := common.Logger()
	for i := range records {
		if ctx.Err() != nil {
			logger.Warn("orchestrator: abandoning enrichment, deadline reached", "job", jobID, "annotated", i, "total", len(records))
			return
		}
		callCtx, cancel := context.WithTimeout(ctx, o.cfg.CallTimeout)
		result, err := o.provider.Annotate(callCtx, records[i], prompt)
		cancel()
		if err != nil {
			telemetry.ObserveEnrichment(true)
			logger.Warn("orchestrator: enrichment failed for record", "job", jobID, "record", i, "provider", o.provider.Name(), "error", err)
			continue
		}
		telemetry.ObserveEnrichment(false)
		records[i].Enrichment = result
	}
}

func (o *Orchestrator) advance(jobID string, pct int, step string) {
	o.store.Update(jobID, func(j *job.Job) {
		j.Advance(pct, step)
	})
}

func (o *Orchestrator) complete(jobID string, result *job.Result) {
	completed := time.Now().UTC()
	applied := false
	o.store.Update(jobID, func(j *job.Job) {
		if j.Status.Terminal() {
			return
		}
		j.Status = job.StatusCompleted
		j.Result = result
		j.CompletedAt = &completed
		j.Advance(100, "Completed")
		applied = true
	})
	if !applied {
		return
	}
	telemetry.RecordCompleted()
	common.Logger().Info("orchestrator: job completed", "job", jobID,
		"added", result.Summary.Added, "removed", result.Summary.Removed,
		"modified", result.Summary.Modified, "similarity", result.Summary.SimilarityPercentage)
	o.recordHistory(jobID)
}

func (o *Orchestrator) fail(jobID string, kind job.FailureKind, err error) {
	completed := time.Now().UTC()
	applied := false
	o.store.Update(jobID, func(j *job.Job) {
		if j.Status.Terminal() {
			return
		}
		j.Status = job.StatusFailed
		j.Error = err.Error()
		j.FailureKind = kind
		j.CompletedAt = &completed
		j.Step = "Failed"
		applied = true
	})
	if !applied {
		return
	}
	telemetry.RecordFailed()
	common.Logger().Error("orchestrator: job failed", "job", jobID, "kind", string(kind), "error", err)
	o.recordHistory(jobID)
}

func (o *Orchestrator) recordHistory(jobID string) {
	if o.history == nil {
		return
	}
	snapshot, ok := o.store.Get(jobID)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.history.RecordJob(ctx, snapshot); err != nil {
		common.Logger().Warn("orchestrator: history record failed", "job", jobID, "error", err)
	}
}

// RecentJobs lists terminal jobs from the history catalog, newest first.
func (o *Orchestrator) RecentJobs(ctx context.Context, limit int) ([]catalog.Record, error) {
	if o.history == nil {
		return nil, nil
	}
	return o.history.Recent(ctx, limit)
}

func deadlineExceeded(ctx context.Context, err error) bool {
	return ctx.Err() != nil && errors.Is(err, context.DeadlineExceeded)
}
