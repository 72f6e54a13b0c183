// File path: internal/orchestrator/orchestrator_test.go
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"docverge/internal/diff"
	"docverge/internal/document"
	"docverge/internal/enrich"
	"docverge/internal/job"
)

type fakeConverter struct {
	mu       sync.Mutex
	failures int
	failErr  error
	delay    time.Duration
	calls    int
}

func (f *fakeConverter) Convert(ctx context.Context, name string, data []byte, opts document.ConvertOptions) (*document.NormalizedText, error) {
	f.mu.Lock()
	f.calls++
	if f.failures > 0 {
		f.failures--
		err := f.failErr
		f.mu.Unlock()
		if err == nil {
			err = errors.New("transient conversion failure")
		}
		return nil, err
	}
	delay := f.delay
	f.mu.Unlock()
	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	return &document.NormalizedText{
		Source: name,
		Lines:  lines,
		Meta:   document.Metadata{PageCount: 1, WordCount: len(lines), ByteSize: len(data)},
	}, nil
}

func (f *fakeConverter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type countingProvider struct {
	mu    sync.Mutex
	calls int
	fail  bool
}

func (p *countingProvider) Annotate(ctx context.Context, rec diff.ChangeRecord, prompt string) (*enrich.Result, error) {
	p.mu.Lock()
	p.calls++
	fail := p.fail
	p.mu.Unlock()
	if fail {
		return nil, errors.New("provider unavailable")
	}
	return &enrich.Result{Provider: "counting", Text: "note: " + rec.Proof}, nil
}

func (p *countingProvider) Name() string { return "counting" }

func (p *countingProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Workers = 2
	cfg.QueueSize = 8
	cfg.RetryBackoff = time.Millisecond
	cfg.JobDeadline = 5 * time.Second
	cfg.CallTimeout = time.Second
	cfg.SweepInterval = time.Hour
	return cfg
}

func newTestOrchestrator(t *testing.T, cfg Config, converter document.Converter, provider enrich.Provider) *Orchestrator {
	t.Helper()
	o, err := New(context.Background(), cfg, converter, provider, nil)
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	t.Cleanup(o.Close)
	return o
}

func waitForTerminal(t *testing.T, o *Orchestrator, id string) *job.Job {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		snapshot, err := o.Status(id)
		if err != nil {
			t.Fatalf("status: %v", err)
		}
		if snapshot.Status.Terminal() {
			return snapshot
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("job %s never reached a terminal state", id)
	return nil
}

func TestSubmitRejectsInvalidInput(t *testing.T) {
	o := newTestOrchestrator(t, testConfig(), &fakeConverter{}, nil)

	if _, err := o.Submit(Payload{}, Payload{Name: "b.txt", Data: []byte("b")}, job.Options{}); !errors.Is(err, job.ErrValidation) {
		t.Fatalf("expected validation error for empty source, got %v", err)
	}
	big := Payload{Name: "big.txt", Data: make([]byte, 51<<20)}
	if _, err := o.Submit(big, Payload{Name: "b.txt", Data: []byte("b")}, job.Options{}); !errors.Is(err, job.ErrValidation) {
		t.Fatalf("expected validation error for oversized source, got %v", err)
	}
	if health := o.Health(); health.JobsResident != 0 {
		t.Fatalf("rejected submissions must not create jobs, resident=%d", health.JobsResident)
	}
}

func TestCompareJobCompletes(t *testing.T) {
	o := newTestOrchestrator(t, testConfig(), &fakeConverter{}, nil)

	id, err := o.Submit(
		Payload{Name: "a.txt", Data: []byte("A\nB\nC")},
		Payload{Name: "b.txt", Data: []byte("A\nX\nC")},
		job.Options{},
	)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	snapshot := waitForTerminal(t, o, id)
	if snapshot.Status != job.StatusCompleted {
		t.Fatalf("expected completed, got %q (%s)", snapshot.Status, snapshot.Error)
	}
	if snapshot.Progress != 100 {
		t.Fatalf("expected progress 100, got %d", snapshot.Progress)
	}
	result, err := o.Result(id)
	if err != nil {
		t.Fatalf("result: %v", err)
	}
	if result.Summary.Modified != 1 || len(result.Records) != 1 {
		t.Fatalf("unexpected result: %+v", result.Summary)
	}
	if result.Records[0].SourceText != "B" || result.Records[0].TargetText != "X" {
		t.Fatalf("unexpected record: %+v", result.Records[0])
	}
}

func TestResultLifecycleErrors(t *testing.T) {
	converter := &fakeConverter{delay: 100 * time.Millisecond}
	o := newTestOrchestrator(t, testConfig(), converter, nil)

	if _, err := o.Result("unknown"); !errors.Is(err, job.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	id, err := o.Submit(
		Payload{Name: "a.txt", Data: []byte("A")},
		Payload{Name: "b.txt", Data: []byte("B")},
		job.Options{},
	)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := o.Result(id); !errors.Is(err, ErrStillProcessing) {
		t.Fatalf("expected still processing, got %v", err)
	}
	waitForTerminal(t, o, id)
	if _, err := o.Result(id); err != nil {
		t.Fatalf("expected result after completion, got %v", err)
	}
}

func TestTransientFailuresAreRetried(t *testing.T) {
	converter := &fakeConverter{failures: 2}
	o := newTestOrchestrator(t, testConfig(), converter, nil)

	id, err := o.Submit(
		Payload{Name: "a.txt", Data: []byte("A")},
		Payload{Name: "b.txt", Data: []byte("A")},
		job.Options{},
	)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	snapshot := waitForTerminal(t, o, id)
	if snapshot.Status != job.StatusCompleted {
		t.Fatalf("expected completed after retries, got %q (%s)", snapshot.Status, snapshot.Error)
	}
	if snapshot.RetryCount != 2 {
		t.Fatalf("expected retry count 2, got %d", snapshot.RetryCount)
	}
}

func TestRetriesExhaustedFailsJob(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRetries = 1
	converter := &fakeConverter{failures: 10}
	o := newTestOrchestrator(t, cfg, converter, nil)

	id, err := o.Submit(
		Payload{Name: "a.txt", Data: []byte("A")},
		Payload{Name: "b.txt", Data: []byte("A")},
		job.Options{},
	)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	snapshot := waitForTerminal(t, o, id)
	if snapshot.Status != job.StatusFailed {
		t.Fatalf("expected failed, got %q", snapshot.Status)
	}
	if snapshot.FailureKind != job.FailureNormalization {
		t.Fatalf("expected normalization failure, got %q", snapshot.FailureKind)
	}
	if snapshot.RetryCount != 1 {
		t.Fatalf("expected retry count 1, got %d", snapshot.RetryCount)
	}
	var failure *JobFailure
	if _, err := o.Result(id); !errors.As(err, &failure) {
		t.Fatalf("expected JobFailure from result, got %v", err)
	}
}

func TestMalformedInputFailsWithoutRetry(t *testing.T) {
	converter := &fakeConverter{
		failures: 1,
		failErr:  fmt.Errorf("%w: binary payload", document.ErrMalformed),
	}
	o := newTestOrchestrator(t, testConfig(), converter, nil)

	id, err := o.Submit(
		Payload{Name: "a.bin", Data: []byte{0x1}},
		Payload{Name: "b.txt", Data: []byte("B")},
		job.Options{},
	)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	snapshot := waitForTerminal(t, o, id)
	if snapshot.Status != job.StatusFailed {
		t.Fatalf("expected failed, got %q", snapshot.Status)
	}
	if snapshot.RetryCount != 0 {
		t.Fatalf("malformed input must not be retried, retry count %d", snapshot.RetryCount)
	}
	if snapshot.FailureKind != job.FailureNormalization {
		t.Fatalf("expected normalization failure, got %q", snapshot.FailureKind)
	}
}

func TestEnrichmentDisabledMakesNoProviderCalls(t *testing.T) {
	provider := &countingProvider{}
	o := newTestOrchestrator(t, testConfig(), &fakeConverter{}, provider)

	id, err := o.Submit(
		Payload{Name: "a.txt", Data: []byte("A\nB")},
		Payload{Name: "b.txt", Data: []byte("A\nC")},
		job.Options{UseEnrichment: false},
	)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	waitForTerminal(t, o, id)
	result, err := o.Result(id)
	if err != nil {
		t.Fatalf("result: %v", err)
	}
	for i, rec := range result.Records {
		if rec.Enrichment != nil {
			t.Fatalf("record %d unexpectedly enriched", i)
		}
	}
	if provider.callCount() != 0 {
		t.Fatalf("expected zero provider calls, got %d", provider.callCount())
	}
}

func TestEnrichmentAnnotatesRecords(t *testing.T) {
	provider := &countingProvider{}
	o := newTestOrchestrator(t, testConfig(), &fakeConverter{}, provider)

	id, err := o.Submit(
		Payload{Name: "a.txt", Data: []byte("A\nB")},
		Payload{Name: "b.txt", Data: []byte("A\nC")},
		job.Options{UseEnrichment: true},
	)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	waitForTerminal(t, o, id)
	result, err := o.Result(id)
	if err != nil {
		t.Fatalf("result: %v", err)
	}
	if len(result.Records) == 0 {
		t.Fatal("expected records")
	}
	for i, rec := range result.Records {
		if rec.Enrichment == nil {
			t.Fatalf("record %d missing enrichment", i)
		}
		if rec.Enrichment.Provider != "counting" {
			t.Fatalf("record %d has provider %q", i, rec.Enrichment.Provider)
		}
	}
	if provider.callCount() != len(result.Records) {
		t.Fatalf("expected %d provider calls, got %d", len(result.Records), provider.callCount())
	}
}

func TestEnrichmentFailureDoesNotFailJob(t *testing.T) {
	provider := &countingProvider{fail: true}
	o := newTestOrchestrator(t, testConfig(), &fakeConverter{}, provider)

	id, err := o.Submit(
		Payload{Name: "a.txt", Data: []byte("A")},
		Payload{Name: "b.txt", Data: []byte("B")},
		job.Options{UseEnrichment: true},
	)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	snapshot := waitForTerminal(t, o, id)
	if snapshot.Status != job.StatusCompleted {
		t.Fatalf("expected completed despite enrichment failures, got %q", snapshot.Status)
	}
	result, err := o.Result(id)
	if err != nil {
		t.Fatalf("result: %v", err)
	}
	for i, rec := range result.Records {
		if rec.Enrichment != nil {
			t.Fatalf("record %d should have absent enrichment", i)
		}
	}
}

func TestProgressIsMonotonic(t *testing.T) {
	converter := &fakeConverter{delay: 20 * time.Millisecond}
	o := newTestOrchestrator(t, testConfig(), converter, nil)

	id, err := o.Submit(
		Payload{Name: "a.txt", Data: []byte("A\nB\nC")},
		Payload{Name: "b.txt", Data: []byte("A\nX\nC")},
		job.Options{},
	)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	last := -1
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		snapshot, err := o.Status(id)
		if err != nil {
			t.Fatalf("status: %v", err)
		}
		if snapshot.Progress < last {
			t.Fatalf("progress regressed from %d to %d", last, snapshot.Progress)
		}
		last = snapshot.Progress
		if snapshot.Status.Terminal() {
			break
		}
		time.Sleep(time.Millisecond)
	}

	// Terminal state must be stable across subsequent reads.
	first := waitForTerminal(t, o, id)
	for i := 0; i < 5; i++ {
		again, err := o.Status(id)
		if err != nil {
			t.Fatalf("status: %v", err)
		}
		if again.Status != first.Status {
			t.Fatalf("terminal state changed from %q to %q", first.Status, again.Status)
		}
	}
}

func TestCancelQueuedJob(t *testing.T) {
	cfg := testConfig()
	cfg.Workers = 1
	cfg.QueueSize = 2
	converter := &fakeConverter{delay: 300 * time.Millisecond}
	o := newTestOrchestrator(t, cfg, converter, nil)

	source := Payload{Name: "a.txt", Data: []byte("A")}
	target := Payload{Name: "b.txt", Data: []byte("B")}

	first, err := o.Submit(source, target, job.Options{})
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}
	// Give the single worker time to dequeue the first job.
	time.Sleep(50 * time.Millisecond)
	second, err := o.Submit(source, target, job.Options{})
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}

	if err := o.Cancel(second); err != nil {
		t.Fatalf("cancel queued job: %v", err)
	}
	snapshot, err := o.Status(second)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if snapshot.Status != job.StatusFailed || snapshot.FailureKind != job.FailureCancelled {
		t.Fatalf("expected cancelled job, got %q/%q", snapshot.Status, snapshot.FailureKind)
	}
	if err := o.Cancel(second); !errors.Is(err, ErrNotCancelable) {
		t.Fatalf("expected ErrNotCancelable on second cancel, got %v", err)
	}

	// The running job is unaffected by the cancellation.
	if done := waitForTerminal(t, o, first); done.Status != job.StatusCompleted {
		t.Fatalf("first job should complete, got %q (%s)", done.Status, done.Error)
	}
}

func TestCancelRunningJob(t *testing.T) {
	converter := &fakeConverter{delay: 300 * time.Millisecond}
	o := newTestOrchestrator(t, testConfig(), converter, nil)

	id, err := o.Submit(
		Payload{Name: "a.txt", Data: []byte("A")},
		Payload{Name: "b.txt", Data: []byte("B")},
		job.Options{},
	)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for {
		snapshot, err := o.Status(id)
		if err != nil {
			t.Fatalf("status: %v", err)
		}
		if snapshot.Status == job.StatusProcessing {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job never started processing, status %q", snapshot.Status)
		}
		time.Sleep(2 * time.Millisecond)
	}

	if err := o.Cancel(id); err != nil {
		t.Fatalf("cancel running job: %v", err)
	}
	snapshot := waitForTerminal(t, o, id)
	if snapshot.Status != job.StatusFailed || snapshot.FailureKind != job.FailureCancelled {
		t.Fatalf("expected cancelled job, got %q/%q", snapshot.Status, snapshot.FailureKind)
	}
	if !strings.Contains(snapshot.Error, "cancelled by request") {
		t.Fatalf("unexpected cancellation message %q", snapshot.Error)
	}
}

func TestCancelLifecycleErrors(t *testing.T) {
	o := newTestOrchestrator(t, testConfig(), &fakeConverter{}, nil)

	if err := o.Cancel("unknown"); !errors.Is(err, job.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	id, err := o.Submit(
		Payload{Name: "a.txt", Data: []byte("A")},
		Payload{Name: "b.txt", Data: []byte("A")},
		job.Options{},
	)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	waitForTerminal(t, o, id)
	if err := o.Cancel(id); !errors.Is(err, ErrNotCancelable) {
		t.Fatalf("expected ErrNotCancelable, got %v", err)
	}
}

func TestJobDeadlineFailsWithTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.JobDeadline = 50 * time.Millisecond
	converter := &fakeConverter{delay: 500 * time.Millisecond}
	o := newTestOrchestrator(t, cfg, converter, nil)

	id, err := o.Submit(
		Payload{Name: "a.txt", Data: []byte("A")},
		Payload{Name: "b.txt", Data: []byte("B")},
		job.Options{},
	)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	snapshot := waitForTerminal(t, o, id)
	if snapshot.FailureKind != job.FailureTimeout {
		t.Fatalf("expected timeout failure, got %q (%s)", snapshot.FailureKind, snapshot.Error)
	}
	if !strings.Contains(snapshot.Error, "deadline exceeded") {
		t.Fatalf("unexpected timeout message %q", snapshot.Error)
	}
}

func TestShutdownDuringBackoffIsNotATimeout(t *testing.T) {
	cfg := testConfig()
	cfg.RetryBackoff = 200 * time.Millisecond
	converter := &fakeConverter{failures: 5}
	o := newTestOrchestrator(t, cfg, converter, nil)

	id, err := o.Submit(
		Payload{Name: "a.txt", Data: []byte("A")},
		Payload{Name: "b.txt", Data: []byte("B")},
		job.Options{},
	)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	// Let the first attempt fail so the worker is parked in backoff.
	time.Sleep(20 * time.Millisecond)
	o.Close()

	snapshot, err := o.Status(id)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if snapshot.Status != job.StatusFailed {
		t.Fatalf("expected failed job after shutdown, got %q", snapshot.Status)
	}
	if snapshot.FailureKind == job.FailureTimeout {
		t.Fatalf("shutdown must not be reported as a timeout: %q (%s)", snapshot.FailureKind, snapshot.Error)
	}
	if !strings.Contains(snapshot.Error, "shutting down") {
		t.Fatalf("unexpected shutdown message %q", snapshot.Error)
	}
}

func TestSubmitQueueFull(t *testing.T) {
	cfg := testConfig()
	cfg.Workers = 1
	cfg.QueueSize = 1
	converter := &fakeConverter{delay: 300 * time.Millisecond}
	o := newTestOrchestrator(t, cfg, converter, nil)

	source := Payload{Name: "a.txt", Data: []byte("A")}
	target := Payload{Name: "b.txt", Data: []byte("B")}

	if _, err := o.Submit(source, target, job.Options{}); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	// Give the single worker time to dequeue the first job.
	time.Sleep(50 * time.Millisecond)
	if _, err := o.Submit(source, target, job.Options{}); err != nil {
		t.Fatalf("second submit: %v", err)
	}
	if _, err := o.Submit(source, target, job.Options{}); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected queue full, got %v", err)
	}
}
