// File path: internal/job/store_test.go
package job

import (
	"testing"
	"time"

	"docverge/internal/diff"
)

func TestStoreGetReturnsSnapshot(t *testing.T) {
	store := NewStore(time.Hour)
	store.Put(&Job{
		ID:        "job-1",
		Status:    StatusCompleted,
		Progress:  100,
		CreatedAt: time.Now().UTC(),
		Result: &Result{
			Records: []diff.ChangeRecord{{Kind: diff.KindAdded, TargetLine: 1, TargetText: "x"}},
		},
	})

	snapshot, ok := store.Get("job-1")
	if !ok {
		t.Fatal("expected job to exist")
	}
	snapshot.Status = StatusFailed
	snapshot.Result.Records[0].TargetText = "mutated"

	fresh, _ := store.Get("job-1")
	if fresh.Status != StatusCompleted {
		t.Fatalf("snapshot mutation leaked into store: %q", fresh.Status)
	}
	if fresh.Result.Records[0].TargetText != "x" {
		t.Fatalf("record mutation leaked into store: %q", fresh.Result.Records[0].TargetText)
	}
}

func TestStoreUpdateUnknownJob(t *testing.T) {
	store := NewStore(time.Hour)
	if store.Update("missing", func(*Job) {}) {
		t.Fatal("expected update on unknown job to report false")
	}
	if _, ok := store.Get("missing"); ok {
		t.Fatal("expected unknown job to be absent")
	}
}

func TestStoreSweepEvictsOnlyExpiredTerminalJobs(t *testing.T) {
	store := NewStore(time.Minute)
	now := time.Now().UTC()
	old := now.Add(-2 * time.Minute)
	recent := now.Add(-10 * time.Second)

	store.Put(&Job{ID: "expired", Status: StatusCompleted, CompletedAt: &old})
	store.Put(&Job{ID: "fresh", Status: StatusFailed, CompletedAt: &recent})
	store.Put(&Job{ID: "running", Status: StatusProcessing})

	if evicted := store.Sweep(now); evicted != 1 {
		t.Fatalf("expected one eviction, got %d", evicted)
	}
	if _, ok := store.Get("expired"); ok {
		t.Fatal("expected expired job to be evicted")
	}
	if _, ok := store.Get("fresh"); !ok {
		t.Fatal("expected fresh terminal job to remain")
	}
	if _, ok := store.Get("running"); !ok {
		t.Fatal("expected in-flight job to remain")
	}
}

func TestAdvanceIsMonotonic(t *testing.T) {
	j := &Job{Status: StatusProcessing}
	j.Advance(45, "Computing differences")
	j.Advance(25, "Normalizing source document")
	if j.Progress != 45 {
		t.Fatalf("progress regressed to %d", j.Progress)
	}
	if j.Step != "Normalizing source document" {
		t.Fatalf("expected step label refresh, got %q", j.Step)
	}
	j.Advance(250, "done")
	if j.Progress != 100 {
		t.Fatalf("expected progress clamp at 100, got %d", j.Progress)
	}
}
