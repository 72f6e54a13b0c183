// File path: internal/job/store.go
package job

import (
	"context"
	"sync"
	"time"

	"docverge/internal/common"
)

// Store is the in-memory job registry. All mutations to a job's fields happen
// through Update under the write lock; Get returns deep-cloned snapshots so a
// reader never observes a partially written record.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*Job
	ttl  time.Duration
}

// NewStore builds a registry whose terminal entries expire after ttl.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Store{jobs: make(map[string]*Job), ttl: ttl}
}

// Put registers a job. The store takes ownership of the value.
func (s *Store) Put(j *Job) {
	if j == nil || j.ID == "" {
		return
	}
	s.mu.Lock()
	s.jobs[j.ID] = j
	s.mu.Unlock()
}

// Get returns a snapshot of the job, or false when the ID is unknown.
func (s *Store) Get(id string) (*Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, false
	}
	return j.Clone(), true
}

// Update applies fn to the stored job under the write lock. It reports
// whether the job existed.
func (s *Store) Update(id string, fn func(*Job)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return false
	}
	fn(j)
	return true
}

// Delete removes a job outright. Used when enqueueing fails after the entry
// was created.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	delete(s.jobs, id)
	s.mu.Unlock()
}

// Len returns the number of resident jobs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// Sweep evicts terminal jobs whose completion is older than the TTL and
// returns how many were removed. Jobs still in flight are never touched.
func (s *Store) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	evicted := 0
	for id, j := range s.jobs {
		if !j.Status.Terminal() || j.CompletedAt == nil {
			continue
		}
		if now.Sub(*j.CompletedAt) >= s.ttl {
			delete(s.jobs, id)
			evicted++
		}
	}
	return evicted
}

// RunSweeper periodically evicts expired jobs until the context is canceled.
func (s *Store) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	logger := common.Logger()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if evicted := s.Sweep(now); evicted > 0 {
				logger.Debug("job: evicted expired jobs", "count", evicted)
			}
		}
	}
}
