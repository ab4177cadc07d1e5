package monitor

import (
	"sort"
	"sync"

	"github.com/tmoradi/kestrel/internal/model"
)

// Snapshot holds the last observed record of every job seen during the
// process lifetime, keyed by job ID. It only grows: a job that stops
// appearing upstream keeps its final record until an explicit reset.
type Snapshot struct {
	mu   sync.RWMutex
	jobs map[string]model.Job
}

// NewSnapshot builds an empty store.
func NewSnapshot() *Snapshot {
	return &Snapshot{jobs: make(map[string]model.Job)}
}

// Get returns the stored record for id.
func (s *Snapshot) Get(id string) (model.Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	return j, ok
}

// Update overwrites the stored record of every job in the batch with its
// fresh state. Jobs absent from the batch keep their old record.
func (s *Snapshot) Update(jobs []model.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range jobs {
		s.jobs[j.ID] = j
	}
}

// Jobs returns every tracked job, newest first.
func (s *Snapshot) Jobs() []model.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j)
	}
	sort.Slice(out, func(i, k int) bool {
		return out[i].CreationDate.After(out[k].CreationDate)
	})
	return out
}

// Len counts tracked jobs.
func (s *Snapshot) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// Clear drops every record and reports how many were tracked. The next
// cycle will classify everything as new again.
func (s *Snapshot) Clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.jobs)
	s.jobs = make(map[string]model.Job)
	return n
}
