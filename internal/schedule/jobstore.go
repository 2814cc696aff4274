package schedule

import (
	"context"
	"sync"
)

// JobStore maps job ids to live jobs. A job is present iff its status is scheduled.
type JobStore interface {
	Register(ctx context.Context, job *Job) error
	Lookup(id string) (*Job, bool)
	Remove(ctx context.Context, id string) (*Job, bool)
	// List returns jobs in registration order.
	List() []*Job
}

// MemoryJobStore is the default JobStore. It keeps registration order.
type MemoryJobStore struct {
	mu    sync.RWMutex
	jobs  map[string]*Job
	order []string
}

func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{jobs: map[string]*Job{}}
}

func (s *MemoryJobStore) Register(_ context.Context, job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := job.ID()
	if _, exists := s.jobs[id]; !exists {
		s.order = append(s.order, id)
	}
	s.jobs[id] = job
	return nil
}

func (s *MemoryJobStore) Lookup(id string) (*Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	return j, ok
}

func (s *MemoryJobStore) Remove(_ context.Context, id string) (*Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, false
	}
	delete(s.jobs, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return j, true
}

func (s *MemoryJobStore) List() []*Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Job, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.jobs[id])
	}
	return out
}

func (s *MemoryJobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}
