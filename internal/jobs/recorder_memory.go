package jobs

import (
	"context"
	"sync"
)

// MemoryRecorder keeps jobs in memory for tests and local runs.
type MemoryRecorder struct {
	mu   sync.Mutex
	jobs []Job
}

func NewMemory() *MemoryRecorder {
	return &MemoryRecorder{}
}

func (r *MemoryRecorder) Record(_ context.Context, job Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, job)
	return nil
}

// Jobs returns a copy of everything recorded so far.
func (r *MemoryRecorder) Jobs() []Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Job, len(r.jobs))
	copy(out, r.jobs)
	return out
}
