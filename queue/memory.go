package queue

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// MemoryStore keeps job records in process memory. Records are lost on
// restart.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*Job)}
}

func (s *MemoryStore) Create(_ context.Context, job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[job.ID]; ok {
		return ErrDuplicateJob
	}
	j := job.Clone()
	j.Status = StatusWaiting
	j.Progress = 0
	j.Result = nil
	j.Error = ""
	s.jobs[j.ID] = j
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return j.Clone(), nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	if j.Status != StatusWaiting {
		return ErrInvalidTransition
	}
	delete(s.jobs, id)
	return nil
}

func (s *MemoryStore) MarkActive(_ context.Context, id string, at time.Time) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	if j.Status != StatusWaiting {
		return nil, ErrInvalidTransition
	}
	j.Status = StatusActive
	j.StartedAt = &at
	j.UpdatedAt = at
	return j.Clone(), nil
}

func (s *MemoryStore) SetProgress(_ context.Context, id string, progress int, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	if j.Status != StatusActive {
		return ErrInvalidTransition
	}
	progress = ClampProgress(progress)
	if progress <= j.Progress {
		return nil
	}
	j.Progress = progress
	j.UpdatedAt = at
	return nil
}

func (s *MemoryStore) MarkCompleted(_ context.Context, id string, result json.RawMessage, at time.Time) error {
	return s.finish(id, at, func(j *Job) {
		j.Status = StatusCompleted
		j.Progress = 100
		j.Result = cloneRaw(result)
	})
}

func (s *MemoryStore) MarkFailed(_ context.Context, id string, reason string, at time.Time) error {
	return s.finish(id, at, func(j *Job) {
		j.Status = StatusFailed
		j.Error = reason
	})
}

func (s *MemoryStore) finish(id string, at time.Time, apply func(*Job)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	if j.Status != StatusActive {
		return ErrInvalidTransition
	}
	apply(j)
	j.FinishedAt = &at
	j.UpdatedAt = at
	return nil
}

func (s *MemoryStore) Stats(_ context.Context) (map[string]QueueStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]QueueStats)
	for _, j := range s.jobs {
		st, ok := out[j.QueueName]
		if !ok {
			st = QueueStats{}
			out[j.QueueName] = st
		}
		st[j.Status]++
	}
	return out, nil
}

func (s *MemoryStore) PurgeFinished(_ context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, j := range s.jobs {
		if j.Status.IsTerminal() && j.FinishedAt != nil && j.FinishedAt.Before(before) {
			delete(s.jobs, id)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) Close() error { return nil }
