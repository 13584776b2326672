package queue

import (
	"context"
	"encoding/json"
	"time"
)

// Store persists job records. Implementations must be safe for concurrent
// use and enforce the waiting -> active -> completed|failed transitions
// atomically, so that at most one executor ever claims a job.
type Store interface {
	// Create inserts job in waiting state. ErrDuplicateJob if the id exists.
	Create(ctx context.Context, job *Job) error
	// Get returns a copy of the job. ErrJobNotFound if unknown.
	Get(ctx context.Context, id string) (*Job, error)
	// Delete removes a job that is still waiting.
	Delete(ctx context.Context, id string) error
	// MarkActive claims a waiting job and returns it in active state.
	// ErrInvalidTransition if the job is not waiting.
	MarkActive(ctx context.Context, id string, at time.Time) (*Job, error)
	// SetProgress raises the progress of an active job. Lower or equal
	// values are ignored. ErrInvalidTransition if the job is not active.
	SetProgress(ctx context.Context, id string, progress int, at time.Time) error
	// MarkCompleted stores result and sets progress to 100.
	MarkCompleted(ctx context.Context, id string, result json.RawMessage, at time.Time) error
	// MarkFailed stores the failure reason.
	MarkFailed(ctx context.Context, id string, reason string, at time.Time) error
	// Stats counts jobs per queue and status.
	Stats(ctx context.Context) (map[string]QueueStats, error)
	// PurgeFinished deletes terminal jobs finished before the given time.
	PurgeFinished(ctx context.Context, before time.Time) (int, error)
	Close() error
}
