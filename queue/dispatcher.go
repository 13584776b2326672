package queue

import (
	"context"
	"sync"

	"github.com/ncobase/genqueue/concurrency/worker"
	"github.com/ncobase/genqueue/ctxutil"
)

// ExecFunc runs the job with the given id. It is supplied by the Registry.
type ExecFunc func(ctx context.Context, jobID string) error

// Dispatcher hands submitted jobs to workers.
type Dispatcher interface {
	// Start begins delivering dispatched jobs to exec.
	Start(exec ExecFunc) error
	// Dispatch schedules job without waiting for it to run. An error means
	// the job will never run.
	Dispatch(ctx context.Context, job *Job) error
	// Stop stops accepting jobs and waits for running ones until ctx is done.
	Stop(ctx context.Context) error
	// Metrics reports dispatcher counters for the admin API.
	Metrics() map[string]int64
}

// PoolDispatcher runs jobs on an in-process worker pool. Jobs still queued
// when the process exits are lost.
type PoolDispatcher struct {
	pool *worker.Pool

	mu   sync.RWMutex
	exec ExecFunc
}

// NewPoolDispatcher creates a dispatcher bounded by cfg.MaxWorkers running
// jobs and cfg.QueueSize buffered ones.
func NewPoolDispatcher(cfg *worker.Config) (*PoolDispatcher, error) {
	if cfg == nil {
		cfg = worker.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &PoolDispatcher{pool: worker.NewPool(cfg)}, nil
}

func (d *PoolDispatcher) Start(exec ExecFunc) error {
	d.mu.Lock()
	d.exec = exec
	d.mu.Unlock()
	d.pool.Start()
	return nil
}

func (d *PoolDispatcher) Dispatch(ctx context.Context, job *Job) error {
	d.mu.RLock()
	exec := d.exec
	d.mu.RUnlock()
	if exec == nil {
		return ErrNotStarted
	}

	id := job.ID
	origin := ctxutil.Detach(ctx)
	return d.pool.Submit(func(taskCtx context.Context) error {
		return exec(ctxutil.CopyValues(taskCtx, origin), id)
	})
}

func (d *PoolDispatcher) Stop(ctx context.Context) error {
	return d.pool.Stop(ctx)
}

func (d *PoolDispatcher) Metrics() map[string]int64 {
	return d.pool.GetMetrics()
}
