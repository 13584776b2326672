package queue

import (
	"context"
	"time"
)

// Purge deletes completed and failed jobs that finished more than retention
// ago. A non-positive retention keeps every job.
func (r *Registry) Purge(ctx context.Context, retention time.Duration) (int, error) {
	if retention <= 0 {
		return 0, nil
	}
	n, err := r.store.PurgeFinished(ctx, r.now().Add(-retention))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		r.log.Info(ctx, "Purged finished jobs", "count", n, "retention", retention.String())
	}
	return n, nil
}

// ClearFinished deletes every completed and failed job.
func (r *Registry) ClearFinished(ctx context.Context) (int, error) {
	n, err := r.store.PurgeFinished(ctx, r.now())
	if err != nil {
		return 0, err
	}
	r.log.Info(ctx, "Cleared finished jobs", "count", n)
	return n, nil
}

// RunJanitor purges finished jobs every interval until ctx is done.
func (r *Registry) RunJanitor(ctx context.Context, retention, interval time.Duration) {
	if retention <= 0 || interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Purge(ctx, retention); err != nil {
				r.log.Error(ctx, "Failed to purge finished jobs", "error", err)
			}
		}
	}
}
