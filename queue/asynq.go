package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/hibiken/asynq"
	"github.com/ncobase/genqueue/ctxutil"
	"github.com/ncobase/genqueue/logging/logger"
)

// TaskTypeJob is the asynq task type carrying a job id.
const TaskTypeJob = "genqueue:job"

// taskPayload is the asynq task body. Job data stays in the Store.
type taskPayload struct {
	JobID   string `json:"job_id"`
	TraceID string `json:"trace_id,omitempty"`
}

// AsynqConfig configures the Redis backed dispatcher.
type AsynqConfig struct {
	Queue       string
	Concurrency int
}

// AsynqDispatcher moves buffering to Redis through asynq. Tasks are
// enqueued without retries; the job store remains the source of truth and
// its claim keeps redeliveries from running a job twice.
type AsynqDispatcher struct {
	client    *asynq.Client
	server    *asynq.Server
	inspector *asynq.Inspector
	queue     string

	mu      sync.Mutex
	started bool
}

// NewAsynqDispatcher creates a dispatcher on the given Redis connection.
func NewAsynqDispatcher(redisOpt asynq.RedisConnOpt, cfg AsynqConfig) *AsynqDispatcher {
	q := cfg.Queue
	if q == "" {
		q = "genqueue"
	}
	con := cfg.Concurrency
	if con <= 0 {
		con = 10
	}

	return &AsynqDispatcher{
		client: asynq.NewClient(redisOpt),
		server: asynq.NewServer(redisOpt, asynq.Config{
			Concurrency: con,
			Queues:      map[string]int{q: 1},
			Logger:      asynqLogger{},
		}),
		inspector: asynq.NewInspector(redisOpt),
		queue:     q,
	}
}

func (d *AsynqDispatcher) Start(exec ExecFunc) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return nil
	}

	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskTypeJob, func(ctx context.Context, t *asynq.Task) error {
		var p taskPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			return fmt.Errorf("decode task payload: %v: %w", err, asynq.SkipRetry)
		}
		if p.TraceID != "" {
			ctx = ctxutil.SetTraceID(ctx, p.TraceID)
		}
		if err := exec(ctx, p.JobID); err != nil {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return nil
	})

	if err := d.server.Start(mux); err != nil {
		return fmt.Errorf("start asynq server: %w", err)
	}
	d.started = true
	return nil
}

func (d *AsynqDispatcher) Dispatch(ctx context.Context, job *Job) error {
	d.mu.Lock()
	started := d.started
	d.mu.Unlock()
	if !started {
		return ErrNotStarted
	}

	payload, err := json.Marshal(taskPayload{JobID: job.ID, TraceID: ctxutil.GetTraceID(ctx)})
	if err != nil {
		return err
	}

	task := asynq.NewTask(TaskTypeJob, payload)
	_, err = d.client.EnqueueContext(ctx, task,
		asynq.Queue(d.queue),
		asynq.TaskID(job.ID),
		asynq.MaxRetry(0),
	)
	return err
}

func (d *AsynqDispatcher) Stop(_ context.Context) error {
	d.mu.Lock()
	started := d.started
	d.started = false
	d.mu.Unlock()

	if started {
		d.server.Shutdown()
	}
	if err := d.inspector.Close(); err != nil {
		return err
	}
	return d.client.Close()
}

func (d *AsynqDispatcher) Metrics() map[string]int64 {
	info, err := d.inspector.GetQueueInfo(d.queue)
	if err != nil {
		return map[string]int64{}
	}
	return map[string]int64{
		"pending_tasks":   int64(info.Pending),
		"active_workers":  int64(info.Active),
		"retry_tasks":     int64(info.Retry),
		"archived_tasks":  int64(info.Archived),
		"completed_tasks": int64(info.Processed - info.Failed),
		"failed_tasks":    int64(info.Failed),
	}
}

// asynqLogger routes asynq's internal logs to the service logger.
type asynqLogger struct{}

func (asynqLogger) Debug(args ...any) { logger.Debug(context.Background(), args...) }
func (asynqLogger) Info(args ...any)  { logger.Info(context.Background(), args...) }
func (asynqLogger) Warn(args ...any)  { logger.Warn(context.Background(), args...) }
func (asynqLogger) Error(args ...any) { logger.Error(context.Background(), args...) }
func (asynqLogger) Fatal(args ...any) { logger.Fatal(context.Background(), args...) }
