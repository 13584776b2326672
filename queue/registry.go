package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/ncobase/genqueue/logging/logger"
	"github.com/ncobase/genqueue/logging/observes"
	"github.com/ncobase/genqueue/metrics"
	"github.com/ncobase/genqueue/nanoid"
	"go.opentelemetry.io/otel/attribute"
)

const (
	maxErrorLength = 512
	createAttempts = 3

	reasonTimedOut    = "generation timed out"
	reasonPanicked    = "generation failed"
	reasonInterrupted = "generation interrupted"
)

// ProgressFunc reports completion percentage of the running job.
type ProgressFunc func(progress int)

// Processor executes one job and returns a JSON encodable result.
type Processor func(ctx context.Context, job Job, report ProgressFunc) (any, error)

// Option configures a Registry.
type Option func(*Registry)

// WithJobTimeout bounds each processor invocation. Zero disables it.
func WithJobTimeout(d time.Duration) Option {
	return func(r *Registry) { r.jobTimeout = d }
}

// WithLogger sets the logger used by the registry.
func WithLogger(l *logger.Logger) Option {
	return func(r *Registry) { r.log = l }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithIDGenerator overrides job id generation.
func WithIDGenerator(gen func(queue string) string) Option {
	return func(r *Registry) { r.newID = gen }
}

// WithMetrics sets the collector recording job outcomes.
func WithMetrics(c *metrics.Collector) Option {
	return func(r *Registry) {
		if c != nil {
			r.metrics = c
		}
	}
}

// Registry owns the named queues, their processors and the dispatcher.
type Registry struct {
	store      Store
	dispatcher Dispatcher

	mu         sync.RWMutex
	processors map[string]Processor
	queues     map[string]*Queue

	runMu   sync.Mutex
	running map[string]struct{}

	jobTimeout time.Duration
	log        *logger.Logger
	metrics    *metrics.Collector
	now        func() time.Time
	newID      func(queue string) string
}

// NewRegistry creates a registry persisting jobs in store and running them
// through dispatcher.
func NewRegistry(store Store, dispatcher Dispatcher, opts ...Option) *Registry {
	r := &Registry{
		store:      store,
		dispatcher: dispatcher,
		processors: make(map[string]Processor),
		queues:     make(map[string]*Queue),
		running:    make(map[string]struct{}),
		log:        logger.StdLogger(),
		metrics:    metrics.NewCollector(0),
		now:        time.Now,
		newID:      defaultJobID,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func defaultJobID(queue string) string {
	return "job_" + queue + "_" + nanoid.String(16)
}

// BindWorker binds the processor of a queue. Each queue takes one processor.
func (r *Registry) BindWorker(name string, p Processor) error {
	if name == "" || p == nil {
		return errors.New("queue name and processor are required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.processors[name]; ok {
		return fmt.Errorf("%w: %s", ErrProcessorBound, name)
	}
	r.processors[name] = p
	r.queues[name] = &Queue{name: name, r: r}
	return nil
}

// Queue returns the named queue, or nil when no processor is bound to it.
func (r *Registry) Queue(name string) *Queue {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.queues[name]
}

// Names returns the bound queue names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.queues))
	for name := range r.queues {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

func (r *Registry) processor(name string) Processor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.processors[name]
}

// Start starts delivering dispatched jobs to their processors.
func (r *Registry) Start() error {
	return r.dispatcher.Start(r.execute)
}

// Stop stops the dispatcher, waiting for running jobs until ctx is done.
// Jobs still running after that are failed as interrupted.
func (r *Registry) Stop(ctx context.Context) error {
	err := r.dispatcher.Stop(ctx)
	if err == nil {
		return nil
	}

	ids := r.runningJobs()
	writeCtx := context.WithoutCancel(ctx)
	for _, id := range ids {
		r.log.Warn(ctx, "Job interrupted by shutdown", "job_id", id)
		if ferr := r.store.MarkFailed(writeCtx, id, reasonInterrupted, r.now()); ferr != nil && !errors.Is(ferr, ErrInvalidTransition) {
			r.log.Error(ctx, "Failed to record job failure", "job_id", id, "error", ferr)
		}
	}
	if len(ids) > 0 {
		return fmt.Errorf("%d jobs still running: %w", len(ids), err)
	}
	return err
}

func (r *Registry) track(id string) {
	r.runMu.Lock()
	r.running[id] = struct{}{}
	r.runMu.Unlock()
}

func (r *Registry) untrack(id string) {
	r.runMu.Lock()
	delete(r.running, id)
	r.runMu.Unlock()
}

func (r *Registry) runningJobs() []string {
	r.runMu.Lock()
	defer r.runMu.Unlock()
	ids := make([]string, 0, len(r.running))
	for id := range r.running {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Submit records a waiting job for queue and hands it to the dispatcher.
// It returns once the job is queued, never waiting for execution.
func (r *Registry) Submit(ctx context.Context, queue, ownerID string, payload json.RawMessage) (*Job, error) {
	if r.processor(queue) == nil {
		return nil, &EnqueueError{Queue: queue, Err: ErrNoProcessor}
	}

	now := r.now()
	job := &Job{
		QueueName:   queue,
		OwnerID:     ownerID,
		Payload:     cloneRaw(payload),
		Status:      StatusWaiting,
		SubmittedAt: now,
		UpdatedAt:   now,
	}

	var err error
	for i := 0; i < createAttempts; i++ {
		job.ID = r.newID(queue)
		if err = r.store.Create(ctx, job); !errors.Is(err, ErrDuplicateJob) {
			break
		}
	}
	if err != nil {
		r.metrics.RecordSubmit(queue, err)
		return nil, &EnqueueError{Queue: queue, Err: err}
	}

	if err := r.dispatcher.Dispatch(ctx, job); err != nil {
		r.metrics.RecordSubmit(queue, err)
		if derr := r.store.Delete(ctx, job.ID); derr != nil && !errors.Is(derr, ErrInvalidTransition) {
			r.log.Error(ctx, "Failed to roll back job", "job_id", job.ID, "error", derr)
		}
		r.log.Warn(ctx, "Job dispatch failed", "job_id", job.ID, "queue", queue, "error", err)
		return nil, &EnqueueError{Queue: queue, Err: err}
	}

	r.metrics.RecordSubmit(queue, nil)
	r.log.Info(ctx, "Job submitted", "job_id", job.ID, "queue", queue, "owner_id", ownerID)
	return job.Clone(), nil
}

// GetStatus returns a snapshot of the job.
func (r *Registry) GetStatus(ctx context.Context, id string) (*Job, error) {
	return r.store.Get(ctx, id)
}

// Stats returns per queue counts by status. Bound queues without jobs are
// included with zero counts.
func (r *Registry) Stats(ctx context.Context) (map[string]QueueStats, error) {
	stats, err := r.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	for _, name := range r.Names() {
		st, ok := stats[name]
		if !ok {
			st = QueueStats{}
			stats[name] = st
		}
		for _, s := range Statuses {
			if _, ok := st[s]; !ok {
				st[s] = 0
			}
		}
	}
	return stats, nil
}

// Metrics returns the per queue outcome counters and run times.
func (r *Registry) Metrics() map[string]any {
	return r.metrics.GetMetrics()
}

// DispatcherMetrics returns the dispatcher counters.
func (r *Registry) DispatcherMetrics() map[string]int64 {
	return r.dispatcher.Metrics()
}

// execute claims and runs one job. It is invoked by the dispatcher.
func (r *Registry) execute(ctx context.Context, id string) error {
	job, err := r.store.MarkActive(ctx, id, r.now())
	if errors.Is(err, ErrInvalidTransition) {
		r.log.Debug(ctx, "Job already claimed", "job_id", id)
		return nil
	}
	if err != nil {
		return err
	}
	r.track(job.ID)
	defer r.untrack(job.ID)

	ctx, span := observes.StartSpan(ctx, "queue.execute",
		attribute.String("job.id", job.ID),
		attribute.String("job.queue", job.QueueName),
	)

	proc := r.processor(job.QueueName)
	if proc == nil {
		err = r.fail(ctx, job, ErrNoProcessor.Error())
		observes.EndSpan(span, ErrNoProcessor)
		return err
	}

	r.log.Info(ctx, "Job started", "job_id", job.ID, "queue", job.QueueName)
	started := r.now()

	report := func(p int) {
		if err := r.store.SetProgress(ctx, job.ID, ClampProgress(p), r.now()); err != nil && !errors.Is(err, ErrInvalidTransition) {
			r.log.Warn(ctx, "Failed to record progress", "job_id", job.ID, "error", err)
		}
	}

	result, runErr := r.run(ctx, proc, *job, report)
	if runErr != nil {
		r.metrics.RecordCompletion(job.QueueName, r.now().Sub(started), false)
		err = r.fail(ctx, job, failureReason(runErr))
		observes.EndSpan(span, runErr)
		return err
	}

	raw, encErr := encodeResult(result)
	if encErr != nil {
		r.metrics.RecordCompletion(job.QueueName, r.now().Sub(started), false)
		err = r.fail(ctx, job, "invalid result: "+encErr.Error())
		observes.EndSpan(span, encErr)
		return err
	}

	if err = r.store.MarkCompleted(ctx, job.ID, raw, r.now()); err != nil {
		r.log.Error(ctx, "Failed to complete job", "job_id", job.ID, "error", err)
		observes.EndSpan(span, err)
		return err
	}
	elapsed := r.now().Sub(started)
	r.metrics.RecordCompletion(job.QueueName, elapsed, true)
	r.log.Info(ctx, "Job completed", "job_id", job.ID, "queue", job.QueueName, "duration", elapsed.String())
	observes.EndSpan(span, nil)
	return nil
}

func (r *Registry) fail(ctx context.Context, job *Job, reason string) error {
	r.log.Warn(ctx, "Job failed", "job_id", job.ID, "queue", job.QueueName, "reason", reason)
	if err := r.store.MarkFailed(ctx, job.ID, reason, r.now()); err != nil {
		r.log.Error(ctx, "Failed to record job failure", "job_id", job.ID, "error", err)
		return err
	}
	return nil
}

// panicError carries a recovered processor panic.
type panicError struct {
	value any
}

func (e *panicError) Error() string { return fmt.Sprintf("processor panic: %v", e.value) }

type runResult struct {
	value any
	err   error
}

// run invokes proc under the job timeout. A processor that outlives the
// deadline keeps running, but its outcome is discarded.
func (r *Registry) run(ctx context.Context, proc Processor, job Job, report ProgressFunc) (any, error) {
	runCtx := ctx
	if r.jobTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.jobTimeout)
		defer cancel()
	}

	done := make(chan runResult, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				perr := &panicError{value: rec}
				observes.CaptureError(ctx, perr, map[string]string{"job_id": job.ID, "queue": job.QueueName})
				done <- runResult{err: perr}
			}
		}()
		v, err := proc(runCtx, job, report)
		done <- runResult{value: v, err: err}
	}()

	select {
	case res := <-done:
		if res.err == nil && runCtx.Err() != nil {
			return nil, runCtx.Err()
		}
		return res.value, res.err
	case <-runCtx.Done():
		return nil, runCtx.Err()
	}
}

// failureReason turns a processor error into the short reason stored on
// the job.
func failureReason(err error) string {
	var perr *panicError
	switch {
	case errors.As(err, &perr):
		return reasonPanicked
	case errors.Is(err, context.DeadlineExceeded):
		return reasonTimedOut
	case errors.Is(err, context.Canceled):
		return reasonInterrupted
	}

	msg := err.Error()
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	msg = strings.TrimSpace(msg)
	if len(msg) > maxErrorLength {
		n := maxErrorLength
		for n > 0 && !utf8.RuneStart(msg[n]) {
			n--
		}
		msg = msg[:n]
	}
	if msg == "" {
		msg = reasonPanicked
	}
	return msg
}

func encodeResult(v any) (json.RawMessage, error) {
	switch t := v.(type) {
	case json.RawMessage:
		if json.Valid(t) {
			return cloneRaw(t), nil
		}
	case []byte:
		if json.Valid(t) {
			return cloneRaw(t), nil
		}
	}
	return json.Marshal(v)
}

// Queue is a named view of the registry.
type Queue struct {
	name string
	r    *Registry
}

// Name returns the queue name.
func (q *Queue) Name() string { return q.name }

// Submit submits a job to this queue.
func (q *Queue) Submit(ctx context.Context, ownerID string, payload json.RawMessage) (*Job, error) {
	return q.r.Submit(ctx, q.name, ownerID, payload)
}

// GetStatus returns the job if it belongs to this queue.
func (q *Queue) GetStatus(ctx context.Context, id string) (*Job, error) {
	job, err := q.r.GetStatus(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.QueueName != q.name {
		return nil, ErrJobNotFound
	}
	return job, nil
}
