package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrQueueFull  = errors.New("task queue is full")
	ErrPoolClosed = errors.New("worker pool is closed")
)

// Config represents pool configuration
type Config struct {
	MaxWorkers  int           // maximum number of workers
	QueueSize   int           // task queue size
	TaskTimeout time.Duration // timeout for single task, 0 disables it
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		MaxWorkers:  10,
		QueueSize:   1000,
		TaskTimeout: 0,
	}
}

// Validate validates configuration
func (cfg *Config) Validate() error {
	if cfg.MaxWorkers < 1 {
		return errors.New("max workers must be greater than 0")
	}
	if cfg.QueueSize < 1 {
		return errors.New("queue size must be greater than 0")
	}
	if cfg.TaskTimeout < 0 {
		return errors.New("task timeout must be greater than or equal to 0")
	}
	return nil
}

// Task is a unit of work run by the pool.
type Task func(ctx context.Context) error

// Processor represents a task processor
type Processor interface {
	Process(ctx context.Context, task Task) error
}

// defaultProcessor runs the task directly.
type defaultProcessor struct{}

func (p *defaultProcessor) Process(ctx context.Context, task Task) error {
	if task == nil {
		return errors.New("nil task")
	}
	return task(ctx)
}

// Metrics tracks pool's operational metrics
type Metrics struct {
	ActiveWorkers  atomic.Int64
	PendingTasks   atomic.Int64
	CompletedTasks atomic.Int64
	FailedTasks    atomic.Int64
	ProcessingTime atomic.Int64 // nanoseconds
}

// Reset resets all metrics to zero
func (m *Metrics) Reset() {
	m.ActiveWorkers.Store(0)
	m.PendingTasks.Store(0)
	m.CompletedTasks.Store(0)
	m.FailedTasks.Store(0)
	m.ProcessingTime.Store(0)
}

// Pool represents a worker pool
type Pool struct {
	maxWorkers  int
	queueSize   int
	taskTimeout time.Duration
	processor   Processor

	tasks   chan Task
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
	started bool

	metrics *Metrics
}

// NewPool creates a new worker pool
//
// Usage:
//
//	pool := worker.NewPool(&worker.Config{MaxWorkers: 4, QueueSize: 100})
//	pool.Start()
//	defer pool.Stop(ctx)
//
//	err := pool.Submit(func(ctx context.Context) error {
//	    return doWork(ctx)
//	})
//	if errors.Is(err, worker.ErrQueueFull) {
//	    // back off
//	}
func NewPool(cfg *Config, processors ...Processor) *Pool {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())

	var processor Processor
	if len(processors) > 0 && processors[0] != nil {
		processor = processors[0]
	} else {
		processor = &defaultProcessor{}
	}

	return &Pool{
		maxWorkers:  cfg.MaxWorkers,
		queueSize:   cfg.QueueSize,
		taskTimeout: cfg.TaskTimeout,
		processor:   processor,
		tasks:       make(chan Task, cfg.QueueSize),
		ctx:         ctx,
		cancel:      cancel,
		metrics:     &Metrics{},
	}
}

// Start starts the worker pool
func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.closed {
		return
	}
	p.started = true
	for i := 0; i < p.maxWorkers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// Stop stops accepting tasks, lets workers drain the queue and waits for
// them until ctx is done. Tasks still running when ctx expires are cancelled
// and ctx's error is returned.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	p.cancel()
	return err
}

// Submit submits a task to the pool without blocking
func (p *Pool) Submit(task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.tasks <- task:
		p.metrics.PendingTasks.Add(1)
		return nil
	default:
		return ErrQueueFull
	}
}

// worker represents a worker goroutine
func (p *Pool) worker() {
	defer p.wg.Done()

	for task := range p.tasks {
		p.processTask(task)
	}
}

// processTask processes a single task
func (p *Pool) processTask(task Task) {
	start := time.Now()
	p.metrics.ActiveWorkers.Add(1)
	p.metrics.PendingTasks.Add(-1)

	defer func() {
		p.metrics.ActiveWorkers.Add(-1)
		p.metrics.ProcessingTime.Add(time.Since(start).Nanoseconds())
	}()

	taskCtx := p.ctx
	if p.taskTimeout > 0 {
		var cancel context.CancelFunc
		taskCtx, cancel = context.WithTimeout(p.ctx, p.taskTimeout)
		defer cancel()
	}

	doneCh := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				doneCh <- fmt.Errorf("task panicked: %v", r)
			}
		}()
		doneCh <- p.processor.Process(taskCtx, task)
	}()

	select {
	case err := <-doneCh:
		if err != nil {
			p.metrics.FailedTasks.Add(1)
		} else {
			p.metrics.CompletedTasks.Add(1)
		}
	case <-taskCtx.Done():
		p.metrics.FailedTasks.Add(1)
	}
}

// GetMetrics returns the current metrics
func (p *Pool) GetMetrics() map[string]int64 {
	return map[string]int64{
		"active_workers":  p.metrics.ActiveWorkers.Load(),
		"pending_tasks":   p.metrics.PendingTasks.Load(),
		"completed_tasks": p.metrics.CompletedTasks.Load(),
		"failed_tasks":    p.metrics.FailedTasks.Load(),
		"processing_time": p.metrics.ProcessingTime.Load(),
	}
}

// IsBusy returns whether the pool is busy
func (p *Pool) IsBusy() bool {
	return p.metrics.ActiveWorkers.Load() >= int64(p.maxWorkers) ||
		p.metrics.PendingTasks.Load() >= int64(p.queueSize)
}

// IsIdle returns whether the pool is idle
func (p *Pool) IsIdle() bool {
	return p.metrics.ActiveWorkers.Load() == 0
}

// IsEmpty returns whether the pool is empty
func (p *Pool) IsEmpty() bool {
	return p.metrics.PendingTasks.Load() == 0
}
