package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type mockProcessor struct {
	processFn func(ctx context.Context, task Task) error
}

func (m *mockProcessor) Process(ctx context.Context, task Task) error {
	return m.processFn(ctx, task)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met within %s", timeout)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPool_Submit(t *testing.T) {
	p := NewPool(nil)
	p.Start()
	defer p.Stop(context.Background())

	var ran atomic.Int32
	for i := 0; i < 2; i++ {
		if err := p.Submit(func(ctx context.Context) error {
			ran.Add(1)
			return nil
		}); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	}

	waitFor(t, time.Second, func() bool { return p.GetMetrics()["completed_tasks"] == 2 })
	if ran.Load() != 2 {
		t.Errorf("expected 2 tasks to run, got %d", ran.Load())
	}
}

func TestPool_SubmitWhenFull(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	p := NewPool(&Config{MaxWorkers: 1, QueueSize: 1})
	p.Start()
	defer func() {
		close(release)
		p.Stop(context.Background())
	}()

	blocking := func(ctx context.Context) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return nil
	}

	if err := p.Submit(blocking); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	<-started

	if err := p.Submit(blocking); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := p.Submit(blocking); !errors.Is(err, ErrQueueFull) {
		t.Errorf("expected ErrQueueFull, got %v", err)
	}
}

func TestPool_ProcessorError(t *testing.T) {
	p := NewPool(nil, &mockProcessor{
		processFn: func(ctx context.Context, task Task) error {
			return errors.New("processing error")
		},
	})
	p.Start()
	defer p.Stop(context.Background())

	if err := p.Submit(func(ctx context.Context) error { return nil }); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	waitFor(t, time.Second, func() bool { return p.GetMetrics()["failed_tasks"] == 1 })
}

func TestPool_ProcessorPanic(t *testing.T) {
	p := NewPool(nil)
	p.Start()
	defer p.Stop(context.Background())

	if err := p.Submit(func(ctx context.Context) error { panic("processing panic") }); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	waitFor(t, time.Second, func() bool { return p.GetMetrics()["failed_tasks"] == 1 })

	// the worker survives the panic
	done := make(chan struct{})
	if err := p.Submit(func(ctx context.Context) error { close(done); return nil }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not pick up task after panic")
	}
}

func TestPool_ProcessorTimeout(t *testing.T) {
	p := NewPool(&Config{MaxWorkers: 1, QueueSize: 1, TaskTimeout: 20 * time.Millisecond})
	p.Start()
	defer p.Stop(context.Background())

	var sawDeadline atomic.Bool
	if err := p.Submit(func(ctx context.Context) error {
		<-ctx.Done()
		sawDeadline.Store(errors.Is(ctx.Err(), context.DeadlineExceeded))
		return ctx.Err()
	}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	waitFor(t, time.Second, func() bool { return p.GetMetrics()["failed_tasks"] == 1 })
	waitFor(t, time.Second, sawDeadline.Load)
}

func TestPool_ZeroTimeoutDoesNotExpire(t *testing.T) {
	p := NewPool(&Config{MaxWorkers: 1, QueueSize: 1})
	p.Start()
	defer p.Stop(context.Background())

	if err := p.Submit(func(ctx context.Context) error {
		time.Sleep(10 * time.Millisecond)
		return ctx.Err()
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	waitFor(t, time.Second, func() bool { return p.GetMetrics()["completed_tasks"] == 1 })
}

func TestPool_StopWaitsForTaskCompletion(t *testing.T) {
	p := NewPool(nil)
	p.Start()

	var finished atomic.Bool
	if err := p.Submit(func(ctx context.Context) error {
		time.Sleep(50 * time.Millisecond)
		finished.Store(true)
		return nil
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	p.Stop(ctx)

	if !finished.Load() {
		t.Error("expected task to finish before Stop returned")
	}
}

func TestPool_StopDeadline(t *testing.T) {
	p := NewPool(&Config{MaxWorkers: 1, QueueSize: 1})
	p.Start()

	started := make(chan struct{})
	cancelled := make(chan struct{})
	if err := p.Submit(func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		close(cancelled)
		return ctx.Err()
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := p.Stop(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Error("expected running task to be cancelled")
	}
}

func TestPool_SubmitAfterStop(t *testing.T) {
	p := NewPool(nil)
	p.Start()
	p.Stop(context.Background())

	if err := p.Submit(func(ctx context.Context) error { return nil }); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("expected ErrPoolClosed, got %v", err)
	}
	// second stop is a no-op
	p.Stop(context.Background())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{MaxWorkers: 1, QueueSize: 1}, false},
		{"no workers", Config{MaxWorkers: 0, QueueSize: 1}, true},
		{"no queue", Config{MaxWorkers: 1, QueueSize: 0}, true},
		{"negative timeout", Config{MaxWorkers: 1, QueueSize: 1, TaskTimeout: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
