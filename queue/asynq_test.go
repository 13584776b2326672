package queue_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/ncobase/genqueue/queue"
)

func startMiniRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	s, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestAsynqDispatcher_DispatchBeforeStart(t *testing.T) {
	s := startMiniRedis(t)
	d := queue.NewAsynqDispatcher(asynq.RedisClientOpt{Addr: s.Addr()}, queue.AsynqConfig{})
	defer d.Stop(context.Background())

	err := d.Dispatch(context.Background(), &queue.Job{ID: "job_x"})
	if !errors.Is(err, queue.ErrNotStarted) {
		t.Errorf("expected ErrNotStarted, got %v", err)
	}
}

func TestAsynqDispatcher_RunsJobs(t *testing.T) {
	s := startMiniRedis(t)
	d := queue.NewAsynqDispatcher(asynq.RedisClientOpt{Addr: s.Addr()}, queue.AsynqConfig{Queue: "genqueue", Concurrency: 2})
	r := queue.NewRegistry(queue.NewMemoryStore(), d, queue.WithLogger(quiet))
	t.Cleanup(func() { _ = r.Stop(context.Background()) })

	_ = r.BindWorker("case-digest", func(ctx context.Context, job queue.Job, report queue.ProgressFunc) (any, error) {
		report(50)
		return map[string]string{"owner": job.OwnerID}, nil
	})
	_ = r.BindWorker("mock-bar", func(ctx context.Context, job queue.Job, report queue.ProgressFunc) (any, error) {
		return nil, errors.New("boom")
	})
	if err := r.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	ctx := context.Background()
	ok, err := r.Submit(ctx, "case-digest", "u7", json.RawMessage(`{"caseText":"x"}`))
	if err != nil {
		t.Fatalf("submit ok: %v", err)
	}
	bad, err := r.Submit(ctx, "mock-bar", "u7", json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("submit bad: %v", err)
	}

	done := waitForStatus(t, r, ok.ID, queue.StatusCompleted)
	if string(done.Result) != `{"owner":"u7"}` {
		t.Errorf("unexpected result %s", done.Result)
	}
	failed := waitForStatus(t, r, bad.ID, queue.StatusFailed)
	if failed.Error != "boom" {
		t.Errorf("expected failure reason boom, got %q", failed.Error)
	}
}
